package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"coupon-backend/internal/domains/coupon/model"
)

const usagesSheet = "Usages"

// ExportUsages builds an xlsx report of every redemption of a coupon,
// newest first. The second return value is the download file name.
func (s *couponService) ExportUsages(ctx context.Context, id uuid.UUID) (*excelize.File, string, error) {
	coupon, err := s.repo.FindWithHistory(ctx, id)
	if err != nil {
		return nil, "", err
	}

	usages := append([]model.UsageRecord(nil), coupon.UsageHistory...)
	sort.SliceStable(usages, func(i, j int) bool { return usages[i].UsedAt.After(usages[j].UsedAt) })

	f, err := buildUsagesExcelFile(usages)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build excel file: %w", err)
	}

	return f, fmt.Sprintf("coupon_%s_usages.xlsx", coupon.Code), nil
}

func buildUsagesExcelFile(usages []model.UsageRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", usagesSheet); err != nil {
		return nil, err
	}

	headers := []string{"Usage ID", "User ID", "Order ID", "Discount", "Used At"}
	for colIdx, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(colIdx+1, 1)
		if err := f.SetCellValue(usagesSheet, cell, header); err != nil {
			return nil, err
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		lastCol, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(usagesSheet, "A1", lastCol, headerStyle)
	}

	for i, u := range usages {
		row := []interface{}{
			u.ID.String(),
			u.UserID.String(),
			u.OrderID.String(),
			u.DiscountAmount.InexactFloat64(),
			u.UsedAt.UTC().Format(time.RFC3339),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(usagesSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	return f, nil
}
