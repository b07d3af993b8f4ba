package shared

// Task types
const (
	TypeExpireCouponIssuances = "coupon:expire_issuances"
)

// Queue names, weights configured in cmd/worker
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Context keys set by middleware
const (
	ContextUserID    = "user_id"
	ContextUserRole  = "role"
	ContextRequestID = "request_id"
)

// ExpireIssuancesPayload is the asynq payload of TypeExpireCouponIssuances
type ExpireIssuancesPayload struct {
	BatchSize int `json:"batch_size"`
}
