// internal/model/send_log.go
package model

import "time"

type SendOutcome string

const (
	OutcomeSent   SendOutcome = "sent"
	OutcomeFailed SendOutcome = "failed"
)

// SendLog is the result of one send attempt. The worker fills it in and the
// log writer persists it into campaign_send_logs.
type SendLog struct {
	ID             int64       `db:"id" json:"id"`
	CampaignID     int64       `db:"campaign_id" json:"campaign_id"`
	BusinessID     int64       `db:"business_id" json:"business_id"`
	RecipientID    int64       `db:"recipient_id" json:"recipient_id"`
	IdempotencyKey string      `db:"idempotency_key" json:"idempotency_key"`
	Provider       Provider    `db:"provider" json:"provider"`
	PhoneNumberID  string      `db:"phone_number_id" json:"phone_number_id"`
	To             string      `db:"to_phone" json:"to"`
	MessageID      string      `db:"message_id" json:"message_id,omitempty"`
	Status         SendOutcome `db:"status" json:"status"`
	DeliveryStatus string      `db:"delivery_status" json:"delivery_status,omitempty"`
	Error          string      `db:"error" json:"error,omitempty"`
	LatencyMillis  int64       `db:"latency_ms" json:"latency_ms"`
	AttemptedAt    time.Time   `db:"attempted_at" json:"attempted_at"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}
