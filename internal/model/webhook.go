// internal/model/webhook.go
package model

import "time"

// WebhookPayload is a raw webhook body waiting for dispatch.
type WebhookPayload struct {
	Provider   string
	Body       []byte
	ReceivedAt time.Time
}

// FailureRecord keeps a payload that could not be dispatched so it can be
// replayed later.
type FailureRecord struct {
	ID           string    `db:"id" json:"id"`
	Source       string    `db:"source" json:"source"`
	FailureType  string    `db:"failure_type" json:"failure_type"`
	ErrorMessage string    `db:"error_message" json:"error_message"`
	RawJSON      []byte    `db:"raw_json" json:"raw_json"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
