// internal/model/message_log.go
package model

import "time"

// MessageLog is the tenant-facing record of a WhatsApp message. MessageID is
// our own identifier; ProviderMessageID is the WAMID once the provider has
// acknowledged the send.
type MessageLog struct {
	ID                int64      `db:"id" json:"id"`
	BusinessID        int64      `db:"business_id" json:"business_id"`
	MessageID         string     `db:"message_id" json:"message_id"`
	ProviderMessageID *string    `db:"provider_message_id" json:"provider_message_id,omitempty"`
	Status            string     `db:"status" json:"status"`
	Error             *string    `db:"error" json:"error,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
