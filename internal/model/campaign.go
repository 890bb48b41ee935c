// internal/model/campaign.go
package model

import "time"

type Campaign struct {
	ID           int64      `db:"id" json:"id"`
	BusinessID   int64      `db:"business_id" json:"business_id"`
	Name         string     `db:"name" json:"name"`
	Provider     Provider   `db:"provider" json:"provider"`
	TemplateName string     `db:"template_name" json:"template_name"`
	LanguageCode string     `db:"language_code" json:"language_code"`
	Status       string     `db:"status" json:"status"`
	ScheduledAt  *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
