// internal/model/outbound_item.go
package model

import (
	"encoding/json"
	"fmt"
)

type Provider string

const (
	ProviderMetaCloud Provider = "META_CLOUD"
	ProviderPinnacle  Provider = "PINNACLE"
)

type HeaderKind string

const (
	HeaderNone     HeaderKind = "none"
	HeaderText     HeaderKind = "text"
	HeaderImage    HeaderKind = "image"
	HeaderVideo    HeaderKind = "video"
	HeaderDocument HeaderKind = "document"
)

// OutboundItem is one template send waiting in the outbound queue. It is
// treated as immutable once enqueued.
type OutboundItem struct {
	CampaignID     int64      `json:"campaign_id" validate:"required,gt=0"`
	BusinessID     int64      `json:"business_id" validate:"required,gt=0"`
	Provider       Provider   `json:"provider" validate:"required,oneof=META_CLOUD PINNACLE"`
	PhoneNumberID  string     `json:"phone_number_id" validate:"required"`
	TemplateName   string     `json:"template_name" validate:"required"`
	LanguageCode   string     `json:"language_code" validate:"required"`
	HeaderKind     HeaderKind `json:"header_kind" validate:"omitempty,oneof=none text image video document"`
	HeaderURL      string     `json:"header_url,omitempty" validate:"omitempty,url"`
	HeaderMediaID  string     `json:"header_media_id,omitempty"`
	HeaderText     string     `json:"header_text,omitempty"`
	HeaderFilename string     `json:"header_filename,omitempty"`
	// BodyParams is a JSON array of strings, one per {{n}} placeholder.
	BodyParams json.RawMessage `json:"body_params,omitempty"`
	// ButtonParams is a JSON array of {"index":n,"text":"..."} for dynamic URL buttons.
	ButtonParams   json.RawMessage `json:"button_params,omitempty"`
	To             string          `json:"to" validate:"required,numeric,min=7,max=15"`
	RecipientID    int64           `json:"recipient_id" validate:"required,gt=0"`
	IdempotencyKey string          `json:"idempotency_key" validate:"required,max=128"`
}

// SenderKey identifies the rate-limited channel this item is sent through.
func (i OutboundItem) SenderKey() string {
	return SenderKey(i.Provider, i.PhoneNumberID)
}

func SenderKey(provider Provider, phoneNumberID string) string {
	return string(provider) + "|" + phoneNumberID
}

// IdempotencyKeyFor is the default key for a (campaign, recipient) pair.
func IdempotencyKeyFor(campaignID, recipientID int64) string {
	return fmt.Sprintf("%d:%d", campaignID, recipientID)
}
