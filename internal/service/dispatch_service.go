// internal/service/dispatch_service.go
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/wa-dispatch/internal/errors"
	"github.com/unclebandit/wa-dispatch/internal/model"
	"github.com/unclebandit/wa-dispatch/internal/observability"
	"github.com/unclebandit/wa-dispatch/internal/payload"
	"github.com/unclebandit/wa-dispatch/internal/repository"
)

// OutboundSink is the producer side of the outbound queue.
type OutboundSink interface {
	Enqueue(ctx context.Context, item model.OutboundItem) error
}

type DispatchHeader struct {
	Kind     model.HeaderKind `json:"kind"`
	URL      string           `json:"url,omitempty"`
	MediaID  string           `json:"media_id,omitempty"`
	Text     string           `json:"text,omitempty"`
	Filename string           `json:"filename,omitempty"`
}

type DispatchRecipient struct {
	RecipientID    int64           `json:"recipient_id"`
	Phone          string          `json:"phone"`
	BodyParams     json.RawMessage `json:"body_params,omitempty"`
	ButtonParams   json.RawMessage `json:"button_params,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// DispatchRequest fans one template out to many recipients. Provider,
// template and language fall back to the campaign's own values.
type DispatchRequest struct {
	Provider      model.Provider      `json:"provider,omitempty"`
	PhoneNumberID string              `json:"phone_number_id"`
	TemplateName  string              `json:"template_name,omitempty"`
	LanguageCode  string              `json:"language_code,omitempty"`
	Header        DispatchHeader      `json:"header"`
	Recipients    []DispatchRecipient `json:"recipients"`
}

type Rejection struct {
	RecipientID int64  `json:"recipient_id"`
	Error       string `json:"error"`
}

type DispatchResult struct {
	CampaignID int64       `json:"campaign_id"`
	Queued     int         `json:"queued"`
	Rejected   []Rejection `json:"rejected,omitempty"`
}

// DispatchService turns dispatch requests into outbound items. Every item is
// validated and dry-run through its payload builder before anything is
// enqueued, so build errors reach the caller synchronously.
type DispatchService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	Queue        OutboundSink
	validate     *validator.Validate
}

func NewDispatchService(campaigns repository.CampaignRepositoryInterface, q OutboundSink) *DispatchService {
	return &DispatchService{CampaignRepo: campaigns, Queue: q, validate: validator.New()}
}

func (s *DispatchService) Dispatch(ctx context.Context, campaignID int64, req DispatchRequest) (*DispatchResult, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != "draft" && campaign.Status != "scheduled" && campaign.Status != "running" {
		return nil, &appErrors.ErrCampaignNotSendable{CampaignID: campaignID, Status: campaign.Status}
	}

	result := &DispatchResult{CampaignID: campaignID}
	items := make([]model.OutboundItem, 0, len(req.Recipients))

	for _, r := range req.Recipients {
		item := s.itemFor(campaign, req, r)
		if err := s.check(item); err != nil {
			result.Rejected = append(result.Rejected, Rejection{RecipientID: r.RecipientID, Error: err.Error()})
			continue
		}
		items = append(items, item)
	}
	if len(result.Rejected) > 0 {
		return result, appErrors.ErrValidation
	}

	var enqueueErr error
	for _, item := range items {
		if err := s.Queue.Enqueue(ctx, item); err != nil {
			enqueueErr = fmt.Errorf("enqueue %s: %w", item.IdempotencyKey, err)
			break
		}
		result.Queued++
	}

	// anything queued will be sent, even if the caller went away mid-loop
	if campaign.Status != "running" && result.Queued > 0 {
		if err := s.CampaignRepo.UpdateStatus(context.WithoutCancel(ctx), campaignID, "running"); err != nil {
			observability.GetLogger(ctx).Warn("mark campaign running failed",
				zap.Int64("campaign_id", campaignID), zap.Error(err))
		}
	}
	return result, enqueueErr
}

func (s *DispatchService) itemFor(c *model.Campaign, req DispatchRequest, r DispatchRecipient) model.OutboundItem {
	item := model.OutboundItem{
		CampaignID:     c.ID,
		BusinessID:     c.BusinessID,
		Provider:       firstNonEmpty(req.Provider, c.Provider),
		PhoneNumberID:  req.PhoneNumberID,
		TemplateName:   firstNonEmpty(req.TemplateName, c.TemplateName),
		LanguageCode:   firstNonEmpty(req.LanguageCode, c.LanguageCode),
		HeaderKind:     req.Header.Kind,
		HeaderURL:      req.Header.URL,
		HeaderMediaID:  req.Header.MediaID,
		HeaderText:     req.Header.Text,
		HeaderFilename: req.Header.Filename,
		BodyParams:     r.BodyParams,
		ButtonParams:   r.ButtonParams,
		To:             strings.TrimPrefix(r.Phone, "+"),
		RecipientID:    r.RecipientID,
		IdempotencyKey: r.IdempotencyKey,
	}
	if item.HeaderKind == "" {
		item.HeaderKind = model.HeaderNone
	}
	if item.IdempotencyKey == "" {
		item.IdempotencyKey = model.IdempotencyKeyFor(c.ID, r.RecipientID)
	}
	return item
}

func (s *DispatchService) check(item model.OutboundItem) error {
	if err := s.validate.Struct(item); err != nil {
		return err
	}
	_, err := payload.BuildItem(item)
	return err
}

func firstNonEmpty[T ~string](a, b T) T {
	if a != "" {
		return a
	}
	return b
}
