package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/unclebandit/wa-dispatch/internal/model"
	"github.com/unclebandit/wa-dispatch/internal/observability"
)

// envelope is the Cloud API webhook shape. Pinnacle forwards the same one.
type envelope struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string      `json:"field"`
			Value changeValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type changeValue struct {
	Metadata struct {
		PhoneNumberID string `json:"phone_number_id"`
	} `json:"metadata"`
	Statuses []statusEvent     `json:"statuses"`
	Messages []json.RawMessage `json:"messages"`
}

type statusEvent struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
	Errors      []struct {
		Code  int    `json:"code"`
		Title string `json:"title"`
	} `json:"errors"`
}

func (s statusEvent) errorDetail() string {
	parts := make([]string, 0, len(s.Errors))
	for _, e := range s.Errors {
		parts = append(parts, fmt.Sprintf("%d: %s", e.Code, e.Title))
	}
	return strings.Join(parts, "; ")
}

var deliveryStatuses = map[string]bool{
	"sent":      true,
	"delivered": true,
	"read":      true,
	"failed":    true,
}

type IDResolver interface {
	Resolve(ctx context.Context, id string) (string, error)
}

type MessageStatusUpdater interface {
	UpdateStatus(ctx context.Context, id, status, errMsg string) (int64, error)
}

type SendStatusUpdater interface {
	UpdateDeliveryStatus(ctx context.Context, messageID, status, errMsg string) (int64, error)
}

// StatusDispatcher applies delivery status events to message and send logs.
// Inbound user messages are counted and otherwise ignored.
type StatusDispatcher struct {
	Resolver IDResolver
	Messages MessageStatusUpdater
	Sends    SendStatusUpdater
}

func NewStatusDispatcher(r IDResolver, messages MessageStatusUpdater, sends SendStatusUpdater) *StatusDispatcher {
	return &StatusDispatcher{Resolver: r, Messages: messages, Sends: sends}
}

func (d *StatusDispatcher) Dispatch(ctx context.Context, p model.WebhookPayload) error {
	var env envelope
	if err := json.Unmarshal(p.Body, &env); err != nil {
		return fmt.Errorf("decode webhook envelope: %w", err)
	}
	if env.Object == "" || len(env.Entry) == 0 {
		return errors.New("unrecognised webhook envelope: missing object or entry")
	}

	log := observability.GetLogger(ctx).With(zap.String("provider", p.Provider))
	var errs []error
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			if n := len(change.Value.Messages); n > 0 {
				log.Debug("ignoring inbound messages", zap.Int("count", n))
			}
			for _, st := range change.Value.Statuses {
				if err := d.apply(ctx, log, st); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}
	return errors.Join(errs...)
}

func (d *StatusDispatcher) apply(ctx context.Context, log *zap.Logger, st statusEvent) error {
	if st.ID == "" {
		return errors.New("status event without message id")
	}
	if !deliveryStatuses[st.Status] {
		log.Debug("skipping unknown status", zap.String("status", st.Status), zap.String("message_id", st.ID))
		return nil
	}

	id, err := d.Resolver.Resolve(ctx, st.ID)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", st.ID, err)
	}

	detail := st.errorDetail()
	msgRows, err := d.Messages.UpdateStatus(ctx, id, st.Status, detail)
	if err != nil {
		return fmt.Errorf("update message log %s: %w", id, err)
	}
	sendRows, err := d.Sends.UpdateDeliveryStatus(ctx, id, st.Status, detail)
	if err != nil {
		return fmt.Errorf("update send log %s: %w", id, err)
	}

	log.Debug("applied delivery status",
		zap.String("message_id", id),
		zap.String("status", st.Status),
		zap.Int64("message_rows", msgRows),
		zap.Int64("send_rows", sendRows),
	)
	return nil
}
