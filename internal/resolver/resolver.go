// Package resolver maps provider message identifiers seen in webhook events
// back to the identifiers stored on our own records.
package resolver

import (
	"context"
	"errors"
	"regexp"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/wa-dispatch/internal/errors"
	"github.com/unclebandit/wa-dispatch/internal/model"
	"github.com/unclebandit/wa-dispatch/internal/observability"
)

var wamidPattern = regexp.MustCompile(`^wamid\.[A-Za-z0-9+/=_-]+$`)

// IsWAMID reports whether id has the provider message id format.
func IsWAMID(id string) bool {
	return wamidPattern.MatchString(id)
}

type MessageLogLookup interface {
	LatestByMessageID(ctx context.Context, id string) (*model.MessageLog, error)
}

type SendLogLookup interface {
	LatestMessageID(ctx context.Context, messageID string) (string, error)
	LatestIDByMessageID(ctx context.Context, messageID string) (int64, error)
	BusinessIDByMessageID(ctx context.Context, messageID string) (int64, error)
}

// Resolver is read-only against the store.
type Resolver struct {
	messages MessageLogLookup
	sends    SendLogLookup
}

func New(messages MessageLogLookup, sends SendLogLookup) *Resolver {
	return &Resolver{messages: messages, sends: sends}
}

// Resolve returns the canonical identifier for id. The first match wins:
// an id already in WAMID form, then the latest message log, then the latest
// send log. Unmatched ids are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, id string) (string, error) {
	if IsWAMID(id) {
		return id, nil
	}

	m, err := r.messages.LatestByMessageID(ctx, id)
	switch {
	case err == nil:
		if m.ProviderMessageID != nil && IsWAMID(*m.ProviderMessageID) {
			return *m.ProviderMessageID, nil
		}
		return m.MessageID, nil
	case !errors.Is(err, appErrors.ErrNotFound):
		return "", err
	}

	sent, err := r.sends.LatestMessageID(ctx, id)
	switch {
	case err == nil:
		return sent, nil
	case !errors.Is(err, appErrors.ErrNotFound):
		return "", err
	}

	observability.ResolverMisses.Inc()
	observability.GetLogger(ctx).Debug("message id not mapped, passing through", zap.String("message_id", id))
	return id, nil
}

// ResolveSendLogID returns the id of the latest send log carrying messageID.
func (r *Resolver) ResolveSendLogID(ctx context.Context, messageID string) (int64, error) {
	id, err := r.sends.LatestIDByMessageID(ctx, messageID)
	if errors.Is(err, appErrors.ErrNotFound) {
		observability.GetLogger(ctx).Warn("no send log for message id", zap.String("message_id", messageID))
	}
	return id, err
}

func (r *Resolver) ResolveMessageLogID(ctx context.Context, messageID string) (int64, error) {
	m, err := r.messages.LatestByMessageID(ctx, messageID)
	if err != nil {
		return 0, err
	}
	return m.ID, nil
}

// ResolveBusinessID finds the tenant that owns messageID, checking message
// logs before send logs.
func (r *Resolver) ResolveBusinessID(ctx context.Context, messageID string) (int64, error) {
	m, err := r.messages.LatestByMessageID(ctx, messageID)
	if err == nil {
		return m.BusinessID, nil
	}
	if !errors.Is(err, appErrors.ErrNotFound) {
		return 0, err
	}
	return r.sends.BusinessIDByMessageID(ctx, messageID)
}
