// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrQueueClosed is returned by queue operations after shutdown has begun.
	ErrQueueClosed = errors.New("queue closed")
	// ErrQueueFull is returned when a bounded enqueue gives up waiting for space.
	ErrQueueFull = errors.New("queue full")
	// ErrNotFound is returned by lookups that match no record.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPayload marks a webhook body that is not valid JSON.
	ErrInvalidPayload = errors.New("invalid webhook payload")
	// ErrValidation marks a dispatch request with at least one rejected recipient.
	ErrValidation = errors.New("validation failed")
)

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int64
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Is lets errors.Is(err, ErrNotFound) match a missing campaign.
func (e *ErrCampaignNotFound) Is(target error) bool {
	return target == ErrNotFound
}

// Helper constructor
func NewCampaignNotFound(id int64) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrCampaignNotSendable is returned when a campaign's status does not allow
// new sends.
type ErrCampaignNotSendable struct {
	CampaignID int64
	Status     string
}

func (e *ErrCampaignNotSendable) Error() string {
	return fmt.Sprintf("campaign %d cannot be sent in status: %s", e.CampaignID, e.Status)
}

// BuildError reports a template message that cannot be rendered for a provider.
// It is raised before any network call is made.
type BuildError struct {
	Provider string
	Field    string
	Reason   string
}

func (e *BuildError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("build payload: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("build %s payload: %s: %s", e.Provider, e.Field, e.Reason)
}

func NewBuildError(provider, field, reason string) error {
	return &BuildError{Provider: provider, Field: field, Reason: reason}
}

// ProviderError is a non-2xx answer from an upstream WhatsApp provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

// IsThrottled reports whether the provider asked us to slow down.
func (e *ProviderError) IsThrottled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsRejected reports whether the provider definitely refused the message.
// A 5xx leaves it unknown whether the message was accepted.
func (e *ProviderError) IsRejected() bool {
	return e.StatusCode < http.StatusInternalServerError
}

func NewProviderError(provider string, status int, body string) error {
	return &ProviderError{Provider: provider, StatusCode: status, Body: body}
}

// IsBuildError reports whether err is (or wraps) a BuildError.
func IsBuildError(err error) bool {
	var be *BuildError
	return errors.As(err, &be)
}

// IsThrottled reports whether err is (or wraps) a 429 ProviderError.
func IsThrottled(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.IsThrottled()
}

// IsRejected reports whether err is a ProviderError that definitely refused
// the message. Transport errors, timeouts and undecodable 2xx answers are not.
func IsRejected(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.IsRejected()
}
