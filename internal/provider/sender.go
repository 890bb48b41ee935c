// Package provider holds the HTTP clients for the upstream WhatsApp template
// APIs.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	appErrors "github.com/unclebandit/wa-dispatch/internal/errors"
	"github.com/unclebandit/wa-dispatch/internal/model"
)

// Result is what a successful send tells us.
type Result struct {
	MessageID  string
	StatusCode int
}

// Sender is the interface any provider backend must implement. body is the
// wire JSON produced by the matching payload builder.
type Sender interface {
	Send(ctx context.Context, phoneNumberID string, body []byte) (Result, error)
}

// Registry maps a provider to its client.
type Registry map[model.Provider]Sender

func (r Registry) For(p model.Provider) (Sender, error) {
	s, ok := r[p]
	if !ok || s == nil {
		return nil, fmt.Errorf("no sender configured for provider %q", p)
	}
	return s, nil
}

// sendResponse captures just the fields we care about. Both providers answer
// with the Cloud API shape.
type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

const maxErrorBody = 2048

func do(client *http.Client, req *http.Request, provider string) (Result, error) {
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%s http post: %w", provider, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := strings.TrimSpace(string(respBody))
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return Result{StatusCode: resp.StatusCode}, appErrors.NewProviderError(provider, resp.StatusCode, body)
	}

	var parsed sendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Result{StatusCode: resp.StatusCode}, fmt.Errorf("%s decode response: %w", provider, err)
	}
	if parsed.Error != nil {
		return Result{StatusCode: resp.StatusCode}, appErrors.NewProviderError(provider, resp.StatusCode, parsed.Error.Message)
	}

	res := Result{StatusCode: resp.StatusCode}
	if len(parsed.Messages) > 0 {
		res.MessageID = parsed.Messages[0].ID
	}
	return res, nil
}
