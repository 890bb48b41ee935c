package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// PinnacleClient sends template messages through Pinnacle's Cloud API proxy.
type PinnacleClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewPinnacleClient(baseURL, apiKey string, timeout time.Duration) *PinnacleClient {
	return &PinnacleClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *PinnacleClient) Send(ctx context.Context, phoneNumberID string, body []byte) (Result, error) {
	url := fmt.Sprintf("%s/v3/%s/messages", c.baseURL, phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	return do(c.httpClient, req, "pinnacle")
}
