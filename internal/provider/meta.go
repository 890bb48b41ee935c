package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// MetaCloudClient sends template messages through the WhatsApp Cloud API.
type MetaCloudClient struct {
	baseURL     string
	apiVersion  string
	accessToken string
	httpClient  *http.Client
}

func NewMetaCloudClient(baseURL, apiVersion, accessToken string, timeout time.Duration) *MetaCloudClient {
	return &MetaCloudClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiVersion:  apiVersion,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (c *MetaCloudClient) Send(ctx context.Context, phoneNumberID string, body []byte) (Result, error) {
	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	return do(c.httpClient, req, "meta_cloud")
}
