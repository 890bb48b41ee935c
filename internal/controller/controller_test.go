package controller_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/wa-dispatch/internal/controller"
	appErrors "github.com/unclebandit/wa-dispatch/internal/errors"
	"github.com/unclebandit/wa-dispatch/internal/model"
	"github.com/unclebandit/wa-dispatch/internal/queue"
	"github.com/unclebandit/wa-dispatch/internal/ratelimit"
	"github.com/unclebandit/wa-dispatch/internal/service"
	"github.com/unclebandit/wa-dispatch/internal/webhook"
)

// --- Mock Repositories ---

type MockCampaignRepo struct {
	campaign *model.Campaign
}

func (m *MockCampaignRepo) GetByID(_ context.Context, id int64) (*model.Campaign, error) {
	if m.campaign == nil || m.campaign.ID != id {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return m.campaign, nil
}

func (m *MockCampaignRepo) UpdateStatus(context.Context, int64, string) error { return nil }

type MockStats struct{}

func (MockStats) StatsByCampaign(context.Context, int64) (map[string]int, error) {
	return map[string]int{"sent": 3, "delivered": 2}, nil
}

func newCampaignRouter(q *queue.BoundedQueue[model.OutboundItem]) http.Handler {
	repo := &MockCampaignRepo{campaign: &model.Campaign{
		ID: 7, BusinessID: 3, Name: "March invoices", Provider: model.ProviderPinnacle,
		TemplateName: "invoice_due", LanguageCode: "en", Status: "running",
	}}
	ctrl := &controller.CampaignController{
		DispatchService: service.NewDispatchService(repo, q),
		CampaignService: &service.CampaignService{CampaignRepo: repo, SendLogs: MockStats{}},
	}
	r := chi.NewRouter()
	r.Get("/campaigns/{id}", ctrl.GetCampaignDetails)
	r.Post("/campaigns/{id}/dispatch", ctrl.Dispatch)
	return r
}

func TestDispatchHandlerAccepts(t *testing.T) {
	q := queue.NewBoundedQueue[model.OutboundItem]("test_outbound", 10)
	r := newCampaignRouter(q)

	body := `{"phone_number_id":"2000","recipients":[
		{"recipient_id":1,"phone":"254700000001","body_params":["Alice","INV-42"]},
		{"recipient_id":2,"phone":"254700000002","body_params":["Bob","INV-43"]}]}`
	req := httptest.NewRequest(http.MethodPost, "/campaigns/7/dispatch", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var res service.DispatchResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, 2, res.Queued)
	assert.Equal(t, 2, q.Len())

	item, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PINNACLE|2000", item.SenderKey())
}

func TestDispatchHandlerReportsRejections(t *testing.T) {
	q := queue.NewBoundedQueue[model.OutboundItem]("test_outbound", 10)
	r := newCampaignRouter(q)

	body := `{"phone_number_id":"2000","header":{"kind":"video"},"recipients":[
		{"recipient_id":1,"phone":"254700000001","body_params":["Alice"]}]}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/campaigns/7/dispatch", strings.NewReader(body)))

	require.Equal(t, http.StatusBadRequest, w.Code)
	var res service.DispatchResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, int64(1), res.Rejected[0].RecipientID)
	assert.Zero(t, q.Len())
}

func TestDispatchHandlerBadInput(t *testing.T) {
	r := newCampaignRouter(queue.NewBoundedQueue[model.OutboundItem]("test_outbound", 1))

	cases := map[string]struct {
		path, body string
		want       int
	}{
		"bad id":        {"/campaigns/abc/dispatch", `{}`, http.StatusBadRequest},
		"bad json":      {"/campaigns/7/dispatch", `{`, http.StatusBadRequest},
		"no recipients": {"/campaigns/7/dispatch", `{"recipients":[]}`, http.StatusBadRequest},
		"unknown":       {"/campaigns/8/dispatch", `{"recipients":[{"recipient_id":1,"phone":"254700000001"}]}`, http.StatusNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body)))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestGetCampaignDetails(t *testing.T) {
	r := newCampaignRouter(queue.NewBoundedQueue[model.OutboundItem]("test_outbound", 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/campaigns/7", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var d service.CampaignDetails
	require.NoError(t, json.NewDecoder(w.Body).Decode(&d))
	assert.Equal(t, 5, d.Stats["total"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/campaigns/8", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func newWebhookRouter(q *queue.BoundedQueue[model.WebhookPayload]) http.Handler {
	ctrl := &controller.WebhookController{
		Ingestor:    webhook.NewIngestor(q, 20*time.Millisecond),
		VerifyToken: "s3cret",
	}
	r := chi.NewRouter()
	r.Get("/webhooks/{provider}", ctrl.Verify)
	r.Post("/webhooks/{provider}", ctrl.Receive)
	return r
}

func TestWebhookVerify(t *testing.T) {
	r := newWebhookRouter(queue.NewBoundedQueue[model.WebhookPayload]("test_webhook", 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks/meta?hub.mode=subscribe&hub.verify_token=s3cret&hub.challenge=1158201444", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1158201444", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks/meta?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWebhookReceive(t *testing.T) {
	q := queue.NewBoundedQueue[model.WebhookPayload]("test_webhook", 1)
	r := newWebhookRouter(q)

	post := func(body string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhooks/meta", strings.NewReader(body)))
		return w.Code
	}

	assert.Equal(t, http.StatusBadRequest, post(`not json`))
	assert.Equal(t, http.StatusOK, post(`{"object":"whatsapp_business_account","entry":[]}`))
	assert.Equal(t, http.StatusServiceUnavailable, post(`{"object":"whatsapp_business_account","entry":[]}`), "full queue answers 503")

	p, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "meta", p.Provider)
}

func TestWebhookReceiveOversizedBody(t *testing.T) {
	q := queue.NewBoundedQueue[model.WebhookPayload]("test_webhook", 1)
	r := newWebhookRouter(q)

	// valid JSON just over 1 MiB
	body := `{"pad":"` + strings.Repeat("x", 1<<20) + `"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhooks/meta", strings.NewReader(body)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Zero(t, q.Len())
}

func TestRateLimitUpdate(t *testing.T) {
	limiter, err := ratelimit.NewLimiter(ratelimit.Limits{PermitsPerSecond: 10, Burst: 10})
	require.NoError(t, err)
	ctrl := &controller.RateLimitController{Limiter: limiter}
	r := chi.NewRouter()
	r.Get("/rate-limits/{senderKey}", ctrl.GetLimits)
	r.Put("/rate-limits/{senderKey}", ctrl.UpdateLimits)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/rate-limits/META_CLOUD%7C1000", strings.NewReader(`{"permits_per_second":2,"burst":4}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ratelimit.Limits{PermitsPerSecond: 2, Burst: 4}, limiter.LimitsFor("META_CLOUD|1000"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/rate-limits/META_CLOUD%7C1000", strings.NewReader(`{"permits_per_second":0,"burst":4}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rate-limits/PINNACLE%7C2000", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"permits_per_second":10`)
}

func TestTemplateRegistrationHeader(t *testing.T) {
	ctrl := &controller.TemplateController{}
	r := chi.NewRouter()
	r.Post("/templates/registration-header", ctrl.RegistrationHeader)

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/templates/registration-header", strings.NewReader(body)))
		return w
	}

	w := post(`{"kind":"image","handles":["4::aW1n"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Header struct {
			Type    string `json:"type"`
			Format  string `json:"format"`
			Example struct {
				HeaderHandle []string `json:"header_handle"`
			} `json:"example"`
		} `json:"header"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "HEADER", got.Header.Type)
	assert.Equal(t, "IMAGE", got.Header.Format)
	assert.Equal(t, []string{"4::aW1n"}, got.Header.Example.HeaderHandle)

	assert.Equal(t, http.StatusBadRequest, post(`{"kind":"document"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`not json`).Code)
	assert.JSONEq(t, `{"header":null}`, post(`{"kind":"none"}`).Body.String())
}
