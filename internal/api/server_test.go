package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"esimsync/internal/apperr"
	"esimsync/internal/catalog"
	"esimsync/internal/config"
	"esimsync/internal/fulfillment"
	"esimsync/internal/logger"
	"esimsync/internal/metrics"
	"esimsync/internal/models"
	"esimsync/internal/services/mobimatter"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFulfiller struct {
	result *fulfillment.Result
	err    error
	panic  bool
	got    *models.OrderPaidEvent
}

func (s *stubFulfiller) Fulfill(ctx context.Context, event *models.OrderPaidEvent) (*fulfillment.Result, error) {
	if s.panic {
		panic("boom")
	}
	s.got = event
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return s.result, s.err
}

type stubRecoverer struct{}

func (stubRecoverer) Recover(ctx context.Context) (*fulfillment.RecoveryResult, error) {
	return &fulfillment.RecoveryResult{Processed: 3, Delivered: 2, StillPending: 1}, nil
}

type stubSyncer struct {
	opts catalog.Options
}

func (s *stubSyncer) Run(ctx context.Context, opts catalog.Options) (*catalog.Summary, error) {
	s.opts = opts
	return &catalog.Summary{Created: 1, Skipped: 4}, nil
}

type stubLists struct{}

func (stubLists) List(ctx context.Context) ([]models.PendingOrder, error) { return nil, nil }

type stubDeliveries struct{}

func (stubDeliveries) List(ctx context.Context, limit int) ([]models.Delivery, error) {
	return []models.Delivery{{ProviderOrderCode: "MM1"}}, nil
}

type stubUsage struct{}

func (stubUsage) Usage(ctx context.Context, code string) (*mobimatter.Usage, error) {
	if code == "MM404" {
		return nil, apperr.Pending("stub.Usage")
	}
	return &mobimatter.Usage{OrderCode: code, Status: "ACTIVE"}, nil
}

func newTestRouter(t *testing.T, f *stubFulfiller, s *stubSyncer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	metrics.Register(reg)

	srv := New(&config.Config{Env: "test"}, logger.NewNop(), Deps{
		Fulfiller:  f,
		Recoverer:  stubRecoverer{},
		Syncer:     s,
		Usage:      stubUsage{},
		Pending:    stubLists{},
		Deliveries: stubDeliveries{},
		Gatherer:   reg,
	})
	return srv.Router()
}

func doRequest(router http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

const paidOrder = `{"id":1001,"email":"a@b.com","line_items":[{"sku":"PLAN-5GB-EU","quantity":1}]}`

func TestOrderPaidWebhook(t *testing.T) {
	f := &stubFulfiller{result: &fulfillment.Result{
		OrderID: "1001",
		Lines:   []fulfillment.LineResult{{SKU: "PLAN-5GB-EU", OrderCode: "MM123", State: fulfillment.StateDelivered}},
	}}
	router := newTestRouter(t, f, &stubSyncer{})

	rec := doRequest(router, http.MethodPost, "/webhooks/orders/paid", []byte(paidOrder))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1001", body["order_id"])
	results := body["results"].([]interface{})
	require.Len(t, results, 1)
	assert.Equal(t, "MM123", results[0].(map[string]interface{})["order_code"])

	require.NotNil(t, f.got)
	assert.Equal(t, models.FlexibleID("1001"), f.got.ID)
}

func TestOrderPaidWebhook_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		fulfiller  *stubFulfiller
		wantStatus int
		wantKind   string
	}{
		{
			name:       "malformed_json",
			body:       `{"id":`,
			fulfiller:  &stubFulfiller{},
			wantStatus: http.StatusBadRequest,
			wantKind:   "validation",
		},
		{
			name:       "missing_email",
			body:       `{"id":"1001","line_items":[{"sku":"X","quantity":1}]}`,
			fulfiller:  &stubFulfiller{},
			wantStatus: http.StatusBadRequest,
			wantKind:   "validation",
		},
		{
			name: "provider_unavailable",
			body: paidOrder,
			fulfiller: &stubFulfiller{
				result: &fulfillment.Result{OrderID: "1001", Lines: []fulfillment.LineResult{{SKU: "PLAN-5GB-EU", State: fulfillment.StateFailed}}},
				err:    apperr.E(apperr.KindProviderTransient, "stub", errors.New("503")),
			},
			wantStatus: http.StatusBadGateway,
			wantKind:   "provider_transient",
		},
		{
			name: "provider_rejected",
			body: paidOrder,
			fulfiller: &stubFulfiller{
				result: &fulfillment.Result{OrderID: "1001"},
				err:    apperr.E(apperr.KindProviderRejected, "stub", errors.New("no order id")),
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "provider_rejected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, tt.fulfiller, &stubSyncer{})
			rec := doRequest(router, http.MethodPost, "/webhooks/orders/paid", []byte(tt.body))

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.wantKind, body["kind"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestPanicIsConvertedTo500(t *testing.T) {
	router := newTestRouter(t, &stubFulfiller{panic: true}, &stubSyncer{})

	rec := doRequest(router, http.MethodPost, "/webhooks/orders/paid", []byte(paidOrder))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "unexpected", decode(t, rec)["kind"])
}

func TestJobs(t *testing.T) {
	syncer := &stubSyncer{}
	router := newTestRouter(t, &stubFulfiller{}, syncer)

	rec := doRequest(router, http.MethodPost, "/jobs/recovery", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{"processed": 3.0, "delivered": 2.0, "still_pending": 1.0}, decode(t, rec))

	rec = doRequest(router, http.MethodPost, "/jobs/catalog-sync?prune=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, syncer.opts.Prune)
	body := decode(t, rec)
	assert.Equal(t, 1.0, body["created"])
	assert.Equal(t, 4.0, body["skipped"])
	assert.Equal(t, 0.0, body["removed"])
}

func TestOrderQueries(t *testing.T) {
	router := newTestRouter(t, &stubFulfiller{}, &stubSyncer{})

	rec := doRequest(router, http.MethodGet, "/api/v1/pending-orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, decode(t, rec)["data"])

	rec = doRequest(router, http.MethodGet, "/api/v1/deliveries?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"], 1)

	rec = doRequest(router, http.MethodGet, "/api/v1/orders/MM1/usage", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ACTIVE", decode(t, rec)["status"])

	rec = doRequest(router, http.MethodGet, "/api/v1/orders/MM404/usage", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthMetricsAndCORS(t *testing.T) {
	router := newTestRouter(t, &stubFulfiller{}, &stubSyncer{})

	rec := doRequest(router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = doRequest(router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")

	req := httptest.NewRequest(http.MethodOptions, "/webhooks/orders/paid", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	pre := httptest.NewRecorder()
	router.ServeHTTP(pre, req)
	assert.Equal(t, http.StatusNoContent, pre.Code)
	assert.Equal(t, "*", pre.Header().Get("Access-Control-Allow-Origin"))
}
