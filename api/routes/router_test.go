package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fulfillment-engine/api/middleware"
	"github.com/angelmondragon/fulfillment-engine/internal/activity"
	"github.com/angelmondragon/fulfillment-engine/internal/fulfillment"
	"github.com/angelmondragon/fulfillment-engine/internal/stock"
	"github.com/angelmondragon/fulfillment-engine/internal/transactions"
	"github.com/angelmondragon/fulfillment-engine/pkg/config"
	"github.com/angelmondragon/fulfillment-engine/pkg/db"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
	"github.com/angelmondragon/fulfillment-engine/pkg/metrics"
)

type testServer struct {
	*httptest.Server
	client *db.Client
	actor  uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	client := dbtest.Open(t)
	cfg := &config.Config{
		App: config.AppConfig{Env: "dev"},
		Fulfillment: config.FulfillmentConfig{
			StoreTimeout:         5 * time.Second,
			IdentifierAttempts:   5,
			SalePrefix:           "SALE",
			OrderPrefix:          "ORD",
			UnknownProductPolicy: "skip",
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}

	svc, err := fulfillment.NewService(fulfillment.ServiceParams{
		Tx:           client,
		Transactions: transactions.NewRepository(client.DB()),
		Config:       cfg.Fulfillment,
	})
	require.NoError(t, err)
	recorder, err := activity.NewRecorder(activity.NewRepository(client.DB()), nil)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	handler := NewRouter(cfg, logger.Nop(), Deps{
		DB:                 client,
		Fulfillment:        svc,
		Activity:           recorder,
		Stock:              stock.NewReader(client.DB(), nil),
		FulfillmentMetrics: metrics.NewFulfillmentMetrics(reg),
		HTTPMetrics:        metrics.NewHTTPMetrics(reg),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, client: client, actor: uuid.New()}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ActorHeader, s.actor.String())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	out, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data envelope, got %v", body)
	}
	return out
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	envelope, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	return envelope["code"].(string)
}

func TestHealthRoutes(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "dev", resp.Header.Get("X-Fulfillment-Env"))

	resp, err = http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	checks := data(t, body)["checks"].(map[string]any)
	assert.Equal(t, "up", checks["database"])
	assert.NotContains(t, checks, "redis")
}

func TestAPIRequiresActor(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/transactions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSaleLifecycle(t *testing.T) {
	srv := newTestServer(t)
	product := dbtest.SeedProduct(t, srv.client, "MUG-1", 500, 10)

	status, body := srv.do(t, http.MethodPost, "/api/v1/transactions", map[string]any{
		"kind":                "sale",
		"items":               []map[string]any{{"product_id": product.ID, "quantity": 3}},
		"discount_percentage": "10",
		"tax_percentage":      "5",
		"payment_method":      "card",
	})
	require.Equal(t, http.StatusCreated, status, "body: %v", body)
	committed := data(t, body)
	assert.Equal(t, "completed", committed["status"])
	assert.True(t, strings.HasPrefix(committed["number"].(string), "SALE-"))
	totals := committed["totals"].(map[string]any)
	assert.EqualValues(t, 1500, totals["subtotal_cents"])
	assert.EqualValues(t, 150, totals["discount_cents"])
	assert.EqualValues(t, 68, totals["tax_cents"])
	assert.EqualValues(t, 1418, totals["final_cents"])

	txnID := committed["transaction_id"].(string)

	status, body = srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/products/%s/stock", product.ID), nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 7, data(t, body)["available_quantity"])

	status, body = srv.do(t, http.MethodGet, "/api/v1/transactions/"+txnID, nil)
	require.Equal(t, http.StatusOK, status)
	detail := data(t, body)
	assert.Len(t, detail["items"], 1)
	assert.Equal(t, srv.actor.String(), detail["created_by"])

	status, body = srv.do(t, http.MethodPost, "/api/v1/transactions/"+txnID+"/void", nil)
	require.Equal(t, http.StatusOK, status, "body: %v", body)
	assert.Equal(t, "voided", data(t, body)["status"])
	assert.EqualValues(t, 3, data(t, body)["released_units"])
	assert.Equal(t, 10, dbtest.Quantity(t, srv.client, product.ID))

	status, body = srv.do(t, http.MethodPost, "/api/v1/transactions/"+txnID+"/void", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(pkgerrors.CodeAlreadyVoided), errorCode(t, body))

	status, body = srv.do(t, http.MethodGet, "/api/v1/transactions/"+txnID+"/activity", nil)
	require.Equal(t, http.StatusOK, status)
	events := data(t, body)["events"].([]any)
	require.Len(t, events, 2)
	assert.Equal(t, "transaction_committed", events[0].(map[string]any)["action"])
	assert.Equal(t, "transaction_voided", events[1].(map[string]any)["action"])
}

func TestOrderStatusUpdates(t *testing.T) {
	srv := newTestServer(t)
	product := dbtest.SeedProduct(t, srv.client, "LAMP-1", 2500, 4)

	status, body := srv.do(t, http.MethodPost, "/api/v1/transactions", map[string]any{
		"kind":           "order",
		"customer":       map[string]any{"name": "Ada", "email": "ada@example.com"},
		"items":          []map[string]any{{"product_id": product.ID, "quantity": 1}},
		"payment_method": "transfer",
	})
	require.Equal(t, http.StatusCreated, status, "body: %v", body)
	committed := data(t, body)
	assert.Equal(t, "pending", committed["status"])
	txnID := committed["transaction_id"].(string)

	status, body = srv.do(t, http.MethodPatch, "/api/v1/transactions/"+txnID+"/status", map[string]any{"status": "shipped"})
	require.Equal(t, http.StatusOK, status, "body: %v", body)
	assert.Equal(t, true, data(t, body)["changed"])

	status, body = srv.do(t, http.MethodPatch, "/api/v1/transactions/"+txnID+"/status", map[string]any{"status": "voided"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(pkgerrors.CodeInvalidParameter), errorCode(t, body))

	status, body = srv.do(t, http.MethodPatch, "/api/v1/transactions/"+txnID+"/status", map[string]any{"status": "teleported"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(pkgerrors.CodeInvalidParameter), errorCode(t, body))

	status, body = srv.do(t, http.MethodGet, "/api/v1/transactions?kind=order&status=shipped", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, data(t, body)["transactions"], 1)

	status, body = srv.do(t, http.MethodGet, "/api/v1/transactions?kind=sale", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, data(t, body)["transactions"])
}

func TestCommitRejections(t *testing.T) {
	srv := newTestServer(t)
	product := dbtest.SeedProduct(t, srv.client, "PEN-1", 100, 2)

	cases := []struct {
		name   string
		body   map[string]any
		status int
		code   pkgerrors.Code
	}{
		{
			name:   "empty cart",
			body:   map[string]any{"kind": "sale", "items": []any{}, "payment_method": "cash"},
			status: http.StatusBadRequest,
			code:   pkgerrors.CodeNoLineItems,
		},
		{
			name: "not enough stock",
			body: map[string]any{
				"kind":           "sale",
				"items":          []map[string]any{{"product_id": product.ID, "quantity": 5}},
				"payment_method": "cash",
			},
			status: http.StatusConflict,
			code:   pkgerrors.CodeInsufficientStock,
		},
		{
			name: "discount out of range",
			body: map[string]any{
				"kind":                "sale",
				"items":               []map[string]any{{"product_id": product.ID, "quantity": 1}},
				"discount_percentage": "150",
				"payment_method":      "cash",
			},
			status: http.StatusBadRequest,
			code:   pkgerrors.CodeInvalidParameter,
		},
		{
			name: "only unknown products",
			body: map[string]any{
				"kind":           "sale",
				"items":          []map[string]any{{"product_id": uuid.New(), "quantity": 1}},
				"payment_method": "cash",
			},
			status: http.StatusUnprocessableEntity,
			code:   pkgerrors.CodeNoValidLineItems,
		},
		{
			name:   "unknown field",
			body:   map[string]any{"kind": "sale", "payment_method": "cash", "coupon": "FREE"},
			status: http.StatusBadRequest,
			code:   pkgerrors.CodeInvalidParameter,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := srv.do(t, http.MethodPost, "/api/v1/transactions", tc.body)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, string(tc.code), errorCode(t, body))
		})
	}

	assert.Equal(t, 2, dbtest.Quantity(t, srv.client, product.ID))
}

func TestUnknownTransactionAndProduct(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, http.MethodGet, "/api/v1/transactions/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(pkgerrors.CodeNotFound), errorCode(t, body))

	status, body = srv.do(t, http.MethodGet, "/api/v1/transactions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(pkgerrors.CodeInvalidParameter), errorCode(t, body))

	status, body = srv.do(t, http.MethodGet, "/api/v1/products/"+uuid.NewString()+"/stock", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(pkgerrors.CodeNotFound), errorCode(t, body))
}

func TestMetricsEndpointExposesCommitCounters(t *testing.T) {
	srv := newTestServer(t)
	product := dbtest.SeedProduct(t, srv.client, "CUP-1", 300, 5)

	status, _ := srv.do(t, http.MethodPost, "/api/v1/transactions", map[string]any{
		"kind":           "sale",
		"items":          []map[string]any{{"product_id": product.ID, "quantity": 1}},
		"payment_method": "cash",
	})
	require.Equal(t, http.StatusCreated, status)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(raw), "fulfillment_commits_total")
	assert.Contains(t, string(raw), "fulfillment_http_requests_total")
}
