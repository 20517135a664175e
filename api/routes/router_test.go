package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/openbillingstore/billing-core/api/controllers"
	"github.com/openbillingstore/billing-core/api/middleware"
	"github.com/openbillingstore/billing-core/internal/orders"
	"github.com/openbillingstore/billing-core/internal/payments"
	"github.com/openbillingstore/billing-core/pkg/config"
	"github.com/openbillingstore/billing-core/pkg/enums"
	"github.com/openbillingstore/billing-core/pkg/metrics"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type memoryStore struct {
	data map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type countingOrders struct {
	calls int
	input orders.InitOrderInput
}

func (c *countingOrders) InitOrder(_ context.Context, input orders.InitOrderInput) (*orders.InitOrderResult, error) {
	c.calls++
	c.input = input
	return &orders.InitOrderResult{ResultCode: "SUCCESS", OrderID: "ORD-2025060112-000001"}, nil
}

// stubPayments embeds the interface so tests override only what they route to.
type stubPayments struct {
	payments.Service
	retrieved string
	updated   string
}

func (s *stubPayments) Gateways() []enums.PaymentProvider {
	return []enums.PaymentProvider{enums.PaymentProviderStripe}
}

func (s *stubPayments) RetrievePayment(_ context.Context, id string) payments.Result {
	s.retrieved = id
	return payments.Result{Success: true, PaymentID: id}
}

func (s *stubPayments) UpdateSubscription(_ context.Context, input payments.UpdateSubscriptionInput) payments.Result {
	s.updated = input.SubscriptionID
	return payments.Result{Success: true, SubscriptionID: input.SubscriptionID}
}

const checkoutOrigin = "https://checkout.tenant-a.test"

type harness struct {
	handler  http.Handler
	orders   *countingOrders
	payments *stubPayments
}

func newHarness(redisErr error) *harness {
	cfg := &config.Config{
		App:  config.AppConfig{Env: "test"},
		HTTP: config.HTTPConfig{CORSOrigins: []string{checkoutOrigin}, CORSMaxAge: 300},
		Eventing: config.EventingConfig{
			HTTPIdempotencyHeader: "Idempotency-Key",
			HTTPIdempotencyTTL:    time.Hour,
		},
	}
	reg := prometheus.NewRegistry()
	h := &harness{orders: &countingOrders{}, payments: &stubPayments{}}
	h.handler = NewRouter(Params{
		Config:      cfg,
		DB:          stubPinger{},
		Redis:       stubPinger{err: redisErr},
		Idempotency: &memoryStore{data: map[string]string{}},
		Orders:      h.orders,
		Payments:    h.payments,
		Gatherer:    reg,
		Metrics:     metrics.NewHTTPMetrics(reg),
	})
	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	h.handler.ServeHTTP(resp, req)
	return resp
}

func TestHealthRoutes(t *testing.T) {
	h := newHarness(nil)
	require.Equal(t, http.StatusOK, h.do(httptest.NewRequest(http.MethodGet, "/health/live", nil)).Code)
	require.Equal(t, http.StatusOK, h.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil)).Code)

	degraded := newHarness(errors.New("redis down"))
	require.Equal(t, http.StatusServiceUnavailable, degraded.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil)).Code)
}

func TestOrderInitReplaysRepeatedKey(t *testing.T) {
	h := newHarness(nil)
	body := `{"productId":"PRO","userId":"u-1","countryCode":"US"}`
	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/init", strings.NewReader(body))
		req.Header.Set(middleware.ServiceIDHeader, "svc-a")
		req.Header.Set("Idempotency-Key", "init-1")
		return h.do(req)
	}

	first := send()
	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, "svc-a", h.orders.input.ServiceID)

	second := send()
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	require.Equal(t, first.Body.String(), second.Body.String())
	require.Equal(t, 1, h.orders.calls)
}

func TestCORSPreflightForCheckoutOrigin(t *testing.T) {
	h := newHarness(nil)
	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/payments/pay", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type, Idempotency-Key, X-Service-Id")
		return h.do(req)
	}

	resp := preflight(checkoutOrigin)
	require.Equal(t, checkoutOrigin, resp.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	resp = preflight("https://evil.test")
	require.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/gateways", nil)
	req.Header.Set("Origin", checkoutOrigin)
	resp = h.do(req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, checkoutOrigin, resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestStaticPaymentRoutesWinOverPaymentID(t *testing.T) {
	h := newHarness(nil)

	resp := h.do(httptest.NewRequest(http.MethodGet, "/api/v1/payments/gateways", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "STRIPE")
	require.Empty(t, h.payments.retrieved)

	resp = h.do(httptest.NewRequest(http.MethodGet, "/api/v1/payments/pay_123", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "pay_123", h.payments.retrieved)
}

func TestSubscriptionUpdateRoute(t *testing.T) {
	h := newHarness(nil)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/subscriptions/sub_9", strings.NewReader(`{"paymentMethodId":"pm_1"}`))
	resp := h.do(req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "sub_9", h.payments.updated)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(nil)
	h.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))

	resp := h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "billing_http_requests_total")
}

func TestProbeRouter(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	h := NewProbeRouter(cfg, nil, map[string]controllers.Pinger{"pubsub": stubPinger{err: errors.New("topic missing")}})

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)

	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
}
