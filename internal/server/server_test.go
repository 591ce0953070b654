package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"Switchyard/internal/biz"
	"Switchyard/internal/conf"
	"Switchyard/internal/data"
	"Switchyard/internal/model"
	"Switchyard/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health/grpc_health_v1"
)

type harness struct {
	breaker  *biz.CircuitBreakerUsecase
	registry *biz.ProviderRegistry
	http     http.Handler
}

func newHarness(t *testing.T, token string) *harness {
	t.Helper()
	logger := log.NewStdLogger(os.Stdout)

	bc := &conf.Bootstrap{
		Auth:    &conf.Auth{OperatorToken: token},
		Breaker: &conf.Breaker{Default: model.DefaultCircuitConfig()},
		Providers: []*conf.Provider{
			{Name: "studio-a", Priority: 1, Endpoint: "http://studio-a.invalid"},
			{Name: "studio-b", Priority: 2, Endpoint: "http://studio-b.invalid"},
		},
	}
	providers, err := data.NewRemoteProviders(bc, logger)
	require.NoError(t, err)

	breaker := biz.NewCircuitBreakerUsecase(bc.Breaker, nil, nil, nil, logger)
	cache, err := data.NewSignalCache(nil)
	require.NoError(t, err)
	selection := biz.NewSelectionUsecase(nil, breaker, biz.NewProviderScorer(nil), cache, nil, logger)
	registry, err := biz.NewProviderRegistry(bc, providers, selection, breaker, logger)
	require.NoError(t, err)

	srv := NewHTTPServer(nil, bc.Auth,
		service.NewSelectionService(selection, logger),
		service.NewProviderService(selection, breaker, registry, logger),
		service.NewCircuitService(breaker, logger),
		logger,
	)
	return &harness{breaker: breaker, registry: registry, http: srv}
}

func (h *harness) do(method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.http.ServeHTTP(rec, req)
	return rec
}

func TestHTTPServer_OperatorOverride(t *testing.T) {
	h := newHarness(t, "s3cret")

	rec := h.do(http.MethodPost, "/v1/circuits/studio-a/open", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	state, _ := h.breaker.GetState("studio-a")
	assert.Equal(t, model.CircuitClosed, state)

	rec = h.do(http.MethodPost, "/v1/circuits/studio-a/open", map[string]string{"Authorization": "Bearer s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	state, _ = h.breaker.GetState("studio-a")
	assert.Equal(t, model.CircuitOpen, state)

	rec = h.do(http.MethodPost, "/v1/circuits/studio-a/close", map[string]string{"X-Operator-Token": "s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)
	state, _ = h.breaker.GetState("studio-a")
	assert.Equal(t, model.CircuitClosed, state)
}

func TestHTTPServer_ReadRoutesNeedNoToken(t *testing.T) {
	h := newHarness(t, "s3cret")

	rec := h.do(http.MethodGet, "/v1/circuits", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_providers":2`)

	rec = h.do(http.MethodGet, "/v1/providers", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "studio-b")

	rec = h.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPServer_OverridesDisabledWithoutToken(t *testing.T) {
	h := newHarness(t, "")

	rec := h.do(http.MethodPost, "/v1/circuits/studio-a/reset", map[string]string{"Authorization": "Bearer anything"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCircuitHealthReporter(t *testing.T) {
	h := newHarness(t, "")
	require.NoError(t, h.breaker.Open("studio-b"))

	reporter := NewCircuitHealthReporter(h.registry, h.breaker, log.NewStdLogger(os.Stdout))
	check := func(service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
		resp, err := reporter.Server().Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		return resp.Status
	}

	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check("studio-a"))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check("studio-b"))

	require.NoError(t, h.breaker.Open("studio-a"))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check("studio-a"))

	require.NoError(t, h.breaker.Reset("studio-b"))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check("studio-b"))
}

func TestNewGRPCServer(t *testing.T) {
	h := newHarness(t, "")
	reporter := NewCircuitHealthReporter(h.registry, h.breaker, log.NewStdLogger(os.Stdout))
	srv := NewGRPCServer(nil, reporter, log.NewStdLogger(os.Stdout))
	require.NotNil(t, srv)
	assert.Contains(t, srv.GetServiceInfo(), "grpc.health.v1.Health")
}
