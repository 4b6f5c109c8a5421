package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mirador/internal/auth"
	"mirador/internal/storage"
)

type testEnv struct {
	srv         *httptest.Server
	store       *storage.Storage
	auth        *auth.Auth
	ingestToken string
	readToken   string
	adminToken  string
	principalID string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()

	store, err := storage.New("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	a, err := auth.New(":memory:", "test-pepper", logger)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	ctx := context.Background()
	principal, err := a.CreatePrincipal(ctx, "checkout")
	require.NoError(t, err)

	ingestToken, _, err := a.CreateToken(ctx, principal.ID, "ingest", auth.ScopeIngest, nil, "")
	require.NoError(t, err)
	readToken, _, err := a.CreateToken(ctx, principal.ID, "read", auth.ScopeRead, nil, "")
	require.NoError(t, err)
	adminToken, _, err := a.CreateToken(ctx, principal.ID, "admin", auth.ScopeAdmin, nil, "")
	require.NoError(t, err)

	httpServer := New(Config{Port: 0}, store, a, logger)
	srv := httptest.NewServer(httpServer.Handler)
	t.Cleanup(srv.Close)

	return &testEnv{
		srv:         srv,
		store:       store,
		auth:        a,
		ingestToken: ingestToken,
		readToken:   readToken,
		adminToken:  adminToken,
		principalID: principal.ID,
	}
}

func (e *testEnv) request(t *testing.T, method, path, token, contentType string, body []byte) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, e.srv.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

// telemetryPayload builds an export request with one span ending 50ms after
// it starts, status OK.
func telemetryPayload(start time.Time) []byte {
	startNano := start.UnixNano()
	endNano := start.Add(50 * time.Millisecond).UnixNano()

	payload := fmt.Sprintf(`{
		"resourceSpans": [{
			"resource": {
				"attributes": [
					{"key": "service.name", "value": {"stringValue": "checkout"}},
					{"key": "service.version", "value": {"stringValue": "1.2.0"}}
				]
			},
			"scopeSpans": [{
				"scope": {"name": "manual", "version": "0.1.0"},
				"spans": [{
					"traceId": "5b8efff798038103d269b633813fc60c",
					"spanId": "eee19b7ec3c1b174",
					"name": "charge-card",
					"kind": 2,
					"startTimeUnixNano": "%d",
					"endTimeUnixNano": "%d",
					"status": {"code": 1},
					"attributes": [
						{"key": "payment.amount", "value": {"doubleValue": 42.5}}
					]
				}]
			}]
		}]
	}`, startNano, endNano)

	return []byte(payload)
}

func TestTelemetryIngestEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/v1/telemetry", env.ingestToken,
		"application/json", telemetryPayload(time.Now().Add(-time.Minute)))
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		SpansProcessed   int `json:"spansProcessed"`
		MetricsProcessed int `json:"metricsProcessed"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 1, result.SpansProcessed)
	assert.Equal(t, 0, result.MetricsProcessed)
}

func TestTelemetryThenQuery(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/v1/telemetry", env.ingestToken,
		"application/json", telemetryPayload(time.Now().Add(-time.Minute)))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Default query window is the trailing hour, which covers the span above.
	resp = env.request(t, http.MethodGet, "/api/spans", env.readToken, "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Items []storage.SpanRecord `json:"items"`
		Count int                  `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "charge-card", list.Items[0].OperationName)
	assert.Equal(t, "eee19b7ec3c1b174", list.Items[0].SpanID)
}

func TestTelemetryRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/v1/telemetry", "",
		"application/json", telemetryPayload(time.Now()))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTelemetryRejectsWrongScope(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/v1/telemetry", env.readToken,
		"application/json", telemetryPayload(time.Now()))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestTelemetryRejectsBadJSON(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/v1/telemetry", env.ingestToken,
		"application/json", []byte(`{"resourceSpans": [`))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTelemetryRejectsWrongContentType(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/v1/telemetry", env.ingestToken,
		"text/plain", []byte("not telemetry"))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestTracesEndpointAcceptsJSON(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/v1/traces", env.ingestToken,
		"application/json", telemetryPayload(time.Now().Add(-time.Minute)))
	defer resp.Body.Close()

	// OTLP/HTTP success is an empty ExportTraceServiceResponse.
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/health", "", "", nil)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "connected", health.Database)
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/v1/telemetry", env.ingestToken,
		"application/json", telemetryPayload(time.Now().Add(-time.Minute)))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/stats", env.readToken, "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats StatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.Tables.Resources)
	assert.Equal(t, int64(1), stats.Tables.Traces)
	assert.Equal(t, int64(1), stats.Tables.Spans)
	assert.Nil(t, stats.Cleanup)
}

func TestAdminTokenLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// Create
	body := fmt.Sprintf(`{"principal_id": %q, "name": "ci", "scopes": "ingest,read"}`, env.principalID)
	resp := env.request(t, http.MethodPost, "/admin/tokens", env.adminToken,
		"application/json", []byte(body))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID     string `json:"id"`
		Token  string `json:"token"`
		Scopes string `json:"scopes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	assert.True(t, strings.HasPrefix(created.Token, "mrd_"))
	assert.Equal(t, "ingest,read", created.Scopes)

	// The fresh token works for ingestion.
	resp = env.request(t, http.MethodPost, "/v1/telemetry", created.Token,
		"application/json", telemetryPayload(time.Now().Add(-time.Minute)))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Revoke
	resp = env.request(t, http.MethodDelete, "/admin/tokens/"+created.ID, env.adminToken, "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The revoked token is rejected.
	resp = env.request(t, http.MethodPost, "/v1/telemetry", created.Token,
		"application/json", telemetryPayload(time.Now()))
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminRequiresAdminScope(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/admin/tokens", env.readToken, "", nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestIngestBackpressure(t *testing.T) {
	sem := NewSemaphore(1)

	release := make(chan struct{})
	started := make(chan struct{})
	handler := sem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	}))

	srv := httptest.NewServer(handler)
	defer srv.Close()

	go srv.Client().Get(srv.URL)
	<-started

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	close(release)
}
