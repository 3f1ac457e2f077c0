package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/lucid/backend"
	"github.com/teilomillet/lucid/config"
	"github.com/teilomillet/lucid/errors"
	"github.com/teilomillet/lucid/mocks"
	"github.com/teilomillet/lucid/wrapper"
	"go.uber.org/zap/zaptest"
)

func stubConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Backend.Kind = "stub"
	cfg.Stub.Output = "stub answer"
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...Option) (*Server, *mocks.MockConfigWatcher) {
	t.Helper()
	watcher := mocks.NewMockConfigWatcher(cfg)
	s, err := NewServerWithConfig(watcher, zaptest.NewLogger(t), opts...)
	require.NoError(t, err)
	return s, watcher
}

func generate(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter(t *testing.T) {
	s, _ := newTestServer(t, stubConfig())
	h := s.Handler()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{name: "form", method: http.MethodGet, path: "/", wantStatus: http.StatusOK},
		{name: "health", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
		{name: "unknown route", method: http.MethodGet, path: "/v1/completions", wantStatus: http.StatusNotFound},
		{name: "wrong method", method: http.MethodGet, path: "/v1/generate", wantStatus: http.StatusMethodNotAllowed},
		{name: "preflight", method: http.MethodOptions, path: "/v1/generate", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestGenerateEndpoint(t *testing.T) {
	s, _ := newTestServer(t, stubConfig())

	rec := generate(t, s.Handler(), `{"question": "What is RAG?", "context": ["doc1 text"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result wrapper.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "stub answer", result.Output)
	assert.Equal(t, "gpt-4o", result.Model)
	assert.Equal(t, backend.KindStub, result.Backend)
	assert.Len(t, result.Messages, 3)
	assert.Nil(t, result.Tokens)
	assert.Nil(t, result.LogProbs)
}

func TestNotFoundEnvelope(t *testing.T) {
	s, _ := newTestServer(t, stubConfig())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	var resp errors.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, errors.NotFoundError, resp.Type)
	assert.Equal(t, rec.Header().Get("X-Request-ID"), resp.RequestID)
}

func TestConfigReloadAppliesToNextRequest(t *testing.T) {
	s, watcher := newTestServer(t, stubConfig())

	rec := generate(t, s.Handler(), `{"question": "Hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var before wrapper.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&before))
	assert.Len(t, before.Messages, 2)

	updated := stubConfig()
	updated.DevMode = true
	updated.Stub.Output = "reloaded"
	watcher.UpdateConfig(updated)

	rec = generate(t, s.Handler(), `{"question": "Hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var after wrapper.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&after))
	assert.Equal(t, "reloaded", after.Output)
	assert.Len(t, after.Messages, 1)
}

func TestMissingCredentialIsBackendError(t *testing.T) {
	cfg := stubConfig()
	cfg.Backend.Kind = "hosted"
	s, _ := newTestServer(t, cfg, WithEnvLookup(func(string) (string, bool) { return "", false }))

	rec := generate(t, s.Handler(), `{"question": "Hi"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp errors.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, errors.BackendError, resp.Type)
	assert.Contains(t, resp.Message, backend.ErrMissingCredential.Error())
}

func TestRateLimitedGenerate(t *testing.T) {
	cfg := stubConfig()
	cfg.Server.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}
	s, _ := newTestServer(t, cfg)

	assert.Equal(t, http.StatusOK, generate(t, s.Handler(), `{"question": "Hi"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, generate(t, s.Handler(), `{"question": "Hi"}`).Code)

	// Health is not rate limited.
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpointCountsInvocations(t *testing.T) {
	s, _ := newTestServer(t, stubConfig())
	require.Equal(t, http.StatusOK, generate(t, s.Handler(), `{"question": "Hi"}`).Code)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `lucid_backend_invocations_total{backend="stub",outcome="success"} 1`)
	assert.Contains(t, body, `lucid_http_requests_total{endpoint="/v1/generate",status="200"} 1`)
}

func TestNewServerWithInvalidContextFile(t *testing.T) {
	cfg := stubConfig()
	cfg.Context.File = "/nonexistent/lucid-context.txt"
	_, err := NewServerWithConfig(mocks.NewMockConfigWatcher(cfg), zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestServeAndShutdown(t *testing.T) {
	s, _ := newTestServer(t, stubConfig())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	baseURL := fmt.Sprintf("http://%s", ln.Addr().String())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond, "server failed to start")

	resp, err := http.Post(baseURL+"/v1/generate", "application/json", strings.NewReader(`{"question": "Hi"}`))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "stub answer")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
