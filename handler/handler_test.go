package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/portfolioos/quantd/config"
	"github.com/portfolioos/quantd/internal/engine/sidecar"
	"github.com/portfolioos/quantd/runtime"
)

// --- Mock handler ---
type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) Handle(ctx context.Context, req runtime.Request) runtime.Response {
	args := m.Called(ctx, req)
	return args.Get(0).(runtime.Response)
}

// --- Mock runtime ---
type MockRuntime struct {
	mock.Mock
}

func (m *MockRuntime) Handle(ctx context.Context, req runtime.EvalRequest) (json.RawMessage, error) {
	panic("Not required")
}

func (m *MockRuntime) Start(ctx context.Context) error {
	panic("Not required")
}

func (m *MockRuntime) Shutdown(ctx context.Context) error {
	panic("Not required")
}

func (m *MockRuntime) Stats() []sidecar.Stats {
	args := m.Called()
	return args.Get(0).([]sidecar.Stats)
}

// --- Tests ---
func TestServeHTTP_Success(t *testing.T) {
	mockHandler := new(MockHandler)

	reqBody := []byte(`{"method":"engine.ping","params":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/eval", bytes.NewReader(reqBody))
	req.Header.Set("X-API-Key", "secret")

	w := httptest.NewRecorder()

	expectedResponse := runtime.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(`{"ok":true}`),
	}

	mockHandler.On("Handle", mock.Anything, mock.MatchedBy(func(r runtime.Request) bool {
		return r.Path == "/api/v1/eval" &&
			r.Method == http.MethodPost &&
			bytes.Equal(r.Body, reqBody)
	})).Return(expectedResponse)

	handler := &EvalHandler{
		handler: mockHandler,
		log:     zap.NewNop(),
		config: config.Config{
			Auth: config.AuthConfig{ApiKey: "secret"},
		},
	}

	handler.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	assert.Equal(t, `{"ok":true}`, string(body))
	mockHandler.AssertExpectations(t)
}

func TestServeHTTP_Unauthorized(t *testing.T) {
	mockHandler := new(MockHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/eval", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-API-Key", "wrong-key")

	w := httptest.NewRecorder()

	handler := &EvalHandler{
		handler: mockHandler, // won't be called
		log:     zap.NewNop(),
		config: config.Config{
			Auth: config.AuthConfig{ApiKey: "secret"},
		},
	}

	handler.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)

	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Contains(t, string(body), "unauthorized")

	// Ensure handler was not called
	mockHandler.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
}

func TestServeHTTP_NoAuthConfigured(t *testing.T) {
	mockHandler := new(MockHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/eval", bytes.NewReader([]byte(`{}`)))

	w := httptest.NewRecorder()

	mockHandler.On("Handle", mock.Anything, mock.Anything).Return(runtime.Response{
		StatusCode: http.StatusOK,
		Body:       []byte(`{}`),
	})

	// no api key configured, requests pass through without the header
	handler := &EvalHandler{
		handler: mockHandler,
		log:     zap.NewNop(),
		config:  config.Config{},
	}

	handler.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	mockHandler.AssertExpectations(t)
}

func TestServeHTTP_BodyTooLarge(t *testing.T) {
	mockHandler := new(MockHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/eval", bytes.NewReader(make([]byte, maxRequestBytes+1)))

	w := httptest.NewRecorder()

	handler := &EvalHandler{
		handler: mockHandler,
		log:     zap.NewNop(),
		config:  config.Config{},
	}

	handler.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)
	mockHandler.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
}

func TestHealth_OK(t *testing.T) {
	mockRT := new(MockRuntime)
	mockRT.On("Stats").Return([]sidecar.Stats{
		{Running: true, Pid: 42, Uptime: 3 * time.Second, Restarts: 1},
	})

	handler := &HealthHandler{runtime: mockRT, log: zap.NewNop()}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)

	var health healthResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&health))

	assert.Equal(t, "ok", health.Status)
	require.Len(t, health.Engines, 1)
	assert.True(t, health.Engines[0].Running)
	assert.Equal(t, 42, health.Engines[0].Pid)
	assert.Equal(t, 1, health.Engines[0].Restarts)
	assert.InDelta(t, 3.0, health.Engines[0].UptimeSeconds, 0.01)
}

func TestHealth_EngineDown(t *testing.T) {
	mockRT := new(MockRuntime)
	mockRT.On("Stats").Return([]sidecar.Stats{
		{Running: false, PermanentlyFailed: true, Restarts: 5},
	})

	handler := &HealthHandler{runtime: mockRT, log: zap.NewNop()}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	var health healthResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&health))

	assert.Equal(t, "unavailable", health.Status)
	require.Len(t, health.Engines, 1)
	assert.True(t, health.Engines[0].PermanentlyFailed)
}

func TestHealth_NoEngines(t *testing.T) {
	mockRT := new(MockRuntime)
	mockRT.On("Stats").Return([]sidecar.Stats{})

	handler := &HealthHandler{runtime: mockRT, log: zap.NewNop()}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}
