package core

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowdensity/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordedRequest struct {
	method, endpoint, status string
}

type fakeMetrics struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (m *fakeMetrics) RecordRequest(method, endpoint, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, recordedRequest{method, endpoint, status})
}

func (m *fakeMetrics) recorded() []recordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedRequest(nil), m.requests...)
}

func newTestServer(t *testing.T, registrars ...func(chi.Router)) *Server {
	t.Helper()
	cfg := &config.Config{Environment: "local"}
	cfg.Server.RequestTimeout = time.Second

	srv, err := NewServer(cfg, discardLogger())
	require.NoError(t, err)
	srv.V1RouteRegistrars = registrars
	srv.MountRoutes()
	return srv
}

func TestNewServer(t *testing.T) {
	srv, err := NewServer(&config.Config{}, discardLogger())
	require.NoError(t, err)
	assert.NotNil(t, srv.Handler())
	assert.Same(t, srv.Router(), srv.Handler())

	_, err = NewServer(nil, discardLogger())
	assert.Error(t, err)

	_, err = NewServer(&config.Config{}, nil)
	assert.Error(t, err)
}

func TestServer_Shutdown(t *testing.T) {
	srv := newTestServer(t)
	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestServer_UnknownRouteIs404(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
