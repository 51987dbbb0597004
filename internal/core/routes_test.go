package core

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowdensity/internal/types"
)

func TestMountRoutes_V1Registrars(t *testing.T) {
	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
			JSON(w, r, http.StatusOK, APIResponse{Data: []string{"sturm"}})
		})
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/models", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":["sturm"]}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestMountRoutes_MetricsEndpoint(t *testing.T) {
	cfgSrv := newTestServer(t)
	rec := httptest.NewRecorder()
	cfgSrv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "metrics is only mounted when a handler is provided")

	srv, err := NewServer(cfgSrv.Config, discardLogger())
	require.NoError(t, err)
	srv.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	srv.MountRoutes()

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}

func TestMountRoutes_RecordsRoutePattern(t *testing.T) {
	metrics := &fakeMetrics{}
	srv := newTestServer(t)
	srv, err := NewServer(srv.Config, discardLogger())
	require.NoError(t, err)
	srv.Metrics = metrics
	srv.V1RouteRegistrars = []func(chi.Router){func(r chi.Router) {
		r.Post("/density/{model}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})
	}}
	srv.MountRoutes()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/density/sturm", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []recordedRequest{{"POST", "/v1/density/{model}", "202"}}, metrics.recorded())
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36, "a UUID is generated when the header is absent")
	assert.Equal(t, seen, rec.Header().Get("X-Request-Id"))
}

func TestContextTimeoutMiddleware(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := ContextTimeoutMiddleware(50 * time.Millisecond)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
}

func TestServer_RequestTimeoutDefault(t *testing.T) {
	srv, err := NewServer(newTestServer(t).Config, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, time.Second, srv.requestTimeout())

	srv.Config.Server.RequestTimeout = 0
	assert.Equal(t, defaultRequestTimeout, srv.requestTimeout())
}
