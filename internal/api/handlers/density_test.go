package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"snowdensity/internal/api"
	"snowdensity/internal/artifact"
	"snowdensity/internal/dataset"
	"snowdensity/internal/density"
	"snowdensity/internal/schema"
	"snowdensity/internal/types"
)

type mockPredictionService struct {
	mock.Mock
}

func (m *mockPredictionService) Predict(ctx context.Context, model string, req api.PredictRequest) (*api.PredictResponse, error) {
	args := m.Called(ctx, model, req)
	resp, _ := args.Get(0).(*api.PredictResponse)
	return resp, args.Error(1)
}

func (m *mockPredictionService) Hill(ctx context.Context, req api.HillRequest) (*api.HillResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*api.HillResponse)
	return resp, args.Error(1)
}

func (m *mockPredictionService) Models() []api.ModelInfo {
	return m.Called().Get(0).([]api.ModelInfo)
}

func (m *mockPredictionService) Artifact() (*api.ArtifactStatus, error) {
	args := m.Called()
	st, _ := args.Get(0).(*api.ArtifactStatus)
	return st, args.Error(1)
}

func (m *mockPredictionService) ClearArtifact(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func newRouter(svc PredictionService, maxBody int64) http.Handler {
	r := chi.NewRouter()
	r.Route("/v1", NewDensityHandler(svc, maxBody, nil).RegisterRoutes)
	return r
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestHandlePredict(t *testing.T) {
	svc := &mockPredictionService{}
	want := api.PredictRequest{
		Rows:    []map[string]any{{"date": "2021-01-01"}},
		Columns: schema.Bindings{schema.RoleDate: {Name: "date"}},
		Output:  "series",
	}
	result, err := density.NewPistochi(density.Options{}).Predict(context.Background(),
		dataset.FromRecords(want.Rows), density.PistochiColumns{Date: "date"})
	require.NoError(t, err)

	svc.On("Predict", mock.Anything, "pistochi", want).Return(&api.PredictResponse{
		Model: "pistochi", Output: "series", Rows: 1, Result: result,
	}, nil)

	rec := serve(newRouter(svc, 0), http.MethodPost, "/v1/density/pistochi",
		`{"rows":[{"date":"2021-01-01"}],"columns":{"date":{"name":"date"}},"output":"series"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"data":{"model":"pistochi","output":"series","rows":1,
		"result":{"density":[323]},
		"summary":{"count":0,"mean":0,"std_dev":0,"min":0,"max":0}}}`, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestHandlePredict_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
		wantCode   types.ErrorCode
	}{
		{
			name:       "malformed body",
			body:       `{"rows":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   types.ErrCodeValidationInvalidBody,
		},
		{
			name:       "unknown field",
			body:       `{"rows":[],"colums":{}}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   types.ErrCodeValidationInvalidBody,
		},
		{
			name:       "schema error",
			body:       `{"rows":[]}`,
			svcErr:     types.NewAppError(types.ErrCodeSchemaMissingBinding, "date is not bound", nil),
			wantStatus: http.StatusBadRequest,
			wantCode:   types.ErrCodeSchemaMissingBinding,
		},
		{
			name:       "row error",
			body:       `{"rows":[]}`,
			svcErr:     types.NewAppError(types.ErrCodeRowOutOfCalibration, "row 1: no coefficients", nil),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   types.ErrCodeRowOutOfCalibration,
		},
		{
			name:       "artifact fetch",
			body:       `{"rows":[]}`,
			svcErr:     types.NewAppError(types.ErrCodeArtifactFetch, "download failed", nil),
			wantStatus: http.StatusBadGateway,
			wantCode:   types.ErrCodeArtifactFetch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockPredictionService{}
			if tt.svcErr != nil {
				svc.On("Predict", mock.Anything, "learned", mock.Anything).Return(nil, tt.svcErr)
			}

			rec := serve(newRouter(svc, 0), http.MethodPost, "/v1/density/learned", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, string(tt.wantCode), errorCode(t, rec))
			svc.AssertExpectations(t)
		})
	}
}

func TestHandlePredict_BodyLimit(t *testing.T) {
	svc := &mockPredictionService{}
	rec := serve(newRouter(svc, 32), http.MethodPost, "/v1/density/sturm",
		`{"rows":[{"date":"2021-01-01","depth":1.0,"class":"alpine"}]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidBody), errorCode(t, rec))
	svc.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleHill(t *testing.T) {
	svc := &mockPredictionService{}
	svc.On("Hill", mock.Anything, mock.MatchedBy(func(req api.HillRequest) bool {
		return len(req.Rows) == 1 && req.Columns[schema.RoleTempDiff].Name == "td"
	})).Return(&api.HillResponse{Rows: 1, SWEMM: []float64{412.5}}, nil)

	rec := serve(newRouter(svc, 0), http.MethodPost, "/v1/swe/hill",
		`{"rows":[{"td":18}],"columns":{"temp_diff":{"name":"td"}}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"rows":1,"swe_mm":[412.5]}}`, rec.Body.String())
}

func TestHandleListModels(t *testing.T) {
	svc := &mockPredictionService{}
	svc.On("Models").Return([]api.ModelInfo{{
		Name: "pistochi", Available: true,
		Requirements: []api.RequirementInfo{{Role: schema.RoleDate, Kind: "date-like"}},
	}})

	rec := serve(newRouter(svc, 0), http.MethodGet, "/v1/models", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"data":[{"name":"pistochi","available":true,
		"requirements":[{"role":"date","kind":"date-like"}]}]}`, rec.Body.String())
}

func TestHandleArtifact(t *testing.T) {
	svc := &mockPredictionService{}
	svc.On("Artifact").Return(&api.ArtifactStatus{
		Descriptor: artifact.Descriptor{ID: "density-model", Version: "v1"},
		State:      "ready",
		Path:       "/tmp/snowdensity/density-model-v1.bundle",
	}, nil)
	svc.On("ClearArtifact", mock.Anything).Return(nil)

	h := newRouter(svc, 0)

	rec := serve(h, http.MethodGet, "/v1/artifact", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"ready"`)

	rec = serve(h, http.MethodDelete, "/v1/artifact/cache", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestHandleArtifact_NotConfigured(t *testing.T) {
	notConfigured := types.NewAppError(types.ErrCodeValidationUnknownModel, "the learned model is not configured", nil)
	svc := &mockPredictionService{}
	svc.On("Artifact").Return(nil, notConfigured)
	svc.On("ClearArtifact", mock.Anything).Return(notConfigured)

	h := newRouter(svc, 0)
	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodGet, "/v1/artifact", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodDelete, "/v1/artifact/cache", "").Code)
}
