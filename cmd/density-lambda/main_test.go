package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowdensity/internal/api"
	"snowdensity/internal/artifact/artifacttest"
	"snowdensity/internal/types"
)

func decode(t *testing.T, payload string) Request {
	t.Helper()
	var req Request
	require.NoError(t, json.Unmarshal([]byte(payload), &req))
	return req
}

func TestHandle_Predict(t *testing.T) {
	h := &Handler{Service: api.NewService(api.ServiceConfig{})}
	req := decode(t, `{
		"model": "pistochi",
		"rows": [{"date": "2020-11-01", "hs": 50}],
		"columns": {"date": {"name": "date"}, "snow_depth": {"name": "hs", "unit": "cm"}},
		"swe": true
	}`)

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-1"})
	out, err := h.Handle(ctx, req)
	require.NoError(t, err)

	resp := out.(*api.PredictResponse)
	assert.Equal(t, []float64{262}, resp.Result.Densities())
	assert.Equal(t, []float64{131}, resp.Result.SWE())
}

func TestHandle_Hill(t *testing.T) {
	h := &Handler{Service: api.NewService(api.ServiceConfig{})}
	req := decode(t, `{
		"action": "hill",
		"rows": [{"hs": 120, "ppt": 600, "td": 18, "day": 93}],
		"columns": {
			"snow_depth": {"name": "hs", "unit": "cm"},
			"winter_precip": {"name": "ppt", "unit": "mm"},
			"temp_diff": {"name": "td"},
			"date": {"name": "day"}
		}
	}`)

	out, err := h.Handle(context.Background(), req)
	require.NoError(t, err)
	resp := out.(*api.HillResponse)
	require.Len(t, resp.SWEMM, 1)
	assert.Greater(t, resp.SWEMM[0], 0.0)
}

func TestHandle_ModelsAndArtifact(t *testing.T) {
	h := &Handler{Service: api.NewService(api.ServiceConfig{Cache: artifacttest.ReadyCache(t)})}

	out, err := h.Handle(context.Background(), Request{Action: ActionModels})
	require.NoError(t, err)
	assert.Len(t, out.([]api.ModelInfo), 5)

	out, err = h.Handle(context.Background(), Request{Action: ActionArtifact})
	require.NoError(t, err)
	assert.Equal(t, "ready", out.(*api.ArtifactStatus).State)

	out, err = h.Handle(context.Background(), Request{Action: ActionClearArtifact})
	require.NoError(t, err)
	assert.JSONEq(t, `{"cleared":true}`, string(out.(json.RawMessage)))
}

func TestHandle_Errors(t *testing.T) {
	h := &Handler{Service: api.NewService(api.ServiceConfig{})}

	_, err := h.Handle(context.Background(), Request{})
	assert.Equal(t, types.ErrCodeValidationMissingField, types.CodeOf(err))

	_, err = h.Handle(context.Background(), Request{Action: "train"})
	assert.Equal(t, types.ErrCodeValidationMissingField, types.CodeOf(err))

	_, err = h.Handle(context.Background(), Request{Model: "sturm"})
	assert.True(t, types.IsSchemaError(err))

	_, err = h.Handle(context.Background(), Request{Action: ActionClearArtifact})
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationUnknownModel, appErr.Code)
}
