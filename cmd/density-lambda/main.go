// Package main is the entry point for the snow density Lambda function.
//
// The function is invoked directly (not through API Gateway) with the same
// request envelope as the HTTP API plus an action and a model name. Cold
// start loads configuration and wires the prediction service; each
// invocation delegates to Handler.Handle.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"snowdensity/internal/api"
	"snowdensity/internal/bootstrap"
	"snowdensity/internal/types"
)

// Actions accepted in Request.Action.
const (
	ActionPredict       = "predict"
	ActionHill          = "hill"
	ActionModels        = "models"
	ActionArtifact      = "artifact"
	ActionClearArtifact = "clear_artifact"
)

// Request is the invocation payload.
type Request struct {
	Action string `json:"action,omitempty"`
	Model  string `json:"model,omitempty"`
	api.PredictRequest
}

// Service is the subset of api.Service the function calls.
type Service interface {
	Predict(ctx context.Context, model string, req api.PredictRequest) (*api.PredictResponse, error)
	Hill(ctx context.Context, req api.HillRequest) (*api.HillResponse, error)
	Models() []api.ModelInfo
	Artifact() (*api.ArtifactStatus, error)
	ClearArtifact(ctx context.Context) error
}

// Handler dispatches invocations.
type Handler struct {
	Service Service
	Logger  *slog.Logger
}

// Handle runs one invocation. An empty action means predict.
func (h *Handler) Handle(ctx context.Context, req Request) (any, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		logger = logger.With("request_id", lc.AwsRequestID)
		ctx = types.WithRequestID(ctx, lc.AwsRequestID)
	}
	ctx = types.WithLogger(ctx, logger)

	start := time.Now()
	out, err := h.dispatch(ctx, req)
	if err != nil {
		logger.WarnContext(ctx, "invocation failed",
			"action", req.Action, "model", req.Model, "error", err, "duration", time.Since(start))
		return nil, err
	}
	logger.InfoContext(ctx, "invocation completed",
		"action", req.Action, "model", req.Model, "rows", len(req.Rows), "duration", time.Since(start))
	return out, nil
}

func (h *Handler) dispatch(ctx context.Context, req Request) (any, error) {
	switch req.Action {
	case "", ActionPredict:
		if req.Model == "" {
			return nil, types.NewAppError(types.ErrCodeValidationMissingField, "model is required", nil)
		}
		return h.Service.Predict(ctx, req.Model, req.PredictRequest)
	case ActionHill:
		return h.Service.Hill(ctx, api.HillRequest{Rows: req.Rows, Columns: req.Columns})
	case ActionModels:
		return h.Service.Models(), nil
	case ActionArtifact:
		return h.Service.Artifact()
	case ActionClearArtifact:
		if err := h.Service.ClearArtifact(ctx); err != nil {
			return nil, err
		}
		return json.RawMessage(`{"cleared":true}`), nil
	}
	return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
		fmt.Sprintf("unknown action %q", req.Action), nil,
		map[string]any{"valid": []string{ActionPredict, ActionHill, ActionModels, ActionArtifact, ActionClearArtifact}})
}

func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		slog.Error("loading configuration", "error", err)
		os.Exit(1)
	}
	logger := bootstrap.NewLogger(cfg.LogLevel)
	logger.Info("density Lambda initializing (cold start)",
		"environment", cfg.Environment, "version", cfg.Build.Version)

	rt, err := bootstrap.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("wiring dependencies", "error", err)
		os.Exit(1)
	}

	handler := &Handler{Service: rt.Service, Logger: logger}
	lambda.Start(handler.Handle)
}
