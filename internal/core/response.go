package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"snowdensity/internal/types"
)

// DefaultMaxBodyBytes bounds request bodies read by DecodeJSON.
const DefaultMaxBodyBytes = 32 << 20

// APIResponse is the envelope of every successful response.
type APIResponse struct {
	Data any            `json:"data,omitempty"`
	Meta map[string]any `json:"meta,omitempty"`
}

// APIErrorResponse is the envelope of every error response.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is what clients see of an error.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// JSON writes data with the given status. A marshalling failure becomes a
// 500 error envelope.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		types.LoggerFromContext(r.Context(), nil).ErrorContext(r.Context(), "response encoding failed", "error", err)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(APIErrorResponse{Error: ErrorDetail{
			Code:      string(types.ErrCodeInternalUnexpected),
			Message:   "failed to marshal response",
			RequestID: types.GetRequestID(r.Context()),
		}})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes the error envelope for err. An AppError in the chain selects
// the status and code; anything else is a 500 whose message is not exposed.
// Wrapped causes never reach the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	detail := ErrorDetail{
		Code:      string(types.ErrCodeInternalUnexpected),
		Message:   "an unexpected error occurred",
		RequestID: types.GetRequestID(r.Context()),
	}
	status := http.StatusInternalServerError

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		detail.Code = string(appErr.Code)
		detail.Message = appErr.Message
		detail.Details = appErr.Details
		status = appErr.HTTPStatus()
	} else {
		types.LoggerFromContext(r.Context(), nil).ErrorContext(r.Context(), "unhandled error", "error", err)
	}
	JSON(w, r, status, APIErrorResponse{Error: detail})
}

// DecodeJSON reads a single JSON value into dst with unknown fields
// rejected and the body capped at limit bytes (DefaultMaxBodyBytes when
// limit <= 0). Failures are validation_invalid_body AppErrors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any, limit int64) error {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if dec.More() {
		return invalidBody("request body must contain a single JSON object", nil, nil)
	}
	return nil
}

func invalidBody(msg string, err error, details map[string]any) *types.AppError {
	return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidBody, msg, err, details)
}

func decodeError(err error) *types.AppError {
	var (
		tooLarge *http.MaxBytesError
		syntax   *json.SyntaxError
		mismatch *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &tooLarge):
		return invalidBody(fmt.Sprintf("request body must not exceed %d bytes", tooLarge.Limit), err, nil)
	case errors.As(err, &syntax):
		return invalidBody("malformed JSON in request body", err, map[string]any{"offset": syntax.Offset})
	case errors.As(err, &mismatch):
		return invalidBody("invalid value for field "+mismatch.Field, err,
			map[string]any{"field": mismatch.Field, "expected": mismatch.Type.String()})
	case errors.Is(err, io.EOF):
		return invalidBody("request body must not be empty", err, nil)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return invalidBody("unknown field "+strings.TrimPrefix(err.Error(), "json: unknown field ")+" in request body", err, nil)
	}
	return invalidBody("invalid JSON in request body", err, nil)
}
