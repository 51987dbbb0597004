package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// The prefix of each code selects its family (schema_, feature_, row_, artifact_).
const (
	// Schema (400): the caller's column bindings do not satisfy a model.
	ErrCodeSchemaMissingBinding ErrorCode = "schema_missing_binding"
	ErrCodeSchemaMissingColumn  ErrorCode = "schema_missing_column"
	ErrCodeSchemaNullValue      ErrorCode = "schema_null_value"
	ErrCodeSchemaInvalidType    ErrorCode = "schema_invalid_type"
	ErrCodeSchemaMissingUnit    ErrorCode = "schema_missing_unit"
	ErrCodeSchemaColumnConflict ErrorCode = "schema_column_conflict"

	// Feature (422): a value is present but cannot be turned into a feature.
	ErrCodeFeatureInvalidDate      ErrorCode = "feature_invalid_date"
	ErrCodeFeatureDayOutOfRange    ErrorCode = "feature_day_out_of_range"
	ErrCodeFeatureOutOfSeason      ErrorCode = "feature_out_of_season"
	ErrCodeFeatureUnknownSnowClass ErrorCode = "feature_unknown_snow_class"
	ErrCodeFeatureInvalidMonth     ErrorCode = "feature_invalid_month"
	ErrCodeFeatureInvalidValue     ErrorCode = "feature_invalid_value"
	ErrCodeFeatureInvalidUnit      ErrorCode = "feature_invalid_unit"

	// Row (422): a single row failed derivation or evaluation.
	ErrCodeRowInvalid          ErrorCode = "row_invalid"
	ErrCodeRowOutOfCalibration ErrorCode = "row_out_of_calibration"

	// Request validation (400), used by the HTTP and Lambda surfaces.
	ErrCodeValidationMissingField  ErrorCode = "validation_missing_required_field"
	ErrCodeValidationUnknownModel  ErrorCode = "validation_unknown_model"
	ErrCodeValidationInvalidOutput ErrorCode = "validation_invalid_output"
	ErrCodeValidationBatchSize     ErrorCode = "validation_batch_size_exceeded"
	ErrCodeValidationInvalidBody   ErrorCode = "validation_invalid_body"

	// Artifact acquisition.
	ErrCodeArtifactFetch     ErrorCode = "artifact_fetch_failed"
	ErrCodeArtifactIntegrity ErrorCode = "artifact_integrity_failed"

	// Internal/Upstream (500/502)
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"), strings.HasPrefix(s, "schema_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "feature_"), strings.HasPrefix(s, "row_"):
		return http.StatusUnprocessableEntity // 422
	case c == ErrCodeArtifactFetch, strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case c == ErrCodeArtifactIntegrity, strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the module.
// SchemaError, FeatureError, ArtifactFetchError and ArtifactIntegrityError are
// all AppErrors distinguished by the family of their Code.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// hasFamily reports whether any AppError in err's chain carries a code with
// the given prefix. The whole chain is walked so that a row error wrapping a
// feature error matches both families.
func hasFamily(err error, prefix string) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && strings.HasPrefix(string(appErr.Code), prefix) {
			return true
		}
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		case interface{ Unwrap() []error }:
			for _, e := range u.Unwrap() {
				if hasFamily(e, prefix) {
					return true
				}
			}
			return false
		default:
			return false
		}
	}
	return false
}

// IsSchemaError reports whether err is (or wraps) a schema validation error.
func IsSchemaError(err error) bool { return hasFamily(err, "schema_") }

// IsFeatureError reports whether err is (or wraps) a feature derivation error.
func IsFeatureError(err error) bool { return hasFamily(err, "feature_") }

// IsArtifactFetchError reports whether err is (or wraps) an artifact fetch failure.
func IsArtifactFetchError(err error) bool { return hasFamily(err, string(ErrCodeArtifactFetch)) }

// IsArtifactIntegrityError reports whether err is (or wraps) an artifact integrity failure.
func IsArtifactIntegrityError(err error) bool {
	return hasFamily(err, string(ErrCodeArtifactIntegrity))
}
