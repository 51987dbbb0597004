package density

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"snowdensity/internal/types"
)

// RowError reports the failure of one input row. Row is the 1-based ordinal
// of the row in the input frame. The wrapped AppError has a row_ code and in
// turn wraps the underlying cause, so errors.As and the types.Is* helpers see
// the whole chain.
type RowError struct {
	Row int
	err *types.AppError
}

func newRowError(row int, role string, cause error) *RowError {
	code := types.ErrCodeRowInvalid
	if c := types.CodeOf(cause); strings.HasPrefix(string(c), "row_") {
		code = c
	}
	msg := cause.Error()
	var appErr *types.AppError
	if errors.As(cause, &appErr) {
		msg = appErr.Message
	}
	details := map[string]any{"row": row}
	if role != "" {
		details["role"] = role
		msg = role + ": " + msg
	}
	return &RowError{
		Row: row,
		err: types.NewAppErrorWithDetails(code, fmt.Sprintf("row %d: %s", row, msg), cause, details),
	}
}

func (e *RowError) Error() string { return e.err.Error() }

func (e *RowError) Unwrap() error { return e.err }

// Code returns the row_ error code.
func (e *RowError) Code() types.ErrorCode { return e.err.Code }

// MarshalJSON reports the row, code, message and the code of the cause.
func (e *RowError) MarshalJSON() ([]byte, error) {
	out := struct {
		Row       int             `json:"row"`
		Code      types.ErrorCode `json:"code"`
		Message   string          `json:"message"`
		CauseCode types.ErrorCode `json:"cause_code,omitempty"`
	}{Row: e.Row, Code: e.err.Code, Message: e.err.Message}
	if cause := types.CodeOf(e.err.Err); cause != e.err.Code {
		out.CauseCode = cause
	}
	return json.Marshal(out)
}
