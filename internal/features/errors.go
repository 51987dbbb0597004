package features

import (
	"fmt"

	"snowdensity/internal/types"
)

func featureError(code types.ErrorCode, value any, format string, args ...any) *types.AppError {
	return types.NewAppErrorWithDetails(code, fmt.Sprintf(format, args...), nil, map[string]any{
		"value": fmt.Sprint(value),
	})
}
