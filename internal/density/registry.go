package density

import (
	"fmt"

	"snowdensity/internal/artifact"
	"snowdensity/internal/types"
)

// Names lists every model name New accepts.
var Names = []string{NameJonas, NamePistochi, NameSturm, NameLearned}

// New constructs a model by name. cache is only used by the learned model
// and may be nil when that model is not served.
func New(name string, cache *artifact.Cache, opts Options) (Model, error) {
	switch name {
	case NameJonas:
		return NewJonas(opts), nil
	case NamePistochi:
		return NewPistochi(opts), nil
	case NameSturm:
		return NewSturm(opts), nil
	case NameLearned:
		if cache == nil {
			return nil, types.NewAppError(types.ErrCodeValidationUnknownModel,
				"the learned model is not configured", nil)
		}
		return NewLearned(cache, opts), nil
	}
	return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationUnknownModel,
		fmt.Sprintf("unknown model %q", name), nil, map[string]any{"valid": Names})
}
