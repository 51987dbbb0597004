// Package schema checks that a caller's column bindings satisfy the input
// contract of a model before any row is evaluated.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"snowdensity/internal/dataset"
	"snowdensity/internal/features"
	"snowdensity/internal/types"
)

// Role is the logical meaning a model assigns to an input column.
type Role string

const (
	RoleSnowDepth Role = "snow_depth"
	RoleMonth     Role = "month"
	RoleElevation Role = "elevation"
	RoleDate      Role = "date"
	RoleSnowClass Role = "snow_class"
	RoleTAvg      Role = "tavg"
	RoleTMin      Role = "tmin"
	RoleTMax      Role = "tmax"

	// Hill et al. (2019) SWE predictors.
	RoleWinterPrecip Role = "winter_precip"
	RoleTempDiff     Role = "temp_diff"
)

// Kind is the semantic type a role's values must be coercible to.
type Kind int

const (
	Numeric Kind = iota
	DateLike
	MonthLike
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case DateLike:
		return "date-like"
	case MonthLike:
		return "month-like"
	case Categorical:
		return "categorical"
	}
	return "unknown"
}

func (k Kind) accepts(v any) bool {
	switch k {
	case Numeric:
		return features.IsNumeric(v)
	case DateLike:
		return features.IsDateLike(v)
	case MonthLike:
		return features.IsMonthLike(v)
	case Categorical:
		return features.IsCategorical(v)
	}
	return false
}

// Requirement declares one input a model consumes.
type Requirement struct {
	Role Role
	Kind Kind
	// Optional roles may be left unbound, and a bound optional column may
	// contain nulls.
	Optional bool
	// Unit requires the binding to declare the column's unit.
	Unit bool
}

// Column names the frame column bound to a role and, for measurements, the
// unit its values are expressed in.
type Column struct {
	Name string `json:"name"`
	Unit string `json:"unit,omitempty"`
}

// Bindings maps each role to the caller's column for this call.
type Bindings map[Role]Column

// Roles returns the bound roles in sorted order.
func (b Bindings) Roles() []Role {
	roles := make([]Role, 0, len(b))
	for r := range b {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

func schemaError(code types.ErrorCode, model string, req Requirement, col string, msg string) *types.AppError {
	details := map[string]any{
		"model": model,
		"role":  string(req.Role),
	}
	if col != "" {
		details["column"] = col
	}
	return types.NewAppErrorWithDetails(code, msg, nil, details)
}

// Validate checks bindings and frame against reqs. Every required role must be
// bound, bound columns must exist, and every row must hold a non-null value
// coercible to the role's kind. An empty frame is valid regardless of its
// columns. Validate never modifies its arguments.
func Validate(model string, frame *dataset.Frame, bindings Bindings, reqs []Requirement) error {
	for _, req := range reqs {
		col, ok := bindings[req.Role]
		if !ok || strings.TrimSpace(col.Name) == "" {
			if req.Optional {
				continue
			}
			return schemaError(types.ErrCodeSchemaMissingBinding, model, req, "",
				fmt.Sprintf("model %s requires a column bound to role %q", model, req.Role))
		}
		if req.Unit && strings.TrimSpace(col.Unit) == "" {
			return schemaError(types.ErrCodeSchemaMissingUnit, model, req, col.Name,
				fmt.Sprintf("model %s requires a unit for column %q (role %q)", model, col.Name, req.Role))
		}
	}

	if frame.Len() == 0 {
		return nil
	}

	for _, req := range reqs {
		col, ok := bindings[req.Role]
		if !ok || strings.TrimSpace(col.Name) == "" {
			continue
		}
		if !frame.HasColumn(col.Name) {
			return schemaError(types.ErrCodeSchemaMissingColumn, model, req, col.Name,
				fmt.Sprintf("column %q required by model %s (role %q) not found", col.Name, model, req.Role))
		}
	}

	for _, req := range reqs {
		col, ok := bindings[req.Role]
		if !ok || strings.TrimSpace(col.Name) == "" {
			continue
		}
		for i, v := range frame.Column(col.Name) {
			if features.IsNull(v) {
				if req.Optional {
					continue
				}
				return schemaError(types.ErrCodeSchemaNullValue, model, req, col.Name,
					fmt.Sprintf("column %q required by model %s has a null value in row %d", col.Name, model, i+1)).
					WithDetails(map[string]any{"row": i + 1})
			}
			if !req.Kind.accepts(v) {
				return schemaError(types.ErrCodeSchemaInvalidType, model, req, col.Name,
					fmt.Sprintf("column %q required by model %s must be %s, got %T in row %d", col.Name, model, req.Kind, v, i+1)).
					WithDetails(map[string]any{"row": i + 1})
			}
		}
	}
	return nil
}
