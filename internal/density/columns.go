package density

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"snowdensity/internal/schema"
	"snowdensity/internal/types"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SturmColumns names the input columns of the Sturm model.
type SturmColumns struct {
	Date      string `validate:"required"`
	SnowClass string `validate:"required"`
	SnowDepth string `validate:"required"`
	DepthUnit string `validate:"required"`
}

// JonasColumns names the input columns of the Jonas model. ElevationUnit
// defaults to metres.
type JonasColumns struct {
	SnowDepth     string `validate:"required"`
	DepthUnit     string `validate:"required"`
	Month         string `validate:"required"`
	Elevation     string `validate:"required"`
	ElevationUnit string
}

// PistochiColumns names the input columns of the Pistochi model. SnowDepth
// is only read when SWE is requested.
type PistochiColumns struct {
	Date      string `validate:"required"`
	SnowDepth string
	DepthUnit string `validate:"required_with=SnowDepth"`
}

// LearnedColumns names the input columns of the learned model. Temperatures
// share TempUnit, which defaults to Celsius.
type LearnedColumns struct {
	SnowClass     string `validate:"required"`
	Elevation     string `validate:"required"`
	ElevationUnit string
	SnowDepth     string `validate:"required"`
	DepthUnit     string `validate:"required"`
	TAvg          string `validate:"required"`
	TMin          string `validate:"required"`
	TMax          string `validate:"required"`
	TempUnit      string
	Date          string `validate:"required"`
}

type columnSet interface {
	bindings() schema.Bindings
}

func (c SturmColumns) bindings() schema.Bindings {
	b := schema.Bindings{}
	bind(b, schema.RoleDate, c.Date, "")
	bind(b, schema.RoleSnowClass, c.SnowClass, "")
	bind(b, schema.RoleSnowDepth, c.SnowDepth, c.DepthUnit)
	return b
}

func (c JonasColumns) bindings() schema.Bindings {
	b := schema.Bindings{}
	bind(b, schema.RoleSnowDepth, c.SnowDepth, c.DepthUnit)
	bind(b, schema.RoleMonth, c.Month, "")
	bind(b, schema.RoleElevation, c.Elevation, c.ElevationUnit)
	return b
}

func (c PistochiColumns) bindings() schema.Bindings {
	b := schema.Bindings{}
	bind(b, schema.RoleDate, c.Date, "")
	bind(b, schema.RoleSnowDepth, c.SnowDepth, c.DepthUnit)
	return b
}

func (c LearnedColumns) bindings() schema.Bindings {
	b := schema.Bindings{}
	bind(b, schema.RoleSnowClass, c.SnowClass, "")
	bind(b, schema.RoleElevation, c.Elevation, c.ElevationUnit)
	bind(b, schema.RoleSnowDepth, c.SnowDepth, c.DepthUnit)
	bind(b, schema.RoleTAvg, c.TAvg, c.TempUnit)
	bind(b, schema.RoleTMin, c.TMin, c.TempUnit)
	bind(b, schema.RoleTMax, c.TMax, c.TempUnit)
	bind(b, schema.RoleDate, c.Date, "")
	return b
}

// bind records a column unless it is unnamed.
func bind(b schema.Bindings, role schema.Role, name, unit string) {
	if name != "" {
		b[role] = schema.Column{Name: name, Unit: unit}
	}
}

// bindingsOf validates a typed column set and converts it to role bindings.
func bindingsOf(model string, cols columnSet) (schema.Bindings, error) {
	if err := validate.Struct(cols); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) || len(verrs) == 0 {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "validating columns", err)
		}
		fields := make([]string, len(verrs))
		for i, fe := range verrs {
			fields[i] = fe.Field()
		}
		code := types.ErrCodeSchemaMissingBinding
		if strings.HasSuffix(fields[0], "Unit") {
			code = types.ErrCodeSchemaMissingUnit
		}
		return nil, types.NewAppErrorWithDetails(code,
			fmt.Sprintf("%s: missing column bindings: %s", model, strings.Join(fields, ", ")), err,
			map[string]any{"model": model, "fields": fields})
	}
	return cols.bindings(), nil
}
