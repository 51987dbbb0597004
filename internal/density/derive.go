package density

import (
	"fmt"
	"math"

	"snowdensity/internal/dataset"
	"snowdensity/internal/features"
	"snowdensity/internal/schema"
	"snowdensity/internal/types"
)

// units are the parsed declared units of the bound columns.
type units struct {
	depth     features.LengthUnit
	elevation features.LengthUnit
	temp      map[schema.Role]features.TemperatureUnit
}

func parseUnits(b schema.Bindings) (units, error) {
	u := units{depth: features.Metres, elevation: features.Metres, temp: map[schema.Role]features.TemperatureUnit{}}
	var err error
	if col, ok := b[schema.RoleSnowDepth]; ok && col.Unit != "" {
		if u.depth, err = features.ParseLengthUnit(col.Unit); err != nil {
			return u, err
		}
	}
	if col, ok := b[schema.RoleElevation]; ok && col.Unit != "" {
		if u.elevation, err = features.ParseLengthUnit(col.Unit); err != nil {
			return u, err
		}
	}
	for _, role := range []schema.Role{schema.RoleTAvg, schema.RoleTMin, schema.RoleTMax} {
		col, ok := b[role]
		if !ok {
			continue
		}
		if u.temp[role], err = features.ParseTemperatureUnit(col.Unit); err != nil {
			return u, err
		}
	}
	return u, nil
}

func invalidValue(v any, format string, args ...any) error {
	return types.NewAppErrorWithDetails(types.ErrCodeFeatureInvalidValue, fmt.Sprintf(format, args...), nil,
		map[string]any{"value": fmt.Sprint(v)})
}

func finite(v any) (float64, error) {
	f, ok := features.Float(v)
	if !ok {
		return 0, invalidValue(v, "%v is not a number", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, invalidValue(v, "%v is not a finite number", v)
	}
	return f, nil
}

// deriveRow builds the observation for row i. The returned role names the
// input that failed.
func (v *variant) deriveRow(frame *dataset.Frame, i int, b schema.Bindings, reqs []schema.Requirement, u units) (features.Observation, schema.Role, error) {
	var obs features.Observation
	for _, req := range reqs {
		col, ok := b[req.Role]
		if !ok {
			continue
		}
		raw := frame.Value(i, col.Name)
		if req.Optional && features.IsNull(raw) {
			continue
		}
		if err := v.deriveValue(&obs, req.Role, raw, u); err != nil {
			return obs, req.Role, err
		}
	}
	return obs, "", nil
}

func (v *variant) deriveValue(obs *features.Observation, role schema.Role, raw any, u units) error {
	switch role {
	case schema.RoleSnowDepth:
		f, err := finite(raw)
		if err != nil {
			return err
		}
		if f <= 0 {
			return invalidValue(raw, "snow depth must be positive, got %v", f)
		}
		obs.DepthM = u.depth.ToMetres(f)

	case schema.RoleElevation:
		f, err := finite(raw)
		if err != nil {
			return err
		}
		obs.ElevationM = u.elevation.ToMetres(f)

	case schema.RoleMonth:
		m, err := features.ParseMonth(raw)
		if err != nil {
			return err
		}
		obs.Month = m

	case schema.RoleDate:
		day, err := v.days.Day(raw)
		if err != nil {
			return err
		}
		obs.Day = day
		if t, err := features.ParseDate(raw); err == nil {
			obs.Month = t.Month()
		}

	case schema.RoleSnowClass:
		c, err := v.vocab.ParseValue(raw)
		if err != nil {
			return err
		}
		obs.Class = c

	case schema.RoleTAvg, schema.RoleTMin, schema.RoleTMax:
		f, err := finite(raw)
		if err != nil {
			return err
		}
		c := u.temp[role].ToCelsius(f)
		switch role {
		case schema.RoleTAvg:
			obs.TAvgC = c
		case schema.RoleTMin:
			obs.TMinC = c
		default:
			obs.TMaxC = c
		}
	}
	return nil
}
