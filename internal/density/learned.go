package density

import (
	"context"
	"fmt"
	"time"

	"snowdensity/internal/artifact"
	"snowdensity/internal/dataset"
	"snowdensity/internal/features"
	"snowdensity/internal/schema"
	"snowdensity/internal/types"
)

// learnedOrigin is the water-year origin the learned model's day feature
// was trained with.
const learnedOrigin = time.October

// Learned evaluates a gradient-boosted tree ensemble loaded from a versioned
// artifact. The artifact is fetched on first use and shared by every caller
// of the same cache.
type Learned struct {
	*engine
	cache *artifact.Cache
}

// NewLearned returns the learned model backed by cache.
func NewLearned(cache *artifact.Cache, opts Options) *Learned {
	m := &Learned{cache: cache}
	m.engine = newEngine(variant{
		name: NameLearned,
		reqs: []schema.Requirement{
			{Role: schema.RoleSnowClass, Kind: schema.Categorical},
			{Role: schema.RoleElevation, Kind: schema.Numeric},
			{Role: schema.RoleSnowDepth, Kind: schema.Numeric, Unit: true},
			{Role: schema.RoleTAvg, Kind: schema.Numeric},
			{Role: schema.RoleTMin, Kind: schema.Numeric},
			{Role: schema.RoleTMax, Kind: schema.Numeric},
			{Role: schema.RoleDate, Kind: schema.DateLike},
		},
		days:      features.WaterYearDays(learnedOrigin),
		vocab:     features.LearnedVocabulary,
		estimator: m.load,
	}, opts)
	return m
}

// Predict runs the model with typed column bindings.
func (m *Learned) Predict(ctx context.Context, frame *dataset.Frame, cols LearnedColumns, opts ...PredictOption) (Result, error) {
	b, err := bindingsOf(m.name, cols)
	if err != nil {
		return nil, err
	}
	return m.PredictBindings(ctx, frame, b, opts...)
}

// Cache returns the artifact cache backing the model.
func (m *Learned) Cache() *artifact.Cache { return m.cache }

// featureFunc extracts one model input from an observation.
type featureFunc func(features.Observation) any

func (m *Learned) load(ctx context.Context) (Estimator, error) {
	bundle, err := m.cache.Load(ctx)
	if err != nil {
		return nil, err
	}
	extract, err := extractors(bundle)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeArtifactIntegrity, err.Error(), err,
			map[string]any{"artifact": m.cache.Descriptor().Key()})
	}
	names := bundle.Features
	ens := bundle.Ensemble()
	return func(o features.Observation) (float64, error) {
		raw := make([]any, len(extract))
		for i, f := range extract {
			raw[i] = f(o)
		}
		x, err := bundle.Preprocessor.Transform(names, raw)
		if err != nil {
			return 0, err
		}
		return ens.Predict(x)
	}, nil
}

// extractors resolves the bundle's feature order against the observation,
// converting each quantity to the unit the model was trained in.
func extractors(b *artifact.Bundle) ([]featureFunc, error) {
	if time.Month(b.DOYOriginMonth) != learnedOrigin {
		return nil, fmt.Errorf("bundle day feature counts from month %d, want %d", b.DOYOriginMonth, int(learnedOrigin))
	}
	out := make([]featureFunc, len(b.Features))
	for i, name := range b.Features {
		unit := b.FeatureUnits[name]
		switch name {
		case "snow_class":
			out[i] = func(o features.Observation) any { return o.Class.String() }
		case "doy":
			out[i] = func(o features.Observation) any { return float64(o.Day) }
		case "snow_depth", "elevation":
			lu := features.Metres
			if unit != "" {
				var err error
				if lu, err = features.ParseLengthUnit(unit); err != nil {
					return nil, fmt.Errorf("feature %q: %w", name, err)
				}
			}
			if name == "snow_depth" {
				out[i] = func(o features.Observation) any { return lu.FromMetres(o.DepthM) }
			} else {
				out[i] = func(o features.Observation) any { return lu.FromMetres(o.ElevationM) }
			}
		case "tavg", "tmin", "tmax":
			tu, err := features.ParseTemperatureUnit(unit)
			if err != nil {
				return nil, fmt.Errorf("feature %q: %w", name, err)
			}
			switch name {
			case "tavg":
				out[i] = func(o features.Observation) any { return tu.FromCelsius(o.TAvgC) }
			case "tmin":
				out[i] = func(o features.Observation) any { return tu.FromCelsius(o.TMinC) }
			default:
				out[i] = func(o features.Observation) any { return tu.FromCelsius(o.TMaxC) }
			}
		default:
			return nil, fmt.Errorf("bundle feature %q has no source column", name)
		}
	}
	return out, nil
}
