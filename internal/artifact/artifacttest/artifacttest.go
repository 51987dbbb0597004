// Package artifacttest provides in-memory bundles and sources for tests.
package artifacttest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"snowdensity/internal/artifact"
	"snowdensity/internal/booster"
)

// TestLocation is a well-formed location for descriptors served by MemorySource.
const TestLocation = "https://models.example.com/density-model/v1.bundle"

// LearnedFeatures is the feature order of the bundles built here.
var LearnedFeatures = []string{"snow_class", "elevation", "snow_depth", "tavg", "tmin", "tmax", "doy"}

// stumps predicts 250 below 100 cm of snow and 350 above, plus 20 for the
// taiga and ephemeral encodings (>= 5).
const stumps = `{
  "learner": {
    "learner_model_param": {"base_score": "0E0", "num_feature": "7"},
    "objective": {"name": "reg:squarederror"},
    "gradient_booster": {
      "name": "gbtree",
      "model": {"trees": [
        {"left_children": [1, -1, -1], "right_children": [2, -1, -1],
         "split_indices": [2, 0, 0], "split_conditions": [100, 250, 350],
         "default_left": [0, 0, 0]},
        {"left_children": [1, -1, -1], "right_children": [2, -1, -1],
         "split_indices": [0, 0, 0], "split_conditions": [5, 0, 20],
         "default_left": [0, 0, 0]}
      ]}
    }
  }
}`

// NewBundle returns a small, valid learned-model bundle. Depth is expected in
// centimetres and the day feature counts from October.
func NewBundle() *artifact.Bundle {
	return &artifact.Bundle{
		FormatVersion: artifact.BundleFormatVersion,
		ModelVersion:  "test-1",
		OutputUnit:    artifact.OutputUnitKgM3,
		Features:      append([]string(nil), LearnedFeatures...),
		FeatureUnits: map[string]string{
			"elevation":  "m",
			"snow_depth": "cm",
			"tavg":       "C",
			"tmin":       "C",
			"tmax":       "C",
		},
		DOYOriginMonth: 10,
		Preprocessor: booster.Preprocessor{
			TargetEncoding: map[string]map[string]float64{
				"snow_class": {"alpine": 1, "maritime": 2, "prairie": 3, "tundra": 4, "taiga": 5, "ephemeral": 6},
			},
		},
		Booster: []byte(stumps),
	}
}

// Encode compresses b and returns the bytes with a descriptor that matches
// them.
func Encode(t testing.TB, b *artifact.Bundle, location string) ([]byte, artifact.Descriptor) {
	t.Helper()
	var buf bytes.Buffer
	if err := artifact.EncodeBundle(&buf, b); err != nil {
		t.Fatalf("encode bundle: %v", err)
	}
	data := buf.Bytes()
	return data, DescriptorFor(data, location)
}

// DescriptorFor builds a descriptor pinning data.
func DescriptorFor(data []byte, location string) artifact.Descriptor {
	sum := sha256.Sum256(data)
	return artifact.Descriptor{
		ID:       "density-model",
		Version:  "v1",
		Location: location,
		SHA256:   hex.EncodeToString(sum[:]),
		Size:     int64(len(data)),
	}
}

// MemorySource serves fixed bytes and counts how often it is opened. When
// Gate is non-nil, Open blocks until Gate is closed or ctx is done.
type MemorySource struct {
	Data  []byte
	Err   error
	Gate  chan struct{}
	calls atomic.Int32
}

// Calls returns the number of Open calls.
func (s *MemorySource) Calls() int { return int(s.calls.Load()) }

func (s *MemorySource) Name() string { return "memory" }

func (s *MemorySource) Open(ctx context.Context, _ artifact.Descriptor) (io.ReadCloser, error) {
	s.calls.Add(1)
	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Data == nil {
		return nil, errors.New("memory source has no data")
	}
	return io.NopCloser(bytes.NewReader(s.Data)), nil
}

// NewCache builds a cache over src in a temporary directory.
func NewCache(t testing.TB, d artifact.Descriptor, src artifact.Source) *artifact.Cache {
	t.Helper()
	c, err := artifact.NewCache(artifact.CacheConfig{
		Descriptor: d,
		Source:     src,
		Dir:        t.TempDir(),
	})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return c
}

// ReadyCache returns a cache already holding NewBundle.
func ReadyCache(t testing.TB) *artifact.Cache {
	t.Helper()
	data, d := Encode(t, NewBundle(), TestLocation)
	c := NewCache(t, d, &MemorySource{Data: data})
	if _, err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return c
}
