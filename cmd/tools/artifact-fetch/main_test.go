package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowdensity/internal/artifact"
	"snowdensity/internal/artifact/artifacttest"
	"snowdensity/internal/dataset"
	"snowdensity/internal/density"
	"snowdensity/internal/schema"
)

func bundleParts(t *testing.T) (meta, model []byte) {
	t.Helper()
	b := artifacttest.NewBundle()
	model = b.Booster
	b.Booster = nil
	meta, err := json.Marshal(b)
	require.NoError(t, err)
	return meta, model
}

func TestPack(t *testing.T) {
	meta, model := bundleParts(t)

	var buf bytes.Buffer
	res, err := pack(meta, model, &buf)
	require.NoError(t, err)

	d := artifacttest.DescriptorFor(buf.Bytes(), artifacttest.TestLocation)
	assert.Equal(t, d.SHA256, res.SHA256)
	assert.Equal(t, d.Size, res.Size)
	assert.Equal(t, "test-1", res.ModelVersion)

	// The packed bytes serve the learned model.
	cache := artifacttest.NewCache(t, d, &artifacttest.MemorySource{Data: buf.Bytes()})
	out, err := density.NewLearned(cache, density.Options{}).PredictBindings(context.Background(),
		dataset.FromRecords([]map[string]any{{
			"class": "alpine", "elev": 1800.0, "hs": 50.0,
			"tavg": -4.0, "tmin": -9.0, "tmax": 1.0, "date": "2021-01-10",
		}}),
		schema.Bindings{
			schema.RoleSnowClass: {Name: "class"},
			schema.RoleElevation: {Name: "elev"},
			schema.RoleSnowDepth: {Name: "hs", Unit: "cm"},
			schema.RoleTAvg:      {Name: "tavg"},
			schema.RoleTMin:      {Name: "tmin"},
			schema.RoleTMax:      {Name: "tmax"},
			schema.RoleDate:      {Name: "date"},
		})
	require.NoError(t, err)
	assert.Equal(t, []float64{250}, out.Densities())
}

func TestPack_Rejects(t *testing.T) {
	meta, model := bundleParts(t)

	_, err := pack([]byte("{"), model, &bytes.Buffer{})
	assert.ErrorContains(t, err, "metadata")

	_, err = pack(meta, []byte(`{"learner":{}}`), &bytes.Buffer{})
	assert.ErrorContains(t, err, "does not decode")
}

func TestPackFiles(t *testing.T) {
	dir := t.TempDir()
	meta, model := bundleParts(t)
	metaPath := filepath.Join(dir, "bundle.json")
	modelPath := filepath.Join(dir, "model.json")
	outPath := filepath.Join(dir, "model.bundle")
	require.NoError(t, os.WriteFile(metaPath, meta, 0o600))
	require.NoError(t, os.WriteFile(modelPath, model, 0o600))

	res, err := packFiles(metaPath, modelPath, outPath)
	require.NoError(t, err)
	assert.Equal(t, outPath, res.Path)

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	b, err := artifact.DecodeBundle(f)
	require.NoError(t, err)
	assert.Equal(t, "test-1", b.ModelVersion)

	_, err = packFiles(filepath.Join(dir, "missing.json"), modelPath, filepath.Join(dir, "x.bundle"))
	assert.Error(t, err)
}
