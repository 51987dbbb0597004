package dataset

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRecords(t *testing.T) {
	f := FromRecords([]map[string]any{
		{"depth": 1.2, "date": "2020-01-01"},
		{"depth": 0.8, "class": "alpine"},
	})

	assert.Equal(t, 2, f.Len())
	assert.Equal(t, []string{"date", "depth", "class"}, f.Columns())
	assert.True(t, f.HasColumn("class"))
	assert.False(t, f.HasColumn("elevation"))
	assert.Nil(t, f.Value(0, "class"))
	assert.Equal(t, []any{1.2, 0.8}, f.Column("depth"))
}

func TestWithColumnLeavesSourceUntouched(t *testing.T) {
	src := New([]string{"depth"}, []Row{{"depth": 1.0}, {"depth": 2.0}})

	out, err := src.WithColumn("snow_density", []any{300.0, 310.0})
	require.NoError(t, err)

	assert.Equal(t, []string{"depth", "snow_density"}, out.Columns())
	assert.Equal(t, 310.0, out.Value(1, "snow_density"))
	assert.Equal(t, []string{"depth"}, src.Columns())
	assert.Nil(t, src.Value(1, "snow_density"))

	_, err = src.WithColumn("bad", []any{1.0})
	assert.Error(t, err)
}

func TestEmptyFrame(t *testing.T) {
	var nilFrame *Frame
	assert.Equal(t, 0, nilFrame.Len())
	assert.False(t, nilFrame.HasColumn("x"))

	empty := nilFrame.Copy()
	out, err := empty.WithColumn("snow_density", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())

	b, err := json.Marshal(New(nil, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns":[],"rows":[]}`, string(b))
}
