// Package dataset provides Frame, the row-oriented table that carries caller
// observations into a prediction and, for tabular output, back out again.
package dataset

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Row is one record keyed by column name.
type Row map[string]any

// Frame is an ordered collection of rows sharing a column list. Rows may omit
// columns; a missing cell reads as nil.
type Frame struct {
	columns []string
	index   map[string]int
	rows    []Row
}

// New builds a frame with an explicit column order.
func New(columns []string, rows []Row) *Frame {
	f := &Frame{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		f.addColumn(c)
	}
	f.rows = make([]Row, len(rows))
	for i, r := range rows {
		f.rows[i] = copyRow(r)
	}
	return f
}

// FromRecords builds a frame from decoded JSON-style records. Columns are the
// union of all record keys, ordered by first appearance with keys of each
// record sorted.
func FromRecords(records []map[string]any) *Frame {
	f := &Frame{index: map[string]int{}}
	f.rows = make([]Row, len(records))
	for i, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			f.addColumn(k)
		}
		f.rows[i] = copyRow(rec)
	}
	return f
}

func (f *Frame) addColumn(name string) {
	if _, ok := f.index[name]; ok {
		return
	}
	f.index[name] = len(f.columns)
	f.columns = append(f.columns, name)
}

func copyRow(r map[string]any) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Len returns the number of rows. A nil frame has none.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.rows)
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	if f == nil {
		return nil
	}
	return append([]string(nil), f.columns...)
}

// HasColumn reports whether name is one of the frame's columns.
func (f *Frame) HasColumn(name string) bool {
	if f == nil {
		return false
	}
	_, ok := f.index[name]
	return ok
}

// Value returns the cell at row i and column col.
func (f *Frame) Value(i int, col string) any {
	return f.rows[i][col]
}

// Row returns a copy of row i.
func (f *Frame) Row(i int) Row {
	return copyRow(f.rows[i])
}

// Column returns the values of col for every row.
func (f *Frame) Column(col string) []any {
	out := make([]any, f.Len())
	for i := range out {
		out[i] = f.rows[i][col]
	}
	return out
}

// Copy returns a deep copy of the frame structure. Cell values are shared.
func (f *Frame) Copy() *Frame {
	if f == nil {
		return New(nil, nil)
	}
	return New(f.columns, f.rows)
}

// WithColumn returns a copy of the frame with col set to values. An existing
// column of the same name is overwritten in place.
func (f *Frame) WithColumn(col string, values []any) (*Frame, error) {
	if len(values) != f.Len() {
		return nil, fmt.Errorf("column %q has %d values for %d rows", col, len(values), f.Len())
	}
	out := f.Copy()
	out.addColumn(col)
	for i, v := range values {
		out.rows[i][col] = v
	}
	return out, nil
}

// Records returns the rows as plain maps in row order.
func (f *Frame) Records() []map[string]any {
	out := make([]map[string]any, f.Len())
	for i := range out {
		out[i] = map[string]any(copyRow(f.rows[i]))
	}
	return out
}

// MarshalJSON encodes the frame as {"columns": [...], "rows": [...]}.
func (f *Frame) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Columns []string         `json:"columns"`
		Rows    []map[string]any `json:"rows"`
	}{
		Columns: nonNil(f.Columns()),
		Rows:    f.Records(),
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
