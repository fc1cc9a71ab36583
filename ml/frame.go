package ml

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Label columns and raw price columns never reach the model input. The set is
// part of the artifact contract: feature lists derived from it must be stable
// between training and inference.
var excludedColumns = map[string]bool{
	"open":                  true,
	"high":                  true,
	"low":                   true,
	"close":                 true,
	"volume":                true,
	"adj_close":             true,
	"future_price":          true,
	"future_return":         true,
	"direction":             true,
	"direction_binary":      true,
	"future_return_vol_adj": true,
}

// LabelColumns lists the supervised targets produced by the label builder.
var LabelColumns = []string{"future_price", "future_return", "direction", "direction_binary", "future_return_vol_adj"}

// Frame is a dense columnar table aligned to a timestamp index. Columns keep
// insertion order so feature vectors are reproducible.
type Frame struct {
	index []time.Time
	order []string
	cols  map[string][]float64
}

func NewFrame(index []time.Time) *Frame {
	idx := make([]time.Time, len(index))
	copy(idx, index)
	return &Frame{index: idx, cols: make(map[string][]float64)}
}

func (f *Frame) Len() int { return len(f.index) }

func (f *Frame) Index() []time.Time { return f.index }

// Add attaches a column. Length must match the index; re-adding replaces the
// values but keeps the original position.
func (f *Frame) Add(name string, values []float64) error {
	if len(values) != len(f.index) {
		return fmt.Errorf("column %s: length %d does not match index %d", name, len(values), len(f.index))
	}
	if _, exists := f.cols[name]; !exists {
		f.order = append(f.order, name)
	}
	f.cols[name] = values
	return nil
}

// MustAdd panics on length mismatch; used by builders whose inputs are
// constructed against the same index.
func (f *Frame) MustAdd(name string, values []float64) {
	if err := f.Add(name, values); err != nil {
		panic(err)
	}
}

func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

func (f *Frame) Column(name string) []float64 {
	return f.cols[name]
}

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// FeatureColumns returns the model input columns: everything except raw price
// columns and labels, in insertion order.
func (f *Frame) FeatureColumns() []string {
	out := make([]string, 0, len(f.order))
	for _, name := range f.order {
		if !excludedColumns[name] {
			out = append(out, name)
		}
	}
	return out
}

// DropNaN removes every row containing at least one NaN in any column.
func (f *Frame) DropNaN() *Frame {
	keep := make([]int, 0, len(f.index))
	for i := range f.index {
		valid := true
		for _, name := range f.order {
			if math.IsNaN(f.cols[name][i]) {
				valid = false
				break
			}
		}
		if valid {
			keep = append(keep, i)
		}
	}

	out := &Frame{
		index: make([]time.Time, len(keep)),
		order: append([]string(nil), f.order...),
		cols:  make(map[string][]float64, len(f.order)),
	}
	for j, i := range keep {
		out.index[j] = f.index[i]
	}
	for _, name := range f.order {
		src := f.cols[name]
		dst := make([]float64, len(keep))
		for j, i := range keep {
			dst[j] = src[i]
		}
		out.cols[name] = dst
	}
	return out
}

// Row extracts one feature vector in the given column order.
func (f *Frame) Row(i int, columns []string) ([]float64, error) {
	if i < 0 || i >= len(f.index) {
		return nil, fmt.Errorf("row %d out of range", i)
	}
	out := make([]float64, len(columns))
	for j, name := range columns {
		col, ok := f.cols[name]
		if !ok {
			return nil, fmt.Errorf("missing column %s", name)
		}
		out[j] = col[i]
	}
	return out, nil
}

// Matrix extracts all rows for the given columns.
func (f *Frame) Matrix(columns []string) ([][]float64, error) {
	if len(columns) == 0 {
		return nil, errors.New("no columns requested")
	}
	out := make([][]float64, f.Len())
	for i := range out {
		row, err := f.Row(i, columns)
		if err != nil {
			return nil, err
		}
		out[i] = row
	}
	return out, nil
}

// IntColumn converts a float column to ints, used for label vectors.
func (f *Frame) IntColumn(name string) ([]int, error) {
	col, ok := f.cols[name]
	if !ok {
		return nil, fmt.Errorf("missing column %s", name)
	}
	out := make([]int, len(col))
	for i, v := range col {
		out[i] = int(math.Round(v))
	}
	return out, nil
}
