// Package feature derives leakage-free model features from a weekly sales
// series. Lag and rolling columns only ever look backwards within a single
// entity pair's chronologically ordered rows.
package feature

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/pviana/go-demandcast/dataset"
)

var (
	ErrUnknownColumn = errors.New("column not present in frame")
	ErrUnknownKey    = errors.New("no frame row for entity pair and week")
	ErrDuplicateKey  = errors.New("multiple frame rows for the same entity pair and week")
	ErrNilFrame      = errors.New("nil frame")
	ErrNoRows        = errors.New("no rows selected")
)

// Key addresses one frame row by entity pair and week start.
type Key struct {
	Pair dataset.Pair
	Week int64 // unix seconds of the week start
}

// Row is one feature vector. Quantity is the target and is NaN on skeleton
// rows that have not been predicted yet. Values maps derived column names to
// values with NaN marking an unresolved feature.
type Row struct {
	Week     time.Time
	Pair     dataset.Pair
	Quantity float64
	NetValue float64
	Values   map[string]float64
}

// Key returns the row's frame key.
func (r Row) Key() Key {
	return Key{Pair: r.Pair, Week: r.Week.Unix()}
}

// Frame is a feature table with a fixed column set, sorted by (week, store,
// product). Mutating operations return a new snapshot and leave the receiver
// untouched.
type Frame struct {
	Columns []string
	Rows    []Row
}

// NewFrame builds a sorted frame, aligning every row to the column set by
// filling absent columns with NaN.
func NewFrame(columns []string, rows []Row) *Frame {
	f := &Frame{
		Columns: append([]string(nil), columns...),
		Rows:    rows,
	}
	for i := range f.Rows {
		f.Rows[i].Values = alignValues(f.Rows[i].Values, f.Columns)
	}
	f.sort()
	return f
}

func alignValues(values map[string]float64, columns []string) map[string]float64 {
	aligned := make(map[string]float64, len(columns))
	for _, col := range columns {
		v, ok := values[col]
		if !ok {
			v = math.NaN()
		}
		aligned[col] = v
	}
	return aligned
}

func (f *Frame) sort() {
	sort.SliceStable(f.Rows, func(i, j int) bool {
		if !f.Rows[i].Week.Equal(f.Rows[j].Week) {
			return f.Rows[i].Week.Before(f.Rows[j].Week)
		}
		return f.Rows[i].Pair.Less(f.Rows[j].Pair)
	})
}

// Copy returns a deep copy of the frame.
func (f *Frame) Copy() *Frame {
	rows := make([]Row, len(f.Rows))
	for i, r := range f.Rows {
		values := make(map[string]float64, len(r.Values))
		for k, v := range r.Values {
			values[k] = v
		}
		r.Values = values
		rows[i] = r
	}
	return &Frame{
		Columns: append([]string(nil), f.Columns...),
		Rows:    rows,
	}
}

// Index maps every (pair, week) key to its row position.
func (f *Frame) Index() (map[Key]int, error) {
	idx := make(map[Key]int, len(f.Rows))
	for i, r := range f.Rows {
		k := r.Key()
		if _, ok := idx[k]; ok {
			return nil, fmt.Errorf("pair %s at week %s, %w", r.Pair, r.Week.Format(time.DateOnly), ErrDuplicateKey)
		}
		idx[k] = i
	}
	return idx, nil
}

// Concat merges two frames into one working series. Column sets are aligned
// to their union with absent columns NaN-filled, so a skeleton missing a
// feature column concatenates cleanly. Overlapping (pair, week) keys are a
// programming error and fail loudly.
func Concat(a, b *Frame) (*Frame, error) {
	if a == nil || b == nil {
		return nil, ErrNilFrame
	}

	columns := append([]string(nil), a.Columns...)
	seen := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		seen[col] = struct{}{}
	}
	for _, col := range b.Columns {
		if _, ok := seen[col]; !ok {
			columns = append(columns, col)
		}
	}

	rows := make([]Row, 0, len(a.Rows)+len(b.Rows))
	rows = append(rows, a.Copy().Rows...)
	rows = append(rows, b.Copy().Rows...)

	merged := NewFrame(columns, rows)
	if _, err := merged.Index(); err != nil {
		return nil, err
	}
	return merged, nil
}

// WeekRows returns the positions of all rows at the given week.
func (f *Frame) WeekRows(week time.Time) []int {
	var idx []int
	for i, r := range f.Rows {
		if r.Week.Equal(week) {
			idx = append(idx, i)
		}
	}
	return idx
}

// ForwardFillColumn returns a snapshot with NaN values of one column replaced
// by the most recent earlier value within the same entity pair.
func (f *Frame) ForwardFillColumn(column string) (*Frame, error) {
	if !f.hasColumn(column) {
		return nil, fmt.Errorf("%q, %w", column, ErrUnknownColumn)
	}

	out := f.Copy()
	last := make(map[dataset.Pair]float64)
	for i := range out.Rows {
		v := out.Rows[i].Values[column]
		if math.IsNaN(v) {
			if prev, ok := last[out.Rows[i].Pair]; ok {
				out.Rows[i].Values[column] = prev
			}
			continue
		}
		last[out.Rows[i].Pair] = v
	}
	return out, nil
}

// WithQuantities returns a snapshot with the target quantity upserted at each
// key. Every key must address an existing row; the skeleton is expected to
// have been built up front.
func (f *Frame) WithQuantities(quantities map[Key]float64) (*Frame, error) {
	idx, err := f.Index()
	if err != nil {
		return nil, err
	}
	out := f.Copy()
	for k, q := range quantities {
		i, ok := idx[k]
		if !ok {
			return nil, fmt.Errorf("pair %s at week %s, %w", k.Pair, time.Unix(k.Week, 0).UTC().Format(time.DateOnly), ErrUnknownKey)
		}
		out.Rows[i].Quantity = q
	}
	return out, nil
}

// Matrix extracts the given feature columns for the selected rows into a
// design matrix, substituting zero for any unresolved value.
func (f *Frame) Matrix(features []string, rowIdx []int) (*mat.Dense, error) {
	for _, col := range features {
		if !f.hasColumn(col) {
			return nil, fmt.Errorf("%q, %w", col, ErrUnknownColumn)
		}
	}
	if rowIdx == nil {
		rowIdx = make([]int, len(f.Rows))
		for i := range f.Rows {
			rowIdx[i] = i
		}
	}
	if len(rowIdx) == 0 || len(features) == 0 {
		return nil, ErrNoRows
	}

	data := make([]float64, 0, len(rowIdx)*len(features))
	for _, i := range rowIdx {
		for _, col := range features {
			v := f.Rows[i].Values[col]
			if math.IsNaN(v) {
				v = 0
			}
			data = append(data, v)
		}
	}
	return mat.NewDense(len(rowIdx), len(features), data), nil
}

// Targets returns the quantity column for the selected rows, or for all rows
// when rowIdx is nil.
func (f *Frame) Targets(rowIdx []int) []float64 {
	if rowIdx == nil {
		rowIdx = make([]int, len(f.Rows))
		for i := range f.Rows {
			rowIdx[i] = i
		}
	}
	y := make([]float64, 0, len(rowIdx))
	for _, i := range rowIdx {
		y = append(y, f.Rows[i].Quantity)
	}
	return y
}

// Pairs returns the distinct entity pairs present in the frame.
func (f *Frame) Pairs() []dataset.Pair {
	seen := make(map[dataset.Pair]struct{}, len(f.Rows))
	var pairs []dataset.Pair
	for _, r := range f.Rows {
		if _, ok := seen[r.Pair]; ok {
			continue
		}
		seen[r.Pair] = struct{}{}
		pairs = append(pairs, r.Pair)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Less(pairs[j]) })
	return pairs
}

// LastWeek returns the most recent week in the frame or the zero time when
// the frame is empty.
func (f *Frame) LastWeek() time.Time {
	var last time.Time
	for _, r := range f.Rows {
		if r.Week.After(last) {
			last = r.Week
		}
	}
	return last
}

func (f *Frame) hasColumn(column string) bool {
	for _, col := range f.Columns {
		if col == column {
			return true
		}
	}
	return false
}
