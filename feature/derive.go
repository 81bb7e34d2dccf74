package feature

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pviana/go-demandcast/dataset"
)

var (
	ErrNonPositiveLag    = errors.New("lag offsets must be positive")
	ErrNonPositiveWindow = errors.New("rolling window must be positive")
)

// Options configure the feature derivation. All business constants are
// injected here rather than read from globals.
type Options struct {
	// Lags are the quantity lag offsets in weeks.
	Lags []int

	// RollingWindow is the trailing window length for the rolling
	// statistics. The window is lagged by one week so it never includes
	// the current week's own quantity.
	RollingWindow int

	// Holidays are the dates flagged by the holiday feature.
	Holidays []time.Time
}

// NewDefaultOptions mirrors the production configuration: lags of 1, 2 and 4
// weeks, a 4-week rolling window and the 2022 Brazilian national holidays.
func NewDefaultOptions() *Options {
	return &Options{
		Lags:          []int{1, 2, 4},
		RollingWindow: 4,
		Holidays:      NationalHolidays(2022),
	}
}

// Validate runs basic validation on the derivation options.
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		o = NewDefaultOptions()
	}
	for _, lag := range o.Lags {
		if lag <= 0 {
			return nil, ErrNonPositiveLag
		}
	}
	if o.RollingWindow <= 0 {
		return nil, ErrNonPositiveWindow
	}
	return o, nil
}

// Deriver computes the feature frame from a weekly series. The same deriver
// is reused inside the recursive forecast loop against the growing working
// series.
type Deriver struct {
	opt *Options
}

// NewDeriver creates a deriver with the provided options. If none are
// provided a default is used.
func NewDeriver(opt *Options) (*Deriver, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &Deriver{opt: opt}, nil
}

// RollingWindow returns the configured trailing window length.
func (d *Deriver) RollingWindow() int {
	return d.opt.RollingWindow
}

// MaxLag returns the largest configured lag offset in weeks.
func (d *Deriver) MaxLag() int {
	var maxLag int
	for _, lag := range d.opt.Lags {
		if lag > maxLag {
			maxLag = lag
		}
	}
	return maxLag
}

// Columns lists every derived column in canonical order.
func (d *Deriver) Columns() []string {
	columns := []string{
		LabelDayOfMonth,
		LabelDayOfWeek,
		LabelWeekOfYear,
		LabelMonth,
	}
	for _, lag := range d.opt.Lags {
		columns = append(columns, LagLabel(lag))
	}
	columns = append(columns,
		RollingMeanLabel(d.opt.RollingWindow),
		RollingStdLabel(d.opt.RollingWindow),
		RollingMinLabel(d.opt.RollingWindow),
		RollingMaxLabel(d.opt.RollingWindow),
		LabelHoliday,
		LabelPriceLag1,
	)
	return columns
}

// Derive builds the static feature frame from historical weekly rows. Rows
// whose lag or rolling features cannot be resolved from the pair's own
// history are dropped; the model never trains on them.
func (d *Deriver) Derive(s *dataset.Series) (*Frame, error) {
	if s == nil {
		return nil, ErrNilFrame
	}

	rows := make([]Row, 0, len(s.Rows))
	for _, r := range s.Rows {
		rows = append(rows, Row{
			Week:     r.Week,
			Pair:     r.Pair,
			Quantity: r.Quantity,
			NetValue: r.NetValue,
		})
	}
	f := NewFrame(d.Columns(), rows)

	d.derivePriceLag(f)
	d.deriveShared(f)

	kept := f.Rows[:0]
	for _, r := range f.Rows {
		if resolved(r.Values) {
			kept = append(kept, r)
		}
	}
	f.Rows = kept
	return f, nil
}

// Refresh recomputes the calendar, lag, rolling and holiday columns of a
// working series from its current quantities. The price lag column is left
// untouched; during forecasting a missing future price is approximated by
// forward-filling the last observed value, and recomputing it here would
// discard that fill. Unresolved values stay NaN for the caller's fill policy.
func (d *Deriver) Refresh(f *Frame) (*Frame, error) {
	if f == nil {
		return nil, ErrNilFrame
	}
	out := f.Copy()
	d.deriveShared(out)
	return out, nil
}

// deriveShared computes the columns common to static derivation and the
// forecast-loop refresh: calendar, lags, rolling statistics and the holiday
// flag.
func (d *Deriver) deriveShared(f *Frame) {
	for i := range f.Rows {
		r := &f.Rows[i]
		r.Values[LabelDayOfMonth] = float64(r.Week.Day())
		r.Values[LabelDayOfWeek] = float64(isoWeekday(r.Week))
		_, week := r.Week.ISOWeek()
		r.Values[LabelWeekOfYear] = float64(week)
		r.Values[LabelMonth] = float64(r.Week.Month())
		r.Values[LabelHoliday] = boolFeature(holidayWithinWeek(r.Week, d.opt.Holidays))
	}

	for _, part := range d.partition(f) {
		for _, i := range part.rowIdx {
			r := &f.Rows[i]
			for _, lag := range d.opt.Lags {
				r.Values[LagLabel(lag)] = part.quantityAt(r.Week.AddDate(0, 0, -7*lag))
			}
			d.rolling(r, part)
		}
	}
}

// rolling computes the trailing window statistics for one row. The window
// covers the RollingWindow weeks strictly before the row's week and is only
// resolved when every week in it is present and resolved.
func (d *Deriver) rolling(r *Row, part pairPartition) {
	window := make([]float64, 0, d.opt.RollingWindow)
	for lag := 1; lag <= d.opt.RollingWindow; lag++ {
		q := part.quantityAt(r.Week.AddDate(0, 0, -7*lag))
		if math.IsNaN(q) {
			break
		}
		window = append(window, q)
	}

	mean, std, low, high := math.NaN(), math.NaN(), math.NaN(), math.NaN()
	if len(window) == d.opt.RollingWindow {
		mean = stat.Mean(window, nil)
		std = math.Sqrt(stat.Variance(window, nil))
		low = floats.Min(window)
		high = floats.Max(window)
	}
	r.Values[RollingMeanLabel(d.opt.RollingWindow)] = mean
	r.Values[RollingStdLabel(d.opt.RollingWindow)] = std
	r.Values[RollingMinLabel(d.opt.RollingWindow)] = low
	r.Values[RollingMaxLabel(d.opt.RollingWindow)] = high
}

// derivePriceLag computes the weekly average price per row, lags it by one
// week within each pair and imputes unresolvable lags with the mean over all
// resolved ones. The quantity denominator is floored at one so a zero-sales
// week with residual net value degrades to the net value instead of dividing
// by zero.
func (d *Deriver) derivePriceLag(f *Frame) {
	price := make([]float64, len(f.Rows))
	for i, r := range f.Rows {
		den := 1.0
		if r.Quantity > 0 {
			den = r.Quantity
		}
		price[i] = r.NetValue / den
	}

	var sum float64
	var n int
	for _, part := range d.partition(f) {
		for _, i := range part.rowIdx {
			j, ok := part.index[f.Rows[i].Week.AddDate(0, 0, -7).Unix()]
			if !ok {
				f.Rows[i].Values[LabelPriceLag1] = math.NaN()
				continue
			}
			f.Rows[i].Values[LabelPriceLag1] = price[j]
			sum += price[j]
			n++
		}
	}
	if n == 0 {
		return
	}

	mean := sum / float64(n)
	for i := range f.Rows {
		if math.IsNaN(f.Rows[i].Values[LabelPriceLag1]) {
			f.Rows[i].Values[LabelPriceLag1] = mean
		}
	}
}

// pairPartition is one entity pair's view of the frame with a week index for
// calendar-aware lag lookups.
type pairPartition struct {
	rows   []Row
	rowIdx []int
	index  map[int64]int // week start unix -> frame row position
}

// quantityAt returns the pair's quantity at a week start, or NaN when the
// week is absent or its quantity is still unresolved.
func (p pairPartition) quantityAt(week time.Time) float64 {
	i, ok := p.index[week.Unix()]
	if !ok {
		return math.NaN()
	}
	return p.rows[i].Quantity
}

func (d *Deriver) partition(f *Frame) map[dataset.Pair]pairPartition {
	parts := make(map[dataset.Pair]pairPartition)
	for i, r := range f.Rows {
		part, ok := parts[r.Pair]
		if !ok {
			part = pairPartition{rows: f.Rows, index: make(map[int64]int)}
		}
		part.rowIdx = append(part.rowIdx, i)
		part.index[r.Week.Unix()] = i
		parts[r.Pair] = part
	}
	return parts
}

func resolved(values map[string]float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// isoWeekday numbers days Monday=1 through Sunday=7.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
