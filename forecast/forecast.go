// Package forecast implements the recursive multi-step forecaster. Each
// horizon week is predicted from features recomputed over the working series,
// and the prediction is folded back into that series so later weeks see it as
// history. Horizon order is a correctness invariant: step w+1's lag features
// depend on step w's resolved output.
package forecast

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/pviana/go-demandcast/dataset"
	"github.com/pviana/go-demandcast/feature"
	"github.com/pviana/go-demandcast/models"
)

var (
	ErrNoRegressor      = errors.New("no regressor provided")
	ErrNoDeriver        = errors.New("no feature deriver provided")
	ErrNoFeatures       = errors.New("no model feature columns provided")
	ErrNoPairs          = errors.New("no entity pairs selected for forecasting")
	ErrEmptyHorizon     = errors.New("no horizon weeks")
	ErrUnorderedHorizon = errors.New("horizon weeks must be strictly increasing")
	ErrShortSeed        = errors.New("seed window must cover the rolling window")
)

// Options configure one forecasting run.
type Options struct {
	// SeedWeeks is the number of trailing history weeks carried into the
	// working series so lag and rolling features resolve for the first
	// horizon steps.
	SeedWeeks int

	// Horizon is the ordered list of week starts to forecast.
	Horizon []time.Time
}

// NewDefaultOptions mirrors the production run: an 8-week seed and the five
// forecast weeks of January 2023.
func NewDefaultOptions() *Options {
	return &Options{
		SeedWeeks: 8,
		Horizon: []time.Time{
			time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2023, 1, 9, 0, 0, 0, 0, time.UTC),
			time.Date(2023, 1, 16, 0, 0, 0, 0, time.UTC),
			time.Date(2023, 1, 23, 0, 0, 0, 0, time.UTC),
			time.Date(2023, 1, 30, 0, 0, 0, 0, time.UTC),
		},
	}
}

// Validate checks the run options against the deriver's rolling window.
func (o *Options) Validate(minSeedWeeks int) (*Options, error) {
	if o == nil {
		o = NewDefaultOptions()
	}
	if len(o.Horizon) == 0 {
		return nil, ErrEmptyHorizon
	}
	for i := 1; i < len(o.Horizon); i++ {
		if !o.Horizon[i].After(o.Horizon[i-1]) {
			return nil, fmt.Errorf("week %s follows %s, %w",
				o.Horizon[i].Format(time.DateOnly), o.Horizon[i-1].Format(time.DateOnly), ErrUnorderedHorizon)
		}
	}
	if o.SeedWeeks < minSeedWeeks {
		return nil, fmt.Errorf("%d seed weeks with a %d week window, %w", o.SeedWeeks, minSeedWeeks, ErrShortSeed)
	}
	return o, nil
}

// Forecaster rolls a trained regressor forward one week at a time over a
// working series it owns for the duration of one Run.
type Forecaster struct {
	opt       *Options
	reg       models.Regressor
	transform models.Transform
	features  []string
	deriver   *feature.Deriver
}

// New creates a Forecaster from a regressor and its declared contract. If no
// options are provided a default is used.
func New(reg models.Regressor, transform models.Transform, features []string, deriver *feature.Deriver, opt *Options) (*Forecaster, error) {
	if reg == nil {
		return nil, ErrNoRegressor
	}
	if deriver == nil {
		return nil, ErrNoDeriver
	}
	if len(features) == 0 {
		return nil, ErrNoFeatures
	}
	if err := transform.Valid(); err != nil {
		return nil, err
	}
	opt, err := opt.Validate(minSeed(deriver))
	if err != nil {
		return nil, err
	}
	return &Forecaster{
		opt:       opt,
		reg:       reg,
		transform: transform,
		features:  append([]string(nil), features...),
		deriver:   deriver,
	}, nil
}

// NewFromModel creates a Forecaster from a loaded model artifact, using the
// artifact's declared feature columns and output transform.
func NewFromModel(m *models.Model, deriver *feature.Deriver, opt *Options) (*Forecaster, error) {
	if m == nil {
		return nil, models.ErrNoModelArtifact
	}
	reg, err := models.NewRegressorFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("unable to rehydrate regressor from artifact, %w", err)
	}
	return New(reg, m.Transform, m.Features, deriver, opt)
}

// minSeed is the smallest seed span that can resolve every lag and the
// lagged rolling window on the first horizon step.
func minSeed(d *feature.Deriver) int {
	seed := d.RollingWindow()
	if lag := d.MaxLag(); lag > seed {
		seed = lag
	}
	return seed
}

// Run forecasts every selected entity pair across the configured horizon.
// The working series is seeded with recent history, extended with a skeleton
// row per (pair, horizon week), and resolved strictly in horizon order.
func (f *Forecaster) Run(hist *feature.Frame, pairs []dataset.Pair) (*Results, error) {
	if hist == nil {
		return nil, feature.ErrNilFrame
	}
	if len(pairs) == 0 {
		return nil, ErrNoPairs
	}

	ws, err := f.workingSeries(hist, pairs)
	if err != nil {
		return nil, err
	}

	slog.Debug("starting recursive forecast",
		"pairs", len(pairs), "horizon_weeks", len(f.opt.Horizon), "seed_rows", len(hist.Rows))

	res := &Results{}
	for _, week := range f.opt.Horizon {
		ws, err = f.step(ws, week, res)
		if err != nil {
			return nil, fmt.Errorf("horizon week %s, %w", week.Format(time.DateOnly), err)
		}
	}

	res.sort()
	return res, nil
}

// workingSeries builds the initial working series: the trailing SeedWeeks of
// history for all pairs plus a NaN skeleton row per (selected pair, horizon
// week). Concat aligns the skeleton's columns to the historical schema.
func (f *Forecaster) workingSeries(hist *feature.Frame, pairs []dataset.Pair) (*feature.Frame, error) {
	cutoff := hist.LastWeek().AddDate(0, 0, -7*f.opt.SeedWeeks)
	var seedRows []feature.Row
	for _, r := range hist.Rows {
		if r.Week.After(cutoff) {
			seedRows = append(seedRows, r)
		}
	}
	seed := feature.NewFrame(hist.Columns, seedRows)

	skelRows := make([]feature.Row, 0, len(pairs)*len(f.opt.Horizon))
	for _, p := range pairs {
		for _, week := range f.opt.Horizon {
			skelRows = append(skelRows, feature.Row{
				Week:     week,
				Pair:     p,
				Quantity: math.NaN(),
				NetValue: math.NaN(),
			})
		}
	}
	skeleton := feature.NewFrame(hist.Columns, skelRows)

	ws, err := feature.Concat(seed, skeleton)
	if err != nil {
		return nil, fmt.Errorf("unable to align seed and skeleton, %w", err)
	}
	return ws, nil
}

// step resolves one horizon week: forward-fill the price lag, refresh the
// derived features against the series-so-far, predict this week's rows only,
// and upsert the resolved quantities into a fresh snapshot.
func (f *Forecaster) step(ws *feature.Frame, week time.Time, res *Results) (*feature.Frame, error) {
	ws, err := ws.ForwardFillColumn(feature.LabelPriceLag1)
	if err != nil {
		return nil, err
	}

	ws, err = f.deriver.Refresh(ws)
	if err != nil {
		return nil, err
	}

	rowIdx := ws.WeekRows(week)
	if len(rowIdx) == 0 {
		return nil, fmt.Errorf("no skeleton rows for week %s, %w", week.Format(time.DateOnly), feature.ErrUnknownKey)
	}

	// remaining NaNs are zero-filled inside Matrix: a horizon row must be
	// predicted even when its pair has no resolvable history
	x, err := ws.Matrix(f.features, rowIdx)
	if err != nil {
		return nil, err
	}
	raw, err := f.reg.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("regressor failed, %w", err)
	}
	units := f.transform.Invert(raw)

	quantities := make(map[feature.Key]float64, len(rowIdx))
	for i, ri := range rowIdx {
		q := math.Round(units[i])
		if q < 0 || math.IsNaN(q) {
			q = 0
		}
		row := ws.Rows[ri]
		quantities[row.Key()] = q

		_, weekOfYear := row.Week.ISOWeek()
		res.Predictions = append(res.Predictions, Prediction{
			Week:       row.Week,
			WeekOfYear: weekOfYear,
			Store:      row.Pair.Store,
			Product:    row.Pair.Product,
			Quantity:   int64(q),
		})
	}

	return ws.WithQuantities(quantities)
}
