// Package demandcast forecasts weekly unit sales per (store, product) pair
// from transaction-level history. Raw transactions are aggregated into
// per-pair weekly series, enriched with leakage-free lag, rolling, calendar,
// price and holiday features, and extended into the future by a recursive
// forecaster that feeds each week's prediction back in as history for the
// next.
package demandcast

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/pviana/go-demandcast/dataset"
	"github.com/pviana/go-demandcast/feature"
	"github.com/pviana/go-demandcast/forecast"
	"github.com/pviana/go-demandcast/models"
)

// Pipeline wires the aggregation, feature derivation, training and
// forecasting stages together under one configuration.
type Pipeline struct {
	opt     *Options
	deriver *feature.Deriver
}

// New creates a Pipeline using the provided options. If no options are
// provided a default is used.
func New(opt *Options) (*Pipeline, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	deriver, err := feature.NewDeriver(opt.Feature)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize feature deriver, %w", err)
	}
	return &Pipeline{
		opt:     opt,
		deriver: deriver,
	}, nil
}

// BuildWeekly joins and cleans the three input tables and aggregates them to
// the weekly series, applying the configured outlier-week correction.
func (p *Pipeline) BuildWeekly(txns []dataset.Transaction, stores []dataset.Store, products []dataset.Product) (*dataset.Series, error) {
	recs, err := dataset.Join(txns, stores, products)
	if err != nil {
		return nil, fmt.Errorf("unable to join input tables, %w", err)
	}
	s, err := dataset.Aggregate(recs, p.opt.Aggregate)
	if err != nil {
		return nil, fmt.Errorf("unable to aggregate weekly series, %w", err)
	}
	slog.Info("weekly series built", "rows", len(s.Rows), "pairs", len(s.Pairs()))
	return s, nil
}

// Features derives the static feature frame from the weekly series.
func (p *Pipeline) Features(s *dataset.Series) (*feature.Frame, error) {
	f, err := p.deriver.Derive(s)
	if err != nil {
		return nil, fmt.Errorf("unable to derive features, %w", err)
	}
	slog.Info("feature frame derived", "rows", len(f.Rows), "columns", len(f.Columns))
	return f, nil
}

// Train fits a regressor on the feature frame with the target mapped through
// the configured transform. The trailing HoldoutWeeks are scored with WMAPE
// and MAE before the final refit on the full frame. The returned scores are
// nil when the frame is too short to carve out a holdout.
func (p *Pipeline) Train(f *feature.Frame) (*models.Model, *Scores, error) {
	if f == nil || len(f.Rows) == 0 {
		return nil, nil, feature.ErrNilFrame
	}

	cutoff := f.LastWeek().AddDate(0, 0, -7*p.opt.HoldoutWeeks)
	var trainIdx, validIdx []int
	for i, r := range f.Rows {
		if r.Week.After(cutoff) {
			validIdx = append(validIdx, i)
		} else {
			trainIdx = append(trainIdx, i)
		}
	}

	var scores *Scores
	if len(trainIdx) > 0 && len(validIdx) > 0 {
		reg, err := p.fit(f, trainIdx)
		if err != nil {
			return nil, nil, err
		}
		predicted, err := p.predictUnits(reg, f, validIdx)
		if err != nil {
			return nil, nil, err
		}
		scores, err = NewScores(predicted, f.Targets(validIdx))
		if err != nil {
			return nil, nil, err
		}
		slog.Info("holdout evaluation", "wmape", scores.WMAPE, "mae", scores.MAE,
			"train_rows", len(trainIdx), "valid_rows", len(validIdx))
	}

	// final fit on the full history
	reg, err := p.fit(f, nil)
	if err != nil {
		return nil, nil, err
	}
	m := &models.Model{
		Transform: p.opt.Transform,
		Features:  append([]string(nil), p.opt.Features...),
		Weights: models.Weights{
			Intercept:    reg.Intercept(),
			Coefficients: reg.Coef(),
		},
	}
	return m, scores, nil
}

// Forecast runs the recursive forecaster for the selected pairs using a
// trained model artifact. The pair selection is the caller's business
// decision; any pre-filtered set is accepted.
func (p *Pipeline) Forecast(m *models.Model, hist *feature.Frame, pairs []dataset.Pair) (*forecast.Results, error) {
	fc, err := forecast.NewFromModel(m, p.deriver, p.opt.Forecast)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize forecaster, %w", err)
	}
	start := time.Now()
	res, err := fc.Run(hist, pairs)
	if err != nil {
		return nil, err
	}
	slog.Info("forecast complete", "rows", len(res.Predictions), "elapsed", time.Since(start))
	return res, nil
}

func (p *Pipeline) fit(f *feature.Frame, rowIdx []int) (models.Fitter, error) {
	x, err := f.Matrix(p.opt.Features, rowIdx)
	if err != nil {
		return nil, err
	}
	y := p.opt.Transform.Apply(f.Targets(rowIdx))

	reg, err := models.NewOLSRegression(nil)
	if err != nil {
		return nil, err
	}
	if err := reg.Fit(x, mat.NewDense(len(y), 1, y)); err != nil {
		return nil, fmt.Errorf("unable to fit regression, %w", err)
	}
	return reg, nil
}

// predictUnits evaluates the regressor and maps predictions back to unit
// scale with the same rounding and clamping the forecaster applies.
func (p *Pipeline) predictUnits(reg models.Regressor, f *feature.Frame, rowIdx []int) ([]float64, error) {
	x, err := f.Matrix(p.opt.Features, rowIdx)
	if err != nil {
		return nil, err
	}
	raw, err := reg.Predict(x)
	if err != nil {
		return nil, err
	}
	units := p.opt.Transform.Invert(raw)
	for i, v := range units {
		v = math.Round(v)
		if v < 0 {
			v = 0
		}
		units[i] = v
	}
	return units, nil
}
