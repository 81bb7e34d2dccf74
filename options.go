package demandcast

import (
	"github.com/pviana/go-demandcast/dataset"
	"github.com/pviana/go-demandcast/feature"
	"github.com/pviana/go-demandcast/forecast"
	"github.com/pviana/go-demandcast/models"
)

// Options carry every business constant of a pipeline run. Nothing in the
// pipeline reads configuration from globals; alternate outlier weeks, holiday
// lists or horizons are injected here.
type Options struct {
	Aggregate *dataset.AggregateOptions
	Feature   *feature.Options
	Forecast  *forecast.Options

	// Features is the ordered model feature column list fed to the
	// regressor.
	Features []string

	// Transform is the target scale the regressor is trained on. Its
	// inverse is applied to every prediction.
	Transform models.Transform

	// HoldoutWeeks is the trailing validation span used by Train to score
	// the fit before refitting on the full history.
	HoldoutWeeks int
}

// NewDefaultOptions mirrors the production configuration: the September 2022
// outlier week, the 2022 Brazilian holiday calendar, a log1p target and the
// January 2023 horizon.
func NewDefaultOptions() *Options {
	return &Options{
		Aggregate:    dataset.NewDefaultAggregateOptions(),
		Feature:      feature.NewDefaultOptions(),
		Forecast:     forecast.NewDefaultOptions(),
		Features:     feature.DefaultModelFeatures(),
		Transform:    models.TransformLog1p,
		HoldoutWeeks: 4,
	}
}

// Validate normalizes the options, filling in defaults for any nil section.
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		o = NewDefaultOptions()
	}
	var err error
	if o.Aggregate, err = o.Aggregate.Validate(); err != nil {
		return nil, err
	}
	if o.Feature, err = o.Feature.Validate(); err != nil {
		return nil, err
	}
	if len(o.Features) == 0 {
		o.Features = feature.DefaultModelFeatures()
	}
	if o.Transform == "" {
		o.Transform = models.TransformLog1p
	}
	if err = o.Transform.Valid(); err != nil {
		return nil, err
	}
	if o.HoldoutWeeks <= 0 {
		o.HoldoutWeeks = 4
	}
	// forecast options are validated against the deriver at run time
	return o, nil
}
