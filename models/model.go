// Package models provides the regression implementations, the output
// transform and the serialized model artifact used by the forecasting
// pipeline. The forecaster only ever sees the Regressor interface, keeping
// the recursive loop agnostic of the concrete fit.
package models

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNoModelArtifact = errors.New("no trained model artifact, run the training step first")
	ErrNoFeatures      = errors.New("model artifact declares no feature columns")
	ErrUnknownTrans    = errors.New("unknown output transform")
)

// Regressor predicts one value per design matrix row.
type Regressor interface {
	Predict(x mat.Matrix) ([]float64, error)
}

// Fitter is a Regressor that can also be trained in-process.
type Fitter interface {
	Regressor
	Fit(x, y mat.Matrix) error
	Intercept() float64
	Coef() []float64
}

// Transform tags the scale a model's target was trained on so predictions
// can be mapped back to units.
type Transform string

const (
	TransformNone  Transform = "none"
	TransformLog1p Transform = "log1p"
)

// Valid reports whether the transform tag is one this package knows how to
// invert.
func (tr Transform) Valid() error {
	switch tr {
	case TransformNone, TransformLog1p:
		return nil
	}
	return fmt.Errorf("%q, %w", string(tr), ErrUnknownTrans)
}

// Apply maps targets into training scale, returning a new slice.
func (tr Transform) Apply(y []float64) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		switch tr {
		case TransformLog1p:
			out[i] = math.Log1p(v)
		default:
			out[i] = v
		}
	}
	return out
}

// Invert maps predictions back to unit scale, returning a new slice.
func (tr Transform) Invert(y []float64) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		switch tr {
		case TransformLog1p:
			out[i] = math.Expm1(v)
		default:
			out[i] = v
		}
	}
	return out
}

// Weights are the linear coefficients of a trained model.
type Weights struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

// Model is the serialized artifact produced by training and consumed by the
// forecaster: the declared feature columns, the target transform and the
// fitted weights.
type Model struct {
	Transform Transform `json:"transform"`
	Features  []string  `json:"features"`
	Weights   Weights   `json:"weights"`
}

// Valid checks the artifact invariants before it is used for inference.
func (m *Model) Valid() error {
	if len(m.Features) == 0 {
		return ErrNoFeatures
	}
	if len(m.Features) != len(m.Weights.Coefficients) {
		return fmt.Errorf("%d features with %d coefficients, %w",
			len(m.Features), len(m.Weights.Coefficients), ErrFeatureLenMismatch)
	}
	return m.Transform.Valid()
}

// Save writes the artifact as JSON.
func (m *Model) Save(w io.Writer) error {
	return json.NewEncoder(w).Encode(m)
}

// SaveFile writes the artifact to a file path.
func (m *Model) SaveFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create model artifact, %w", err)
	}
	defer file.Close()
	return m.Save(file)
}

// Load reads a model artifact from JSON.
func Load(r io.Reader) (*Model, error) {
	var m Model
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("unable to decode model artifact, %w", err)
	}
	if err := m.Valid(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadFile reads a model artifact from a file path. A missing file reports
// ErrNoModelArtifact so callers can tell the operator to train before
// forecasting.
func LoadFile(path string) (*Model, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%q, %w", path, ErrNoModelArtifact)
		}
		return nil, fmt.Errorf("unable to open model artifact %q, %w", path, err)
	}
	defer file.Close()
	return Load(file)
}

// NewRegressorFromModel rehydrates a Regressor from artifact weights. The
// returned regressor is ready for inference without refitting.
func NewRegressorFromModel(m *Model) (Regressor, error) {
	if m == nil {
		return nil, ErrNoModelArtifact
	}
	if err := m.Valid(); err != nil {
		return nil, err
	}
	return &linearRegressor{
		intercept: m.Weights.Intercept,
		coef:      append([]float64(nil), m.Weights.Coefficients...),
	}, nil
}

type linearRegressor struct {
	intercept float64
	coef      []float64
}

func (l *linearRegressor) Predict(x mat.Matrix) ([]float64, error) {
	return predictLinear(x, l.intercept, l.coef)
}
