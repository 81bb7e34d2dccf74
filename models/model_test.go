package models

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestTransform(t *testing.T) {
	testData := map[string]struct {
		tr       Transform
		in       []float64
		expected []float64
	}{
		"identity": {
			TransformNone,
			[]float64{0, 1.5, 12},
			[]float64{0, 1.5, 12},
		},
		"log1p": {
			TransformLog1p,
			[]float64{0, math.E - 1},
			[]float64{0, 1},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			applied := td.tr.Apply(td.in)
			assert.InDeltaSlice(t, td.expected, applied, 1e-12)

			// Invert is the exact inverse of Apply
			assert.InDeltaSlice(t, td.in, td.tr.Invert(applied), 1e-12)
		})
	}

	assert.ErrorIs(t, Transform("sqrt").Valid(), ErrUnknownTrans)
}

func TestModelRoundTrip(t *testing.T) {
	m := &Model{
		Transform: TransformLog1p,
		Features:  []string{"lag_1w", "month"},
		Weights: Weights{
			Intercept:    0.25,
			Coefficients: []float64{1.5, -0.5},
		},
	}

	var buf bytes.Buffer
	require.Nil(t, m.Save(&buf))

	got, err := Load(&buf)
	require.Nil(t, err)
	assert.Equal(t, m, got)
}

func TestModelFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	m := &Model{
		Transform: TransformNone,
		Features:  []string{"lag_1w"},
		Weights: Weights{
			Intercept:    1,
			Coefficients: []float64{2},
		},
	}
	require.Nil(t, m.SaveFile(path))

	got, err := LoadFile(path)
	require.Nil(t, err)
	assert.Equal(t, m, got)
}

func TestLoadFileMissingArtifact(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nothing.json"))
	require.ErrorIs(t, err, ErrNoModelArtifact)
}

func TestModelValid(t *testing.T) {
	testData := map[string]struct {
		m   Model
		err error
	}{
		"no features": {
			Model{Transform: TransformNone},
			ErrNoFeatures,
		},
		"coefficient mismatch": {
			Model{
				Transform: TransformNone,
				Features:  []string{"a", "b"},
				Weights:   Weights{Coefficients: []float64{1}},
			},
			ErrFeatureLenMismatch,
		},
		"bad transform": {
			Model{
				Transform: Transform("exp"),
				Features:  []string{"a"},
				Weights:   Weights{Coefficients: []float64{1}},
			},
			ErrUnknownTrans,
		},
		"valid": {
			Model{
				Transform: TransformLog1p,
				Features:  []string{"a"},
				Weights:   Weights{Coefficients: []float64{1}},
			},
			nil,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			err := td.m.Valid()
			if td.err != nil {
				require.ErrorIs(t, err, td.err)
				return
			}
			assert.Nil(t, err)
		})
	}
}

func TestNewRegressorFromModel(t *testing.T) {
	m := &Model{
		Transform: TransformNone,
		Features:  []string{"x1", "x2"},
		Weights: Weights{
			Intercept:    2,
			Coefficients: []float64{3, 4},
		},
	}
	reg, err := NewRegressorFromModel(m)
	require.Nil(t, err)

	x := mat.NewDense(2, 2, []float64{
		0, 0,
		3, 5,
	})
	res, err := reg.Predict(x)
	require.Nil(t, err)
	assert.InDeltaSlice(t, []float64{2, 31}, res, 1e-12)

	_, err = NewRegressorFromModel(nil)
	assert.ErrorIs(t, err, ErrNoModelArtifact)
}
