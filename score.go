package demandcast

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrResLenMismatch = errors.New("predicted and actual have different lengths")
	ErrZeroActuals    = errors.New("actual values sum to zero")
)

// Scores summarize a holdout evaluation.
type Scores struct {
	WMAPE float64 // weighted mean absolute percent error
	MAE   float64 // mean absolute error
}

func NewScores(predicted, actual []float64) (*Scores, error) {
	wmape, err := WMAPE(predicted, actual)
	if err != nil {
		return nil, fmt.Errorf("unable to compute weighted mean absolute percent error, %w", err)
	}
	mae, err := MAE(predicted, actual)
	if err != nil {
		return nil, fmt.Errorf("unable to compute mean absolute error, %w", err)
	}
	return &Scores{
		WMAPE: wmape,
		MAE:   mae,
	}, nil
}

// WMAPE computes the sum of absolute errors weighted by the sum of absolute
// actuals, the accuracy metric the training objective minimizes.
func WMAPE(predicted, actual []float64) (float64, error) {
	if len(predicted) != len(actual) {
		return 0, ErrResLenMismatch
	}

	var num, den float64
	for i := 0; i < len(actual); i++ {
		if math.IsNaN(actual[i]) || math.IsNaN(predicted[i]) {
			continue
		}
		num += math.Abs(actual[i] - predicted[i])
		den += math.Abs(actual[i])
	}
	if den == 0 {
		return 0, ErrZeroActuals
	}
	return num / den, nil
}

// MAE computes the mean absolute error.
func MAE(predicted, actual []float64) (float64, error) {
	if len(predicted) != len(actual) {
		return 0, ErrResLenMismatch
	}

	mae := 0.0
	for i := 0; i < len(actual); i++ {
		if math.IsNaN(actual[i]) || math.IsNaN(predicted[i]) {
			continue
		}
		mae += math.Abs(actual[i] - predicted[i])
	}
	mae /= float64(len(actual))
	return mae, nil
}
