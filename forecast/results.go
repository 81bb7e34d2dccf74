package forecast

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"
)

// Prediction is one resolved (pair, horizon week) forecast. Quantity is a
// non-negative integer unit count.
type Prediction struct {
	Week       time.Time `json:"week"`
	WeekOfYear int       `json:"week_of_year"`
	Store      int64     `json:"store"`
	Product    int64     `json:"product"`
	Quantity   int64     `json:"quantity"`
}

// Results accumulates the resolved predictions of one forecasting run, one
// row per (selected pair, horizon week).
type Results struct {
	Predictions []Prediction `json:"predictions"`
}

func (r *Results) sort() {
	sort.SliceStable(r.Predictions, func(i, j int) bool {
		a, b := r.Predictions[i], r.Predictions[j]
		if !a.Week.Equal(b.Week) {
			return a.Week.Before(b.Week)
		}
		if a.Store != b.Store {
			return a.Store < b.Store
		}
		return a.Product < b.Product
	})
}

// WriteCSV renders the submission table with a semicolon separator.
func (r *Results) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write([]string{"week_of_year", "store", "product", "quantity"}); err != nil {
		return fmt.Errorf("unable to write csv header, %w", err)
	}
	for _, p := range r.Predictions {
		rec := []string{
			strconv.Itoa(p.WeekOfYear),
			strconv.FormatInt(p.Store, 10),
			strconv.FormatInt(p.Product, 10),
			strconv.FormatInt(p.Quantity, 10),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("unable to write csv row, %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
