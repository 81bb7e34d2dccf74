package dataset

import (
	"math"
	"math/rand/v2"
	"time"
)

// GenerateWeeks returns n consecutive Monday week starts ending at the week
// containing end.
func GenerateWeeks(n int, end time.Time) []time.Time {
	last := WeekStart(end)
	weeks := make([]time.Time, 0, n)
	for i := n - 1; i >= 0; i-- {
		weeks = append(weeks, last.AddDate(0, 0, -7*i))
	}
	return weeks
}

// GeneratePairRows builds one weekly row per quantity for the pair using a
// fixed unit price. Weeks and quantities must have the same length.
func GeneratePairRows(p Pair, weeks []time.Time, quantities []float64, unitPrice float64) []Row {
	rows := make([]Row, 0, len(weeks))
	for i, w := range weeks {
		rows = append(rows, Row{
			Week:     w,
			Pair:     p,
			Quantity: quantities[i],
			NetValue: quantities[i] * unitPrice,
		})
	}
	return rows
}

// GenerateTransactions explodes weekly quantities into two transactions per
// week so aggregation has something to sum.
func GenerateTransactions(p Pair, weeks []time.Time, quantities []float64, unitPrice float64) []Transaction {
	txns := make([]Transaction, 0, 2*len(weeks))
	for i, w := range weeks {
		first := math.Floor(quantities[i] / 2)
		rest := quantities[i] - first
		txns = append(txns,
			Transaction{
				Date:     w.Add(10 * time.Hour),
				Store:    p.Store,
				Product:  p.Product,
				Quantity: first,
				NetValue: first * unitPrice,
			},
			Transaction{
				Date:     w.AddDate(0, 0, 3).Add(15 * time.Hour),
				Store:    p.Store,
				Product:  p.Product,
				Quantity: rest,
				NetValue: rest * unitPrice,
			},
		)
	}
	return txns
}

// GenerateQuantities returns n noisy weekly quantities around base.
func GenerateQuantities(n int, base, amplitude float64) []float64 {
	q := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v := math.Round(base + amplitude*(2*rand.Float64()-1))
		if v < 0 {
			v = 0
		}
		q = append(q, v)
	}
	return q
}
