package dataset

import (
	"log/slog"
	"time"
)

// AggregateOptions controls the weekly aggregation step.
type AggregateOptions struct {
	// OutlierWeek is the week start of a known data artifact. All rows at
	// this week are replaced by the prior week's rows relabeled to this
	// date. The zero time disables the correction.
	OutlierWeek time.Time
}

// NewDefaultAggregateOptions returns aggregation options with the known
// September 2022 demand spike configured for correction.
func NewDefaultAggregateOptions() *AggregateOptions {
	return &AggregateOptions{
		OutlierWeek: time.Date(2022, 9, 5, 0, 0, 0, 0, time.UTC),
	}
}

// Validate fills in a default when no options are provided.
func (o *AggregateOptions) Validate() (*AggregateOptions, error) {
	if o == nil {
		o = NewDefaultAggregateOptions()
	}
	return o, nil
}

// Join enriches transactions with their store and product master records.
// Transactions drive the join; a missing master row leaves the enrichment nil
// rather than dropping the transaction.
func Join(txns []Transaction, stores []Store, products []Product) ([]Record, error) {
	if len(txns) == 0 {
		return nil, ErrNoTransactions
	}

	storesByID := make(map[int64]*Store, len(stores))
	for i := range stores {
		storesByID[stores[i].ID] = &stores[i]
	}
	productsByID := make(map[int64]*Product, len(products))
	for i := range products {
		productsByID[products[i].ID] = &products[i]
	}

	recs := make([]Record, 0, len(txns))
	for _, txn := range txns {
		recs = append(recs, Record{
			Transaction: txn,
			StoreInfo:   storesByID[txn.Store],
			ProductInfo: productsByID[txn.Product],
		})
	}
	return recs, nil
}

// Aggregate cleans the joined records and rolls them up to one row per
// (pair, week start), summing quantity and net value. Records missing a
// date, identifier or amount cannot be aggregated and are dropped. An empty
// result after cleaning is not an error.
func Aggregate(recs []Record, opt *AggregateOptions) (*Series, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}

	type key struct {
		week int64
		pair Pair
	}
	sums := make(map[key]*Row)
	var dropped int
	for _, rec := range recs {
		if rec.incomplete() {
			dropped++
			continue
		}
		week := WeekStart(rec.Date)
		k := key{week.Unix(), Pair{Store: rec.Store, Product: rec.Product}}
		row, ok := sums[k]
		if !ok {
			row = &Row{Week: week, Pair: k.pair}
			sums[k] = row
		}
		row.Quantity += rec.Quantity
		row.NetValue += rec.NetValue
	}
	if dropped > 0 {
		slog.Debug("dropped incomplete records during aggregation", "count", dropped)
	}

	rows := make([]Row, 0, len(sums))
	for _, row := range sums {
		rows = append(rows, *row)
	}
	s, err := NewSeries(rows)
	if err != nil {
		return nil, err
	}

	if !opt.OutlierWeek.IsZero() {
		s = correctOutlierWeek(s, WeekStart(opt.OutlierWeek))
	}
	return s, nil
}

// correctOutlierWeek removes every row at the anomalous week and substitutes
// the prior week's rows relabeled to the anomalous date. Pairs with no row at
// the prior week are left without a substitute; no row is fabricated.
func correctOutlierWeek(s *Series, week time.Time) *Series {
	prior := week.AddDate(0, 0, -7)

	rows := make([]Row, 0, len(s.Rows))
	var substituted int
	for _, r := range s.Rows {
		if r.Week.Equal(week) {
			continue
		}
		rows = append(rows, r)
		if r.Week.Equal(prior) {
			sub := r
			sub.Week = week
			rows = append(rows, sub)
			substituted++
		}
	}
	slog.Debug("outlier week corrected", "week", week.Format(time.DateOnly), "substituted", substituted)

	out := &Series{Rows: rows}
	out.Sort()
	return out
}
