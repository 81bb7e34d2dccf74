// Package dataset holds raw sales records and the weekly series they
// aggregate into. Every (store, product) pair is treated as one independent
// time series and no derived computation ever crosses pairs.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var (
	ErrNoTransactions = errors.New("no transaction records")
	ErrDuplicateRow   = errors.New("multiple rows for the same entity pair and week")
)

// Pair identifies one independent (store, product) sales series.
type Pair struct {
	Store   int64 `json:"store"`
	Product int64 `json:"product"`
}

func (p Pair) String() string {
	return fmt.Sprintf("%d/%d", p.Store, p.Product)
}

// Less orders pairs by store then product.
func (p Pair) Less(other Pair) bool {
	if p.Store != other.Store {
		return p.Store < other.Store
	}
	return p.Product < other.Product
}

// Transaction is one immutable sales fact. Missing fields are represented by
// a zero time, a non-positive identifier, or a NaN amount and cause the
// record to be discarded during cleaning.
type Transaction struct {
	Date     time.Time
	Store    int64
	Product  int64
	Quantity float64
	NetValue float64
}

// Store is one point-of-sale master record used to enrich transactions.
type Store struct {
	ID       int64
	Zipcode  string
	Category string
}

// Product is one product master record used to enrich transactions.
type Product struct {
	ID          int64
	Category    string
	Description string
}

// Record is a transaction joined with its optional master data. StoreInfo and
// ProductInfo are nil when the registry has no matching row; the transaction
// itself is always kept.
type Record struct {
	Transaction
	StoreInfo   *Store
	ProductInfo *Product
}

// Row is one aggregated week of sales for an entity pair. Week is the Monday
// of its calendar week.
type Row struct {
	Week     time.Time
	Pair     Pair
	Quantity float64
	NetValue float64
}

// Series is a weekly sales table sorted by (week, store, product) with at
// most one row per (pair, week).
type Series struct {
	Rows []Row
}

// NewSeries sorts the input rows and validates the one-row-per-pair-week
// invariant.
func NewSeries(rows []Row) (*Series, error) {
	s := &Series{Rows: rows}
	s.Sort()
	for i := 1; i < len(s.Rows); i++ {
		if s.Rows[i].Pair == s.Rows[i-1].Pair && s.Rows[i].Week.Equal(s.Rows[i-1].Week) {
			return nil, fmt.Errorf("pair %s at week %s, %w", s.Rows[i].Pair, s.Rows[i].Week.Format(time.DateOnly), ErrDuplicateRow)
		}
	}
	return s, nil
}

func (s *Series) Sort() {
	sort.SliceStable(s.Rows, func(i, j int) bool {
		if !s.Rows[i].Week.Equal(s.Rows[j].Week) {
			return s.Rows[i].Week.Before(s.Rows[j].Week)
		}
		return s.Rows[i].Pair.Less(s.Rows[j].Pair)
	})
}

func (s *Series) Copy() *Series {
	rows := make([]Row, len(s.Rows))
	copy(rows, s.Rows)
	return &Series{Rows: rows}
}

// Pairs returns the distinct entity pairs present in the series in sorted
// order.
func (s *Series) Pairs() []Pair {
	seen := make(map[Pair]struct{}, len(s.Rows))
	var pairs []Pair
	for _, r := range s.Rows {
		if _, ok := seen[r.Pair]; ok {
			continue
		}
		seen[r.Pair] = struct{}{}
		pairs = append(pairs, r.Pair)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Less(pairs[j]) })
	return pairs
}

// ByPair partitions the series into chronologically ordered per-pair row
// slices.
func (s *Series) ByPair() map[Pair][]Row {
	parts := make(map[Pair][]Row)
	for _, r := range s.Rows {
		parts[r.Pair] = append(parts[r.Pair], r)
	}
	for _, rows := range parts {
		sort.Slice(rows, func(i, j int) bool { return rows[i].Week.Before(rows[j].Week) })
	}
	return parts
}

// LastWeek returns the most recent week start in the series or the zero time
// when the series is empty.
func (s *Series) LastWeek() time.Time {
	var last time.Time
	for _, r := range s.Rows {
		if r.Week.After(last) {
			last = r.Week
		}
	}
	return last
}

// WeekStart truncates a timestamp to the Monday of its calendar week at
// midnight UTC.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	back := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -back)
}

func (t Transaction) incomplete() bool {
	return t.Date.IsZero() || t.Store <= 0 || t.Product <= 0 ||
		math.IsNaN(t.Quantity) || math.IsNaN(t.NetValue)
}
