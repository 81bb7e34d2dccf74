package feature

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pviana/go-demandcast/dataset"
)

func testSeries(t *testing.T, p dataset.Pair, quantities []float64, unitPrice float64) *dataset.Series {
	t.Helper()
	weeks := dataset.GenerateWeeks(len(quantities), time.Date(2022, 12, 26, 0, 0, 0, 0, time.UTC))
	s, err := dataset.NewSeries(dataset.GeneratePairRows(p, weeks, quantities, unitPrice))
	require.Nil(t, err)
	return s
}

func TestDeriverOptionsValidate(t *testing.T) {
	testData := map[string]struct {
		opt *Options
		err error
	}{
		"nil gets defaults": {nil, nil},
		"zero lag":          {&Options{Lags: []int{0}, RollingWindow: 4}, ErrNonPositiveLag},
		"zero window":       {&Options{Lags: []int{1}, RollingWindow: 0}, ErrNonPositiveWindow},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			opt, err := td.opt.Validate()
			if td.err != nil {
				require.ErrorIs(t, err, td.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, NewDefaultOptions(), opt)
		})
	}
}

func TestDeriveLagAndRolling(t *testing.T) {
	pairA := dataset.Pair{Store: 1, Product: 10}
	s := testSeries(t, pairA, []float64{10, 12, 9, 11, 14, 13}, 2.0)

	d, err := NewDeriver(nil)
	require.Nil(t, err)

	f, err := d.Derive(s)
	require.Nil(t, err)

	// the first four weeks lack lag/rolling history and are dropped
	require.Len(t, f.Rows, 2)

	last := f.Rows[1]
	assert.Equal(t, 13.0, last.Quantity)
	assert.Equal(t, 14.0, last.Values[LagLabel(1)])
	assert.Equal(t, 11.0, last.Values[LagLabel(2)])
	assert.Equal(t, 12.0, last.Values[LagLabel(4)])

	// window [12 9 11 14] excludes the current week's own quantity
	assert.InDelta(t, 11.5, last.Values[RollingMeanLabel(4)], 1e-12)
	assert.InDelta(t, math.Sqrt(13.0/3.0), last.Values[RollingStdLabel(4)], 1e-12)
	assert.Equal(t, 9.0, last.Values[RollingMinLabel(4)])
	assert.Equal(t, 14.0, last.Values[RollingMaxLabel(4)])

	// constant unit price flows through the one week lag
	assert.Equal(t, 2.0, last.Values[LabelPriceLag1])
}

func TestDeriveCalendar(t *testing.T) {
	pairA := dataset.Pair{Store: 1, Product: 10}
	s := testSeries(t, pairA, []float64{1, 2, 3, 4, 5}, 1.0)

	d, err := NewDeriver(nil)
	require.Nil(t, err)
	f, err := d.Derive(s)
	require.Nil(t, err)
	require.Len(t, f.Rows, 1)

	// 2022-12-26, the last Monday of the ISO year
	r := f.Rows[0]
	assert.Equal(t, time.Date(2022, 12, 26, 0, 0, 0, 0, time.UTC), r.Week)
	assert.Equal(t, 26.0, r.Values[LabelDayOfMonth])
	assert.Equal(t, 1.0, r.Values[LabelDayOfWeek])
	assert.Equal(t, 52.0, r.Values[LabelWeekOfYear])
	assert.Equal(t, 12.0, r.Values[LabelMonth])
}

func TestDerivePrice(t *testing.T) {
	pairA := dataset.Pair{Store: 1, Product: 10}
	weeks := dataset.GenerateWeeks(2, time.Date(2022, 12, 26, 0, 0, 0, 0, time.UTC))

	testData := map[string]struct {
		rows     []dataset.Row
		expected float64 // price lag at the second week
	}{
		"plain average": {
			[]dataset.Row{
				{Week: weeks[0], Pair: pairA, Quantity: 4, NetValue: 10},
				{Week: weeks[1], Pair: pairA, Quantity: 2, NetValue: 6},
			},
			2.5,
		},
		"zero quantity floors the denominator": {
			[]dataset.Row{
				{Week: weeks[0], Pair: pairA, Quantity: 0, NetValue: 7.5},
				{Week: weeks[1], Pair: pairA, Quantity: 2, NetValue: 6},
			},
			7.5,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			s, err := dataset.NewSeries(td.rows)
			require.Nil(t, err)

			d, err := NewDeriver(nil)
			require.Nil(t, err)

			rows := make([]Row, 0, len(s.Rows))
			for _, r := range s.Rows {
				rows = append(rows, Row{Week: r.Week, Pair: r.Pair, Quantity: r.Quantity, NetValue: r.NetValue})
			}
			f := NewFrame(d.Columns(), rows)
			d.derivePriceLag(f)

			assert.InDelta(t, td.expected, f.Rows[1].Values[LabelPriceLag1], 1e-12)
			// no prior week: imputed with the mean over resolved lags
			assert.InDelta(t, td.expected, f.Rows[0].Values[LabelPriceLag1], 1e-12)
		})
	}
}

func TestDeriveShortHistoryDropsAllRows(t *testing.T) {
	pairA := dataset.Pair{Store: 1, Product: 10}
	s := testSeries(t, pairA, []float64{5, 6, 7}, 1.0)

	d, err := NewDeriver(nil)
	require.Nil(t, err)
	f, err := d.Derive(s)
	require.Nil(t, err)
	assert.Empty(t, f.Rows)
}

func TestRefresh(t *testing.T) {
	pairA := dataset.Pair{Store: 1, Product: 10}
	weeks := dataset.GenerateWeeks(6, time.Date(2023, 1, 9, 0, 0, 0, 0, time.UTC))

	d, err := NewDeriver(nil)
	require.Nil(t, err)

	rows := make([]Row, 0, len(weeks))
	for i, w := range weeks[:5] {
		rows = append(rows, Row{Week: w, Pair: pairA, Quantity: float64(10 + i), NetValue: float64(2 * (10 + i))})
	}
	// skeleton row for the next week with a forward-filled price
	rows = append(rows, Row{
		Week:     weeks[5],
		Pair:     pairA,
		Quantity: math.NaN(),
		NetValue: math.NaN(),
		Values:   map[string]float64{LabelPriceLag1: 2.0},
	})
	f := NewFrame(d.Columns(), rows)

	out, err := d.Refresh(f)
	require.Nil(t, err)

	skel := out.Rows[5]
	// lags reference the series-so-far, including the most recent actuals
	assert.Equal(t, 14.0, skel.Values[LagLabel(1)])
	assert.Equal(t, 13.0, skel.Values[LagLabel(2)])
	assert.Equal(t, 11.0, skel.Values[LagLabel(4)])
	assert.InDelta(t, 12.5, skel.Values[RollingMeanLabel(4)], 1e-12)

	// the price column is never recomputed by Refresh
	assert.Equal(t, 2.0, skel.Values[LabelPriceLag1])

	// the receiver frame is left untouched
	assert.True(t, math.IsNaN(f.Rows[5].Values[LagLabel(1)]))
}

func TestRefreshUnresolvedStaysNaN(t *testing.T) {
	pairA := dataset.Pair{Store: 1, Product: 10}
	d, err := NewDeriver(nil)
	require.Nil(t, err)

	// a pair with zero historical rows prior to its horizon week
	f := NewFrame(d.Columns(), []Row{
		{Week: testWeek(0), Pair: pairA, Quantity: math.NaN(), NetValue: math.NaN()},
	})

	out, err := d.Refresh(f)
	require.Nil(t, err)
	assert.True(t, math.IsNaN(out.Rows[0].Values[LagLabel(1)]))
	assert.True(t, math.IsNaN(out.Rows[0].Values[RollingMeanLabel(4)]))
	// calendar features still resolve
	assert.Equal(t, 12.0, out.Rows[0].Values[LabelMonth])
}
