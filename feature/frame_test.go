package feature

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pviana/go-demandcast/dataset"
)

var (
	testPairA = dataset.Pair{Store: 1, Product: 10}
	testPairB = dataset.Pair{Store: 2, Product: 20}
)

func testWeek(offset int) time.Time {
	return time.Date(2022, 12, 5, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*offset)
}

func TestConcatAlignsColumns(t *testing.T) {
	hist := NewFrame([]string{"lag_1w", "price_lag_1w"}, []Row{
		{Week: testWeek(0), Pair: testPairA, Quantity: 5, Values: map[string]float64{"lag_1w": 4, "price_lag_1w": 2.5}},
	})
	// skeleton is missing the price column entirely
	skeleton := NewFrame([]string{"lag_1w"}, []Row{
		{Week: testWeek(1), Pair: testPairA, Quantity: math.NaN()},
	})

	ws, err := Concat(hist, skeleton)
	require.Nil(t, err)
	require.Len(t, ws.Rows, 2)
	assert.ElementsMatch(t, []string{"lag_1w", "price_lag_1w"}, ws.Columns)

	// the skeleton row gained the missing column as an unresolved value
	assert.True(t, math.IsNaN(ws.Rows[1].Values["price_lag_1w"]))
	assert.Equal(t, 2.5, ws.Rows[0].Values["price_lag_1w"])
}

func TestConcatDuplicateKey(t *testing.T) {
	a := NewFrame([]string{"lag_1w"}, []Row{
		{Week: testWeek(0), Pair: testPairA, Quantity: 5},
	})
	b := NewFrame([]string{"lag_1w"}, []Row{
		{Week: testWeek(0), Pair: testPairA, Quantity: math.NaN()},
	})

	_, err := Concat(a, b)
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestForwardFillColumn(t *testing.T) {
	f := NewFrame([]string{LabelPriceLag1}, []Row{
		{Week: testWeek(0), Pair: testPairA, Values: map[string]float64{LabelPriceLag1: 2.0}},
		{Week: testWeek(0), Pair: testPairB, Values: map[string]float64{LabelPriceLag1: 9.0}},
		{Week: testWeek(1), Pair: testPairA, Values: map[string]float64{LabelPriceLag1: math.NaN()}},
		{Week: testWeek(1), Pair: testPairB, Values: map[string]float64{LabelPriceLag1: 8.0}},
		{Week: testWeek(2), Pair: testPairA, Values: map[string]float64{LabelPriceLag1: math.NaN()}},
	})

	out, err := f.ForwardFillColumn(LabelPriceLag1)
	require.Nil(t, err)

	// fills stay within the entity pair
	assert.Equal(t, 2.0, out.Rows[2].Values[LabelPriceLag1])
	assert.Equal(t, 8.0, out.Rows[3].Values[LabelPriceLag1])
	assert.Equal(t, 2.0, out.Rows[4].Values[LabelPriceLag1])

	// the receiver is untouched
	assert.True(t, math.IsNaN(f.Rows[2].Values[LabelPriceLag1]))

	_, err = f.ForwardFillColumn("nope")
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestWithQuantities(t *testing.T) {
	f := NewFrame([]string{"lag_1w"}, []Row{
		{Week: testWeek(0), Pair: testPairA, Quantity: math.NaN()},
		{Week: testWeek(0), Pair: testPairB, Quantity: math.NaN()},
	})

	out, err := f.WithQuantities(map[Key]float64{
		f.Rows[0].Key(): 13,
	})
	require.Nil(t, err)
	assert.Equal(t, 13.0, out.Rows[0].Quantity)
	assert.True(t, math.IsNaN(out.Rows[1].Quantity))

	// upsert produces a snapshot; the previous frame still has the skeleton
	assert.True(t, math.IsNaN(f.Rows[0].Quantity))

	_, err = f.WithQuantities(map[Key]float64{
		{Pair: testPairA, Week: testWeek(5).Unix()}: 1,
	})
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestMatrix(t *testing.T) {
	f := NewFrame([]string{"lag_1w", "month"}, []Row{
		{Week: testWeek(0), Pair: testPairA, Values: map[string]float64{"lag_1w": 4, "month": 12}},
		{Week: testWeek(1), Pair: testPairA, Values: map[string]float64{"lag_1w": math.NaN(), "month": 12}},
	})

	x, err := f.Matrix([]string{"lag_1w", "month"}, nil)
	require.Nil(t, err)

	m, n := x.Dims()
	assert.Equal(t, 2, m)
	assert.Equal(t, 2, n)
	assert.Equal(t, 4.0, x.At(0, 0))
	// unresolved values extract as zero
	assert.Equal(t, 0.0, x.At(1, 0))

	_, err = f.Matrix([]string{"nope"}, nil)
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, err = f.Matrix([]string{"month"}, []int{})
	assert.ErrorIs(t, err, ErrNoRows)
}
