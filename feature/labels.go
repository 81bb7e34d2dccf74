package feature

import "fmt"

// Canonical derived column names. Lag and rolling columns are produced by the
// label helpers so offsets and window lengths stay configurable.
const (
	LabelDayOfMonth = "day_of_month"
	LabelDayOfWeek  = "day_of_week"
	LabelWeekOfYear = "week_of_year"
	LabelMonth      = "month"
	LabelHoliday    = "has_holiday"
	LabelPriceLag1  = "price_lag_1w"
)

// LagLabel names the quantity lag column for an offset in weeks.
func LagLabel(weeks int) string {
	return fmt.Sprintf("lag_%dw", weeks)
}

func RollingMeanLabel(window int) string {
	return fmt.Sprintf("rolling_mean_%dw", window)
}

func RollingStdLabel(window int) string {
	return fmt.Sprintf("rolling_std_%dw", window)
}

func RollingMinLabel(window int) string {
	return fmt.Sprintf("rolling_min_%dw", window)
}

func RollingMaxLabel(window int) string {
	return fmt.Sprintf("rolling_max_%dw", window)
}

// DefaultModelFeatures is the feature column list the regressor is trained
// on. More columns are derived than are fed to the model; the extras stay in
// the frame for inspection.
func DefaultModelFeatures() []string {
	return []string{
		LabelWeekOfYear,
		LabelMonth,
		LagLabel(1),
		LagLabel(2),
		LagLabel(4),
		RollingMeanLabel(4),
		LabelHoliday,
		LabelPriceLag1,
	}
}
