package feature

import (
	"time"

	"github.com/rickar/cal/v2"
)

// Brazilian national holidays observed by the sales calendar.
var (
	Tiradentes = &cal.Holiday{
		Name:  "Tiradentes",
		Type:  cal.ObservancePublic,
		Month: time.April,
		Day:   21,
		Func:  cal.CalcDayOfMonth,
	}
	Independence = &cal.Holiday{
		Name:  "Independencia do Brasil",
		Type:  cal.ObservancePublic,
		Month: time.September,
		Day:   7,
		Func:  cal.CalcDayOfMonth,
	}
	Aparecida = &cal.Holiday{
		Name:  "Nossa Senhora Aparecida",
		Type:  cal.ObservancePublic,
		Month: time.October,
		Day:   12,
		Func:  cal.CalcDayOfMonth,
	}
	AllSouls = &cal.Holiday{
		Name:  "Finados",
		Type:  cal.ObservancePublic,
		Month: time.November,
		Day:   2,
		Func:  cal.CalcDayOfMonth,
	}
	Republic = &cal.Holiday{
		Name:  "Proclamacao da Republica",
		Type:  cal.ObservancePublic,
		Month: time.November,
		Day:   15,
		Func:  cal.CalcDayOfMonth,
	}
)

// NationalHolidays expands the Brazilian national holiday definitions into
// concrete dates for a year.
func NationalHolidays(year int) []time.Time {
	hols := []*cal.Holiday{Tiradentes, Independence, Aparecida, AllSouls, Republic}
	dates := make([]time.Time, 0, len(hols))
	for _, hol := range hols {
		actual, _ := hol.Calc(year)
		dates = append(dates, time.Date(actual.Year(), actual.Month(), actual.Day(), 0, 0, 0, 0, time.UTC))
	}
	return dates
}

// holidayWithinWeek reports whether any day of the 7-day span starting at
// week falls on a configured holiday. Both sides are normalized to UTC
// midnight so the comparison is an exact day match.
func holidayWithinWeek(week time.Time, holidays []time.Time) bool {
	for i := 0; i < 7; i++ {
		day := week.AddDate(0, 0, i)
		for _, hol := range holidays {
			diff := day.Sub(hol)
			if diff < 0 {
				diff = -diff
			}
			if diff < 24*time.Hour {
				return true
			}
		}
	}
	return false
}
