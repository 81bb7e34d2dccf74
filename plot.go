package demandcast

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/pviana/go-demandcast/dataset"
	"github.com/pviana/go-demandcast/forecast"
)

// LinePairForecast generates an echart line chart for one entity pair,
// plotting its weekly sales history with the forecast horizon appended.
func LinePairForecast(pair dataset.Pair, hist []dataset.Row, res *forecast.Results) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: fmt.Sprintf("Weekly Sales Forecast %s", pair),
			},
		),
	)

	var t []time.Time
	lineDataActual := make([]opts.LineData, 0, len(hist))
	for _, r := range hist {
		if r.Pair != pair {
			continue
		}
		t = append(t, r.Week)
		lineDataActual = append(lineDataActual, opts.LineData{Value: r.Quantity})
	}

	lineDataForecast := make([]opts.LineData, 0, len(res.Predictions))
	// pad the forecast series so it starts where history ends
	for range lineDataActual {
		lineDataForecast = append(lineDataForecast, opts.LineData{Value: "-"})
	}
	for _, p := range res.Predictions {
		if p.Store != pair.Store || p.Product != pair.Product {
			continue
		}
		t = append(t, p.Week)
		lineDataForecast = append(lineDataForecast, opts.LineData{Value: p.Quantity})
	}

	line.SetXAxis(t).
		AddSeries("Actual", lineDataActual).
		AddSeries("Forecast", lineDataForecast)
	return line
}

// PlotForecast renders one chart per requested pair into an html page.
func PlotForecast(w io.Writer, pairs []dataset.Pair, s *dataset.Series, res *forecast.Results) error {
	page := components.NewPage()
	for _, pair := range pairs {
		page.AddCharts(LinePairForecast(pair, s.Rows, res))
	}
	return page.Render(w)
}
