package export

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/berthplan/core/analysis"
	"github.com/kilianp07/berthplan/core/model"
)

// WriteOccupancyChart renders per-berth occupancy over w as a standalone
// HTML bar chart.
func WriteOccupancyChart(out io.Writer, occ []analysis.BerthOccupancy, w model.TimeWindow) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Berth occupancy",
			Subtitle: fmt.Sprintf("%s to %s", w.Start.Format("2006-01-02 15:04"), w.End.Format("2006-01-02 15:04")),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Berth"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "%"}),
	)

	berths := make([]string, 0, len(occ))
	var occupied, utilised []opts.BarData
	for _, o := range occ {
		berths = append(berths, o.BerthID)
		occupied = append(occupied, opts.BarData{Value: percent(o.Fraction)})
		utilised = append(utilised, opts.BarData{Value: percent(o.Utilisation)})
	}
	bar.SetXAxis(berths).
		AddSeries("Occupied", occupied).
		AddSeries("Utilised", utilised)

	if err := bar.Render(out); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

func percent(f float64) float64 { return math.Round(f*1000) / 10 }
