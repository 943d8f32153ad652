package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"
)

var ErrNoData = errors.New("no registrations yet")

const (
	ChartFileName = "workshop_registrations.png"
	chartTitle    = "Workshop Registrations"
	xAxisName     = "Workshop"
	yAxisName     = "Number of Registrations"
)

// RenderChart draws one bar per workshop in counts as a PNG. It returns
// ErrNoData instead of drawing an empty chart.
func RenderChart(w io.Writer, counts map[string]int) error {
	if len(counts) == 0 {
		return ErrNoData
	}

	sorted := SortedCounts(counts)
	bars := make([]chart.Value, 0, len(sorted))
	maxCount := 0
	for _, c := range sorted {
		bars = append(bars, chart.Value{Label: c.Workshop, Value: float64(c.Count)})
		if c.Count > maxCount {
			maxCount = c.Count
		}
	}

	graph := chart.BarChart{
		Title:  chartTitle,
		Width:  640,
		Height: 420,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 70},
		},
		BarWidth: 40,
		YAxis: chart.YAxis{
			Name:  yAxisName,
			Range: &chart.ContinuousRange{Min: 0, Max: float64(maxCount)},
			Ticks: countTicks(maxCount),
		},
		Bars:     bars,
		Elements: []chart.Renderable{axisLabel(xAxisName)},
	}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// countTicks labels the y axis with whole numbers only.
func countTicks(maxCount int) []chart.Tick {
	step := maxCount/10 + 1
	ticks := make([]chart.Tick, 0, maxCount/step+2)
	for v := 0; v <= maxCount; v += step {
		ticks = append(ticks, chart.Tick{Value: float64(v), Label: strconv.Itoa(v)})
	}
	if last := ticks[len(ticks)-1]; int(last.Value) != maxCount {
		ticks = append(ticks, chart.Tick{Value: float64(maxCount), Label: strconv.Itoa(maxCount)})
	}
	return ticks
}

func axisLabel(text string) chart.Renderable {
	return func(r chart.Renderer, canvasBox chart.Box, defaults chart.Style) {
		style := chart.Style{
			FontSize:  10,
			FontColor: chart.ColorBlack,
		}.InheritFrom(defaults)

		box := chart.Draw.MeasureText(r, text, style)
		x := canvasBox.Left + (canvasBox.Width()-box.Width())/2
		y := canvasBox.Bottom + 45
		chart.Draw.Text(r, text, x, y, style)
	}
}
