package report

import (
	"bytes"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// RenderTeamChart draws the final team scores as a PNG bar chart.
// It returns nil when there are no teams to plot.
func RenderTeamChart(a Analytics) ([]byte, error) {
	if len(a.Teams) == 0 {
		return nil, nil
	}

	top := 1.0
	bars := make([]chart.Value, 0, len(a.Teams))
	for _, t := range a.Teams {
		style := chart.Style{StrokeWidth: 1}
		if strings.HasPrefix(t.Color, "#") && len(t.Color) == 7 {
			style.FillColor = drawing.ColorFromHex(t.Color[1:])
			style.StrokeColor = style.FillColor
		}
		if v := float64(t.Score); v > top {
			top = v
		}
		bars = append(bars, chart.Value{Label: t.Name, Value: float64(t.Score), Style: style})
	}

	graph := chart.BarChart{
		Title:    "Final scores " + a.RoomCode,
		Width:    800,
		Height:   400,
		BarWidth: 60,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		// Bars grow from zero so an all-zero room still has a valid range.
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: top},
		},
		Bars: bars,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
