package cmd

import (
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	sim "github.com/inference-sim/epidemic-sim/sim"
	"github.com/inference-sim/epidemic-sim/sim/trace"
)

const (
	plotWidth  = 1200
	plotHeight = 600
)

var colorRecovered = drawing.Color{R: 255, G: 165, B: 0, A: 255}

// renderPlot draws S, I and R against time as a PNG. Lottery triggers are
// annotated on the I curve; the mandate is drawn as a vertical marker.
func renderPlot(w io.Writer, title string, traj *sim.Trajectory) error {
	if traj.Len() < 2 {
		return fmt.Errorf("plot needs at least 2 samples, got %d", traj.Len())
	}
	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "Susceptible",
			XValues: traj.Times,
			YValues: traj.S,
			Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 2.0},
		},
		chart.ContinuousSeries{
			Name:    "Infected",
			XValues: traj.Times,
			YValues: traj.I,
			Style:   chart.Style{StrokeColor: chart.ColorRed, StrokeWidth: 2.0},
		},
		chart.ContinuousSeries{
			Name:    "Recovered",
			XValues: traj.Times,
			YValues: traj.R,
			Style:   chart.Style{StrokeColor: colorRecovered, StrokeWidth: 2.0},
		},
	}
	if traj.MandateFired {
		series = append(series, chart.ContinuousSeries{
			Name:    fmt.Sprintf("Mandate (day %.1f)", traj.MandateTime),
			XValues: []float64{traj.MandateTime, traj.MandateTime},
			YValues: []float64{0, traj.Params.Population},
			Style:   chart.Style{StrokeColor: chart.ColorBlack, StrokeWidth: 1.0, StrokeDashArray: []float64{5.0, 5.0}},
		})
	}
	if notes := triggerAnnotations(traj.Trace); len(notes) > 0 {
		series = append(series, chart.AnnotationSeries{Annotations: notes})
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s (%s)", title, traj.Mode),
		Width:  plotWidth,
		Height: plotHeight,
		XAxis: chart.XAxis{
			Name:  "Day",
			Style: chart.Style{FontSize: 10.0},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "Individuals",
			Style: chart.Style{FontSize: 10.0},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("rendering plot: %w", err)
	}
	return nil
}

// triggerAnnotations labels each distinct lottery trigger time with the
// vaccination rate it produced.
func triggerAnnotations(pt *trace.PolicyTrace) []chart.Value2 {
	if pt == nil {
		return nil
	}
	var notes []chart.Value2
	seen := make(map[float64]bool)
	for _, r := range pt.Records {
		if r.Kind != trace.KindLotteryThreshold || seen[r.Time] {
			continue
		}
		seen[r.Time] = true
		notes = append(notes, chart.Value2{
			XValue: r.Time,
			YValue: r.Infected,
			Label:  fmt.Sprintf("v=%.3g", r.VaccinationRate),
		})
	}
	return notes
}
