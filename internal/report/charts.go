// Package report renders solver and training progress as HTML line charts
// and prints strategy tables for the terminal.
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"blackjack-mdp/internal/engine"
	"blackjack-mdp/internal/mdp"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("report: no data to plot")

// ConvergenceChart writes an HTML page plotting the per-sweep largest value
// change and mean state value of a value-iteration run.
func ConvergenceChart(w io.Writer, stats mdp.Stats) error {
	if len(stats.Deltas) == 0 {
		return ErrNoData
	}
	sweeps := make([]string, 0, len(stats.Deltas))
	for i := range stats.Deltas {
		sweeps = append(sweeps, fmt.Sprintf("%d", i+1))
	}

	delta := newLine("value iteration", "largest change per sweep")
	delta.SetXAxis(sweeps).AddSeries("delta", lineData(stats.Deltas))

	mean := newLine("mean state value", "")
	mean.SetXAxis(sweeps).AddSeries("mean V", lineData(stats.MeanValues))

	page := components.NewPage()
	page.AddCharts(delta, mean)
	return page.Render(w)
}

// TrainingChart writes an HTML page plotting the moving-average reward and
// the exploration rate carried by each snapshot.
func TrainingChart(w io.Writer, snaps []engine.Snapshot) error {
	if len(snaps) == 0 {
		return ErrNoData
	}
	episodes := make([]string, 0, len(snaps))
	rewards := make([]float64, 0, len(snaps))
	epsilons := make([]float64, 0, len(snaps))
	alphas := make([]float64, 0, len(snaps))
	for _, snap := range snaps {
		episodes = append(episodes, fmt.Sprintf("%d", snap.Episode))
		rewards = append(rewards, snap.AverageReward)
		epsilons = append(epsilons, snap.Epsilon)
		alphas = append(alphas, snap.Alpha)
	}

	reward := newLine("average reward", snaps[0].RunID)
	reward.SetXAxis(episodes).AddSeries("reward", lineData(rewards))

	schedule := newLine("schedules", "")
	schedule.SetXAxis(episodes).
		AddSeries("epsilon", lineData(epsilons)).
		AddSeries("alpha", lineData(alphas))

	page := components.NewPage()
	page.AddCharts(reward, schedule)
	return page.Render(w)
}

func newLine(title, subtitle string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: subtitle,
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
	)
	return line
}

func lineData(values []float64) []opts.LineData {
	items := make([]opts.LineData, 0, len(values))
	for _, v := range values {
		items = append(items, opts.LineData{Value: v})
	}
	return items
}
