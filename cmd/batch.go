package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	sim "github.com/inference-sim/epidemic-sim/sim"
	"github.com/inference-sim/epidemic-sim/sim/policy"
)

// scenario is one named run of a batch.
type scenario struct {
	Name    string
	Mode    sim.Mode
	Cadence policy.Cadence // empty = batch default
}

// scenarioResult is the outcome of one scenario. Err holds an integration
// failure; the remaining scenarios still run.
type scenarioResult struct {
	Scenario   scenario
	Trajectory *sim.Trajectory
	Err        error
}

// runBatch integrates all scenarios concurrently against one shared model,
// one goroutine per scenario. Results keep the input order. Invalid
// parameters abort the batch; integration failures are reported per scenario.
func runBatch(ctx context.Context, opts runOptions, scenarios []scenario) ([]scenarioResult, error) {
	model, err := sim.NewModel(opts.Params)
	if err != nil {
		return nil, err
	}
	results := make([]scenarioResult, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	for i, sc := range scenarios {
		i, sc := i, sc // per-iteration copies for goroutine capture (go 1.21 loop semantics)
		c := sc.Cadence
		if c == "" {
			c = opts.Cadence
		}
		req, err := opts.request(sc.Mode, c)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		g.Go(func() error {
			traj, err := model.Run(ctx, req)
			results[i] = scenarioResult{Scenario: sc, Trajectory: traj}
			if errors.Is(err, sim.ErrIntegrationFailure) {
				logrus.Warnf("Scenario %s failed: %v", sc.Name, err)
				results[i].Err = err
				return nil
			}
			if err != nil {
				return fmt.Errorf("scenario %s: %w", sc.Name, err)
			}
			logrus.Infof("Scenario %s finished with %d samples", sc.Name, traj.Len())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// printComparison writes one line per scenario with its headline figures.
func printComparison(w io.Writer, results []scenarioResult) {
	_, _ = fmt.Fprintln(w, "=== Scenario Comparison ===")
	_, _ = fmt.Fprintf(w, "%-16s %-8s %12s %9s %12s %10s\n", "scenario", "mode", "peak I", "peak day", "final S", "attack")
	for _, r := range results {
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "%-16s %-8s failed: %v\n", r.Scenario.Name, r.Scenario.Mode, r.Err)
			continue
		}
		s := r.Trajectory.Summarize()
		_, _ = fmt.Fprintf(w, "%-16s %-8s %12.2f %9.2f %12.2f %10.4f\n",
			r.Scenario.Name, s.Mode, s.PeakInfected, s.PeakTime, s.FinalSusceptible, s.AttackRate)
	}
}

// reportBatch prints every successful summary and the comparison table, then
// saves outputs when dir is set.
func reportBatch(w io.Writer, results []scenarioResult, dir string, plot bool) error {
	for _, r := range results {
		if r.Err == nil {
			r.Trajectory.Summarize().Print(w)
		}
	}
	printComparison(w, results)
	if dir == "" {
		return nil
	}
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if err := saveOutputs(dir, r.Scenario.Name, r.Trajectory, plot); err != nil {
			return err
		}
	}
	logrus.Infof("Results written to %s", dir)
	return nil
}
