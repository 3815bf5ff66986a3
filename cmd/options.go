package cmd

import (
	"fmt"

	sim "github.com/inference-sim/epidemic-sim/sim"
	"github.com/inference-sim/epidemic-sim/sim/ode"
	"github.com/inference-sim/epidemic-sim/sim/policy"
)

const (
	solverDormandPrince = "dopri"
	solverEuler         = "euler"
)

// runOptions is the resolved configuration shared by every mode of one invocation.
type runOptions struct {
	Params   sim.Params
	StopTime float64
	Samples  int
	Cadence  policy.Cadence
	Solver   string
	Step     float64 // Euler step; ignored by dopri
}

func optionsFromFlags() runOptions {
	p := sim.NewParams(population, initialInfected, beta, gamma)
	p.MandateDelay = mandateDelay
	return runOptions{
		Params:   p,
		StopTime: stopTime,
		Samples:  sampleCount,
		Cadence:  policy.Cadence(cadence),
		Solver:   solverName,
		Step:     eulerStep,
	}
}

// request builds the RunRequest for mode. Each call constructs a fresh solver
// so concurrent runs never share one.
func (o runOptions) request(mode sim.Mode, c policy.Cadence) (sim.RunRequest, error) {
	solver, err := newSolver(o.Solver, o.Step)
	if err != nil {
		return sim.RunRequest{}, err
	}
	req := sim.NewRunRequest(mode, o.StopTime, o.Samples)
	if c != "" {
		req.Cadence = c
	}
	req.Solver = solver
	return req, nil
}

// newSolver maps a --solver name to an ode.Solver.
func newSolver(name string, dt float64) (ode.Solver, error) {
	switch name {
	case "", solverDormandPrince:
		return ode.NewDormandPrince(), nil
	case solverEuler:
		if !(dt > 0) {
			return nil, fmt.Errorf("%w: euler step must be positive, got %g", sim.ErrInvalidSimulationParameters, dt)
		}
		return ode.NewEuler(dt), nil
	default:
		return nil, fmt.Errorf("%w: unknown solver %q (valid: %s, %s)",
			sim.ErrInvalidSimulationParameters, name, solverDormandPrince, solverEuler)
	}
}
