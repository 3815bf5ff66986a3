package sim

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/inference-sim/epidemic-sim/sim/ode"
	"github.com/inference-sim/epidemic-sim/sim/policy"
	"github.com/inference-sim/epidemic-sim/sim/trace"
)

// Model is an SIR epidemic model with fixed parameters. Every Run creates its
// own policy state and trajectory, so a Model can be reused and separate runs
// share no mutable state.
type Model struct {
	params Params
}

// NewModel validates p and returns a Model. A zero MandateDelay is replaced
// by DefaultMandateDelay.
func NewModel(p Params) (*Model, error) {
	if p.MandateDelay == 0 {
		p.MandateDelay = DefaultMandateDelay
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Model{params: p}, nil
}

// Params returns the model parameters.
func (m *Model) Params() Params {
	return m.params
}

// phase is the integrator state machine: running until the mandate fires,
// then post-event for the remainder of the span.
type phase int

const (
	phaseRunning phase = iota
	phasePostEvent
)

func (ph phase) String() string {
	if ph == phasePostEvent {
		return "post-event"
	}
	return "pre-event"
}

// run is the per-run state owned exclusively by one Run call.
type run struct {
	params  Params
	mode    Mode
	cadence policy.Cadence
	policy  *policy.State
	phase   phase
	traj    *Trajectory
}

// UniformGrid returns n evenly spaced points from a to b inclusive. The last
// point is exactly b.
func UniformGrid(a, b float64, n int) []float64 {
	grid := floats.Span(make([]float64, n), a, b)
	grid[n-1] = b
	return grid
}

// Run integrates the model for req and returns the trajectory.
//
// Non-mandate modes integrate the whole span once. Mandate mode integrates
// until the mandate event or the end of the span; when the event fires the
// state is transformed by ApplyMandate and integration restarts from the
// event time on a fresh grid of req.SampleCount points over [t_event, stop].
//
// Failures wrap ErrInvalidSimulationParameters or ErrIntegrationFailure; no
// trajectory is returned with an error.
func (m *Model) Run(ctx context.Context, req RunRequest) (*Trajectory, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cadence := req.Cadence
	if cadence == "" {
		cadence = policy.CadenceEvaluation
	}
	state, err := policy.NewState(m.params.Beta, m.params.Gamma, m.params.Population, m.params.InitialInfected)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSimulationParameters, err)
	}
	solver := req.Solver
	if solver == nil {
		solver = ode.NewDormandPrince()
	}

	r := &run{
		params:  m.params,
		mode:    req.Mode,
		cadence: cadence,
		policy:  state,
		traj:    newTrajectory(req.Mode, m.params, req.SampleCount),
	}
	logrus.Debugf("Starting %s run: N=%g i0=%g beta=%g gamma=%g stop=%g samples=%d cadence=%s",
		req.Mode, m.params.Population, m.params.InitialInfected, m.params.Beta, m.params.Gamma,
		req.StopTime, req.SampleCount, cadence)

	var ev *ode.Event
	if req.Mode == ModeMandate {
		ev = mandateEvent(m.params)
	}
	grid := UniformGrid(0, req.StopTime, req.SampleCount)
	pre, err := r.segment(solver, 0, req.StopTime, m.params.InitialState(), grid, ev)
	if err != nil {
		return nil, err
	}

	if ev != nil && pre.Fired {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.fireMandate(solver, pre, req); err != nil {
			return nil, err
		}
	}

	r.finish()
	logrus.Debugf("Finished %s run: %d samples, %d steps (%d rejected), %d evaluations",
		req.Mode, r.traj.Len(), r.traj.Stats.Steps, r.traj.Stats.Rejected, r.traj.Stats.Evaluations)
	return r.traj, nil
}

// segment integrates one continuous piece and appends its samples.
func (r *run) segment(solver ode.Solver, t0, tEnd float64, y0, grid []float64, ev *ode.Event) (*ode.Solution, error) {
	prob := ode.Problem{
		F:        r.derivative,
		T0:       t0,
		TEnd:     tEnd,
		Y0:       y0,
		Grid:     grid,
		Event:    ev,
		OnSample: r.record,
	}
	if r.mode == ModeLottery && r.cadence == policy.CadenceStep {
		prob.Observer = r
	}
	sol, err := solver.Solve(prob)
	if err != nil {
		return nil, fmt.Errorf("%w: %s segment of %s run: %w", ErrIntegrationFailure, r.phase, r.mode, err)
	}
	r.traj.Stats.Steps += sol.Steps
	r.traj.Stats.Rejected += sol.Rejected
	r.traj.Stats.Evaluations += sol.Evals
	return sol, nil
}

// record appends a solver sample with the vaccination rate currently in effect.
func (r *run) record(t float64, y []float64) {
	v := 0.0
	if r.mode == ModeLottery {
		v = r.policy.Rate()
	}
	r.traj.append(t, y, v)
}

// fireMandate closes the pre-event segment at the event instant, applies the
// mandate and integrates the rest of the span.
func (r *run) fireMandate(solver ode.Solver, pre *ode.Solution, req RunRequest) error {
	tE, yE := pre.EventTime, pre.EventState
	if n := r.traj.Len(); n > 0 && r.traj.Times[n-1] == tE {
		r.traj.set(n-1, yE)
	} else {
		r.traj.append(tE, yE, 0)
	}

	yPost, moved := ApplyMandate(yE)
	r.phase = phasePostEvent
	r.traj.MandateFired = true
	r.traj.MandateTime = tE
	r.traj.EventIndex = r.traj.Len()
	r.traj.Trace.Record(trace.TriggerRecord{
		Kind:        trace.KindMandate,
		Time:        tE,
		Susceptible: yE[idxS],
		Infected:    yE[idxI],
		Moved:       moved,
	})
	logrus.Debugf("Mandate fired at t=%.4f (Rt=%.4f): S %.2f -> %.2f, %.2f moved to R",
		tE, r.params.Rt(yE[idxS]), yE[idxS], yPost[idxS], moved)

	if !(req.StopTime > tE) {
		r.traj.append(tE, yPost, 0)
		return nil
	}
	grid := UniformGrid(tE, req.StopTime, req.SampleCount)
	_, err := r.segment(solver, tE, req.StopTime, yPost, grid, nil)
	return err
}

// finish copies policy triggers into the trajectory.
func (r *run) finish() {
	r.traj.Stats.PolicyEvaluations = r.policy.Evaluations
	if r.mode != ModeLottery {
		return
	}
	for _, tr := range r.policy.Triggers {
		r.traj.TriggerTimes = append(r.traj.TriggerTimes, tr.Time)
		r.traj.Trace.Record(trace.TriggerRecord{
			Kind:            trace.KindLotteryThreshold,
			Time:            tr.Time,
			Susceptible:     tr.Susceptible,
			Infected:        tr.Infected,
			Threshold:       tr.Threshold,
			VaccinationRate: tr.VaccinationRate,
		})
	}
}
