// Package ode provides explicit ODE integrators for the epidemic model.
// This package has no dependencies on sim/; it integrates any right-hand side
// expressed as a Func.
package ode

import (
	"errors"
	"fmt"
	"math"
)

// Func evaluates the right-hand side dy/dt = f(t, y) into dydt.
// Implementations may carry side effects (see StepObserver); the solver calls
// Func once per stage, including stages of rejected step attempts.
type Func func(t float64, y, dydt []float64)

// StepObserver is notified once at the initial point and once after every
// accepted step. Rejected attempts are never reported. ObserveStep returns
// true when the observation changed the right-hand side, in which case the
// solver re-evaluates the derivative at t instead of reusing the last stage.
type StepObserver interface {
	ObserveStep(t float64, y []float64) (changed bool)
}

// Direction restricts which zero crossings of an EventFunc are reported.
type Direction int

const (
	// Either reports crossings in both directions.
	Either Direction = 0
	// Ascending reports crossings from negative to non-negative.
	Ascending Direction = 1
	// Descending reports crossings from positive to non-positive.
	Descending Direction = -1
)

// Event describes a scalar function whose zero crossing is located during
// integration.
type Event struct {
	Func      func(t float64, y []float64) float64
	Direction Direction
	Terminal  bool // stop integration at the first crossing
}

// Problem groups the inputs of one integration.
type Problem struct {
	F        Func
	Observer StepObserver // optional
	T0, TEnd float64
	Y0       []float64
	Grid     []float64 // ascending sample times in [T0, TEnd]
	Event    *Event    // optional

	// OnSample, if set, is called for each grid sample as it is produced,
	// before the observer sees the step that produced it.
	OnSample func(t float64, y []float64)
}

// Solution holds the dense samples on the requested grid and the event, if any.
type Solution struct {
	T          []float64
	Y          [][]float64
	Fired      bool
	EventTime  float64
	EventState []float64
	Steps      int // accepted steps
	Rejected   int
	Evals      int // right-hand side evaluations
}

// Solver integrates a Problem.
type Solver interface {
	Solve(p Problem) (*Solution, error)
}

var (
	// ErrStepFailed indicates the solver could not advance the solution.
	ErrStepFailed = errors.New("ode: step failed")
	// ErrNonFinite indicates the state or error estimate became NaN or Inf.
	ErrNonFinite = errors.New("ode: non-finite state")
	// ErrStepBudget indicates MaxSteps was exhausted before TEnd.
	ErrStepBudget = errors.New("ode: step budget exhausted")
	// ErrBadProblem indicates malformed solver input.
	ErrBadProblem = errors.New("ode: invalid problem")
)

// StepError wraps a solver failure with the time it happened.
type StepError struct {
	Time    float64
	Step    int
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%v at t=%g (step %d)", e.Wrapped, e.Time, e.Step)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}

func validate(p Problem) error {
	if p.F == nil {
		return fmt.Errorf("%w: nil right-hand side", ErrBadProblem)
	}
	if len(p.Y0) == 0 {
		return fmt.Errorf("%w: empty initial state", ErrBadProblem)
	}
	if !(p.TEnd > p.T0) {
		return fmt.Errorf("%w: span [%g, %g] is empty", ErrBadProblem, p.T0, p.TEnd)
	}
	for i, t := range p.Grid {
		if t < p.T0 || t > p.TEnd {
			return fmt.Errorf("%w: grid point %d (%g) outside [%g, %g]", ErrBadProblem, i, t, p.T0, p.TEnd)
		}
		if i > 0 && t < p.Grid[i-1] {
			return fmt.Errorf("%w: grid not ascending at %d", ErrBadProblem, i)
		}
	}
	if p.Event != nil && p.Event.Func == nil {
		return fmt.Errorf("%w: event without function", ErrBadProblem)
	}
	return nil
}

func finite(y []float64) bool {
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// crossed reports whether g moved through zero between gOld and gNew in the
// requested direction.
func crossed(gOld, gNew float64, dir Direction) bool {
	up := gOld <= 0 && gNew >= 0 && gOld != gNew
	down := gOld >= 0 && gNew <= 0 && gOld != gNew
	switch dir {
	case Ascending:
		return up
	case Descending:
		return down
	default:
		return up || down
	}
}

// hermite evaluates the cubic Hermite interpolant between (t0, y0, f0) and
// (t1, y1, f1) at t into out.
func hermite(t0, t1 float64, y0, f0, y1, f1 []float64, t float64, out []float64) {
	h := t1 - t0
	s := (t - t0) / h
	s2 := s * s
	s3 := s2 * s
	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2
	for i := range out {
		out[i] = h00*y0[i] + h10*h*f0[i] + h01*y1[i] + h11*h*f1[i]
	}
}

// dense is the interpolant over one accepted step.
type dense struct {
	t0, t1         float64
	y0, f0, y1, f1 []float64
}

func (d *dense) at(t float64) []float64 {
	out := make([]float64, len(d.y0))
	switch t {
	case d.t0:
		copy(out, d.y0)
	case d.t1:
		copy(out, d.y1)
	default:
		hermite(d.t0, d.t1, d.y0, d.f0, d.y1, d.f1, t, out)
	}
	return out
}

// locate bisects g on the step interpolant to the first crossing. It returns
// the right end of the final bracket, so g there is on the far side of zero.
func locate(ev *Event, d *dense, gLo float64) (float64, []float64) {
	lo, hi := d.t0, d.t1
	yHi := d.y1
	tol := 4 * epsilon * math.Max(1, math.Abs(hi))
	for i := 0; i < 200 && hi-lo > tol; i++ {
		mid := lo + (hi-lo)/2
		yMid := d.at(mid)
		gMid := ev.Func(mid, yMid)
		if crossed(gLo, gMid, ev.Direction) {
			hi, yHi = mid, yMid
		} else {
			lo, gLo = mid, gMid
		}
	}
	return hi, append([]float64(nil), yHi...)
}

// sampler emits dense samples for grid points covered by accepted steps.
type sampler struct {
	grid     []float64
	next     int
	sol      *Solution
	onSample func(t float64, y []float64)
}

func newSampler(p Problem, sol *Solution) *sampler {
	sol.T = make([]float64, 0, len(p.Grid))
	sol.Y = make([][]float64, 0, len(p.Grid))
	return &sampler{grid: p.Grid, sol: sol, onSample: p.OnSample}
}

func (s *sampler) emit(d *dense, upTo float64) {
	for s.next < len(s.grid) && s.grid[s.next] <= upTo {
		t := s.grid[s.next]
		y := d.at(t)
		s.sol.T = append(s.sol.T, t)
		s.sol.Y = append(s.sol.Y, y)
		if s.onSample != nil {
			s.onSample(t, y)
		}
		s.next++
	}
}

const epsilon = 2.220446049250313e-16
