package ode

import "math"

// Euler is a fixed-step forward Euler solver. It reproduces day-by-day
// stepping of simple compartmental scripts when Step is 1.
type Euler struct {
	Step     float64
	MaxSteps int
}

// NewEuler returns a forward Euler solver with the given step.
func NewEuler(step float64) *Euler {
	return &Euler{Step: step, MaxSteps: 10_000_000}
}

// Solve integrates p with fixed steps (the last one shortened to land on
// TEnd). Samples between steps are linearly interpolated.
func (s *Euler) Solve(p Problem) (*Solution, error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	if !(s.Step > 0) {
		return nil, ErrBadProblem
	}
	n := len(p.Y0)
	sol := &Solution{}
	smp := newSampler(p, sol)

	t := p.T0
	y := append([]float64(nil), p.Y0...)
	if p.Observer != nil {
		p.Observer.ObserveStep(t, y)
	}
	var gOld float64
	if p.Event != nil {
		gOld = p.Event.Func(t, y)
	}

	f := make([]float64, n)
	for t < p.TEnd {
		if s.MaxSteps > 0 && sol.Steps >= s.MaxSteps {
			return nil, &StepError{Time: t, Step: sol.Steps, Wrapped: ErrStepBudget}
		}
		tNew := math.Min(p.T0+float64(sol.Steps+1)*s.Step, p.TEnd)
		h := tNew - t
		p.F(t, y, f)
		sol.Evals++
		yNew := make([]float64, n)
		for i := range yNew {
			yNew[i] = y[i] + h*f[i]
		}
		if !finite(yNew) {
			return nil, &StepError{Time: tNew, Step: sol.Steps, Wrapped: ErrNonFinite}
		}

		// Linear interpolant: the chord slope at both ends.
		slope := make([]float64, n)
		for i := range slope {
			slope[i] = (yNew[i] - y[i]) / h
		}
		d := &dense{t0: t, t1: tNew, y0: y, f0: slope, y1: yNew, f1: slope}
		sol.Steps++

		if p.Event != nil {
			gNew := p.Event.Func(tNew, yNew)
			if !sol.Fired && crossed(gOld, gNew, p.Event.Direction) {
				tE, yE := locate(p.Event, d, gOld)
				sol.Fired, sol.EventTime, sol.EventState = true, tE, yE
				if p.Event.Terminal {
					smp.emit(d, tE)
					return sol, nil
				}
			}
			gOld = gNew
		}
		smp.emit(d, tNew)

		t, y = tNew, yNew
		if p.Observer != nil {
			p.Observer.ObserveStep(t, y)
		}
	}
	return sol, nil
}
