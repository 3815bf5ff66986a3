package ode

import (
	"fmt"
	"math"
)

// Dormand-Prince 5(4) tableau.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [6][5]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
	}
	dpB = [6]float64{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84}
	// dpE is the difference between the 5th and embedded 4th order weights,
	// including the FSAL stage.
	dpE = [7]float64{-71.0 / 57600, 0, 71.0 / 16695, -71.0 / 1920, 17253.0 / 339200, -22.0 / 525, 1.0 / 40}
)

const (
	dpSafety    = 0.9
	dpMinFactor = 0.2
	dpMaxFactor = 10.0
	dpErrExp    = -1.0 / 5
)

// DormandPrince is an adaptive explicit Runge-Kutta 5(4) solver with
// first-same-as-last stages and a cubic Hermite interpolant for sampling.
type DormandPrince struct {
	RelTol    float64
	AbsTol    float64
	MaxSteps  int
	FirstStep float64 // 0 = automatic
}

// NewDormandPrince returns a solver with conventional RK45 tolerances.
func NewDormandPrince() *DormandPrince {
	return &DormandPrince{RelTol: 1e-3, AbsTol: 1e-6, MaxSteps: 1_000_000}
}

func (s *DormandPrince) rmsNorm(v, y0, y1 []float64) float64 {
	sum := 0.0
	for i := range v {
		scale := s.AbsTol + s.RelTol*math.Max(math.Abs(y0[i]), math.Abs(y1[i]))
		r := v[i] / scale
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(v)))
}

// initialStep follows the usual two-evaluation heuristic for explicit RK
// methods. It evaluates f once more than the integration itself.
func (s *DormandPrince) initialStep(p Problem, f0 []float64, evals *int) float64 {
	if s.FirstStep > 0 {
		return math.Min(s.FirstStep, p.TEnd-p.T0)
	}
	n := len(p.Y0)
	zero := make([]float64, n)
	d0 := s.rmsNorm(p.Y0, p.Y0, zero)
	d1 := s.rmsNorm(f0, p.Y0, zero)
	h0 := 1e-6
	if d0 >= 1e-5 && d1 >= 1e-5 {
		h0 = 0.01 * d0 / d1
	}
	h0 = math.Min(h0, p.TEnd-p.T0)

	y1 := make([]float64, n)
	for i := range y1 {
		y1[i] = p.Y0[i] + h0*f0[i]
	}
	f1 := make([]float64, n)
	p.F(p.T0+h0, y1, f1)
	*evals++
	diff := make([]float64, n)
	for i := range diff {
		diff[i] = f1[i] - f0[i]
	}
	d2 := s.rmsNorm(diff, p.Y0, zero) / h0

	var h1 float64
	if d1 <= 1e-15 && d2 <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/math.Max(d1, d2), 1.0/5)
	}
	return math.Min(math.Min(100*h0, h1), p.TEnd-p.T0)
}

// Solve integrates p from T0 to TEnd, or to the first crossing of a terminal
// event, sampling the solution on p.Grid.
func (s *DormandPrince) Solve(p Problem) (*Solution, error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	n := len(p.Y0)
	sol := &Solution{}
	smp := newSampler(p, sol)

	t := p.T0
	y := append([]float64(nil), p.Y0...)
	if p.Observer != nil {
		p.Observer.ObserveStep(t, y)
	}
	f := make([]float64, n)
	p.F(t, y, f)
	sol.Evals++
	if !finite(f) {
		return nil, &StepError{Time: t, Wrapped: ErrNonFinite}
	}

	var gOld float64
	if p.Event != nil {
		gOld = p.Event.Func(t, y)
	}

	h := s.initialStep(p, f, &sol.Evals)
	var k [7][]float64
	for i := range k {
		k[i] = make([]float64, n)
	}
	yStage := make([]float64, n)
	errVec := make([]float64, n)

	for t < p.TEnd {
		if s.MaxSteps > 0 && sol.Steps >= s.MaxSteps {
			return nil, &StepError{Time: t, Step: sol.Steps, Wrapped: ErrStepBudget}
		}
		minStep := 10 * (math.Nextafter(t, math.Inf(1)) - t)
		if h < minStep {
			h = minStep
		}

		var tNew float64
		var yNew []float64
		rejectedThisStep := false
		for {
			if h < minStep {
				return nil, &StepError{Time: t, Step: sol.Steps, Wrapped: fmt.Errorf("%w: step size %g below spacing", ErrStepFailed, h)}
			}
			tNew = t + h
			if tNew >= p.TEnd {
				tNew = p.TEnd
			}
			hStep := tNew - t

			copy(k[0], f)
			for st := 1; st < 6; st++ {
				for i := 0; i < n; i++ {
					acc := 0.0
					for j := 0; j < st; j++ {
						acc += dpA[st][j] * k[j][i]
					}
					yStage[i] = y[i] + hStep*acc
				}
				p.F(t+dpC[st]*hStep, yStage, k[st])
				sol.Evals++
			}
			yNew = make([]float64, n)
			for i := 0; i < n; i++ {
				acc := 0.0
				for j := 0; j < 6; j++ {
					acc += dpB[j] * k[j][i]
				}
				yNew[i] = y[i] + hStep*acc
			}
			p.F(tNew, yNew, k[6])
			sol.Evals++

			for i := 0; i < n; i++ {
				acc := 0.0
				for j := 0; j < 7; j++ {
					acc += dpE[j] * k[j][i]
				}
				errVec[i] = hStep * acc
			}
			errNorm := s.rmsNorm(errVec, y, yNew)
			if !finite(yNew) || !finite(k[6]) || math.IsNaN(errNorm) || math.IsInf(errNorm, 0) {
				return nil, &StepError{Time: tNew, Step: sol.Steps, Wrapped: ErrNonFinite}
			}

			if errNorm < 1 {
				factor := dpMaxFactor
				if errNorm > 0 {
					factor = math.Min(dpMaxFactor, dpSafety*math.Pow(errNorm, dpErrExp))
				}
				if rejectedThisStep {
					factor = math.Min(1, factor)
				}
				h = hStep * factor
				break
			}
			h = hStep * math.Max(dpMinFactor, dpSafety*math.Pow(errNorm, dpErrExp))
			rejectedThisStep = true
			sol.Rejected++
		}

		fNew := append([]float64(nil), k[6]...)
		d := &dense{t0: t, t1: tNew, y0: y, f0: append([]float64(nil), f...), y1: yNew, f1: fNew}
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

		t, y, f = tNew, yNew, fNew
		if p.Observer != nil && p.Observer.ObserveStep(t, y) {
			f = make([]float64, n)
			p.F(t, y, f)
			sol.Evals++
		}
	}
	return sol, nil
}
