package sim

import (
	"math"

	"github.com/inference-sim/epidemic-sim/sim/ode"
)

// MandateTrigger is the mandate event function
// g(t, S) = min(t - delay, Rt(S) - 1). It crosses zero upward only once both
// the delay has elapsed and Rt >= 1, so the mandate can never fire before
// the delay even if Rt reaches 1 earlier.
func MandateTrigger(p Params) func(t float64, y []float64) float64 {
	delay := p.mandateDelay()
	return func(t float64, y []float64) float64 {
		return math.Min(t-delay, p.Rt(y[idxS])-1)
	}
}

// mandateEvent wraps MandateTrigger as a terminal, ascending solver event.
func mandateEvent(p Params) *ode.Event {
	return &ode.Event{
		Func:      MandateTrigger(p),
		Direction: ode.Ascending,
		Terminal:  true,
	}
}

// ApplyMandate returns the post-mandate state and the amount moved from S to
// R. S is floor-halved and the removed mass goes to R, so S+I+R is unchanged.
// The input slice is not modified.
func ApplyMandate(y []float64) (out []float64, moved float64) {
	out = append([]float64(nil), y...)
	halved := math.Floor(y[idxS] / 2)
	moved = y[idxS] - halved
	out[idxS] = halved
	out[idxR] = y[idxR] + moved
	return out, moved
}
