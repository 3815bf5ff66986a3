package sim

import "github.com/inference-sim/epidemic-sim/sim/policy"

// Compartment indices in the state vector.
const (
	idxS = iota
	idxI
	idxR
)

// baseFlow writes the N-normalized SIR flow into dydt.
func baseFlow(p Params, y, dydt []float64) {
	s, i := y[idxS], y[idxI]
	infection := p.Beta * s * i / p.Population
	recovery := p.Gamma * i
	dydt[idxS] = -infection
	dydt[idxI] = infection - recovery
	dydt[idxR] = recovery
}

// derivative is the right-hand side handed to the solver for this run.
// In lottery mode with the evaluation cadence it advances the policy state on
// every call, including solver sub-stages.
func (r *run) derivative(t float64, y, dydt []float64) {
	baseFlow(r.params, y, dydt)
	if r.mode != ModeLottery {
		return
	}
	v := r.vaccinationRate(t, y)
	moved := v * y[idxS]
	dydt[idxS] -= moved
	dydt[idxR] += moved
}

// vaccinationRate returns the rate for the current evaluation. None and
// mandate modes never reach here, so their rate is always zero.
func (r *run) vaccinationRate(t float64, y []float64) float64 {
	if r.cadence == policy.CadenceStep {
		return r.policy.Rate()
	}
	return r.policy.Apply(t, y[idxS], y[idxI])
}

// ObserveStep implements ode.StepObserver for the step cadence.
func (r *run) ObserveStep(t float64, y []float64) bool {
	r.policy.Apply(t, y[idxS], y[idxI])
	return true
}
