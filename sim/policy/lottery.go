// Package policy holds the mutable vaccination policy state driven by the
// epidemic derivative. It has no dependencies on sim/ so the reentrancy
// contract can be tested without a solver.
package policy

import "fmt"

const (
	// VaccinationStep is added to the vaccination rate on each threshold crossing.
	VaccinationStep = 0.02
	// ThresholdStep raises the case threshold after each crossing.
	ThresholdStep = 100.0
	// BoostFactor multiplies the vaccination rate while Rt > 1.
	BoostFactor = 1.5
)

// Cadence controls how often the policy state is advanced.
type Cadence string

const (
	// CadenceEvaluation advances the state on every derivative evaluation,
	// including solver sub-stages and rejected attempts.
	CadenceEvaluation Cadence = "evaluation"
	// CadenceStep advances the state once at the initial point and once per
	// accepted solver step. Stages within a step read a frozen rate.
	CadenceStep Cadence = "step"
)

// validCadences maps accepted cadence strings. Empty defaults to evaluation.
var validCadences = map[Cadence]bool{
	CadenceEvaluation: true,
	CadenceStep:       true,
	"":                true,
}

// IsValidCadence returns true if the given string is a recognized cadence.
func IsValidCadence(c string) bool {
	return validCadences[Cadence(c)]
}

// Trigger records one threshold crossing.
type Trigger struct {
	Time            float64
	Susceptible     float64
	Infected        float64
	Threshold       float64 // threshold that was crossed
	VaccinationRate float64 // rate after the increment
}

// State is the lottery policy state for one simulation run.
//
// Thread-safety: NOT thread-safe. Owned by a single run.
type State struct {
	beta, gamma, population float64

	VaccinationRate float64
	CaseThreshold   float64
	Triggers        []Trigger

	// Evaluations counts Apply calls; it is the version of the state.
	Evaluations int
	// Boosts counts Apply calls that compounded the rate because Rt > 1.
	Boosts int
}

// NewState creates a State with zero vaccination and the first threshold
// at initialInfected + ThresholdStep.
func NewState(beta, gamma, population, initialInfected float64) (*State, error) {
	if !(beta > 0) || !(gamma > 0) || !(population > 0) {
		return nil, fmt.Errorf("policy: beta, gamma and population must be positive (got %g, %g, %g)", beta, gamma, population)
	}
	return &State{
		beta:          beta,
		gamma:         gamma,
		population:    population,
		CaseThreshold: initialInfected + ThresholdStep,
		Triggers:      make([]Trigger, 0),
	}, nil
}

// Rt is the effective reproduction number (beta/gamma)(S/N).
func (s *State) Rt(susceptible float64) float64 {
	return s.beta / s.gamma * susceptible / s.population
}

// Apply advances the state for one evaluation at time t and returns the
// vaccination rate to use. At most one threshold increment happens per call;
// the Rt boost is applied independently and compounds on every call while
// Rt > 1.
func (s *State) Apply(t, susceptible, infected float64) float64 {
	s.Evaluations++
	if infected >= s.CaseThreshold {
		s.VaccinationRate += VaccinationStep
		s.Triggers = append(s.Triggers, Trigger{
			Time:            t,
			Susceptible:     susceptible,
			Infected:        infected,
			Threshold:       s.CaseThreshold,
			VaccinationRate: s.VaccinationRate,
		})
		s.CaseThreshold += ThresholdStep
	}
	if s.Rt(susceptible) > 1 {
		s.VaccinationRate *= BoostFactor
		s.Boosts++
	}
	return s.VaccinationRate
}

// Rate returns the current vaccination rate without advancing the state.
func (s *State) Rate() float64 {
	return s.VaccinationRate
}

// TriggerTimes returns the timestamps of all threshold crossings in order.
func (s *State) TriggerTimes() []float64 {
	out := make([]float64, len(s.Triggers))
	for i, tr := range s.Triggers {
		out[i] = tr.Time
	}
	return out
}
