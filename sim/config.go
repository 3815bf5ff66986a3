package sim

import (
	"fmt"
	"math"
	"sort"

	"github.com/inference-sim/epidemic-sim/sim/ode"
	"github.com/inference-sim/epidemic-sim/sim/policy"
)

// DefaultMandateDelay is the earliest day the mandate can fire.
const DefaultMandateDelay = 25.0

// Mode selects the intervention policy for one run.
type Mode string

const (
	ModeNone    Mode = "none"    // plain SIR
	ModeLottery Mode = "lottery" // threshold-driven vaccination ramp
	ModeMandate Mode = "mandate" // one-time discrete intervention
)

// ValidModes is the set of recognized policy modes.
var ValidModes = map[Mode]bool{ModeNone: true, ModeLottery: true, ModeMandate: true}

// AllModes lists the modes in presentation order.
var AllModes = []Mode{ModeNone, ModeLottery, ModeMandate}

// ParseMode converts a mode name to a Mode.
func ParseMode(name string) (Mode, error) {
	m := Mode(name)
	if !ValidModes[m] {
		return "", fmt.Errorf("%w: unknown mode %q (valid: %v)", ErrInvalidSimulationParameters, name, modeNames())
	}
	return m, nil
}

func modeNames() []string {
	names := make([]string, 0, len(ValidModes))
	for m := range ValidModes {
		names = append(names, string(m))
	}
	sort.Strings(names)
	return names
}

// Params groups the epidemic parameters. Loadable from YAML.
type Params struct {
	Population      float64 `json:"population" yaml:"population"`             // N (must be > 0)
	InitialInfected float64 `json:"initial_infected" yaml:"initial_infected"` // i0, 0 < i0 < N
	Beta            float64 `json:"beta" yaml:"beta"`                         // transmission rate (must be > 0)
	Gamma           float64 `json:"gamma" yaml:"gamma"`                       // recovery rate (must be > 0)
	MandateDelay    float64 `json:"mandate_delay" yaml:"mandate_delay"`       // 0 = DefaultMandateDelay
}

// NewParams creates Params with the default mandate delay.
func NewParams(population, initialInfected, beta, gamma float64) Params {
	return Params{
		Population:      population,
		InitialInfected: initialInfected,
		Beta:            beta,
		Gamma:           gamma,
		MandateDelay:    DefaultMandateDelay,
	}
}

// Validate checks parameter ranges. Errors wrap ErrInvalidSimulationParameters.
func (p Params) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{{"population", p.Population}, {"beta", p.Beta}, {"gamma", p.Gamma}}
	for _, f := range positive {
		if !(f.v > 0) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be positive and finite, got %g", ErrInvalidSimulationParameters, f.name, f.v)
		}
	}
	if !(p.InitialInfected > 0) || !(p.InitialInfected < p.Population) {
		return fmt.Errorf("%w: initial_infected must be in (0, %g), got %g", ErrInvalidSimulationParameters, p.Population, p.InitialInfected)
	}
	if p.MandateDelay < 0 || math.IsNaN(p.MandateDelay) {
		return fmt.Errorf("%w: mandate_delay must be non-negative, got %g", ErrInvalidSimulationParameters, p.MandateDelay)
	}
	return nil
}

// R0 is the basic reproduction number beta/gamma.
func (p Params) R0() float64 {
	return p.Beta / p.Gamma
}

// Rt is the effective reproduction number (beta/gamma)(S/N).
func (p Params) Rt(susceptible float64) float64 {
	return p.Beta / p.Gamma * susceptible / p.Population
}

// InitialState returns (S, I, R) at t = 0.
func (p Params) InitialState() []float64 {
	return []float64{p.Population - p.InitialInfected, p.InitialInfected, 0}
}

func (p Params) mandateDelay() float64 {
	if p.MandateDelay == 0 {
		return DefaultMandateDelay
	}
	return p.MandateDelay
}

// RunRequest describes one simulation run. Start time is fixed at 0.
type RunRequest struct {
	Mode        Mode
	StopTime    float64        // must be > 0
	SampleCount int            // uniformly spaced output samples, must be >= 2
	Cadence     policy.Cadence // lottery update cadence; empty = evaluation
	Solver      ode.Solver     // nil = Dormand-Prince with default tolerances
}

// NewRunRequest creates a RunRequest with the reference cadence and solver.
func NewRunRequest(mode Mode, stopTime float64, sampleCount int) RunRequest {
	return RunRequest{Mode: mode, StopTime: stopTime, SampleCount: sampleCount, Cadence: policy.CadenceEvaluation}
}

// Validate checks the request. Errors wrap ErrInvalidSimulationParameters.
func (r RunRequest) Validate() error {
	if !ValidModes[r.Mode] {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidSimulationParameters, r.Mode)
	}
	if !(r.StopTime > 0) || math.IsInf(r.StopTime, 0) {
		return fmt.Errorf("%w: stop time must be positive and finite, got %g", ErrInvalidSimulationParameters, r.StopTime)
	}
	if r.SampleCount < 2 {
		return fmt.Errorf("%w: sample count must be at least 2, got %d", ErrInvalidSimulationParameters, r.SampleCount)
	}
	if !policy.IsValidCadence(string(r.Cadence)) {
		return fmt.Errorf("%w: unknown policy cadence %q", ErrInvalidSimulationParameters, r.Cadence)
	}
	return nil
}
