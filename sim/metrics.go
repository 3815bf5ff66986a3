// Summarizes a trajectory for final reporting: epidemic peak, final sizes and
// policy activity.

package sim

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/floats"

	"github.com/inference-sim/epidemic-sim/sim/trace"
)

// Summary aggregates headline statistics of one trajectory.
type Summary struct {
	Mode               Mode    `json:"mode" yaml:"mode"`
	Samples            int     `json:"samples" yaml:"samples"`
	PeakInfected       float64 `json:"peak_infected" yaml:"peak_infected"`
	PeakTime           float64 `json:"peak_time" yaml:"peak_time"`
	FinalSusceptible   float64 `json:"final_susceptible" yaml:"final_susceptible"`
	FinalInfected      float64 `json:"final_infected" yaml:"final_infected"`
	FinalRecovered     float64 `json:"final_recovered" yaml:"final_recovered"`
	AttackRate         float64 `json:"attack_rate" yaml:"attack_rate"` // fraction of N that left S
	MaxVaccinationRate float64 `json:"max_vaccination_rate" yaml:"max_vaccination_rate"`
	MaxPopulationDrift float64 `json:"max_population_drift" yaml:"max_population_drift"` // max |S+I+R-N|/N

	Policy *trace.TraceSummary `json:"policy" yaml:"policy"`
	Stats  RunStats            `json:"stats" yaml:"stats"`
}

// Summarize computes the Summary of tr. Safe for an empty trajectory.
func (tr *Trajectory) Summarize() Summary {
	s := Summary{
		Mode:    tr.Mode,
		Samples: tr.Len(),
		Policy:  trace.Summarize(tr.Trace),
		Stats:   tr.Stats,
	}
	n := tr.Len()
	if n == 0 {
		return s
	}
	peak := floats.MaxIdx(tr.I)
	s.PeakInfected = tr.I[peak]
	s.PeakTime = tr.Times[peak]
	s.FinalSusceptible = tr.S[n-1]
	s.FinalInfected = tr.I[n-1]
	s.FinalRecovered = tr.R[n-1]
	s.MaxVaccinationRate = floats.Max(tr.VaccinationRate)

	N := tr.Params.Population
	if N > 0 {
		s.AttackRate = (N - s.FinalSusceptible) / N
		for k := 0; k < n; k++ {
			drift := tr.Population(k) - N
			if drift < 0 {
				drift = -drift
			}
			if drift/N > s.MaxPopulationDrift {
				s.MaxPopulationDrift = drift / N
			}
		}
	}
	return s
}

// Print writes the summary in the simulator's plain-text report format.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "=== Epidemic Summary (%s) ===\n", s.Mode)
	fmt.Fprintf(w, "Samples              : %d\n", s.Samples)
	if s.Samples == 0 {
		return
	}
	fmt.Fprintf(w, "Peak Infected        : %.2f at day %.2f\n", s.PeakInfected, s.PeakTime)
	fmt.Fprintf(w, "Final S / I / R      : %.2f / %.2f / %.2f\n", s.FinalSusceptible, s.FinalInfected, s.FinalRecovered)
	fmt.Fprintf(w, "Attack Rate          : %.4f\n", s.AttackRate)
	fmt.Fprintf(w, "Max Population Drift : %.3e\n", s.MaxPopulationDrift)
	if s.Policy != nil {
		if s.Mode == ModeLottery {
			fmt.Fprintf(w, "Lottery Triggers     : %d (%d distinct times)\n", s.Policy.LotteryTriggers, s.Policy.DistinctTriggerTimes)
			fmt.Fprintf(w, "Max Vaccination Rate : %.4g\n", s.MaxVaccinationRate)
		}
		if s.Policy.MandateFired {
			fmt.Fprintf(w, "Mandate Fired        : day %.4f\n", s.Policy.MandateTime)
		}
	}
	fmt.Fprintf(w, "Solver Steps         : %d (%d rejected, %d evaluations)\n", s.Stats.Steps, s.Stats.Rejected, s.Stats.Evaluations)
}
