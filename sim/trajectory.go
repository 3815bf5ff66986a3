package sim

import "github.com/inference-sim/epidemic-sim/sim/trace"

// Sample is one (t, S, I, R) point of a trajectory.
type Sample struct {
	T float64 `json:"t"`
	S float64 `json:"s"`
	I float64 `json:"i"`
	R float64 `json:"r"`
}

// RunStats reports solver effort for a run, summed over segments.
type RunStats struct {
	Steps             int `json:"steps"`
	Rejected          int `json:"rejected"`
	Evaluations       int `json:"evaluations"`        // right-hand side evaluations
	PolicyEvaluations int `json:"policy_evaluations"` // lottery policy Apply calls
}

// Trajectory is the read-only result of one run.
//
// Times ascend. In mandate mode the event instant appears twice: first with
// the pre-event state (end of the first segment), then with the transformed
// state (start of the second segment). EventIndex is the index of the second
// one, or -1 when no event fired.
type Trajectory struct {
	Mode            Mode
	Params          Params
	Times           []float64
	S, I, R         []float64
	VaccinationRate []float64 // rate in effect at each sample (zero outside lottery)

	TriggerTimes []float64 // lottery threshold crossings, in order
	MandateFired bool
	MandateTime  float64
	EventIndex   int

	Trace *trace.PolicyTrace
	Stats RunStats
}

func newTrajectory(mode Mode, p Params, capacity int) *Trajectory {
	return &Trajectory{
		Mode:            mode,
		Params:          p,
		Times:           make([]float64, 0, capacity),
		S:               make([]float64, 0, capacity),
		I:               make([]float64, 0, capacity),
		R:               make([]float64, 0, capacity),
		VaccinationRate: make([]float64, 0, capacity),
		TriggerTimes:    make([]float64, 0),
		EventIndex:      -1,
		Trace:           trace.NewPolicyTrace(),
	}
}

func (tr *Trajectory) append(t float64, y []float64, v float64) {
	tr.Times = append(tr.Times, t)
	tr.S = append(tr.S, y[idxS])
	tr.I = append(tr.I, y[idxI])
	tr.R = append(tr.R, y[idxR])
	tr.VaccinationRate = append(tr.VaccinationRate, v)
}

func (tr *Trajectory) set(k int, y []float64) {
	tr.S[k], tr.I[k], tr.R[k] = y[idxS], y[idxI], y[idxR]
}

// Len returns the number of samples.
func (tr *Trajectory) Len() int {
	return len(tr.Times)
}

// Samples returns the trajectory as time-ordered (t, S, I, R) tuples.
func (tr *Trajectory) Samples() []Sample {
	out := make([]Sample, tr.Len())
	for k := range out {
		out[k] = Sample{T: tr.Times[k], S: tr.S[k], I: tr.I[k], R: tr.R[k]}
	}
	return out
}

// Population returns S+I+R at sample k.
func (tr *Trajectory) Population(k int) float64 {
	return tr.S[k] + tr.I[k] + tr.R[k]
}

// Segments splits the trajectory at the event boundary. Without an event the
// whole trajectory is the single pre-event segment and post is nil.
func (tr *Trajectory) Segments() (pre, post []Sample) {
	all := tr.Samples()
	if tr.EventIndex < 0 {
		return all, nil
	}
	return all[:tr.EventIndex], all[tr.EventIndex:]
}
