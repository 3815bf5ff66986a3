// Package trace provides policy-trigger recording for trajectory annotation.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// RecordKind identifies what kind of policy action a record captures.
type RecordKind string

const (
	// KindLotteryThreshold is a lottery case-threshold crossing.
	KindLotteryThreshold RecordKind = "lottery-threshold"
	// KindMandate is the one-time mandate event.
	KindMandate RecordKind = "mandate"
)

// TriggerRecord captures a single policy trigger.
type TriggerRecord struct {
	Kind            RecordKind `json:"kind" yaml:"kind"`
	Time            float64    `json:"time" yaml:"time"`
	Susceptible     float64    `json:"susceptible" yaml:"susceptible"`
	Infected        float64    `json:"infected" yaml:"infected"`
	Threshold       float64    `json:"threshold,omitempty" yaml:"threshold,omitempty"`               // lottery only
	VaccinationRate float64    `json:"vaccination_rate,omitempty" yaml:"vaccination_rate,omitempty"` // lottery only
	Moved           float64    `json:"moved,omitempty" yaml:"moved,omitempty"`                       // mandate only: S moved to R
}
