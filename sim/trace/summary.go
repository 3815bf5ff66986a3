package trace

import "math"

// TraceSummary aggregates statistics from a PolicyTrace.
type TraceSummary struct {
	TotalTriggers        int                `json:"total_triggers" yaml:"total_triggers"`
	LotteryTriggers      int                `json:"lottery_triggers" yaml:"lottery_triggers"`
	MandateFired         bool               `json:"mandate_fired" yaml:"mandate_fired"`
	MandateTime          float64            `json:"mandate_time,omitempty" yaml:"mandate_time,omitempty"`
	FirstTrigger         float64            `json:"first_trigger,omitempty" yaml:"first_trigger,omitempty"`
	LastTrigger          float64            `json:"last_trigger,omitempty" yaml:"last_trigger,omitempty"`
	MaxVaccinationRate   float64            `json:"max_vaccination_rate" yaml:"max_vaccination_rate"`
	DistinctTriggerTimes int                `json:"distinct_trigger_times" yaml:"distinct_trigger_times"`
	KindDistribution     map[RecordKind]int `json:"kind_distribution" yaml:"kind_distribution"`
}

// Summarize computes aggregate statistics from a PolicyTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(pt *PolicyTrace) *TraceSummary {
	summary := &TraceSummary{
		KindDistribution: make(map[RecordKind]int),
	}
	if pt == nil || len(pt.Records) == 0 {
		return summary
	}

	summary.TotalTriggers = len(pt.Records)
	summary.FirstTrigger = math.Inf(1)
	summary.LastTrigger = math.Inf(-1)
	distinct := make(map[float64]bool)
	for _, r := range pt.Records {
		summary.KindDistribution[r.Kind]++
		distinct[r.Time] = true
		summary.FirstTrigger = math.Min(summary.FirstTrigger, r.Time)
		summary.LastTrigger = math.Max(summary.LastTrigger, r.Time)
		switch r.Kind {
		case KindLotteryThreshold:
			summary.LotteryTriggers++
			summary.MaxVaccinationRate = math.Max(summary.MaxVaccinationRate, r.VaccinationRate)
		case KindMandate:
			summary.MandateFired = true
			summary.MandateTime = r.Time
		}
	}
	// Several records can share a timestamp when the policy is re-applied
	// within one solver step.
	summary.DistinctTriggerTimes = len(distinct)

	return summary
}
