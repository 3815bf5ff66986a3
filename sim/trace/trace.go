package trace

// PolicyTrace collects trigger records during one simulation run.
type PolicyTrace struct {
	Records []TriggerRecord
}

// NewPolicyTrace creates a PolicyTrace ready for recording.
func NewPolicyTrace() *PolicyTrace {
	return &PolicyTrace{Records: make([]TriggerRecord, 0)}
}

// Record appends a trigger record.
func (pt *PolicyTrace) Record(record TriggerRecord) {
	pt.Records = append(pt.Records, record)
}

// Times returns the timestamps of records of the given kind, in order.
func (pt *PolicyTrace) Times(kind RecordKind) []float64 {
	out := make([]float64, 0)
	if pt == nil {
		return out
	}
	for _, r := range pt.Records {
		if r.Kind == kind {
			out = append(out, r.Time)
		}
	}
	return out
}
