package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	sim "github.com/inference-sim/epidemic-sim/sim"
	"github.com/inference-sim/epidemic-sim/sim/trace"
)

// CSV column headers for trajectory export.
var trajectoryColumns = []string{"t", "s", "i", "r", "vaccination_rate", "segment"}

// writeTrajectoryCSV writes one row per sample. The segment column is 0
// before the mandate and 1 from EventIndex on.
func writeTrajectoryCSV(w io.Writer, traj *sim.Trajectory) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(trajectoryColumns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for k := 0; k < traj.Len(); k++ {
		segment := "0"
		if traj.EventIndex >= 0 && k >= traj.EventIndex {
			segment = "1"
		}
		row := []string{
			strconv.FormatFloat(traj.Times[k], 'g', -1, 64),
			strconv.FormatFloat(traj.S[k], 'g', -1, 64),
			strconv.FormatFloat(traj.I[k], 'g', -1, 64),
			strconv.FormatFloat(traj.R[k], 'g', -1, 64),
			strconv.FormatFloat(traj.VaccinationRate[k], 'g', -1, 64),
			segment,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", k, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// trajectoryDocument is the JSON export of one run.
type trajectoryDocument struct {
	Mode         sim.Mode              `json:"mode"`
	Params       sim.Params            `json:"params"`
	Summary      sim.Summary           `json:"summary"`
	TriggerTimes []float64             `json:"trigger_times"`
	MandateFired bool                  `json:"mandate_fired"`
	MandateTime  *float64              `json:"mandate_time,omitempty"`
	EventIndex   int                   `json:"event_index"`
	Records      []trace.TriggerRecord `json:"policy_records"`
	Samples      []sim.Sample          `json:"samples"`
}

func newTrajectoryDocument(traj *sim.Trajectory) trajectoryDocument {
	doc := trajectoryDocument{
		Mode:         traj.Mode,
		Params:       traj.Params,
		Summary:      traj.Summarize(),
		TriggerTimes: traj.TriggerTimes,
		MandateFired: traj.MandateFired,
		EventIndex:   traj.EventIndex,
		Records:      traj.Trace.Records,
		Samples:      traj.Samples(),
	}
	if traj.MandateFired {
		tE := traj.MandateTime
		doc.MandateTime = &tE
	}
	if doc.Records == nil {
		doc.Records = []trace.TriggerRecord{}
	}
	return doc
}

// writeTrajectoryJSON writes the run as indented JSON.
func writeTrajectoryJSON(w io.Writer, traj *sim.Trajectory) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(newTrajectoryDocument(traj)); err != nil {
		return fmt.Errorf("encoding trajectory JSON: %w", err)
	}
	return nil
}

// writeSummaryYAML writes the run summary as YAML.
func writeSummaryYAML(w io.Writer, s sim.Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// exporter writes one output file with the given extension.
type exporter struct {
	ext   string
	write func(io.Writer) error
}

// saveOutputs writes <name>.csv, <name>.json and <name>.summary.yaml into dir,
// plus <name>.png when plot is set.
func saveOutputs(dir, name string, traj *sim.Trajectory, plot bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	writers := []exporter{
		{".csv", func(w io.Writer) error { return writeTrajectoryCSV(w, traj) }},
		{".json", func(w io.Writer) error { return writeTrajectoryJSON(w, traj) }},
		{".summary.yaml", func(w io.Writer) error { return writeSummaryYAML(w, traj.Summarize()) }},
	}
	if plot {
		writers = append(writers, exporter{".png", func(w io.Writer) error { return renderPlot(w, name, traj) }})
	}
	for _, out := range writers {
		if err := writeFile(filepath.Join(dir, name+out.ext), out.write); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(file); err != nil {
		_ = file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return file.Close()
}
