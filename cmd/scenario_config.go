package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	sim "github.com/inference-sim/epidemic-sim/sim"
	"github.com/inference-sim/epidemic-sim/sim/policy"
)

// RunConfig is the integration section of a scenario file.
type RunConfig struct {
	StopTime float64 `yaml:"stop_time"`
	Samples  int     `yaml:"samples"`
	Cadence  string  `yaml:"cadence"`
	Solver   string  `yaml:"solver"`
	Step     float64 `yaml:"dt"`
}

// ScenarioSpec names one run of a scenario file.
type ScenarioSpec struct {
	Name    string `yaml:"name"`
	Mode    string `yaml:"mode"`
	Cadence string `yaml:"cadence"` // overrides run.cadence
}

// ScenarioFile represents the full scenario YAML structure (see defaults.yaml).
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type ScenarioFile struct {
	Version   string         `yaml:"version"`
	Params    sim.Params     `yaml:"params"`
	Run       RunConfig      `yaml:"run"`
	Scenarios []ScenarioSpec `yaml:"scenarios"`
}

// loadScenarioFile parses a scenario file with strict field checking, so
// typos are errors rather than silently ignored keys.
func loadScenarioFile(path string) (*ScenarioFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	var f ScenarioFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing scenario file %s: %w", path, err)
	}
	if len(f.Scenarios) == 0 {
		return nil, fmt.Errorf("%w: scenario file %s lists no scenarios", sim.ErrInvalidSimulationParameters, path)
	}
	return &f, nil
}

// options converts the file into runOptions and the scenario list. A missing
// mandate_delay takes the default.
func (f *ScenarioFile) options() (runOptions, []scenario, error) {
	p := f.Params
	if p.MandateDelay == 0 {
		p.MandateDelay = sim.DefaultMandateDelay
	}
	opts := runOptions{
		Params:   p,
		StopTime: f.Run.StopTime,
		Samples:  f.Run.Samples,
		Cadence:  policy.Cadence(f.Run.Cadence),
		Solver:   f.Run.Solver,
		Step:     f.Run.Step,
	}
	seen := make(map[string]bool, len(f.Scenarios))
	out := make([]scenario, 0, len(f.Scenarios))
	for _, s := range f.Scenarios {
		m, err := sim.ParseMode(s.Mode)
		if err != nil {
			return runOptions{}, nil, fmt.Errorf("scenario %q: %w", s.Name, err)
		}
		name := s.Name
		if name == "" {
			name = string(m)
		}
		if seen[name] {
			return runOptions{}, nil, fmt.Errorf("%w: duplicate scenario name %q", sim.ErrInvalidSimulationParameters, name)
		}
		seen[name] = true
		out = append(out, scenario{Name: name, Mode: m, Cadence: policy.Cadence(s.Cadence)})
	}
	return opts, out, nil
}

var scenarioCmd = &cobra.Command{
	Use:   "scenario <file.yaml>",
	Short: "Run every scenario listed in a YAML file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f, err := loadScenarioFile(args[0])
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		opts, scenarios, err := f.options()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("Loaded %d scenarios from %s (version %s)", len(scenarios), args[0], f.Version)

		results, err := runBatch(cmd.Context(), opts, scenarios)
		if err != nil {
			logrus.Fatalf("Scenario batch failed: %v", err)
		}
		if err := reportBatch(os.Stdout, results, outputDir, plotPNG); err != nil {
			logrus.Fatalf("Failed to save results: %v", err)
		}
	},
}
