package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/inference-sim/epidemic-sim/sim"
)

// compareScenarios runs every intervention mode once with the shared flags.
func compareScenarios() []scenario {
	out := make([]scenario, 0, len(sim.AllModes))
	for _, m := range sim.AllModes {
		out = append(out, scenario{Name: string(m), Mode: m})
	}
	return out
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Run none, lottery and mandate side by side with the same parameters",
	Run: func(cmd *cobra.Command, args []string) {
		opts := optionsFromFlags()
		results, err := runBatch(cmd.Context(), opts, compareScenarios())
		if err != nil {
			logrus.Fatalf("Comparison failed: %v", err)
		}
		if err := reportBatch(os.Stdout, results, outputDir, plotPNG); err != nil {
			logrus.Fatalf("Failed to save results: %v", err)
		}
	},
}
