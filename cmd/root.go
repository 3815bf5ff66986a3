package cmd

import (
	"errors"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/inference-sim/epidemic-sim/sim"
	"github.com/inference-sim/epidemic-sim/sim/policy"
)

var (
	// Model parameters
	population      float64 // Total population N
	initialInfected float64 // Initial infected count
	beta            float64 // Transmission rate
	gamma           float64 // Recovery rate
	mandateDelay    float64 // Earliest day the mandate can fire

	// Run configuration
	stopTime    float64 // End of the integration span (days)
	sampleCount int     // Output grid points per segment
	mode        string  // Intervention mode
	cadence     string  // Lottery policy update cadence
	solverName  string  // ODE solver
	eulerStep   float64 // Fixed step for the Euler solver

	// Output
	logLevel  string // Log verbosity level
	outputDir string // Directory for CSV/JSON/YAML/PNG results
	plotPNG   bool   // Render a PNG plot per run
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "epidemic-sim",
	Short: "SIR epidemic simulator with vaccination lottery and mandate policies",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)
	},
}

// runCmd integrates a single mode using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the epidemic model in one intervention mode",
	Run: func(cmd *cobra.Command, args []string) {
		m, err := sim.ParseMode(mode)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		opts := optionsFromFlags()
		model, err := sim.NewModel(opts.Params)
		if err != nil {
			logrus.Fatalf("Invalid model parameters: %v", err)
		}
		req, err := opts.request(m, opts.Cadence)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		logrus.Infof("Starting %s run: N=%g, i0=%g, beta=%g, gamma=%g, stop=%g, samples=%d, solver=%s",
			m, opts.Params.Population, opts.Params.InitialInfected, opts.Params.Beta, opts.Params.Gamma,
			opts.StopTime, opts.Samples, opts.Solver)

		traj, err := model.Run(cmd.Context(), req)
		if err != nil {
			fatalRunError(string(m), err)
		}
		traj.Summarize().Print(os.Stdout)

		if outputDir != "" {
			if err := saveOutputs(outputDir, string(m), traj, plotPNG); err != nil {
				logrus.Fatalf("Failed to save results: %v", err)
			}
			logrus.Infof("Results written to %s", outputDir)
		}
		logrus.Info("Simulation complete.")
	},
}

// fatalRunError exits with a hint when the failure is the known lottery
// instability of the evaluation cadence.
func fatalRunError(name string, err error) {
	if errors.Is(err, sim.ErrIntegrationFailure) && cadence == string(policy.CadenceEvaluation) {
		logrus.Fatalf("Run %s failed: %v (the lottery policy compounds on every solver evaluation; try --cadence step or --solver euler)", name, err)
	}
	logrus.Fatalf("Run %s failed: %v", name, err)
}

// configureLogging applies --log, falling back to EPISIM_LOG_LEVEL when the
// flag was not given. --output-dir falls back to EPISIM_OUTPUT_DIR the same way.
func configureLogging(cmd *cobra.Command) {
	overrides, err := parseEnv()
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	logLevel = resolveSetting(logLevel, cmd.Flags().Changed("log"), overrides.LogLevel)
	outputDir = resolveSetting(outputDir, cmd.Flags().Changed("output-dir"), overrides.OutputDir)

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// registerRunFlags adds the model and integration flags shared by run and compare.
func registerRunFlags(cmd *cobra.Command) {
	ref := sim.NewParams(10000, 10, 0.35, 0.1)
	cmd.Flags().Float64Var(&population, "population", ref.Population, "Total population N")
	cmd.Flags().Float64Var(&initialInfected, "initial-infected", ref.InitialInfected, "Initially infected individuals (0 < i0 < N)")
	cmd.Flags().Float64Var(&beta, "beta", ref.Beta, "Transmission rate per day")
	cmd.Flags().Float64Var(&gamma, "gamma", ref.Gamma, "Recovery rate per day")
	cmd.Flags().Float64Var(&mandateDelay, "mandate-delay", sim.DefaultMandateDelay, "Earliest day the vaccination mandate can fire")

	cmd.Flags().Float64Var(&stopTime, "stop", 200, "End of the simulated span (days)")
	cmd.Flags().IntVar(&sampleCount, "samples", 500, "Output grid points per segment")
	cmd.Flags().StringVar(&cadence, "cadence", string(policy.CadenceEvaluation), "Lottery policy update cadence (evaluation, step)")
	cmd.Flags().StringVar(&solverName, "solver", solverDormandPrince, "ODE solver (dopri, euler)")
	cmd.Flags().Float64Var(&eulerStep, "dt", 1, "Fixed step size for --solver euler (days)")
	cmd.Flags().BoolVar(&plotPNG, "plot", false, "Render a PNG plot next to the CSV/JSON output")
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "", "Directory to write CSV/JSON/YAML results to (disabled when empty)")

	registerRunFlags(runCmd)
	runCmd.Flags().StringVar(&mode, "mode", string(sim.ModeNone), "Intervention mode (none, lottery, mandate)")

	registerRunFlags(compareCmd)

	scenarioCmd.Flags().BoolVar(&plotPNG, "plot", false, "Render a PNG plot per scenario")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(scenarioCmd)
}
