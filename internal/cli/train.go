package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haskel/cplxfox/internal/artifact"
	"github.com/haskel/cplxfox/internal/logger"
	"github.com/haskel/cplxfox/internal/observation"
	"github.com/haskel/cplxfox/internal/trainer"
)

var trainCmd = &cobra.Command{
	Use:   "train [observations]",
	Short: "Fit one model per task and export the artifact",
	Long: `Read observations (.csv or .jsonl, optionally .gz or .zst compressed),
fit a polynomial regression model per configured task and write the artifact.
Failed tasks are reported; the command fails only when no task could be fitted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTrain,
}

var (
	trainOutput       string
	trainTestFraction float64
	trainSeed         uint64
)

// ErrNothingTrained is returned when every task failed to fit.
var ErrNothingTrained = errors.New("no task could be fitted")

func init() {
	trainCmd.Flags().StringVarP(&trainOutput, "output", "o", "", "artifact path (overrides config)")
	trainCmd.Flags().Float64Var(&trainTestFraction, "test-fraction", 0, "held-out fraction (overrides config)")
	trainCmd.Flags().Uint64Var(&trainSeed, "seed", 0, "split seed (overrides config)")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	input := cfg.Training.Input
	if len(args) == 1 {
		input = args[0]
	}
	if trainOutput != "" {
		cfg.Artifact.Path = trainOutput
	}
	opts := trainer.Options{
		TestFraction: cfg.Training.TestFraction,
		Seed:         cfg.Training.Seed,
	}
	if cmd.Flags().Changed("test-fraction") {
		opts.TestFraction = trainTestFraction
	}
	if cmd.Flags().Changed("seed") {
		opts.Seed = trainSeed
	}

	log := logger.New(logLevel(cfg), cfg.Logging.Format)

	records, err := observation.NewReader(log).ReadFile(input)
	if err != nil {
		return err
	}
	log.Info("observations loaded", "path", input, logger.RowsKey, len(records))

	report := trainer.New(cfg.Registry(), opts, log).Train(records)
	if len(report.Results) == 0 {
		renderReport(cmd.ErrOrStderr(), report)
		return fmt.Errorf("%w from %d observations", ErrNothingTrained, len(records))
	}

	a := report.Artifact()
	store := artifact.NewStore(cfg.Artifact.Path, log)
	if err := store.Save(a); err != nil {
		return err
	}

	fingerprint, err := artifact.Fingerprint(a)
	if err != nil {
		return err
	}

	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(trainSummary(cfg.Artifact.Path, fingerprint, report))
	}

	out := cmd.OutOrStdout()
	renderReport(out, report)
	fmt.Fprintln(out)
	fmt.Fprintln(out, field("Artifact", cfg.Artifact.Path))
	fmt.Fprintln(out, field("Fingerprint", fingerprint))
	if verbose {
		for _, task := range a.Tasks() {
			fmt.Fprintln(out)
			renderModel(out, task, a[task])
		}
	}

	if len(report.Failures) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d task(s) failed: %v\n", len(report.Failures), report.FailedTasks())
	}
	return nil
}

type trainOutcome struct {
	Artifact    string                      `json:"artifact"`
	Fingerprint string                      `json:"fingerprint"`
	Metrics     map[string]artifact.Metrics `json:"metrics"`
	Failures    map[string]string           `json:"failures,omitempty"`
}

func trainSummary(path, fingerprint string, report *trainer.Report) trainOutcome {
	out := trainOutcome{
		Artifact:    path,
		Fingerprint: fingerprint,
		Metrics:     make(map[string]artifact.Metrics, len(report.Results)),
	}
	for task, res := range report.Results {
		out.Metrics[task] = res.Model.TrainingMetrics
	}
	if len(report.Failures) > 0 {
		out.Failures = make(map[string]string, len(report.Failures))
		for task, err := range report.Failures {
			out.Failures[task] = err.Error()
		}
	}
	return out
}
