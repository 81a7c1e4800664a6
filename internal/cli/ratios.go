package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/haskel/cplxfox/internal/logger"
	"github.com/haskel/cplxfox/internal/observation"
)

var ratiosCmd = &cobra.Command{
	Use:   "ratios [observations]",
	Short: "Print per-method counter averages for each task",
	Long: `Average ndataReads, nblocks and ninsts per method for every task in the
observations. Rows without methods are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRatios,
}

func init() {
	rootCmd.AddCommand(ratiosCmd)
}

func runRatios(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	input := cfg.Training.Input
	if len(args) == 1 {
		input = args[0]
	}

	records, err := observation.NewReader(logger.New(logLevel(cfg), cfg.Logging.Format)).ReadFile(input)
	if err != nil {
		return err
	}

	ratios := observation.Ratios(records)
	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(ratios)
	}

	renderRatios(cmd.OutOrStdout(), ratios)
	return nil
}
