package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haskel/cplxfox/internal/artifact"
	"github.com/haskel/cplxfox/internal/evaluator"
	"github.com/haskel/cplxfox/internal/logger"
	"github.com/haskel/cplxfox/internal/server"
)

var predictCmd = &cobra.Command{
	Use:   "predict <task> <parameters>",
	Short: "Estimate the complexity of one parameter record",
	Long: `Evaluate a task model on a raw parameter string such as
"shuffles=70#size=4". The artifact is read locally unless --remote is set,
in which case the running server is asked.`,
	Example: `  cplxfox predict FifteenPuzzle "shuffles=70#size=4"
  cplxfox predict --remote GameOfLife "iterations=5000#mapFilename=glider.json"`,
	Args: cobra.ExactArgs(2),
	RunE: runPredict,
}

var (
	predictRemote   bool
	predictArtifact string
)

func init() {
	predictCmd.Flags().BoolVar(&predictRemote, "remote", false, "ask the running server")
	predictCmd.Flags().StringVar(&predictArtifact, "artifact", "", "artifact path (overrides config)")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	task, parameters := args[0], args[1]

	var resp *server.PredictResponse
	if predictRemote {
		r, err := NewClient().Predict(task, parameters)
		if err != nil {
			return err
		}
		resp = r
	} else {
		r, err := predictLocal(task, parameters)
		if err != nil {
			return err
		}
		resp = r
	}

	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(resp)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%.6f\n", resp.Complexity)
	return nil
}

func predictLocal(task, parameters string) (*server.PredictResponse, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	path := cfg.Artifact.Path
	if predictArtifact != "" {
		path = predictArtifact
	}

	a, err := artifact.NewStore(path, logger.New(logLevel(cfg), cfg.Logging.Format)).Load()
	if err != nil {
		return nil, err
	}

	eval, err := evaluator.New(a)
	if err != nil {
		return nil, err
	}

	complexity, err := eval.Predict(task, parameters)
	if err != nil {
		return nil, err
	}

	fingerprint, err := artifact.Fingerprint(a)
	if err != nil {
		return nil, err
	}

	return &server.PredictResponse{
		Task:        task,
		Parameters:  parameters,
		Complexity:  complexity,
		Fingerprint: fingerprint,
	}, nil
}
