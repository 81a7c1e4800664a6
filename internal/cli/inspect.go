package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haskel/cplxfox/internal/artifact"
	"github.com/haskel/cplxfox/internal/logger"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [task...]",
	Short: "Print the fitted equations and metrics of the artifact",
	RunE:  runInspect,
}

var inspectArtifact string

func init() {
	inspectCmd.Flags().StringVar(&inspectArtifact, "artifact", "", "artifact path (overrides config)")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.Artifact.Path
	if inspectArtifact != "" {
		path = inspectArtifact
	}

	a, err := artifact.NewStore(path, logger.New(logLevel(cfg), cfg.Logging.Format)).Load()
	if err != nil {
		return err
	}

	if len(args) > 0 {
		selected := make(artifact.Artifact, len(args))
		for _, task := range args {
			m, ok := a[task]
			if !ok {
				return fmt.Errorf("task %q not found in %s", task, path)
			}
			selected[task] = m
		}
		a = selected
	}

	if jsonOut {
		return artifact.Encode(cmd.OutOrStdout(), a)
	}

	fingerprint, err := artifact.Fingerprint(a)
	if err != nil {
		return err
	}
	renderArtifact(cmd.OutOrStdout(), path, fingerprint, a)
	return nil
}
