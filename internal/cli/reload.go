package cli

import (
	"encoding/json"
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload the server configuration and models",
	Long: `Reload the cplxfox server by sending SIGHUP to the process in the PID file.
With --remote, POST /v1/reload is called instead and only the artifact is reloaded.`,
	RunE: runReload,
}

var reloadRemote bool

func init() {
	reloadCmd.Flags().StringVar(&pidFile, "pid-file", "", "PID file path (overrides config)")
	reloadCmd.Flags().BoolVar(&reloadRemote, "remote", false, "reload over HTTP")
	rootCmd.AddCommand(reloadCmd)
}

func runReload(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if reloadRemote {
		resp, err := NewClient().Reload()
		if err != nil {
			return err
		}
		if jsonOut {
			return json.NewEncoder(out).Encode(resp)
		}
		fmt.Fprintf(out, "Models reloaded: %d task(s), fingerprint %s\n", len(resp.Tasks), resp.Fingerprint)
		return nil
	}

	pid, err := signalServer(syscall.SIGHUP)
	if err != nil {
		return err
	}

	if jsonOut {
		fmt.Fprintf(out, `{"status":"reload_requested","pid":%d}`+"\n", pid)
	} else {
		fmt.Fprintf(out, "Sent SIGHUP to process %d (reload requested)\n", pid)
	}
	return nil
}
