package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haskel/cplxfox/internal/artifact"
	"github.com/haskel/cplxfox/internal/config"
	"github.com/haskel/cplxfox/internal/logger"
	"github.com/haskel/cplxfox/internal/monitor"
	"github.com/haskel/cplxfox/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"start"},
	Short:   "Serve predictions over HTTP",
	Long: `Load the artifact and serve predictions in foreground mode.
SIGHUP reloads the configuration and the artifact; SIGINT and SIGTERM stop the server.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = host
	}

	log := logger.New(logLevel(cfg), cfg.Logging.Format)

	log.Info("cplxfox starting",
		"version", Version,
		"config", cfgFile,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agg := monitor.Default(cfg.StatusInterval(), log)
	agg.Start(ctx)

	store := artifact.NewStore(cfg.Artifact.Path, log)

	srv, err := server.New(cfg, store, agg, log, Version)
	if err != nil {
		agg.Stop()
		return err
	}

	if cfg.Server.PIDFile != "" {
		if err := writePIDFile(cfg.Server.PIDFile); err != nil {
			log.Warn("failed to write PID file", "error", err)
		} else {
			defer os.Remove(cfg.Server.PIDFile)
		}
	}

	sighupCh := make(chan os.Signal, 1)
	sigCh := make(chan os.Signal, 1)
	shutdownDone := make(chan struct{})

	signal.Notify(sighupCh, syscall.SIGHUP)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for {
			select {
			case <-sighupCh:
				log.Info("SIGHUP received, reloading configuration and models")

				if cfgFile != "" {
					newCfg, err := config.Load(cfgFile)
					if err != nil {
						log.Error("invalid configuration, keeping current settings", "error", err)
					} else {
						srv.ReloadConfig(newCfg)
					}
				}

				if err := srv.Reload(); err != nil {
					log.Error("model reload failed, keeping current models", "error", err)
				}
			case <-shutdownDone:
				return
			}
		}
	}()

	go func() {
		<-sigCh

		log.Info("shutdown signal received")

		signal.Stop(sighupCh)
		signal.Stop(sigCh)
		close(shutdownDone)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", "error", err)
		}

		agg.Stop()
		cancel()
	}()

	log.Info("cplxfox ready", "addr", srv.Addr())

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("cplxfox stopped")
	return nil
}
