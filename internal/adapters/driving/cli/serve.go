package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quarry-labs/quarry/internal/adapters/driven/config/file"
	"github.com/quarry-labs/quarry/internal/adapters/driving/httpapi"
	"github.com/quarry-labs/quarry/internal/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts the quarry HTTP API.

Endpoints:
  POST /chat     ask a question, answer streamed as server-sent events
  GET  /health   liveness probe
  GET  /config   non-sensitive configuration
  GET  /metrics  Prometheus metrics

The server shuts down gracefully on SIGINT or SIGTERM. While it runs,
changes to ~/.quarry/config.toml and the prompt templates are picked up
without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from settings)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if answerService == nil {
		return errors.New("answer service not configured")
	}
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	addr := settings.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	server, err := httpapi.NewServer(httpapi.Config{
		Addr:        addr,
		Version:     version,
		CORSOrigins: settings.Server.CORSOrigins,
	}, &httpapi.Ports{
		Answer:   answerService,
		Settings: settingsService,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if w := startSettingsWatcher(); w != nil {
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("Closing watcher: %v", err)
			}
		}()
	}

	cmd.Printf("Quarry API listening on %s\n", addr)
	return server.Run(ctx)
}

// startSettingsWatcher begins hot-reloading workflow tunables and prompt
// templates. Returns nil when the stores are not available (tests with
// injected services) or the watcher cannot start; serving continues
// without reload in that case.
func startSettingsWatcher() *file.Watcher {
	if configStore == nil || answerWorkflow == nil {
		return nil
	}

	w, err := file.NewWatcher(configStore, promptStore, func() {
		settings, err := settingsService.Get()
		if err != nil {
			logger.Warn("Settings reload failed: %v", err)
			return
		}
		answerWorkflow.UpdateWorkflowSettings(settings.Workflow)
		logger.Info("Workflow settings applied")
	})
	if err != nil {
		logger.Warn("Settings watcher unavailable: %v", err)
		return nil
	}

	if err := w.Start(); err != nil {
		logger.Warn("Settings watcher failed to start: %v", err)
		if closeErr := w.Close(); closeErr != nil {
			logger.Warn("Closing watcher: %v", closeErr)
		}
		return nil
	}

	return w
}
