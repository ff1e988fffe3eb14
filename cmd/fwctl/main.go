// Command fwctl is the FaceWatch operator tool: bulk import, reconciliation
// and identity corrections against the same stores the services use.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Limmita2/FaseWatch/internal/app"
	"github.com/Limmita2/FaseWatch/internal/config"
	"github.com/Limmita2/FaseWatch/internal/observability"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "fwctl",
	Short: "FaceWatch operator tool",
	Long: `fwctl talks directly to Postgres, MinIO and the vector index configured
for the FaceWatch services. It imports photo directories, repairs drift
between the relational store and the vector index, and applies identity
corrections without going through the HTTP API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDeps loads the config and opens the shared stores.
func openDeps(ctx context.Context) (*app.Deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	observability.SetupLogger(cfg.Logging.Level, "text")
	return app.Open(ctx, cfg)
}
