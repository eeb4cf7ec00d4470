// Package main is the readinessd entry point: the bid readiness API server
// and the operator tooling that works offline against the same data
// directory.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bidforge/readiness/internal/calibration"
	"github.com/bidforge/readiness/internal/config"
)

const version = "1.0.0"

var configPath string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "readinessd",
		Short: "Bid readiness scoring service",
		Long: `readinessd scores proposal drafts against the active win strategy,
records submission snapshots and bid outcomes, and derives scoring-config
tuning suggestions from the win/loss history.

serve runs the HTTP API. analyze and the config commands work offline
against the same data directory, so operators can inspect a deployment
without a running server.`,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "service config file (YAML)")

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newAnalyzeCommand())
	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "readinessd version %s\n", version)
		},
	})

	return cmd
}

func loadServiceConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// openStore opens the calibration store under the configured data directory.
// The layout matches serve, so the offline commands see the same active
// config the server scores with.
func openStore(cfg *config.Config) (*calibration.Store, error) {
	return calibration.NewStore(calibrationDir(cfg), nil)
}

func calibrationDir(cfg *config.Config) string {
	return filepath.Join(cfg.Storage.DataDir, "calibration")
}
