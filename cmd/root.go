package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trustlens/trustlens/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "trustlens",
	Short: "AI decision explainability dashboard",
	Long:  "Submits model decisions to an explainability engine, tracks confidence drift over time, and maintains a bounded audit log with heuristic degradation when the remote service is unavailable.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
