package main

import (
	"encoding/json"
	"math/rand/v2"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trustlens/trustlens/internal/model"
	"github.com/trustlens/trustlens/internal/scheduler"
)

var (
	simulateTicks   int
	simulateDelayMS int
	simulateSeed    uint64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the decision simulator for a fixed number of ticks",
	Long:  "Perturbs the seeded loan decision tick by tick, analyzing on the standard cadence, then prints the drift window, audit log, and metrics snapshot.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		opts := []scheduler.Option{scheduler.WithMode(model.ModeSimulation)}
		if simulateSeed != 0 {
			opts = append(opts, scheduler.WithRand(rand.New(rand.NewPCG(simulateSeed, simulateSeed))))
		}

		env := newAppEnv(opts...)

		zap.L().Info("starting simulation",
			zap.Int("ticks", simulateTicks),
			zap.Uint64("seed", simulateSeed),
		)

		for i := 0; i < simulateTicks; i++ {
			env.Scheduler.Tick(ctx)
			if simulateDelayMS > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(simulateDelayMS) * time.Millisecond):
				}
			}
		}
		env.Scheduler.Wait()

		summary := struct {
			Metrics any `json:"metrics"`
			Drift   any `json:"drift"`
			Audits  any `json:"audits"`
		}{
			Metrics: env.Collector.Collect(),
			Drift:   env.History.Drift(),
			Audits:  env.History.Audits(),
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(summary), "encode summary")
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simulateTicks, "ticks", 12, "number of simulation ticks to run")
	simulateCmd.Flags().IntVar(&simulateDelayMS, "delay-ms", 0, "delay between ticks in milliseconds")
	simulateCmd.Flags().Uint64Var(&simulateSeed, "seed", 0, "random seed for reproducible perturbation (0 = system randomness)")
	rootCmd.AddCommand(simulateCmd)
}
