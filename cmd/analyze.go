package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	analyzeInput      string
	analyzeOutput     string
	analyzeConfidence float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Audit a single decision triple",
	Long:  "Submits one decision to the explainability engine and prints the derived audit record. Falls back to the deterministic heuristic audit if the remote service is unreachable.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env := newAppEnv()

		if analyzeInput != "" {
			if err := env.State.SetInputJSON([]byte(analyzeInput)); err != nil {
				return eris.Wrap(err, "parse --input")
			}
		}
		if analyzeOutput != "" {
			if err := env.State.SetOutputJSON([]byte(analyzeOutput)); err != nil {
				return eris.Wrap(err, "parse --output")
			}
		}
		if cmd.Flags().Changed("confidence") {
			if err := env.State.SetConfidence(analyzeConfidence); err != nil {
				return eris.Wrap(err, "set --confidence")
			}
		}

		record := env.Scheduler.AnalyzeNow(ctx)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(record), "encode record")
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeInput, "input", "", "decision input as a JSON object (default: seeded loan application)")
	analyzeCmd.Flags().StringVar(&analyzeOutput, "output", "", "decision output as a JSON object")
	analyzeCmd.Flags().Float64Var(&analyzeConfidence, "confidence", 0.87, "model confidence in [0,1]")
	rootCmd.AddCommand(analyzeCmd)
}
