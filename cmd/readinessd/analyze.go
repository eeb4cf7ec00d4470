package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bidforge/readiness/internal/analysis"
)

func newAnalyzeCommand() *cobra.Command {
	var recordsPath string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze an outcome history offline",
		Long: `Runs the outcome analyzer and tuning advisor over a JSON file of outcome
records, against the active scoring config from the configured data
directory. Output is JSON on stdout.`,
		Example: `  readinessd analyze --records=outcomes.json
  readinessd analyze --records=outcomes.json | jq '.tuning.suggestions'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(recordsPath, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&recordsPath, "records", "", "JSON file of outcome records (required)")
	cmd.MarkFlagRequired("records")
	return cmd
}

func runAnalyze(recordsPath string, out io.Writer) error {
	data, err := os.ReadFile(recordsPath)
	if err != nil {
		return fmt.Errorf("read records file: %w", err)
	}

	var records []analysis.OutcomeRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode records file: %w", err)
	}

	cfg, err := loadServiceConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	active := store.Active()

	outcomes := analysis.AnalyzeOutcomes(records)
	tuning := analysis.SuggestReadinessTuning(outcomes, active)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"configVersion": active.Version,
		"recordCount":   len(records),
		"outcomes":      outcomes,
		"tuning":        tuning,
	})
}
