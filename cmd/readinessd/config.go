package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bidforge/readiness/internal/analysis"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate scoring configurations",
	}
	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigValidateCommand())
	cmd.AddCommand(newConfigDiffCommand())
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the active scoring config as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServiceConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(store.Active())
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "validate <file>",
		Short:   "Validate a scoring config file",
		Args:    cobra.ExactArgs(1),
		Example: `  readinessd config validate candidate.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			candidate, err := readScoringConfig(args[0])
			if err != nil {
				return err
			}

			violations := analysis.ValidateConfig(candidate)
			if len(violations) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "valid")
				return nil
			}
			for _, v := range violations {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return fmt.Errorf("%s has %d violations", args[0], len(violations))
		},
	}
}

func newConfigDiffCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "diff <file>",
		Short:   "Diff a scoring config file against the active one",
		Args:    cobra.ExactArgs(1),
		Example: `  readinessd config diff candidate.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			candidate, err := readScoringConfig(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadServiceConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}

			changes := analysis.DiffConfigs(store.Active(), candidate)
			if len(changes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no changes")
				return nil
			}
			for _, ch := range changes {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %v -> %v\n", ch.Path, ch.From, ch.To)
			}
			return nil
		},
	}
}

func readScoringConfig(path string) (analysis.BidReadinessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return analysis.BidReadinessConfig{}, fmt.Errorf("read config file: %w", err)
	}

	var cfg analysis.BidReadinessConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return analysis.BidReadinessConfig{}, fmt.Errorf("decode config file: %w", err)
	}
	return cfg, nil
}
