package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/bidforge/readiness/internal/analysis"
)

func execReadinessd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { configPath = "" })

	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeServiceConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "readiness.yaml")
	content := fmt.Sprintf("storage:\n  data_dir: %s\n", dir)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func writeScoringConfig(t *testing.T, dir, name string, cfg analysis.BidReadinessConfig) string {
	t.Helper()
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execReadinessd(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "readinessd version 1.0.0")
}

func TestRootRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, sub := range rootCmd().Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{"serve", "analyze", "config", "version"} {
		assert.True(t, names[want], want)
	}
}

func TestAnalyzeCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeServiceConfig(t, dir)

	submitted := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	records := []analysis.OutcomeRecord{
		{
			ID:    "r1",
			BidID: "bid-1",
			Snapshot: &analysis.BidReadiness{
				Score:          82,
				Recommendation: analysis.RecommendationGo,
			},
			Outcome:     analysis.OutcomeWon,
			SubmittedAt: submitted,
		},
		{
			ID:    "r2",
			BidID: "bid-2",
			Snapshot: &analysis.BidReadiness{
				Score:          44,
				Recommendation: analysis.RecommendationNoGo,
			},
			Outcome:     analysis.OutcomeLost,
			LossReasons: []string{"price"},
			SubmittedAt: submitted,
		},
	}
	data, err := json.Marshal(records)
	require.NoError(t, err)

	recordsPath := filepath.Join(dir, "outcomes.json")
	require.NoError(t, os.WriteFile(recordsPath, data, 0644))

	out, err := execReadinessd(t, "--config", cfgPath, "analyze", "--records", recordsPath)
	require.NoError(t, err)

	assert.Contains(t, out, `"recordCount": 2`)
	assert.Contains(t, out, `"configVersion": "1.0.0"`)
	assert.Contains(t, out, `"outcomes"`)
	assert.Contains(t, out, `"tuning"`)
}

func TestAnalyzeRejectsMissingFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeServiceConfig(t, dir)

	_, err := execReadinessd(t, "--config", cfgPath, "analyze", "--records", filepath.Join(dir, "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read records file")
}

func TestConfigValidateCommand(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid config", func(t *testing.T) {
		path := writeScoringConfig(t, dir, "good.yaml", analysis.DefaultConfig())

		out, err := execReadinessd(t, "config", "validate", path)
		require.NoError(t, err)
		assert.Contains(t, out, "valid")
	})

	t.Run("invalid config", func(t *testing.T) {
		bad := analysis.DefaultConfig()
		bad.Weights.Coverage = 0.9
		path := writeScoringConfig(t, dir, "bad.yaml", bad)

		out, err := execReadinessd(t, "config", "validate", path)
		require.Error(t, err)
		assert.Contains(t, out, "must sum to 1.0")
	})
}

func TestConfigDiffCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeServiceConfig(t, dir)

	candidate := analysis.DefaultConfig()
	candidate.Thresholds.Go = 75
	path := writeScoringConfig(t, dir, "candidate.yaml", candidate)

	out, err := execReadinessd(t, "--config", cfgPath, "config", "diff", path)
	require.NoError(t, err)
	assert.Contains(t, out, "thresholds.go: 70 -> 75")
}

func TestConfigShowCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeServiceConfig(t, dir)

	out, err := execReadinessd(t, "--config", cfgPath, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "1.0.0")
}
