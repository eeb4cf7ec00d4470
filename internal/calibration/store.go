package calibration

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bidforge/readiness/internal/analysis"
)

const (
	activeFileName = "active.yaml"
	proposedPrefix = "proposed-"
)

// ErrInvalidConfig marks a rejected change set or configuration, as opposed
// to an I/O failure while persisting one. Callers use it to distinguish bad
// input from storage trouble.
var ErrInvalidConfig = errors.New("invalid config")

// Store manages scoring configurations on disk. active.yaml holds the live
// configuration; proposed-*.yaml files stage tuning suggestions for review.
// The only write paths are Apply (the explicit, human-gated step) and
// StageProposed; analysis code never touches this package.
type Store struct {
	dataDir string
	logger  *slog.Logger

	mu     sync.RWMutex
	active analysis.BidReadinessConfig

	subsMu sync.Mutex
	subs   []func(analysis.BidReadinessConfig)
}

// NewStore creates a store rooted at dataDir and loads the active
// configuration. A missing file falls back to the built-in default.
func NewStore(dataDir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{dataDir: dataDir, logger: logger}

	cfg, err := s.Load()
	if err != nil {
		return nil, err
	}
	s.active = cfg

	return s, nil
}

// Active returns the current scoring configuration.
func (s *Store) Active() analysis.BidReadinessConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Load reads the active configuration from disk. When no file exists the
// built-in default is returned, so a fresh deployment scores immediately.
func (s *Store) Load() (analysis.BidReadinessConfig, error) {
	filePath := filepath.Join(s.dataDir, activeFileName)

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return analysis.DefaultConfig(), nil
	}
	if err != nil {
		return analysis.BidReadinessConfig{}, fmt.Errorf("failed to read active config: %w", err)
	}

	var cfg analysis.BidReadinessConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return analysis.BidReadinessConfig{}, fmt.Errorf("failed to decode active config: %w", err)
	}

	if violations := analysis.ValidateConfig(cfg); len(violations) > 0 {
		return analysis.BidReadinessConfig{}, fmt.Errorf("active config is invalid: %s", strings.Join(violations, "; "))
	}

	return cfg, nil
}

// Save validates and persists a configuration as the active one. The write
// goes through a temp file and rename so readers never see a partial file.
func (s *Store) Save(cfg analysis.BidReadinessConfig) error {
	if violations := analysis.ValidateConfig(cfg); len(violations) > 0 {
		return fmt.Errorf("refusing to save %w: %s", ErrInvalidConfig, strings.Join(violations, "; "))
	}

	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	filePath := filepath.Join(s.dataDir, activeFileName)
	tmpPath := filePath + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		return fmt.Errorf("failed to replace active config: %w", err)
	}

	s.mu.Lock()
	s.active = cfg
	s.mu.Unlock()

	s.notify(cfg)
	return nil
}

// Apply applies a reviewed change set to the active configuration, bumps the
// patch version and persists the result. This is the single write path behind
// the human-gated apply endpoint.
func (s *Store) Apply(changes []analysis.ConfigChange) (analysis.BidReadinessConfig, error) {
	s.mu.RLock()
	current := s.active
	s.mu.RUnlock()

	next, err := analysis.ApplySuggestion(current, analysis.TuningSuggestion{Changes: changes})
	if err != nil {
		return analysis.BidReadinessConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := s.Save(next); err != nil {
		return analysis.BidReadinessConfig{}, err
	}

	s.logger.Info("applied scoring config changes",
		"changes", len(changes),
		"version", next.Version)

	return next, nil
}

// ProposedConfig is the staged form of a tuning suggestion: the full
// configuration that would result from accepting it, plus review context.
type ProposedConfig struct {
	SuggestionID string                      `yaml:"suggestionId" json:"suggestionId"`
	Title        string                      `yaml:"title" json:"title"`
	Rationale    string                      `yaml:"rationale" json:"rationale"`
	CreatedAt    time.Time                   `yaml:"createdAt" json:"createdAt"`
	Config       analysis.BidReadinessConfig `yaml:"config" json:"config"`
	Changes      []analysis.ConfigChange     `yaml:"changes" json:"changes"`
}

// StageProposed writes a suggestion out as a proposed-config file for human
// review. It never touches active.yaml.
func (s *Store) StageProposed(suggestion analysis.TuningSuggestion) (string, error) {
	s.mu.RLock()
	current := s.active
	s.mu.RUnlock()

	next, err := analysis.ApplySuggestion(current, suggestion)
	if err != nil {
		return "", fmt.Errorf("failed to stage suggestion: %w", err)
	}

	proposed := ProposedConfig{
		SuggestionID: suggestion.ID,
		Title:        suggestion.Title,
		Rationale:    suggestion.Rationale,
		CreatedAt:    time.Now().UTC(),
		Config:       next,
		Changes:      suggestion.Changes,
	}

	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(proposed)
	if err != nil {
		return "", fmt.Errorf("failed to encode proposed config: %w", err)
	}

	name := fmt.Sprintf("%s%s-%s.yaml", proposedPrefix, proposed.CreatedAt.Format("20060102T150405"), suggestion.ID)
	filePath := filepath.Join(s.dataDir, name)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write proposed config: %w", err)
	}

	return name, nil
}

// ListProposed returns the staged proposal file names, newest first.
func (s *Store) ListProposed() ([]string, error) {
	entries, err := os.ReadDir(s.dataDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list config directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), proposedPrefix) && strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// Subscribe registers a callback invoked whenever the active configuration
// changes, whether through Apply or an on-disk edit picked up by the watcher.
func (s *Store) Subscribe(fn func(analysis.BidReadinessConfig)) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Store) notify(cfg analysis.BidReadinessConfig) {
	s.subsMu.Lock()
	subs := make([]func(analysis.BidReadinessConfig), len(s.subs))
	copy(subs, s.subs)
	s.subsMu.Unlock()

	for _, fn := range subs {
		fn(cfg)
	}
}

// reload re-reads active.yaml after an external edit. Invalid or unreadable
// files keep the previous configuration live.
func (s *Store) reload() {
	cfg, err := s.Load()
	if err != nil {
		s.logger.Error("config reload failed, keeping previous config", "error", err)
		return
	}

	s.mu.Lock()
	unchanged := cfg == s.active
	if !unchanged {
		s.active = cfg
	}
	s.mu.Unlock()

	if unchanged {
		return
	}

	s.logger.Info("reloaded scoring config", "version", cfg.Version)
	s.notify(cfg)
}
