package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// WeightSumTolerance bounds how far component weights may drift from 1.0.
const WeightSumTolerance = 0.001

// ComponentWeights distributes the overall score across the five readiness
// components. Weights must sum to 1.0 within tolerance.
type ComponentWeights struct {
	Foundational float64 `json:"foundational" yaml:"foundational"`
	Strategy     float64 `json:"strategy" yaml:"strategy"`
	Coverage     float64 `json:"coverage" yaml:"coverage"`
	Proof        float64 `json:"proof" yaml:"proof"`
	Persona      float64 `json:"persona" yaml:"persona"`
}

// DecisionThresholds split the score range into go / conditional / no-go.
type DecisionThresholds struct {
	Go             float64 `json:"go" yaml:"go"`
	ConditionalMin float64 `json:"conditionalMin" yaml:"conditionalMin"`
}

// ScoringPenalties are deductions applied after the weighted sum. The
// persona multiplier divides the mismatch-penalty normalization, so values
// below 1.0 score persona gaps more harshly.
type ScoringPenalties struct {
	CriticalRisk              float64 `json:"criticalRisk" yaml:"criticalRisk"`
	ProofGap                  float64 `json:"proofGap" yaml:"proofGap"`
	PersonaMismatchMultiplier float64 `json:"personaMismatchMultiplier" yaml:"personaMismatchMultiplier"`
}

// RiskThresholds map component scores onto risk severities.
type RiskThresholds struct {
	Critical float64 `json:"critical" yaml:"critical"`
	High     float64 `json:"high" yaml:"high"`
	Medium   float64 `json:"medium" yaml:"medium"`
}

// Partial-data modes: treat missing component scores as zero, or drop them
// and renormalize by the weight actually used.
const (
	PartialDataZero        = "zero"
	PartialDataRenormalize = "renormalize"
)

// PartialDataPolicy controls scoring when upstream components are absent.
// Dampening is applied once per missing component in renormalize mode, so
// thinner evidence never outranks a fully-assessed bid.
type PartialDataPolicy struct {
	Mode      string  `json:"mode" yaml:"mode"`
	Dampening float64 `json:"dampening" yaml:"dampening"`
}

// BidReadinessConfig is the complete tunable scoring configuration. It is a
// pure value: mutation always produces a new copy, never an in-place edit.
type BidReadinessConfig struct {
	Version        string             `json:"version" yaml:"version"`
	Weights        ComponentWeights   `json:"weights" yaml:"weights"`
	Thresholds     DecisionThresholds `json:"thresholds" yaml:"thresholds"`
	Penalties      ScoringPenalties   `json:"penalties" yaml:"penalties"`
	RiskThresholds RiskThresholds     `json:"riskThresholds" yaml:"riskThresholds"`
	PartialData    PartialDataPolicy  `json:"partialData" yaml:"partialData"`
}

// DefaultConfig returns the fixed baseline configuration.
func DefaultConfig() BidReadinessConfig {
	return BidReadinessConfig{
		Version: "1.0.0",
		Weights: ComponentWeights{
			Foundational: 0.25,
			Strategy:     0.20,
			Coverage:     0.25,
			Proof:        0.15,
			Persona:      0.15,
		},
		Thresholds: DecisionThresholds{
			Go:             70,
			ConditionalMin: 40,
		},
		Penalties: ScoringPenalties{
			CriticalRisk:              10,
			ProofGap:                  2,
			PersonaMismatchMultiplier: 1.0,
		},
		RiskThresholds: RiskThresholds{
			Critical: 20,
			High:     40,
			Medium:   60,
		},
		PartialData: PartialDataPolicy{
			Mode:      PartialDataZero,
			Dampening: 0.85,
		},
	}
}

// ValidateWeights returns the list of violated weight invariants, empty when
// the weights are structurally sound.
func ValidateWeights(w ComponentWeights) []string {
	var violations []string
	each := []struct {
		name  string
		value float64
	}{
		{"foundational", w.Foundational},
		{"strategy", w.Strategy},
		{"coverage", w.Coverage},
		{"proof", w.Proof},
		{"persona", w.Persona},
	}
	sum := 0.0
	for _, e := range each {
		if e.value < 0 || e.value > 1 {
			violations = append(violations, fmt.Sprintf("weight %q must be within [0,1], got %v", e.name, e.value))
		}
		sum += e.value
	}
	if math.Abs(sum-1.0) > WeightSumTolerance {
		violations = append(violations, fmt.Sprintf("weights must sum to 1.0 (±%v), got %v", WeightSumTolerance, sum))
	}
	return violations
}

// ValidateThresholds returns the list of violated threshold invariants.
func ValidateThresholds(t DecisionThresholds) []string {
	var violations []string
	if t.Go <= t.ConditionalMin {
		violations = append(violations, fmt.Sprintf("go threshold (%v) must exceed conditionalMin (%v)", t.Go, t.ConditionalMin))
	}
	if t.Go < 0 || t.Go > 100 {
		violations = append(violations, fmt.Sprintf("go threshold must be within [0,100], got %v", t.Go))
	}
	if t.ConditionalMin < 0 || t.ConditionalMin > 100 {
		violations = append(violations, fmt.Sprintf("conditionalMin must be within [0,100], got %v", t.ConditionalMin))
	}
	return violations
}

// ValidateConfig aggregates every structural check over the configuration.
func ValidateConfig(c BidReadinessConfig) []string {
	violations := append(ValidateWeights(c.Weights), ValidateThresholds(c.Thresholds)...)
	if c.Penalties.CriticalRisk < 0 {
		violations = append(violations, fmt.Sprintf("criticalRisk penalty must be non-negative, got %v", c.Penalties.CriticalRisk))
	}
	if c.Penalties.ProofGap < 0 {
		violations = append(violations, fmt.Sprintf("proofGap penalty must be non-negative, got %v", c.Penalties.ProofGap))
	}
	if c.Penalties.PersonaMismatchMultiplier <= 0 {
		violations = append(violations, fmt.Sprintf("personaMismatchMultiplier must be positive, got %v", c.Penalties.PersonaMismatchMultiplier))
	}
	if !(c.RiskThresholds.Critical < c.RiskThresholds.High && c.RiskThresholds.High < c.RiskThresholds.Medium) {
		violations = append(violations, fmt.Sprintf("risk thresholds must be ordered critical < high < medium, got %v/%v/%v",
			c.RiskThresholds.Critical, c.RiskThresholds.High, c.RiskThresholds.Medium))
	}
	switch c.PartialData.Mode {
	case PartialDataZero, PartialDataRenormalize:
	default:
		violations = append(violations, fmt.Sprintf("partialData mode must be %q or %q, got %q", PartialDataZero, PartialDataRenormalize, c.PartialData.Mode))
	}
	if c.PartialData.Dampening <= 0 || c.PartialData.Dampening > 1 {
		violations = append(violations, fmt.Sprintf("partialData dampening must be within (0,1], got %v", c.PartialData.Dampening))
	}
	return violations
}

type configLeaf struct {
	path  string
	label string
	get   func(*BidReadinessConfig) interface{}
	set   func(*BidReadinessConfig, interface{}) bool
}

func floatLeaf(path, label string, get func(*BidReadinessConfig) *float64) configLeaf {
	return configLeaf{
		path:  path,
		label: label,
		get:   func(c *BidReadinessConfig) interface{} { return *get(c) },
		set: func(c *BidReadinessConfig, v interface{}) bool {
			f, ok := toFloat(v)
			if !ok {
				return false
			}
			*get(c) = f
			return true
		},
	}
}

func stringLeaf(path, label string, get func(*BidReadinessConfig) *string) configLeaf {
	return configLeaf{
		path:  path,
		label: label,
		get:   func(c *BidReadinessConfig) interface{} { return *get(c) },
		set: func(c *BidReadinessConfig, v interface{}) bool {
			s, ok := v.(string)
			if !ok {
				return false
			}
			*get(c) = s
			return true
		},
	}
}

// configLeaves enumerates every diffable leaf in canonical order. Version is
// deliberately excluded: it tracks edits rather than being one.
var configLeaves = []configLeaf{
	floatLeaf("weights.foundational", "foundational-data weight", func(c *BidReadinessConfig) *float64 { return &c.Weights.Foundational }),
	floatLeaf("weights.strategy", "strategy weight", func(c *BidReadinessConfig) *float64 { return &c.Weights.Strategy }),
	floatLeaf("weights.coverage", "coverage weight", func(c *BidReadinessConfig) *float64 { return &c.Weights.Coverage }),
	floatLeaf("weights.proof", "proof weight", func(c *BidReadinessConfig) *float64 { return &c.Weights.Proof }),
	floatLeaf("weights.persona", "persona weight", func(c *BidReadinessConfig) *float64 { return &c.Weights.Persona }),
	floatLeaf("thresholds.go", "GO threshold", func(c *BidReadinessConfig) *float64 { return &c.Thresholds.Go }),
	floatLeaf("thresholds.conditionalMin", "conditional floor", func(c *BidReadinessConfig) *float64 { return &c.Thresholds.ConditionalMin }),
	floatLeaf("penalties.criticalRisk", "critical-risk penalty", func(c *BidReadinessConfig) *float64 { return &c.Penalties.CriticalRisk }),
	floatLeaf("penalties.proofGap", "proof-gap penalty", func(c *BidReadinessConfig) *float64 { return &c.Penalties.ProofGap }),
	floatLeaf("penalties.personaMismatchMultiplier", "persona-mismatch multiplier", func(c *BidReadinessConfig) *float64 { return &c.Penalties.PersonaMismatchMultiplier }),
	floatLeaf("riskThresholds.critical", "critical risk threshold", func(c *BidReadinessConfig) *float64 { return &c.RiskThresholds.Critical }),
	floatLeaf("riskThresholds.high", "high risk threshold", func(c *BidReadinessConfig) *float64 { return &c.RiskThresholds.High }),
	floatLeaf("riskThresholds.medium", "medium risk threshold", func(c *BidReadinessConfig) *float64 { return &c.RiskThresholds.Medium }),
	stringLeaf("partialData.mode", "partial-data mode", func(c *BidReadinessConfig) *string { return &c.PartialData.Mode }),
	floatLeaf("partialData.dampening", "partial-data dampening", func(c *BidReadinessConfig) *float64 { return &c.PartialData.Dampening }),
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func findLeaf(path string) (configLeaf, bool) {
	for _, leaf := range configLeaves {
		if leaf.path == path {
			return leaf, true
		}
	}
	return configLeaf{}, false
}

// DiffConfigs enumerates every leaf value that differs between two
// configurations, in canonical leaf order.
func DiffConfigs(a, b BidReadinessConfig) []ConfigChange {
	var changes []ConfigChange
	for _, leaf := range configLeaves {
		from := leaf.get(&a)
		to := leaf.get(&b)
		if from != to {
			changes = append(changes, ConfigChange{
				Path:        leaf.path,
				From:        from,
				To:          to,
				Description: fmt.Sprintf("%s: %v -> %v", leaf.label, from, to),
			})
		}
	}
	return changes
}

// ApplyChanges copies the base configuration and applies each change by
// path. The base is never mutated. Unknown paths or mistyped values are
// reported, with all valid changes still applied.
func ApplyChanges(base BidReadinessConfig, changes []ConfigChange) (BidReadinessConfig, error) {
	out := base
	var bad []string
	for _, ch := range changes {
		leaf, ok := findLeaf(ch.Path)
		if !ok {
			bad = append(bad, fmt.Sprintf("unknown path %q", ch.Path))
			continue
		}
		if !leaf.set(&out, ch.To) {
			bad = append(bad, fmt.Sprintf("incompatible value %v for path %q", ch.To, ch.Path))
		}
	}
	if len(bad) > 0 {
		return out, fmt.Errorf("applying config changes: %s", strings.Join(bad, "; "))
	}
	return out, nil
}

// GenerateConfigPatch flattens changes into a path -> value map for manual
// review alongside a tuning suggestion.
func GenerateConfigPatch(changes []ConfigChange) map[string]interface{} {
	patch := make(map[string]interface{}, len(changes))
	for _, ch := range changes {
		patch[ch.Path] = ch.To
	}
	return patch
}

func makeChange(c BidReadinessConfig, path string, to interface{}) ConfigChange {
	leaf, ok := findLeaf(path)
	if !ok {
		return ConfigChange{Path: path, To: to}
	}
	from := leaf.get(&c)
	return ConfigChange{
		Path:        path,
		From:        from,
		To:          to,
		Description: fmt.Sprintf("%s: %v -> %v", leaf.label, from, to),
	}
}

// bumpPatchVersion increments the patch component of an x.y.z version.
// Unparseable versions are returned unchanged.
func bumpPatchVersion(v string) string {
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return v
	}
	patch, err := strconv.Atoi(parts[2])
	if err != nil {
		return v
	}
	return fmt.Sprintf("%s.%s.%d", parts[0], parts[1], patch+1)
}
