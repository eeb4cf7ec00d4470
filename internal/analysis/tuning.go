package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Safety bounds for advisory changes. Every heuristic caps its own step so
// repeated tuning rounds converge instead of running away.
const (
	criticalPenaltyStep    = 5
	maxCriticalRiskPenalty = 25

	thresholdStep  = 5
	maxGoThreshold = 85

	minConditionalGap = 10

	personaMultiplierStep = 0.1
	minPersonaMultiplier  = 0.6

	proofPenaltyStep   = 1
	maxProofGapPenalty = 5

	// combined share of losses citing experience or fit gaps
	proofLossShare = 25
)

var confidenceRank = map[string]int{
	ConfidenceHigh:   0,
	ConfidenceMedium: 1,
	ConfidenceLow:    2,
}

var impactRank = map[string]int{
	ImpactSignificant: 0,
	ImpactModerate:    1,
	ImpactMinor:       2,
}

// SuggestReadinessTuning turns outcome-analysis insights into concrete,
// human-reviewable configuration changes. Five independent heuristics each
// contribute at most one suggestion. Nothing here ever touches the live
// configuration.
func SuggestReadinessTuning(outcomes *OutcomeAnalysisResult, cfg BidReadinessConfig) *TuningResult {
	result := &TuningResult{
		Suggestions: []TuningSuggestion{},
		GeneratedAt: time.Now().UTC(),
	}
	if outcomes == nil || !outcomes.IsStatisticallyMeaningful {
		have := 0
		if outcomes != nil {
			have = outcomes.CompleteRecords
		}
		result.Message = fmt.Sprintf("no suggestions: %d complete outcome records, %d required before tuning is advisable",
			have, minMeaningfulRecords)
		return result
	}

	add := func(s *TuningSuggestion) {
		if s != nil {
			result.Suggestions = append(result.Suggestions, *s)
		}
	}
	add(suggestCriticalRiskPenalty(outcomes, cfg))
	add(suggestGoThresholdRaise(outcomes, cfg))
	add(suggestConditionalNarrow(outcomes, cfg))
	add(suggestStricterAcknowledgedRisks(outcomes, cfg))
	add(suggestProofGapPenalty(outcomes, cfg))

	sort.SliceStable(result.Suggestions, func(i, j int) bool {
		a, b := result.Suggestions[i], result.Suggestions[j]
		if confidenceRank[a.Confidence] != confidenceRank[b.Confidence] {
			return confidenceRank[a.Confidence] < confidenceRank[b.Confidence]
		}
		return impactRank[a.Impact] < impactRank[b.Impact]
	})
	if len(result.Suggestions) == 0 {
		result.Message = "no tuning indicated: current configuration is consistent with observed outcomes"
	}
	return result
}

func findInsight(insights []OutcomeInsight, signal string) *OutcomeInsight {
	for i := range insights {
		if insights[i].Signal == signal {
			return &insights[i]
		}
	}
	return nil
}

// Bids carrying critical risks losing well below baseline means the flat
// penalty is too forgiving.
func suggestCriticalRiskPenalty(outcomes *OutcomeAnalysisResult, cfg BidReadinessConfig) *TuningSuggestion {
	ins := findInsight(outcomes.RiskInsights, SignalRisksCritical)
	if ins == nil || ins.Confidence == ConfidenceLow || ins.WinRateDelta > -advisoryDelta {
		return nil
	}
	next := math.Min(cfg.Penalties.CriticalRisk+criticalPenaltyStep, maxCriticalRiskPenalty)
	if next <= cfg.Penalties.CriticalRisk {
		return nil
	}
	return &TuningSuggestion{
		ID:         "raise-critical-risk-penalty",
		Title:      "Raise the critical-risk penalty",
		Changes:    []ConfigChange{makeChange(cfg, "penalties.criticalRisk", next)},
		Risk:       SeverityLow,
		Impact:     ImpactModerate,
		Confidence: ins.Confidence,
		Rationale: fmt.Sprintf("bids submitted with open critical risks win %.0f points below baseline (n=%d); a larger deduction keeps them out of the GO band",
			-ins.WinRateDelta, ins.SampleSize),
	}
}

// A weak predictive gap at the current GO threshold paired with a strong
// gap at 80 means the bar is set below where outcomes actually separate.
func suggestGoThresholdRaise(outcomes *OutcomeAnalysisResult, cfg BidReadinessConfig) *TuningSuggestion {
	atGo := findInsight(outcomes.ScoreInsights, scoreSignal(nearestBucket(cfg.Thresholds.Go), true))
	at80 := findInsight(outcomes.ScoreInsights, scoreSignal(80, true))
	if atGo == nil || at80 == nil {
		return nil
	}
	weakHere := math.Abs(atGo.WinRateDelta) < advisoryDelta
	strongAt80 := at80.WinRateDelta >= advisoryDelta && at80.WinRateDelta >= atGo.WinRateDelta+thresholdStep
	if !weakHere || !strongAt80 {
		return nil
	}
	next := math.Min(cfg.Thresholds.Go+thresholdStep, maxGoThreshold)
	if next <= cfg.Thresholds.Go {
		return nil
	}
	return &TuningSuggestion{
		ID:         "raise-go-threshold",
		Title:      "Raise the GO threshold",
		Changes:    []ConfigChange{makeChange(cfg, "thresholds.go", next)},
		Risk:       SeverityMedium,
		Impact:     ImpactSignificant,
		Confidence: at80.Confidence,
		Rationale: fmt.Sprintf("win rate barely moves at score>=%.0f (%+.0f) but jumps at score>=80 (%+.0f, n=%d); the GO bar sits below where outcomes separate",
			cfg.Thresholds.Go, atGo.WinRateDelta, at80.WinRateDelta, at80.SampleSize),
	}
}

// Conditional and no-go bids losing at near-identical rates means the
// conditional band is not discriminating; narrowing it forces clearer calls.
func suggestConditionalNarrow(outcomes *OutcomeAnalysisResult, cfg BidReadinessConfig) *TuningSuggestion {
	cond := findInsight(outcomes.RecommendationInsights, recommendationSignal(RecommendationConditional))
	noGo := findInsight(outcomes.RecommendationInsights, recommendationSignal(RecommendationNoGo))
	if cond == nil || noGo == nil {
		return nil
	}
	bothPoor := cond.WinRateDelta <= -advisoryDelta && noGo.WinRateDelta <= -advisoryDelta
	similar := math.Abs(cond.WinRateDelta-noGo.WinRateDelta) <= thresholdStep
	if !bothPoor || !similar {
		return nil
	}
	next := math.Min(cfg.Thresholds.ConditionalMin+thresholdStep, cfg.Thresholds.Go-minConditionalGap)
	if next <= cfg.Thresholds.ConditionalMin {
		return nil
	}
	return &TuningSuggestion{
		ID:         "narrow-conditional-band",
		Title:      "Narrow the conditional band",
		Changes:    []ConfigChange{makeChange(cfg, "thresholds.conditionalMin", next)},
		Risk:       SeverityMedium,
		Impact:     ImpactModerate,
		Confidence: weakerConfidence(cond.Confidence, noGo.Confidence),
		Rationale: fmt.Sprintf("conditional (%+.0f) and no-go (%+.0f) bids lose at similar rates; the conditional band is not discriminating",
			cond.WinRateDelta, noGo.WinRateDelta),
	}
}

// Teams pushing bids through over acknowledged risks and losing means the
// scoring is too lenient about unresolved gaps.
func suggestStricterAcknowledgedRisks(outcomes *OutcomeAnalysisResult, cfg BidReadinessConfig) *TuningSuggestion {
	ins := findInsight(outcomes.RiskInsights, SignalRisksAcknowledged)
	if ins == nil || ins.Confidence == ConfidenceLow || ins.WinRateDelta > -advisoryDelta {
		return nil
	}
	next := math.Max(round1(cfg.Penalties.PersonaMismatchMultiplier-personaMultiplierStep), minPersonaMultiplier)
	if next >= cfg.Penalties.PersonaMismatchMultiplier {
		return nil
	}
	return &TuningSuggestion{
		ID:         "tighten-mismatch-scoring",
		Title:      "Score unresolved gaps more harshly",
		Changes:    []ConfigChange{makeChange(cfg, "penalties.personaMismatchMultiplier", next)},
		Risk:       SeverityLow,
		Impact:     ImpactMinor,
		Confidence: ins.Confidence,
		Rationale: fmt.Sprintf("bids submitted over acknowledged risks win %.0f points below baseline (n=%d); tightening mismatch normalization surfaces those gaps in the score",
			-ins.WinRateDelta, ins.SampleSize),
	}
}

// Losses repeatedly citing experience or fit gaps point at proof coverage:
// the proposal claimed without substantiating.
func suggestProofGapPenalty(outcomes *OutcomeAnalysisResult, cfg BidReadinessConfig) *TuningSuggestion {
	share, sample := 0.0, 0
	for _, stat := range outcomes.LossReasons {
		if stat.Tag == "experience" || stat.Tag == "fit" {
			share += stat.Percentage
			sample += stat.Count
		}
	}
	if share < proofLossShare {
		return nil
	}
	next := math.Min(cfg.Penalties.ProofGap+proofPenaltyStep, maxProofGapPenalty)
	if next <= cfg.Penalties.ProofGap {
		return nil
	}
	return &TuningSuggestion{
		ID:         "raise-proof-gap-penalty",
		Title:      "Raise the proof-gap penalty",
		Changes:    []ConfigChange{makeChange(cfg, "penalties.proofGap", next)},
		Risk:       SeverityLow,
		Impact:     ImpactMinor,
		Confidence: confidenceForSample(sample),
		Rationale: fmt.Sprintf("%.0f%% of losses cite experience or fit gaps; penalizing unproven high-weight criteria targets the pattern",
			share),
	}
}

// ApplySuggestion simulates accepting a suggestion: copy, apply, bump the
// patch version. It never commits anything; persisting the result is a
// separate, human-gated action.
func ApplySuggestion(cfg BidReadinessConfig, s TuningSuggestion) (BidReadinessConfig, error) {
	out, err := ApplyChanges(cfg, s.Changes)
	if err != nil {
		return cfg, err
	}
	out.Version = bumpPatchVersion(out.Version)
	return out, nil
}

func nearestBucket(threshold float64) int {
	nearest := scoreBuckets[0]
	best := math.Abs(threshold - float64(nearest))
	for _, b := range scoreBuckets[1:] {
		if d := math.Abs(threshold - float64(b)); d < best {
			nearest, best = b, d
		}
	}
	return nearest
}

func weakerConfidence(a, b string) string {
	if confidenceRank[a] > confidenceRank[b] {
		return a
	}
	return b
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
