package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/bidforge/readiness/internal/types"
)

const (
	// hard no-go when both upstream completeness scores sit below this
	incompleteFloor = 20

	componentFixFloor = 80
	conditionFloor    = 60
	neutralPersona    = 75

	minComponentLift  = 5
	minSectionLift    = 3
	maxSectionLift    = 25
	maxCriterionRisks = 3
	maxFixes          = 5
)

var severityMultipliers = map[string]float64{
	SeverityHigh:   1.5,
	SeverityMedium: 1.0,
	SeverityLow:    0.5,
}

var componentMitigations = map[string]string{
	ComponentFoundational: "Complete discovery and qualification data before submission",
	ComponentStrategy:     "Finish the win strategy: themes, differentiators and proof plan",
	ComponentCoverage:     "Draft or regenerate sections against the uncovered criteria",
	ComponentProof:        "Reference planned proof points in the covering sections",
	ComponentPersona:      "Reframe key sections for the evaluators who will score them",
}

// ReadinessInputs gathers everything the scorer consumes. Foundational and
// strategy scores are computed by upstream subsystems; nil means the
// component was never assessed, which is different from scoring zero.
type ReadinessInputs struct {
	FoundationalScore *float64
	StrategyScore     *float64
	Coverage          *RubricCoverageResult
	Strategy          *types.WinStrategy
	Sections          []types.Section
	Personas          *types.PersonaSettings
}

// Scorer combines coverage output with upstream completeness scores into a
// single readiness assessment. The configuration is passed in explicitly so
// concurrent scorers with different tunings never interact.
type Scorer struct {
	cfg BidReadinessConfig
}

func NewScorer(cfg BidReadinessConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// ComputeBidReadiness produces the composite score, recommendation, risks
// and prioritized fixes for one bid. It never fails: partial inputs yield a
// result flagged unreliable instead of an error.
func (s *Scorer) ComputeBidReadiness(in ReadinessInputs) *BidReadiness {
	components, missing := s.componentScores(in)

	risks := s.assessRisks(components, missing, in.Coverage)
	score := s.overallScore(components, missing)
	score = s.applyPenalties(score, risks, in.Coverage)

	result := &BidReadiness{
		Score:                score,
		Risks:                risks,
		Fixes:                s.buildFixes(components, in.Coverage),
		Breakdown:            components,
		MissingComponents:    missing,
		IsReliableAssessment: in.FoundationalScore != nil && in.StrategyScore != nil && in.Coverage != nil,
		ConfigVersion:        s.cfg.Version,
		GeneratedAt:          time.Now().UTC(),
	}
	s.recommend(result, in)
	return result
}

func (s *Scorer) componentScores(in ReadinessInputs) (ComponentScores, []string) {
	var missing []string
	take := func(name string, v *float64) float64 {
		if v == nil {
			missing = append(missing, name)
			return 0
		}
		return clampScore(*v)
	}

	cs := ComponentScores{
		Foundational: take(ComponentFoundational, in.FoundationalScore),
		Strategy:     take(ComponentStrategy, in.StrategyScore),
		Persona:      s.personaAlignment(in),
	}
	if in.Coverage == nil {
		missing = append(missing, ComponentCoverage, ComponentProof)
	} else {
		cs.Coverage = clampScore(in.Coverage.OverallHealth)
		cs.Proof = meanProofCoverage(in.Coverage.Criteria)
	}
	return cs, missing
}

// personaAlignment is neutral without persona settings; otherwise each
// mismatched criterion contributes weight x severity multiplier, normalized
// against the theoretical maximum (average weight 0.5 at the 1.5
// multiplier). The configured mismatch multiplier divides the denominator,
// so lowering it scores mismatches more harshly.
func (s *Scorer) personaAlignment(in ReadinessInputs) float64 {
	if in.Personas == nil || !in.Personas.Enabled {
		return neutralPersona
	}
	if in.Coverage == nil || len(in.Coverage.Criteria) == 0 {
		return 100
	}
	penalty := 0.0
	for _, cc := range in.Coverage.Criteria {
		if !cc.PersonaMismatch {
			continue
		}
		mult, ok := severityMultipliers[cc.PersonaSeverity]
		if !ok {
			mult = severityMultipliers[SeverityMedium]
		}
		penalty += cc.Weight * mult
	}
	denom := float64(len(in.Coverage.Criteria)) * 0.5 * 1.5 * s.cfg.Penalties.PersonaMismatchMultiplier
	if denom <= 0 {
		return 100
	}
	normalized := math.Min(1, penalty/denom)
	return round2(100 * (1 - normalized))
}

func meanProofCoverage(criteria []CriterionCoverage) float64 {
	if len(criteria) == 0 {
		return 100
	}
	sum := 0.0
	for _, cc := range criteria {
		sum += cc.ProofCoverageScore
	}
	return round2(sum / float64(len(criteria)))
}

func (s *Scorer) overallScore(cs ComponentScores, missing []string) int {
	w := s.cfg.Weights
	if s.cfg.PartialData.Mode == PartialDataRenormalize && len(missing) > 0 {
		return s.renormalizedScore(cs, missing)
	}
	total := cs.Foundational*w.Foundational +
		cs.Strategy*w.Strategy +
		cs.Coverage*w.Coverage +
		cs.Proof*w.Proof +
		cs.Persona*w.Persona
	return int(math.Round(total))
}

// renormalizedScore drops missing components, divides by the weight that
// was actually used and dampens once per missing component so a thin
// assessment cannot outrank a complete one.
func (s *Scorer) renormalizedScore(cs ComponentScores, missing []string) int {
	absent := make(map[string]bool, len(missing))
	for _, m := range missing {
		absent[m] = true
	}
	w := s.cfg.Weights
	parts := []struct {
		name   string
		score  float64
		weight float64
	}{
		{ComponentFoundational, cs.Foundational, w.Foundational},
		{ComponentStrategy, cs.Strategy, w.Strategy},
		{ComponentCoverage, cs.Coverage, w.Coverage},
		{ComponentProof, cs.Proof, w.Proof},
		{ComponentPersona, cs.Persona, w.Persona},
	}
	usedWeight, total := 0.0, 0.0
	for _, p := range parts {
		if absent[p.name] {
			continue
		}
		usedWeight += p.weight
		total += p.score * p.weight
	}
	if usedWeight == 0 {
		return 0
	}
	dampened := total / usedWeight * math.Pow(s.cfg.PartialData.Dampening, float64(len(missing)))
	return int(math.Round(dampened))
}

func (s *Scorer) assessRisks(cs ComponentScores, missing []string, coverage *RubricCoverageResult) []Risk {
	absent := make(map[string]bool, len(missing))
	for _, m := range missing {
		absent[m] = true
	}
	skipAbsent := s.cfg.PartialData.Mode == PartialDataRenormalize

	risks := []Risk{}
	parts := []struct {
		name  string
		score float64
	}{
		{ComponentFoundational, cs.Foundational},
		{ComponentStrategy, cs.Strategy},
		{ComponentCoverage, cs.Coverage},
		{ComponentProof, cs.Proof},
		{ComponentPersona, cs.Persona},
	}
	for _, p := range parts {
		if absent[p.name] && skipAbsent {
			continue
		}
		severity := s.componentSeverity(p.score)
		if severity == "" {
			continue
		}
		summary := fmt.Sprintf("%s readiness is %s (%.0f)", p.name, severity, p.score)
		if absent[p.name] {
			summary = fmt.Sprintf("%s readiness was never assessed", p.name)
		}
		risks = append(risks, Risk{
			Component:  p.name,
			Severity:   severity,
			Summary:    summary,
			Mitigation: componentMitigations[p.name],
		})
	}

	if coverage != nil {
		added := 0
		for _, cc := range coverage.Criteria {
			if added >= maxCriterionRisks {
				break
			}
			if cc.Weight < personaWeightFloor || cc.CoverageScore >= coverageRiskFloor {
				continue
			}
			risks = append(risks, Risk{
				Component:   ComponentCoverage,
				CriterionID: cc.CriterionID,
				Severity:    SeverityHigh,
				Summary:     fmt.Sprintf("high-weight criterion %q is only %.0f%% covered", cc.Label, cc.CoverageScore),
				Mitigation:  fmt.Sprintf("Address %q in sections: %v", cc.Label, cc.SuggestedSections),
			})
			added++
		}
	}
	return risks
}

func (s *Scorer) componentSeverity(score float64) string {
	rt := s.cfg.RiskThresholds
	switch {
	case score < rt.Critical:
		return SeverityCritical
	case score < rt.High:
		return SeverityHigh
	case score < rt.Medium:
		return SeverityMedium
	}
	return ""
}

// applyPenalties deducts the configured flat penalties: once when any
// critical risk is open, once when a high-weight criterion's proof coverage
// has a hole.
func (s *Scorer) applyPenalties(score int, risks []Risk, coverage *RubricCoverageResult) int {
	for _, r := range risks {
		if r.Severity == SeverityCritical {
			score -= int(math.Round(s.cfg.Penalties.CriticalRisk))
			break
		}
	}
	if coverage != nil {
		for _, cc := range coverage.Criteria {
			if cc.Weight >= riskWeightFloor && cc.ProofCoverageScore < proofRiskFloor {
				score -= int(math.Round(s.cfg.Penalties.ProofGap))
				break
			}
		}
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func (s *Scorer) buildFixes(cs ComponentScores, coverage *RubricCoverageResult) []Fix {
	fixes := []Fix{}

	componentFix := func(name string, score, weight float64, action string) {
		if score >= componentFixFloor {
			return
		}
		lift := int(math.Round((100 - score) * weight))
		if lift < minComponentLift {
			return
		}
		fixes = append(fixes, Fix{Area: name, Priority: 1, Lift: lift, Action: action})
	}
	componentFix(ComponentFoundational, cs.Foundational, s.cfg.Weights.Foundational,
		fmt.Sprintf("Complete the foundational bid data (currently %.0f)", cs.Foundational))
	componentFix(ComponentStrategy, cs.Strategy, s.cfg.Weights.Strategy,
		fmt.Sprintf("Strengthen the win strategy (currently %.0f)", cs.Strategy))

	if coverage != nil {
		weightByID := make(map[string]float64, len(coverage.Criteria))
		labelByID := make(map[string]string, len(coverage.Criteria))
		for _, cc := range coverage.Criteria {
			weightByID[cc.CriterionID] = cc.Weight
			labelByID[cc.CriterionID] = cc.Label
		}
		// unity at the default 0.25 coverage weight
		scale := s.cfg.Weights.Coverage * 4
		for _, sc := range coverage.Sections {
			if len(sc.MissingHighWeightCriteria) == 0 {
				continue
			}
			missingWeight := 0.0
			for _, id := range sc.MissingHighWeightCriteria {
				missingWeight += weightByID[id]
			}
			lift := int(math.Round(missingWeight * 20 * scale))
			if lift > maxSectionLift {
				lift = maxSectionLift
			}
			if lift < minSectionLift {
				continue
			}
			first := sc.MissingHighWeightCriteria[0]
			fixes = append(fixes, Fix{
				Area:     "section:" + sc.SectionKey,
				Priority: 2,
				Lift:     lift,
				Action:   fmt.Sprintf("Rework section %q to address %q", sc.SectionKey, labelByID[first]),
			})
		}
		if coverage.PersonaMismatchCount > 0 {
			fixes = append(fixes, Fix{
				Area:     ComponentPersona,
				Priority: 3,
				Lift:     int(math.Round(10 * s.cfg.Weights.Persona)),
				Action:   fmt.Sprintf("Reframe %d criterion responses for their expected evaluator persona", coverage.PersonaMismatchCount),
			})
		}
	}

	sort.SliceStable(fixes, func(i, j int) bool {
		if fixes[i].Priority != fixes[j].Priority {
			return fixes[i].Priority < fixes[j].Priority
		}
		return fixes[i].Lift > fixes[j].Lift
	})
	if len(fixes) > maxFixes {
		fixes = fixes[:maxFixes]
	}
	return fixes
}

// recommend fills recommendation, reasons and conditions. Both upstream
// completeness scores under the incompleteness floor force no_go no matter
// how the weighted score came out: such a bid is too empty to be
// meaningfully scored.
func (s *Scorer) recommend(r *BidReadiness, in ReadinessInputs) {
	foundational := 0.0
	if in.FoundationalScore != nil {
		foundational = clampScore(*in.FoundationalScore)
	}
	strategy := 0.0
	if in.StrategyScore != nil {
		strategy = clampScore(*in.StrategyScore)
	}
	if foundational < incompleteFloor && strategy < incompleteFloor {
		r.Recommendation = RecommendationNoGo
		r.Reasons = append(r.Reasons,
			fmt.Sprintf("foundational data (%.0f) and strategy (%.0f) are both critically incomplete", foundational, strategy))
		return
	}

	t := s.cfg.Thresholds
	switch {
	case float64(r.Score) >= t.Go:
		if r.HasCriticalRisk() {
			r.Recommendation = RecommendationConditional
			r.Reasons = append(r.Reasons,
				fmt.Sprintf("score %d meets the GO threshold (%.0f) but critical risks remain open", r.Score, t.Go))
			for _, risk := range r.Risks {
				if risk.Severity == SeverityCritical {
					r.Conditions = append(r.Conditions, risk.Mitigation)
				}
			}
			return
		}
		r.Recommendation = RecommendationGo
		r.Reasons = append(r.Reasons,
			fmt.Sprintf("score %d meets the GO threshold (%.0f)", r.Score, t.Go))
	case float64(r.Score) >= t.ConditionalMin:
		r.Recommendation = RecommendationConditional
		r.Reasons = append(r.Reasons,
			fmt.Sprintf("score %d sits in the conditional band [%.0f, %.0f)", r.Score, t.ConditionalMin, t.Go))
		r.Conditions = append(r.Conditions, s.weakComponentConditions(r.Breakdown)...)
	default:
		r.Recommendation = RecommendationNoGo
		r.Reasons = append(r.Reasons,
			fmt.Sprintf("score %d is below the conditional floor (%.0f)", r.Score, t.ConditionalMin))
	}
}

func (s *Scorer) weakComponentConditions(cs ComponentScores) []string {
	var conditions []string
	parts := []struct {
		name  string
		score float64
	}{
		{ComponentFoundational, cs.Foundational},
		{ComponentStrategy, cs.Strategy},
		{ComponentCoverage, cs.Coverage},
		{ComponentProof, cs.Proof},
		{ComponentPersona, cs.Persona},
	}
	for _, p := range parts {
		if p.score < conditionFloor {
			conditions = append(conditions, fmt.Sprintf("raise %s readiness above %d (currently %.0f)", p.name, conditionFloor, p.score))
		}
	}
	return conditions
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
