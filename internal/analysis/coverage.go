package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/bidforge/readiness/internal/types"
)

const (
	// weight bands used when flagging risks and review-worthy sections
	riskWeightFloor    = 0.2
	personaWeightFloor = 0.3
	sectionWeightFloor = 0.25

	coverageRiskFloor = 50
	proofRiskFloor    = 30
	reviewScoreFloor  = 50

	maxProofPriority = 5
)

// CoverageAnalyzer maps evaluation criteria onto drafted sections and
// measures how well each criterion is addressed. It holds no state beyond
// its two classifiers and is safe for concurrent use.
type CoverageAnalyzer struct {
	sections Classifier
	personas Classifier
}

func NewCoverageAnalyzer() *CoverageAnalyzer {
	return &CoverageAnalyzer{
		sections: DefaultSectionClassifier(),
		personas: DefaultPersonaClassifier(),
	}
}

// NewCoverageAnalyzerWithClassifiers swaps in custom taxonomies, keeping
// the scoring logic untouched.
func NewCoverageAnalyzerWithClassifiers(sections, personas Classifier) *CoverageAnalyzer {
	return &CoverageAnalyzer{sections: sections, personas: personas}
}

// ComputeRubricCoverage computes per-criterion and per-section coverage for
// one bid. Missing inputs degrade to vacuously-healthy results with an
// explanatory note rather than an error.
func (a *CoverageAnalyzer) ComputeRubricCoverage(strategy *types.WinStrategy, sections []types.Section, personas *types.PersonaSettings) *RubricCoverageResult {
	result := &RubricCoverageResult{
		Criteria:    []CriterionCoverage{},
		Sections:    []SectionCoverage{},
		GeneratedAt: time.Now().UTC(),
	}

	var criteria []types.EvaluationCriterion
	var proofPlan []types.ProofItem
	if strategy != nil {
		criteria = strategy.Criteria
		proofPlan = strategy.ProofPlan
	}

	byKey := make(map[string]*types.Section, len(sections))
	for i := range sections {
		byKey[sections[i].Key] = &sections[i]
	}

	personaEnabled := personas != nil && personas.Enabled

	for _, crit := range criteria {
		cc := a.analyzeCriterion(crit, byKey, proofPlan)
		if personaEnabled {
			a.assessPersona(&cc, crit, personas)
			if cc.PersonaMismatch {
				result.PersonaMismatchCount++
			}
		}
		result.Criteria = append(result.Criteria, cc)
	}

	sortCriteria(result.Criteria)
	result.Sections = buildSectionCoverage(sections, result.Criteria)
	result.OverallHealth = overallHealth(result.Criteria)

	if len(criteria) == 0 {
		result.Notes = append(result.Notes, "no evaluation criteria defined; coverage is vacuously healthy")
	} else if len(sections) == 0 {
		result.Notes = append(result.Notes, "no drafted sections provided; every criterion is uncovered")
	}
	return result
}

func (a *CoverageAnalyzer) analyzeCriterion(crit types.EvaluationCriterion, byKey map[string]*types.Section, proofPlan []types.ProofItem) CriterionCoverage {
	suggested := crit.SuggestedSections
	if len(suggested) == 0 {
		suggested = a.sections.Classify(crit.Label)
	}
	if len(suggested) == 0 {
		suggested = []string{FallbackSectionKey}
	}

	covered := make([]string, 0, len(suggested))
	for _, key := range suggested {
		sec, ok := byKey[key]
		if !ok || !sec.HasWinStrategy {
			continue
		}
		if themeOverlap(sec.AppliedThemes, crit.Label) || sec.HasContent() {
			covered = append(covered, key)
		}
	}

	coverage := float64(len(covered)) / float64(len(suggested)) * 100
	proof := proofCoverage(proofPlan, covered, byKey)

	return CriterionCoverage{
		CriterionID:        crit.ID,
		Label:              crit.Label,
		Weight:             crit.Weight,
		SuggestedSections:  suggested,
		CoveredSections:    covered,
		CoverageScore:      round2(coverage),
		ProofCoverageScore: round2(proof),
		WeightedScore:      round2(crit.Weight * coverage),
		IsRisk:             crit.Weight >= riskWeightFloor && (coverage < coverageRiskFloor || proof < proofRiskFloor),
	}
}

func themeOverlap(themes []string, label string) bool {
	for _, theme := range themes {
		if textOverlaps(theme, label) {
			return true
		}
	}
	return false
}

// proofCoverage is the priority-weighted fraction of the proof plan that
// covering sections actually reference. An empty plan scores 100.
func proofCoverage(plan []types.ProofItem, covered []string, byKey map[string]*types.Section) float64 {
	if len(plan) == 0 {
		return 100
	}
	referenced := make(map[string]bool)
	for _, key := range covered {
		sec, ok := byKey[key]
		if !ok {
			continue
		}
		for _, id := range sec.AppliedProof {
			referenced[id] = true
		}
	}
	total, used := 0.0, 0.0
	for _, item := range plan {
		p := item.Priority
		if p < 1 {
			p = 1
		}
		if p > maxProofPriority {
			p = maxProofPriority
		}
		w := float64(maxProofPriority + 1 - p)
		total += w
		if referenced[item.ID] {
			used += w
		}
	}
	if total == 0 {
		return 100
	}
	return used / total * 100
}

// assessPersona fills the persona-mismatch fields following the severity
// ladder: expected persona present elsewhere only as a secondary reviewer
// is low, absent everywhere on a high-weight criterion is high, anything
// else is medium.
func (a *CoverageAnalyzer) assessPersona(cc *CriterionCoverage, crit types.EvaluationCriterion, settings *types.PersonaSettings) {
	matches := a.personas.Classify(crit.Label)
	if len(matches) == 0 {
		return
	}
	expected := matches[0]
	cc.ExpectedPersona = expected

	for _, key := range cc.CoveredSections {
		if sp, ok := settings.Persona(key); ok && sp.Primary == expected {
			return
		}
	}

	cc.PersonaMismatch = true
	appearsPrimary, appearsSecondary := false, false
	for _, sp := range settings.SectionPersonas {
		if sp.Primary == expected {
			appearsPrimary = true
		}
		for _, s := range sp.Secondary {
			if s == expected {
				appearsSecondary = true
			}
		}
	}
	switch {
	case !appearsPrimary && appearsSecondary:
		cc.PersonaSeverity = SeverityLow
	case !appearsPrimary && !appearsSecondary && crit.Weight >= personaWeightFloor:
		cc.PersonaSeverity = SeverityHigh
	default:
		cc.PersonaSeverity = SeverityMedium
	}
}

// sortCriteria orders risk items first, then by weighted gap descending.
// The sort is stable so ties keep definition order, which the UI and tests
// rely on.
func sortCriteria(criteria []CriterionCoverage) {
	sort.SliceStable(criteria, func(i, j int) bool {
		if criteria[i].IsRisk != criteria[j].IsRisk {
			return criteria[i].IsRisk
		}
		gi := criteria[i].Weight * (100 - criteria[i].CoverageScore)
		gj := criteria[j].Weight * (100 - criteria[j].CoverageScore)
		return gi > gj
	})
}

func buildSectionCoverage(sections []types.Section, criteria []CriterionCoverage) []SectionCoverage {
	out := make([]SectionCoverage, 0, len(sections))
	for _, sec := range sections {
		sc := SectionCoverage{
			SectionKey:                sec.Key,
			MappedCriteria:            []string{},
			CriteriaTouched:           []string{},
			MissingHighWeightCriteria: []string{},
		}
		for _, cc := range criteria {
			if !containsString(cc.SuggestedSections, sec.Key) {
				continue
			}
			sc.MappedCriteria = append(sc.MappedCriteria, cc.CriterionID)
			if containsString(cc.CoveredSections, sec.Key) {
				sc.CriteriaTouched = append(sc.CriteriaTouched, cc.CriterionID)
			} else if cc.Weight >= sectionWeightFloor {
				sc.MissingHighWeightCriteria = append(sc.MissingHighWeightCriteria, cc.CriterionID)
			}
		}
		if len(sc.MappedCriteria) == 0 {
			sc.CoverageScore = 100
		} else {
			sc.CoverageScore = round2(float64(len(sc.CriteriaTouched)) / float64(len(sc.MappedCriteria)) * 100)
			sc.NeedsReview = len(sc.MissingHighWeightCriteria) > 0 || sc.CoverageScore < reviewScoreFloor
		}
		out = append(out, sc)
	}
	return out
}

// overallHealth is the weight-weighted mean of criterion coverage scores.
// With no criteria there is nothing to fail, so health is 100.
func overallHealth(criteria []CriterionCoverage) float64 {
	if len(criteria) == 0 {
		return 100
	}
	weightSum, weighted := 0.0, 0.0
	for _, cc := range criteria {
		weightSum += cc.Weight
		weighted += cc.Weight * cc.CoverageScore
	}
	if weightSum == 0 {
		return 100
	}
	return round2(weighted / weightSum)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
