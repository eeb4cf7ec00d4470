package analysis

import "time"

// Recommendation states produced by the readiness scorer.
const (
	RecommendationGo          = "go"
	RecommendationConditional = "conditional"
	RecommendationNoGo        = "no_go"
)

// Risk severities, ordered from worst to mildest.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Confidence tiers for outcome insights and tuning suggestions.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Impact tiers for tuning suggestions.
const (
	ImpactSignificant = "significant"
	ImpactModerate    = "moderate"
	ImpactMinor       = "minor"
)

// Readiness score components.
const (
	ComponentFoundational = "foundational"
	ComponentStrategy     = "strategy"
	ComponentCoverage     = "coverage"
	ComponentProof        = "proof"
	ComponentPersona      = "persona"
)

// Terminal bid outcomes. An empty outcome means the bid is still pending.
const (
	OutcomeWon  = "won"
	OutcomeLost = "lost"
)

// CriterionCoverage is the computed coverage of one evaluation criterion.
type CriterionCoverage struct {
	CriterionID        string   `json:"criterionId"`
	Label              string   `json:"label"`
	Weight             float64  `json:"weight"`
	SuggestedSections  []string `json:"suggestedSections"`
	CoveredSections    []string `json:"coveredSections"`
	CoverageScore      float64  `json:"coverageScore"`
	ProofCoverageScore float64  `json:"proofCoverageScore"`
	WeightedScore      float64  `json:"weightedScore"`
	IsRisk             bool     `json:"isRisk"`
	ExpectedPersona    string   `json:"expectedPersona,omitempty"`
	PersonaMismatch    bool     `json:"personaMismatch"`
	PersonaSeverity    string   `json:"personaSeverity,omitempty"`
}

// SectionCoverage is the computed coverage of one drafted section.
type SectionCoverage struct {
	SectionKey                string   `json:"sectionKey"`
	MappedCriteria            []string `json:"mappedCriteria"`
	CriteriaTouched           []string `json:"criteriaTouched"`
	MissingHighWeightCriteria []string `json:"missingHighWeightCriteria"`
	CoverageScore             float64  `json:"coverageScore"`
	NeedsReview               bool     `json:"needsReview"`
}

// RubricCoverageResult is the full output of the coverage analyzer.
// Criteria are sorted risk-first, then by weighted gap, preserving
// definition order on ties.
type RubricCoverageResult struct {
	Criteria             []CriterionCoverage `json:"criteria"`
	Sections             []SectionCoverage   `json:"sections"`
	OverallHealth        float64             `json:"overallHealth"`
	PersonaMismatchCount int                 `json:"personaMismatchCount"`
	Notes                []string            `json:"notes,omitempty"`
	GeneratedAt          time.Time           `json:"generatedAt"`
}

// ComponentScores is the per-component breakdown behind a readiness score.
type ComponentScores struct {
	Foundational float64 `json:"foundational"`
	Strategy     float64 `json:"strategy"`
	Coverage     float64 `json:"coverage"`
	Proof        float64 `json:"proof"`
	Persona      float64 `json:"persona"`
}

// Risk is one identified readiness risk with a suggested mitigation.
type Risk struct {
	Component   string `json:"component"`
	CriterionID string `json:"criterionId,omitempty"`
	Severity    string `json:"severity"`
	Summary     string `json:"summary"`
	Mitigation  string `json:"mitigation"`
}

// Fix is one prioritized improvement with an estimated score lift.
type Fix struct {
	Area     string `json:"area"`
	Priority int    `json:"priority"`
	Lift     int    `json:"lift"`
	Action   string `json:"action"`
}

// BidReadiness is one complete readiness assessment.
type BidReadiness struct {
	Score                int             `json:"score"`
	Recommendation       string          `json:"recommendation"`
	Reasons              []string        `json:"reasons"`
	Conditions           []string        `json:"conditions,omitempty"`
	Risks                []Risk          `json:"risks"`
	Fixes                []Fix           `json:"fixes"`
	Breakdown            ComponentScores `json:"breakdown"`
	MissingComponents    []string        `json:"missingComponents,omitempty"`
	IsReliableAssessment bool            `json:"isReliableAssessment"`
	ConfigVersion        string          `json:"configVersion"`
	GeneratedAt          time.Time       `json:"generatedAt"`
}

// HasCriticalRisk reports whether any identified risk is critical.
func (b *BidReadiness) HasCriticalRisk() bool {
	for _, r := range b.Risks {
		if r.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// OutcomeRecord is one historical bid: the readiness snapshot captured at
// submission time plus what actually happened. A record is complete only
// when both the snapshot and a terminal outcome are present.
type OutcomeRecord struct {
	ID                string        `json:"id"`
	BidID             string        `json:"bidId"`
	Snapshot          *BidReadiness `json:"snapshot,omitempty"`
	Outcome           string        `json:"outcome,omitempty"`
	LossReasons       []string      `json:"lossReasons,omitempty"`
	RisksAcknowledged bool          `json:"risksAcknowledged"`
	SubmittedAt       time.Time     `json:"submittedAt"`
	DecidedAt         *time.Time    `json:"decidedAt,omitempty"`
}

// IsComplete reports whether the record can participate in outcome analysis.
func (r *OutcomeRecord) IsComplete() bool {
	return r.Snapshot != nil && (r.Outcome == OutcomeWon || r.Outcome == OutcomeLost)
}

// OutcomeInsight is one correlation finding from the outcome analyzer.
type OutcomeInsight struct {
	Signal         string  `json:"signal"`
	WinRateDelta   float64 `json:"winRateDelta"`
	SampleSize     int     `json:"sampleSize"`
	Confidence     string  `json:"confidence"`
	Recommendation string  `json:"recommendation,omitempty"`
}

// LossReasonStat aggregates one loss-reason tag across lost bids.
type LossReasonStat struct {
	Tag          string  `json:"tag"`
	Count        int     `json:"count"`
	Percentage   float64 `json:"percentage"`
	AvgReadiness float64 `json:"avgReadiness"`
}

// OutcomeAnalysisResult is the full output of one outcome-analysis pass.
type OutcomeAnalysisResult struct {
	TotalRecords              int              `json:"totalRecords"`
	CompleteRecords           int              `json:"completeRecords"`
	BaselineWinRate           float64          `json:"baselineWinRate"`
	ScoreInsights             []OutcomeInsight `json:"scoreInsights"`
	RecommendationInsights    []OutcomeInsight `json:"recommendationInsights"`
	RiskInsights              []OutcomeInsight `json:"riskInsights"`
	LossReasons               []LossReasonStat `json:"lossReasons"`
	IsStatisticallyMeaningful bool             `json:"isStatisticallyMeaningful"`
	Message                   string           `json:"message,omitempty"`
	GeneratedAt               time.Time        `json:"generatedAt"`
}

// ConfigChange is one leaf-level difference between two configurations.
type ConfigChange struct {
	Path        string      `json:"path"`
	From        interface{} `json:"from"`
	To          interface{} `json:"to"`
	Description string      `json:"description,omitempty"`
}

// TuningSuggestion is one advisory configuration change. Suggestions are
// never applied by this package; applying one is a separate human-gated
// action.
type TuningSuggestion struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Changes    []ConfigChange `json:"changes"`
	Risk       string         `json:"risk"`
	Impact     string         `json:"impact"`
	Confidence string         `json:"confidence"`
	Rationale  string         `json:"rationale"`
}

// TuningResult wraps the advisor's suggestions for one analysis run.
type TuningResult struct {
	Suggestions []TuningSuggestion `json:"suggestions"`
	Message     string             `json:"message,omitempty"`
	GeneratedAt time.Time          `json:"generatedAt"`
}
