package types

// Evaluator personas used across persona settings and classification.
const (
	PersonaProcurement = "procurement"
	PersonaTechnical   = "technical"
	PersonaExecutive   = "executive"
)

// Section lifecycle statuses as authored upstream.
const (
	SectionStatusEmpty    = "empty"
	SectionStatusDrafted  = "drafted"
	SectionStatusReviewed = "reviewed"
	SectionStatusApproved = "approved"
)

// EvaluationCriterion is one weighted dimension an evaluator will score
// the proposal against. Weights are normalized to [0,1] upstream but are
// not required to sum to 1 across criteria.
type EvaluationCriterion struct {
	ID                string   `json:"id"`
	Label             string   `json:"label"`
	Weight            float64  `json:"weight"`
	Guidance          string   `json:"guidance,omitempty"`
	SuggestedSections []string `json:"suggestedSections,omitempty"`
}

// ProofItem is a reusable proof point (case study, reference, accreditation)
// from the bid's proof plan. Priority runs 1 (strongest) to 5.
type ProofItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Priority int    `json:"priority"`
}

// WinStrategy bundles the criteria, win themes and proof plan authored for
// one bid.
type WinStrategy struct {
	ID        string                `json:"id"`
	BidID     string                `json:"bidId,omitempty"`
	Criteria  []EvaluationCriterion `json:"criteria"`
	WinThemes []string              `json:"winThemes,omitempty"`
	ProofPlan []ProofItem           `json:"proofPlan,omitempty"`
}

// Section is a drafted proposal part, immutable from this subsystem's view.
// AppliedThemes and AppliedProof record what the generator actually used, so
// coverage can be judged from evidence rather than intent.
type Section struct {
	Key            string   `json:"key"`
	Title          string   `json:"title,omitempty"`
	Status         string   `json:"status"`
	Content        string   `json:"content,omitempty"`
	HasWinStrategy bool     `json:"hasWinStrategy"`
	AppliedThemes  []string `json:"appliedThemes,omitempty"`
	AppliedProof   []string `json:"appliedProof,omitempty"`
}

// SectionPersona describes who a section is framed for.
type SectionPersona struct {
	Primary   string   `json:"primary"`
	Secondary []string `json:"secondary,omitempty"`
}

// PersonaSettings carries the upstream persona assignments. When disabled,
// persona alignment is scored neutrally.
type PersonaSettings struct {
	Enabled         bool                      `json:"enabled"`
	SectionPersonas map[string]SectionPersona `json:"sectionPersonas,omitempty"`
}

// Persona returns the persona assigned to a section key, if any.
func (p *PersonaSettings) Persona(sectionKey string) (SectionPersona, bool) {
	if p == nil || p.SectionPersonas == nil {
		return SectionPersona{}, false
	}
	sp, ok := p.SectionPersonas[sectionKey]
	return sp, ok
}

// HasContent reports whether the section holds any drafted material.
func (s *Section) HasContent() bool {
	return s.Content != "" && s.Status != SectionStatusEmpty
}
