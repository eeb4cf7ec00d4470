package analysis

import "strings"

// Classifier maps free text onto categories of a fixed taxonomy. The
// coverage analyzer uses one instance to suggest sections for a criterion
// and another to infer the evaluator persona a criterion speaks to, so
// either taxonomy can evolve without touching scoring logic.
type Classifier interface {
	Classify(text string) []string
}

// ClassifierRule binds one category to the keywords that signal it.
type ClassifierRule struct {
	Category string
	Keywords []string
}

// KeywordClassifier matches lowercase keyword occurrences. Categories are
// returned in rule order, deduplicated, so downstream output stays stable.
type KeywordClassifier struct {
	rules []ClassifierRule
}

func NewKeywordClassifier(rules []ClassifierRule) *KeywordClassifier {
	return &KeywordClassifier{rules: rules}
}

func (c *KeywordClassifier) Classify(text string) []string {
	normalized := strings.ToLower(text)
	var matched []string
	seen := make(map[string]bool, len(c.rules))
	for _, rule := range c.rules {
		if seen[rule.Category] {
			continue
		}
		for _, kw := range rule.Keywords {
			if strings.Contains(normalized, kw) {
				matched = append(matched, rule.Category)
				seen[rule.Category] = true
				break
			}
		}
	}
	return matched
}

// FallbackSectionKey is suggested when no keyword rule matches a criterion.
const FallbackSectionKey = "approach"

var sectionRules = []ClassifierRule{
	{Category: "approach", Keywords: []string{"approach", "methodology", "solution", "technical", "design", "innovation"}},
	{Category: "delivery", Keywords: []string{"delivery", "implementation", "timeline", "mobilisation", "milestone", "transition"}},
	{Category: "team", Keywords: []string{"team", "staff", "personnel", "capability", "resource", "key people"}},
	{Category: "experience", Keywords: []string{"experience", "track record", "case stud", "reference", "past performance"}},
	{Category: "pricing", Keywords: []string{"price", "pricing", "cost", "commercial", "budget", "value for money"}},
	{Category: "compliance", Keywords: []string{"compliance", "regulatory", "security", "quality", "standard", "accreditation"}},
	{Category: "social-value", Keywords: []string{"social value", "sustainability", "environment", "community", "carbon"}},
	{Category: "executive-summary", Keywords: []string{"summary", "overview", "vision", "benefit"}},
}

var personaRules = []ClassifierRule{
	{Category: "procurement", Keywords: []string{"compliance", "price", "cost", "contract", "terms", "procurement", "commercial", "risk"}},
	{Category: "technical", Keywords: []string{"technical", "architecture", "integration", "security", "methodology", "implementation", "data", "infrastructure"}},
	{Category: "executive", Keywords: []string{"strategic", "vision", "value", "outcome", "partnership", "growth", "transformation", "benefit"}},
}

// DefaultSectionClassifier suggests proposal sections for a criterion label.
func DefaultSectionClassifier() *KeywordClassifier {
	return NewKeywordClassifier(sectionRules)
}

// DefaultPersonaClassifier infers the evaluator persona a criterion label
// speaks to. First match wins; rules are ordered most to least specific.
func DefaultPersonaClassifier() *KeywordClassifier {
	return NewKeywordClassifier(personaRules)
}

var overlapStopwords = map[string]bool{
	"with": true, "that": true, "this": true, "from": true,
	"your": true, "their": true, "will": true, "have": true,
	"been": true, "into": true, "across": true, "through": true,
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 4 && !overlapStopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

// textOverlaps reports whether two phrases share at least one meaningful
// token. Used to match applied win themes against criterion labels.
func textOverlaps(a, b string) bool {
	ta := tokenize(a)
	if len(ta) == 0 {
		return false
	}
	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	for _, t := range tokenize(b) {
		if set[t] {
			return true
		}
	}
	return false
}
