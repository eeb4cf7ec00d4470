package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordClassifier(t *testing.T) {
	classifier := NewKeywordClassifier([]ClassifierRule{
		{Category: "alpha", Keywords: []string{"first", "shared"}},
		{Category: "beta", Keywords: []string{"second", "shared"}},
	})

	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "single match",
			text:     "the FIRST thing",
			expected: []string{"alpha"},
		},
		{
			name:     "matches preserve rule order",
			text:     "second then first",
			expected: []string{"alpha", "beta"},
		},
		{
			name:     "shared keyword matches both once",
			text:     "shared shared shared",
			expected: []string{"alpha", "beta"},
		},
		{
			name:     "no match yields nil",
			text:     "nothing relevant here",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifier.Classify(tt.text))
		})
	}
}

func TestDefaultSectionClassifier(t *testing.T) {
	classifier := DefaultSectionClassifier()

	tests := []struct {
		name     string
		label    string
		expected []string
	}{
		{
			name:     "technical label maps to approach",
			label:    "Technical methodology and solution design",
			expected: []string{"approach"},
		},
		{
			name:     "commercial label maps to pricing",
			label:    "Price schedule and cost breakdown",
			expected: []string{"pricing"},
		},
		{
			name:     "label spanning taxonomies maps to both",
			label:    "Delivery timeline and team capability",
			expected: []string{"delivery", "team"},
		},
		{
			name:     "unmatched label yields nothing",
			label:    "Miscellaneous addendum",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifier.Classify(tt.label))
		})
	}
}

func TestDefaultPersonaClassifier(t *testing.T) {
	classifier := DefaultPersonaClassifier()

	tests := []struct {
		name     string
		label    string
		expected string
	}{
		{name: "contractual language reads as procurement", label: "Contract terms and commercial risk", expected: "procurement"},
		{name: "architecture language reads as technical", label: "Integration architecture", expected: "technical"},
		{name: "outcome language reads as executive", label: "Strategic vision and outcomes", expected: "executive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := classifier.Classify(tt.label)
			if assert.NotEmpty(t, matches) {
				assert.Equal(t, tt.expected, matches[0])
			}
		})
	}
}

func TestTextOverlaps(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected bool
	}{
		{
			name:     "shared meaningful token",
			a:        "proven delivery record",
			b:        "Delivery plan and milestones",
			expected: true,
		},
		{
			name:     "case insensitive",
			a:        "SECURITY first",
			b:        "security architecture",
			expected: true,
		},
		{
			name:     "short tokens ignored",
			a:        "top of the bid",
			b:        "the top tier",
			expected: false,
		},
		{
			name:     "stopwords ignored",
			a:        "working with your team",
			b:        "with your approval",
			expected: false,
		},
		{
			name:     "no shared tokens",
			a:        "carbon reduction",
			b:        "pricing schedule",
			expected: false,
		},
		{
			name:     "empty theme",
			a:        "",
			b:        "anything",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, textOverlaps(tt.a, tt.b))
		})
	}
}
