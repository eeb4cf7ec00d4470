package htmltext

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bidforge/readiness/internal/types"
)

// blockSelector lists the elements that end a line when flattening. Inline
// markup (strong, em, a, span) collapses into the surrounding text.
const blockSelector = "p, div, li, h1, h2, h3, h4, h5, h6, td, th, blockquote, pre, tr"

// Flatten reduces rich-text section content to plain text: tags stripped,
// block boundaries become newlines, whitespace collapsed. Plain-text input
// passes through with only whitespace normalization, so callers can flatten
// unconditionally.
func Flatten(raw string) string {
	if !looksLikeHTML(raw) {
		return collapse(raw)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return collapse(raw)
	}

	doc.Find("script, style, head, noscript").Remove()
	doc.Find("br").AfterHtml("\n")
	doc.Find(blockSelector).AfterHtml("\n")

	return collapse(doc.Text())
}

// FlattenSections returns a copy of sections with every content field
// flattened. The inputs are never mutated; coverage analysis runs on the
// returned slice.
func FlattenSections(sections []types.Section) []types.Section {
	if len(sections) == 0 {
		return sections
	}

	out := make([]types.Section, len(sections))
	for i, s := range sections {
		s.Content = Flatten(s.Content)
		out[i] = s
	}
	return out
}

// WordCount counts whitespace-separated words in flattened content. Used for
// per-section reporting, not for scoring.
func WordCount(raw string) int {
	return len(strings.Fields(Flatten(raw)))
}

func looksLikeHTML(raw string) bool {
	open := strings.IndexByte(raw, '<')
	return open >= 0 && strings.IndexByte(raw[open:], '>') > 0
}

// collapse normalizes whitespace: runs of spaces fold to one, blank lines
// drop, leading and trailing space trims away.
func collapse(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		kept = append(kept, strings.Join(fields, " "))
	}
	return strings.Join(kept, "\n")
}
