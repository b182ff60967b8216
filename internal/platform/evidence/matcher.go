// Package evidence implements the keyword/evidence matcher shared by every
// risk instrument: it finds which keywords of a category occur in the merged
// care-plan and log corpus and returns the source lines that prove it.
package evidence

import (
	"strings"

	"github.com/ehr/careassess/internal/platform/keywords"
)

// DefaultMaxItems caps the evidence lines kept per match.
const DefaultMaxItems = 3

// Source identifies which document a corpus line came from.
type Source string

const (
	SourceCarePlan Source = "care_plan"
	SourceLog      Source = "log"
)

// Line is one line of the merged corpus.
type Line struct {
	Raw         string
	Normalized  string
	Source      Source
	DateContext string
}

// Corpus is the merged, normalised text an assessment run matches against.
// It is built once per run and only read afterwards.
type Corpus struct {
	lines    []Line
	planNorm string
}

// NewCorpus merges care plan and log text. Dates seen in either document are
// carried forward as the context of following lines within that document.
func NewCorpus(carePlan, log string) *Corpus {
	c := &Corpus{}
	c.addDocument(carePlan, SourceCarePlan)
	c.addDocument(log, SourceLog)

	c.planNorm = keywords.Normalize(carePlan)
	return c
}

func (c *Corpus) addDocument(text string, src Source) {
	current := ""
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if tok, _, _, ok := FindDate(raw); ok {
			current = tok
		}
		c.lines = append(c.lines, Line{
			Raw:         raw,
			Normalized:  keywords.Normalize(raw),
			Source:      src,
			DateContext: current,
		})
	}
}

// Lines returns the non-blank corpus lines in order.
func (c *Corpus) Lines() []Line { return c.lines }

// CarePlanNormalized returns only the care-plan part, normalised.
func (c *Corpus) CarePlanNormalized() string { return c.planNorm }

// Item is one evidence line: which keywords of a category it contains, the
// raw line, and the date it can be attributed to (nil when unknown).
type Item struct {
	Category        string   `json:"category"`
	MatchedKeywords []string `json:"matched_keywords"`
	SourceLine      string   `json:"source_line"`
	Source          Source   `json:"source"`
	Timestamp       *string  `json:"timestamp"`
}

// Match is the matcher's answer for one category.
type Match struct {
	Category     string   `json:"category"`
	Matched      []string `json:"matched"`
	EvidenceLine *string  `json:"evidence_line"`
	Items        []Item   `json:"items,omitempty"`
}

// Found reports whether any keyword matched.
func (m Match) Found() bool { return len(m.Matched) > 0 }

// Count is the number of distinct keywords that matched.
func (m Match) Count() int { return len(m.Matched) }

// Line returns the first evidence line or "" when nothing matched.
func (m Match) Line() string {
	if m.EvidenceLine == nil {
		return ""
	}
	return *m.EvidenceLine
}

// Matcher runs deterministic keyword matching over a corpus.
type Matcher struct {
	maxItems int
}

// NewMatcher returns a matcher keeping at most maxItems evidence lines per
// match. Non-positive values fall back to DefaultMaxItems.
func NewMatcher(maxItems int) *Matcher {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Matcher{maxItems: maxItems}
}

// Match finds which terms occur in the corpus. Matching is line-local, so
// every matched keyword has at least one evidence line. Matched keywords are
// reported in term order; evidence lines in corpus order.
func (m *Matcher) Match(category string, corpus *Corpus, terms []keywords.Term) Match {
	res := Match{Category: category, Matched: []string{}}
	if corpus == nil || len(terms) == 0 {
		return res
	}

	seen := make([]bool, len(terms))
	for _, line := range corpus.lines {
		var onLine []string
		for i, term := range terms {
			if term.Match(line.Normalized) {
				onLine = append(onLine, term.Label())
				seen[i] = true
			}
		}
		if len(onLine) == 0 {
			continue
		}
		if res.EvidenceLine == nil {
			raw := line.Raw
			res.EvidenceLine = &raw
		}
		if len(res.Items) < m.maxItems {
			res.Items = append(res.Items, Item{
				Category:        category,
				MatchedKeywords: onLine,
				SourceLine:      line.Raw,
				Source:          line.Source,
				Timestamp:       timestampFor(line),
			})
		}
	}
	for i, term := range terms {
		if seen[i] {
			res.Matched = append(res.Matched, term.Label())
		}
	}
	return res
}

// MatchAll reports whether every one of the given categories matched; the
// returned matches are in argument order.
func (m *Matcher) MatchAll(corpus *Corpus, table *keywords.Table, categories ...string) (bool, []Match) {
	all := true
	out := make([]Match, 0, len(categories))
	for _, name := range categories {
		res := m.Match(name, corpus, table.Category(name).Terms())
		if !res.Found() {
			all = false
		}
		out = append(out, res)
	}
	return all, out
}

func timestampFor(line Line) *string {
	if tok, _, _, ok := FindDate(line.Raw); ok {
		return &tok
	}
	if line.DateContext != "" {
		ctx := line.DateContext
		return &ctx
	}
	return nil
}

// CountOccurrences sums every occurrence of every term in a normalised text.
func CountOccurrences(normalized string, terms []keywords.Term) int {
	total := 0
	for _, t := range terms {
		total += t.Count(normalized)
	}
	return total
}
