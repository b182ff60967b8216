package riskassessment

import (
	"fmt"
	"strings"
	"time"

	"github.com/ehr/careassess/internal/platform/evidence"
	"github.com/ehr/careassess/internal/platform/keywords"
)

// Instrument is one clinical scoring tool. Implementations are stateless and
// safe for concurrent use.
type Instrument interface {
	Key() string
	ToolName() string
	// MaxScore returns nil when the maximum is variable.
	MaxScore() *int
	// Classify maps a score to the instrument's risk band.
	Classify(score int) Band
	Score(s *Subject) (InstrumentResult, error)
}

// Band is a risk level with the recommendations attached to it.
type Band struct {
	Level           string
	Recommendations []string
}

type threshold struct {
	min  int
	band Band
}

// bandTable lists thresholds from the highest min down; the last entry is the
// fallback.
type bandTable []threshold

func (t bandTable) classify(score int) Band {
	pick := t[len(t)-1].band
	for _, th := range t {
		if score >= th.min {
			pick = th.band
			break
		}
	}
	return Band{Level: pick.Level, Recommendations: append([]string(nil), pick.Recommendations...)}
}

type scoreMode int

const (
	sumItems scoreMode = iota
	maxItem
)

// definition carries the fixed metadata shared by every instrument.
type definition struct {
	key         string
	toolName    string
	maxScore    *int
	reviewWeeks int
	mode        scoreMode
	bands       bandTable
}

func (d definition) Key() string      { return d.key }
func (d definition) ToolName() string { return d.toolName }

func (d definition) MaxScore() *int {
	if d.maxScore == nil {
		return nil
	}
	return intPtr(*d.maxScore)
}

func (d definition) Classify(score int) Band { return d.bands.classify(score) }

func (d definition) reviewDate(today time.Time) string {
	return today.AddDate(0, 0, 7*d.reviewWeeks).Format(DateLayout)
}

// Subject is the per-run state an instrument reads: the input, the merged
// corpus built once for all instruments, and the shared keyword table.
type Subject struct {
	Input
	Corpus *evidence.Corpus
	Today  time.Time

	table   *keywords.Table
	matcher *evidence.Matcher
}

// NewSubject builds the corpus for one run.
func NewSubject(in Input, table *keywords.Table, matcher *evidence.Matcher, today time.Time) *Subject {
	if matcher == nil {
		matcher = evidence.NewMatcher(evidence.DefaultMaxItems)
	}
	return &Subject{
		Input:   in,
		Corpus:  evidence.NewCorpus(in.CarePlanText, in.LogText),
		Today:   today,
		table:   table,
		matcher: matcher,
	}
}

func (s *Subject) match(category string) evidence.Match {
	return s.matcher.Match(category, s.Corpus, s.table.Category(category).Terms())
}

// matchAll folds the matches of several categories into one, found only when
// every category matched.
func (s *Subject) matchAll(categories ...string) (evidence.Match, bool) {
	ok, matches := s.matcher.MatchAll(s.Corpus, s.table, categories...)
	var out evidence.Match
	for i, m := range matches {
		if i == 0 {
			out = m
			continue
		}
		out = mergeMatches(out, m)
	}
	return out, ok
}

func (s *Subject) terms(category string) []keywords.Term {
	return s.table.Category(category).Terms()
}

// resultBuilder assembles an InstrumentResult item by item.
type resultBuilder struct {
	def definition
	res InstrumentResult
}

func (d definition) newResult(s *Subject) *resultBuilder {
	return &resultBuilder{def: d, res: InstrumentResult{
		Key:            d.key,
		ToolName:       d.toolName,
		MaxScore:       d.MaxScore(),
		Items:          []FormItem{},
		Evidence:       []string{},
		MissingData:    []string{},
		NextReviewDate: d.reviewDate(s.Today),
	}}
}

func (b *resultBuilder) add(it FormItem) {
	b.res.Items = append(b.res.Items, it)
	if it.DetectedValue != nil {
		b.res.Evidence = append(b.res.Evidence, it.Evidence)
	}
}

// keyword scores value when m found anything, otherwise leaves the item
// unknown with the given missing-data note.
func (b *resultBuilder) keyword(id, name string, rng ScoreRange, m evidence.Match, value int, finding, missing string) {
	if !m.Found() {
		b.unknown(id, name, rng, missing)
		return
	}
	b.add(FormItem{
		ID:            id,
		Name:          name,
		ScoreRange:    rng,
		DetectedValue: intPtr(value),
		Confidence:    keywordConfidence(m),
		Evidence:      describe(finding, m),
		Sources:       m.Items,
	})
}

// calculated records a value derived from numbers or metadata rather than
// keywords; note explains the calculation.
func (b *resultBuilder) calculated(id, name string, rng ScoreRange, value int, conf Confidence, note string) {
	b.add(FormItem{
		ID:            id,
		Name:          name,
		ScoreRange:    rng,
		DetectedValue: intPtr(value),
		Confidence:    conf,
		Evidence:      note,
	})
}

func (b *resultBuilder) unknown(id, name string, rng ScoreRange, missing string) {
	b.add(FormItem{
		ID:                   id,
		Name:                 name,
		ScoreRange:           rng,
		Confidence:           ConfidenceLow,
		Evidence:             "No supporting evidence found",
		RequiresManagerInput: true,
	})
	b.res.MissingData = append(b.res.MissingData, missing)
}

// managerOnly adds an item that text cannot establish.
func (b *resultBuilder) managerOnly(id, name string, rng ScoreRange, missing string) {
	b.add(FormItem{
		ID:                   id,
		Name:                 name,
		ScoreRange:           rng,
		Confidence:           ConfidenceLow,
		Evidence:             "Cannot be determined from records",
		RequiresManagerInput: true,
	})
	b.res.MissingData = append(b.res.MissingData, missing)
}

func (b *resultBuilder) confirm(note string) {
	b.res.MissingData = append(b.res.MissingData, note)
}

func (b *resultBuilder) finish() InstrumentResult {
	score, effMax := 0, 0
	for _, it := range b.res.Items {
		if it.DetectedValue == nil {
			continue
		}
		switch b.def.mode {
		case maxItem:
			score = max(score, *it.DetectedValue)
			effMax = max(effMax, it.ScoreRange.Max)
		default:
			score += *it.DetectedValue
			effMax += it.ScoreRange.Max
		}
	}
	band := b.def.Classify(score)
	b.res.Score = score
	b.res.EffectiveMaxScore = effMax
	b.res.RiskLevel = band.Level
	b.res.Recommendations = band.Recommendations
	return b.res
}

func keywordConfidence(m evidence.Match) Confidence {
	if m.Count() > 1 || len(m.Items) > 1 {
		return ConfidenceHigh
	}
	return ConfidenceMedium
}

// mergeMatches combines two matches that jointly support one item.
func mergeMatches(a, b evidence.Match) evidence.Match {
	out := evidence.Match{
		Category:     a.Category + "+" + b.Category,
		Matched:      append(append([]string{}, a.Matched...), b.Matched...),
		EvidenceLine: a.EvidenceLine,
		Items:        append(append([]evidence.Item{}, a.Items...), b.Items...),
	}
	if out.EvidenceLine == nil {
		out.EvidenceLine = b.EvidenceLine
	}
	return out
}

func describe(finding string, m evidence.Match) string {
	return fmt.Sprintf("%s (%s): \"%s\"", finding, strings.Join(m.Matched, ", "), m.Line())
}
