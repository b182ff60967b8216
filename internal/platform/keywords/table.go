// Package keywords holds the shared, versioned keyword and validity table used
// by the daily-log signal extractor and by every risk instrument, so both read
// the same lists and ranges.
package keywords

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

//go:embed default_table.yaml
var defaultTableYAML []byte

const regexPrefix = "re:"

// RequiredCategories lists every category the extractor and the instruments
// read. A table missing any of them is rejected by Validate.
var RequiredCategories = []string{
	"bowel", "water", "food", "incident",
	"falls_history", "medication_indicators", "falls_diagnosis", "balance", "standing_difficulty",
	"ppu_mobility", "ppu_continence", "poor_nutrition",
	"must_fasting", "must_acute_illness",
	"waterlow_skin", "waterlow_incontinence", "waterlow_double_incontinence",
	"waterlow_immobile", "waterlow_assisted", "waterlow_nutrition",
	"abbey_vocalisation", "abbey_facial", "abbey_body_language", "abbey_behaviour", "abbey_pain",
	"cornell_mood", "cornell_behaviour", "cornell_physical", "cornell_sleep",
	"handling_cannot_stand", "handling_assisted_stand", "handling_wheelchair", "handling_walking_aid",
	"peep_immobile", "peep_cognitive", "peep_mobility_aid",
	"care_focus",
}

// Category is one row of the table: a keyword set plus an optional validity
// range for numeric signals.
type Category struct {
	Name         string   `yaml:"-" json:"name"`
	Description  string   `yaml:"description,omitempty" json:"description,omitempty"`
	Keywords     []string `yaml:"keywords" json:"keywords"`
	HighKeywords []string `yaml:"high_keywords,omitempty" json:"high_keywords,omitempty"`
	Min          *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max          *float64 `yaml:"max,omitempty" json:"max,omitempty"`

	terms     []Term
	highTerms []Term
}

// Terms returns the compiled keyword terms in declaration order.
func (c *Category) Terms() []Term {
	if c == nil {
		return nil
	}
	return c.terms
}

// HighTerms returns the compiled high-severity terms.
func (c *Category) HighTerms() []Term {
	if c == nil {
		return nil
	}
	return c.highTerms
}

// InRange reports whether v lies within the category's validity range.
// Open bounds are unbounded.
func (c *Category) InRange(v float64) bool {
	if c == nil {
		return false
	}
	if c.Min != nil && v < *c.Min {
		return false
	}
	if c.Max != nil && v > *c.Max {
		return false
	}
	return true
}

// Alerts holds the daily-average thresholds used by the signal summary.
type Alerts struct {
	BowelLow   float64 `yaml:"bowel_low" json:"bowel_low"`
	BowelHigh  float64 `yaml:"bowel_high" json:"bowel_high"`
	WaterLow   float64 `yaml:"water_low" json:"water_low"`
	WaterHigh  float64 `yaml:"water_high" json:"water_high"`
	FoodLow    float64 `yaml:"food_low" json:"food_low"`
	FoodNormal float64 `yaml:"food_normal" json:"food_normal"`
}

// Stats holds the averaging policy used by the signal summary.
type Stats struct {
	IgnoreZeroValues bool           `yaml:"ignore_zero_values" json:"ignore_zero_values"`
	MinDays          int            `yaml:"min_days" json:"min_days"`
	Decimals         map[string]int `yaml:"decimals" json:"decimals"`
}

// Table is immutable once parsed and safe to share between goroutines.
type Table struct {
	Version    string               `yaml:"version" json:"version"`
	Categories map[string]*Category `yaml:"categories" json:"categories"`
	Alerts     Alerts               `yaml:"alerts" json:"alerts"`
	Stats      Stats                `yaml:"stats" json:"stats"`
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the embedded table. It panics if the embedded YAML is
// invalid, which the package tests guard against.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Parse(defaultTableYAML)
		if err != nil {
			panic(fmt.Sprintf("keywords: embedded table: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// Load reads a table from path. An empty path returns the embedded table.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyword table: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("keyword table %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes, compiles and validates a YAML table.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := t.compile(); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Table) compile() error {
	var errs error
	for name, c := range t.Categories {
		if c == nil {
			continue
		}
		c.Name = name
		terms, err := compileTerms(name, c.Keywords)
		errs = multierr.Append(errs, err)
		c.terms = terms
		high, err := compileTerms(name, c.HighKeywords)
		errs = multierr.Append(errs, err)
		c.highTerms = high
	}
	return errs
}

// Validate reports every structural problem in the table at once.
func (t *Table) Validate() error {
	var errs error
	if strings.TrimSpace(t.Version) == "" {
		errs = multierr.Append(errs, fmt.Errorf("version is required"))
	}
	for _, name := range RequiredCategories {
		c, ok := t.Categories[name]
		if !ok || c == nil {
			errs = multierr.Append(errs, fmt.Errorf("category %q is required", name))
			continue
		}
		if len(c.Keywords) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("category %q has no keywords", name))
		}
	}
	for _, name := range t.CategoryNames() {
		c := t.Categories[name]
		if c == nil {
			errs = multierr.Append(errs, fmt.Errorf("category %q is empty", name))
			continue
		}
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			errs = multierr.Append(errs, fmt.Errorf("category %q: min %v exceeds max %v", name, *c.Min, *c.Max))
		}
	}
	if t.Stats.MinDays < 0 {
		errs = multierr.Append(errs, fmt.Errorf("stats.min_days must not be negative"))
	}
	return errs
}

// Category returns the named category, or nil if the table has none.
func (t *Table) Category(name string) *Category {
	if t == nil {
		return nil
	}
	return t.Categories[name]
}

// CategoryNames returns the category names sorted alphabetically.
func (t *Table) CategoryNames() []string {
	names := make([]string, 0, len(t.Categories))
	for name := range t.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Term is a single compiled keyword: a normalised substring, or a regular
// expression when the source keyword carried the "re:" prefix.
type Term struct {
	Raw    string
	label  string
	needle string
	re     *regexp.Regexp
}

func compileTerms(category string, raw []string) ([]Term, error) {
	var errs error
	terms := make([]Term, 0, len(raw))
	for _, kw := range raw {
		term, err := NewTerm(kw)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("category %q: %w", category, err))
			continue
		}
		terms = append(terms, term)
	}
	return terms, errs
}

// NewTerm compiles one keyword.
func NewTerm(keyword string) (Term, error) {
	if strings.HasPrefix(keyword, regexPrefix) {
		pattern := strings.TrimPrefix(keyword, regexPrefix)
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return Term{}, fmt.Errorf("keyword %q: %w", keyword, err)
		}
		return Term{Raw: keyword, label: patternLabel(pattern), re: re}, nil
	}
	needle := Normalize(keyword)
	if needle == "" {
		return Term{}, fmt.Errorf("keyword %q is blank", keyword)
	}
	return Term{Raw: keyword, label: keyword, needle: needle}, nil
}

// patternLabeler rewrites the regex syntax used in keyword tables into text a
// care manager can read: anchors vanish, whitespace classes become a space and
// digit classes become "#".
var patternLabeler = strings.NewReplacer(
	`\b`, "", "^", "", "$", "",
	`\s*`, " ", `\s+`, " ", `\s`, " ",
	`\d+`, "#", `\d`, "#",
	"?", "", "(", "", ")", "",
)

func patternLabel(pattern string) string {
	label := strings.Join(strings.Fields(patternLabeler.Replace(pattern)), " ")
	if label == "" {
		return pattern
	}
	return label
}

// Label is the human-readable form of the term used in evidence strings.
func (t Term) Label() string {
	if t.label == "" {
		return t.Raw
	}
	return t.label
}

// Match reports whether the term occurs in an already normalised string.
func (t Term) Match(normalized string) bool {
	if t.re != nil {
		return t.re.MatchString(normalized)
	}
	return strings.Contains(normalized, t.needle)
}

// Count returns the number of non-overlapping occurrences of the term in an
// already normalised string.
func (t Term) Count(normalized string) int {
	if t.re != nil {
		return len(t.re.FindAllStringIndex(normalized, -1))
	}
	return strings.Count(normalized, t.needle)
}

// AnyMatch reports whether any term occurs in the normalised string.
func AnyMatch(terms []Term, normalized string) bool {
	for _, t := range terms {
		if t.Match(normalized) {
			return true
		}
	}
	return false
}
