// Package signals extracts structured daily signals (bowel counts, fluid
// intake, food intake, incidents) from free-text care-home logs.
package signals

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ehr/careassess/internal/platform/evidence"
	"github.com/ehr/careassess/internal/platform/keywords"
)

var (
	// Numbers may carry thousands separators ("1,500").
	integerPattern  = regexp.MustCompile(`\d{1,3}(?:,\d{3})+|\d+`)
	amountPattern   = regexp.MustCompile(`(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)\s*(ml|毫升|liters?|litres?|l\b|升)?`)
	percentPattern  = regexp.MustCompile(`(\d+)\s*(?:%|percent)`)
	fractionPattern = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)
)

// Extractor scans log text line by line. It holds only the read-only keyword
// table and may be shared.
type Extractor struct {
	table *keywords.Table
}

// NewExtractor returns an extractor reading keywords and validity ranges from
// table.
func NewExtractor(table *keywords.Table) *Extractor {
	return &Extractor{table: table}
}

// Extract pulls signals out of log text. Lines before the first recognised
// date are ignored; each later line may yield at most one signal per
// category.
func (e *Extractor) Extract(text string) StructuredSignals {
	out := StructuredSignals{
		BowelMovements:      []BowelMovement{},
		WaterIntake:         []WaterIntake{},
		FoodIntake:          []FoodIntake{},
		Incidents:           []Incident{},
		Dates:               []string{},
		KeywordTableVersion: e.table.Version,
	}

	bowel := e.table.Category("bowel")
	water := e.table.Category("water")
	food := e.table.Category("food")
	incident := e.table.Category("incident")

	seen := map[string]bool{}
	current := ""
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if tok, _, _, ok := evidence.FindDate(line); ok {
			current = tok
			if !seen[tok] {
				seen[tok] = true
				out.Dates = append(out.Dates, tok)
			}
		}
		if current == "" {
			continue
		}

		norm := keywords.Normalize(line)
		body := evidence.StripTimes(evidence.StripDates(norm))

		if keywords.AnyMatch(bowel.Terms(), norm) {
			if n, ok := firstBowelCount(body, bowel); ok {
				out.BowelMovements = append(out.BowelMovements, BowelMovement{Date: current, Count: n})
			}
		}
		if keywords.AnyMatch(water.Terms(), norm) {
			if ml, ok := firstWaterAmount(body, water); ok {
				out.WaterIntake = append(out.WaterIntake, WaterIntake{Date: current, AmountML: ml})
			}
		}
		if keywords.AnyMatch(food.Terms(), norm) {
			if pct, ok := firstFoodPercentage(body, food); ok {
				out.FoodIntake = append(out.FoodIntake, FoodIntake{Date: current, Percentage: pct})
			}
		}
		if keywords.AnyMatch(incident.Terms(), norm) {
			sev := SeverityMedium
			if keywords.AnyMatch(incident.HighTerms(), norm) {
				sev = SeverityHigh
			}
			out.Incidents = append(out.Incidents, Incident{Date: current, Description: line, Severity: sev})
		}
	}
	return out
}

func firstBowelCount(body string, c *keywords.Category) (int, bool) {
	for _, tok := range integerPattern.FindAllString(body, -1) {
		n, err := strconv.Atoi(strings.ReplaceAll(tok, ",", ""))
		if err != nil {
			continue
		}
		if c.InRange(float64(n)) {
			return n, true
		}
	}
	return 0, false
}

func firstWaterAmount(body string, c *keywords.Category) (int, bool) {
	for _, m := range amountPattern.FindAllStringSubmatch(body, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		switch m[2] {
		case "l", "liter", "liters", "litre", "litres", "升":
			v *= 1000
		}
		ml := int(math.Round(v))
		if c.InRange(float64(ml)) {
			return ml, true
		}
	}
	return 0, false
}

func firstFoodPercentage(body string, c *keywords.Category) (int, bool) {
	for _, m := range percentPattern.FindAllStringSubmatch(body, -1) {
		pct, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if c.InRange(float64(pct)) {
			return pct, true
		}
	}
	for _, m := range fractionPattern.FindAllStringSubmatch(body, -1) {
		num, err1 := strconv.Atoi(m[1])
		den, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil || den == 0 {
			continue
		}
		pct := num * 100 / den
		if c.InRange(float64(pct)) {
			return pct, true
		}
	}
	return 0, false
}
