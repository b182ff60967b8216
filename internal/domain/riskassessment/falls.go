package riskassessment

import (
	"fmt"
	"strings"

	"github.com/ehr/careassess/internal/platform/evidence"
)

// medicationThreshold is the prescribed-medication count that scores a falls
// point.
const medicationThreshold = 4

// FallsScreening scores six falls risk factors, one point each.
type FallsScreening struct{ definition }

func NewFallsScreening() FallsScreening {
	return FallsScreening{definition{
		key:         KeyFallsScreening,
		toolName:    "Falls Screening",
		maxScore:    intPtr(6),
		reviewWeeks: 1,
		bands: bandTable{
			{3, Band{"High Risk", []string{
				"Implement comprehensive fall prevention measures",
				"Consider bed/chair alarms if appropriate",
				"Review medication for fall risk side effects",
				"Increase supervision during mobility",
				"Physiotherapy assessment for balance and strength",
			}}},
			{2, Band{"Medium Risk", []string{
				"Implement standard fall prevention measures",
				"Review medication regime",
				"Ensure clear walkways and good lighting",
				"Monitor during high-risk activities",
			}}},
			{0, Band{"Low Risk", []string{
				"Continue routine fall prevention measures",
				"Maintain awareness of fall risk factors",
			}}},
		},
	}}
}

func (f FallsScreening) Score(s *Subject) (InstrumentResult, error) {
	b := f.newResult(s)
	one := ScoreRange{0, 1}

	b.keyword("falls_history", "History of falls", one, s.match("falls_history"), 1,
		"Fall history identified in records",
		"Confirm whether the resident has fallen in the past 12 months")

	meds := countMedications(s)
	switch {
	case meds >= medicationThreshold:
		b.calculated("medications", "Four or more medications", one, 1, ConfidenceMedium,
			fmt.Sprintf("%d medications indicated in care plan (≥%d)", meds, medicationThreshold))
	case meds > 0:
		b.calculated("medications", "Four or more medications", one, 0, ConfidenceMedium,
			fmt.Sprintf("%d medication(s) indicated in care plan (<%d)", meds, medicationThreshold))
	default:
		b.unknown("medications", "Four or more medications", one,
			"Confirm the number of prescribed medications (none identified in care plan)")
	}

	diag := s.match("falls_diagnosis")
	b.keyword("diagnosis", "Dementia, stroke or Parkinson's diagnosis", one, diag, 1,
		"Diagnosed condition: "+titleFirst(diag),
		"Confirm diagnoses of dementia, stroke or Parkinson's disease")

	b.keyword("balance", "Balance problems", one, s.match("balance"), 1,
		"Balance problems identified",
		"Confirm whether the resident has balance problems")

	b.keyword("standing", "Difficulty standing", one, s.match("standing_difficulty"), 1,
		"Standing difficulty identified",
		"Confirm whether the resident has difficulty rising from a chair")

	b.managerOnly("postural_hypotension", "Postural hypotension", one,
		"Postural hypotension requires a lying and standing blood pressure check")

	return b.finish(), nil
}

// countMedications estimates prescribed medications from care-plan indicator
// terms. Each medication usually carries two indicators (name and dose), so
// the raw count is halved and capped.
func countMedications(s *Subject) int {
	n := evidence.CountOccurrences(s.Corpus.CarePlanNormalized(), s.terms("medication_indicators"))
	return min(n/2, 10)
}

func titleFirst(m evidence.Match) string {
	if !m.Found() {
		return ""
	}
	kw := m.Matched[0]
	return strings.ToUpper(kw[:1]) + kw[1:]
}
