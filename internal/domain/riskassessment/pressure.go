package riskassessment

import (
	"fmt"
	"strings"
)

// PreliminaryPressureUlcer is a three item gate deciding whether a full
// Waterlow assessment is needed.
type PreliminaryPressureUlcer struct{ definition }

func NewPreliminaryPressureUlcer() PreliminaryPressureUlcer {
	return PreliminaryPressureUlcer{definition{
		key:         KeyPressureUlcerPPU,
		toolName:    "Preliminary Pressure Ulcer",
		maxScore:    intPtr(3),
		reviewWeeks: 2,
		bands: bandTable{
			{1, Band{"Requires Full Assessment", []string{
				"Conduct full Waterlow pressure ulcer risk assessment",
				"Inspect skin condition",
			}}},
			{0, Band{"Low Risk", []string{
				"Continue routine skin monitoring",
			}}},
		},
	}}
}

func (p PreliminaryPressureUlcer) Score(s *Subject) (InstrumentResult, error) {
	b := p.newResult(s)
	one := ScoreRange{0, 1}

	b.keyword("mobility", "Mobility assistance", one, s.match("ppu_mobility"), 1,
		"Mobility assistance required",
		"Confirm whether the resident needs help to move or reposition")
	b.keyword("continence", "Continence issues", one, s.match("ppu_continence"), 1,
		"Continence issues identified",
		"Confirm the resident's continence status")
	b.keyword("nutrition", "Nutritional concerns", one, s.match("poor_nutrition"), 1,
		"Nutritional concerns identified",
		"Confirm whether the resident has poor appetite or weight loss")

	return b.finish(), nil
}

// Waterlow is the full pressure ulcer assessment. Its maximum is variable.
type Waterlow struct{ definition }

func NewWaterlow() Waterlow {
	return Waterlow{definition{
		key:         KeyWaterlow,
		toolName:    "Waterlow Pressure Ulcer Assessment",
		reviewWeeks: 4,
		bands: bandTable{
			{20, Band{"Very High Risk", []string{
				"Implement maximum pressure relief measures",
				"2-hourly repositioning regime",
				"Pressure-relieving mattress and cushions",
				"Daily skin inspection",
				"Involve tissue viability nurse",
			}}},
			{15, Band{"High Risk", []string{
				"Implement pressure relief measures",
				"4-hourly repositioning",
				"Pressure-relieving equipment",
				"Regular skin inspection",
			}}},
			{10, Band{"Medium Risk", []string{
				"Regular repositioning",
				"Monitor skin condition",
				"Consider pressure-relieving aids",
			}}},
			{0, Band{"Low Risk", []string{
				"Continue routine skin care",
				"Monitor for changes in condition",
			}}},
		},
	}}
}

func (w Waterlow) Score(s *Subject) (InstrumentResult, error) {
	b := w.newResult(s)

	if age := s.Resident.Age; age != nil {
		if *age < 0 {
			return InstrumentResult{}, &CalculationError{Instrument: w.key, Field: "age", Reason: fmt.Sprintf("%d is negative", *age)}
		}
		pts := waterlowAgePoints(*age)
		b.calculated("age", "Age", ScoreRange{0, 5}, pts, ConfidenceHigh,
			fmt.Sprintf("Age %d years (%d points)", *age, pts))
	} else {
		b.unknown("age", "Age", ScoreRange{0, 5}, "Resident age not provided")
	}

	gender := ScoreRange{0, 2}
	switch strings.ToLower(strings.TrimSpace(s.Resident.Gender)) {
	case "female":
		b.calculated("gender", "Gender", gender, 2, ConfidenceHigh, "Female gender (2 points)")
	case "male":
		b.calculated("gender", "Gender", gender, 1, ConfidenceHigh, "Male gender (1 point)")
	case "":
		b.unknown("gender", "Gender", gender, "Resident gender not provided")
	default:
		b.unknown("gender", "Gender", gender,
			fmt.Sprintf("Resident gender %q not recognised; confirm male or female", s.Resident.Gender))
	}

	b.keyword("skin", "Skin condition", ScoreRange{0, 2}, s.match("waterlow_skin"), 2,
		"Skin discoloration/bruising identified",
		"Inspect and record the resident's skin condition")

	cont := ScoreRange{0, 3}
	incontinent := s.match("waterlow_incontinence")
	double := s.match("waterlow_double_incontinence")
	switch {
	case incontinent.Found() && double.Found():
		b.keyword("continence", "Continence", cont, mergeMatches(incontinent, double), 3,
			"Doubly incontinent (3 points)", "")
	case incontinent.Found():
		b.keyword("continence", "Continence", cont, incontinent, 1,
			"Urine incontinence (1 point)", "")
	default:
		b.unknown("continence", "Continence", cont, "Confirm the resident's continence status")
	}

	mob := ScoreRange{0, 4}
	if immobile := s.match("waterlow_immobile"); immobile.Found() {
		b.keyword("mobility", "Mobility", mob, immobile, 4, "Restricted mobility/bedbound", "")
	} else {
		b.keyword("mobility", "Mobility", mob, s.match("waterlow_assisted"), 3,
			"Restricted activity",
			"Confirm the resident's mobility level")
	}

	b.keyword("nutrition", "Nutrition", ScoreRange{0, 1}, s.match("waterlow_nutrition"), 1,
		"Poor nutrition/appetite",
		"Confirm the resident's appetite and recent weight changes")

	return b.finish(), nil
}

func waterlowAgePoints(age int) int {
	switch {
	case age >= 81:
		return 5
	case age >= 75:
		return 4
	case age >= 65:
		return 3
	default:
		return 0
	}
}
