package riskassessment

import (
	"fmt"
	"math"
)

// MUST is the Malnutrition Universal Screening Tool.
type MUST struct{ definition }

func NewMUST() MUST {
	return MUST{definition{
		key:         KeyMUSTNutrition,
		toolName:    "MUST Nutrition Screening",
		maxScore:    intPtr(6),
		reviewWeeks: 1,
		bands: bandTable{
			{2, Band{"High Risk", []string{
				"Refer to dietitian/nutritionist",
				"Implement nutrition care plan",
				"Monitor weight weekly",
				"Consider nutritional supplements",
				"Document food and fluid intake",
			}}},
			{1, Band{"Medium Risk", []string{
				"Monitor weight and intake",
				"Review dietary preferences",
				"Consider nutritional supplements",
			}}},
			{0, Band{"Low Risk", []string{
				"Continue routine nutrition monitoring",
				"Maintain balanced diet",
			}}},
		},
	}}
}

func (m MUST) Score(s *Subject) (InstrumentResult, error) {
	if err := m.validate(s.Input); err != nil {
		return InstrumentResult{}, err
	}
	b := m.newResult(s)
	two := ScoreRange{0, 2}
	weights := s.WeightSeries

	switch {
	case len(weights) == 0 && s.HeightCM == nil:
		b.unknown("bmi", "BMI score", two, "Weight and height not recorded; BMI cannot be calculated")
	case len(weights) == 0:
		b.unknown("bmi", "BMI score", two, "Weight not recorded; BMI cannot be calculated")
	case s.HeightCM == nil:
		b.unknown("bmi", "BMI score", two, "Height not recorded; BMI cannot be calculated")
	default:
		latest := weights[len(weights)-1]
		metres := *s.HeightCM / 100
		bmi := latest / (metres * metres)
		switch {
		case bmi < 18.5:
			b.calculated("bmi", "BMI score", two, 2, ConfidenceHigh, fmt.Sprintf("BMI %.1f - Underweight (<18.5)", bmi))
		case bmi <= 20:
			b.calculated("bmi", "BMI score", two, 1, ConfidenceHigh, fmt.Sprintf("BMI %.1f - Below average (18.5-20)", bmi))
		default:
			b.calculated("bmi", "BMI score", two, 0, ConfidenceHigh, fmt.Sprintf("BMI %.1f - Normal (>20)", bmi))
		}
	}

	if len(weights) < 2 {
		b.unknown("weight_loss", "Unplanned weight loss", two,
			"At least two weight recordings are needed to calculate weight loss")
	} else {
		first, last := weights[0], weights[len(weights)-1]
		change := (first - last) / first * 100
		switch {
		case change > 10:
			b.calculated("weight_loss", "Unplanned weight loss", two, 2, ConfidenceHigh,
				fmt.Sprintf("Weight loss >10%% (%.1f%%)", change))
		case change >= 5:
			b.calculated("weight_loss", "Unplanned weight loss", two, 1, ConfidenceHigh,
				fmt.Sprintf("Weight loss 5-10%% (%.1f%%)", change))
		default:
			b.calculated("weight_loss", "Unplanned weight loss", two, 0, ConfidenceHigh,
				fmt.Sprintf("Weight change %.1f%% over %d recordings (<5%% loss)", -change, len(weights)))
		}
	}

	if acute, ok := s.matchAll("must_fasting", "must_acute_illness"); ok {
		b.keyword("acute_illness", "Acute disease effect", two, acute, 2,
			"Acutely ill with reduced nutritional intake", "")
	} else {
		b.unknown("acute_illness", "Acute disease effect", two,
			"Confirm whether the resident is acutely ill with no nutritional intake for more than 5 days")
	}

	return b.finish(), nil
}

func (m MUST) validate(in Input) error {
	for i, w := range in.WeightSeries {
		if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
			return &CalculationError{Instrument: m.key, Field: "weight_series", Reason: fmt.Sprintf("value %v at index %d is not a positive weight", w, i)}
		}
	}
	if h := in.HeightCM; h != nil && (math.IsNaN(*h) || math.IsInf(*h, 0) || *h <= 0) {
		return &CalculationError{Instrument: m.key, Field: "height_cm", Reason: fmt.Sprintf("%v is not a positive height", *h)}
	}
	return nil
}
