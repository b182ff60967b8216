package riskassessment

import "fmt"

// CornellDepression is the Cornell Scale for Depression in Dementia.
type CornellDepression struct{ definition }

func NewCornellDepression() CornellDepression {
	return CornellDepression{definition{
		key:         KeyCornellDepression,
		toolName:    "Cornell Depression Scale",
		maxScore:    intPtr(38),
		reviewWeeks: 12,
		bands: bandTable{
			{18, Band{"Definite Depression", []string{
				"Urgent psychiatric/GP review",
				"Consider antidepressant medication",
				"Implement depression care plan",
				"Increase social interaction and activities",
			}}},
			{10, Band{"Probable Depression", []string{
				"Medical review for possible depression",
				"Monitor mood and behaviour",
				"Encourage social activities",
				"Consider counselling/therapy",
			}}},
			{0, Band{"Low Risk", []string{
				"Continue routine emotional support",
				"Monitor for mood changes",
			}}},
		},
	}}
}

func (c CornellDepression) Score(s *Subject) (InstrumentResult, error) {
	b := c.newResult(s)

	counted := func(id, name, category string, capAt int, finding, missing string) {
		m := s.match(category)
		pts := min(m.Count()*2, capAt)
		b.keyword(id, name, ScoreRange{0, capAt}, m, pts,
			fmt.Sprintf("%s (%d indicators)", finding, m.Count()), missing)
	}
	counted("mood", "Mood-related signs", "cornell_mood", 8,
		"Mood-related symptoms identified",
		"Observe for anxiety, sadness, irritability or tearfulness")
	counted("behaviour", "Behavioural disturbance", "cornell_behaviour", 8,
		"Behavioural disturbances noted",
		"Observe for agitation, retardation or loss of interest")
	counted("physical", "Physical signs", "cornell_physical", 6,
		"Physical symptoms of depression",
		"Confirm appetite loss, weight loss or lack of energy")

	b.keyword("cyclic_functions", "Cyclic functions", ScoreRange{0, 8}, s.match("cornell_sleep"), 4,
		"Sleep disturbances identified",
		"Confirm sleep pattern and diurnal variation of mood")
	b.managerOnly("ideational_disturbance", "Ideational disturbance", ScoreRange{0, 8},
		"Assess suicidal ideation, poor self-esteem, pessimism and mood-congruent delusions")

	return b.finish(), nil
}
