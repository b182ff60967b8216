package riskassessment

// AbbeyPain is the Abbey Pain Scale for residents who cannot verbalise pain.
type AbbeyPain struct{ definition }

func NewAbbeyPain() AbbeyPain {
	return AbbeyPain{definition{
		key:         KeyAbbeyPain,
		toolName:    "Abbey Pain Scale",
		maxScore:    intPtr(18),
		reviewWeeks: 4,
		bands: bandTable{
			{14, Band{"Severe Pain", []string{
				"Urgent medical review for pain management",
				"Consider strong analgesics",
				"Regular pain assessment",
				"Non-pharmacological comfort measures",
			}}},
			{8, Band{"Moderate Pain", []string{
				"Medical review for pain management",
				"Regular analgesics as prescribed",
				"Monitor effectiveness of pain relief",
			}}},
			{3, Band{"Mild Pain", []string{
				"Monitor for pain signs",
				"PRN analgesics as needed",
				"Comfort measures",
			}}},
			{0, Band{"No Pain to Mild Pain", []string{
				"Continue routine comfort care",
				"Monitor for changes",
			}}},
		},
	}}
}

func (a AbbeyPain) Score(s *Subject) (InstrumentResult, error) {
	b := a.newResult(s)
	rng := ScoreRange{0, 3}

	b.keyword("vocalisation", "Vocalisation", rng, s.match("abbey_vocalisation"), 2,
		"Vocalisation of pain identified",
		"Observe for vocalisation such as whimpering, groaning or crying")
	b.keyword("facial_expression", "Facial expression", rng, s.match("abbey_facial"), 2,
		"Facial expressions of pain",
		"Observe facial expression for tension, frowning or grimacing")
	b.keyword("body_language", "Change in body language", rng, s.match("abbey_body_language"), 2,
		"Body language changes indicating pain",
		"Observe body language for fidgeting, guarding or withdrawal")
	b.keyword("behavioural_change", "Behavioural change", rng, s.match("abbey_behaviour"), 2,
		"Behavioural changes noted",
		"Observe for increased confusion, refusing food or altered usual patterns")
	b.managerOnly("physiological_change", "Physiological change", rng,
		"Record temperature, pulse and blood pressure and note any perspiration or pallor")
	b.keyword("physical_change", "Physical changes", rng, s.match("abbey_pain"), 1,
		"Pain or discomfort documented",
		"Check for skin tears, pressure areas, arthritis or contractures")

	return b.finish(), nil
}
