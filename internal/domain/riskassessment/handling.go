package riskassessment

// MovingHandling scores activities independently; the overall score is the
// highest activity score.
type MovingHandling struct{ definition }

func NewMovingHandling() MovingHandling {
	return MovingHandling{definition{
		key:         KeyMovingHandling,
		toolName:    "Moving and Handling Assessment",
		maxScore:    intPtr(5),
		reviewWeeks: 24,
		mode:        maxItem,
		bands: bandTable{
			{3, Band{"High Risk - 2 Staff Required", []string{
				"Two staff required for all transfers",
				"Use appropriate lifting equipment",
				"Regular manual handling training for staff",
				"Risk assessment before each move",
			}}},
			{2, Band{"Medium Risk - 1 Staff Required", []string{
				"One staff member assistance required",
				"Use walking aids as appropriate",
				"Monitor during mobility",
			}}},
			{0, Band{"Low Risk - Independent", []string{
				"Encourage independence",
				"Monitor mobility levels",
			}}},
		},
	}}
}

func (h MovingHandling) Score(s *Subject) (InstrumentResult, error) {
	b := h.newResult(s)
	rng := ScoreRange{0, 5}

	if m := s.match("handling_cannot_stand"); m.Found() {
		b.keyword("standing", "Standing", rng, m, 3, "Unable to stand independently", "")
	} else {
		b.keyword("standing", "Standing", rng, s.match("handling_assisted_stand"), 2,
			"Requires assistance to stand",
			"Confirm how much help the resident needs to stand")
	}

	if m := s.match("handling_wheelchair"); m.Found() {
		b.keyword("walking", "Walking", rng, m, 3, "Wheelchair dependent", "")
	} else {
		b.keyword("walking", "Walking", rng, s.match("handling_walking_aid"), 2,
			"Uses walking aids",
			"Confirm whether the resident walks independently or with an aid")
	}

	b.managerOnly("transferring", "Transferring", rng,
		"Assess transfers between bed, chair and toilet")
	b.managerOnly("personal_care", "Personal care", rng,
		"Assess assistance needed with washing and dressing")

	return b.finish(), nil
}

// PEEP assigns a single evacuation tier. The highest matching tier wins;
// with no evidence the resident defaults to tier 1.
type PEEP struct{ definition }

func NewPEEP() PEEP {
	return PEEP{definition{
		key:         KeyPEEP,
		toolName:    "Personal Emergency Evacuation Plan",
		maxScore:    intPtr(4),
		reviewWeeks: 24,
		bands: bandTable{
			{4, Band{"Severe Risk", []string{
				"Requires evacuation chair and two staff",
				"Practice evacuation procedures regularly",
				"Ensure staff know evacuation route",
				"Consider refuge area if needed",
			}}},
			{3, Band{"High Risk", []string{
				"Requires staff assistance to evacuate",
				"Verbal prompting and guidance needed",
				"Practice evacuation procedures",
			}}},
			{2, Band{"Medium Risk", []string{
				"May need verbal prompting",
				"Monitor during evacuation drills",
			}}},
			{0, Band{"Low Risk", []string{
				"Can evacuate independently",
				"Include in general evacuation procedures",
			}}},
		},
	}}
}

func (p PEEP) Score(s *Subject) (InstrumentResult, error) {
	b := p.newResult(s)
	rng := ScoreRange{1, 4}

	tiers := []struct {
		category string
		value    int
		finding  string
	}{
		{"peep_immobile", 4, "Cannot self-evacuate - requires equipment and multiple staff"},
		{"peep_cognitive", 3, "May require assistance and guidance to evacuate"},
		{"peep_mobility_aid", 2, "May need verbal prompting or some assistance"},
	}
	for _, t := range tiers {
		if m := s.match(t.category); m.Found() {
			b.keyword("evacuation", "Evacuation ability", rng, m, t.value, t.finding, "")
			return b.finish(), nil
		}
	}

	b.calculated("evacuation", "Evacuation ability", rng, 1, ConfidenceLow,
		"Appears able to evacuate independently (no evacuation barriers documented)")
	b.confirm("Confirm the resident can evacuate independently")
	return b.finish(), nil
}
