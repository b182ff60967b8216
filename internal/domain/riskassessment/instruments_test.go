package riskassessment

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ehr/careassess/internal/platform/evidence"
	"github.com/ehr/careassess/internal/platform/keywords"
)

var testDay = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestSubject(in Input) *Subject {
	return NewSubject(in, keywords.Default(), evidence.NewMatcher(3), testDay)
}

func mustScore(t *testing.T, inst Instrument, in Input) InstrumentResult {
	t.Helper()
	res, err := inst.Score(newTestSubject(in))
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", inst.Key(), err)
	}
	checkProvenance(t, res)
	return res
}

// checkProvenance asserts every value has evidence and every unknown item is
// listed as missing data.
func checkProvenance(t *testing.T, res InstrumentResult) {
	t.Helper()
	nulls := 0
	for _, it := range res.Items {
		if it.DetectedValue == nil {
			nulls++
			if !it.RequiresManagerInput {
				t.Errorf("%s/%s: null value must require manager input", res.Key, it.ID)
			}
			continue
		}
		if it.Evidence == "" {
			t.Errorf("%s/%s: value %d without evidence", res.Key, it.ID, *it.DetectedValue)
		}
		if *it.DetectedValue < it.ScoreRange.Min || *it.DetectedValue > it.ScoreRange.Max {
			t.Errorf("%s/%s: value %d outside %+v", res.Key, it.ID, *it.DetectedValue, it.ScoreRange)
		}
	}
	if len(res.MissingData) < nulls {
		t.Errorf("%s: %d unknown items but only %d missing-data entries", res.Key, nulls, len(res.MissingData))
	}
}

func countNulls(res InstrumentResult) int {
	n := 0
	for _, it := range res.Items {
		if it.DetectedValue == nil {
			n++
		}
	}
	return n
}

func itemValue(t *testing.T, res InstrumentResult, id string) *int {
	t.Helper()
	it, ok := res.Item(id)
	if !ok {
		t.Fatalf("%s: no item %q", res.Key, id)
	}
	return it.DetectedValue
}

const fallsCarePlan = `Diagnosis: dementia diagnosis
Medications:
Paracetamol 500mg tablet
Aspirin 75mg
Warfarin 3mg
Metformin 500mg tablet
Insulin 10 units`

func TestFallsScreening_CountsTrueConditions(t *testing.T) {
	res := mustScore(t, NewFallsScreening(), Input{
		CarePlanText: fallsCarePlan,
		LogText:      "01/03/2024\nResident fell twice in the corridor",
	})
	if res.Score != 3 {
		t.Errorf("score: got %d, want 3", res.Score)
	}
	if res.RiskLevel != "High Risk" {
		t.Errorf("risk level: got %q, want High Risk", res.RiskLevel)
	}
	if got := countNulls(res); got != 3 {
		t.Errorf("unknown items: got %d, want 3", got)
	}
	if len(res.MissingData) != 3 {
		t.Errorf("missing data: got %v", res.MissingData)
	}
	if res.EffectiveMaxScore != 3 {
		t.Errorf("effective max: got %d, want 3", res.EffectiveMaxScore)
	}
	if it, _ := res.Item("falls_history"); len(it.Sources) != 1 || it.Sources[0].Timestamp == nil || *it.Sources[0].Timestamp != "01/03/2024" {
		t.Errorf("falls history sources: %+v", it.Sources)
	}
	if res.NextReviewDate != "2024-06-08" {
		t.Errorf("next review: got %s, want 2024-06-08", res.NextReviewDate)
	}
}

func TestFallsScreening_FewMedicationsScoreZero(t *testing.T) {
	res := mustScore(t, NewFallsScreening(), Input{CarePlanText: "Paracetamol 500mg tablet"})
	v := itemValue(t, res, "medications")
	if v == nil || *v != 0 {
		t.Errorf("medications: got %v, want 0", v)
	}
}

func TestFallsScreening_ScoreBounds(t *testing.T) {
	res := mustScore(t, NewFallsScreening(), Input{
		CarePlanText: fallsCarePlan + "\nUnsteady on feet, needs help standing",
		LogText:      "Resident had a fall",
	})
	if res.Score != 5 {
		t.Errorf("score: got %d, want 5", res.Score)
	}
	if res.Score > *res.MaxScore {
		t.Errorf("score %d exceeds max %d", res.Score, *res.MaxScore)
	}
}

func TestPPU(t *testing.T) {
	res := mustScore(t, NewPreliminaryPressureUlcer(), Input{CarePlanText: "Uses wheelchair, wears pads at night"})
	if res.Score != 2 || res.RiskLevel != "Requires Full Assessment" {
		t.Errorf("got %d %q, want 2 Requires Full Assessment", res.Score, res.RiskLevel)
	}
	if itemValue(t, res, "nutrition") != nil {
		t.Error("nutrition should be unknown")
	}

	res = mustScore(t, NewPreliminaryPressureUlcer(), Input{CarePlanText: "Independent"})
	if res.Score != 0 || res.RiskLevel != "Low Risk" {
		t.Errorf("got %d %q, want 0 Low Risk", res.Score, res.RiskLevel)
	}
	if len(res.MissingData) != 3 {
		t.Errorf("missing data: got %d, want 3", len(res.MissingData))
	}
}

func TestContinence_SharedAcrossInstruments(t *testing.T) {
	in := Input{CarePlanText: "Urinary incontinence managed by staff"}
	ppu := mustScore(t, NewPreliminaryPressureUlcer(), in)
	if v := itemValue(t, ppu, "continence"); v == nil || *v != 1 {
		t.Errorf("ppu continence: got %v, want 1", v)
	}
	waterlow := mustScore(t, NewWaterlow(), in)
	if v := itemValue(t, waterlow, "continence"); v == nil || *v != 1 {
		t.Errorf("waterlow continence: got %v, want 1", v)
	}
}

func TestMUST_BMIAndWeightLoss(t *testing.T) {
	height := 170.0
	res := mustScore(t, NewMUST(), Input{WeightSeries: []float64{70, 61}, HeightCM: &height})
	if v := itemValue(t, res, "bmi"); v == nil || *v != 0 {
		t.Errorf("bmi: got %v, want 0", v)
	}
	if v := itemValue(t, res, "weight_loss"); v == nil || *v != 2 {
		t.Errorf("weight loss: got %v, want 2", v)
	}
	if res.Score != 2 || res.RiskLevel != "High Risk" {
		t.Errorf("got %d %q, want 2 High Risk", res.Score, res.RiskLevel)
	}
	if it, _ := res.Item("bmi"); it.Evidence != "BMI 21.1 - Normal (>20)" {
		t.Errorf("bmi evidence: %q", it.Evidence)
	}
}

func TestMUST_MissingDataIsNotZero(t *testing.T) {
	res := mustScore(t, NewMUST(), Input{WeightSeries: []float64{50}})
	if itemValue(t, res, "bmi") != nil {
		t.Error("bmi without height must be unknown")
	}
	if itemValue(t, res, "weight_loss") != nil {
		t.Error("weight loss with one recording must be unknown")
	}
	if len(res.MissingData) != 3 {
		t.Errorf("missing data: got %v", res.MissingData)
	}
}

func TestMUST_AcuteIllness(t *testing.T) {
	res := mustScore(t, NewMUST(), Input{CarePlanText: "NBM pending surgery", LogText: "unwell with fever"})
	if v := itemValue(t, res, "acute_illness"); v == nil || *v != 2 {
		t.Errorf("acute illness: got %v, want 2", v)
	}
	res = mustScore(t, NewMUST(), Input{LogText: "unwell with fever"})
	if itemValue(t, res, "acute_illness") != nil {
		t.Error("illness without fasting must be unknown")
	}
}

func TestMUST_CalculationError(t *testing.T) {
	zero := 0.0
	tests := []Input{
		{WeightSeries: []float64{70, 0}},
		{WeightSeries: []float64{70, math.NaN()}},
		{WeightSeries: []float64{math.Inf(1)}},
		{WeightSeries: []float64{70}, HeightCM: &zero},
	}
	for _, in := range tests {
		_, err := NewMUST().Score(newTestSubject(in))
		var calcErr *CalculationError
		if !errors.As(err, &calcErr) {
			t.Errorf("%+v: expected CalculationError, got %v", in, err)
		}
	}
}

func TestWaterlow(t *testing.T) {
	age := 85
	res := mustScore(t, NewWaterlow(), Input{
		CarePlanText: "Resident is bedbound.\nIncontinent of urine.",
		Resident:     Resident{Age: &age, Gender: "female"},
	})
	want := map[string]int{"age": 5, "gender": 2, "mobility": 4, "continence": 1}
	for id, w := range want {
		if v := itemValue(t, res, id); v == nil || *v != w {
			t.Errorf("%s: got %v, want %d", id, v, w)
		}
	}
	if res.Score != 12 || res.RiskLevel != "Medium Risk" {
		t.Errorf("got %d %q, want 12 Medium Risk", res.Score, res.RiskLevel)
	}
	if res.MaxScore != nil {
		t.Errorf("max score should be variable, got %d", *res.MaxScore)
	}
}

func TestWaterlow_DoubleIncontinenceAndAssisted(t *testing.T) {
	res := mustScore(t, NewWaterlow(), Input{
		CarePlanText: "Incontinent of urine and faeces. Mobilises with zimmer frame and assistance.",
	})
	if v := itemValue(t, res, "continence"); v == nil || *v != 3 {
		t.Errorf("continence: got %v, want 3", v)
	}
	if v := itemValue(t, res, "mobility"); v == nil || *v != 3 {
		t.Errorf("mobility: got %v, want 3", v)
	}
	if itemValue(t, res, "age") != nil || itemValue(t, res, "gender") != nil {
		t.Error("age and gender must be unknown without metadata")
	}
}

func TestWaterlow_YoungResidentScoresZeroWithNote(t *testing.T) {
	age := 50
	res := mustScore(t, NewWaterlow(), Input{Resident: Resident{Age: &age, Gender: "Male"}})
	if v := itemValue(t, res, "age"); v == nil || *v != 0 {
		t.Errorf("age: got %v, want 0", v)
	}
	if v := itemValue(t, res, "gender"); v == nil || *v != 1 {
		t.Errorf("gender: got %v, want 1", v)
	}
}

func TestWaterlow_SkinWordBoundary(t *testing.T) {
	res := mustScore(t, NewWaterlow(), Input{CarePlanText: "Prefers tea with reduced sugar"})
	if itemValue(t, res, "skin") != nil {
		t.Error("'reduced' must not count as red skin")
	}
}

func TestAbbeyPain(t *testing.T) {
	res := mustScore(t, NewAbbeyPain(), Input{LogText: "Moaning and grimacing when moved, restless, in pain"})
	if res.Score != 7 || res.RiskLevel != "Mild Pain" {
		t.Errorf("got %d %q, want 7 Mild Pain", res.Score, res.RiskLevel)
	}
	if it, _ := res.Item("physiological_change"); it.DetectedValue != nil || !it.RequiresManagerInput {
		t.Error("physiological change must always need manager input")
	}
}

func TestCornellDepression(t *testing.T) {
	res := mustScore(t, NewCornellDepression(), Input{LogText: "anxious and tearful\nsad\nPoor sleep, waking at night"})
	if v := itemValue(t, res, "mood"); v == nil || *v != 6 {
		t.Errorf("mood: got %v, want 6", v)
	}
	if v := itemValue(t, res, "cyclic_functions"); v == nil || *v != 4 {
		t.Errorf("cyclic: got %v, want 4", v)
	}
	if res.Score != 10 || res.RiskLevel != "Probable Depression" {
		t.Errorf("got %d %q, want 10 Probable Depression", res.Score, res.RiskLevel)
	}
	if res.NextReviewDate != "2024-08-24" {
		t.Errorf("next review: got %s, want 2024-08-24", res.NextReviewDate)
	}
}

func TestCornellDepression_MoodCapped(t *testing.T) {
	res := mustScore(t, NewCornellDepression(), Input{LogText: "anxious, sad, tearful, irritable and worried"})
	if v := itemValue(t, res, "mood"); v == nil || *v != 8 {
		t.Errorf("mood: got %v, want 8", v)
	}
}

func TestMovingHandling_MaxOfActivities(t *testing.T) {
	res := mustScore(t, NewMovingHandling(), Input{CarePlanText: "Cannot stand unaided. Uses a zimmer frame."})
	if v := itemValue(t, res, "standing"); v == nil || *v != 3 {
		t.Errorf("standing: got %v, want 3", v)
	}
	if v := itemValue(t, res, "walking"); v == nil || *v != 2 {
		t.Errorf("walking: got %v, want 2", v)
	}
	if res.Score != 3 || res.RiskLevel != "High Risk - 2 Staff Required" {
		t.Errorf("got %d %q", res.Score, res.RiskLevel)
	}
	if res.EffectiveMaxScore != 5 {
		t.Errorf("effective max: got %d, want 5", res.EffectiveMaxScore)
	}
}

func TestPEEP_Tiers(t *testing.T) {
	tests := []struct {
		text  string
		score int
		level string
	}{
		{"Uses a wheelchair and has dementia", 4, "Severe Risk"},
		{"Uses a walking aid, has dementia", 3, "High Risk"},
		{"Slow mobility", 2, "Medium Risk"},
		{"", 1, "Low Risk"},
	}
	for _, tt := range tests {
		res := mustScore(t, NewPEEP(), Input{CarePlanText: tt.text})
		if res.Score != tt.score || res.RiskLevel != tt.level {
			t.Errorf("%q: got %d %q, want %d %q", tt.text, res.Score, res.RiskLevel, tt.score, tt.level)
		}
	}
}

func TestPEEP_DefaultIsFlagged(t *testing.T) {
	res := mustScore(t, NewPEEP(), Input{})
	it, _ := res.Item("evacuation")
	if it.Confidence != ConfidenceLow {
		t.Errorf("confidence: got %s, want low", it.Confidence)
	}
	if len(res.MissingData) != 1 {
		t.Errorf("default tier must ask for confirmation, got %v", res.MissingData)
	}
}

func TestBandTable_ReturnsCopies(t *testing.T) {
	f := NewFallsScreening()
	b := f.Classify(5)
	b.Recommendations[0] = "changed"
	if f.Classify(5).Recommendations[0] == "changed" {
		t.Error("Classify must not share recommendation slices")
	}
}
