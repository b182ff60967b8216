package riskassessment

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ehr/careassess/internal/platform/evidence"
)

// DateLayout is the format of assessment and review dates.
const DateLayout = "2006-01-02"

// Instrument keys in report declaration order.
const (
	KeyFallsScreening    = "falls_screening"
	KeyPressureUlcerPPU  = "pressure_ulcer_ppu"
	KeyMUSTNutrition     = "must_nutrition"
	KeyWaterlow          = "waterlow"
	KeyAbbeyPain         = "abbey_pain"
	KeyCornellDepression = "cornell_depression"
	KeyMovingHandling    = "moving_handling"
	KeyPEEP              = "peep"
)

// RiskLevelUnableToAssess marks an instrument that failed to calculate.
const RiskLevelUnableToAssess = "Unable to assess"

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type ScoreRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// FormItem is one sub-criterion of an instrument. A nil DetectedValue means
// the evidence was insufficient; it is never read as zero.
type FormItem struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	ScoreRange           ScoreRange      `json:"score_range"`
	DetectedValue        *int            `json:"detected_value"`
	Confidence           Confidence      `json:"confidence"`
	Evidence             string          `json:"evidence"`
	Sources              []evidence.Item `json:"sources,omitempty"`
	RequiresManagerInput bool            `json:"requires_manager_input"`
}

// InstrumentResult is the outcome of one instrument for one run. MaxScore is
// nil for instruments with a variable maximum.
type InstrumentResult struct {
	Key               string     `json:"-"`
	ToolName          string     `json:"tool_name"`
	Items             []FormItem `json:"items"`
	Score             int        `json:"score"`
	MaxScore          *int       `json:"max_score"`
	EffectiveMaxScore int        `json:"effective_max_score"`
	RiskLevel         string     `json:"risk_level"`
	Evidence          []string   `json:"evidence"`
	MissingData       []string   `json:"missing_data"`
	Recommendations   []string   `json:"recommendations"`
	NextReviewDate    string     `json:"next_review_date"`
	Error             string     `json:"error,omitempty"`
}

// Failed reports whether the result stands in for an instrument that could
// not be calculated.
func (r InstrumentResult) Failed() bool { return r.Error != "" }

// Item returns the form item with the given id.
func (r InstrumentResult) Item(id string) (FormItem, bool) {
	for _, it := range r.Items {
		if it.ID == id {
			return it, true
		}
	}
	return FormItem{}, false
}

// Assessments is the ordered set of instrument results. It encodes as a JSON
// object whose keys keep declaration order.
type Assessments []InstrumentResult

// Get returns the result stored under key.
func (a Assessments) Get(key string) (InstrumentResult, bool) {
	for _, r := range a {
		if r.Key == key {
			return r, true
		}
	}
	return InstrumentResult{}, false
}

func (a Assessments) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(r.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", r.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (a *Assessments) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("assessments: expected object")
	}
	var out Assessments
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("assessments: expected key, got %v", tok)
		}
		var r InstrumentResult
		if err := dec.Decode(&r); err != nil {
			return fmt.Errorf("assessments %s: %w", key, err)
		}
		r.Key = key
		out = append(out, r)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*a = out
	return nil
}

type PriorityAlert struct {
	Tool      string `json:"tool"`
	Score     int    `json:"score"`
	RiskLevel string `json:"risk_level"`
	Alert     string `json:"alert"`
}

// Summary buckets results by coarse risk. Failed instruments are counted in
// ErrorCount only.
type Summary struct {
	HighRiskCount   int             `json:"high_risk_count"`
	MediumRiskCount int             `json:"medium_risk_count"`
	LowRiskCount    int             `json:"low_risk_count"`
	ErrorCount      int             `json:"error_count"`
	PriorityAlerts  []PriorityAlert `json:"priority_alerts"`
}

// ManualAdjustment records a care manager overriding an instrument score.
type ManualAdjustment struct {
	OriginalScore int    `json:"original_score"`
	AdjustedScore int    `json:"adjusted_score"`
	Reason        string `json:"reason,omitempty"`
}

type AssessmentReport struct {
	ID                  string                      `json:"id"`
	AssessmentDate      string                      `json:"assessment_date"`
	KeywordTableVersion string                      `json:"keyword_table_version"`
	Assessments         Assessments                 `json:"assessments"`
	Summary             Summary                     `json:"summary"`
	ManualAdjustments   map[string]ManualAdjustment `json:"manual_adjustments,omitempty"`
}

// Resident carries optional metadata. Gender is "male" or "female"; any
// other value is treated as unknown.
type Resident struct {
	Age    *int   `json:"age,omitempty"`
	Gender string `json:"gender,omitempty"`
}

// Input is everything one assessment run reads. WeightSeries is in kilograms,
// earliest first; HeightCM is in centimetres.
type Input struct {
	CarePlanText string    `json:"care_plan_text"`
	LogText      string    `json:"log_text"`
	WeightSeries []float64 `json:"weight_series,omitempty"`
	HeightCM     *float64  `json:"height_cm,omitempty"`
	Resident     Resident  `json:"resident"`
}

// CalculationError reports numeric input an instrument cannot compute with.
type CalculationError struct {
	Instrument string
	Field      string
	Reason     string
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("%s: invalid %s: %s", e.Instrument, e.Field, e.Reason)
}

func intPtr(v int) *int { return &v }
