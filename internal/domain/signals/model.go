package signals

// Severity of an incident mention. Only two tiers exist.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// BowelMovement is a bowel count recorded under a log date.
type BowelMovement struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// WaterIntake is a fluid amount in millilitres recorded under a log date.
type WaterIntake struct {
	Date     string `json:"date"`
	AmountML int    `json:"amount_ml"`
}

// FoodIntake is the percentage of a meal taken, recorded under a log date.
type FoodIntake struct {
	Date       string `json:"date"`
	Percentage int    `json:"percentage"`
}

// Incident is a log line mentioning an incident.
type Incident struct {
	Date        string   `json:"date"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// StructuredSignals is the extractor output. Every sequence keeps the order in
// which the signals appeared in the log.
type StructuredSignals struct {
	BowelMovements      []BowelMovement `json:"bowel_movements"`
	WaterIntake         []WaterIntake   `json:"water_intake"`
	FoodIntake          []FoodIntake    `json:"food_intake"`
	Incidents           []Incident      `json:"incidents"`
	Dates               []string        `json:"dates"`
	KeywordTableVersion string          `json:"keyword_table_version"`
}

// CategorySummary describes the daily average of one signal category.
// DailyAverage is nil when fewer days than required carry data.
type CategorySummary struct {
	Days         int      `json:"days"`
	DailyAverage *float64 `json:"daily_average"`
	Note         string   `json:"note,omitempty"`
}

// Summary condenses extracted signals into daily averages and alerts.
type Summary struct {
	Bowel                 CategorySummary `json:"bowel"`
	Water                 CategorySummary `json:"water"`
	Food                  CategorySummary `json:"food"`
	IncidentCount         int             `json:"incident_count"`
	HighSeverityIncidents int             `json:"high_severity_incidents"`
	Alerts                []string        `json:"alerts"`
}
