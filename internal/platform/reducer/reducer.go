// Package reducer shrinks oversized tabular care logs before they are scored
// or analysed. It profiles the columns of a delimited document, keeps the
// important ones, and samples rows so the first and last records survive.
// It also provides line-level optimisers for free-text logs and care plans.
package reducer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ehr/careassess/internal/platform/evidence"
	"github.com/ehr/careassess/internal/platform/keywords"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrEmptyDocument = errors.New("document is empty")
	ErrNotTabular    = errors.New("document is not tabular")
)

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

const (
	DefaultThreshold = 50000
	DefaultRatio     = 0.6
	// MinRows is the floor on sampled data rows.
	MinRows = 10

	typeSampleRows = 10
	sniffLines     = 5
	fallbackCols   = 5
	summaryHeader  = "[COMPRESSION SUMMARY]"
)

var delimiters = []rune{',', '\t', ';', '|'}

// ---------------------------------------------------------------------------
// Domain types
// ---------------------------------------------------------------------------

type Importance string

const (
	ImportanceCritical Importance = "critical"
	ImportanceHigh     Importance = "high"
	ImportanceMedium   Importance = "medium"
	ImportanceLow      Importance = "low"
)

type Strategy string

const (
	StrategyKeepAll   Strategy = "keep_all"
	StrategySample    Strategy = "sample"
	StrategySummarize Strategy = "summarize"
	StrategyRemove    Strategy = "remove"
)

type Density string

const (
	DensityHigh   Density = "high"
	DensityMedium Density = "medium"
	DensityLow    Density = "low"
)

// Column describes one column of a delimited document.
type Column struct {
	Name                string     `json:"name"`
	DataType            string     `json:"data_type"`
	Importance          Importance `json:"importance"`
	CompressionStrategy Strategy   `json:"compression_strategy"`
	Description         string     `json:"description"`
}

// StructureProfile is the result of profiling a delimited document.
type StructureProfile struct {
	Columns                     []Column `json:"columns"`
	TotalColumns                int      `json:"total_columns"`
	DataDensity                 Density  `json:"data_density"`
	RecommendedCompressionRatio float64  `json:"recommended_compression_ratio"`
	Delimiter                   string   `json:"delimiter"`
	RowCount                    int      `json:"row_count"`
}

// Stats reports what a reduction did.
type Stats struct {
	Reduced         bool    `json:"reduced"`
	Reason          string  `json:"reason,omitempty"`
	OriginalChars   int     `json:"original_chars"`
	ReducedChars    int     `json:"reduced_chars"`
	OriginalRows    int     `json:"original_rows"`
	ReducedRows     int     `json:"reduced_rows"`
	OriginalColumns int     `json:"original_columns"`
	ReducedColumns  int     `json:"reduced_columns"`
	Ratio           float64 `json:"ratio"`
}

// ---------------------------------------------------------------------------
// Reducer
// ---------------------------------------------------------------------------

// Reducer is stateless after construction and safe for concurrent use.
type Reducer struct {
	threshold int
	ratio     float64
	care      []keywords.Term
}

// New returns a reducer. A non-positive threshold uses DefaultThreshold; the
// ratio is clamped to (0,1], with non-positive values using DefaultRatio.
func New(threshold int, ratio float64, table *keywords.Table) *Reducer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if ratio <= 0 {
		ratio = DefaultRatio
	}
	if ratio > 1 {
		ratio = 1
	}
	if table == nil {
		table = keywords.Default()
	}
	return &Reducer{threshold: threshold, ratio: ratio, care: table.Category("care_focus").Terms()}
}

// IsLarge reports whether text exceeds the size gate, in characters.
func (r *Reducer) IsLarge(text string) bool {
	return utf8.RuneCountInString(text) > r.threshold
}

// Profile classifies the columns of a delimited document.
func (r *Reducer) Profile(text string) (StructureProfile, error) {
	rows, delim, err := parse(text)
	if err != nil {
		return StructureProfile{}, err
	}
	headers, data := rows[0], rows[1:]

	p := StructureProfile{
		Columns:                     make([]Column, 0, len(headers)),
		TotalColumns:                len(headers),
		RecommendedCompressionRatio: r.ratio,
		Delimiter:                   string(delim),
		RowCount:                    len(data),
	}
	for i, h := range headers {
		imp, strat := r.classify(h)
		dt := inferType(data, i)
		name := strings.TrimSpace(h)
		p.Columns = append(p.Columns, Column{
			Name:                h,
			DataType:            dt,
			Importance:          imp,
			CompressionStrategy: strat,
			Description:         fmt.Sprintf("%s column %q", dt, name),
		})
	}
	p.DataDensity = density(data, len(headers))
	return p, nil
}

// Reduce returns text reduced according to p. Documents under the size gate,
// and documents that cannot be parsed, are returned unchanged.
func (r *Reducer) Reduce(text string, p StructureProfile) string {
	out, _ := r.reduce(text, p)
	return out
}

// Prepare gates, profiles and reduces text in one step.
func (r *Reducer) Prepare(text string) (string, Stats) {
	if !r.IsLarge(text) {
		return text, unchanged(text, "below size threshold")
	}
	p, err := r.Profile(text)
	if err != nil {
		return text, unchanged(text, err.Error())
	}
	return r.reduce(text, p)
}

func (r *Reducer) reduce(text string, p StructureProfile) (string, Stats) {
	if !r.IsLarge(text) {
		return text, unchanged(text, "below size threshold")
	}
	rows, delim, err := parse(text)
	if err != nil {
		return text, unchanged(text, err.Error())
	}
	headers, data := rows[0], rows[1:]

	keep := columnsToKeep(headers, p)
	ratio := p.RecommendedCompressionRatio
	if ratio <= 0 || ratio > 1 {
		ratio = r.ratio
	}
	sampled := sampleRows(data, ratio)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = delim
	w.Write(project(headers, keep))
	for _, row := range sampled {
		w.Write(project(row, keep))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return text, unchanged(text, err.Error())
	}

	st := Stats{
		Reduced:         true,
		OriginalChars:   utf8.RuneCountInString(text),
		OriginalRows:    len(data),
		ReducedRows:     len(sampled),
		OriginalColumns: len(headers),
		ReducedColumns:  len(keep),
	}
	if len(data) > 0 {
		st.Ratio = float64(len(sampled)) / float64(len(data))
	}
	fmt.Fprintf(&buf, "\n%s\nOriginal: %d data rows x %d columns\nReduced: %d data rows x %d columns\nCompression ratio: %.2f\n",
		summaryHeader, st.OriginalRows, st.OriginalColumns, st.ReducedRows, st.ReducedColumns, st.Ratio)

	out := buf.String()
	st.ReducedChars = utf8.RuneCountInString(out)
	return out, st
}

func unchanged(text, reason string) Stats {
	n := utf8.RuneCountInString(text)
	return Stats{Reason: reason, OriginalChars: n, ReducedChars: n, Ratio: 1}
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

func parse(text string) ([][]string, rune, error) {
	if strings.TrimSpace(text) == "" {
		return nil, 0, ErrEmptyDocument
	}
	delim, ok := sniffDelimiter(text)
	if !ok {
		return nil, 0, ErrNotTabular
	}
	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrNotTabular, err)
	}
	if len(rows) < 2 || len(rows[0]) < 2 {
		return nil, 0, ErrNotTabular
	}
	return rows, delim, nil
}

// sniffDelimiter picks the candidate that splits every one of the first
// non-blank lines into the same number of fields (at least two), preferring
// the widest split. The first line must read as a header.
func sniffDelimiter(text string) (rune, bool) {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
		if len(lines) == sniffLines {
			break
		}
	}
	if len(lines) < 2 {
		return 0, false
	}
	sample := strings.Join(lines, "\n")
	best, bestFields := rune(0), 1
	for _, d := range delimiters {
		if !strings.ContainsRune(lines[0], d) {
			continue
		}
		cr := csv.NewReader(strings.NewReader(sample))
		cr.Comma = d
		cr.LazyQuotes = true
		// FieldsPerRecord 0 pins every record to the header's width.
		rows, err := cr.ReadAll()
		if err != nil || len(rows) < 2 || !isHeader(rows[0]) {
			continue
		}
		if n := len(rows[0]); n > bestFields {
			best, bestFields = d, n
		}
	}
	return best, best != 0
}

// isHeader rejects a first row that already carries data: a leading date,
// a numeric cell, or an empty row.
func isHeader(row []string) bool {
	blank := true
	for _, cell := range row {
		v := strings.TrimSpace(cell)
		if v == "" {
			continue
		}
		blank = false
		if isNumber(v) || isDate(v) {
			return false
		}
	}
	return !blank
}

// ---------------------------------------------------------------------------
// Column classification
// ---------------------------------------------------------------------------

var (
	criticalTokens    = []string{"id", "day", "dob", "nhs"}
	criticalFragments = []string{"date", "time", "name", "resident"}
	highFragments     = []string{"care", "health", "medical", "fluid"}
)

func (r *Reducer) classify(header string) (Importance, Strategy) {
	h := keywords.Normalize(strings.TrimSpace(header))
	if h == "" {
		return ImportanceLow, StrategyRemove
	}
	tokens := strings.FieldsFunc(h, func(c rune) bool { return !unicode.IsLetter(c) && !unicode.IsDigit(c) })
	for _, tok := range tokens {
		for _, want := range criticalTokens {
			if tok == want {
				return ImportanceCritical, StrategyKeepAll
			}
		}
	}
	for _, f := range criticalFragments {
		if strings.Contains(h, f) {
			return ImportanceCritical, StrategyKeepAll
		}
	}
	for _, f := range highFragments {
		if strings.Contains(h, f) {
			return ImportanceHigh, StrategySample
		}
	}
	if keywords.AnyMatch(r.care, h) {
		return ImportanceHigh, StrategySample
	}
	return ImportanceMedium, StrategySummarize
}

func inferType(data [][]string, col int) string {
	var values []string
	for _, row := range data {
		if len(values) == typeSampleRows {
			break
		}
		if col < len(row) {
			if v := strings.TrimSpace(row[col]); v != "" {
				values = append(values, v)
			}
		}
	}
	if len(values) == 0 {
		return "text"
	}
	if all(values, isNumber) {
		return "number"
	}
	if all(values, isDate) {
		return "date"
	}
	if all(values, isBool) {
		return "boolean"
	}
	return "text"
}

func all(values []string, pred func(string) bool) bool {
	for _, v := range values {
		if !pred(v) {
			return false
		}
	}
	return true
}

func isNumber(v string) bool {
	_, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
	return err == nil
}

func isDate(v string) bool {
	_, start, _, ok := evidence.FindDate(v)
	return ok && start == 0
}

func isBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "false", "yes", "no", "y", "n":
		return true
	}
	return false
}

func density(data [][]string, cols int) Density {
	if len(data) == 0 || cols == 0 {
		return DensityLow
	}
	filled := 0
	for _, row := range data {
		for i := 0; i < cols && i < len(row); i++ {
			if strings.TrimSpace(row[i]) != "" {
				filled++
			}
		}
	}
	frac := float64(filled) / float64(len(data)*cols)
	switch {
	case frac >= 0.8:
		return DensityHigh
	case frac >= 0.5:
		return DensityMedium
	default:
		return DensityLow
	}
}

// ---------------------------------------------------------------------------
// Reduction
// ---------------------------------------------------------------------------

// columnsToKeep returns the indices of keep_all and sample columns, falling
// back to critical or high columns, then to the first few columns.
func columnsToKeep(headers []string, p StructureProfile) []int {
	byName := make(map[string]Column, len(p.Columns))
	for _, c := range p.Columns {
		byName[c.Name] = c
	}
	lookup := func(i int) (Column, bool) {
		if i < len(p.Columns) && p.Columns[i].Name == headers[i] {
			return p.Columns[i], true
		}
		c, ok := byName[headers[i]]
		return c, ok
	}

	var keep []int
	for i := range headers {
		if c, ok := lookup(i); ok && (c.CompressionStrategy == StrategyKeepAll || c.CompressionStrategy == StrategySample) {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		for i := range headers {
			if c, ok := lookup(i); ok && (c.Importance == ImportanceCritical || c.Importance == ImportanceHigh) {
				keep = append(keep, i)
			}
		}
	}
	if len(keep) == 0 {
		for i := 0; i < min(fallbackCols, len(headers)); i++ {
			keep = append(keep, i)
		}
	}
	return keep
}

// SampleSize is the number of data rows kept from n at the given ratio.
func SampleSize(n int, ratio float64) int {
	return max(MinRows, int(float64(n)*ratio))
}

// sampleRows keeps SampleSize rows spaced evenly across data, always
// including the first and last.
func sampleRows(data [][]string, ratio float64) [][]string {
	n := len(data)
	target := SampleSize(n, ratio)
	if n <= target {
		return data
	}
	out := make([][]string, 0, target)
	for k := 0; k < target; k++ {
		out = append(out, data[k*(n-1)/(target-1)])
	}
	return out
}

func project(row []string, keep []int) []string {
	out := make([]string, len(keep))
	for j, i := range keep {
		if i < len(row) {
			out[j] = row[i]
		}
	}
	return out
}
