// Package riskassessment scores care-plan and daily-log text against eight
// care-home risk instruments. Every score carries the text that produced it,
// and items without evidence are left for a care manager to complete.
package riskassessment

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/careassess/internal/platform/evidence"
	"github.com/ehr/careassess/internal/platform/keywords"
)

// DefaultInstruments returns the instruments in report declaration order.
func DefaultInstruments() []Instrument {
	return []Instrument{
		NewFallsScreening(),
		NewPreliminaryPressureUlcer(),
		NewMUST(),
		NewWaterlow(),
		NewAbbeyPain(),
		NewCornellDepression(),
		NewMovingHandling(),
		NewPEEP(),
	}
}

// Engine runs every instrument over one input. It holds no per-run state and
// may be shared between goroutines.
type Engine struct {
	table       *keywords.Table
	matcher     *evidence.Matcher
	instruments []Instrument
	now         func() time.Time
	logger      zerolog.Logger
	observer    Observer
}

// Observer is told the outcome of every instrument run.
type Observer interface {
	ObserveInstrument(key, riskLevel string, failed bool, elapsed time.Duration)
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMatcher(m *evidence.Matcher) Option {
	return func(e *Engine) { e.matcher = m }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithInstruments replaces the default instrument list.
func WithInstruments(instruments ...Instrument) Option {
	return func(e *Engine) { e.instruments = instruments }
}

func NewEngine(table *keywords.Table, opts ...Option) *Engine {
	if table == nil {
		table = keywords.Default()
	}
	e := &Engine{
		table:       table,
		matcher:     evidence.NewMatcher(evidence.DefaultMaxItems),
		instruments: DefaultInstruments(),
		now:         time.Now,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Instrument looks up an instrument by key.
func (e *Engine) Instrument(key string) (Instrument, bool) {
	for _, inst := range e.instruments {
		if inst.Key() == key {
			return inst, true
		}
	}
	return nil, false
}

// Run scores every instrument. It never fails: an instrument that returns an
// error or panics yields an error result and the remaining instruments still
// run.
func (e *Engine) Run(in Input) AssessmentReport {
	today := e.now()
	subject := NewSubject(in, e.table, e.matcher, today)

	report := AssessmentReport{
		ID:                  uuid.New().String(),
		AssessmentDate:      today.Format(DateLayout),
		KeywordTableVersion: e.table.Version,
		Assessments:         make(Assessments, 0, len(e.instruments)),
	}
	for _, inst := range e.instruments {
		start := time.Now()
		res, err := e.score(inst, subject)
		if err != nil {
			e.logger.Warn().
				Err(err).
				Str("report_id", report.ID).
				Str("instrument", inst.Key()).
				Msg("instrument failed")
			res = errorResult(inst, err, today)
		}
		res.Key = inst.Key()
		report.Assessments = append(report.Assessments, res)
		if e.observer != nil {
			e.observer.ObserveInstrument(res.Key, res.RiskLevel, res.Failed(), time.Since(start))
		}
	}
	report.Summary = summarize(report.Assessments)

	e.logger.Debug().
		Str("report_id", report.ID).
		Int("high", report.Summary.HighRiskCount).
		Int("medium", report.Summary.MediumRiskCount).
		Int("low", report.Summary.LowRiskCount).
		Int("errors", report.Summary.ErrorCount).
		Msg("assessment complete")
	return report
}

func (e *Engine) score(inst Instrument, s *Subject) (res InstrumentResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			var stack [4096]byte
			n := runtime.Stack(stack[:], false)
			e.logger.Error().
				Str("instrument", inst.Key()).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(stack[:n])).
				Msg("panic recovered")
			err = fmt.Errorf("%s: panic: %v", inst.Key(), r)
		}
	}()
	return inst.Score(s)
}

func errorResult(inst Instrument, err error, today time.Time) InstrumentResult {
	return InstrumentResult{
		Key:             inst.Key(),
		ToolName:        inst.ToolName(),
		Items:           []FormItem{},
		MaxScore:        inst.MaxScore(),
		RiskLevel:       RiskLevelUnableToAssess,
		Evidence:        []string{},
		MissingData:     []string{"Assessment could not be calculated: " + err.Error()},
		Recommendations: []string{"Complete this assessment manually"},
		NextReviewDate:  today.Format(DateLayout),
		Error:           err.Error(),
	}
}

type bucket int

const (
	bucketLow bucket = iota
	bucketMedium
	bucketHigh
)

func bucketOf(riskLevel string) bucket {
	l := strings.ToLower(riskLevel)
	switch {
	case strings.Contains(l, "high"), strings.Contains(l, "severe"):
		return bucketHigh
	case strings.Contains(l, "medium"), strings.Contains(l, "moderate"):
		return bucketMedium
	default:
		return bucketLow
	}
}

func summarize(results Assessments) Summary {
	sum := Summary{PriorityAlerts: []PriorityAlert{}}
	for _, r := range results {
		if r.Failed() {
			sum.ErrorCount++
			continue
		}
		switch bucketOf(r.RiskLevel) {
		case bucketHigh:
			sum.HighRiskCount++
			if r.Score != 0 {
				sum.PriorityAlerts = append(sum.PriorityAlerts, PriorityAlert{
					Tool:      r.Key,
					Score:     r.Score,
					RiskLevel: r.RiskLevel,
					Alert:     fmt.Sprintf("HIGH RISK: %s score %d", r.ToolName, r.Score),
				})
			}
		case bucketMedium:
			sum.MediumRiskCount++
		default:
			sum.LowRiskCount++
		}
	}
	return sum
}
