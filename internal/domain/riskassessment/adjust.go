package riskassessment

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidAdjustment is wrapped by every ApplyAdjustments rejection.
var ErrInvalidAdjustment = errors.New("invalid manual adjustment")

// ApplyAdjustments returns a copy of report with manager-adjusted scores.
// Each adjusted instrument is re-banded with its own thresholds and the
// summary is recomputed. The input report is not modified.
func (e *Engine) ApplyAdjustments(report AssessmentReport, adjustments map[string]ManualAdjustment) (AssessmentReport, error) {
	keys := make([]string, 0, len(adjustments))
	for k := range adjustments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		adj := adjustments[key]
		res, ok := report.Assessments.Get(key)
		if !ok {
			return AssessmentReport{}, fmt.Errorf("%w: unknown instrument %q", ErrInvalidAdjustment, key)
		}
		if res.Failed() {
			return AssessmentReport{}, fmt.Errorf("%w: %s could not be assessed", ErrInvalidAdjustment, key)
		}
		if adj.OriginalScore != res.Score {
			return AssessmentReport{}, fmt.Errorf("%w: %s original score %d does not match reported score %d",
				ErrInvalidAdjustment, key, adj.OriginalScore, res.Score)
		}
		if adj.AdjustedScore < 0 {
			return AssessmentReport{}, fmt.Errorf("%w: %s adjusted score must not be negative", ErrInvalidAdjustment, key)
		}
		if res.MaxScore != nil && adj.AdjustedScore > *res.MaxScore {
			return AssessmentReport{}, fmt.Errorf("%w: %s adjusted score %d exceeds maximum %d",
				ErrInvalidAdjustment, key, adj.AdjustedScore, *res.MaxScore)
		}
		if _, ok := e.Instrument(key); !ok {
			return AssessmentReport{}, fmt.Errorf("%w: no scoring rules for %q", ErrInvalidAdjustment, key)
		}
	}

	out := report
	out.Assessments = make(Assessments, len(report.Assessments))
	out.ManualAdjustments = make(map[string]ManualAdjustment, len(report.ManualAdjustments)+len(adjustments))
	for k, v := range report.ManualAdjustments {
		out.ManualAdjustments[k] = v
	}

	for i, res := range report.Assessments {
		adj, ok := adjustments[res.Key]
		if !ok {
			out.Assessments[i] = res
			continue
		}
		inst, _ := e.Instrument(res.Key)
		band := inst.Classify(adj.AdjustedScore)

		res.Score = adj.AdjustedScore
		res.RiskLevel = band.Level
		res.Recommendations = band.Recommendations
		note := fmt.Sprintf("Score adjusted by care manager from %d to %d", adj.OriginalScore, adj.AdjustedScore)
		if adj.Reason != "" {
			note += ": " + adj.Reason
		}
		res.Evidence = append(append([]string{}, res.Evidence...), note)
		out.Assessments[i] = res
		out.ManualAdjustments[res.Key] = adj
	}
	out.Summary = summarize(out.Assessments)
	return out, nil
}
