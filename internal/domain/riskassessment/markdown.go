package riskassessment

import (
	"fmt"
	"strconv"
	"strings"
)

// RenderMarkdown formats a report for inclusion in a care plan.
func RenderMarkdown(r AssessmentReport) string {
	var b strings.Builder

	b.WriteString("# Risk Assessment Summary\n\n")
	fmt.Fprintf(&b, "**Assessment Date:** %s\n", r.AssessmentDate)
	if r.ID != "" {
		fmt.Fprintf(&b, "**Report ID:** %s\n", r.ID)
	}
	if r.KeywordTableVersion != "" {
		fmt.Fprintf(&b, "**Keyword Table Version:** %s\n", r.KeywordTableVersion)
	}
	b.WriteString("\n")

	if len(r.ManualAdjustments) > 0 {
		b.WriteString("## Manager Adjustments Applied\n\n")
		b.WriteString("*The following scores have been manually reviewed and adjusted by the care manager based on observation of the resident:*\n\n")
		for _, res := range r.Assessments {
			adj, ok := r.ManualAdjustments[res.Key]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "- **%s:** Score adjusted from %d to %d\n", res.ToolName, adj.OriginalScore, adj.AdjustedScore)
			if adj.Reason != "" {
				fmt.Fprintf(&b, "  - *Manager's reasoning:* %s\n", adj.Reason)
			}
		}
		b.WriteString("\n")
	}

	s := r.Summary
	b.WriteString("## Risk Overview\n\n")
	fmt.Fprintf(&b, "- High Risk Areas: %d\n", s.HighRiskCount)
	fmt.Fprintf(&b, "- Medium Risk Areas: %d\n", s.MediumRiskCount)
	fmt.Fprintf(&b, "- Low Risk Areas: %d\n", s.LowRiskCount)
	if s.ErrorCount > 0 {
		fmt.Fprintf(&b, "- Unable to Assess: %d\n", s.ErrorCount)
	}
	b.WriteString("\n")

	if len(s.PriorityAlerts) > 0 {
		b.WriteString("## Priority Alerts\n\n")
		for _, a := range s.PriorityAlerts {
			fmt.Fprintf(&b, "- %s (%s)\n", a.Alert, a.RiskLevel)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Detailed Risk Assessments\n\n")
	var failed []InstrumentResult
	for _, res := range r.Assessments {
		if res.Failed() {
			failed = append(failed, res)
			continue
		}
		renderResult(&b, res)
	}

	if len(failed) > 0 {
		b.WriteString("## Unable to Assess\n\n")
		for _, res := range failed {
			fmt.Fprintf(&b, "- **%s:** %s\n", res.ToolName, res.Error)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderResult(b *strings.Builder, res InstrumentResult) {
	maxScore := "Variable"
	if res.MaxScore != nil {
		maxScore = strconv.Itoa(*res.MaxScore)
	}
	fmt.Fprintf(b, "### %s\n\n", res.ToolName)
	fmt.Fprintf(b, "**Score:** %d/%s - **%s**\n", res.Score, maxScore, res.RiskLevel)
	fmt.Fprintf(b, "**Achievable maximum from available evidence:** %d\n\n", res.EffectiveMaxScore)

	if len(res.Items) > 0 {
		b.WriteString("| Item | Value | Range | Confidence | Evidence |\n")
		b.WriteString("|------|-------|-------|------------|----------|\n")
		for _, it := range res.Items {
			value := "*manager input required*"
			if it.DetectedValue != nil {
				value = strconv.Itoa(*it.DetectedValue)
			}
			fmt.Fprintf(b, "| %s | %s | %d-%d | %s | %s |\n",
				cell(it.Name), value, it.ScoreRange.Min, it.ScoreRange.Max, it.Confidence, cell(it.Evidence))
		}
		b.WriteString("\n")
	}

	writeList(b, "Evidence", res.Evidence)
	writeList(b, "Missing Data", res.MissingData)
	writeList(b, "Recommendations", res.Recommendations)
	fmt.Fprintf(b, "**Next Review:** %s\n\n", res.NextReviewDate)
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s:**\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

// cell escapes text for a Markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
