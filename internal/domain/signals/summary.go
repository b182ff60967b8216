package signals

import (
	"fmt"
	"math"

	"github.com/ehr/careassess/internal/platform/keywords"
)

// dailySeries accumulates per-day values keeping first-seen day order.
type dailySeries struct {
	order  []string
	sums   map[string]float64
	counts map[string]int
}

func newDailySeries() *dailySeries {
	return &dailySeries{sums: map[string]float64{}, counts: map[string]int{}}
}

func (d *dailySeries) add(date string, v float64, ignoreZero bool) {
	if ignoreZero && v == 0 {
		return
	}
	if _, ok := d.sums[date]; !ok {
		d.order = append(d.order, date)
	}
	d.sums[date] += v
	d.counts[date]++
}

// values returns one value per day: the day's total, or its mean when mean is
// set.
func (d *dailySeries) values(mean bool) []float64 {
	out := make([]float64, 0, len(d.order))
	for _, day := range d.order {
		v := d.sums[day]
		if mean {
			v /= float64(d.counts[day])
		}
		out = append(out, v)
	}
	return out
}

// Summarize computes daily averages and alert messages from extracted
// signals, using the alert thresholds and averaging policy of table.
func Summarize(s StructuredSignals, table *keywords.Table) Summary {
	stats := table.Stats
	bowel, water, food := newDailySeries(), newDailySeries(), newDailySeries()
	for _, b := range s.BowelMovements {
		bowel.add(b.Date, float64(b.Count), stats.IgnoreZeroValues)
	}
	for _, w := range s.WaterIntake {
		water.add(w.Date, float64(w.AmountML), stats.IgnoreZeroValues)
	}
	for _, f := range s.FoodIntake {
		food.add(f.Date, float64(f.Percentage), stats.IgnoreZeroValues)
	}

	sum := Summary{
		Bowel:         summarizeCategory(bowel.values(false), stats.MinDays, stats.Decimals["bowel"]),
		Water:         summarizeCategory(water.values(false), stats.MinDays, stats.Decimals["water"]),
		Food:          summarizeCategory(food.values(true), stats.MinDays, stats.Decimals["food"]),
		IncidentCount: len(s.Incidents),
		Alerts:        []string{},
	}
	for _, inc := range s.Incidents {
		if inc.Severity == SeverityHigh {
			sum.HighSeverityIncidents++
		}
	}

	a := table.Alerts
	if v := sum.Bowel.DailyAverage; v != nil {
		switch {
		case *v < a.BowelLow:
			sum.Alerts = append(sum.Alerts, fmt.Sprintf("Low bowel frequency: %g per day (below %g)", *v, a.BowelLow))
		case *v > a.BowelHigh:
			sum.Alerts = append(sum.Alerts, fmt.Sprintf("High bowel frequency: %g per day (above %g)", *v, a.BowelHigh))
		}
	}
	if v := sum.Water.DailyAverage; v != nil {
		switch {
		case *v < a.WaterLow:
			sum.Alerts = append(sum.Alerts, fmt.Sprintf("Low fluid intake: %g ml per day (below %g ml)", *v, a.WaterLow))
		case *v > a.WaterHigh:
			sum.Alerts = append(sum.Alerts, fmt.Sprintf("High fluid intake: %g ml per day (above %g ml)", *v, a.WaterHigh))
		}
	}
	if v := sum.Food.DailyAverage; v != nil && *v < a.FoodLow {
		sum.Alerts = append(sum.Alerts, fmt.Sprintf("Low food intake: %g%% average (below %g%%)", *v, a.FoodLow))
	}
	if sum.HighSeverityIncidents > 0 {
		sum.Alerts = append(sum.Alerts, fmt.Sprintf("%d high severity incident(s) recorded", sum.HighSeverityIncidents))
	}
	return sum
}

func summarizeCategory(daily []float64, minDays, decimals int) CategorySummary {
	cs := CategorySummary{Days: len(daily)}
	if len(daily) == 0 || len(daily) < minDays {
		cs.Note = fmt.Sprintf("insufficient data: %d day(s) recorded, %d required", len(daily), minDays)
		return cs
	}
	total := 0.0
	for _, v := range daily {
		total += v
	}
	avg := round(total/float64(len(daily)), decimals)
	cs.DailyAverage = &avg
	return cs
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
