package calculator

import (
	"retention-markov/pkg/models"
)

// Analyze dérive le résumé d'un run complet (premier vs dernier mois).
// Les divisions par zéro ne font pas échouer l'analyse : la métrique concernée
// est simplement marquée invalide.
func Analyze(run models.SimulationRun) (models.AnalysisSummary, error) {
	first, ok := run.First()
	if !ok {
		return models.AnalysisSummary{}, models.ConfigError("nothing to analyze: empty run")
	}
	last, _ := run.Last()

	s := models.AnalysisSummary{
		InitialCustomers: first.TotalCustomers,
		FinalCustomers:   last.TotalCustomers,
		InitialRevenue:   first.MonthlyRevenue,
		FinalRevenue:     last.MonthlyRevenue,
		FastestGrowing:   models.NoShift,
		FastestShrinking: models.NoShift,
		FinalChurn:       last.ChurnRate,
	}

	s.CustomerGrowth = percentChange(first.TotalCustomers, last.TotalCustomers)
	if first.MonthlyRevenue != 0 {
		s.RevenueGrowth = models.Defined((last.MonthlyRevenue/first.MonthlyRevenue - 1) * 100)
	}
	if first.TotalCustomers != 0 && last.TotalCustomers != 0 && first.MonthlyRevenue != 0 {
		initialRPC := first.MonthlyRevenue / first.TotalCustomers
		finalRPC := last.MonthlyRevenue / last.TotalCustomers
		s.RevenuePerCustomerChange = models.Defined((finalRPC/initialRPC - 1) * 100)
	}

	for _, seg := range models.Segments() {
		if !seg.Active() {
			continue
		}
		g := percentChange(first.Distribution[seg], last.Distribution[seg])
		s.SegmentGrowth = append(s.SegmentGrowth, models.SegmentGrowth{Segment: seg, Growth: g})
		if !g.Valid {
			continue
		}
		// strictement supérieur : en cas d'égalité le premier segment l'emporte
		if g.Value > s.FastestGrowing.Value {
			s.FastestGrowing = models.SegmentShift{Name: seg.String(), Value: g.Value}
		}
		if g.Value < s.FastestShrinking.Value {
			s.FastestShrinking = models.SegmentShift{Name: seg.String(), Value: g.Value}
		}
	}

	if n := len(run.Records); n >= 2 {
		s.ChurnTrend = models.Defined(last.ChurnRate - run.Records[n-2].ChurnRate)
	}
	s.AnnualChurnImpact = last.MonthlyRevenue * (last.ChurnRate / 100) * 12
	return s, nil
}

// percentChange = (to - from) / from × 100, indéfini si from <= 0.
func percentChange(from, to float64) models.Metric {
	if from <= 0 {
		return models.Metric{}
	}
	return models.Defined((to - from) / from * 100)
}

// InflowByMonth estime les nouveaux clients entrés à chaque mois : mois 0 =
// effectif total, puis variation du total. Les perdus restent comptés dans le
// segment terminal, la variation du total ne reflète donc que les entrées
// (aux arrondis près).
func InflowByMonth(run models.SimulationRun) []float64 {
	out := make([]float64, len(run.Records))
	for i, rec := range run.Records {
		if i == 0 {
			out[i] = rec.TotalCustomers
			continue
		}
		out[i] = rec.TotalCustomers - run.Records[i-1].TotalCustomers
	}
	return out
}
