package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"retention-markov/pkg/calculator"
	"retention-markov/pkg/models"
	"retention-markov/pkg/scenarios"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Options règle la mise en forme d'un rapport.
type Options struct {
	Locale      language.Tag
	Breakpoints []models.ScenarioBreakpoint
	SteadyState *scenarios.SteadyState // équilibre du dernier scénario, optionnel
}

func (o Options) printer() *message.Printer {
	tag := o.Locale
	if tag == language.Und {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

// WriteAnalysis écrit l'analyse des changements entre premier et dernier mois.
func WriteAnalysis(w io.Writer, s models.AnalysisSummary, opts Options) error {
	p := opts.printer()
	var b strings.Builder

	b.WriteString("CHANGE ANALYSIS\n")
	b.WriteString(strings.Repeat("=", 30) + "\n\n")

	if len(opts.Breakpoints) > 0 {
		b.WriteString("SCENARIOS:\n")
		for _, bp := range opts.Breakpoints {
			p.Fprintf(&b, "• from month %d: %s\n", bp.Month, bp.Scenario)
		}
		b.WriteString("\n")
	}

	b.WriteString("SUMMARY METRICS:\n")
	p.Fprintf(&b, "• Customers: %.0f → %.0f\n", s.InitialCustomers, s.FinalCustomers)
	p.Fprintf(&b, "• Monthly revenue: $%.2f → $%.2f\n\n", s.InitialRevenue, s.FinalRevenue)

	b.WriteString("OVERALL PERFORMANCE:\n")
	b.WriteString("• Customer base: " + trend(p, s.CustomerGrowth, "Growing at", "Shrinking at", " over period") + "\n")
	b.WriteString("• Revenue trend: " + trend(p, s.RevenueGrowth, "Positive at", "Negative at", "") + "\n")
	b.WriteString("• Revenue per customer: " + trend(p, s.RevenuePerCustomerChange, "Increased by", "Decreased by", "") + "\n\n")

	b.WriteString("SEGMENT SHIFTS:\n")
	if s.FastestGrowing.Name != models.NoShift.Name {
		p.Fprintf(&b, "• Fastest growing: %s (+%.1f%%)\n", s.FastestGrowing.Name, s.FastestGrowing.Value)
	}
	if s.FastestShrinking.Name != models.NoShift.Name {
		p.Fprintf(&b, "• Fastest declining: %s (%.1f%%)\n", s.FastestShrinking.Name, s.FastestShrinking.Value)
	}
	for _, g := range s.SegmentGrowth {
		if g.Growth.Valid {
			p.Fprintf(&b, "  %s: %+.2f%%\n", g.Segment, g.Growth.Value)
		} else {
			p.Fprintf(&b, "  %s: n/a (no customers at start)\n", g.Segment)
		}
	}

	b.WriteString("\nCHURN ANALYSIS:\n")
	p.Fprintf(&b, "• Current churn rate: %.2f%%\n", s.FinalChurn)
	if s.ChurnTrend.Valid {
		dir := "Decelerating"
		if s.ChurnTrend.Value > 0 {
			dir = "Accelerating"
		}
		p.Fprintf(&b, "• Churn rate trend: %s (%.2f%% change)\n", dir, math.Abs(s.ChurnTrend.Value))
	} else {
		b.WriteString("• Churn rate trend: undefined (single month)\n")
	}
	p.Fprintf(&b, "• Projected annual impact: $%.2f revenue at risk\n", s.AnnualChurnImpact)

	if ss := opts.SteadyState; ss != nil {
		b.WriteString("\nLONG-RUN ACTIVE MIX:\n")
		for i, share := range ss.Shares {
			p.Fprintf(&b, "• %s: %.1f%%\n", models.Segment(i), share*100)
		}
		p.Fprintf(&b, "• Monthly active retention: %.1f%%\n", ss.Rate*100)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func trend(p *message.Printer, m models.Metric, up, down, suffix string) string {
	if !m.Valid {
		return "undefined (no baseline)"
	}
	word := down
	if m.Value > 0 {
		word = up
	}
	return p.Sprintf("%s %.1f%%%s", word, math.Abs(m.Value), suffix)
}

// WriteTable écrit la progression mensuelle en colonnes alignées. La colonne
// New donne les entrées estimées du mois (l'effectif total au mois 0).
func WriteTable(w io.Writer, run models.SimulationRun, labels []string, opts Options) error {
	if labels != nil && len(labels) != run.Len() {
		return fmt.Errorf("labels: %d for %d months", len(labels), run.Len())
	}
	p := opts.printer()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := "Month\t"
	if labels != nil {
		header += "Period\t"
	}
	for _, s := range models.Segments() {
		header += s.String() + "\t"
	}
	header += "Total\tNew\tRevenue\tChurn\t\n"
	if _, err := io.WriteString(tw, header); err != nil {
		return err
	}
	inflow := calculator.InflowByMonth(run)
	for i, rec := range run.Records {
		line := p.Sprintf("%d\t", rec.Month)
		if labels != nil {
			line += labels[i] + "\t"
		}
		for _, v := range rec.Distribution {
			line += p.Sprintf("%.0f\t", v)
		}
		line += p.Sprintf("%.0f\t%.0f\t$%.2f\t%.2f%%\t\n", rec.TotalCustomers, inflow[i], rec.MonthlyRevenue, rec.ChurnRate)
		if _, err := io.WriteString(tw, line); err != nil {
			return err
		}
	}
	return tw.Flush()
}
