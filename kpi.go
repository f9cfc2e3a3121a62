package main

import (
	"fmt"
	"math"
	"os"
	"time"

	"retention-markov/pkg/calculator"
	"retention-markov/pkg/config"
	"retention-markov/pkg/models"
	"retention-markov/pkg/report"
	"retention-markov/pkg/scenarios"

	"github.com/fatih/color"
)

var (
	good = color.New(color.FgGreen).SprintFunc()
	bad  = color.New(color.FgRed).SprintFunc()
)

// growth formate une variation en % avec une flèche colorée.
func growth(m models.Metric) string {
	if !m.Valid {
		return "undefined"
	}
	s := fmt.Sprintf("%.2f%%", math.Abs(m.Value))
	if m.Value >= 0 {
		return good("↑ " + s)
	}
	return bad("↓ " + s)
}

// churnTrend : une hausse du churn est mauvaise.
func churnTrend(m models.Metric) string {
	if !m.Valid {
		return "undefined"
	}
	s := fmt.Sprintf("%.2f%%", math.Abs(m.Value))
	if m.Value <= 0 {
		return good("↓ " + s)
	}
	return bad("↑ " + s)
}

func printSnapshot(cfg config.Config, catalog *scenarios.Catalog, snap calculator.Snapshot, anchor *time.Time) error {
	s := snap.Summary
	fmt.Printf("Customers  %.0f  %s\n", s.FinalCustomers, growth(s.CustomerGrowth))
	fmt.Printf("Revenue    %.2f  %s\n", s.FinalRevenue, growth(s.RevenueGrowth))
	fmt.Printf("Churn      %.2f%%  %s\n", s.FinalChurn, churnTrend(s.ChurnTrend))
	fmt.Printf("At risk    %.2f / year\n\n", s.AnnualChurnImpact)

	var labels []string
	if anchor != nil {
		labels = calculator.MonthLabels(*anchor, snap.Run)
	}
	opts := report.Options{Locale: cfg.LocaleTag(), Breakpoints: snap.Breakpoints}
	if n := len(snap.Breakpoints); n > 0 {
		if ss, err := catalog.SteadyStateOf(snap.Breakpoints[n-1].Scenario); err == nil {
			opts.SteadyState = &ss
		}
	}
	if err := report.WriteTable(os.Stdout, snap.Run, labels, opts); err != nil {
		return err
	}
	fmt.Println()
	return report.WriteAnalysis(os.Stdout, s, opts)
}
