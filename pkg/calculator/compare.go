package calculator

import (
	"fmt"
	"log"

	"retention-markov/pkg/models"

	"github.com/schollz/progressbar/v3"
)

// ScenarioResult regroupe la projection et l'analyse d'un scénario.
type ScenarioResult struct {
	Scenario string
	Run      models.SimulationRun
	Summary  models.AnalysisSummary
}

// CompareScenarios projette les mêmes paramètres sous chaque scénario du catalogue,
// dans l'ordre du catalogue. params.Scenario est ignoré.
func (p *Projector) CompareScenarios(params models.Params, showProgress bool) ([]ScenarioResult, error) {
	names := p.catalog().Names()
	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.Default(int64(len(names)), "scenarios")
	}

	results := make([]ScenarioResult, 0, len(names))
	for _, name := range names {
		params.Scenario = name
		run, err := p.Run(params)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", name, err)
		}
		summary, err := Analyze(run)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", name, err)
		}
		results = append(results, ScenarioResult{Scenario: name, Run: run, Summary: summary})

		if bar != nil {
			_ = bar.Add(1)
		}
		if p.Verbose {
			log.Printf("[INFO] %s -> revenue=%.2f growth=%s churn=%.2f%%",
				name, summary.FinalRevenue, summary.RevenueGrowth, summary.FinalChurn)
		}
	}
	return results, nil
}
