package calculator

import (
	"log"

	"retention-markov/pkg/models"
)

// Timeline possède une simulation linéaire : le run, ses points de rupture et
// les paramètres initiaux. Chaque mutation recalcule le résumé en entier.
// Un Timeline n'est pas prévu pour un usage concurrent.
type Timeline struct {
	projector *Projector
	params    models.Params

	run         models.SimulationRun
	breakpoints []models.ScenarioBreakpoint
	summary     models.AnalysisSummary
}

// Snapshot est une copie détenue par l'appelant de l'état d'un Timeline.
type Snapshot struct {
	Params      models.Params
	Run         models.SimulationRun
	Breakpoints []models.ScenarioBreakpoint
	Summary     models.AnalysisSummary
}

// NewTimeline lance la simulation initiale.
func NewTimeline(p *Projector, params models.Params) (*Timeline, error) {
	t := &Timeline{projector: p}
	if err := t.Start(params); err != nil {
		return nil, err
	}
	return t, nil
}

// RestoreTimeline reconstruit un Timeline à partir d'un état sauvegardé.
func RestoreTimeline(p *Projector, params models.Params, run models.SimulationRun, breakpoints []models.ScenarioBreakpoint) (*Timeline, error) {
	t := &Timeline{projector: p}
	if err := t.Restore(params, run, breakpoints); err != nil {
		return nil, err
	}
	return t, nil
}

// Start remplace entièrement la simulation par une nouvelle, construite à partir de params.
func (t *Timeline) Start(params models.Params) error {
	run, err := t.projector.Run(params)
	if err != nil {
		return err
	}
	summary, err := Analyze(run)
	if err != nil {
		return err
	}
	if params.StartDistribution != nil {
		d := *params.StartDistribution
		params.StartDistribution = &d
	}
	t.params = params
	t.run = run
	t.breakpoints = []models.ScenarioBreakpoint{{Month: params.StartMonth, Scenario: params.Scenario}}
	t.summary = summary
	return nil
}

// Reset relance les paramètres initiaux et oublie toutes les extensions.
func (t *Timeline) Reset() error {
	return t.Start(t.params)
}

// Extend ajoute months mois sous scenario. Le flux de nouveaux clients reste
// celui des paramètres initiaux. En cas d'erreur, le Timeline n'est pas modifié.
func (t *Timeline) Extend(months int, scenario string) (models.ScenarioBreakpoint, error) {
	run, bp, err := t.projector.Extend(t.run, t.params.NewCustomersPerMonth, months, scenario)
	if err != nil {
		return models.ScenarioBreakpoint{}, err
	}
	summary, err := Analyze(run)
	if err != nil {
		return models.ScenarioBreakpoint{}, err
	}
	t.run = run
	t.breakpoints = append(t.breakpoints, bp)
	t.summary = summary
	if t.projector.Verbose {
		log.Printf("[INFO] timeline now %d months, %d scenarios", run.Len(), len(t.breakpoints))
	}
	return bp, nil
}

// Restore recharge un état sauvegardé (run et points de rupture) sans recalcul de la projection.
func (t *Timeline) Restore(params models.Params, run models.SimulationRun, breakpoints []models.ScenarioBreakpoint) error {
	summary, err := Analyze(run)
	if err != nil {
		return err
	}
	t.params = params
	t.run = run.Clone()
	t.breakpoints = append([]models.ScenarioBreakpoint(nil), breakpoints...)
	t.summary = summary
	return nil
}

// Snapshot renvoie des copies indépendantes de l'état courant.
func (t *Timeline) Snapshot() Snapshot {
	summary := t.summary
	summary.SegmentGrowth = append([]models.SegmentGrowth(nil), t.summary.SegmentGrowth...)
	return Snapshot{
		Params:      t.params,
		Run:         t.run.Clone(),
		Breakpoints: append([]models.ScenarioBreakpoint(nil), t.breakpoints...),
		Summary:     summary,
	}
}

// Run renvoie une copie du run courant.
func (t *Timeline) Run() models.SimulationRun { return t.run.Clone() }

// Summary renvoie le dernier résumé calculé.
func (t *Timeline) Summary() models.AnalysisSummary { return t.Snapshot().Summary }

// Breakpoints renvoie les points de rupture, par mois croissant.
func (t *Timeline) Breakpoints() []models.ScenarioBreakpoint {
	return append([]models.ScenarioBreakpoint(nil), t.breakpoints...)
}
