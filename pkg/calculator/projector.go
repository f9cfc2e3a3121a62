package calculator

import (
	"fmt"
	"log"
	"math"

	"retention-markov/pkg/models"
	"retention-markov/pkg/scenarios"
)

// DefaultSplit répartit initialCustomers quand aucune distribution n'est fournie :
// 25 % dans chacun des quatre segments actifs, rien dans le segment terminal.
var DefaultSplit = models.Distribution{0.25, 0.25, 0.25, 0.25, 0}

// maxPrealloc borne la capacité réservée d'avance, append fait le reste.
const maxPrealloc = 1024

// Projector fait avancer une distribution mois par mois selon un scénario.
// Il ne garde aucun état entre deux appels.
type Projector struct {
	Catalog  *scenarios.Catalog
	Rounding models.RoundingMode
	Verbose  bool
}

// NewProjector construit un projecteur sur le catalogue donné (arrondi mensuel par défaut).
func NewProjector(c *scenarios.Catalog) *Projector {
	if c == nil {
		c = scenarios.Default()
	}
	return &Projector{Catalog: c, Rounding: models.RoundWhole}
}

// Run simule params.Months mois et renvoie params.Months+1 enregistrements,
// le premier étant la distribution de départ (churn = 0).
func (p *Projector) Run(params models.Params) (models.SimulationRun, error) {
	if err := params.Validate(); err != nil {
		return models.SimulationRun{}, err
	}
	scenario, err := p.catalog().Lookup(params.Scenario)
	if err != nil {
		return models.SimulationRun{}, err
	}

	counts := p.startDistribution(params)
	records := make([]models.MonthlyRecord, 0, recordCap(params.Months))
	records = append(records, p.record(params.StartMonth, counts, 0))

	inflow := p.inflow(params.NewCustomersPerMonth)
	for m := 1; m <= params.Months; m++ {
		prev := counts
		counts = p.round(Step(prev, scenario.Matrix, inflow))
		rec := p.record(params.StartMonth+m, counts, ChurnRate(prev, counts))
		records = append(records, rec)

		if p.Verbose {
			log.Printf("[DEBUG] %s month=%d total=%.0f revenue=%.2f churn=%.2f%%",
				scenario.Name, rec.Month, rec.TotalCustomers, rec.MonthlyRevenue, rec.ChurnRate)
		}
	}
	if p.Verbose {
		last := records[len(records)-1]
		log.Printf("[INFO] run %q months=%d -> total=%.0f revenue=%.2f",
			scenario.Name, params.Months, last.TotalCustomers, last.MonthlyRevenue)
	}
	return models.SimulationRun{Records: records}, nil
}

// Extend prolonge run de months mois avec un nouveau scénario. Le run d'origine
// n'est pas modifié : le résultat est une copie à laquelle sont ajoutés les mois
// last+1..last+months, et le point de rupture est placé à last+1.
func (p *Projector) Extend(run models.SimulationRun, newCustomersPerMonth float64, months int, scenario string) (models.SimulationRun, models.ScenarioBreakpoint, error) {
	last, ok := run.Last()
	if !ok {
		return models.SimulationRun{}, models.ScenarioBreakpoint{}, models.ConfigError("nothing to extend: empty run")
	}
	if months <= 0 {
		return models.SimulationRun{}, models.ScenarioBreakpoint{}, models.ConfigError("additional months = %d", months)
	}

	start := last.Distribution
	sub, err := p.Run(models.Params{
		StartDistribution:    &start,
		NewCustomersPerMonth: newCustomersPerMonth,
		Months:               months,
		Scenario:             scenario,
		StartMonth:           last.Month,
	})
	if err != nil {
		return models.SimulationRun{}, models.ScenarioBreakpoint{}, fmt.Errorf("extend: %w", err)
	}

	// sub.Records[0] duplique last (churn remis à 0) : on garde l'original.
	out := make([]models.MonthlyRecord, 0, len(run.Records)+recordCap(months)-1)
	out = append(out, run.Records...)
	out = append(out, sub.Records[1:]...)

	bp := models.ScenarioBreakpoint{Month: last.Month + 1, Scenario: scenario}
	if p.Verbose {
		log.Printf("[INFO] extend at month=%d scenario=%q months=%d", bp.Month, scenario, months)
	}
	return models.SimulationRun{Records: out}, bp, nil
}

// Step applique la matrice à prev puis ajoute le flux de nouveaux clients (sans arrondi).
func Step(prev models.Distribution, m models.TransitionMatrix, inflow models.Distribution) models.Distribution {
	var next models.Distribution
	for i := range prev {
		for j := range next {
			next[j] += prev[i] * m[i][j]
		}
	}
	for j := range next {
		next[j] += inflow[j]
	}
	return next
}

// ChurnRate = hausse du segment terminal / actifs du mois précédent × 100, ou 0 sans actifs.
// Seuls les nouveaux perdus nets sont comptés : un client qui sort et rentre dans le
// même intervalle n'apparaît pas.
func ChurnRate(prev, cur models.Distribution) float64 {
	active := prev.ActiveTotal()
	if active <= 0 {
		return 0
	}
	lost := cur[models.Terminal] - prev[models.Terminal]
	return lost / active * 100
}

func (p *Projector) startDistribution(params models.Params) models.Distribution {
	if params.StartDistribution != nil {
		return *params.StartDistribution
	}
	var d models.Distribution
	for i, share := range DefaultSplit {
		d[i] = share * params.InitialCustomers
		if p.Rounding == models.RoundWhole {
			d[i] = math.Trunc(d[i])
		}
	}
	return d
}

func (p *Projector) inflow(perMonth float64) models.Distribution {
	var d models.Distribution
	for i, share := range p.catalog().NewCustomerDistribution() {
		d[i] = perMonth * share
	}
	return d
}

// round applique l'arrondi mensuel (demi vers pair, comme l'outil historique).
func (p *Projector) round(d models.Distribution) models.Distribution {
	if p.Rounding != models.RoundWhole {
		return d
	}
	for i := range d {
		d[i] = math.RoundToEven(d[i])
	}
	return d
}

func (p *Projector) record(month int, d models.Distribution, churn float64) models.MonthlyRecord {
	return models.MonthlyRecord{
		Month:          month,
		Distribution:   d,
		TotalCustomers: d.Total(),
		MonthlyRevenue: p.catalog().RevenueOf(d),
		ChurnRate:      churn,
	}
}

// catalog renvoie le catalogue du projecteur, celui par défaut si absent.
func (p *Projector) catalog() *scenarios.Catalog {
	if p.Catalog == nil {
		return scenarios.Default()
	}
	return p.Catalog
}

// recordCap renvoie la capacité initiale pour months mois plus le mois 0.
func recordCap(months int) int {
	return min(months, maxPrealloc) + 1
}
