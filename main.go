package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"retention-markov/pkg/calculator"
	"retention-markov/pkg/config"
	"retention-markov/pkg/database"
	"retention-markov/pkg/models"
	"retention-markov/pkg/report"
	"retention-markov/pkg/scenarios"
)

const usage = `Usage: retention-markov <command> [flags]

Commands:
  run        projette une simulation (et ses extensions -extend)
  extend     prolonge un run sauvegardé (-id) avec un nouveau scénario
  show       affiche un run sauvegardé
  list       liste les runs sauvegardés
  compare    compare tous les scénarios avec les mêmes paramètres
  scenarios  liste le catalogue de scénarios`

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if len(os.Args) < 2 {
		log.Fatal(usage)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	cmd, args := os.Args[1], os.Args[2:]
	ctx := context.Background()
	switch cmd {
	case "run":
		err = cmdRun(ctx, cfg, args)
	case "extend":
		err = cmdExtend(ctx, cfg, args)
	case "show":
		err = cmdShow(ctx, cfg, args)
	case "list":
		err = cmdList(ctx, cfg, args)
	case "compare":
		err = cmdCompare(cfg, args)
	case "scenarios":
		err = cmdScenarios(cfg)
	default:
		log.Fatalf("commande inconnue %q\n%s", cmd, usage)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

// commonFlags regroupe les flags partagés par run et compare.
type commonFlags struct {
	customers  *float64
	newPerMo   *float64
	months     *int
	scenario   *string
	rounding   *string
	startMonth *string
	verbose    *bool
}

func addCommonFlags(fs *flag.FlagSet, cfg config.Config) commonFlags {
	return commonFlags{
		customers:  fs.Float64("customers", cfg.InitialCustomers, "Clients initiaux (répartis 25 % sur les 4 segments actifs)"),
		newPerMo:   fs.Float64("new", cfg.NewCustomersPerMonth, "Nouveaux clients par mois"),
		months:     fs.Int("months", cfg.Months, "Nombre de mois simulés"),
		scenario:   fs.String("scenario", cfg.Scenario, "Scénario initial"),
		rounding:   fs.String("rounding", cfg.Rounding, "Arrondi mensuel: whole | none"),
		startMonth: fs.String("start_month", "", startMonthUsage),
		verbose:    fs.Bool("v", cfg.Verbose, "Mode verbeux"),
	}
}

func (f commonFlags) params() models.Params {
	return models.Params{
		InitialCustomers:     *f.customers,
		NewCustomersPerMonth: *f.newPerMo,
		Months:               *f.months,
		Scenario:             *f.scenario,
	}
}

func (f commonFlags) anchor() (*time.Time, error) { return parseAnchor(*f.startMonth) }

const startMonthUsage = "Mois calendaire du mois 0 (MMYYYY), optionnel"

// parseAnchor lit -start_month ; vide = pas de libellés calendaires.
func parseAnchor(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := calculator.ParseMonth(s)
	if err != nil {
		return nil, fmt.Errorf("start_month: %w", err)
	}
	return &t, nil
}

func loadCatalog(cfg config.Config) (*scenarios.Catalog, error) {
	if cfg.ScenariosFile == "" {
		return scenarios.Default(), nil
	}
	return scenarios.LoadFile(cfg.ScenariosFile)
}

func newProjector(cfg config.Config, rounding string, verbose bool) (*calculator.Projector, error) {
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	mode, err := models.ParseRoundingMode(rounding)
	if err != nil {
		return nil, err
	}
	p := calculator.NewProjector(catalog)
	p.Rounding = mode
	p.Verbose = verbose
	return p, nil
}

func openStore(ctx context.Context, cfg config.Config, verbose bool) (*database.Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("RETENTION_DSN requis (mysql://, mariadb:// ou sqlite://)")
	}
	s, err := database.OpenStore(ctx, cfg.DSN, cfg.TablePrefix)
	if err != nil {
		return nil, err
	}
	s.Verbose = verbose
	if verbose {
		log.Printf("[INFO] connected store prefix=%s", cfg.TablePrefix)
	}
	return s, nil
}

type extension struct {
	months   int
	scenario string
}

// parseExtensions lit "3:New Competitor,2:Price Increase".
func parseExtensions(s string) ([]extension, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []extension
	for _, part := range strings.Split(s, ",") {
		n, name, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("extension %q: format attendu MOIS:SCENARIO", part)
		}
		months, err := strconv.Atoi(n)
		if err != nil {
			return nil, fmt.Errorf("extension %q: %w", part, err)
		}
		out = append(out, extension{months: months, scenario: strings.TrimSpace(name)})
	}
	return out, nil
}

func cmdRun(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	f := addCommonFlags(fs, cfg)
	extensions := fs.String("extend", "", "Extensions successives, ex: \"3:New Competitor,2:Price Increase\"")
	csvPath := fs.String("csv", "", "Exporter les mois dans ce fichier CSV")
	save := fs.Bool("save", false, "Sauvegarder le run (RETENTION_DSN)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	exts, err := parseExtensions(*extensions)
	if err != nil {
		return err
	}
	total := *f.months
	for _, ext := range exts {
		total += ext.months
	}
	if err := cfg.CheckMonths(total); err != nil {
		return err
	}
	anchor, err := f.anchor()
	if err != nil {
		return err
	}

	p, err := newProjector(cfg, *f.rounding, *f.verbose)
	if err != nil {
		return err
	}
	tl, err := calculator.NewTimeline(p, f.params())
	if err != nil {
		return err
	}
	for _, ext := range exts {
		if _, err := tl.Extend(ext.months, ext.scenario); err != nil {
			return err
		}
	}
	snap := tl.Snapshot()

	if err := printSnapshot(cfg, p.Catalog, snap, anchor); err != nil {
		return err
	}
	if *csvPath != "" {
		if err := exportCSV(*csvPath, snap.Run, anchor); err != nil {
			return err
		}
	}
	if *save {
		store, err := openStore(ctx, cfg, *f.verbose)
		if err != nil {
			return err
		}
		defer store.Close()
		id, err := store.SaveRun(ctx, database.StoredRun{
			Params:      snap.Params,
			Rounding:    p.Rounding,
			Run:         snap.Run,
			Breakpoints: snap.Breakpoints,
		})
		if err != nil {
			return err
		}
		fmt.Printf("\nsaved run id=%s\n", id)
	}
	return nil
}

func cmdExtend(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("extend", flag.ExitOnError)
	id := fs.String("id", "", "Identifiant du run sauvegardé")
	months := fs.Int("months", 3, "Mois supplémentaires")
	scenario := fs.String("scenario", cfg.Scenario, "Nouveau scénario")
	startMonth := fs.String("start_month", "", startMonthUsage)
	verbose := fs.Bool("v", cfg.Verbose, "Mode verbeux")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("-id requis")
	}
	anchor, err := parseAnchor(*startMonth)
	if err != nil {
		return err
	}
	if *months <= 0 {
		return models.ConfigError("additional months = %d", *months)
	}

	store, err := openStore(ctx, cfg, *verbose)
	if err != nil {
		return err
	}
	defer store.Close()
	stored, err := store.LoadRun(ctx, *id)
	if err != nil {
		return err
	}
	if last, ok := stored.Run.Last(); ok && last.Month+*months > cfg.MaxMonths {
		return models.ConfigError("timeline would reach month %d (max %d)", last.Month+*months, cfg.MaxMonths)
	}

	p, err := newProjector(cfg, stored.Rounding.String(), *verbose)
	if err != nil {
		return err
	}
	tl, err := calculator.RestoreTimeline(p, stored.Params, stored.Run, stored.Breakpoints)
	if err != nil {
		return err
	}
	if _, err := tl.Extend(*months, *scenario); err != nil {
		return err
	}
	snap := tl.Snapshot()
	if _, err := store.SaveRun(ctx, database.StoredRun{
		ID:          stored.ID,
		CreatedAt:   stored.CreatedAt,
		Params:      snap.Params,
		Rounding:    stored.Rounding,
		Run:         snap.Run,
		Breakpoints: snap.Breakpoints,
	}); err != nil {
		return err
	}
	return printSnapshot(cfg, p.Catalog, snap, anchor)
}

func cmdShow(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	id := fs.String("id", "", "Identifiant du run sauvegardé")
	csvPath := fs.String("csv", "", "Exporter les mois dans ce fichier CSV")
	startMonth := fs.String("start_month", "", startMonthUsage)
	if err := fs.Parse(args); err != nil {
		return err
	}
	anchor, err := parseAnchor(*startMonth)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, cfg.Verbose)
	if err != nil {
		return err
	}
	defer store.Close()
	stored, err := store.LoadRun(ctx, *id)
	if err != nil {
		return err
	}
	summary, err := calculator.Analyze(stored.Run)
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	snap := calculator.Snapshot{Params: stored.Params, Run: stored.Run, Breakpoints: stored.Breakpoints, Summary: summary}
	if err := printSnapshot(cfg, catalog, snap, anchor); err != nil {
		return err
	}
	if *csvPath != "" {
		return exportCSV(*csvPath, stored.Run, anchor)
	}
	return nil
}

func cmdList(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, cfg.Verbose)
	if err != nil {
		return err
	}
	defer store.Close()
	runs, err := store.ListRuns(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s ; %s ; months=%d ; %s -> %s\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.Months, r.Scenario, r.LastScenario)
	}
	return nil
}

func cmdCompare(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	f := addCommonFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.CheckMonths(*f.months); err != nil {
		return err
	}
	p, err := newProjector(cfg, *f.rounding, *f.verbose)
	if err != nil {
		return err
	}
	results, err := p.CompareScenarios(f.params(), true)
	if err != nil {
		return err
	}
	fmt.Println()
	for _, r := range results {
		s := r.Summary
		fmt.Printf("%-26s ; customers=%.0f ; revenue=%.2f ; revenue growth=%s ; churn=%.2f%% ; at risk=%.2f\n",
			r.Scenario, s.FinalCustomers, s.FinalRevenue, growth(s.RevenueGrowth), s.FinalChurn, s.AnnualChurnImpact)
	}
	return nil
}

func cmdScenarios(cfg config.Config) error {
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	for _, name := range catalog.Names() {
		ss, err := catalog.SteadyStateOf(name)
		if err != nil {
			return err
		}
		fmt.Printf("%-26s ; long-run mix IR=%.1f%% LC=%.1f%% OB=%.1f%% DB=%.1f%% ; active retention=%.1f%%\n",
			name, ss.Shares[0]*100, ss.Shares[1]*100, ss.Shares[2]*100, ss.Shares[3]*100, ss.Rate*100)
	}
	return nil
}

func exportCSV(path string, run models.SimulationRun, anchor *time.Time) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	var labels []string
	if anchor != nil {
		labels = calculator.MonthLabels(*anchor, run)
	}
	if err := report.WriteCSV(out, run, labels); err != nil {
		_ = out.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	log.Printf("[INFO] results saved to %s", path)
	return out.Close()
}
