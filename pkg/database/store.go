package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"retention-markov/pkg/models"

	"github.com/google/uuid"
)

// ErrNotFound est renvoyée quand aucun run ne porte l'identifiant demandé.
var ErrNotFound = errors.New("run introuvable")

var prefixPattern = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

// Store persiste les simulations (paramètres, mois, points de rupture).
type Store struct {
	db      *sql.DB
	driver  string
	runs    string
	records string
	breaks  string
	Verbose bool
}

// StoredRun est une simulation telle que sauvegardée.
type StoredRun struct {
	ID          string
	CreatedAt   time.Time
	Params      models.Params
	Rounding    models.RoundingMode
	Run         models.SimulationRun
	Breakpoints []models.ScenarioBreakpoint
}

// RunInfo résume un run pour les listings.
type RunInfo struct {
	ID           string
	CreatedAt    time.Time
	Scenario     string
	LastScenario string
	Months       int
}

// OpenStore ouvre la base et crée les tables si besoin.
func OpenStore(ctx context.Context, dsn, tablePrefix string) (*Store, error) {
	db, driver, _, err := Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s, err := NewStore(db, driver, tablePrefix)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore enveloppe une connexion existante. driver vaut "mysql" ou "sqlite".
func NewStore(db *sql.DB, driver, tablePrefix string) (*Store, error) {
	if !prefixPattern.MatchString(tablePrefix) {
		return nil, fmt.Errorf("préfixe de table invalide %q", tablePrefix)
	}
	if driver != driverMySQL && driver != driverSQLite {
		return nil, fmt.Errorf("driver non supporté %q", driver)
	}
	return &Store{
		db:      db,
		driver:  driver,
		runs:    tablePrefix + "runs",
		records: tablePrefix + "monthly_records",
		breaks:  tablePrefix + "breakpoints",
	}, nil
}

// Close ferme la connexion.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureSchema crée les tables (types compris par MySQL et SQLite).
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			created_at BIGINT NOT NULL,
			initial_customers DOUBLE NOT NULL,
			new_customers_per_month DOUBLE NOT NULL,
			months INT NOT NULL,
			scenario VARCHAR(128) NOT NULL,
			start_month INT NOT NULL,
			explicit_start INT NOT NULL,
			rounding VARCHAR(16) NOT NULL
		)`, s.runs),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id VARCHAR(36) NOT NULL,
			month INT NOT NULL,
			seg_ir DOUBLE NOT NULL,
			seg_lc DOUBLE NOT NULL,
			seg_ob DOUBLE NOT NULL,
			seg_db DOUBLE NOT NULL,
			seg_nr DOUBLE NOT NULL,
			total_customers DOUBLE NOT NULL,
			monthly_revenue DOUBLE NOT NULL,
			churn_rate DOUBLE NOT NULL,
			PRIMARY KEY (run_id, month)
		)`, s.records),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id VARCHAR(36) NOT NULL,
			seq INT NOT NULL,
			month INT NOT NULL,
			scenario VARCHAR(128) NOT NULL,
			PRIMARY KEY (run_id, seq)
		)`, s.breaks),
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// SaveRun écrit (ou remplace) un run dans une transaction et renvoie son identifiant.
func (s *Store) SaveRun(ctx context.Context, r StoredRun) (string, error) {
	if r.Run.Len() == 0 {
		return "", models.ConfigError("nothing to save: empty run")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	} else if _, err := uuid.Parse(r.ID); err != nil {
		return "", fmt.Errorf("run id %q: %w", r.ID, err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{s.records, s.breaks} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE run_id = ?`, table), r.ID); err != nil {
			return "", fmt.Errorf("delete %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.runs), r.ID); err != nil {
		return "", fmt.Errorf("delete run: %w", err)
	}

	explicit := 0
	if r.Params.StartDistribution != nil {
		explicit = 1
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, created_at, initial_customers, new_customers_per_month, months, scenario, start_month, explicit_start, rounding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.runs),
		r.ID, r.CreatedAt.UTC().UnixMilli(), r.Params.InitialCustomers, r.Params.NewCustomersPerMonth,
		r.Params.Months, r.Params.Scenario, r.Params.StartMonth, explicit, r.Rounding.String())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	insRecord := fmt.Sprintf(`
		INSERT INTO %s (run_id, month, seg_ir, seg_lc, seg_ob, seg_db, seg_nr, total_customers, monthly_revenue, churn_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.records)
	for _, rec := range r.Run.Records {
		d := rec.Distribution
		if _, err := tx.ExecContext(ctx, insRecord, r.ID, rec.Month, d[0], d[1], d[2], d[3], d[4],
			rec.TotalCustomers, rec.MonthlyRevenue, rec.ChurnRate); err != nil {
			return "", fmt.Errorf("insert month %d: %w", rec.Month, err)
		}
	}

	insBreak := fmt.Sprintf(`INSERT INTO %s (run_id, seq, month, scenario) VALUES (?, ?, ?, ?)`, s.breaks)
	for i, bp := range r.Breakpoints {
		if _, err := tx.ExecContext(ctx, insBreak, r.ID, i, bp.Month, bp.Scenario); err != nil {
			return "", fmt.Errorf("insert breakpoint %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	if s.Verbose {
		log.Printf("[INFO] saved run %s: %d months, %d scenarios", r.ID, r.Run.Len(), len(r.Breakpoints))
	}
	return r.ID, nil
}

// LoadRun relit un run complet.
func (s *Store) LoadRun(ctx context.Context, id string) (StoredRun, error) {
	var (
		out      StoredRun
		created  int64
		explicit int
		rounding string
	)
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, created_at, initial_customers, new_customers_per_month, months, scenario, start_month, explicit_start, rounding
		FROM %s WHERE id = ?`, s.runs), id).Scan(
		&out.ID, &created, &out.Params.InitialCustomers, &out.Params.NewCustomersPerMonth,
		&out.Params.Months, &out.Params.Scenario, &out.Params.StartMonth, &explicit, &rounding)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredRun{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return StoredRun{}, fmt.Errorf("load run: %w", err)
	}
	out.CreatedAt = time.UnixMilli(created).UTC()
	if out.Rounding, err = models.ParseRoundingMode(rounding); err != nil {
		return StoredRun{}, err
	}

	if out.Run, err = s.loadRecords(ctx, id); err != nil {
		return StoredRun{}, err
	}
	if out.Breakpoints, err = s.loadBreakpoints(ctx, id); err != nil {
		return StoredRun{}, err
	}
	if explicit == 1 {
		if first, ok := out.Run.First(); ok {
			d := first.Distribution
			out.Params.StartDistribution = &d
		}
	}
	return out, nil
}

func (s *Store) loadRecords(ctx context.Context, id string) (models.SimulationRun, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT month, seg_ir, seg_lc, seg_ob, seg_db, seg_nr, total_customers, monthly_revenue, churn_rate
		FROM %s WHERE run_id = ? ORDER BY month`, s.records), id)
	if err != nil {
		return models.SimulationRun{}, fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()

	var run models.SimulationRun
	for rows.Next() {
		var rec models.MonthlyRecord
		d := &rec.Distribution
		if err := rows.Scan(&rec.Month, &d[0], &d[1], &d[2], &d[3], &d[4],
			&rec.TotalCustomers, &rec.MonthlyRevenue, &rec.ChurnRate); err != nil {
			return models.SimulationRun{}, err
		}
		run.Records = append(run.Records, rec)
	}
	return run, rows.Err()
}

func (s *Store) loadBreakpoints(ctx context.Context, id string) ([]models.ScenarioBreakpoint, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT month, scenario FROM %s WHERE run_id = ? ORDER BY seq`, s.breaks), id)
	if err != nil {
		return nil, fmt.Errorf("load breakpoints: %w", err)
	}
	defer rows.Close()

	var out []models.ScenarioBreakpoint
	for rows.Next() {
		var bp models.ScenarioBreakpoint
		if err := rows.Scan(&bp.Month, &bp.Scenario); err != nil {
			return nil, err
		}
		out = append(out, bp)
	}
	return out, rows.Err()
}

// ListRuns renvoie les runs du plus récent au plus ancien.
func (s *Store) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT r.id, r.created_at, r.scenario,
			(SELECT COUNT(*) FROM %s m WHERE m.run_id = r.id)
		FROM %s r ORDER BY r.created_at DESC, r.id`, s.records, s.runs))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var (
			info    RunInfo
			created int64
			count   int
		)
		if err := rows.Scan(&info.ID, &created, &info.Scenario, &count); err != nil {
			return nil, err
		}
		info.CreatedAt = time.UnixMilli(created).UTC()
		info.Months = count - 1
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		bps, err := s.loadBreakpoints(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].LastScenario = out[i].Scenario
		if len(bps) > 0 {
			out[i].LastScenario = bps[len(bps)-1].Scenario
		}
	}
	return out, nil
}
