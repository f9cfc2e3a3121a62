package database

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"retention-markov/pkg/calculator"
	"retention-markov/pkg/models"
	"retention-markov/pkg/scenarios"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "runs.db")
	s, err := OpenStore(context.Background(), dsn, "test_")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func extendedTimeline(t *testing.T) calculator.Snapshot {
	t.Helper()
	tl, err := calculator.NewTimeline(calculator.NewProjector(scenarios.Default()), models.Params{
		InitialCustomers:     10000,
		NewCustomersPerMonth: 800,
		Months:               6,
		Scenario:             "Default",
	})
	require.NoError(t, err)
	_, err = tl.Extend(3, "New Competitor")
	require.NoError(t, err)
	return tl.Snapshot()
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	snap := extendedTimeline(t)
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := s.SaveRun(ctx, StoredRun{
		CreatedAt:   created,
		Params:      snap.Params,
		Rounding:    models.RoundWhole,
		Run:         snap.Run,
		Breakpoints: snap.Breakpoints,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.LoadRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.Equal(t, snap.Params, got.Params)
	assert.Equal(t, models.RoundWhole, got.Rounding)
	assert.Equal(t, snap.Run, got.Run)
	assert.Equal(t, snap.Breakpoints, got.Breakpoints)
}

func TestStore_ExplicitStartRestored(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	start := models.Distribution{10, 20, 30, 40, 5}
	run, err := calculator.NewProjector(nil).Run(models.Params{StartDistribution: &start, Months: 2, Scenario: "Default"})
	require.NoError(t, err)

	id, err := s.SaveRun(ctx, StoredRun{
		Params:      models.Params{StartDistribution: &start, Months: 2, Scenario: "Default"},
		Rounding:    models.RoundNone,
		Run:         run,
		Breakpoints: []models.ScenarioBreakpoint{{Month: 0, Scenario: "Default"}},
	})
	require.NoError(t, err)

	got, err := s.LoadRun(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.Params.StartDistribution)
	assert.Equal(t, start, *got.Params.StartDistribution)
	assert.Equal(t, models.RoundNone, got.Rounding)
}

func TestStore_SaveReplacesExisting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	snap := extendedTimeline(t)

	id, err := s.SaveRun(ctx, StoredRun{Params: snap.Params, Run: snap.Run, Breakpoints: snap.Breakpoints[:1]})
	require.NoError(t, err)
	_, err = s.SaveRun(ctx, StoredRun{ID: id, Params: snap.Params, Run: snap.Run, Breakpoints: snap.Breakpoints})
	require.NoError(t, err)

	got, err := s.LoadRun(ctx, id)
	require.NoError(t, err)
	assert.Len(t, got.Breakpoints, 2)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 9, runs[0].Months)
	assert.Equal(t, "Default", runs[0].Scenario)
	assert.Equal(t, "New Competitor", runs[0].LastScenario)
}

func TestStore_LoadUnknown(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LoadRun(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_RejectsEmptyRunAndBadID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.SaveRun(ctx, StoredRun{})
	assert.True(t, errors.Is(err, models.ErrConfiguration))

	snap := extendedTimeline(t)
	_, err = s.SaveRun(ctx, StoredRun{ID: "not-a-uuid", Run: snap.Run})
	assert.Error(t, err)
}

func TestNewStore_InvalidPrefix(t *testing.T) {
	_, err := NewStore(nil, driverSQLite, "runs; DROP TABLE x")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "préfixe"))
}
