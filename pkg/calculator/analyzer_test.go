package calculator

import (
	"errors"
	"testing"

	"retention-markov/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(month int, d models.Distribution, revenue, churn float64) models.MonthlyRecord {
	return models.MonthlyRecord{
		Month:          month,
		Distribution:   d,
		TotalCustomers: d.Total(),
		MonthlyRevenue: revenue,
		ChurnRate:      churn,
	}
}

func TestAnalyze_CustomerGrowth(t *testing.T) {
	run := models.SimulationRun{Records: []models.MonthlyRecord{
		rec(0, models.Distribution{2500, 2500, 2500, 2500, 0}, 100000, 0),
		rec(1, models.Distribution{3000, 3000, 3000, 2000, 1000}, 110000, 2),
	}}
	s, err := Analyze(run)
	require.NoError(t, err)

	assert.Equal(t, 10000.0, s.InitialCustomers)
	assert.Equal(t, 12000.0, s.FinalCustomers)
	require.True(t, s.CustomerGrowth.Valid)
	assert.InDelta(t, 20.00, s.CustomerGrowth.Value, 1e-9)
	require.True(t, s.RevenueGrowth.Valid)
	assert.InDelta(t, 10.0, s.RevenueGrowth.Value, 1e-9)
	// 110000/12000 vs 100000/10000
	require.True(t, s.RevenuePerCustomerChange.Valid)
	assert.InDelta(t, (110000.0/12000/10-1)*100, s.RevenuePerCustomerChange.Value, 1e-9)
}

func TestAnalyze_Churn(t *testing.T) {
	run := models.SimulationRun{Records: []models.MonthlyRecord{
		rec(0, models.Distribution{100, 100, 100, 100, 0}, 5000, 0),
		rec(1, models.Distribution{100, 100, 100, 100, 10}, 5000, 2.5),
		rec(2, models.Distribution{100, 100, 100, 100, 22}, 6000, 3.0),
	}}
	s, err := Analyze(run)
	require.NoError(t, err)

	assert.Equal(t, 3.0, s.FinalChurn)
	require.True(t, s.ChurnTrend.Valid)
	assert.InDelta(t, 0.5, s.ChurnTrend.Value, 1e-12)
	assert.InDelta(t, 6000*0.03*12, s.AnnualChurnImpact, 1e-9)
}

func TestAnalyze_SegmentLeaders(t *testing.T) {
	run := models.SimulationRun{Records: []models.MonthlyRecord{
		rec(0, models.Distribution{100, 100, 100, 100, 0}, 1, 0),
		rec(1, models.Distribution{150, 150, 50, 80, 10}, 1, 0),
	}}
	s, err := Analyze(run)
	require.NoError(t, err)

	// égalité IR/LC : le premier dans l'ordre l'emporte
	assert.Equal(t, models.SegmentShift{Name: "Immediate Repurchase", Value: 50}, s.FastestGrowing)
	assert.Equal(t, models.SegmentShift{Name: "Occasional Buyer", Value: -50}, s.FastestShrinking)
	require.Len(t, s.SegmentGrowth, 4)
	assert.Equal(t, models.DiscountBuyer, s.SegmentGrowth[3].Segment)
	assert.InDelta(t, -20.0, s.SegmentGrowth[3].Growth.Value, 1e-9)
}

func TestAnalyze_SegmentsStartingAtZeroExcluded(t *testing.T) {
	run := models.SimulationRun{Records: []models.MonthlyRecord{
		rec(0, models.Distribution{0, 100, 100, 100, 0}, 1, 0),
		rec(1, models.Distribution{500, 90, 100, 100, 0}, 1, 0),
	}}
	s, err := Analyze(run)
	require.NoError(t, err)

	assert.False(t, s.SegmentGrowth[0].Growth.Valid)
	assert.Equal(t, models.NoShift, s.FastestGrowing)
	assert.Equal(t, "Loyal Customer", s.FastestShrinking.Name)
}

func TestAnalyze_NoShift(t *testing.T) {
	d := models.Distribution{100, 100, 100, 100, 0}
	run := models.SimulationRun{Records: []models.MonthlyRecord{rec(0, d, 1, 0), rec(1, d, 1, 0)}}
	s, err := Analyze(run)
	require.NoError(t, err)
	assert.Equal(t, "None", s.FastestGrowing.Name)
	assert.Equal(t, "None", s.FastestShrinking.Name)
}

func TestAnalyze_ZeroStartIsDegenerate(t *testing.T) {
	run := models.SimulationRun{Records: []models.MonthlyRecord{
		rec(0, models.Distribution{}, 0, 0),
		rec(1, models.Distribution{160, 200, 240, 200, 0}, 1234, 0),
		rec(2, models.Distribution{300, 400, 400, 380, 20}, 2345, 1.25),
	}}
	s, err := Analyze(run)
	require.NoError(t, err)

	assert.False(t, s.CustomerGrowth.Valid)
	assert.False(t, s.RevenueGrowth.Valid)
	assert.False(t, s.RevenuePerCustomerChange.Valid)
	assert.Equal(t, "undefined", s.CustomerGrowth.String())

	// le reste reste calculé
	assert.Equal(t, 1500.0, s.FinalCustomers)
	assert.Equal(t, 1.25, s.FinalChurn)
	assert.True(t, s.ChurnTrend.Valid)
	assert.InDelta(t, 2345*0.0125*12, s.AnnualChurnImpact, 1e-9)
}

func TestAnalyze_SingleRecord(t *testing.T) {
	run := models.SimulationRun{Records: []models.MonthlyRecord{
		rec(0, models.Distribution{2500, 2500, 2500, 2500, 0}, 100, 0),
	}}
	s, err := Analyze(run)
	require.NoError(t, err)
	assert.False(t, s.ChurnTrend.Valid)
	assert.InDelta(t, 0.0, s.CustomerGrowth.Value, 1e-12)
}

func TestAnalyze_EmptyRun(t *testing.T) {
	_, err := Analyze(models.SimulationRun{})
	assert.True(t, errors.Is(err, models.ErrConfiguration))
}

func TestInflowByMonth(t *testing.T) {
	p := newTestProjector()
	p.Rounding = models.RoundNone
	run := baseRun(t, p, 6, "Default")

	got := InflowByMonth(run)
	require.Len(t, got, 7)
	assert.InDelta(t, 10000, got[0], 1e-9)
	for m := 1; m < len(got); m++ {
		assert.InDelta(t, 800, got[m], 1e-6, "month %d", m)
	}
}
