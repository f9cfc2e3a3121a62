package scenarios

import (
	"errors"
	"math"
	"testing"

	"retention-markov/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_NamesInOrder(t *testing.T) {
	want := []string{"Default", "Economic Recession", "Strong Marketing Campaign", "New Competitor", "Price Increase"}
	assert.Equal(t, want, Default().Names())
}

func TestDefault_RowsAreStochastic(t *testing.T) {
	for _, s := range Default().Scenarios() {
		require.NoError(t, ValidateMatrix(s.Matrix), s.Name)
	}
}

func TestLookup_Default(t *testing.T) {
	s, err := Default().Lookup("Default")
	require.NoError(t, err)
	assert.Equal(t, 0.30, s.Matrix[0][0])
	assert.Equal(t, 0.96, s.Matrix[4][4])
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Default().Lookup("default") // exact match only
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConfiguration))
}

func TestRevenueConstants(t *testing.T) {
	r := Default().Revenue()
	assert.InDelta(t, 1120.0/12, r[models.ImmediateRepurchase], 1e-12)
	assert.InDelta(t, 165*6.5/12, r[models.LoyalCustomer], 1e-12)
	assert.InDelta(t, 190*3.5/12, r[models.OccasionalBuyer], 1e-12)
	assert.InDelta(t, 95*5.0/12, r[models.DiscountBuyer], 1e-12)
	assert.Equal(t, 0.0, r[models.NoRepurchase])
}

func TestNewCustomerDistribution(t *testing.T) {
	d := Default().NewCustomerDistribution()
	assert.Equal(t, models.Distribution{0.20, 0.25, 0.30, 0.25, 0}, d)
}

func TestValidateMatrix_RowOff(t *testing.T) {
	m := Default().Scenarios()[0].Matrix
	m[2][2] += 0.01
	err := ValidateMatrix(m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConfiguration))
}

func TestValidateMatrix_Negative(t *testing.T) {
	var m models.TransitionMatrix
	for i := range m {
		m[i][i] = 1
	}
	m[0][0], m[0][1] = 1.5, -0.5
	assert.Error(t, ValidateMatrix(m))
}

const segmentsYAML = `
segments:
  - {name: Immediate Repurchase, purchase_value: 10, purchases_per_year: 12, new_customer_share: 1}
  - {name: Loyal Customer, purchase_value: 0, purchases_per_year: 0, new_customer_share: 0}
  - {name: Occasional Buyer, purchase_value: 0, purchases_per_year: 0, new_customer_share: 0}
  - {name: Discount Buyer, purchase_value: 0, purchases_per_year: 0, new_customer_share: 0}
  - {name: No Repurchase, purchase_value: 0, purchases_per_year: 0, new_customer_share: 0}
`

func TestLoad_Custom(t *testing.T) {
	doc := segmentsYAML + `
scenarios:
  - name: Identity
    matrix:
      - [1, 0, 0, 0, 0]
      - [0, 1, 0, 0, 0]
      - [0, 0, 1, 0, 0]
      - [0, 0, 0, 1, 0]
      - [0, 0, 0, 0, 1]
`
	c, err := Load([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"Identity"}, c.Names())
	assert.Equal(t, 10.0, c.Revenue()[0])
	assert.Equal(t, 30.0, c.RevenueOf(models.Distribution{3, 5, 5, 5, 5}))
}

func TestLoad_RejectsBadRow(t *testing.T) {
	doc := segmentsYAML + `
scenarios:
  - name: Leaky
    matrix:
      - [0.5, 0, 0, 0, 0]
      - [0, 1, 0, 0, 0]
      - [0, 0, 1, 0, 0]
      - [0, 0, 0, 1, 0]
      - [0, 0, 0, 0, 1]
`
	_, err := Load([]byte(doc))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConfiguration))
}

func TestLoad_RejectsDuplicate(t *testing.T) {
	row := `
    matrix:
      - [1, 0, 0, 0, 0]
      - [0, 1, 0, 0, 0]
      - [0, 0, 1, 0, 0]
      - [0, 0, 0, 1, 0]
      - [0, 0, 0, 0, 1]
`
	doc := segmentsYAML + "scenarios:\n  - name: A" + row + "  - name: A" + row
	_, err := Load([]byte(doc))
	assert.Error(t, err)
}

func TestSteadyState_SumsToOne(t *testing.T) {
	ss, err := Default().SteadyStateOf("Default")
	require.NoError(t, err)
	sum := 0.0
	for _, x := range ss.Shares {
		assert.Greater(t, x, 0.0)
		sum += x
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, ss.Rate, 0.0)
	assert.Less(t, ss.Rate, 1.0)
}

func TestSteadyState_IsFixedPoint(t *testing.T) {
	s, err := Default().Lookup("New Competitor")
	require.NoError(t, err)
	ss := ComputeSteadyState(s.Matrix)
	for j := 0; j < 4; j++ {
		got := 0.0
		for i := 0; i < 4; i++ {
			got += ss.Shares[i] * s.Matrix[i][j]
		}
		assert.True(t, math.Abs(got-ss.Rate*ss.Shares[j]) < 1e-9, "component %d", j)
	}
}
