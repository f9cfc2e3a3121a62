// Package scenarios charge le catalogue figé des scénarios (matrices de transition)
// et les constantes par segment (revenu mensuel, répartition des nouveaux clients).
package scenarios

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"retention-markov/pkg/models"

	"gopkg.in/yaml.v2"
)

// RowTolerance est l'écart maximal accepté entre la somme d'une ligne et 1.
const RowTolerance = 1e-9

//go:embed catalog.yaml
var embedded []byte

type segmentDoc struct {
	Name             string  `yaml:"name"`
	PurchaseValue    float64 `yaml:"purchase_value"`
	PurchasesPerYear float64 `yaml:"purchases_per_year"`
	NewCustomerShare float64 `yaml:"new_customer_share"`
}

type scenarioDoc struct {
	Name   string      `yaml:"name"`
	Matrix [][]float64 `yaml:"matrix"`
}

type catalogDoc struct {
	Segments  []segmentDoc  `yaml:"segments"`
	Scenarios []scenarioDoc `yaml:"scenarios"`
}

// Catalog est en lecture seule une fois chargé.
type Catalog struct {
	scenarios    []models.Scenario
	index        map[string]int
	revenue      models.Distribution
	newCustomers models.Distribution
}

var defaultCatalog = mustLoad(embedded)

func mustLoad(data []byte) *Catalog {
	c, err := Load(data)
	if err != nil {
		panic(fmt.Sprintf("embedded scenario catalog: %v", err))
	}
	return c
}

// Default renvoie le catalogue embarqué (Default, Economic Recession,
// Strong Marketing Campaign, New Competitor, Price Increase).
func Default() *Catalog { return defaultCatalog }

// LoadFile charge un catalogue YAML depuis le disque.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Load(data)
}

// Load parse et valide un catalogue YAML.
func Load(data []byte) (*Catalog, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Segments) != models.SegmentCount {
		return nil, models.ConfigError("catalog: %d segments, want %d", len(doc.Segments), models.SegmentCount)
	}

	c := &Catalog{index: map[string]int{}}
	shareSum := 0.0
	for i, s := range doc.Segments {
		seg := models.Segment(i)
		if s.Name != seg.String() {
			return nil, models.ConfigError("catalog: segment %d is %q, want %q", i, s.Name, seg.String())
		}
		if s.PurchaseValue < 0 || s.PurchasesPerYear < 0 || s.NewCustomerShare < 0 {
			return nil, models.ConfigError("catalog: negative value for %s", s.Name)
		}
		c.revenue[i] = s.PurchaseValue * s.PurchasesPerYear / 12
		c.newCustomers[i] = s.NewCustomerShare
		shareSum += s.NewCustomerShare
	}
	if c.newCustomers[models.Terminal] != 0 {
		return nil, models.ConfigError("catalog: new customers cannot enter %s", models.Terminal)
	}
	if math.Abs(shareSum-1) > RowTolerance {
		return nil, models.ConfigError("catalog: new customer shares sum to %v", shareSum)
	}

	if len(doc.Scenarios) == 0 {
		return nil, models.ConfigError("catalog: no scenario")
	}
	for _, sd := range doc.Scenarios {
		if sd.Name == "" {
			return nil, models.ConfigError("catalog: scenario without name")
		}
		if _, dup := c.index[sd.Name]; dup {
			return nil, models.ConfigError("catalog: duplicate scenario %q", sd.Name)
		}
		m, err := toMatrix(sd.Matrix)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sd.Name, err)
		}
		if err := ValidateMatrix(m); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sd.Name, err)
		}
		c.index[sd.Name] = len(c.scenarios)
		c.scenarios = append(c.scenarios, models.Scenario{Name: sd.Name, Matrix: m})
	}
	return c, nil
}

func toMatrix(rows [][]float64) (models.TransitionMatrix, error) {
	var m models.TransitionMatrix
	if len(rows) != models.SegmentCount {
		return m, models.ConfigError("matrix has %d rows", len(rows))
	}
	for i, row := range rows {
		if len(row) != models.SegmentCount {
			return m, models.ConfigError("matrix row %d has %d columns", i, len(row))
		}
		copy(m[i][:], row)
	}
	return m, nil
}

// ValidateMatrix vérifie que la matrice est stochastique : coefficients >= 0
// et chaque ligne somme à 1 (à RowTolerance près).
func ValidateMatrix(m models.TransitionMatrix) error {
	for i, row := range m {
		sum := 0.0
		for j, p := range row {
			if p < 0 || math.IsNaN(p) {
				return models.ConfigError("matrix[%d][%d] = %v", i, j, p)
			}
			sum += p
		}
		if math.Abs(sum-1) > RowTolerance {
			return models.ConfigError("matrix row %d (%s) sums to %v", i, models.Segment(i), sum)
		}
	}
	return nil
}

// Lookup renvoie le scénario portant exactement ce nom.
func (c *Catalog) Lookup(name string) (models.Scenario, error) {
	i, ok := c.index[name]
	if !ok {
		return models.Scenario{}, models.ConfigError("unknown scenario %q (available: %v)", name, c.Names())
	}
	return c.scenarios[i], nil
}

// Names renvoie les noms dans l'ordre de déclaration.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.scenarios))
	for i, s := range c.scenarios {
		out[i] = s.Name
	}
	return out
}

// Scenarios renvoie une copie des scénarios dans l'ordre de déclaration.
func (c *Catalog) Scenarios() []models.Scenario {
	out := make([]models.Scenario, len(c.scenarios))
	copy(out, c.scenarios)
	return out
}

// Revenue renvoie le revenu mensuel par client de chaque segment.
func (c *Catalog) Revenue() models.Distribution { return c.revenue }

// NewCustomerDistribution renvoie la répartition des nouveaux clients à l'entrée.
func (c *Catalog) NewCustomerDistribution() models.Distribution { return c.newCustomers }

// RevenueOf calcule le revenu mensuel d'une distribution.
func (c *Catalog) RevenueOf(d models.Distribution) float64 {
	total := 0.0
	for i, n := range d {
		total += n * c.revenue[i]
	}
	return total
}
