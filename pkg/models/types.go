package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrConfiguration signale un paramètre de simulation invalide (scénario inconnu,
// valeur négative, extension d'un run vide...). La simulation n'est pas lancée.
var ErrConfiguration = errors.New("configuration invalide")

// ConfigError enveloppe ErrConfiguration avec un message précis.
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

/*
SEGMENTS → états fixes de la chaîne de Markov
*/

// Segment est l'un des 5 états ordonnés du modèle.
type Segment int

const (
	ImmediateRepurchase Segment = iota
	LoyalCustomer
	OccasionalBuyer
	DiscountBuyer
	NoRepurchase
)

// SegmentCount est le nombre d'états du modèle.
const SegmentCount = 5

// Terminal est l'état quasi absorbant (clients perdus).
const Terminal = NoRepurchase

var segmentNames = [SegmentCount]string{
	"Immediate Repurchase",
	"Loyal Customer",
	"Occasional Buyer",
	"Discount Buyer",
	"No Repurchase",
}

// Segments renvoie les états dans l'ordre d'énumération.
func Segments() []Segment {
	return []Segment{ImmediateRepurchase, LoyalCustomer, OccasionalBuyer, DiscountBuyer, NoRepurchase}
}

func (s Segment) String() string {
	if s < 0 || int(s) >= SegmentCount {
		return fmt.Sprintf("Segment(%d)", int(s))
	}
	return segmentNames[s]
}

// Active est vrai pour les quatre états non terminaux.
func (s Segment) Active() bool { return s != Terminal }

// Distribution = nombre de clients par segment à un mois donné.
type Distribution [SegmentCount]float64

// Total renvoie la somme des segments.
func (d Distribution) Total() float64 {
	t := 0.0
	for _, v := range d {
		t += v
	}
	return t
}

// ActiveTotal renvoie la somme des quatre segments non terminaux.
func (d Distribution) ActiveTotal() float64 {
	t := 0.0
	for i, v := range d {
		if Segment(i).Active() {
			t += v
		}
	}
	return t
}

// Validate refuse les composantes négatives ou non finies.
func (d Distribution) Validate() error {
	for i, v := range d {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return ConfigError("distribution: %s = %v", Segment(i), v)
		}
	}
	return nil
}

// TransitionMatrix : ligne i, colonne j = part des clients passant de i à j en un mois.
type TransitionMatrix [SegmentCount][SegmentCount]float64

// Scenario associe un nom à une matrice de transition.
type Scenario struct {
	Name   string
	Matrix TransitionMatrix
}

/*
COMPUTE → enregistrements produits par le projecteur
*/

// MonthlyRecord contient l'état et les agrégats d'un mois simulé.
type MonthlyRecord struct {
	Month          int          `json:"month"`
	Distribution   Distribution `json:"distribution"`
	TotalCustomers float64      `json:"totalCustomers"`
	MonthlyRevenue float64      `json:"monthlyRevenue"`
	ChurnRate      float64      `json:"churnRate"` // en %, 0 au premier mois
}

// SimulationRun est une suite contiguë de mois, modifiable uniquement par ajout.
type SimulationRun struct {
	Records []MonthlyRecord `json:"records"`
}

// Len renvoie le nombre de mois (mois initial inclus).
func (r SimulationRun) Len() int { return len(r.Records) }

// First renvoie le premier enregistrement ; ok=false si le run est vide.
func (r SimulationRun) First() (MonthlyRecord, bool) {
	if len(r.Records) == 0 {
		return MonthlyRecord{}, false
	}
	return r.Records[0], true
}

// Last renvoie le dernier enregistrement ; ok=false si le run est vide.
func (r SimulationRun) Last() (MonthlyRecord, bool) {
	if len(r.Records) == 0 {
		return MonthlyRecord{}, false
	}
	return r.Records[len(r.Records)-1], true
}

// Clone renvoie une copie indépendante du run.
func (r SimulationRun) Clone() SimulationRun {
	out := make([]MonthlyRecord, len(r.Records))
	copy(out, r.Records)
	return SimulationRun{Records: out}
}

// ScenarioBreakpoint marque le mois à partir duquel un scénario s'applique.
type ScenarioBreakpoint struct {
	Month    int    `json:"month"`
	Scenario string `json:"scenario"`
}

// Metric est une valeur dérivée qui peut être indéfinie (division par zéro).
type Metric struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// Defined construit une métrique valide.
func Defined(v float64) Metric { return Metric{Value: v, Valid: true} }

func (m Metric) String() string {
	if !m.Valid {
		return "undefined"
	}
	return fmt.Sprintf("%.2f", m.Value)
}

// SegmentShift désigne un segment et son évolution en %. Name vaut "None" si aucun.
type SegmentShift struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// NoShift est la valeur par défaut quand aucun segment ne croît (ou ne décroît).
var NoShift = SegmentShift{Name: "None", Value: 0}

// SegmentGrowth est l'évolution d'un segment actif entre premier et dernier mois.
type SegmentGrowth struct {
	Segment Segment `json:"segment"`
	Growth  Metric  `json:"growth"`
}

// AnalysisSummary est un instantané dérivé d'un run, recalculé en entier à chaque changement.
type AnalysisSummary struct {
	InitialCustomers float64 `json:"initialCustomers"`
	FinalCustomers   float64 `json:"finalCustomers"`
	InitialRevenue   float64 `json:"initialRevenue"`
	FinalRevenue     float64 `json:"finalRevenue"`

	CustomerGrowth           Metric `json:"customerGrowth"`
	RevenueGrowth            Metric `json:"revenueGrowth"`
	RevenuePerCustomerChange Metric `json:"revenuePerCustomerChange"`

	SegmentGrowth    []SegmentGrowth `json:"segmentGrowth"`
	FastestGrowing   SegmentShift    `json:"fastestGrowing"`
	FastestShrinking SegmentShift    `json:"fastestShrinking"`

	FinalChurn        float64 `json:"finalChurn"`
	ChurnTrend        Metric  `json:"churnTrend"` // invalide si le run n'a qu'un mois
	AnnualChurnImpact float64 `json:"annualChurnImpact"`
}

/*
CONFIG → paramètres de simulation
*/

// RoundingMode choisit la sémantique des effectifs entre deux mois.
type RoundingMode int

const (
	// RoundWhole arrondit chaque segment à l'entier le plus proche à chaque mois (comportement historique).
	RoundWhole RoundingMode = iota
	// RoundNone propage les valeurs fractionnaires ; l'arrondi est laissé à l'affichage.
	RoundNone
)

func (m RoundingMode) String() string {
	switch m {
	case RoundWhole:
		return "whole"
	case RoundNone:
		return "none"
	default:
		return fmt.Sprintf("RoundingMode(%d)", int(m))
	}
}

// ParseRoundingMode lit "whole" ou "none".
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch s {
	case "", "whole":
		return RoundWhole, nil
	case "none", "continuous":
		return RoundNone, nil
	}
	return RoundWhole, ConfigError("rounding mode %q", s)
}

// Params contient les paramètres d'une simulation initiale.
type Params struct {
	InitialCustomers     float64       // utilisé si StartDistribution est nil
	StartDistribution    *Distribution // distribution explicite (optionnelle)
	NewCustomersPerMonth float64
	Months               int
	Scenario             string
	StartMonth           int
}

// Validate vérifie les bornes des paramètres.
func (p Params) Validate() error {
	if p.Months < 0 {
		return ConfigError("months = %d", p.Months)
	}
	if !finite(p.NewCustomersPerMonth) || p.NewCustomersPerMonth < 0 {
		return ConfigError("new customers per month = %v", p.NewCustomersPerMonth)
	}
	if p.StartMonth < 0 {
		return ConfigError("start month = %d", p.StartMonth)
	}
	if p.StartDistribution != nil {
		return p.StartDistribution.Validate()
	}
	if !finite(p.InitialCustomers) || p.InitialCustomers < 0 {
		return ConfigError("initial customers = %v", p.InitialCustomers)
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
