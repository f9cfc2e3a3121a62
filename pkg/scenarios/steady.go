package scenarios

import (
	"math"

	"retention-markov/pkg/models"
)

const activeCount = models.SegmentCount - 1

// SteadyState calcule la répartition de long terme des clients actifs :
// vecteur propre à gauche dominant de la sous-matrice 4×4 des états actifs,
// normalisé pour sommer à 1. Rate est la valeur propre associée, soit la
// part des actifs qui restent actifs d'un mois sur l'autre à l'équilibre.
type SteadyState struct {
	Shares [activeCount]float64
	Rate   float64
}

// ComputeSteadyState applique une itération de puissance sur la sous-matrice active.
func ComputeSteadyState(m models.TransitionMatrix) SteadyState {
	var v [activeCount]float64
	for i := range v {
		v[i] = 1.0 / activeCount
	}
	rate := 0.0
	for iter := 0; iter < 10000; iter++ {
		var next [activeCount]float64
		for i := 0; i < activeCount; i++ {
			for j := 0; j < activeCount; j++ {
				next[j] += v[i] * m[i][j]
			}
		}
		sum := 0.0
		for _, x := range next {
			sum += x
		}
		if sum == 0 {
			return SteadyState{}
		}
		delta := 0.0
		for j := range next {
			next[j] /= sum
			delta = math.Max(delta, math.Abs(next[j]-v[j]))
		}
		v, rate = next, sum
		if delta < 1e-13 {
			break
		}
	}
	return SteadyState{Shares: v, Rate: rate}
}

// SteadyStateOf calcule l'équilibre d'un scénario du catalogue.
func (c *Catalog) SteadyStateOf(name string) (SteadyState, error) {
	s, err := c.Lookup(name)
	if err != nil {
		return SteadyState{}, err
	}
	return ComputeSteadyState(s.Matrix), nil
}
