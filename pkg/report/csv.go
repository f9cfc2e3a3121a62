// Package report produit les sorties d'une simulation : export CSV, tableau
// mensuel et texte d'analyse.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"retention-markov/pkg/models"
)

// CSVHeader liste les colonnes de l'export, dans l'ordre.
func CSVHeader(withPeriod bool) []string {
	h := []string{"Month"}
	if withPeriod {
		h = append(h, "Period")
	}
	for _, s := range models.Segments() {
		h = append(h, s.String())
	}
	return append(h, "Total Customers", "Monthly Revenue", "Churn Rate")
}

// WriteCSV écrit un enregistrement plat par mois. labels est optionnel
// (nil = pas de colonne Period) ; sinon il doit avoir une entrée par mois.
func WriteCSV(w io.Writer, run models.SimulationRun, labels []string) error {
	if labels != nil && len(labels) != run.Len() {
		return fmt.Errorf("labels: %d for %d months", len(labels), run.Len())
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader(labels != nil)); err != nil {
		return err
	}
	for i, rec := range run.Records {
		row := []string{strconv.Itoa(rec.Month)}
		if labels != nil {
			row = append(row, labels[i])
		}
		for _, v := range rec.Distribution {
			row = append(row, formatFloat(v))
		}
		row = append(row,
			formatFloat(rec.TotalCustomers),
			strconv.FormatFloat(rec.MonthlyRevenue, 'f', 2, 64),
			strconv.FormatFloat(rec.ChurnRate, 'f', 4, 64),
		)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatFloat écrit les effectifs entiers sans décimales.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
