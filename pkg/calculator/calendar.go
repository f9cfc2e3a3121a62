package calculator

import (
	"fmt"
	"time"

	"retention-markov/pkg/models"
)

// ParseMonth("MMYYYY") -> 1er jour du mois UTC
func ParseMonth(mmyyyy string) (time.Time, error) {
	if len(mmyyyy) != 6 {
		return time.Time{}, fmt.Errorf("format attendu MMYYYY (ex: 012025)")
	}
	for _, c := range mmyyyy {
		if c < '0' || c > '9' {
			return time.Time{}, fmt.Errorf("format attendu MMYYYY (ex: 012025)")
		}
	}
	month := int(mmyyyy[0]-'0')*10 + int(mmyyyy[1]-'0')
	year := int(mmyyyy[2]-'0')*1000 + int(mmyyyy[3]-'0')*100 + int(mmyyyy[4]-'0')*10 + int(mmyyyy[5]-'0')
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("mois invalide")
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

// FormatMonth -> "MM/YYYY"
func FormatMonth(t time.Time) string {
	return fmt.Sprintf("%02d/%04d", int(t.Month()), t.Year())
}

// MonthLabels associe à chaque enregistrement le mois calendaire correspondant,
// le mois d'index 0 tombant sur anchor.
func MonthLabels(anchor time.Time, run models.SimulationRun) []string {
	base := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]string, len(run.Records))
	for i, rec := range run.Records {
		out[i] = FormatMonth(base.AddDate(0, rec.Month, 0))
	}
	return out
}
