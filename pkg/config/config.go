// Package config lit la configuration depuis l'environnement (et un éventuel .env).
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/text/language"

	"retention-markov/pkg/models"
)

// Config regroupe les valeurs par défaut de la CLI ; les flags les surchargent.
type Config struct {
	DSN                  string  `env:"RETENTION_DSN"`
	TablePrefix          string  `env:"RETENTION_TABLE_PREFIX" envDefault:"retention_"`
	ScenariosFile        string  `env:"RETENTION_SCENARIOS_FILE"`
	InitialCustomers     float64 `env:"RETENTION_INITIAL_CUSTOMERS" envDefault:"10000"`
	NewCustomersPerMonth float64 `env:"RETENTION_NEW_CUSTOMERS" envDefault:"800"`
	Months               int     `env:"RETENTION_MONTHS" envDefault:"12"`
	MaxMonths            int     `env:"RETENTION_MAX_MONTHS" envDefault:"60"`
	Scenario             string  `env:"RETENTION_SCENARIO" envDefault:"Default"`
	Rounding             string  `env:"RETENTION_ROUNDING" envDefault:"whole"`
	Locale               string  `env:"RETENTION_LOCALE" envDefault:"en"`
	Verbose              bool    `env:"RETENTION_VERBOSE" envDefault:"false"`
}

// Load charge envFiles (absents ignorés) puis parse l'environnement.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate vérifie les bornes applicatives.
func (c Config) Validate() error {
	if c.MaxMonths <= 0 {
		return models.ConfigError("max months = %d", c.MaxMonths)
	}
	if _, err := models.ParseRoundingMode(c.Rounding); err != nil {
		return err
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("locale %q: %w", c.Locale, err)
	}
	return nil
}

// CheckMonths applique le plafond applicatif (la projection elle-même n'en a pas).
func (c Config) CheckMonths(months int) error {
	if months <= 0 || months > c.MaxMonths {
		return models.ConfigError("months must be in 1..%d, got %d", c.MaxMonths, months)
	}
	return nil
}

// LocaleTag renvoie la langue d'affichage (anglais si invalide).
func (c Config) LocaleTag() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.English
	}
	return tag
}

// RoundingMode renvoie le mode d'arrondi configuré.
func (c Config) RoundingMode() models.RoundingMode {
	m, _ := models.ParseRoundingMode(c.Rounding)
	return m
}
