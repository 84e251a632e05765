package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Store backends selectable through AUTOMATION_STORE.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Env holds process settings read from the environment.
type Env struct {
	Addr        string `env:"AUTOMATION_ADDR"         envDefault:":8080"`
	RulesPath   string `env:"AUTOMATION_RULES_PATH"   envDefault:"configs/rules.yaml"`
	LogLevel    string `env:"AUTOMATION_LOG_LEVEL"    envDefault:"info"`
	LogFormat   string `env:"AUTOMATION_LOG_FORMAT"   envDefault:"text"`
	Store       string `env:"AUTOMATION_STORE"        envDefault:"memory"`
	SQLitePath  string `env:"AUTOMATION_SQLITE_PATH"  envDefault:"automation.db"`
	DatabaseURL string `env:"AUTOMATION_DATABASE_URL"`
	// OTLP/HTTP collector URL; empty disables trace export.
	OTelEndpoint string `env:"AUTOMATION_OTEL_ENDPOINT"`
}

// LoadEnv parses Env from the process environment.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	switch e.Store {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if e.DatabaseURL == "" {
			return Env{}, fmt.Errorf("parse env: AUTOMATION_DATABASE_URL is required for store %q", e.Store)
		}
	default:
		return Env{}, fmt.Errorf("parse env: unknown AUTOMATION_STORE %q", e.Store)
	}
	return e, nil
}
