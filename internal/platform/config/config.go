package config

import (
	"os"
	"strings"

	platformstrings "geosync/pkg/platform/strings"
)

// Config captures everything the reconciliation job reads from the
// environment. FromEnv keeps main lean.
type Config struct {
	DatabaseURL   string
	SourceFile    string
	SeedFile      string
	OpsAddr       string
	KafkaBrokers  []string
	AuditTopic    string
	Migrate       bool
	MigrationsDir string
}

// FromEnv builds a Config from environment variables with development
// defaults. GEOSYNC_SEED_FILE switches the job from reconciliation to
// first-time seeding.
func FromEnv() Config {
	cfg := Config{
		DatabaseURL:   os.Getenv("GEOSYNC_DATABASE_URL"),
		SourceFile:    os.Getenv("GEOSYNC_SOURCE_FILE"),
		SeedFile:      os.Getenv("GEOSYNC_SEED_FILE"),
		OpsAddr:       os.Getenv("GEOSYNC_OPS_ADDR"),
		AuditTopic:    os.Getenv("GEOSYNC_AUDIT_TOPIC"),
		Migrate:       os.Getenv("GEOSYNC_MIGRATE") == "true",
		MigrationsDir: os.Getenv("GEOSYNC_MIGRATIONS_DIR"),
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "postgres://localhost:5432/geosync?sslmode=disable"
	}
	if cfg.SourceFile == "" {
		cfg.SourceFile = "source.json"
	}
	if cfg.AuditTopic == "" {
		cfg.AuditTopic = "geosync.audit"
	}
	if cfg.MigrationsDir == "" {
		cfg.MigrationsDir = "db/migrations"
	}
	if brokers := os.Getenv("GEOSYNC_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = platformstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}
	return cfg
}
