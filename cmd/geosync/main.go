package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"geosync/internal/audit"
	"geosync/internal/geo/metrics"
	"geosync/internal/geo/report"
	"geosync/internal/geo/source"
	"geosync/internal/geo/store"
	syncer "geosync/internal/geo/sync"
	"geosync/internal/geo/sweep"
	"geosync/internal/ops"
	"geosync/internal/platform/config"
	"geosync/internal/platform/logger"
	"geosync/internal/platform/postgres"
)

// main wires high-level dependencies and runs the batch to completion.
// Business logic lives in the internal/geo packages. Exit code 0 covers
// completion with warnings; anything unhandled exits non-zero.
func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("reconciliation run failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Migrate {
		if err := migrateUp(db, cfg.MigrationsDir, log); err != nil {
			return err
		}
	}

	st := store.NewPostgres(db)

	var auditStore audit.Store
	if len(cfg.KafkaBrokers) > 0 {
		kafkaStore, err := audit.NewKafkaStore(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			return err
		}
		defer kafkaStore.Close()
		auditStore = kafkaStore
	} else {
		auditStore = audit.NewInMemoryStore()
	}
	publisher := audit.NewPublisher(auditStore)
	engineMetrics := metrics.New()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	if cfg.OpsAddr != "" {
		srv := ops.NewServer(cfg.OpsAddr)
		g.Go(func() error {
			log.Info("ops endpoint listening", "addr", cfg.OpsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		if cfg.SeedFile != "" {
			return seed(gctx, cfg, st, log)
		}
		return reconcile(gctx, cfg, st, publisher, engineMetrics, log)
	})

	return g.Wait()
}

func reconcile(ctx context.Context, cfg config.Config, st store.Store, publisher *audit.Publisher, m *metrics.Metrics, log *slog.Logger) error {
	ds, err := source.LoadFile(cfg.SourceFile)
	if err != nil {
		return err
	}
	log.Info("authoritative source loaded",
		"states", len(ds.States), "lgas", len(ds.LGAs), "wards", len(ds.Wards))

	s := syncer.New(st, log,
		syncer.WithAuditPublisher(publisher),
		syncer.WithMetrics(m))
	if err := s.Run(ctx, ds); err != nil {
		return err
	}

	sweeper := sweep.New(st, log,
		sweep.WithAuditPublisher(publisher),
		sweep.WithMetrics(m))
	if _, err := sweeper.Run(ctx); err != nil {
		return err
	}

	validator := report.New(st, log)
	rep, err := validator.Run(ctx, ds)
	if err != nil {
		return err
	}
	log.Info("reconciliation complete",
		"level_mismatches", rep.Mismatches(), "dangling_refs", rep.DanglingTotal())
	return nil
}

func seed(ctx context.Context, cfg config.Config, st store.Store, log *slog.Logger) error {
	tree, err := source.LoadSeedFile(cfg.SeedFile)
	if err != nil {
		return err
	}
	return source.NewSeeder(st, log).Apply(ctx, tree)
}

func migrateUp(db *sql.DB, dir string, log *slog.Logger) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	log.Info("database migrations applied", "dir", dir)
	return nil
}
