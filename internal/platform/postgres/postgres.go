package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"geosync/pkg/platform/sentinel"
)

// Open connects to PostgreSQL and verifies the connection. An unreachable
// store is fatal for the whole run, so the error wraps ErrUnavailable.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %v: %w", err, sentinel.ErrUnavailable)
	}
	return db, nil
}
