package store

import (
	"context"

	"github.com/google/uuid"

	"geosync/internal/geo/models"
	"geosync/pkg/platform/sentinel"
)

// Re-exported sentinels so callers don't need to import the sentinel package
// for the two conditions the engine branches on.
var (
	ErrNotFound = sentinel.ErrNotFound
	ErrConflict = sentinel.ErrConflict
)

// Store is the engine's view of the relational store. Two implementations
// exist: InMemory for unit tests and PostgresStore for production.
//
// Mutations driven by the dependent-table registry (repoint, null-out,
// dangling-ref queries) must respect the ordering invariant: a row that
// references an about-to-be-removed id is fixed before the id's owner goes.
type Store interface {
	// Hierarchy nodes.
	ListNodes(ctx context.Context, level models.Level, parentID *uuid.UUID) ([]*models.Node, error)
	GetNode(ctx context.Context, level models.Level, id uuid.UUID) (*models.Node, error)
	CreateNode(ctx context.Context, node *models.Node) error
	RenameNode(ctx context.Context, level models.Level, id uuid.UUID, name, code string) error
	ReparentNode(ctx context.Context, level models.Level, id, parentID uuid.UUID) error
	DeleteNode(ctx context.Context, level models.Level, id uuid.UUID) error

	// Dependent records, driven by models.HierarchyDependents.
	RepointDependents(ctx context.Context, level models.Level, loserID, winnerID uuid.UUID) (int64, error)
	CountDependents(ctx context.Context, level models.Level, id uuid.UUID) (int64, error)
	NullDependents(ctx context.Context, level models.Level, id uuid.UUID) (int64, error)
	NullDanglingRefs(ctx context.Context, level models.Level) (int64, error)
	CountDanglingRefs(ctx context.Context) (map[string]int, error)

	// Polling units and their election artifacts.
	ListPollingUnits(ctx context.Context, wardID uuid.UUID) ([]*models.PollingUnit, error)
	OrphanPollingUnits(ctx context.Context) ([]*models.PollingUnit, error)
	DeletePollingUnit(ctx context.Context, id uuid.UUID) error

	// Validation queries.
	CountNodes(ctx context.Context, level models.Level) (int, error)
	CountByParent(ctx context.Context, level models.Level) (map[uuid.UUID]int, error)
	OrphanNodes(ctx context.Context, level models.Level) ([]*models.Node, error)

	// WithinScope runs fn atomically where the backend supports it. One
	// parent scope's full solve/merge/create/rename cycle runs inside a
	// single call so a crash can't leave the scope half reconciled.
	WithinScope(ctx context.Context, fn func(ctx context.Context) error) error
}
