package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"geosync/internal/geo/models"
	txcontext "geosync/pkg/platform/tx"
)

// PostgresStore persists the hierarchy in PostgreSQL. Table and column names
// come from the dependent-table registry, never from user input, so queries
// are assembled with fmt.Sprintf over registry identifiers.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed hierarchy store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *PostgresStore) ListNodes(ctx context.Context, level models.Level, parentID *uuid.UUID) ([]*models.Node, error) {
	table := models.NodeTable(level)
	parentCol := models.ParentColumn(level)

	var rows *sql.Rows
	var err error
	switch {
	case level == models.LevelState:
		rows, err = s.execer(ctx).QueryContext(ctx,
			fmt.Sprintf(`SELECT id, name, code FROM %s ORDER BY name, id`, table))
	case parentID != nil:
		rows, err = s.execer(ctx).QueryContext(ctx,
			fmt.Sprintf(`SELECT id, %s, name, code FROM %s WHERE %s = $1 ORDER BY name, id`, parentCol, table, parentCol),
			*parentID)
	default:
		rows, err = s.execer(ctx).QueryContext(ctx,
			fmt.Sprintf(`SELECT id, %s, name, code FROM %s ORDER BY name, id`, parentCol, table))
	}
	if err != nil {
		return nil, fmt.Errorf("list %s nodes: %w", level, err)
	}
	defer rows.Close()

	var out []*models.Node
	for rows.Next() {
		node := &models.Node{Level: level}
		if level == models.LevelState {
			if err := rows.Scan(&node.ID, &node.Name, &node.Code); err != nil {
				return nil, fmt.Errorf("scan %s node: %w", level, err)
			}
		} else {
			var parent uuid.UUID
			if err := rows.Scan(&node.ID, &parent, &node.Name, &node.Code); err != nil {
				return nil, fmt.Errorf("scan %s node: %w", level, err)
			}
			node.ParentID = &parent
		}
		out = append(out, node)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetNode(ctx context.Context, level models.Level, id uuid.UUID) (*models.Node, error) {
	table := models.NodeTable(level)
	node := &models.Node{Level: level}
	var err error
	if level == models.LevelState {
		err = s.execer(ctx).QueryRowContext(ctx,
			fmt.Sprintf(`SELECT id, name, code FROM %s WHERE id = $1`, table), id).
			Scan(&node.ID, &node.Name, &node.Code)
	} else {
		var parent uuid.UUID
		err = s.execer(ctx).QueryRowContext(ctx,
			fmt.Sprintf(`SELECT id, %s, name, code FROM %s WHERE id = $1`, models.ParentColumn(level), table), id).
			Scan(&node.ID, &parent, &node.Name, &node.Code)
		node.ParentID = &parent
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s node: %w", level, err)
	}
	return node, nil
}

func (s *PostgresStore) CreateNode(ctx context.Context, node *models.Node) error {
	table := models.NodeTable(node.Level)
	var err error
	if node.Level == models.LevelState {
		_, err = s.execer(ctx).ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (id, name, code) VALUES ($1, $2, $3)`, table),
			node.ID, node.Name, node.Code)
	} else {
		_, err = s.execer(ctx).ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (id, %s, name, code) VALUES ($1, $2, $3, $4)`, table, models.ParentColumn(node.Level)),
			node.ID, node.ParentID, node.Name, node.Code)
	}
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create %s node: %w", node.Level, err)
	}
	return nil
}

func (s *PostgresStore) RenameNode(ctx context.Context, level models.Level, id uuid.UUID, name, code string) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET name = $2, code = $3 WHERE id = $1`, models.NodeTable(level)),
		id, name, code)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("rename %s node: %w", level, err)
	}
	return requireRow(res)
}

func (s *PostgresStore) ReparentNode(ctx context.Context, level models.Level, id, parentID uuid.UUID) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE id = $1`, models.NodeTable(level), models.ParentColumn(level)),
		id, parentID)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("reparent %s node: %w", level, err)
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteNode(ctx context.Context, level models.Level, id uuid.UUID) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, models.NodeTable(level)), id)
	if err != nil {
		return fmt.Errorf("delete %s node: %w", level, err)
	}
	return requireRow(res)
}

func (s *PostgresStore) RepointDependents(ctx context.Context, level models.Level, loserID, winnerID uuid.UUID) (int64, error) {
	var repointed int64
	for _, ref := range models.DependentsOf(level) {
		res, err := s.execer(ctx).ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE %s = $2`, ref.Table, ref.Column, ref.Column),
			winnerID, loserID)
		if err != nil {
			return repointed, fmt.Errorf("repoint %s.%s: %w", ref.Table, ref.Column, err)
		}
		n, _ := res.RowsAffected()
		repointed += n
	}
	return repointed, nil
}

func (s *PostgresStore) CountDependents(ctx context.Context, level models.Level, id uuid.UUID) (int64, error) {
	var total int64
	for _, ref := range models.DependentsOf(level) {
		var n int64
		err := s.execer(ctx).QueryRowContext(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, ref.Table, ref.Column), id).Scan(&n)
		if err != nil {
			return total, fmt.Errorf("count %s.%s: %w", ref.Table, ref.Column, err)
		}
		total += n
	}
	return total, nil
}

func (s *PostgresStore) NullDependents(ctx context.Context, level models.Level, id uuid.UUID) (int64, error) {
	var cleared int64
	for _, ref := range models.DependentsOf(level) {
		if ref.OnOrphan != models.OrphanSetNull {
			continue
		}
		res, err := s.execer(ctx).ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET %s = NULL WHERE %s = $1`, ref.Table, ref.Column, ref.Column), id)
		if err != nil {
			return cleared, fmt.Errorf("null %s.%s: %w", ref.Table, ref.Column, err)
		}
		n, _ := res.RowsAffected()
		cleared += n
	}
	return cleared, nil
}

func (s *PostgresStore) NullDanglingRefs(ctx context.Context, level models.Level) (int64, error) {
	nodeTable := models.NodeTable(level)
	var cleared int64
	for _, ref := range models.DependentsOf(level) {
		if ref.OnOrphan != models.OrphanSetNull {
			continue
		}
		res, err := s.execer(ctx).ExecContext(ctx, fmt.Sprintf(
			`UPDATE %s t SET %s = NULL WHERE t.%s IS NOT NULL AND NOT EXISTS (SELECT 1 FROM %s n WHERE n.id = t.%s)`,
			ref.Table, ref.Column, ref.Column, nodeTable, ref.Column))
		if err != nil {
			return cleared, fmt.Errorf("null dangling %s.%s: %w", ref.Table, ref.Column, err)
		}
		n, _ := res.RowsAffected()
		cleared += n
	}
	return cleared, nil
}

func (s *PostgresStore) CountDanglingRefs(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int)
	for _, ref := range models.HierarchyDependents {
		n, err := s.countDangling(ctx, ref.Table, ref.Column, models.NodeTable(ref.Level))
		if err != nil {
			return nil, err
		}
		out[ref.Table+"."+ref.Column] = n
	}
	for _, ref := range models.PollingUnitDependents {
		n, err := s.countDangling(ctx, ref.Table, ref.Column, "polling_units")
		if err != nil {
			return nil, err
		}
		out[ref.Table+"."+ref.Column] = n
	}
	return out, nil
}

func (s *PostgresStore) countDangling(ctx context.Context, table, column, target string) (int, error) {
	var n int
	err := s.execer(ctx).QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM %s t WHERE t.%s IS NOT NULL AND NOT EXISTS (SELECT 1 FROM %s n WHERE n.id = t.%s)`,
		table, column, target, column)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count dangling %s.%s: %w", table, column, err)
	}
	return n, nil
}

func (s *PostgresStore) ListPollingUnits(ctx context.Context, wardID uuid.UUID) ([]*models.PollingUnit, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT id, ward_id, name, code FROM polling_units WHERE ward_id = $1 ORDER BY name, id`, wardID)
	if err != nil {
		return nil, fmt.Errorf("list polling units: %w", err)
	}
	defer rows.Close()
	return scanPollingUnits(rows)
}

func (s *PostgresStore) OrphanPollingUnits(ctx context.Context) ([]*models.PollingUnit, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT id, ward_id, name, code FROM polling_units p
		 WHERE NOT EXISTS (SELECT 1 FROM wards w WHERE w.id = p.ward_id)
		 ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list orphan polling units: %w", err)
	}
	defer rows.Close()
	return scanPollingUnits(rows)
}

func (s *PostgresStore) DeletePollingUnit(ctx context.Context, id uuid.UUID) error {
	// Artifacts go first so no row ever references a missing polling unit.
	for _, ref := range models.PollingUnitDependents {
		_, err := s.execer(ctx).ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, ref.Table, ref.Column), id)
		if err != nil {
			return fmt.Errorf("delete %s for polling unit: %w", ref.Table, err)
		}
	}
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM polling_units WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete polling unit: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) CountNodes(ctx context.Context, level models.Level) (int, error) {
	var n int
	err := s.execer(ctx).QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, models.NodeTable(level))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s nodes: %w", level, err)
	}
	return n, nil
}

func (s *PostgresStore) CountByParent(ctx context.Context, level models.Level) (map[uuid.UUID]int, error) {
	parentCol := models.ParentColumn(level)
	if parentCol == "" {
		return map[uuid.UUID]int{}, nil
	}
	rows, err := s.execer(ctx).QueryContext(ctx, fmt.Sprintf(
		`SELECT %s, COUNT(*) FROM %s GROUP BY %s`, parentCol, models.NodeTable(level), parentCol))
	if err != nil {
		return nil, fmt.Errorf("count %s by parent: %w", level, err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]int)
	for rows.Next() {
		var parent uuid.UUID
		var count int
		if err := rows.Scan(&parent, &count); err != nil {
			return nil, fmt.Errorf("scan %s parent count: %w", level, err)
		}
		out[parent] = count
	}
	return out, rows.Err()
}

func (s *PostgresStore) OrphanNodes(ctx context.Context, level models.Level) ([]*models.Node, error) {
	parentLevel, ok := level.Parent()
	if !ok {
		return nil, nil
	}
	parentCol := models.ParentColumn(level)
	rows, err := s.execer(ctx).QueryContext(ctx, fmt.Sprintf(
		`SELECT id, %s, name, code FROM %s t
		 WHERE NOT EXISTS (SELECT 1 FROM %s p WHERE p.id = t.%s)
		 ORDER BY name, id`,
		parentCol, models.NodeTable(level), models.NodeTable(parentLevel), parentCol))
	if err != nil {
		return nil, fmt.Errorf("list orphan %s nodes: %w", level, err)
	}
	defer rows.Close()

	var out []*models.Node
	for rows.Next() {
		node := &models.Node{Level: level}
		var parent uuid.UUID
		if err := rows.Scan(&node.ID, &parent, &node.Name, &node.Code); err != nil {
			return nil, fmt.Errorf("scan orphan %s node: %w", level, err)
		}
		node.ParentID = &parent
		out = append(out, node)
	}
	return out, rows.Err()
}

// WithinScope wraps fn in one transaction. Nested calls reuse the enclosing
// transaction.
func (s *PostgresStore) WithinScope(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	return txcontext.Run(ctx, s.db, fn)
}

func scanPollingUnits(rows *sql.Rows) ([]*models.PollingUnit, error) {
	var out []*models.PollingUnit
	for rows.Next() {
		pu := &models.PollingUnit{}
		if err := rows.Scan(&pu.ID, &pu.WardID, &pu.Name, &pu.Code); err != nil {
			return nil, fmt.Errorf("scan polling unit: %w", err)
		}
		out = append(out, pu)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
