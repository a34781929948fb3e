package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"geosync/internal/geo/models"
)

// memRow is one dependent record's foreign keys, column name -> target id.
type memRow map[string]*uuid.UUID

// InMemory keeps the whole hierarchy plus simulated dependent rows in maps.
// It backs the unit suites; production runs use PostgresStore.
type InMemory struct {
	mu        sync.RWMutex
	nodes     map[uuid.UUID]*models.Node
	punits    map[uuid.UUID]*models.PollingUnit
	rows      map[string]map[uuid.UUID]memRow   // dependent table -> row id -> fks
	artifacts map[string]map[uuid.UUID]uuid.UUID // artifact table -> row id -> polling unit id
}

func NewInMemory() *InMemory {
	s := &InMemory{
		nodes:     make(map[uuid.UUID]*models.Node),
		punits:    make(map[uuid.UUID]*models.PollingUnit),
		rows:      make(map[string]map[uuid.UUID]memRow),
		artifacts: make(map[string]map[uuid.UUID]uuid.UUID),
	}
	for _, ref := range models.HierarchyDependents {
		if ref.Table != "polling_units" {
			s.rows[ref.Table] = make(map[uuid.UUID]memRow)
		}
	}
	for _, ref := range models.PollingUnitDependents {
		s.artifacts[ref.Table] = make(map[uuid.UUID]uuid.UUID)
	}
	return s
}

func (s *InMemory) ListNodes(_ context.Context, level models.Level, parentID *uuid.UUID) ([]*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Node
	for _, n := range s.nodes {
		if n.Level != level {
			continue
		}
		if parentID != nil && (n.ParentID == nil || *n.ParentID != *parentID) {
			continue
		}
		copied := *n
		out = append(out, &copied)
	}
	// Name order keeps solver input deterministic across runs.
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemory) GetNode(_ context.Context, level models.Level, id uuid.UUID) (*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok || n.Level != level {
		return nil, ErrNotFound
	}
	copied := *n
	return &copied, nil
}

func (s *InMemory) CreateNode(_ context.Context, node *models.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.nodes {
		if existing.Level == node.Level && sameParent(existing.ParentID, node.ParentID) &&
			existing.Code == node.Code {
			return ErrConflict
		}
	}
	copied := *node
	s.nodes[node.ID] = &copied
	return nil
}

func (s *InMemory) RenameNode(_ context.Context, level models.Level, id uuid.UUID, name, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok || n.Level != level {
		return ErrNotFound
	}
	for _, sibling := range s.nodes {
		if sibling.ID == id || sibling.Level != n.Level || !sameParent(sibling.ParentID, n.ParentID) {
			continue
		}
		if strings.EqualFold(sibling.Name, name) || sibling.Code == code {
			return ErrConflict
		}
	}
	n.Name = name
	n.Code = code
	return nil
}

func (s *InMemory) ReparentNode(_ context.Context, level models.Level, id, parentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok || n.Level != level {
		return ErrNotFound
	}
	parent := parentID
	n.ParentID = &parent
	return nil
}

func (s *InMemory) DeleteNode(_ context.Context, level models.Level, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[id]; !ok || n.Level != level {
		return ErrNotFound
	}
	delete(s.nodes, id)
	return nil
}

func (s *InMemory) RepointDependents(_ context.Context, level models.Level, loserID, winnerID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var repointed int64
	for _, ref := range models.DependentsOf(level) {
		if ref.Table == "polling_units" {
			for _, pu := range s.punits {
				if pu.WardID == loserID {
					pu.WardID = winnerID
					repointed++
				}
			}
			continue
		}
		for _, row := range s.rows[ref.Table] {
			if fk := row[ref.Column]; fk != nil && *fk == loserID {
				winner := winnerID
				row[ref.Column] = &winner
				repointed++
			}
		}
	}
	return repointed, nil
}

func (s *InMemory) CountDependents(_ context.Context, level models.Level, id uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, ref := range models.DependentsOf(level) {
		if ref.Table == "polling_units" {
			for _, pu := range s.punits {
				if pu.WardID == id {
					count++
				}
			}
			continue
		}
		for _, row := range s.rows[ref.Table] {
			if fk := row[ref.Column]; fk != nil && *fk == id {
				count++
			}
		}
	}
	return count, nil
}

func (s *InMemory) NullDependents(_ context.Context, level models.Level, id uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cleared int64
	for _, ref := range models.DependentsOf(level) {
		if ref.OnOrphan != models.OrphanSetNull {
			continue
		}
		for _, row := range s.rows[ref.Table] {
			if fk := row[ref.Column]; fk != nil && *fk == id {
				row[ref.Column] = nil
				cleared++
			}
		}
	}
	return cleared, nil
}

func (s *InMemory) NullDanglingRefs(_ context.Context, level models.Level) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cleared int64
	for _, ref := range models.DependentsOf(level) {
		if ref.OnOrphan != models.OrphanSetNull {
			continue
		}
		for _, row := range s.rows[ref.Table] {
			fk := row[ref.Column]
			if fk == nil {
				continue
			}
			if target, ok := s.nodes[*fk]; !ok || target.Level != level {
				row[ref.Column] = nil
				cleared++
			}
		}
	}
	return cleared, nil
}

func (s *InMemory) CountDanglingRefs(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int)
	for _, ref := range models.HierarchyDependents {
		key := ref.Table + "." + ref.Column
		out[key] = 0
		if ref.Table == "polling_units" {
			for _, pu := range s.punits {
				if _, ok := s.nodes[pu.WardID]; !ok {
					out[key]++
				}
			}
			continue
		}
		for _, row := range s.rows[ref.Table] {
			fk := row[ref.Column]
			if fk == nil {
				continue
			}
			if target, ok := s.nodes[*fk]; !ok || target.Level != ref.Level {
				out[key]++
			}
		}
	}
	for _, ref := range models.PollingUnitDependents {
		key := ref.Table + "." + ref.Column
		out[key] = 0
		for _, puID := range s.artifacts[ref.Table] {
			if _, ok := s.punits[puID]; !ok {
				out[key]++
			}
		}
	}
	return out, nil
}

func (s *InMemory) ListPollingUnits(_ context.Context, wardID uuid.UUID) ([]*models.PollingUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.PollingUnit
	for _, pu := range s.punits {
		if pu.WardID == wardID {
			copied := *pu
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemory) OrphanPollingUnits(_ context.Context) ([]*models.PollingUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.PollingUnit
	for _, pu := range s.punits {
		if ward, ok := s.nodes[pu.WardID]; !ok || ward.Level != models.LevelWard {
			copied := *pu
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemory) DeletePollingUnit(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.punits[id]; !ok {
		return ErrNotFound
	}
	// Artifacts go first so no row ever references a missing polling unit.
	for _, ref := range models.PollingUnitDependents {
		for rowID, puID := range s.artifacts[ref.Table] {
			if puID == id {
				delete(s.artifacts[ref.Table], rowID)
			}
		}
	}
	delete(s.punits, id)
	return nil
}

func (s *InMemory) CountNodes(_ context.Context, level models.Level) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.nodes {
		if n.Level == level {
			count++
		}
	}
	return count, nil
}

func (s *InMemory) CountByParent(_ context.Context, level models.Level) (map[uuid.UUID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]int)
	for _, n := range s.nodes {
		if n.Level == level && n.ParentID != nil {
			out[*n.ParentID]++
		}
	}
	return out, nil
}

func (s *InMemory) OrphanNodes(_ context.Context, level models.Level) ([]*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	parentLevel, ok := level.Parent()
	if !ok {
		return nil, nil
	}
	var out []*models.Node
	for _, n := range s.nodes {
		if n.Level != level {
			continue
		}
		if n.ParentID == nil {
			copied := *n
			out = append(out, &copied)
			continue
		}
		if parent, exists := s.nodes[*n.ParentID]; !exists || parent.Level != parentLevel {
			copied := *n
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// WithinScope is a passthrough; the memory store has no transactions.
func (s *InMemory) WithinScope(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Seeding helpers for tests.

// AddNode inserts a node without sibling checks.
func (s *InMemory) AddNode(node *models.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *node
	s.nodes[node.ID] = &copied
}

// AddDependent inserts one dependent row and returns its id. refs maps
// column names to target node ids.
func (s *InMemory) AddDependent(table string, refs map[string]uuid.UUID) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := make(memRow, len(refs))
	for column, target := range refs {
		id := target
		row[column] = &id
	}
	rowID := uuid.New()
	s.rows[table][rowID] = row
	return rowID
}

// AddPollingUnit inserts a polling unit row.
func (s *InMemory) AddPollingUnit(pu *models.PollingUnit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *pu
	s.punits[pu.ID] = &copied
}

// AddArtifact inserts one election artifact row referencing a polling unit.
func (s *InMemory) AddArtifact(table string, pollingUnitID uuid.UUID) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	rowID := uuid.New()
	s.artifacts[table][rowID] = pollingUnitID
	return rowID
}

// DependentRef reads back one dependent row's foreign key for assertions.
func (s *InMemory) DependentRef(table string, rowID uuid.UUID, column string) (*uuid.UUID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[table][rowID]
	if !ok {
		return nil, false
	}
	fk := row[column]
	if fk == nil {
		return nil, true
	}
	id := *fk
	return &id, true
}

// CountArtifacts reports rows in one artifact table.
func (s *InMemory) CountArtifacts(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.artifacts[table])
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
