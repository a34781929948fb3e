package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"geosync/internal/audit"
	"geosync/internal/geo/match"
	"geosync/internal/geo/metrics"
	"geosync/internal/geo/models"
	"geosync/internal/geo/source"
	"geosync/internal/geo/store"
)

// AuditPublisher records each correcting action the synchronizer takes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Synchronizer reconciles one level at a time against the authoritative
// dataset: solve the assignment per parent scope, merge duplicates, create
// missing canonical nodes, then rename survivors to canonical spelling.
type Synchronizer struct {
	store   store.Store
	logger  *slog.Logger
	audit   AuditPublisher
	metrics *metrics.Metrics
}

type Option func(*Synchronizer)

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Synchronizer) {
		s.audit = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Synchronizer) {
		s.metrics = m
	}
}

// New constructs a Synchronizer.
func New(st store.Store, logger *slog.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{store: st, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run synchronizes every level in strict top-down order. Lower levels depend
// on the parent ids resolved above, so the order is not negotiable.
func (s *Synchronizer) Run(ctx context.Context, ds *source.Dataset) error {
	for _, level := range models.Levels() {
		if err := s.SyncLevel(ctx, level, ds); err != nil {
			return err
		}
	}
	return nil
}

// SyncLevel reconciles one hierarchy level, scope by scope. Canonical records
// whose parent code resolves to nothing are skipped with a warning; that is a
// per-record anomaly, not a reason to abort the run.
func (s *Synchronizer) SyncLevel(ctx context.Context, level models.Level, ds *source.Dataset) error {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveSync(level.String(), start)
		}
	}()

	records := ds.Records(level)
	s.logger.Info("synchronizing level", "level", level.String(), "canonical_records", len(records))

	if level == models.LevelState {
		return s.syncScope(ctx, level, nil, "", records)
	}

	parentLevel, _ := level.Parent()
	parents, err := s.store.ListNodes(ctx, parentLevel, nil)
	if err != nil {
		return err
	}
	byCode := make(map[string]*models.Node, len(parents))
	byKey := make(map[string]*models.Node, len(parents))
	for _, p := range parents {
		byCode[p.Code] = p
		byKey[match.StrictKey(p.Name)] = p
	}

	for _, group := range groupByParent(records) {
		parent, ok := byCode[group.parentCode]
		if !ok {
			// The source sometimes carries the parent name where a code is
			// expected; fall back to the name key before giving up.
			parent, ok = byKey[match.StrictKey(group.parentCode)]
		}
		if !ok {
			s.logger.Warn("canonical parent not found, skipping scope",
				"level", level.String(), "parent_code", group.parentCode,
				"records", len(group.records))
			continue
		}
		if err := s.syncScope(ctx, level, &parent.ID, parent.Name, group.records); err != nil {
			return err
		}
	}
	return nil
}

// syncScope runs one parent scope's full solve/merge/create/rename cycle
// inside a single store scope (a transaction on PostgreSQL).
func (s *Synchronizer) syncScope(ctx context.Context, level models.Level, parentID *uuid.UUID, scopeName string, records []models.CanonicalRecord) error {
	return s.store.WithinScope(ctx, func(ctx context.Context) error {
		nodes, err := s.store.ListNodes(ctx, level, parentID)
		if err != nil {
			return err
		}
		asg := match.Solve(records, nodes)
		s.logger.Info("scope solved",
			"level", level.String(), "scope", scopeName,
			"matched", len(asg.Matched),
			"unmatched_canonical", len(asg.UnmatchedCanonical),
			"unmatched_nodes", len(asg.UnmatchedNodes))

		// Unclaimed store nodes are duplicates of some matched canonical and
		// merge into the best available target, floor or no floor.
		for _, dup := range asg.UnmatchedNodes {
			winnerID, ok := asg.BestTarget(records, dup)
			if !ok {
				s.logger.Warn("duplicate has no merge target in scope",
					"level", level.String(), "scope", scopeName, "name", dup.Name)
				continue
			}
			if err := s.merge(ctx, level, scopeName, dup, winnerID); err != nil {
				return err
			}
		}

		// Canonical records nothing claimed become new nodes.
		for _, rec := range asg.UnmatchedCanonical {
			if err := s.createNode(ctx, level, parentID, scopeName, rec); err != nil {
				return err
			}
		}

		// Renames run last so name-uniqueness sees a stable sibling set.
		return s.renameMatched(ctx, level, parentID, scopeName, records, asg)
	})
}

func (s *Synchronizer) createNode(ctx context.Context, level models.Level, parentID *uuid.UUID, scopeName string, rec models.CanonicalRecord) error {
	node, err := models.NewNode(level, parentID, rec.Name, rec.Code)
	if err != nil {
		s.logger.Warn("invalid canonical record, skipping",
			"level", level.String(), "scope", scopeName, "name", rec.Name, "err", err)
		return nil
	}
	if err := s.store.CreateNode(ctx, node); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// The conflicting node already represents this canonical entity;
			// a future pass will claim it.
			s.logger.Warn("canonical code already in scope, skipping create",
				"level", level.String(), "scope", scopeName,
				"name", rec.Name, "code", rec.Code)
			return nil
		}
		return err
	}
	s.logger.Info("created canonical node",
		"level", level.String(), "scope", scopeName, "name", rec.Name, "code", rec.Code)
	if s.metrics != nil {
		s.metrics.Creates.WithLabelValues(level.String()).Inc()
	}
	s.emit(ctx, audit.Event{
		Action: audit.ActionCreate,
		Level:  level.String(),
		Scope:  scopeName,
		Name:   rec.Name,
		Code:   rec.Code,
	})
	return nil
}

func (s *Synchronizer) renameMatched(ctx context.Context, level models.Level, parentID *uuid.UUID, scopeName string, records []models.CanonicalRecord, asg *match.Assignment) error {
	current, err := s.store.ListNodes(ctx, level, parentID)
	if err != nil {
		return err
	}
	byID := make(map[uuid.UUID]*models.Node, len(current))
	for _, n := range current {
		byID[n.ID] = n
	}

	for ci := range records {
		matchedNode, ok := asg.MatchedNodeByCanonical(ci)
		if !ok {
			continue
		}
		node, live := byID[matchedNode.ID]
		if !live {
			continue
		}
		rec := records[ci]
		if node.Name == rec.Name && node.Code == rec.Code {
			continue
		}
		err := s.store.RenameNode(ctx, level, node.ID, rec.Name, rec.Code)
		switch {
		case errors.Is(err, store.ErrConflict):
			// Sibling-name collisions imply a deeper source anomaly; the
			// operator inspects, the run continues.
			s.logger.Warn("rename would collide with sibling, skipping",
				"level", level.String(), "scope", scopeName,
				"from", node.Name, "to", rec.Name)
			if s.metrics != nil {
				s.metrics.RenameSkips.WithLabelValues(level.String()).Inc()
			}
		case errors.Is(err, store.ErrNotFound):
			s.logger.Warn("matched node vanished before rename",
				"level", level.String(), "scope", scopeName, "name", rec.Name)
		case err != nil:
			return err
		default:
			s.logger.Info("renamed node to canonical spelling",
				"level", level.String(), "scope", scopeName,
				"from", node.Name, "to", rec.Name, "code", rec.Code)
			if s.metrics != nil {
				s.metrics.Renames.WithLabelValues(level.String()).Inc()
			}
			s.emit(ctx, audit.Event{
				Action: audit.ActionRename,
				Level:  level.String(),
				Scope:  scopeName,
				Name:   rec.Name,
				Code:   rec.Code,
				Detail: "was " + node.Name,
			})
		}
	}
	return nil
}

func (s *Synchronizer) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		// Audit failures never fail the run.
		s.logger.Warn("audit emit failed", "action", string(event.Action), "err", err)
	}
}

type parentGroup struct {
	parentCode string
	records    []models.CanonicalRecord
}

// groupByParent buckets canonical records by parent code, preserving
// first-seen order so runs stay deterministic.
func groupByParent(records []models.CanonicalRecord) []parentGroup {
	index := make(map[string]int)
	var groups []parentGroup
	for _, rec := range records {
		i, ok := index[rec.ParentCode]
		if !ok {
			i = len(groups)
			index[rec.ParentCode] = i
			groups = append(groups, parentGroup{parentCode: rec.ParentCode})
		}
		groups[i].records = append(groups[i].records, rec)
	}
	return groups
}
