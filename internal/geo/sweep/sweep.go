package sweep

import (
	"context"
	"log/slog"

	"geosync/internal/audit"
	"geosync/internal/geo/metrics"
	"geosync/internal/geo/models"
	"geosync/internal/geo/store"
)

// AuditPublisher records each orphan the sweeper removes or nulls.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Sweeper restores a consistent tree after all levels have synchronized:
// nodes whose parent was deleted by a merge but never repointed, leaf records
// whose owner vanished, and member references into the void. Rows referencing
// an about-to-be-removed id are always fixed before the id's owner goes.
type Sweeper struct {
	store   store.Store
	logger  *slog.Logger
	audit   AuditPublisher
	metrics *metrics.Metrics
}

type Option func(*Sweeper)

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Sweeper) {
		s.audit = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

func New(st store.Store, logger *slog.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{store: st, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result summarizes one sweep for the final report.
type Result struct {
	OrphanWards        int
	OrphanPollingUnits int
	RefsNulled         int64
}

// Run sweeps lowest level first.
func (s *Sweeper) Run(ctx context.Context) (*Result, error) {
	res := &Result{}

	// Wards whose LGA no longer exists: cascade their polling units, null
	// every surviving reference, then delete the ward itself.
	orphanWards, err := s.store.OrphanNodes(ctx, models.LevelWard)
	if err != nil {
		return nil, err
	}
	for _, ward := range orphanWards {
		punits, err := s.store.ListPollingUnits(ctx, ward.ID)
		if err != nil {
			return nil, err
		}
		for _, pu := range punits {
			if err := s.store.DeletePollingUnit(ctx, pu.ID); err != nil {
				return nil, err
			}
		}
		nulled, err := s.store.NullDependents(ctx, models.LevelWard, ward.ID)
		if err != nil {
			return nil, err
		}
		res.RefsNulled += nulled
		if err := s.store.DeleteNode(ctx, models.LevelWard, ward.ID); err != nil {
			return nil, err
		}
		res.OrphanWards++
		s.logger.Warn("removed orphan ward",
			"name", ward.Name, "code", ward.Code, "polling_units", len(punits), "refs_nulled", nulled)
		if s.metrics != nil {
			s.metrics.OrphansSwept.WithLabelValues("ward").Inc()
		}
		s.emit(ctx, audit.Event{
			Action: audit.ActionOrphanRemoved,
			Level:  models.LevelWard.String(),
			Name:   ward.Name,
			Code:   ward.Code,
		})
	}

	// Polling units whose ward no longer exists.
	orphanUnits, err := s.store.OrphanPollingUnits(ctx)
	if err != nil {
		return nil, err
	}
	for _, pu := range orphanUnits {
		if err := s.store.DeletePollingUnit(ctx, pu.ID); err != nil {
			return nil, err
		}
		res.OrphanPollingUnits++
		s.logger.Warn("removed orphan polling unit", "name", pu.Name, "code", pu.Code)
		if s.metrics != nil {
			s.metrics.OrphansSwept.WithLabelValues("polling_unit").Inc()
		}
		s.emit(ctx, audit.Event{
			Action: audit.ActionOrphanRemoved,
			Level:  "polling_unit",
			Name:   pu.Name,
			Code:   pu.Code,
		})
	}

	// Surviving rows still pointing at missing nodes: null, never delete.
	// Members keep their accounts; only the geography reference goes.
	for _, level := range []models.Level{models.LevelWard, models.LevelLGA, models.LevelState} {
		nulled, err := s.store.NullDanglingRefs(ctx, level)
		if err != nil {
			return nil, err
		}
		if nulled == 0 {
			continue
		}
		res.RefsNulled += nulled
		s.logger.Warn("nulled dangling references", "level", level.String(), "refs", nulled)
		if s.metrics != nil {
			s.metrics.OrphansSwept.WithLabelValues("ref").Add(float64(nulled))
		}
		s.emit(ctx, audit.Event{
			Action: audit.ActionOrphanNulled,
			Level:  level.String(),
		})
	}

	s.logger.Info("orphan sweep complete",
		"orphan_wards", res.OrphanWards,
		"orphan_polling_units", res.OrphanPollingUnits,
		"refs_nulled", res.RefsNulled)
	return res, nil
}

func (s *Sweeper) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.Warn("audit emit failed", "action", string(event.Action), "err", err)
	}
}
