package sync

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"geosync/internal/audit"
	"geosync/internal/geo/match"
	"geosync/internal/geo/models"
	"geosync/internal/geo/store"
)

// merge collapses a duplicate node into its canonical sibling and records the
// action. The ordering invariant lives in mergeNodes: children first, then
// dependents, and only then the loser row itself.
func (s *Synchronizer) merge(ctx context.Context, level models.Level, scopeName string, loser *models.Node, winnerID uuid.UUID) error {
	if loser.ID == winnerID {
		return nil
	}
	if err := s.mergeNodes(ctx, level, loser.ID, winnerID); err != nil {
		return err
	}
	s.logger.Info("merged duplicate node",
		"level", level.String(), "scope", scopeName,
		"loser", loser.Name, "loser_id", loser.ID.String(), "winner_id", winnerID.String())
	if s.metrics != nil {
		s.metrics.Merges.WithLabelValues(level.String()).Inc()
	}
	s.emit(ctx, audit.Event{
		Action:   audit.ActionMerge,
		Level:    level.String(),
		Scope:    scopeName,
		Name:     loser.Name,
		Code:     loser.Code,
		LoserID:  loser.ID.String(),
		WinnerID: winnerID.String(),
	})
	return nil
}

// mergeNodes repoints everything hanging off loserID to winnerID and deletes
// the loser. A delete never executes while any record still references the
// deleted id. A loser that is already gone counts as success, which makes the
// whole operation idempotent on re-run.
func (s *Synchronizer) mergeNodes(ctx context.Context, level models.Level, loserID, winnerID uuid.UUID) error {
	if childLevel, ok := level.Child(); ok {
		loserChildren, err := s.store.ListNodes(ctx, childLevel, &loserID)
		if err != nil {
			return err
		}
		if len(loserChildren) > 0 {
			winnerChildren, err := s.store.ListNodes(ctx, childLevel, &winnerID)
			if err != nil {
				return err
			}
			byKey := make(map[string]*models.Node, len(winnerChildren))
			for _, wc := range winnerChildren {
				byKey[match.StrictKey(wc.Name)] = wc
			}
			for _, lc := range loserChildren {
				if wc, exists := byKey[match.StrictKey(lc.Name)]; exists {
					if err := s.mergeNodes(ctx, childLevel, lc.ID, wc.ID); err != nil {
						return err
					}
					continue
				}
				if err := s.store.ReparentNode(ctx, childLevel, lc.ID, winnerID); err != nil &&
					!errors.Is(err, store.ErrNotFound) {
					return err
				}
			}
		}
	}

	repointed, err := s.store.RepointDependents(ctx, level, loserID, winnerID)
	if err != nil {
		return err
	}
	if s.metrics != nil && repointed > 0 {
		s.metrics.RefsRepointed.WithLabelValues(level.String()).Add(float64(repointed))
	}

	if err := s.store.DeleteNode(ctx, level, loserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}
