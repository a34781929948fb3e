package report

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"geosync/internal/geo/models"
	"geosync/internal/geo/source"
	"geosync/internal/geo/store"
)

// LevelSummary is the recomputed state of one hierarchy level.
type LevelSummary struct {
	Level     models.Level
	Total     int
	Expected  int
	PerParent map[uuid.UUID]int
}

// Mismatch reports whether the recomputed total differs from the
// authoritative expectation.
func (s LevelSummary) Mismatch() bool {
	return s.Total != s.Expected
}

// Report is the validator's machine-readable output. The logged summary is
// the operator-facing version of the same data.
type Report struct {
	Levels   []LevelSummary
	Dangling map[string]int
}

// Mismatches counts levels whose total differs from the expected count.
func (r *Report) Mismatches() int {
	n := 0
	for _, l := range r.Levels {
		if l.Mismatch() {
			n++
		}
	}
	return n
}

// DanglingTotal sums residual orphan references across dependent tables.
// Zero after a clean run.
func (r *Report) DanglingTotal() int {
	n := 0
	for _, count := range r.Dangling {
		n += count
	}
	return n
}

// Validator recomputes counts after a run and compares them against the
// authoritative source. A mismatch is a warning, never an abort: the run has
// already committed its corrections, and the discrepancy may sit in the
// source itself.
type Validator struct {
	store  store.Store
	logger *slog.Logger
}

func New(st store.Store, logger *slog.Logger) *Validator {
	return &Validator{store: st, logger: logger}
}

// Run produces the final report for one reconciliation run.
func (v *Validator) Run(ctx context.Context, ds *source.Dataset) (*Report, error) {
	rep := &Report{}

	for _, level := range models.Levels() {
		total, err := v.store.CountNodes(ctx, level)
		if err != nil {
			return nil, err
		}
		perParent, err := v.store.CountByParent(ctx, level)
		if err != nil {
			return nil, err
		}
		summary := LevelSummary{
			Level:     level,
			Total:     total,
			Expected:  ds.ExpectedCount(level),
			PerParent: perParent,
		}
		rep.Levels = append(rep.Levels, summary)

		if summary.Mismatch() {
			v.logger.Warn("level total differs from authoritative source",
				"level", level.String(), "total", total, "expected", summary.Expected)
		} else {
			v.logger.Info("level total matches authoritative source",
				"level", level.String(), "total", total)
		}
		v.logger.Info("per-parent breakdown",
			"level", level.String(), "parents", len(perParent))
	}

	dangling, err := v.store.CountDanglingRefs(ctx)
	if err != nil {
		return nil, err
	}
	rep.Dangling = dangling
	for key, count := range dangling {
		if count > 0 {
			v.logger.Warn("dangling references remain", "ref", key, "count", count)
		}
	}
	if rep.DanglingTotal() == 0 {
		v.logger.Info("no dangling references remain")
	}

	return rep, nil
}
