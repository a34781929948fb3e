package models

import (
	"github.com/google/uuid"

	dErrors "geosync/pkg/domain-errors"
)

// Level identifies one tier of the administrative hierarchy, coarsest first.
type Level int

const (
	LevelState Level = iota
	LevelLGA
	LevelWard
)

func (l Level) String() string {
	switch l {
	case LevelState:
		return "state"
	case LevelLGA:
		return "lga"
	case LevelWard:
		return "ward"
	}
	return "unknown"
}

// Child returns the level below l, if any. Wards are the finest level.
func (l Level) Child() (Level, bool) {
	switch l {
	case LevelState:
		return LevelLGA, true
	case LevelLGA:
		return LevelWard, true
	}
	return 0, false
}

// Parent returns the level above l, if any. States have no parent.
func (l Level) Parent() (Level, bool) {
	switch l {
	case LevelLGA:
		return LevelState, true
	case LevelWard:
		return LevelLGA, true
	}
	return 0, false
}

// Levels lists all hierarchy levels in top-down processing order.
func Levels() []Level {
	return []Level{LevelState, LevelLGA, LevelWard}
}

// Node is one persisted hierarchy entity. The ID is assigned at creation and
// never changes; name and code may be rewritten to canonical values during
// reconciliation.
type Node struct {
	ID       uuid.UUID
	ParentID *uuid.UUID
	Level    Level
	Name     string
	Code     string
}

// NewNode validates hierarchy invariants and builds a Node with a fresh ID.
// Every non-state node must carry a parent reference.
func NewNode(level Level, parentID *uuid.UUID, name, code string) (*Node, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "node name must not be empty")
	}
	if code == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "node code must not be empty")
	}
	if level != LevelState && parentID == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "non-state node requires a parent")
	}
	if level == LevelState && parentID != nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "state node must not have a parent")
	}
	return &Node{
		ID:       uuid.New(),
		ParentID: parentID,
		Level:    level,
		Name:     name,
		Code:     code,
	}, nil
}

// CanonicalRecord is one row of the authoritative source for a single run.
// It is never persisted; it only drives matching.
type CanonicalRecord struct {
	ParentCode string
	Name       string
	Code       string
}

// PollingUnit is the ward's leaf-level voting location. Polling units are the
// only leaf records this engine creates or destroys; their own dependents
// (results, incident reports, agent assignments, result sheets) are handled
// through the dependent-table registry.
type PollingUnit struct {
	ID     uuid.UUID
	WardID uuid.UUID
	Name   string
	Code   string
}
