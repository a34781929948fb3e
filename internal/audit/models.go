package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action identifies one kind of hierarchy mutation worth an audit record.
type Action string

const (
	ActionMerge         Action = "hierarchy.merge"
	ActionCreate        Action = "hierarchy.create"
	ActionRename        Action = "hierarchy.rename"
	ActionOrphanRemoved Action = "hierarchy.orphan_removed"
	ActionOrphanNulled  Action = "hierarchy.orphan_nulled"
)

// Event is emitted from the engine to capture each correcting action. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID
	Timestamp time.Time
	Action    Action
	Level     string
	Scope     string // parent node name, empty at the top level
	Name      string
	Code      string
	LoserID   string
	WinnerID  string
	Detail    string
}
