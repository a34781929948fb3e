package models

// OrphanPolicy says what happens to a dependent row when the hierarchy node
// it references disappears without a merge target.
type OrphanPolicy int

const (
	// OrphanSetNull clears the foreign key and keeps the row.
	OrphanSetNull OrphanPolicy = iota
	// OrphanCascadeDelete removes the row together with its own dependents.
	OrphanCascadeDelete
)

// DependentRef declares one foreign-key column pointing at a hierarchy level.
// The merge executor and orphan sweeper are driven entirely by this registry,
// so adding a dependent table is a data change, not new code.
type DependentRef struct {
	Table    string
	Column   string
	Level    Level
	OnOrphan OrphanPolicy
}

// HierarchyDependents lists every table column referencing a hierarchy node.
var HierarchyDependents = []DependentRef{
	{Table: "members", Column: "state_id", Level: LevelState, OnOrphan: OrphanSetNull},
	{Table: "members", Column: "lga_id", Level: LevelLGA, OnOrphan: OrphanSetNull},
	{Table: "members", Column: "ward_id", Level: LevelWard, OnOrphan: OrphanSetNull},
	{Table: "events", Column: "state_id", Level: LevelState, OnOrphan: OrphanSetNull},
	{Table: "events", Column: "lga_id", Level: LevelLGA, OnOrphan: OrphanSetNull},
	{Table: "events", Column: "ward_id", Level: LevelWard, OnOrphan: OrphanSetNull},
	{Table: "posts", Column: "state_id", Level: LevelState, OnOrphan: OrphanSetNull},
	{Table: "micro_tasks", Column: "lga_id", Level: LevelLGA, OnOrphan: OrphanSetNull},
	{Table: "volunteer_tasks", Column: "ward_id", Level: LevelWard, OnOrphan: OrphanSetNull},
	{Table: "issue_campaigns", Column: "lga_id", Level: LevelLGA, OnOrphan: OrphanSetNull},
	{Table: "polling_units", Column: "ward_id", Level: LevelWard, OnOrphan: OrphanCascadeDelete},
}

// PollingUnitDependents lists the election artifacts that must be removed
// before a polling unit row can be deleted.
var PollingUnitDependents = []DependentRef{
	{Table: "election_results", Column: "polling_unit_id", OnOrphan: OrphanCascadeDelete},
	{Table: "incident_reports", Column: "polling_unit_id", OnOrphan: OrphanCascadeDelete},
	{Table: "agent_assignments", Column: "polling_unit_id", OnOrphan: OrphanCascadeDelete},
	{Table: "result_sheets", Column: "polling_unit_id", OnOrphan: OrphanCascadeDelete},
}

// DependentsOf returns the registry entries referencing the given level.
func DependentsOf(level Level) []DependentRef {
	refs := make([]DependentRef, 0, len(HierarchyDependents))
	for _, ref := range HierarchyDependents {
		if ref.Level == level {
			refs = append(refs, ref)
		}
	}
	return refs
}

// ParentColumn names the node table's own parent reference column.
// States sit at the top and have none.
func ParentColumn(level Level) string {
	switch level {
	case LevelLGA:
		return "state_id"
	case LevelWard:
		return "lga_id"
	}
	return ""
}

// NodeTable maps a hierarchy level to its backing table.
func NodeTable(level Level) string {
	switch level {
	case LevelState:
		return "states"
	case LevelLGA:
		return "lgas"
	case LevelWard:
		return "wards"
	}
	return ""
}
