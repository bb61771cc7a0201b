package reconcile

import "hpl3-export/core/mapdoc"

// ActionType classifies one planned mutation.
type ActionType string

const (
	// ActionRemoveObject removes an orphaned registry row.
	ActionRemoveObject ActionType = "remove_object"
	// ActionRemoveIndex removes a file-index entry and renumbers the rest.
	ActionRemoveIndex ActionType = "remove_index"
	// ActionDeleteFiles removes a geometry's files from disk once its use
	// count reaches zero.
	ActionDeleteFiles ActionType = "delete_files"
)

// Action is one planned mutation operation.
type Action struct {
	// Type specifies the action to perform.
	Type ActionType `json:"type"`

	// Name is the registry row name for remove_object actions.
	Name string `json:"name,omitempty"`

	// IndexID is the file-index id for remove_index actions, numbered as
	// of plan time.
	IndexID int `json:"index_id,omitempty"`

	// GeometryPath is the ledger key affected by the action.
	GeometryPath string `json:"geometry_path,omitempty"`

	// Files lists the on-disk files enqueued by delete_files actions.
	Files []string `json:"files,omitempty"`

	// Reason explains why this action is needed.
	Reason string `json:"reason"`
}

// Summary provides aggregate statistics for a plan.
type Summary struct {
	// RegistryObjects is the number of rows inspected.
	RegistryObjects int `json:"registry_objects"`

	// LiveObjects is the number of distinct live scene names supplied.
	LiveObjects int `json:"live_objects"`

	// Orphans counts rows with no backing scene object.
	Orphans int `json:"orphans"`

	// SharedSkipped counts orphans whose geometry stays on disk because a
	// surviving row still references the same file-index entry.
	SharedSkipped int `json:"shared_skipped"`

	// IndexRemovals counts file-index entries losing their last reference.
	IndexRemovals int `json:"index_removals"`

	// FilesToDelete counts files enqueued for disk removal.
	FilesToDelete int `json:"files_to_delete"`
}

// Plan contains the orphans found and the mutations needed to remove
// them. A plan is a pure description; nothing has been changed yet.
type Plan struct {
	Orphans []*mapdoc.PlacedObject `json:"-"`
	Actions []Action               `json:"actions"`
	Summary Summary                `json:"summary"`
}

// Options controls plan application.
type Options struct {
	// DryRun prevents execution of any mutations if true.
	DryRun bool

	// Confirmed indicates the user has confirmed destructive actions.
	// If false, mutations will not execute regardless of DryRun.
	Confirmed bool
}

// Applied reports what ApplyPlan actually did.
type Applied struct {
	// Removed is the number of registry rows removed.
	Removed int `json:"removed"`

	// Residual lists files that could not be deleted and stay tracked in
	// the ledger for a later retry.
	Residual []string `json:"residual"`
}
