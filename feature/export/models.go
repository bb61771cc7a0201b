package export

import (
	"github.com/go-gl/mathgl/mgl64"

	"hpl3-export/core/mapdoc"
	"hpl3-export/core/reconcile"
)

// SceneObject is one object from the authoring scene as handed to an
// export pass.
type SceneObject struct {
	// Name is the raw scene name. It is sanitized before it reaches the
	// map document or the filesystem.
	Name string `json:"name"`

	// Kind selects the static-object or entity pipeline.
	Kind mapdoc.Kind `json:"kind"`

	// World is the object's world matrix, row-major.
	World [16]float64 `json:"world"`

	// ParentWorld is the armature's world matrix for rigged objects. When
	// set it replaces World for placement.
	ParentWorld *[16]float64 `json:"parent_world,omitempty"`

	// Mesh identifies the shared mesh datablock. Instances of the same
	// mesh share one exported geometry file.
	Mesh string `json:"mesh"`

	// Modified marks objects whose geometry changed since the last pass.
	Modified bool `json:"modified"`

	// Flags carries the per-object engine attributes.
	Flags mapdoc.Flags `json:"flags"`
}

// worldMatrix converts the row-major wire layout to mgl64's column-major
// storage.
func worldMatrix(a [16]float64) mgl64.Mat4 {
	var m mgl64.Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m[c*4+r] = a[r*4+c]
		}
	}
	return m
}

// PassOptions controls one export pass.
type PassOptions struct {
	// SyncDeletions removes orphaned map entries at the end of the pass.
	SyncDeletions bool `json:"sync_deletions"`

	// DryRun computes the pass result without invoking collaborators,
	// deleting files or committing documents.
	DryRun bool `json:"dry_run"`

	// Now overrides the modification stamp written to touched rows. Zero
	// means wall-clock time.
	Now int64 `json:"-"`
}

// PassResult summarizes what an export pass did.
type PassResult struct {
	// Objects is the number of scene objects processed.
	Objects int `json:"objects"`

	// Created counts rows added to the map documents.
	Created int `json:"created"`

	// Updated counts rows refreshed in place.
	Updated int `json:"updated"`

	// GeometriesExported counts interchange files written by collaborators.
	GeometriesExported int `json:"geometries_exported"`

	// TexturesConverted counts engine textures produced.
	TexturesConverted int `json:"textures_converted"`

	// Warnings lists non-fatal findings such as stale index references.
	Warnings []string `json:"warnings,omitempty"`

	// Reconciled summarizes the deletion sync when it ran.
	Reconciled *reconcile.Summary `json:"reconciled,omitempty"`
}

// ReconcileReport is the outcome of a standalone reconcile call.
type ReconcileReport struct {
	// Plans holds the per-kind plans, keyed by object kind.
	Plans map[string]*reconcile.Plan `json:"plans"`

	// Removed is the number of registry rows removed across documents.
	Removed int `json:"removed"`

	// Residual lists files that could not be deleted.
	Residual []string `json:"residual,omitempty"`
}

// StatusReport summarizes the tracked state of the configured map.
type StatusReport struct {
	MapPath           string `json:"map_path"`
	StaticObjects     int    `json:"static_objects"`
	Entities          int    `json:"entities"`
	IndexedGeometries int    `json:"indexed_geometries"`
	TrackedGeometries int    `json:"tracked_geometries"`
}
