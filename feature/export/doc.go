// Package export drives the incremental scene export pass.
//
// An export pass takes the current scene's objects, writes geometry and
// texture files through pluggable collaborator tools, and updates the map
// documents and the asset ledger to match. Passes are incremental: rows
// keep their engine ids and creation stamps across runs, geometry is only
// re-exported when its mesh changed, and untouched parts of the map
// documents round-trip byte for byte.
//
// The feature exposes the pass over HTTP (POST /export/run), alongside a
// reconcile endpoint that removes entries for deleted scene objects and a
// status endpoint summarizing the tracked state.
//
// # Failure model
//
// Collaborator tools may write asset files at any point, but the map
// documents and the ledger only change in the final commit, which renames
// all of them into place together. A failed pass therefore never leaves
// the documents half-updated.
package export
