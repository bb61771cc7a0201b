// Package publish pushes committed export output to object storage.
//
// After an export pass the map documents, the asset ledger and the
// exported asset files live under the project root. Publish mirrors them
// into a bucket keyed by their project-relative short paths, so a build
// machine or teammate can pull a consistent snapshot without filesystem
// access to the authoring workstation.
//
// Pruning is optional and removes remote objects that no longer exist
// locally; it is gated the same way reconciliation is, since it deletes
// shared state.
package publish
