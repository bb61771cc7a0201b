// Package reconcile removes map entries whose backing scene object no
// longer exists.
//
// Reconciliation is split into two phases. BuildPlan inspects the loaded
// documents against the live scene's sanitized object names and produces a
// Plan: the orphan rows, the file-index entries that lose their last
// reference, the files predicted to be deleted, and aggregate counts for
// reporting. ApplyPlan executes a plan against the in-memory documents in
// one logical pass (use-count decrements, registry row removal, dense
// index renumbering with registry reference shifting, then file deletion)
// so the coupled structures can never be half-updated. Nothing touches
// disk except file deletion; document persistence stays with the caller's
// commit step.
//
// Destructive application is gated the same way twice: Options.Confirmed
// must be set and Options.DryRun must be clear, otherwise ApplyPlan
// reports without mutating.
package reconcile
