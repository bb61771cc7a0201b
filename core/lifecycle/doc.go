// Package lifecycle removes derived files from disk on behalf of the
// reconciliation pass.
//
// Deletion is tolerant: a file that is already missing counts as removed,
// since the goal state is "not on disk". Any other failure puts the file
// on the residual list instead of failing the pass, and the caller keeps
// residuals listed in the ledger so a later pass retries them.
package lifecycle
