// Package paths implements the path and name canonicalization rules shared
// by the map document, the asset ledger, and the on-disk file lifecycle.
//
// Two canonical forms exist:
//
//  1. Short paths: project-relative paths with everything up to and
//     including the project-root marker segment (default "SOMA") removed.
//     Short paths are the durable cross-reference key stored in both
//     documents and must be stable across machines.
//  2. Sanitized names: object and mesh names with every run of
//     non-alphanumeric characters collapsed to a single underscore. Both
//     sides of an orphan comparison must apply this identically.
package paths
