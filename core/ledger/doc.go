// Package ledger maintains the asset-usage ledger document
// (exportscript_asset_tracking.xml).
//
// The ledger maps each exported geometry file's short path to a use count
// and the set of derived texture files baked for it. The use count equals
// the number of placed objects across all map sections referencing that
// geometry; files are only deleted from disk when the count reaches zero.
// A file whose deletion fails stays listed, so a later pass can retry it
// and the ledger never diverges silently from the disk.
package ledger
