// Package mapdoc maintains the exporter-owned section of an engine map
// document.
//
// A map document is one of the per-type placement files of an .hpm map
// (<map>.hpm_StaticObject or <map>.hpm_Entity). The exporter owns exactly
// one Section element, named "Blender@HPL3EXPORT", containing a file-index
// table (File rows with dense integer ids) and an object table keyed by
// sanitized object name. Every other section belongs to the level editor
// and must round-trip untouched, byte for byte, which is why the document
// is held as an etree and only the owned section's attributes are written.
//
// The file index and object registry are coupled: removing an index entry
// renumbers every higher id, so registry rows referencing them must be
// shifted in the same pass. Callers go through core/reconcile for
// removals; mapdoc only provides the primitive operations.
package mapdoc
