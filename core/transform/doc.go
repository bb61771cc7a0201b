// Package transform converts authoring-space affine transforms into the
// engine's coordinate convention.
//
// The authoring tool works in a right-handed Z-up basis; the engine is
// Y-up. The canonical mapping reorders axes so that engine X = authoring Y,
// engine Y = authoring Z, engine Z = authoring X, followed by a fixed local
// rotation correction to align forward vectors. A second, older permutation
// survives in historical map sections and is kept selectable as
// VariantRigLegacy; mixing variants within one map is a compatibility
// break.
//
// Placement components serialize as fixed-point decimal strings with five
// fractional digits, space separated ("1.23400 0.00000 -2.50000"). The
// engine's reader is sensitive to this exact format, so unchanged geometry
// must reproduce the same strings on re-export.
package transform
