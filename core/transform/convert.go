package transform

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Variant selects which historical axis-permutation is applied.
type Variant string

const (
	// VariantCanonical is the mapping written into map documents by the
	// current exporter: engine X = authoring Y, engine Y = authoring Z,
	// engine Z = authoring X, with a +90 degree local Y correction.
	VariantCanonical Variant = "canonical"

	// VariantRigLegacy reproduces the older permutation used for rigged
	// geometry interchange files (-90 X then 180 Z local correction, with
	// an extra -90 world Y when a parent frame is present).
	VariantRigLegacy Variant = "rig-legacy"
)

// Valid reports whether v names a known conversion variant.
func (v Variant) Valid() bool {
	return v == VariantCanonical || v == VariantRigLegacy
}

// Placement is a decomposed engine-space transform. Rotation is an XYZ
// Euler triple in radians.
type Placement struct {
	Position mgl64.Vec3
	Rotation mgl64.Vec3
	Scale    mgl64.Vec3
}

// Axis permutation matrices, stated row by row in the original tool and
// stored here column-major.
var (
	// rows: (0 1 0 0) (0 0 1 0) (1 0 0 0) (0 0 0 1)
	reorder = mgl64.Mat4{0, 0, 1, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 1}
	// rows: (0 -1 0 0) (1 0 0 0) (0 0 1 0) (0 0 0 1)
	yUp = mgl64.Mat4{0, 1, 0, 0, -1, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
)

// Convert maps an authoring-space world transform into an engine-space
// placement. When parent is non-nil the object is rigged and the parent
// reference frame's world transform substitutes for the object's own: the
// skinned mesh is placed where its skeleton root is, not where the mesh
// node is.
func Convert(world mgl64.Mat4, parent *mgl64.Mat4, variant Variant) Placement {
	w := world
	if parent != nil {
		w = *parent
	}

	var m mgl64.Mat4
	switch variant {
	case VariantRigLegacy:
		worldRotY := mgl64.Ident4()
		if parent != nil {
			worldRotY = mgl64.HomogRotate3DY(-math.Pi / 2)
		}
		local := mgl64.HomogRotate3DX(-math.Pi / 2).Mul4(mgl64.HomogRotate3DZ(math.Pi))
		m = worldRotY.Mul4(reorder).Mul4(w).Mul4(local)
	default:
		local := mgl64.HomogRotate3DY(math.Pi / 2).Mul4(yUp)
		m = reorder.Mul4(w).Mul4(local)
	}

	return Decompose(m)
}

// Decompose splits an affine matrix into translation, XYZ Euler rotation
// and scale. Degenerate (near-zero determinant) matrices are decomposed
// as-is without normalization to match legacy output.
func Decompose(m mgl64.Mat4) Placement {
	pos := mgl64.Vec3{m.At(0, 3), m.At(1, 3), m.At(2, 3)}

	cols := [3]mgl64.Vec3{
		{m.At(0, 0), m.At(1, 0), m.At(2, 0)},
		{m.At(0, 1), m.At(1, 1), m.At(2, 1)},
		{m.At(0, 2), m.At(1, 2), m.At(2, 2)},
	}

	// Negative determinant means a mirrored basis; sign goes to the scale.
	if m.Det() < 0 {
		for i := range cols {
			cols[i] = cols[i].Mul(-1)
		}
	}

	var scale mgl64.Vec3
	for i, c := range cols {
		n := c.Len()
		scale[i] = n
		if n > 1e-12 {
			cols[i] = c.Mul(1 / n)
		}
	}
	if m.Det() < 0 {
		scale = scale.Mul(-1)
	}

	return Placement{
		Position: pos,
		Rotation: eulerXYZ(cols),
		Scale:    scale,
	}
}

// eulerXYZ extracts XYZ Euler angles from an orthonormal basis, treating
// the rotation as Rz*Ry*Rx applied to column vectors.
func eulerXYZ(c [3]mgl64.Vec3) mgl64.Vec3 {
	// r[i][j] with columns c[j]
	r20 := c[0][2]
	if r20 <= -1+1e-9 || r20 >= 1-1e-9 {
		// Gimbal lock: fold Z into X.
		y := math.Asin(clamp(-r20, -1, 1))
		x := math.Atan2(-c[2][1], c[1][1])
		return mgl64.Vec3{x, y, 0}
	}
	y := math.Asin(-r20)
	x := math.Atan2(c[1][2], c[2][2])
	z := math.Atan2(c[0][1], c[0][0])
	return mgl64.Vec3{x, y, z}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Format serializes a vector as three 5-decimal fixed-point components.
func Format(v mgl64.Vec3) string {
	return fmt.Sprintf("%.5f %.5f %.5f", v[0], v[1], v[2])
}

// Strings returns the position, rotation and scale of p in document form.
func (p Placement) Strings() (pos, rot, scale string) {
	return Format(p.Position), Format(p.Rotation), Format(p.Scale)
}
