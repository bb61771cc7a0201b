package mapdoc

import (
	"github.com/beevik/etree"

	"hpl3-export/core/paths"
)

// Kind selects the object-type partition a document covers. Static
// objects and entities live in separate placement files with separate
// file-index id spaces.
type Kind string

const (
	KindStaticObject Kind = "StaticObject"
	KindEntity       Kind = "Entity"
)

// Legacy object-id bases used when a section has no entries yet. They
// match the ranges pre-existing hand-authored map sections use, so
// exporter-created rows never collide with editor-created ones.
const (
	staticIDBase = 285212672
	entityIDBase = 268435459
)

// DocumentSuffix returns the placement-file suffix appended to the .hpm
// map path for this kind.
func (k Kind) DocumentSuffix() string {
	if k == KindEntity {
		return "_Entity"
	}
	return "_StaticObject"
}

// indexElement is the tag of the file-index container for this kind.
func (k Kind) indexElement() string {
	if k == KindEntity {
		return "FileIndex_Entities"
	}
	return "FileIndex_StaticObjects"
}

func (k Kind) idBase() int64 {
	if k == KindEntity {
		return entityIDBase
	}
	return staticIDBase
}

// GeometryExtension is the interchange extension indexed for this kind.
func (k Kind) GeometryExtension() string {
	if k == KindEntity {
		return ".ent"
	}
	return ".dae"
}

// Flags is the typed per-object attribute set. Which fields apply depends
// on the object kind: Collides/CastShadows/IsOccluder are static-object
// attributes (CastShadows doubles as an entity user variable),
// Active/Important are entity attributes, the culling pair applies to both.
type Flags struct {
	Collides         bool
	CastShadows      bool
	IsOccluder       bool
	CulledByDistance bool
	CulledByFog      bool
	Active           bool
	Important        bool
}

// PlacedObject is one typed row of the object table. Transform components
// are held as the exact document strings so unmodified rows re-serialize
// byte-identically.
type PlacedObject struct {
	ID        int64
	Name      string
	CreStamp  int64
	ModStamp  int64
	FileIndex int
	WorldPos  string
	Rotation  string
	Scale     string
	Flags     Flags

	elem *etree.Element
}

// Registry is the object table of one map section, keyed by sanitized
// object name within its kind partition.
type Registry struct {
	kind    Kind
	objects []*PlacedObject
}

// NewRegistry returns an empty registry for the given kind.
func NewRegistry(kind Kind) *Registry {
	return &Registry{kind: kind}
}

// Kind returns the registry's object-type partition.
func (r *Registry) Kind() Kind { return r.kind }

// Len returns the number of rows.
func (r *Registry) Len() int { return len(r.objects) }

// Objects returns the rows in document order.
func (r *Registry) Objects() []*PlacedObject { return r.objects }

// Find returns the row with the given name, or nil.
func (r *Registry) Find(name string) *PlacedObject {
	for _, o := range r.objects {
		if o.Name == name {
			return o
		}
	}
	return nil
}

// nextID returns max(existing)+1, or the legacy base when empty. Ids
// follow document order like the original tool, which always appends.
func (r *Registry) nextID() int64 {
	if n := len(r.objects); n > 0 {
		return r.objects[n-1].ID + 1
	}
	return r.kind.idBase()
}

// Upsert creates or updates the row named name. Existing rows keep their
// ID and CreStamp and get transform, flags, FileIndex and ModStamp
// replaced; the file index is re-resolved by the caller every pass since
// the instancing source may change. New rows are stamped CreStamp=now.
// The boolean reports whether a row was created.
func (r *Registry) Upsert(name, worldPos, rotation, scale string, flags Flags, fileIndex int, now int64) (*PlacedObject, bool) {
	if o := r.Find(name); o != nil {
		o.ModStamp = now
		o.WorldPos = worldPos
		o.Rotation = rotation
		o.Scale = scale
		o.FileIndex = fileIndex
		o.Flags = flags
		return o, false
	}
	o := &PlacedObject{
		ID:        r.nextID(),
		Name:      name,
		CreStamp:  now,
		ModStamp:  now,
		FileIndex: fileIndex,
		WorldPos:  worldPos,
		Rotation:  rotation,
		Scale:     scale,
		Flags:     flags,
	}
	r.objects = append(r.objects, o)
	return o, true
}

// FindOrphans returns every row whose name is absent from the live scene
// name set. Callers must sanitize live names with paths.Sanitize; row
// names are sanitized again here so both sides of the comparison use the
// identical canonical form.
func (r *Registry) FindOrphans(live map[string]struct{}) []*PlacedObject {
	var orphans []*PlacedObject
	for _, o := range r.objects {
		if _, ok := live[paths.Sanitize(o.Name)]; !ok {
			orphans = append(orphans, o)
		}
	}
	return orphans
}

// ReferencesIndex reports whether any row outside the excluded name set
// references the given file-index id.
func (r *Registry) ReferencesIndex(id int, excluding map[string]struct{}) bool {
	for _, o := range r.objects {
		if o.FileIndex != id {
			continue
		}
		if _, skip := excluding[o.Name]; !skip {
			return true
		}
	}
	return false
}

// Remove deletes a row.
func (r *Registry) Remove(o *PlacedObject) {
	for i, cur := range r.objects {
		if cur == o {
			if o.elem != nil {
				if p := o.elem.Parent(); p != nil {
					p.RemoveChild(o.elem)
				}
			}
			r.objects = append(r.objects[:i], r.objects[i+1:]...)
			return
		}
	}
}

// ShiftFileIndices decrements every row's FileIndex greater than the
// removed id. Must be applied in the same logical pass as the
// FileIndex.Remove that triggered it.
func (r *Registry) ShiftFileIndices(removed int) {
	for _, o := range r.objects {
		if o.FileIndex > removed {
			o.FileIndex--
		}
	}
}
