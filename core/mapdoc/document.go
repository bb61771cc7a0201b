package mapdoc

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/beevik/etree"
)

// SectionName is the one map-document section the exporter owns.
const SectionName = "Blender@HPL3EXPORT"

// freshRoot is the root element used when a map document does not exist
// yet (fresh-install case). Existing documents keep whatever root they
// have.
const freshRoot = "HPL3Map"

// ErrParse marks a document that exists but cannot be parsed. Parse
// failures are fatal to the pass: the document is never overwritten.
var ErrParse = errors.New("malformed document")

// ErrStaleReference marks a registry row pointing at a file-index id that
// is absent from the index. It indicates prior corruption and is surfaced
// as a warning; the reference self-heals on the next upsert.
var ErrStaleReference = errors.New("stale file-index reference")

// Document is one per-kind placement file of a map, with the owned
// section decoded into a typed Index and Registry and everything else
// preserved verbatim.
type Document struct {
	Index    *FileIndex
	Registry *Registry

	path string
	kind Kind
	tree *etree.Document
}

// Load reads the placement document at path. A missing file is not an
// error: it yields an empty document, the fresh-install case. A file that
// exists but does not parse returns ErrParse.
func Load(path string, kind Kind) (*Document, error) {
	d := &Document{
		Index:    NewFileIndex(),
		Registry: NewRegistry(kind),
		path:     path,
		kind:     kind,
		tree:     etree.NewDocument(),
	}
	if err := d.tree.ReadFromFile(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			d.tree = etree.NewDocument()
			d.tree.CreateElement(freshRoot)
			return d, nil
		}
		return nil, fmt.Errorf("map document %s: %w: %v", path, ErrParse, err)
	}
	if d.tree.Root() == nil {
		return nil, fmt.Errorf("map document %s: %w: no root element", path, ErrParse)
	}
	d.decode()
	return d, nil
}

// Path returns the on-disk location the document was loaded from.
func (d *Document) Path() string { return d.path }

// Kind returns the object-type partition this document covers.
func (d *Document) Kind() Kind { return d.kind }

// section returns the owned Section element, or nil.
func (d *Document) section() *etree.Element {
	for _, child := range d.tree.Root().SelectElements("Section") {
		if child.SelectAttrValue("Name", "") == SectionName {
			return child
		}
	}
	return nil
}

// decode populates the typed index and registry from the owned section.
func (d *Document) decode() {
	sec := d.section()
	if sec == nil {
		return
	}
	if files := sec.SelectElement(d.kind.indexElement()); files != nil {
		for _, f := range files.SelectElements("File") {
			e := &FileIndexEntry{
				ID:   atoi(f.SelectAttrValue("Id", "")),
				Path: f.SelectAttrValue("Path", ""),
				elem: f,
			}
			d.Index.entries = append(d.Index.entries, e)
		}
	}
	objects := sec.SelectElement("Objects")
	if objects == nil {
		return
	}
	for _, el := range objects.SelectElements(string(d.kind)) {
		o := &PlacedObject{
			ID:        int64(atoi(el.SelectAttrValue("ID", ""))),
			Name:      el.SelectAttrValue("Name", ""),
			CreStamp:  int64(atoi(el.SelectAttrValue("CreStamp", ""))),
			ModStamp:  int64(atoi(el.SelectAttrValue("ModStamp", ""))),
			FileIndex: atoi(el.SelectAttrValue("FileIndex", "")),
			WorldPos:  el.SelectAttrValue("WorldPos", ""),
			Rotation:  el.SelectAttrValue("Rotation", ""),
			Scale:     el.SelectAttrValue("Scale", ""),
			Flags: Flags{
				Collides:         atob(el.SelectAttrValue("Collides", "false")),
				CastShadows:      atob(el.SelectAttrValue("CastShadows", "false")),
				IsOccluder:       atob(el.SelectAttrValue("IsOccluder", "false")),
				CulledByDistance: atob(el.SelectAttrValue("CulledByDistance", "false")),
				CulledByFog:      atob(el.SelectAttrValue("CulledByFog", "false")),
				Active:           atob(el.SelectAttrValue("Active", "false")),
				Important:        atob(el.SelectAttrValue("Important", "false")),
			},
			elem: el,
		}
		if d.kind == KindEntity {
			if v := userVariable(el, "CastShadows"); v != nil {
				o.Flags.CastShadows = atob(v.SelectAttrValue("Value", "false"))
			}
		}
		d.Registry.objects = append(d.Registry.objects, o)
	}
}

// Validate reports stale file-index references. The registry is left
// untouched; upsert re-resolves the index on the next export of the
// object.
func (d *Document) Validate() []error {
	var errs []error
	n := d.Index.Len()
	for _, o := range d.Registry.objects {
		if o.FileIndex < 0 || o.FileIndex >= n {
			errs = append(errs, fmt.Errorf("%w: object %q references index %d of %d", ErrStaleReference, o.Name, o.FileIndex, n))
		}
	}
	return errs
}

// Serialize syncs the typed index and registry back into the owned
// section and returns the whole document's bytes. Sections the exporter
// does not own are emitted exactly as loaded.
func (d *Document) Serialize() ([]byte, error) {
	sec := d.section()
	if sec == nil {
		sec = d.tree.Root().CreateElement("Section")
		sec.CreateAttr("Name", SectionName)
	}
	files := sec.SelectElement(d.kind.indexElement())
	if files == nil {
		files = sec.CreateElement(d.kind.indexElement())
	}
	objects := sec.SelectElement("Objects")
	if objects == nil {
		objects = sec.CreateElement("Objects")
	}

	for _, e := range d.Index.entries {
		if e.elem == nil {
			e.elem = files.CreateElement("File")
			e.elem.CreateAttr("Id", strconv.Itoa(e.ID))
			e.elem.CreateAttr("Path", e.Path)
			continue
		}
		e.elem.CreateAttr("Id", strconv.Itoa(e.ID))
	}
	files.CreateAttr("NumOfFiles", strconv.Itoa(d.Index.Len()))

	for _, o := range d.Registry.objects {
		d.syncObject(objects, o)
	}

	return d.tree.WriteToBytes()
}

// syncObject writes a typed row back to its element, creating the element
// for new rows. Attribute order follows the original tool so untouched
// rows round-trip byte-identically.
func (d *Document) syncObject(objects *etree.Element, o *PlacedObject) {
	el := o.elem
	if el == nil {
		el = objects.CreateElement(string(d.kind))
		el.CreateAttr("ID", strconv.FormatInt(o.ID, 10))
		el.CreateAttr("CreStamp", strconv.FormatInt(o.CreStamp, 10))
		o.elem = el
	}
	el.CreateAttr("Name", o.Name)
	el.CreateAttr("ModStamp", strconv.FormatInt(o.ModStamp, 10))
	el.CreateAttr("WorldPos", o.WorldPos)
	el.CreateAttr("Rotation", o.Rotation)
	el.CreateAttr("Scale", o.Scale)
	el.CreateAttr("FileIndex", strconv.Itoa(o.FileIndex))
	if d.kind == KindEntity {
		el.CreateAttr("Active", btoa(o.Flags.Active))
		el.CreateAttr("Important", btoa(o.Flags.Important))
	} else {
		el.CreateAttr("Collides", btoa(o.Flags.Collides))
		el.CreateAttr("CastShadows", btoa(o.Flags.CastShadows))
		el.CreateAttr("IsOccluder", btoa(o.Flags.IsOccluder))
		el.CreateAttr("ColorMul", "1 1 1 1")
	}
	el.CreateAttr("CulledByDistance", btoa(o.Flags.CulledByDistance))
	el.CreateAttr("CulledByFog", btoa(o.Flags.CulledByFog))
	el.CreateAttr("IllumColor", "1 1 1 1")
	el.CreateAttr("IllumBrightness", "1")
	el.CreateAttr("UID", "blender")

	if d.kind == KindEntity {
		uv := el.SelectElement("UserVariables")
		if uv == nil {
			uv = el.CreateElement("UserVariables")
		}
		v := userVariable(el, "CastShadows")
		if v == nil {
			v = uv.CreateElement("Var")
			v.CreateAttr("Name", "CastShadows")
		}
		v.CreateAttr("Value", btoa(o.Flags.CastShadows))
	}
}

func userVariable(el *etree.Element, name string) *etree.Element {
	uv := el.SelectElement("UserVariables")
	if uv == nil {
		return nil
	}
	for _, v := range uv.SelectElements("Var") {
		if v.SelectAttrValue("Name", "") == name {
			return v
		}
	}
	return nil
}

// atoi parses like the original tool: malformed numbers read as zero.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func atob(s string) bool {
	return s == "true" || s == "True"
}

func btoa(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
