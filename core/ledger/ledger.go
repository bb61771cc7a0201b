package ledger

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// DefaultFileName is the ledger's file name inside the asset export
// directory.
const DefaultFileName = "exportscript_asset_tracking.xml"

const rootElement = "ExportedFiles"

// ErrParse marks a ledger file that exists but cannot be parsed.
var ErrParse = errors.New("malformed ledger")

// Entry tracks one exported geometry file.
type Entry struct {
	// GeometryPath is the short path of the interchange geometry file and
	// the entry's unique key.
	GeometryPath string
	// Uses counts placed objects referencing this geometry.
	Uses int
	// Derived lists the short paths of baked texture files belonging to
	// the geometry, in document order.
	Derived []string

	elem *etree.Element
}

// Ledger is the in-memory form of the asset-usage document.
type Ledger struct {
	path    string
	tree    *etree.Document
	entries []*Entry
}

// Load reads the ledger at path. A missing file yields an empty ledger; a
// malformed one returns ErrParse.
func Load(path string) (*Ledger, error) {
	l := &Ledger{path: path, tree: etree.NewDocument()}
	if err := l.tree.ReadFromFile(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.tree = etree.NewDocument()
			l.tree.CreateElement(rootElement)
			return l, nil
		}
		return nil, fmt.Errorf("ledger %s: %w: %v", path, ErrParse, err)
	}
	root := l.tree.Root()
	if root == nil {
		return nil, fmt.Errorf("ledger %s: %w: no root element", path, ErrParse)
	}
	for _, el := range root.SelectElements("Asset") {
		e := &Entry{
			GeometryPath: el.SelectAttrValue("DAEpath", ""),
			elem:         el,
		}
		e.Uses, _ = strconv.Atoi(el.SelectAttrValue("Uses", "0"))
		if dds := el.SelectAttrValue("DDSpath", ""); dds != "" {
			e.Derived = strings.Split(dds, ";")
		}
		l.entries = append(l.entries, e)
	}
	return l, nil
}

// Path returns the on-disk location the ledger was loaded from.
func (l *Ledger) Path() string { return l.path }

// Entries returns all entries in document order.
func (l *Ledger) Entries() []*Entry { return l.entries }

// Find returns the entry for a geometry path, matched case-insensitively
// like the original tool, or nil.
func (l *Ledger) Find(geometryPath string) *Entry {
	for _, e := range l.entries {
		if strings.EqualFold(e.GeometryPath, geometryPath) {
			return e
		}
	}
	return nil
}

// GetOrCreate returns the entry for a geometry path, creating one with a
// zero use count on first reference.
func (l *Ledger) GetOrCreate(geometryPath string) *Entry {
	if e := l.Find(geometryPath); e != nil {
		return e
	}
	e := &Entry{GeometryPath: geometryPath}
	l.entries = append(l.entries, e)
	return e
}

// Increment bumps the use count for a geometry path, creating the entry
// if needed, and returns the new count.
func (l *Ledger) Increment(geometryPath string) int {
	e := l.GetOrCreate(geometryPath)
	e.Uses++
	return e.Uses
}

// Decrement lowers the use count for a geometry path. shouldDelete is
// true exactly when the post-decrement count is zero or less: the last
// placement is gone and the geometry's files may be removed. An untracked
// path reports no deletion since there is nothing on record to remove.
func (l *Ledger) Decrement(geometryPath string) (newCount int, shouldDelete bool) {
	e := l.Find(geometryPath)
	if e == nil {
		return 0, false
	}
	e.Uses--
	return e.Uses, e.Uses <= 0
}

// RecordDerived replaces the tracked derived-file set for a geometry path
// and returns the stale files: those tracked before but absent from the
// new set. The caller must attempt deletion of the stale files and feed
// failures back through KeepResidual before commit, so no file reference
// is dropped before its deletion is confirmed.
func (l *Ledger) RecordDerived(geometryPath string, files []string) (stale []string) {
	e := l.GetOrCreate(geometryPath)
	for _, old := range e.Derived {
		found := false
		for _, cur := range files {
			if strings.EqualFold(old, cur) {
				found = true
				break
			}
		}
		if !found {
			stale = append(stale, old)
		}
	}
	e.Derived = append([]string(nil), files...)
	return stale
}

// KeepResidual re-lists files whose deletion failed so a later pass can
// retry them.
func (l *Ledger) KeepResidual(geometryPath string, files []string) {
	if len(files) == 0 {
		return
	}
	e := l.GetOrCreate(geometryPath)
	for _, f := range files {
		present := false
		for _, cur := range e.Derived {
			if strings.EqualFold(cur, f) {
				present = true
				break
			}
		}
		if !present {
			e.Derived = append(e.Derived, f)
		}
	}
}

// Remove deletes an entry outright. Only call after the entry's files
// have been successfully removed from disk.
func (l *Ledger) Remove(geometryPath string) {
	for i, e := range l.entries {
		if strings.EqualFold(e.GeometryPath, geometryPath) {
			if e.elem != nil {
				if p := e.elem.Parent(); p != nil {
					p.RemoveChild(e.elem)
				}
			}
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return
		}
	}
}

// Serialize syncs entries back into the document and returns its bytes.
func (l *Ledger) Serialize() ([]byte, error) {
	root := l.tree.Root()
	for _, e := range l.entries {
		if e.elem == nil {
			e.elem = root.CreateElement("Asset")
			e.elem.CreateAttr("DAEpath", e.GeometryPath)
		}
		e.elem.CreateAttr("Uses", strconv.Itoa(e.Uses))
		if len(e.Derived) > 0 {
			e.elem.CreateAttr("DDSpath", strings.Join(e.Derived, ";"))
		} else {
			e.elem.RemoveAttr("DDSpath")
		}
	}
	return l.tree.WriteToBytes()
}
