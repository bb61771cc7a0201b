package mapdoc

import "github.com/beevik/etree"

// FileIndexEntry is one row of the per-section geometry file table.
// Ids are dense: they always form the range [0, count) at rest.
type FileIndexEntry struct {
	ID   int
	Path string

	elem *etree.Element
}

// FileIndex is the authoritative table of unique geometry file paths for
// one map section. At most one entry exists per distinct short path.
type FileIndex struct {
	entries []*FileIndexEntry
}

// NewFileIndex returns an empty index.
func NewFileIndex() *FileIndex {
	return &FileIndex{}
}

// Len returns the number of entries.
func (x *FileIndex) Len() int { return len(x.entries) }

// Resolve returns the id for a canonical short path, inserting a new entry
// with id max+1 (0 when empty) if the path is not present. The second
// return reports whether an entry was created.
func (x *FileIndex) Resolve(short string) (int, bool) {
	for _, e := range x.entries {
		if e.Path == short {
			return e.ID, false
		}
	}
	id := 0
	if n := len(x.entries); n > 0 {
		id = x.entries[n-1].ID + 1
	}
	x.entries = append(x.entries, &FileIndexEntry{ID: id, Path: short})
	return id, true
}

// Lookup returns the path for an id.
func (x *FileIndex) Lookup(id int) (string, bool) {
	for _, e := range x.entries {
		if e.ID == id {
			return e.Path, true
		}
	}
	return "", false
}

// Remove deletes the entry with the given id and decrements every higher
// id by one so the range stays dense. It returns the removed path.
// Callers must renumber registry rows referencing higher ids in the same
// logical pass or the document becomes corrupt.
func (x *FileIndex) Remove(id int) (string, bool) {
	at := -1
	for i, e := range x.entries {
		if e.ID == id {
			at = i
			break
		}
	}
	if at < 0 {
		return "", false
	}
	removed := x.entries[at]
	if removed.elem != nil {
		if p := removed.elem.Parent(); p != nil {
			p.RemoveChild(removed.elem)
		}
	}
	x.entries = append(x.entries[:at], x.entries[at+1:]...)
	for _, e := range x.entries {
		if e.ID > id {
			e.ID--
		}
	}
	return removed.Path, true
}

// Paths returns the entry paths in id order.
func (x *FileIndex) Paths() []string {
	out := make([]string, 0, len(x.entries))
	for _, e := range x.entries {
		out = append(out, e.Path)
	}
	return out
}

// IDs returns the ids in entry order, mainly for invariant checks.
func (x *FileIndex) IDs() []int {
	out := make([]int, 0, len(x.entries))
	for _, e := range x.entries {
		out = append(out, e.ID)
	}
	return out
}
