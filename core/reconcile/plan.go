package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"hpl3-export/core/ledger"
	"hpl3-export/core/mapdoc"
)

// BuildPlan computes the orphan-removal plan for one map document against
// the live scene's sanitized object names. The documents are not
// modified.
func BuildPlan(doc *mapdoc.Document, led *ledger.Ledger, live map[string]struct{}) *Plan {
	reg := doc.Registry
	plan := &Plan{}
	plan.Summary.RegistryObjects = reg.Len()
	plan.Summary.LiveObjects = len(live)

	orphans := reg.FindOrphans(live)
	plan.Orphans = orphans
	plan.Summary.Orphans = len(orphans)
	if len(orphans) == 0 {
		return plan
	}

	orphanNames := make(map[string]struct{}, len(orphans))
	for _, o := range orphans {
		orphanNames[o.Name] = struct{}{}
	}

	for _, o := range orphans {
		plan.Actions = append(plan.Actions, Action{
			Type:   ActionRemoveObject,
			Name:   o.Name,
			Reason: "no live scene object",
		})
	}

	// File-index entries whose every reference is an orphan lose their
	// last use. Collect distinct ids; orphans sharing geometry with a
	// survivor only give up their registry row.
	removable := map[int]bool{}
	for _, o := range orphans {
		if _, seen := removable[o.FileIndex]; seen {
			continue
		}
		if reg.ReferencesIndex(o.FileIndex, orphanNames) {
			removable[o.FileIndex] = false
			plan.Summary.SharedSkipped++
			continue
		}
		removable[o.FileIndex] = true
	}

	// Count orphan references per geometry path to predict post-decrement
	// use counts.
	orphanRefs := map[string]int{}
	for _, o := range orphans {
		if p, ok := doc.Index.Lookup(o.FileIndex); ok {
			orphanRefs[LedgerKey(p)]++
		}
	}

	var ids []int
	for id, remove := range removable {
		if remove {
			ids = append(ids, id)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ids)))

	for _, id := range ids {
		path, ok := doc.Index.Lookup(id)
		if !ok {
			continue
		}
		key := LedgerKey(path)
		plan.Actions = append(plan.Actions, Action{
			Type:         ActionRemoveIndex,
			IndexID:      id,
			GeometryPath: key,
			Reason:       "last referencing object removed",
		})
		plan.Summary.IndexRemovals++

		if e := led.Find(key); e != nil && e.Uses-orphanRefs[key] <= 0 {
			files := geometryFiles(e)
			plan.Actions = append(plan.Actions, Action{
				Type:         ActionDeleteFiles,
				GeometryPath: key,
				Files:        files,
				Reason:       fmt.Sprintf("use count %d reaches zero", e.Uses),
			})
			plan.Summary.FilesToDelete += len(files)
		}
	}

	return plan
}

// LedgerKey maps an index path to its ledger key: entity index entries
// point at .ent files while the ledger tracks the interchange .dae.
func LedgerKey(path string) string {
	if strings.HasSuffix(path, ".ent") {
		return strings.TrimSuffix(path, ".ent") + ".dae"
	}
	return path
}

// geometryFiles lists everything to delete for a dead geometry: its
// derived textures, the interchange file, and the engine-generated .msh
// sibling.
func geometryFiles(e *ledger.Entry) []string {
	files := append([]string(nil), e.Derived...)
	files = append(files, e.GeometryPath)
	if strings.HasSuffix(e.GeometryPath, ".dae") {
		files = append(files, strings.TrimSuffix(e.GeometryPath, ".dae")+".msh")
	}
	return files
}
