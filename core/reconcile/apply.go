package reconcile

import (
	"go.uber.org/zap"

	"hpl3-export/core/ledger"
	"hpl3-export/core/lifecycle"
	"hpl3-export/core/mapdoc"
)

// ApplyPlan executes a plan against the in-memory documents. It returns
// without mutating unless opts.Confirmed is set and opts.DryRun is clear.
//
// The pass order keeps the coupled structures consistent: use counts are
// decremented first, then index entries are removed highest-id first with
// registry references renumbered in the same step, then dead geometries'
// files are deleted with failures fed back into the ledger, and finally
// the orphan rows themselves are dropped. Document persistence is the
// caller's commit step; only file deletion touches disk here.
func ApplyPlan(plan *Plan, doc *mapdoc.Document, led *ledger.Ledger, deleter lifecycle.Deleter, logger *zap.Logger) (*Applied, error) {
	return applyPlan(plan, doc, led, deleter, logger, Options{Confirmed: true})
}

// ApplyPlanWithOptions is ApplyPlan with explicit confirmation gating.
func ApplyPlanWithOptions(plan *Plan, doc *mapdoc.Document, led *ledger.Ledger, deleter lifecycle.Deleter, logger *zap.Logger, opts Options) (*Applied, error) {
	return applyPlan(plan, doc, led, deleter, logger, opts)
}

func applyPlan(plan *Plan, doc *mapdoc.Document, led *ledger.Ledger, deleter lifecycle.Deleter, logger *zap.Logger, opts Options) (*Applied, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	applied := &Applied{}
	if !opts.Confirmed || opts.DryRun {
		return applied, nil
	}
	if len(plan.Orphans) == 0 {
		return applied, nil
	}

	// Every orphan gives up its use of its geometry, shared or not.
	for _, o := range plan.Orphans {
		path, ok := doc.Index.Lookup(o.FileIndex)
		if !ok {
			logger.Warn("Orphan references missing index entry",
				zap.String("name", o.Name), zap.Int("file_index", o.FileIndex))
			continue
		}
		n, _ := led.Decrement(LedgerKey(path))
		logger.Debug("Decremented use count",
			zap.String("geometry", LedgerKey(path)), zap.Int("uses", n))
	}

	// Index compaction: ids removed highest first so lower planned ids
	// stay valid, with registry references shifted in the same step.
	for _, a := range plan.Actions {
		if a.Type != ActionRemoveIndex {
			continue
		}
		path, ok := doc.Index.Remove(a.IndexID)
		if !ok {
			continue
		}
		doc.Registry.ShiftFileIndices(a.IndexID)
		logger.Info("Removed index entry",
			zap.Int("id", a.IndexID), zap.String("path", path))
	}

	// Disk cleanup for geometries whose last use is gone. Failures stay
	// listed in the ledger; only fully-cleaned entries are dropped.
	for _, a := range plan.Actions {
		if a.Type != ActionDeleteFiles {
			continue
		}
		e := led.Find(a.GeometryPath)
		if e == nil || e.Uses > 0 {
			continue
		}
		files := geometryFiles(e)
		residual := lifecycle.DeleteAll(deleter, files)
		if len(residual) == 0 {
			led.Remove(a.GeometryPath)
			continue
		}
		// The residual can include the interchange file or its .msh
		// sibling, not just textures. They go through the derived list
		// anyway so every leftover file rides the same retry path.
		e.Derived = nil
		led.KeepResidual(a.GeometryPath, residual)
		applied.Residual = append(applied.Residual, residual...)
		logger.Warn("Some files could not be deleted",
			zap.String("geometry", a.GeometryPath), zap.Strings("residual", residual))
	}

	for _, o := range plan.Orphans {
		doc.Registry.Remove(o)
	}
	applied.Removed = len(plan.Orphans)

	return applied, nil
}

// RebuildUseCounts recomputes every ledger use count from the documents
// themselves. It is the invariant check behind the counters: the stored
// count must equal the number of registry rows referencing the geometry
// across all supplied documents.
func RebuildUseCounts(docs []*mapdoc.Document) map[string]int {
	counts := map[string]int{}
	for _, d := range docs {
		for _, o := range d.Registry.Objects() {
			if p, ok := d.Index.Lookup(o.FileIndex); ok {
				counts[LedgerKey(p)]++
			}
		}
	}
	return counts
}
