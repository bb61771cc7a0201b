package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"hpl3-export/core/config"
	"hpl3-export/core/ledger"
	"hpl3-export/core/lifecycle"
	"hpl3-export/core/mapdoc"
	"hpl3-export/core/paths"
	"hpl3-export/core/reconcile"
	"hpl3-export/core/transform"
)

var kinds = []mapdoc.Kind{mapdoc.KindStaticObject, mapdoc.KindEntity}

// Service runs export passes and reconciliations against one configured
// map. It holds no document state between calls; every pass loads, works
// and commits.
type Service struct {
	cfg     config.ExportConfig
	variant transform.Variant
	collab  Collaborators
	logger  *zap.Logger
	now     func() int64
}

// NewService creates an export service. The transform variant is
// validated here so a bad configuration fails at startup, not mid-pass.
func NewService(cfg config.ExportConfig, tcfg transform.Config, collab Collaborators, logger *zap.Logger) (*Service, error) {
	variant := transform.Variant(tcfg.Variant)
	if !variant.Valid() {
		return nil, fmt.Errorf("unknown transform variant %q", tcfg.Variant)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:     cfg,
		variant: variant,
		collab:  collab,
		logger:  logger,
		now:     func() int64 { return time.Now().Unix() },
	}, nil
}

// state is the loaded working set of one pass: both map documents, the
// ledger, and the project-root file deleter.
type state struct {
	root    string
	docs    map[mapdoc.Kind]*mapdoc.Document
	led     *ledger.Ledger
	deleter lifecycle.Deleter
}

func (st *state) abs(short string) string {
	return filepath.Join(st.root, filepath.FromSlash(short))
}

func (s *Service) open() (*state, error) {
	if s.cfg.MapPath == "" {
		return nil, errors.New("map path not configured")
	}
	mapPath := paths.Canonical(s.cfg.MapPath)
	marker := s.cfg.MarkerOrDefault()
	root := paths.ProjectRoot(path.Dir(mapPath), marker)
	if root == "" {
		return nil, fmt.Errorf("map %s is not under a %s directory", mapPath, marker)
	}

	st := &state{
		root:    root,
		docs:    make(map[mapdoc.Kind]*mapdoc.Document, len(kinds)),
		deleter: lifecycle.NewFS(root, s.logger),
	}
	for _, kind := range kinds {
		doc, err := mapdoc.Load(mapPath+kind.DocumentSuffix(), kind)
		if err != nil {
			return nil, err
		}
		st.docs[kind] = doc
	}
	led, err := ledger.Load(root + ledger.DefaultFileName)
	if err != nil {
		return nil, err
	}
	st.led = led
	return st, nil
}

// commit serializes both documents and the ledger and renames them into
// place together.
func (st *state) commit() error {
	var set commitSet
	for _, kind := range kinds {
		doc := st.docs[kind]
		data, err := doc.Serialize()
		if err != nil {
			return err
		}
		set.add(doc.Path(), data)
	}
	data, err := st.led.Serialize()
	if err != nil {
		return err
	}
	set.add(st.led.Path(), data)
	return set.commit()
}

// RunExportPass exports the given scene objects into the configured map.
// Geometry is written only for new or modified meshes, with instances of
// one mesh sharing a single file. Rows keep their ids and creation stamps
// across passes. The documents and ledger are committed together at the
// end; any error before that leaves them untouched on disk.
func (s *Service) RunExportPass(ctx context.Context, objects []SceneObject, opts PassOptions) (*PassResult, error) {
	st, err := s.open()
	if err != nil {
		return nil, err
	}
	now := opts.Now
	if now == 0 {
		now = s.now()
	}

	res := &PassResult{Objects: len(objects)}
	exported := map[string]bool{}
	stale := map[string][]string{}

	for _, o := range objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, ok := st.docs[o.Kind]
		if !ok {
			return nil, fmt.Errorf("object %s: unknown kind %q", o.Name, o.Kind)
		}

		name := paths.Sanitize(o.Name)
		base := paths.Sanitize(o.Mesh)
		if base == "" || base == "_" {
			base = name
		}
		dir := path.Join(s.cfg.AssetDir, base)
		geometry := path.Join(dir, base+".dae")
		indexPath := path.Join(dir, base+o.Kind.GeometryExtension())

		id, createdIndex := doc.Index.Resolve(indexPath)
		if (createdIndex || o.Modified) && !exported[geometry] {
			exported[geometry] = true
			res.GeometriesExported++
			if !opts.DryRun {
				derived, err := s.exportGeometry(ctx, st, o, dir, geometry)
				if err != nil {
					return nil, err
				}
				res.TexturesConverted += len(derived)
				if old := st.led.RecordDerived(geometry, derived); len(old) > 0 {
					stale[geometry] = append(stale[geometry], old...)
				}
			}
		}

		prevIndex := -1
		if prev := doc.Registry.Find(name); prev != nil {
			prevIndex = prev.FileIndex
		}

		pos, rot, scale := transform.Convert(worldMatrix(o.World), parentMatrix(o), s.variant).Strings()
		_, createdRow := doc.Registry.Upsert(name, pos, rot, scale, o.Flags, id, now)
		switch {
		case createdRow:
			st.led.Increment(geometry)
			res.Created++
		case prevIndex != id:
			// The row re-pointed at different geometry; the use moves with it.
			if oldPath, ok := doc.Index.Lookup(prevIndex); ok {
				st.led.Decrement(reconcile.LedgerKey(oldPath))
			}
			st.led.Increment(geometry)
			res.Updated++
		default:
			res.Updated++
		}
	}

	for _, kind := range kinds {
		for _, verr := range st.docs[kind].Validate() {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", kind, verr))
		}
	}

	if opts.SyncDeletions || s.cfg.SyncDeletions {
		sum, err := s.syncDeletions(st, objects, opts.DryRun)
		if err != nil {
			return nil, err
		}
		res.Reconciled = sum
	}

	if opts.DryRun {
		return res, nil
	}

	// Stale textures from re-exports are deleted before the commit so a
	// failed deletion stays listed in the committed ledger for a retry.
	for geometry, files := range stale {
		residual := lifecycle.DeleteAll(st.deleter, files)
		if len(residual) == 0 {
			continue
		}
		st.led.KeepResidual(geometry, residual)
		for _, f := range residual {
			res.Warnings = append(res.Warnings, fmt.Sprintf("stale texture not deleted: %s", f))
		}
	}

	if err := st.commit(); err != nil {
		return nil, err
	}

	s.logger.Info("Export pass finished",
		zap.Int("objects", res.Objects),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("geometries", res.GeometriesExported))
	return res, nil
}

// exportGeometry drives the collaborator chain for one mesh: interchange
// export, optional texture bake, and conversion of every source image to
// an engine texture. Returned paths are project-relative.
func (s *Service) exportGeometry(ctx context.Context, st *state, o SceneObject, dir, geometry string) ([]string, error) {
	if s.collab.Exporter == nil {
		return nil, errors.New("no geometry exporter configured")
	}
	absDir := st.abs(dir)
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, err
	}

	art, err := s.collab.Exporter.ExportGeometry(ctx, o, st.abs(geometry))
	if err != nil {
		return nil, fmt.Errorf("exporting %s: %w", o.Name, err)
	}
	sources := append([]string(nil), art.Textures...)

	if s.collab.Baker != nil {
		baked, err := s.collab.Baker.Bake(ctx, o, absDir)
		if err != nil {
			return nil, fmt.Errorf("baking %s: %w", o.Name, err)
		}
		sources = append(sources, baked...)
	}

	if s.collab.Converter == nil {
		return nil, nil
	}
	var derived []string
	seen := map[string]bool{}
	for _, src := range sources {
		base := path.Base(paths.Canonical(src))
		out := path.Join(dir, strings.TrimSuffix(base, path.Ext(base))+".dds")
		if seen[out] {
			continue
		}
		seen[out] = true
		if err := s.collab.Converter.Convert(ctx, src, st.abs(out)); err != nil {
			return nil, fmt.Errorf("converting %s: %w", src, err)
		}
		derived = append(derived, out)
	}
	return derived, nil
}

// syncDeletions removes rows for scene objects gone since the last pass,
// applying each kind's plan unconditionally: inside a pass the scene is
// the authority.
func (s *Service) syncDeletions(st *state, objects []SceneObject, dryRun bool) (*reconcile.Summary, error) {
	live := map[string]struct{}{}
	for _, o := range objects {
		live[paths.Sanitize(o.Name)] = struct{}{}
	}

	total := &reconcile.Summary{}
	for _, kind := range kinds {
		doc := st.docs[kind]
		plan := reconcile.BuildPlan(doc, st.led, live)
		opts := reconcile.Options{Confirmed: true, DryRun: dryRun}
		if _, err := reconcile.ApplyPlanWithOptions(plan, doc, st.led, st.deleter, s.logger, opts); err != nil {
			return nil, err
		}
		total.RegistryObjects += plan.Summary.RegistryObjects
		total.LiveObjects = len(live)
		total.Orphans += plan.Summary.Orphans
		total.SharedSkipped += plan.Summary.SharedSkipped
		total.IndexRemovals += plan.Summary.IndexRemovals
		total.FilesToDelete += plan.Summary.FilesToDelete
	}
	return total, nil
}

// Reconcile plans and, when opts allow, applies the removal of map
// entries whose scene objects are gone. The plan is always computed and
// returned; mutations and the commit require opts.Confirmed without
// opts.DryRun.
func (s *Service) Reconcile(ctx context.Context, liveNames []string, opts reconcile.Options) (*ReconcileReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := s.open()
	if err != nil {
		return nil, err
	}

	live := map[string]struct{}{}
	for _, n := range liveNames {
		live[paths.Sanitize(n)] = struct{}{}
	}

	report := &ReconcileReport{Plans: map[string]*reconcile.Plan{}}
	for _, kind := range kinds {
		doc := st.docs[kind]
		plan := reconcile.BuildPlan(doc, st.led, live)
		report.Plans[string(kind)] = plan

		applied, err := reconcile.ApplyPlanWithOptions(plan, doc, st.led, st.deleter, s.logger, opts)
		if err != nil {
			return nil, err
		}
		report.Removed += applied.Removed
		report.Residual = append(report.Residual, applied.Residual...)
	}

	if opts.Confirmed && !opts.DryRun {
		if err := st.commit(); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// Status summarizes the tracked state of the configured map.
func (s *Service) Status() (*StatusReport, error) {
	st, err := s.open()
	if err != nil {
		return nil, err
	}
	indexed := 0
	for _, kind := range kinds {
		indexed += st.docs[kind].Index.Len()
	}
	return &StatusReport{
		MapPath:           paths.Canonical(s.cfg.MapPath),
		StaticObjects:     st.docs[mapdoc.KindStaticObject].Registry.Len(),
		Entities:          st.docs[mapdoc.KindEntity].Registry.Len(),
		IndexedGeometries: indexed,
		TrackedGeometries: len(st.led.Entries()),
	}, nil
}

// parentMatrix resolves the placement source matrix for rigged objects.
func parentMatrix(o SceneObject) *mgl64.Mat4 {
	if o.ParentWorld == nil {
		return nil
	}
	m := worldMatrix(*o.ParentWorld)
	return &m
}
