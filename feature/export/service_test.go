package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hpl3-export/core/config"
	"hpl3-export/core/ledger"
	"hpl3-export/core/mapdoc"
	"hpl3-export/core/reconcile"
	"hpl3-export/core/transform"
)

type fakeExporter struct {
	textures []string
	fail     bool
	calls    int
}

func (f *fakeExporter) ExportGeometry(_ context.Context, _ SceneObject, target string) (*GeometryArtifacts, error) {
	if f.fail {
		return nil, errors.New("exporter crashed")
	}
	f.calls++
	if err := os.WriteFile(target, []byte("<COLLADA/>"), 0o644); err != nil {
		return nil, err
	}
	return &GeometryArtifacts{Textures: f.textures}, nil
}

type fakeConverter struct {
	calls int
}

func (f *fakeConverter) Convert(_ context.Context, _, target string) error {
	f.calls++
	return os.WriteFile(target, []byte("DDS "), 0o644)
}

// testRoot builds a project directory carrying the root marker.
func testRoot(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "SOMA")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "maps"), 0o755))
	return root
}

func testService(t *testing.T, root string, collab Collaborators) *Service {
	t.Helper()
	cfg := config.ExportConfig{
		MapPath:  filepath.Join(root, "maps", "level.hpm"),
		AssetDir: "static_objects",
	}
	svc, err := NewService(cfg, transform.Config{Variant: "canonical"}, collab, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func identity() [16]float64 {
	return [16]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

func staticObj(name, mesh string) SceneObject {
	return SceneObject{Name: name, Kind: mapdoc.KindStaticObject, World: identity(), Mesh: mesh}
}

func reloadStatic(t *testing.T, root string) (*mapdoc.Document, *ledger.Ledger) {
	t.Helper()
	doc, err := mapdoc.Load(filepath.Join(root, "maps", "level.hpm_StaticObject"), mapdoc.KindStaticObject)
	require.NoError(t, err)
	led, err := ledger.Load(filepath.Join(root, ledger.DefaultFileName))
	require.NoError(t, err)
	return doc, led
}

// Two instances of one mesh produce one geometry export and two rows
// sharing the index entry.
func TestRunExportPassSharedMesh(t *testing.T) {
	root := testRoot(t)
	exp := &fakeExporter{}
	svc := testService(t, root, Collaborators{Exporter: exp})

	res, err := svc.RunExportPass(context.Background(),
		[]SceneObject{staticObj("Chair.001", "chair"), staticObj("Chair.002", "chair")},
		PassOptions{Now: 100})
	require.NoError(t, err)

	assert.Equal(t, 1, exp.calls)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.GeometriesExported)

	doc, led := reloadStatic(t, root)
	assert.Equal(t, 2, doc.Registry.Len())
	assert.Equal(t, 1, doc.Index.Len())
	assert.Equal(t, []string{"static_objects/chair/chair.dae"}, doc.Index.Paths())
	assert.Equal(t, 2, led.Find("static_objects/chair/chair.dae").Uses)

	// Sanitized row names.
	assert.NotNil(t, doc.Registry.Find("Chair_001"))

	_, err = os.Stat(filepath.Join(root, "static_objects", "chair", "chair.dae"))
	assert.NoError(t, err)

	// Commit leaves no temp files behind.
	leftovers, err := filepath.Glob(filepath.Join(root, "maps", "*.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

// A second pass over an unchanged scene rewrites stamps but nothing else:
// no geometry export, no new rows, stable ids and creation stamps.
func TestRunExportPassIdempotent(t *testing.T) {
	root := testRoot(t)
	exp := &fakeExporter{}
	svc := testService(t, root, Collaborators{Exporter: exp})

	_, err := svc.RunExportPass(context.Background(), []SceneObject{staticObj("Lamp", "lamp")}, PassOptions{Now: 100})
	require.NoError(t, err)
	res, err := svc.RunExportPass(context.Background(), []SceneObject{staticObj("Lamp", "lamp")}, PassOptions{Now: 200})
	require.NoError(t, err)

	assert.Equal(t, 1, exp.calls)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Updated)

	doc, led := reloadStatic(t, root)
	o := doc.Registry.Find("Lamp")
	require.NotNil(t, o)
	assert.Equal(t, int64(100), o.CreStamp)
	assert.Equal(t, int64(200), o.ModStamp)
	assert.Equal(t, 1, led.Find("static_objects/lamp/lamp.dae").Uses)
}

// Repeating an unchanged pass with the same stamp reproduces every
// committed file byte for byte.
func TestRunExportPassByteStableWhenUnchanged(t *testing.T) {
	root := testRoot(t)
	exp := &fakeExporter{textures: []string{"/art/source/lamp_diffuse.png"}}
	svc := testService(t, root, Collaborators{Exporter: exp, Converter: &fakeConverter{}})

	scene := []SceneObject{staticObj("Lamp", "lamp"), staticObj("Lamp.001", "lamp")}
	_, err := svc.RunExportPass(context.Background(), scene, PassOptions{Now: 100})
	require.NoError(t, err)

	files := []string{
		filepath.Join(root, "maps", "level.hpm_StaticObject"),
		filepath.Join(root, "maps", "level.hpm_Entity"),
		filepath.Join(root, ledger.DefaultFileName),
	}
	before := map[string][]byte{}
	for _, f := range files {
		data, err := os.ReadFile(f)
		require.NoError(t, err)
		before[f] = data
	}

	_, err = svc.RunExportPass(context.Background(), scene, PassOptions{Now: 100})
	require.NoError(t, err)

	for _, f := range files {
		data, err := os.ReadFile(f)
		require.NoError(t, err)
		assert.Equal(t, string(before[f]), string(data), f)
	}
}

// Re-exporting an object under a different mesh moves its use from the
// old geometry to the new one.
func TestRunExportPassMeshChangeMovesUse(t *testing.T) {
	root := testRoot(t)
	svc := testService(t, root, Collaborators{Exporter: &fakeExporter{}})

	_, err := svc.RunExportPass(context.Background(), []SceneObject{staticObj("Lamp", "lamp_a")}, PassOptions{Now: 100})
	require.NoError(t, err)
	res, err := svc.RunExportPass(context.Background(), []SceneObject{staticObj("Lamp", "lamp_b")}, PassOptions{Now: 200})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	doc, led := reloadStatic(t, root)
	o := doc.Registry.Find("Lamp")
	require.NotNil(t, o)
	path, ok := doc.Index.Lookup(o.FileIndex)
	require.True(t, ok)
	assert.Equal(t, "static_objects/lamp_b/lamp_b.dae", path)

	assert.Equal(t, 1, led.Find("static_objects/lamp_b/lamp_b.dae").Uses)
	assert.Equal(t, 0, led.Find("static_objects/lamp_a/lamp_a.dae").Uses)

	// Stored counts agree with a recount from the document itself.
	counts := reconcile.RebuildUseCounts([]*mapdoc.Document{doc})
	for _, e := range led.Entries() {
		assert.Equal(t, counts[e.GeometryPath], e.Uses, e.GeometryPath)
	}
}

// A collaborator failure aborts the pass before any document write.
func TestRunExportPassFailureLeavesDocumentsUntouched(t *testing.T) {
	root := testRoot(t)
	svc := testService(t, root, Collaborators{Exporter: &fakeExporter{}})
	_, err := svc.RunExportPass(context.Background(), []SceneObject{staticObj("Lamp", "lamp")}, PassOptions{Now: 100})
	require.NoError(t, err)

	docPath := filepath.Join(root, "maps", "level.hpm_StaticObject")
	before, err := os.ReadFile(docPath)
	require.NoError(t, err)

	failing := testService(t, root, Collaborators{Exporter: &fakeExporter{fail: true}})
	o := staticObj("Lamp", "lamp")
	o.Modified = true
	_, err = failing.RunExportPass(context.Background(), []SceneObject{o}, PassOptions{Now: 200})
	require.Error(t, err)

	after, err := os.ReadFile(docPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

// Deletion sync inside a pass removes rows for objects gone from the
// scene, including their files once unreferenced.
func TestRunExportPassSyncDeletions(t *testing.T) {
	root := testRoot(t)
	svc := testService(t, root, Collaborators{Exporter: &fakeExporter{}})

	_, err := svc.RunExportPass(context.Background(),
		[]SceneObject{staticObj("Keep", "keep"), staticObj("Drop", "drop")},
		PassOptions{Now: 100})
	require.NoError(t, err)

	res, err := svc.RunExportPass(context.Background(),
		[]SceneObject{staticObj("Keep", "keep")},
		PassOptions{Now: 200, SyncDeletions: true})
	require.NoError(t, err)
	require.NotNil(t, res.Reconciled)
	assert.Equal(t, 1, res.Reconciled.Orphans)

	doc, led := reloadStatic(t, root)
	assert.Equal(t, 1, doc.Registry.Len())
	assert.Nil(t, led.Find("static_objects/drop/drop.dae"))

	_, err = os.Stat(filepath.Join(root, "static_objects", "drop", "drop.dae"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "static_objects", "keep", "keep.dae"))
	assert.NoError(t, err)
}

// Source textures are converted next to the geometry and recorded as
// derived files.
func TestRunExportPassConvertsTextures(t *testing.T) {
	root := testRoot(t)
	exp := &fakeExporter{textures: []string{"/art/source/chair_diffuse.png"}}
	conv := &fakeConverter{}
	svc := testService(t, root, Collaborators{Exporter: exp, Converter: conv})

	res, err := svc.RunExportPass(context.Background(), []SceneObject{staticObj("Chair", "chair")}, PassOptions{Now: 100})
	require.NoError(t, err)

	assert.Equal(t, 1, conv.calls)
	assert.Equal(t, 1, res.TexturesConverted)

	_, led := reloadStatic(t, root)
	e := led.Find("static_objects/chair/chair.dae")
	require.NotNil(t, e)
	assert.Equal(t, []string{"static_objects/chair/chair_diffuse.dds"}, e.Derived)
}

// A stale texture that cannot be deleted stays listed in the committed
// ledger so a later pass retries it.
func TestRunExportPassKeepsUndeletableStaleTexture(t *testing.T) {
	root := testRoot(t)
	svc := testService(t, root, Collaborators{
		Exporter:  &fakeExporter{textures: []string{"/art/source/chair_a.png"}},
		Converter: &fakeConverter{},
	})
	_, err := svc.RunExportPass(context.Background(), []SceneObject{staticObj("Chair", "chair")}, PassOptions{Now: 100})
	require.NoError(t, err)

	// Pin the old texture in place: a non-empty directory at its path
	// makes the removal fail.
	old := filepath.Join(root, "static_objects", "chair", "chair_a.dds")
	require.NoError(t, os.Remove(old))
	require.NoError(t, os.MkdirAll(filepath.Join(old, "locked"), 0o755))

	retextured := testService(t, root, Collaborators{
		Exporter:  &fakeExporter{textures: []string{"/art/source/chair_b.png"}},
		Converter: &fakeConverter{},
	})
	o := staticObj("Chair", "chair")
	o.Modified = true
	res, err := retextured.RunExportPass(context.Background(), []SceneObject{o}, PassOptions{Now: 200})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "chair_a.dds")

	_, led := reloadStatic(t, root)
	e := led.Find("static_objects/chair/chair.dae")
	require.NotNil(t, e)
	assert.Equal(t,
		[]string{"static_objects/chair/chair_b.dds", "static_objects/chair/chair_a.dds"},
		e.Derived)
}

// Entities index their .ent file while the ledger tracks the .dae.
func TestRunExportPassEntity(t *testing.T) {
	root := testRoot(t)
	svc := testService(t, root, Collaborators{Exporter: &fakeExporter{}})

	o := SceneObject{Name: "Door", Kind: mapdoc.KindEntity, World: identity(), Mesh: "door"}
	_, err := svc.RunExportPass(context.Background(), []SceneObject{o}, PassOptions{Now: 100})
	require.NoError(t, err)

	doc, err := mapdoc.Load(filepath.Join(root, "maps", "level.hpm_Entity"), mapdoc.KindEntity)
	require.NoError(t, err)
	assert.Equal(t, []string{"static_objects/door/door.ent"}, doc.Index.Paths())

	led, err := ledger.Load(filepath.Join(root, ledger.DefaultFileName))
	require.NoError(t, err)
	assert.NotNil(t, led.Find("static_objects/door/door.dae"))
}

// Dry-run reconcile reports the plan without touching anything.
func TestReconcileDryRun(t *testing.T) {
	root := testRoot(t)
	svc := testService(t, root, Collaborators{Exporter: &fakeExporter{}})
	_, err := svc.RunExportPass(context.Background(),
		[]SceneObject{staticObj("Keep", "keep"), staticObj("Drop", "drop")},
		PassOptions{Now: 100})
	require.NoError(t, err)

	report, err := svc.Reconcile(context.Background(), []string{"Keep"},
		reconcile.Options{DryRun: true, Confirmed: true})
	require.NoError(t, err)

	assert.Equal(t, 0, report.Removed)
	plan := report.Plans[string(mapdoc.KindStaticObject)]
	require.NotNil(t, plan)
	assert.Equal(t, 1, plan.Summary.Orphans)

	doc, _ := reloadStatic(t, root)
	assert.Equal(t, 2, doc.Registry.Len())
}

// Confirmed reconcile removes orphans and commits the result.
func TestReconcileApplies(t *testing.T) {
	root := testRoot(t)
	svc := testService(t, root, Collaborators{Exporter: &fakeExporter{}})
	_, err := svc.RunExportPass(context.Background(),
		[]SceneObject{staticObj("Keep", "keep"), staticObj("Drop", "drop")},
		PassOptions{Now: 100})
	require.NoError(t, err)

	report, err := svc.Reconcile(context.Background(), []string{"Keep"},
		reconcile.Options{Confirmed: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)

	doc, led := reloadStatic(t, root)
	assert.Equal(t, 1, doc.Registry.Len())
	assert.Nil(t, led.Find("static_objects/drop/drop.dae"))
}

// Dry-run passes compute the result without collaborators or disk writes.
func TestRunExportPassDryRun(t *testing.T) {
	root := testRoot(t)
	svc := testService(t, root, Collaborators{})

	res, err := svc.RunExportPass(context.Background(), []SceneObject{staticObj("Chair", "chair")},
		PassOptions{Now: 100, DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.GeometriesExported)

	_, err = os.Stat(filepath.Join(root, "maps", "level.hpm_StaticObject"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "static_objects"))
	assert.True(t, os.IsNotExist(err))
}

func TestNewServiceRejectsUnknownVariant(t *testing.T) {
	_, err := NewService(config.ExportConfig{}, transform.Config{Variant: "sideways"}, Collaborators{}, nil)
	require.Error(t, err)
}

func TestRunExportPassOutsideProjectRoot(t *testing.T) {
	cfg := config.ExportConfig{MapPath: filepath.Join(t.TempDir(), "level.hpm")}
	svc, err := NewService(cfg, transform.Config{Variant: "canonical"}, Collaborators{Exporter: &fakeExporter{}}, nil)
	require.NoError(t, err)

	_, err = svc.RunExportPass(context.Background(), []SceneObject{staticObj("A", "a")}, PassOptions{})
	require.Error(t, err)
}
