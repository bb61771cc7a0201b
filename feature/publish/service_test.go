package publish

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hpl3-export/core/config"
	"hpl3-export/core/storage/mocks"
)

// newProject lays out a committed export on disk: one placement document,
// the ledger, and one asset file.
func newProject(t *testing.T) config.ExportConfig {
	t.Helper()
	root := filepath.Join(t.TempDir(), "SOMA")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "maps"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "static_objects", "chair"), 0o755))

	write := func(rel, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(root, rel), []byte(content), 0o644))
	}
	write("maps/level.hpm_StaticObject", "<HPL3Map/>")
	write("exportscript_asset_tracking.xml", "<ExportedFiles/>")
	write("static_objects/chair/chair.dae", "<COLLADA/>")

	return config.ExportConfig{
		MapPath:  filepath.Join(root, "maps", "level.hpm"),
		AssetDir: "static_objects",
	}
}

func TestPublishUploadsShortKeys(t *testing.T) {
	cfg := newProject(t)
	client := &mocks.Client{}
	client.On("BucketExists", mock.Anything, "exports").Return(true, nil)
	client.On("PutObject", mock.Anything, "exports", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, nil)

	svc := NewService(client, "exports", cfg, nil)
	res, err := svc.Publish(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Uploaded)
	assert.Equal(t, []string{
		"maps/level.hpm_StaticObject",
		"exportscript_asset_tracking.xml",
		"static_objects/chair/chair.dae",
	}, res.Objects)
	client.AssertNumberOfCalls(t, "PutObject", 3)
}

func TestPublishCreatesMissingBucket(t *testing.T) {
	cfg := newProject(t)
	client := &mocks.Client{}
	client.On("BucketExists", mock.Anything, "exports").Return(false, nil)
	client.On("MakeBucket", mock.Anything, "exports", mock.Anything).Return(nil)
	client.On("PutObject", mock.Anything, "exports", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, nil)

	svc := NewService(client, "exports", cfg, nil)
	_, err := svc.Publish(context.Background(), Options{})
	require.NoError(t, err)
	client.AssertCalled(t, "MakeBucket", mock.Anything, "exports", mock.Anything)
}

func TestPublishPrunesRemoteOrphans(t *testing.T) {
	cfg := newProject(t)

	remote := make(chan minio.ObjectInfo, 2)
	remote <- minio.ObjectInfo{Key: "static_objects/chair/chair.dae"}
	remote <- minio.ObjectInfo{Key: "static_objects/gone/gone.dae"}
	close(remote)

	client := &mocks.Client{}
	client.On("BucketExists", mock.Anything, "exports").Return(true, nil)
	client.On("PutObject", mock.Anything, "exports", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, nil)
	client.On("ListObjects", mock.Anything, "exports", mock.Anything).Return((<-chan minio.ObjectInfo)(remote))
	client.On("RemoveObject", mock.Anything, "exports", "static_objects/gone/gone.dae", mock.Anything).Return(nil)

	svc := NewService(client, "exports", cfg, nil)
	res, err := svc.Publish(context.Background(), Options{Prune: true})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Pruned)
	client.AssertNumberOfCalls(t, "RemoveObject", 1)
}

func TestPublishUnconfiguredMapPath(t *testing.T) {
	svc := NewService(&mocks.Client{}, "exports", config.ExportConfig{}, nil)
	_, err := svc.Publish(context.Background(), Options{})
	require.Error(t, err)
}
