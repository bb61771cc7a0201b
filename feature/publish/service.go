package publish

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"

	"hpl3-export/core/config"
	"hpl3-export/core/ledger"
	"hpl3-export/core/mapdoc"
	"hpl3-export/core/paths"
	"hpl3-export/core/storage"
)

// Options controls one publish run.
type Options struct {
	// Prune removes remote objects absent locally.
	Prune bool `json:"prune"`
}

// Result summarizes a publish run.
type Result struct {
	// Uploaded counts objects pushed to the bucket.
	Uploaded int `json:"uploaded"`

	// Pruned counts remote objects removed.
	Pruned int `json:"pruned"`

	// Objects lists the uploaded keys.
	Objects []string `json:"objects,omitempty"`
}

// Service mirrors export output into object storage.
type Service struct {
	client storage.Client
	bucket string
	cfg    config.ExportConfig
	logger *zap.Logger
}

// NewService creates a publish service.
func NewService(client storage.Client, bucket string, cfg config.ExportConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, bucket: bucket, cfg: cfg, logger: logger}
}

// Publish uploads the map documents, the ledger and every exported asset
// file, keyed by project-relative short paths.
func (s *Service) Publish(ctx context.Context, opts Options) (*Result, error) {
	root, shorts, err := s.localFiles()
	if err != nil {
		return nil, err
	}

	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}

	res := &Result{}
	local := make(map[string]bool, len(shorts))
	for _, short := range shorts {
		local[short] = true
		if err := s.upload(ctx, root, short); err != nil {
			return nil, err
		}
		res.Uploaded++
		res.Objects = append(res.Objects, short)
	}

	if opts.Prune {
		pruned, err := s.prune(ctx, local)
		if err != nil {
			return nil, err
		}
		res.Pruned = pruned
	}

	s.logger.Info("Publish finished",
		zap.Int("uploaded", res.Uploaded), zap.Int("pruned", res.Pruned))
	return res, nil
}

func (s *Service) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
}

// localFiles collects everything worth publishing: both map documents,
// the ledger, and the asset directory tree. Missing documents are fine;
// a map with no entities simply has no entity placement file.
func (s *Service) localFiles() (string, []string, error) {
	if s.cfg.MapPath == "" {
		return "", nil, fmt.Errorf("map path not configured")
	}
	mapPath := paths.Canonical(s.cfg.MapPath)
	marker := s.cfg.MarkerOrDefault()
	root := paths.ProjectRoot(path.Dir(mapPath), marker)
	if root == "" {
		return "", nil, fmt.Errorf("map %s is not under a %s directory", mapPath, marker)
	}

	var shorts []string
	appendIfExists := func(p string) {
		if _, err := os.Stat(p); err == nil {
			shorts = append(shorts, paths.Short(p, marker))
		}
	}
	for _, kind := range []mapdoc.Kind{mapdoc.KindStaticObject, mapdoc.KindEntity} {
		appendIfExists(mapPath + kind.DocumentSuffix())
	}
	appendIfExists(root + ledger.DefaultFileName)

	assetRoot := filepath.Join(root, filepath.FromSlash(s.cfg.AssetDir))
	err := filepath.WalkDir(assetRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			shorts = append(shorts, paths.Short(p, marker))
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return root, shorts, nil
}

func (s *Service) upload(ctx context.Context, root, short string) error {
	full := filepath.Join(root, filepath.FromSlash(short))
	f, err := os.Open(full)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, short, f, info.Size(), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", short, err)
	}
	return nil
}

func (s *Service) prune(ctx context.Context, local map[string]bool) (int, error) {
	pruned := 0
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return pruned, obj.Err
		}
		if local[obj.Key] {
			continue
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}
