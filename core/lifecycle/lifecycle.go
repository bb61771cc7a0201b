package lifecycle

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Deleter removes one short-path file from disk.
type Deleter interface {
	// Delete removes the file named by the short path. Returns nil when
	// the file is gone afterwards (including when it was never there).
	Delete(short string) error
}

// FS deletes files under a project root directory. An empty root resolves
// short paths against the working directory.
type FS struct {
	Root   string
	Logger *zap.Logger
}

// NewFS returns a filesystem deleter rooted at root.
func NewFS(root string, logger *zap.Logger) *FS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FS{Root: root, Logger: logger}
}

// Delete removes one file, treating an already-missing file as success.
func (d *FS) Delete(short string) error {
	if short == "" {
		return nil
	}
	full := filepath.Join(d.Root, filepath.FromSlash(short))
	err := os.Remove(full)
	switch {
	case err == nil:
		d.Logger.Info("Removed file", zap.String("path", short))
		return nil
	case errors.Is(err, fs.ErrNotExist):
		d.Logger.Warn("File already missing", zap.String("path", short))
		return nil
	default:
		d.Logger.Warn("Could not delete file", zap.String("path", short), zap.Error(err))
		return err
	}
}

// DeleteAll attempts every file and returns the subset that could not be
// removed, in input order. Residuals must stay tracked by the caller so
// the ledger and the disk do not diverge.
func DeleteAll(d Deleter, shorts []string) (residual []string) {
	for _, s := range shorts {
		if err := d.Delete(s); err != nil {
			residual = append(residual, s)
		}
	}
	return residual
}
