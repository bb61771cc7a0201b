package export

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// commitSet stages file payloads and renames them into place together, so
// the map documents and the ledger change as one unit.
type commitSet struct {
	files []commitFile
}

type commitFile struct {
	path string
	data []byte
}

func (c *commitSet) add(path string, data []byte) {
	c.files = append(c.files, commitFile{path: path, data: data})
}

// commit writes every payload to a uniquely named temporary sibling and
// renames them into place only once all writes succeeded. A failure
// during the write phase leaves the originals untouched.
func (c *commitSet) commit() error {
	temps := make([]string, 0, len(c.files))
	cleanup := func() {
		for _, t := range temps {
			_ = os.Remove(t)
		}
	}

	for _, f := range c.files {
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			cleanup()
			return err
		}
		tmp := f.path + ".tmp-" + uuid.NewString()
		if err := os.WriteFile(tmp, f.data, 0o644); err != nil {
			cleanup()
			return err
		}
		temps = append(temps, tmp)
	}

	for i, f := range c.files {
		if err := os.Rename(temps[i], f.path); err != nil {
			cleanup()
			return err
		}
	}
	return nil
}
