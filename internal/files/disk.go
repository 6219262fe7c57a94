package files

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/steveyegge/cookbook/internal/types"
)

// ReadDir loads every harvestable file under root into a file set
func ReadDir(root string) ([]types.File, error) {
	var out []types.File
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !Harvestable(rel) {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}
		out = append(out, types.File{Path: rel, Content: string(data)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByPath(out)
	return out, nil
}

// WriteDir writes a file set under root, creating directories as needed
func WriteDir(root string, set []types.File) error {
	for _, f := range set {
		if err := f.Validate(); err != nil {
			return err
		}
		abs := filepath.Join(root, filepath.FromSlash(NormalizePath(f.Path)))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", f.Path, err)
		}
		if err := os.WriteFile(abs, []byte(f.Content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
	}
	return nil
}
