package fm

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// HoldingArea is the private directory deactivated fonts are moved into
// instead of being deleted, so a deactivation can be undone by hand. It is
// never purged.
type HoldingArea struct {
	dir string
}

// NewHoldingArea returns a holding area rooted at dir. The directory is
// created on first use.
func NewHoldingArea(dir string) *HoldingArea {
	return &HoldingArea{dir: dir}
}

// Dir returns the holding directory.
func (h *HoldingArea) Dir() string {
	return h.dir
}

// PathFor returns where a file named name is held.
func (h *HoldingArea) PathFor(name string) string {
	return filepath.Join(h.dir, filepath.Base(name))
}

// Hold moves the file at path into the holding area under its own name,
// replacing any earlier file held under that name. It returns the new path.
func (h *HoldingArea) Hold(path string) (string, error) {
	if err := os.MkdirAll(h.dir, 0755); err != nil {
		return "", fmt.Errorf("creating holding area: %w", err)
	}
	dest := h.PathFor(path)
	if err := moveFile(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// List returns the fonts currently held.
func (h *HoldingArea) List() ([]FontDescriptor, error) {
	seq, err := Scan(h.dir, OriginImported)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return Collect(seq), nil
}

// copyFile copies src to dest through a temp file in dest's directory so a
// failed copy never leaves a truncated font where the OS would pick it up.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("source is not a regular file")
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".fa-*.tmp")
	if err != nil {
		return fmt.Errorf("creating destination file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copying file contents: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing destination file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing destination file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("setting destination permissions: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("placing destination file: %w", err)
	}
	return nil
}

// moveFile renames src to dest, falling back to copy and remove when the
// two live on different filesystems.
func moveFile(src, dest string) error {
	renameErr := os.Rename(src, dest)
	if renameErr == nil {
		return nil
	}
	if _, err := os.Lstat(src); err != nil {
		return renameErr
	}
	if err := copyFile(src, dest); err != nil {
		return fmt.Errorf("%w (copy fallback: %v)", renameErr, err)
	}
	if err := os.Remove(src); err != nil {
		os.Remove(dest)
		return fmt.Errorf("removing source after copy: %w", err)
	}
	return nil
}
