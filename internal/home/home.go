package home

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDirName is the default name for the binder home directory.
	DefaultDirName = ".binder"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	scratchDirName = "scratch"
	exportsDirName = "exports"
	uploadsDirName = "uploads"
)

// Dir represents the binder home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.binder).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// ScratchDir is the parent of per-call flattening temp dirs.
func (d *Dir) ScratchDir() string {
	return filepath.Join(d.path, scratchDirName)
}

// ExportsDir holds merged documents saved from the preview.
func (d *Dir) ExportsDir() string {
	return filepath.Join(d.path, exportsDirName)
}

// UploadsDir holds server-side copies of uploaded section documents.
func (d *Dir) UploadsDir() string {
	return filepath.Join(d.path, uploadsDirName)
}

// UploadPath returns where an uploaded document for section id is stored.
// Only the base of name is kept.
func (d *Dir) UploadPath(id, name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || strings.TrimSpace(base) == "" {
		base = "document.pdf"
	}
	return filepath.Join(d.UploadsDir(), id, base)
}

// RemoveUpload deletes the stored documents of section id.
func (d *Dir) RemoveUpload(id string) error {
	if id == "" || filepath.Base(id) != id || id == "." || id == ".." {
		return fmt.Errorf("invalid upload id %q", id)
	}
	if err := os.RemoveAll(filepath.Join(d.UploadsDir(), id)); err != nil {
		return fmt.Errorf("failed to remove upload %s: %w", id, err)
	}
	return nil
}

// ClearUploads deletes every stored upload. Uploads belong to in-memory
// section lists, so none survive a restart.
func (d *Dir) ClearUploads() error {
	if err := os.RemoveAll(d.UploadsDir()); err != nil {
		return fmt.Errorf("failed to clear uploads: %w", err)
	}
	return nil
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.ScratchDir(), d.ExportsDir(), d.UploadsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
