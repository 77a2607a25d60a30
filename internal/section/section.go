// Package section models the ordered list of source documents being bound.
package section

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Source provides the bytes of a section's document.
type Source interface {
	// Name is a display name, usually the file name.
	Name() string
	// Bytes returns the raw document bytes.
	Bytes(ctx context.Context) ([]byte, error)
}

// FileSource reads a document from disk each time it is needed.
type FileSource struct {
	Path string
}

// Name returns the base name of the file.
func (s FileSource) Name() string {
	return filepath.Base(s.Path)
}

// Bytes reads the file.
func (s FileSource) Bytes(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Path, err)
	}
	return data, nil
}

// MemorySource holds document bytes in memory.
type MemorySource struct {
	name string
	data []byte
}

// NewMemorySource wraps data. The slice is not copied.
func NewMemorySource(name string, data []byte) *MemorySource {
	return &MemorySource{name: name, data: data}
}

// Name returns the display name.
func (s *MemorySource) Name() string {
	return s.name
}

// Bytes returns the held bytes.
func (s *MemorySource) Bytes(ctx context.Context) ([]byte, error) {
	return s.data, ctx.Err()
}

// Section is one user-ordered unit of the output.
type Section struct {
	ID string `json:"id" yaml:"id"`
	// Number is the displayed section number. It is free text and need not
	// be numeric or unique.
	Number    string `json:"number" yaml:"number"`
	Name      string `json:"name" yaml:"name"`
	Source    Source `json:"-" yaml:"-"`
	PageCount int    `json:"page_count" yaml:"page_count"`
	Enabled   bool   `json:"enabled" yaml:"enabled"`
}

// HasSource reports whether the section is bound to a document.
func (s Section) HasSource() bool {
	return s.Source != nil
}
