// Package project reads manifest files describing an assembly run.
package project

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/binder/internal/layout"
	"github.com/jackzampolin/binder/internal/section"
)

// DefaultOutput is the output file name when a manifest names none.
const DefaultOutput = "output.pdf"

//go:embed schema.json
var schemaJSON []byte

// SectionSpec is one section entry of a manifest.
type SectionSpec struct {
	File    string  `yaml:"file" json:"file"`
	Number  *string `yaml:"number,omitempty" json:"number,omitempty"`
	Name    string  `yaml:"name,omitempty" json:"name,omitempty"`
	Enabled *bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// Manifest is the decoded manifest. Layout fields that are absent keep their
// defaults.
type Manifest struct {
	Layout   layout.Config `yaml:"layout" json:"layout"`
	Sections []SectionSpec `yaml:"sections" json:"sections"`
	Output   string        `yaml:"output,omitempty" json:"output,omitempty"`
}

// Project is a manifest plus the directory its relative paths resolve
// against.
type Project struct {
	Path     string
	Dir      string
	Manifest Manifest
}

// Load reads and validates the manifest at path.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project path: %w", err)
	}
	p, err := Parse(data, filepath.Dir(abs))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.Path = abs
	return p, nil
}

// Parse validates and decodes a YAML or JSON manifest.
func Parse(data []byte, dir string) (*Project, error) {
	if err := validate(data); err != nil {
		return nil, err
	}

	m := Manifest{Layout: layout.DefaultConfig()}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode project: %w", err)
	}
	m.Layout = m.Layout.Normalized()
	if err := m.Layout.Validate(); err != nil {
		return nil, err
	}
	return &Project{Dir: dir, Manifest: m}, nil
}

func validate(data []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("failed to load project schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("failed to compile project schema: %w", err)
	}

	// Round-trip through JSON so the validator sees JSON types.
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode project: %w", err)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to convert project for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return fmt.Errorf("failed to convert project for validation: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("project does not match schema: %w", err)
	}
	return nil
}

// resolve makes path absolute against the project dir.
func (p *Project) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Dir, path)
}

// OutputPath returns where the merged document is written.
func (p *Project) OutputPath() string {
	out := p.Manifest.Output
	if out == "" {
		out = DefaultOutput
	}
	return p.resolve(out)
}

// Files returns the resolved section file paths in order.
func (p *Project) Files() []string {
	files := make([]string, len(p.Manifest.Sections))
	for i, s := range p.Manifest.Sections {
		files[i] = p.resolve(s.File)
	}
	return files
}

// Sections builds the section list and resolves page counts. Every file must
// exist.
func (p *Project) Sections(ctx context.Context, logger *slog.Logger) (*section.List, error) {
	list := section.NewList()
	for i, spec := range p.Manifest.Sections {
		path := p.resolve(spec.File)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}

		src := section.FileSource{Path: path}
		s := section.Section{
			Number:  strconv.Itoa(i),
			Name:    src.Name(),
			Source:  src,
			Enabled: true,
		}
		if spec.Number != nil {
			s.Number = *spec.Number
		}
		if spec.Name != "" {
			s.Name = spec.Name
		}
		if spec.Enabled != nil {
			s.Enabled = *spec.Enabled
		}
		if _, err := list.Insert(list.Len(), s); err != nil {
			return nil, err
		}
	}

	if _, err := list.ResolvePageCounts(ctx, section.CountPages, logger); err != nil {
		return nil, err
	}
	return list, nil
}
