// Package assemble merges an ordered list of sections into one PDF, stamping
// each page of enabled sections with its section/page label.
package assemble

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mattetti/filebuffer"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/jackzampolin/binder/internal/flatten"
	"github.com/jackzampolin/binder/internal/layout"
	"github.com/jackzampolin/binder/internal/section"
)

var (
	// ErrSourceLoad marks a section document that could not be read or parsed.
	ErrSourceLoad = errors.New("failed to load source document")

	// ErrNothingToAssemble is returned when no section contributes a page.
	ErrNothingToAssemble = errors.New("no pages to assemble")
)

// LoadError reports which section failed to load.
type LoadError struct {
	SectionID string
	Name      string
	Err       error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load section %q (%s): %v", e.Name, e.SectionID, e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{ErrSourceLoad, e.Err}
}

// Progress is a page-granular progress event. {0, 0} means idle.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Stamp records one drawn label.
type Stamp struct {
	SectionID string `json:"section_id"`
	// Page is 1-based within the section.
	Page int `json:"page"`
	// OutputPage is 1-based within the merged document.
	OutputPage int              `json:"output_page"`
	Label      string           `json:"label"`
	Placement  layout.Placement `json:"placement"`
}

// Output is the result of a successful run.
type Output struct {
	Data      []byte  `json:"-"`
	PageCount int     `json:"page_count"`
	Stamps    []Stamp `json:"stamps"`
}

// Assembler produces merged documents. The zero value works without
// flattening and with Helvetica metrics.
type Assembler struct {
	Flattener flatten.Flattener
	Metrics   layout.Metrics
	Logger    *slog.Logger
	Conf      *model.Configuration
}

func (a *Assembler) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func (a *Assembler) metrics() layout.Metrics {
	if a.Metrics != nil {
		return a.Metrics
	}
	return layout.Helvetica
}

func (a *Assembler) conf() *model.Configuration {
	if a.Conf != nil {
		return a.Conf
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// run holds the state of one Assemble call.
type run struct {
	ctx      context.Context
	progress chan<- Progress
	current  int
	total    int

	parts   [][]byte
	pages   int
	stamps  []Stamp
	last    layout.Size
	hasLast bool
}

func (r *run) send(p Progress) {
	if r.progress == nil {
		return
	}
	select {
	case r.progress <- p:
	case <-r.ctx.Done():
	}
}

func (r *run) advance() {
	r.current++
	r.send(Progress{Current: r.current, Total: r.total})
}

// Assemble builds the merged document for sections in list order.
//
// Progress events, when progress is non-nil, start with {0, total}, advance
// by one per source page and end with {0, 0} whatever the outcome. The
// channel is not closed.
func (a *Assembler) Assemble(ctx context.Context, sections []section.Section, cfg layout.Config, progress chan<- Progress) (*Output, error) {
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &run{
		ctx:      ctx,
		progress: progress,
		total:    section.TotalPages(sections),
	}
	r.send(Progress{Current: 0, Total: r.total})
	defer r.send(Progress{})

	logger := a.logger()
	flattenOn := cfg.Flatten && a.Flattener != nil && a.Flattener.Available(ctx)
	if cfg.Flatten && !flattenOn {
		logger.Debug("flattening requested but no engine available")
	}
	logger.Info("assembling", "sections", len(sections), "pages", r.total, "flatten", flattenOn)

	for i, s := range sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.Source == nil {
			continue
		}

		data, err := s.Source.Bytes(ctx)
		if err != nil {
			return nil, &LoadError{SectionID: s.ID, Name: s.Name, Err: err}
		}

		if flattenOn {
			flat, err := a.Flattener.Flatten(ctx, data)
			if err != nil {
				logger.Warn("flattening failed, using original document",
					"section", s.ID, "name", s.Name, "error", err)
			} else {
				data = flat
			}
		}

		if err := a.appendSection(r, s, data, cfg); err != nil {
			return nil, err
		}

		if cfg.BlankPage && i != len(sections)-1 {
			if err := r.appendBlank(cfg.Orientation); err != nil {
				return nil, err
			}
		}
	}

	if r.pages == 0 {
		return nil, ErrNothingToAssemble
	}

	data, err := a.merge(r.parts)
	if err != nil {
		return nil, err
	}

	logger.Info("assembled", "pages", r.pages, "stamps", len(r.stamps), "bytes", len(data))
	return &Output{Data: data, PageCount: r.pages, Stamps: r.stamps}, nil
}

func (r *run) appendBlank(o layout.Orientation) error {
	last := r.last
	if !r.hasLast {
		last = DefaultPageSize
	}
	size := layout.SeparatorSize(last, o)
	data, err := blankPage(size)
	if err != nil {
		return err
	}
	r.parts = append(r.parts, data)
	r.pages++
	r.last, r.hasLast = size, true
	return nil
}

// merge concatenates the per-section documents.
func (a *Assembler) merge(parts [][]byte) ([]byte, error) {
	if len(parts) == 1 {
		return parts[0], nil
	}

	readers := make([]io.ReadSeeker, len(parts))
	for i, p := range parts {
		readers[i] = bytes.NewReader(p)
	}

	out := filebuffer.New([]byte{})
	if err := api.MergeRaw(readers, out, false, a.conf()); err != nil {
		return nil, fmt.Errorf("failed to merge documents: %w", err)
	}
	return out.Buff.Bytes(), nil
}
