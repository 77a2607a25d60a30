// Package preview keeps a merged preview in sync with the section list and
// layout, running at most one assembly at a time.
package preview

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/binder/internal/assemble"
	"github.com/jackzampolin/binder/internal/layout"
	"github.com/jackzampolin/binder/internal/section"
)

// State of the preview.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateReady   State = "ready"
	StateFailed  State = "failed"
	// StateEmpty means the section list is empty and the preview was cleared.
	StateEmpty State = "empty"
)

// Assembler builds a merged document.
type Assembler interface {
	Assemble(ctx context.Context, sections []section.Section, cfg layout.Config, progress chan<- assemble.Progress) (*assemble.Output, error)
}

// Status is a point-in-time view of the preview.
type Status struct {
	State      State             `json:"state"`
	Generation uint64            `json:"generation"`
	Progress   assemble.Progress `json:"progress"`
	Error      string            `json:"error,omitempty"`
	PageCount  int               `json:"page_count"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
}

// Config holds regenerator dependencies.
type Config struct {
	Assembler Assembler
	Sections  *section.List
	Layout    layout.Config
	Logger    *slog.Logger
}

// Regenerator serializes preview runs. Requests made while a run is in
// flight coalesce into a single rerun; results whose generation is no longer
// current are discarded.
type Regenerator struct {
	ctx       context.Context
	assembler Assembler
	sections  *section.List
	logger    *slog.Logger

	mu          sync.Mutex
	layout      layout.Config
	generation  uint64
	running     bool
	pending     bool
	idle        chan struct{}
	output      *assemble.Output
	status      Status
	subscribers map[chan assemble.Progress]struct{}
}

// New creates a regenerator bound to ctx; runs stop when ctx is done.
// It subscribes to changes of cfg.Sections.
func New(ctx context.Context, cfg Config) (*Regenerator, error) {
	if cfg.Assembler == nil {
		return nil, errors.New("assembler is required")
	}
	if cfg.Sections == nil {
		cfg.Sections = section.NewList()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	lc := cfg.Layout.Normalized()
	if err := lc.Validate(); err != nil {
		return nil, err
	}

	r := &Regenerator{
		ctx:         ctx,
		assembler:   cfg.Assembler,
		sections:    cfg.Sections,
		logger:      cfg.Logger,
		layout:      lc,
		status:      Status{State: StateIdle},
		subscribers: make(map[chan assemble.Progress]struct{}),
	}
	cfg.Sections.OnChange(r.Invalidate)
	return r, nil
}

// Sections returns the list the preview follows.
func (r *Regenerator) Sections() *section.List {
	return r.sections
}

// Layout returns the current layout.
func (r *Regenerator) Layout() layout.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.layout
}

// SetLayout replaces the layout and invalidates the preview.
func (r *Regenerator) SetLayout(cfg layout.Config) error {
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.layout = cfg
	r.mu.Unlock()

	r.Invalidate()
	return nil
}

// Invalidate bumps the generation and, with auto-update on, schedules a run.
func (r *Regenerator) Invalidate() {
	r.mu.Lock()
	r.generation++
	r.status.Generation = r.generation
	r.mu.Unlock()

	r.Request(false)
}

// Request schedules a run. Without force it is ignored when auto-update is
// off. Reports whether a run was scheduled or coalesced.
func (r *Regenerator) Request(force bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !force && !r.layout.AutoUpdate {
		return false
	}
	if r.ctx.Err() != nil {
		return false
	}
	if r.running {
		r.pending = true
		return true
	}
	r.running = true
	r.idle = make(chan struct{})
	go r.loop()
	return true
}

// Wait blocks until no run is in flight.
func (r *Regenerator) Wait(ctx context.Context) error {
	r.mu.Lock()
	idle := r.idle
	r.mu.Unlock()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the current status.
func (r *Regenerator) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Output returns the latest successful output, or nil.
func (r *Regenerator) Output() *assemble.Output {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.output
}

// Subscribe returns a channel of progress events and a function that
// unsubscribes and closes it. Slow subscribers miss events.
func (r *Regenerator) Subscribe() (<-chan assemble.Progress, func()) {
	ch := make(chan assemble.Progress, 16)
	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subscribers, ch)
			r.mu.Unlock()
			close(ch)
		})
	}
}

func (r *Regenerator) loop() {
	for {
		r.mu.Lock()
		cfg := r.layout
		gen := r.generation
		r.pending = false
		r.status.State = StateRunning
		r.status.Error = ""
		r.mu.Unlock()

		sections, _ := r.sections.Snapshot()
		out, err := r.runOnce(gen, sections, cfg)

		r.mu.Lock()
		switch {
		case gen != r.generation:
			r.logger.Debug("discarding stale preview", "generation", gen, "current", r.generation)
			r.pending = true
		case len(sections) == 0:
			r.output = nil
			r.status.State = StateEmpty
			r.status.PageCount = 0
			r.status.UpdatedAt = time.Now()
		case err != nil:
			r.logger.Error("preview generation failed", "generation", gen, "error", err)
			r.status.State = StateFailed
			r.status.Error = err.Error()
			r.status.UpdatedAt = time.Now()
		default:
			r.output = out
			r.status.State = StateReady
			r.status.PageCount = out.PageCount
			r.status.UpdatedAt = time.Now()
		}
		r.status.Progress = assemble.Progress{}

		if !r.pending || r.ctx.Err() != nil {
			if r.status.State == StateRunning {
				r.status.State = StateIdle
			}
			r.running = false
			close(r.idle)
			r.idle = nil
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()
	}
}

func (r *Regenerator) runOnce(gen uint64, sections []section.Section, cfg layout.Config) (*assemble.Output, error) {
	if len(sections) == 0 {
		return nil, nil
	}

	progress := make(chan assemble.Progress)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			r.publish(gen, p)
		}
	}()

	out, err := r.assembler.Assemble(r.ctx, sections, cfg, progress)
	close(progress)
	<-done
	return out, err
}

func (r *Regenerator) publish(gen uint64, p assemble.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation {
		return
	}
	r.status.Progress = p
	for ch := range r.subscribers {
		select {
		case ch <- p:
		default:
		}
	}
}
