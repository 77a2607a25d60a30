// Package flatten bakes annotations and form fields into page content by
// running Ghostscript's pdfwrite device over a document.
package flatten

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	EngineAuto   = "auto"
	EngineLocal  = "local"
	EngineDocker = "docker"
	EngineOff    = "off"

	// InputName and OutputName are the file names used inside a scratch dir.
	InputName  = "input.pdf"
	OutputName = "flattened.pdf"
)

// ErrNotFound is returned when no flattening engine can be located.
var ErrNotFound = errors.New("ghostscript not found")

// ExitError reports a Ghostscript run that exited non-zero.
type ExitError struct {
	Engine string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s ghostscript exited with code %d", e.Engine, e.Code)
	}
	return fmt.Sprintf("%s ghostscript exited with code %d: %s", e.Engine, e.Code, msg)
}

// Flattener rewrites a PDF so that annotations become page content.
type Flattener interface {
	// Engine names the implementation ("local", "docker" or "off").
	Engine() string
	// Available reports whether Flatten can run. The answer is probed once
	// and cached.
	Available(ctx context.Context) bool
	// Flatten returns the flattened document.
	Flatten(ctx context.Context, src []byte) ([]byte, error)
}

// Config selects and configures an engine.
type Config struct {
	Engine          string
	GhostscriptPath string
	DockerImage     string
	Timeout         time.Duration
	ScratchDir      string
	Logger          *slog.Logger
}

// New builds the flattener named by cfg.Engine. With "auto" the local
// binary is preferred, then docker; if neither is available flattening is
// disabled.
func New(ctx context.Context, cfg Config) (Flattener, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	scratch := Scratch{Root: cfg.ScratchDir, Logger: cfg.Logger}

	local := func() *Ghostscript {
		return NewGhostscript(GhostscriptConfig{
			Path:    cfg.GhostscriptPath,
			Timeout: cfg.Timeout,
			Scratch: scratch,
			Logger:  cfg.Logger,
		})
	}
	docker := func() *Docker {
		return NewDocker(DockerConfig{
			Image:   cfg.DockerImage,
			Timeout: cfg.Timeout,
			Scratch: scratch,
			Logger:  cfg.Logger,
		})
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Engine)) {
	case EngineLocal:
		return local(), nil
	case EngineDocker:
		return docker(), nil
	case EngineOff:
		return Disabled{}, nil
	case EngineAuto, "":
		if g := local(); g.Available(ctx) {
			return g, nil
		}
		d := docker()
		if d.Available(ctx) {
			return d, nil
		}
		d.Close()
		cfg.Logger.Warn("no ghostscript engine available, flattening disabled")
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown flatten engine %q", cfg.Engine)
	}
}

// Disabled never flattens.
type Disabled struct{}

func (Disabled) Engine() string { return EngineOff }

func (Disabled) Available(context.Context) bool { return false }

func (Disabled) Flatten(context.Context, []byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: flattening is disabled", ErrNotFound)
}

// gsArgs builds the pdfwrite invocation that drops annotations after
// rendering them into content.
func gsArgs(out, in string) []string {
	return []string{
		"-dSAFER",
		"-dBATCH",
		"-dNOPAUSE",
		"-dNOCACHE",
		"-sDEVICE=pdfwrite",
		"-dPreserveAnnots=false",
		"-sOutputFile=" + out,
		in,
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
