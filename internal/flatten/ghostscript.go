package flatten

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// GhostscriptConfig configures the local runner.
type GhostscriptConfig struct {
	// Path skips discovery when set.
	Path    string
	Timeout time.Duration
	Scratch Scratch
	Logger  *slog.Logger
}

// Ghostscript runs a locally installed gs binary.
type Ghostscript struct {
	explicit string
	timeout  time.Duration
	scratch  Scratch
	logger   *slog.Logger

	// Discovery candidates, in order.
	commands   []string
	knownPaths []string
	which      bool

	mu       sync.Mutex
	probed   bool
	resolved string
	probeErr error
}

// NewGhostscript creates a local runner with the platform's candidates.
func NewGhostscript(cfg GhostscriptConfig) *Ghostscript {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	commands, paths := defaultCandidates(runtime.GOOS)
	return &Ghostscript{
		explicit:   cfg.Path,
		timeout:    cfg.Timeout,
		scratch:    cfg.Scratch,
		logger:     logger,
		commands:   commands,
		knownPaths: paths,
		which:      runtime.GOOS != "windows",
	}
}

func defaultCandidates(goos string) (commands, paths []string) {
	if goos == "windows" {
		return []string{"gswin64c", "gswin32c", "gs"}, []string{
			`C:\Program Files\gs\gs10.02.1\bin\gswin64c.exe`,
			`C:\Program Files\gs\gs10.01.1\bin\gswin64c.exe`,
			`C:\Program Files\gs\gs10.00.0\bin\gswin64c.exe`,
			`C:\Program Files (x86)\gs\gs10.02.1\bin\gswin32c.exe`,
			`C:\Program Files (x86)\gs\gs10.01.1\bin\gswin32c.exe`,
			`C:\Program Files (x86)\gs\gs10.00.0\bin\gswin32c.exe`,
		}
	}
	return []string{"gs"}, []string{
		"/usr/local/bin/gs",
		"/opt/homebrew/bin/gs",
		"/usr/bin/gs",
		"/opt/local/bin/gs",
		"/usr/local/ghostscript/bin/gs",
	}
}

func (g *Ghostscript) Engine() string { return EngineLocal }

// Locate returns the binary to run. The result is cached after the first
// conclusive probe.
func (g *Ghostscript) Locate(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.probed {
		return g.resolved, g.probeErr
	}

	path, err := g.discover(ctx)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	g.probed = true
	g.resolved, g.probeErr = path, err
	if err == nil {
		g.logger.Info("ghostscript located", "path", path)
	}
	return path, err
}

func (g *Ghostscript) discover(ctx context.Context) (string, error) {
	if g.explicit != "" {
		if _, err := os.Stat(g.explicit); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrNotFound, g.explicit, err)
		}
		return g.explicit, nil
	}

	for _, cmd := range g.commands {
		if exec.CommandContext(ctx, cmd, "--version").Run() == nil {
			if abs, err := exec.LookPath(cmd); err == nil {
				return abs, nil
			}
			return cmd, nil
		}
	}

	for _, p := range g.knownPaths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}

	if g.which {
		out, err := exec.CommandContext(ctx, "which", "gs").Output()
		if err == nil {
			if p := strings.TrimSpace(string(out)); p != "" {
				return p, nil
			}
		}
	}

	return "", ErrNotFound
}

// Available reports whether a binary was located.
func (g *Ghostscript) Available(ctx context.Context) bool {
	_, err := g.Locate(ctx)
	return err == nil
}

// Flatten runs gs over src in a scratch dir.
func (g *Ghostscript) Flatten(ctx context.Context, src []byte) ([]byte, error) {
	bin, err := g.Locate(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	return g.scratch.Do(src, func(dir string) error {
		var stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, bin, gsArgs(filepath.Join(dir, OutputName), filepath.Join(dir, InputName))...)
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) && ctx.Err() == nil {
				return &ExitError{Engine: EngineLocal, Code: exitErr.ExitCode(), Stderr: stderr.String()}
			}
			return fmt.Errorf("failed to run ghostscript: %w", err)
		}
		return nil
	})
}
