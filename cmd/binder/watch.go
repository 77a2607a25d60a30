package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/binder/internal/assemble"
	"github.com/jackzampolin/binder/internal/flatten"
	"github.com/jackzampolin/binder/internal/preview"
	"github.com/jackzampolin/binder/internal/project"
)

var (
	watchProject  string
	watchOut      string
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild a project whenever its manifest or sources change",
	Long: `Watch assembles a project, then rebuilds it every time the manifest or
one of its section files is written. Runs never overlap; changes arriving
during a run are folded into a single rerun.`,
	Example: `  binder watch --project book.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger(os.Stderr)

		if watchProject == "" {
			return errors.New("--project is required")
		}
		h, mgr, err := loadEnv(logger)
		if err != nil {
			return err
		}
		conf := mgr.Get()

		p, err := project.Load(watchProject)
		if err != nil {
			return err
		}

		var fl flatten.Flattener
		if p.Manifest.Layout.Flatten {
			if err := h.EnsureExists(); err != nil {
				return err
			}
			if fl, err = flatten.New(ctx, conf.FlattenerConfig(h.ScratchDir(), logger)); err != nil {
				return err
			}
			if c, ok := fl.(io.Closer); ok {
				defer c.Close()
			}
		}

		w, err := newProjectWatcher(ctx, p, fl, logger)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("out") {
			w.out = watchOut
		}
		return w.Run(ctx, watchDebounce)
	},
}

// projectWatcher rebuilds one project through a preview regenerator.
type projectWatcher struct {
	path    string
	out     string
	regen   *preview.Regenerator
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	files   map[string]bool
	written uint64
}

func newProjectWatcher(ctx context.Context, p *project.Project, fl flatten.Flattener, logger *slog.Logger) (*projectWatcher, error) {
	lc := p.Manifest.Layout
	lc.AutoUpdate = true
	regen, err := preview.New(ctx, preview.Config{
		Assembler: &assemble.Assembler{Flattener: fl, Logger: logger},
		Layout:    lc,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &projectWatcher{
		path:    p.Path,
		out:     p.OutputPath(),
		regen:   regen,
		logger:  logger,
		watcher: fw,
	}, nil
}

// Run blocks until ctx is done.
func (w *projectWatcher) Run(ctx context.Context, debounce time.Duration) error {
	defer w.watcher.Close()

	if err := w.rebuild(ctx); err != nil {
		// A broken manifest at startup is reported but the watch continues
		w.logger.Error("rebuild failed", "error", err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("change detected", "file", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		case <-fire:
			fire = nil
			if err := w.rebuild(ctx); err != nil {
				w.logger.Error("rebuild failed", "error", err)
			}
		}
	}
}

func (w *projectWatcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return w.files[filepath.Clean(ev.Name)]
}

// rebuild reloads the manifest, swaps the section list and writes the output
// once the regenerator settles.
func (w *projectWatcher) rebuild(ctx context.Context) error {
	p, err := project.Load(w.path)
	if err != nil {
		return err
	}
	if err := w.track(append(p.Files(), p.Path)); err != nil {
		return err
	}

	list, err := p.Sections(ctx, w.logger)
	if err != nil {
		return err
	}
	lc := p.Manifest.Layout
	lc.AutoUpdate = true
	if lc != w.regen.Layout() {
		if err := w.regen.SetLayout(lc); err != nil {
			return err
		}
	}
	sections, _ := list.Snapshot()
	w.regen.Sections().Replace(sections)

	if err := w.regen.Wait(ctx); err != nil {
		return err
	}
	return w.write()
}

// track watches the parent directory of every file; editors often replace
// files by rename, which a watch on the file itself would lose.
func (w *projectWatcher) track(paths []string) error {
	files := make(map[string]bool, len(paths))
	for _, p := range paths {
		p = filepath.Clean(p)
		files[p] = true
		if err := w.watcher.Add(filepath.Dir(p)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", filepath.Dir(p), err)
		}
	}
	w.files = files
	return nil
}

func (w *projectWatcher) write() error {
	st := w.regen.Status()
	switch st.State {
	case preview.StateFailed:
		return errors.New(st.Error)
	case preview.StateEmpty:
		w.logger.Warn("project has no sections, nothing written")
		return nil
	}
	out := w.regen.Output()
	if out == nil || st.Generation == w.written {
		return nil
	}
	if err := os.WriteFile(w.out, out.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	w.written = st.Generation
	w.logger.Info("wrote output", "file", w.out, "pages", out.PageCount, "sections", w.regen.Sections().Len())
	return nil
}

func init() {
	watchCmd.Flags().StringVarP(&watchProject, "project", "p", "", "project manifest (YAML or JSON)")
	watchCmd.Flags().StringVar(&watchOut, "out", "", "output PDF path (default: manifest output)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "quiet period before rebuilding")

	rootCmd.AddCommand(watchCmd)
}
