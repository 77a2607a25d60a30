package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/binder/internal/api"
	"github.com/jackzampolin/binder/internal/assemble"
	"github.com/jackzampolin/binder/internal/config"
	"github.com/jackzampolin/binder/internal/flatten"
	"github.com/jackzampolin/binder/internal/home"
	"github.com/jackzampolin/binder/internal/layout"
	"github.com/jackzampolin/binder/internal/project"
	"github.com/jackzampolin/binder/internal/section"
	"github.com/jackzampolin/binder/internal/tui"
)

var (
	assembleProject string
	assembleOut     string
	assembleQuiet   bool
	assembleLayout  *layout.Flags
)

// AssembleResult is printed after a successful run.
type AssembleResult struct {
	Output   string `json:"output" yaml:"output"`
	Pages    int    `json:"pages" yaml:"pages"`
	Sections int    `json:"sections" yaml:"sections"`
	Stamped  int    `json:"stamped" yaml:"stamped"`
	Engine   string `json:"flatten_engine" yaml:"flatten_engine"`
}

var assembleCmd = &cobra.Command{
	Use:   "assemble [file.pdf...]",
	Short: "Merge PDFs into one numbered document",
	Long: `Assemble merges the given PDFs (or the sections of a project manifest)
into one document and stamps page labels onto enabled sections.

Layout defaults come from the config file; a project manifest overrides
them, and explicit flags override both.`,
	Example: `  binder assemble a.pdf b.pdf c.pdf --out merged.pdf
  binder assemble --project book.yaml
  binder assemble --project book.yaml --position top-right --blank-page=false`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger(os.Stderr)

		if (assembleProject == "") == (len(args) == 0) {
			return errors.New("give either PDF files or --project")
		}

		h, mgr, err := loadEnv(logger)
		if err != nil {
			return err
		}
		conf := mgr.Get()

		list, lc, out, err := assembleInputs(ctx, conf, args, logger)
		if err != nil {
			return err
		}
		if lc, err = assembleLayout.Apply(lc); err != nil {
			return err
		}
		if cmd.Flags().Changed("out") {
			out = assembleOut
		}

		fl, err := assembleFlattener(ctx, lc, conf, h, logger)
		if err != nil {
			return err
		}
		if c, ok := fl.(io.Closer); ok {
			defer c.Close()
		}

		sections, _ := list.Snapshot()
		asm := &assemble.Assembler{Flattener: fl, Logger: logger}
		result, err := runWithProgress(ctx, asm, sections, lc, !assembleQuiet && isatty.IsTerminal(os.Stdout.Fd()), logger)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(out, result.Data, 0o644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}

		engine := flatten.EngineOff
		if fl != nil {
			engine = fl.Engine()
		}
		return api.Output(AssembleResult{
			Output:   out,
			Pages:    result.PageCount,
			Sections: len(sections),
			Stamped:  len(result.Stamps),
			Engine:   engine,
		})
	},
}

// assembleInputs builds the section list, base layout and output path from
// either a project manifest or plain file arguments.
func assembleInputs(ctx context.Context, conf *config.Config, files []string, logger *slog.Logger) (*section.List, layout.Config, string, error) {
	if assembleProject != "" {
		p, err := project.Load(assembleProject)
		if err != nil {
			return nil, layout.Config{}, "", err
		}
		list, err := p.Sections(ctx, logger)
		if err != nil {
			return nil, layout.Config{}, "", err
		}
		return list, p.Manifest.Layout, p.OutputPath(), nil
	}

	sources := make([]section.Source, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return nil, layout.Config{}, "", fmt.Errorf("failed to open section: %w", err)
		}
		sources = append(sources, section.FileSource{Path: f})
	}
	list := section.NewList()
	list.Add(sources...)
	if _, err := list.ResolvePageCounts(ctx, section.CountPages, logger); err != nil {
		return nil, layout.Config{}, "", err
	}
	return list, conf.Layout, project.DefaultOutput, nil
}

// assembleFlattener returns nil when the layout does not flatten.
func assembleFlattener(ctx context.Context, lc layout.Config, conf *config.Config, h *home.Dir, logger *slog.Logger) (flatten.Flattener, error) {
	if !lc.Flatten {
		return nil, nil
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}
	return flatten.New(ctx, conf.FlattenerConfig(h.ScratchDir(), logger))
}

// runWithProgress runs one assembly, rendering progress with the terminal
// view when interactive and as log lines otherwise.
func runWithProgress(ctx context.Context, asm *assemble.Assembler, sections []section.Section, lc layout.Config, interactive bool, logger *slog.Logger) (*assemble.Output, error) {
	events := make(chan assemble.Progress)
	type result struct {
		out *assemble.Output
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := asm.Assemble(ctx, sections, lc, events)
		close(events)
		done <- result{out, err}
	}()

	if interactive {
		if err := tui.Run(ctx, "Assembling", events, os.Stdout); err != nil {
			logger.Warn("progress view failed", "error", err)
			for range events {
			}
		}
	} else {
		for ev := range events {
			if ev.Total > 0 {
				logger.Info("assembling", "section", ev.Current, "of", ev.Total)
			}
		}
	}

	r := <-done
	return r.out, r.err
}

func init() {
	assembleCmd.Flags().StringVarP(&assembleProject, "project", "p", "", "project manifest (YAML or JSON)")
	assembleCmd.Flags().StringVar(&assembleOut, "out", project.DefaultOutput, "output PDF path")
	assembleCmd.Flags().BoolVarP(&assembleQuiet, "quiet", "q", false, "disable the progress view")
	assembleLayout = layout.AddFlags(assembleCmd.Flags())

	rootCmd.AddCommand(assembleCmd)
}
