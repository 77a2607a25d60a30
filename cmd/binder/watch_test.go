package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/jung-kurt/gofpdf"

	"github.com/jackzampolin/binder/internal/assemble"
	"github.com/jackzampolin/binder/internal/layout"
	"github.com/jackzampolin/binder/internal/project"
	"github.com/jackzampolin/binder/internal/section"
)

func writePDF(t *testing.T, path string, pages int) {
	t.Helper()
	pdf := gofpdf.NewCustom(&gofpdf.InitType{OrientationStr: "P", UnitStr: "pt", Size: gofpdf.SizeType{Wd: 595.28, Ht: 841.89}})
	pdf.SetFont("Helvetica", "", 12)
	for i := 1; i <= pages; i++ {
		pdf.AddPage()
		pdf.Text(72, 72, fmt.Sprintf("page %d", i))
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeProject(t *testing.T, dir string, blank bool) string {
	t.Helper()
	manifest := fmt.Sprintf(`layout:
  blank_page: %t
  flatten: false
sections:
  - file: a.pdf
    number: "A"
  - file: b.pdf
output: out/merged.pdf
`, blank)
	path := filepath.Join(dir, "book.yaml")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProjectWatcher_Rebuild(t *testing.T) {
	dir := t.TempDir()
	writePDF(t, filepath.Join(dir, "a.pdf"), 2)
	writePDF(t, filepath.Join(dir, "b.pdf"), 1)
	manifest := writeProject(t, dir, true)
	if err := os.MkdirAll(filepath.Join(dir, "out"), 0o755); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := project.Load(manifest)
	if err != nil {
		t.Fatal(err)
	}
	w, err := newProjectWatcher(ctx, p, nil, discard())
	if err != nil {
		t.Fatal(err)
	}
	defer w.watcher.Close()

	if err := w.rebuild(ctx); err != nil {
		t.Fatalf("rebuild() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "out", "merged.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if n, err := section.CountPages(data); err != nil || n != 4 {
		t.Errorf("pages = %d (err %v), want 4", n, err)
	}
	first := w.written

	// Rebuilding picks up a manifest edit.
	writeProject(t, dir, false)
	if err := w.rebuild(ctx); err != nil {
		t.Fatalf("second rebuild() error = %v", err)
	}
	if w.written <= first {
		t.Errorf("expected a newer generation to be written, got %d after %d", w.written, first)
	}
	data, _ = os.ReadFile(filepath.Join(dir, "out", "merged.pdf"))
	if n, _ := section.CountPages(data); n != 3 {
		t.Errorf("pages after edit = %d, want 3", n)
	}
	if w.regen.Layout().BlankPage || !w.regen.Layout().AutoUpdate {
		t.Errorf("unexpected layout: %+v", w.regen.Layout())
	}

	// Tracked files are the manifest and both sources.
	for _, name := range []string{"book.yaml", "a.pdf", "b.pdf"} {
		ev := fsnotify.Event{Name: filepath.Join(dir, name), Op: fsnotify.Write}
		if !w.relevant(ev) {
			t.Errorf("expected %s to be relevant", name)
		}
	}
	if w.relevant(fsnotify.Event{Name: filepath.Join(dir, "out", "merged.pdf"), Op: fsnotify.Write}) {
		t.Error("output file must not trigger rebuilds")
	}
	if w.relevant(fsnotify.Event{Name: filepath.Join(dir, "a.pdf"), Op: fsnotify.Chmod}) {
		t.Error("chmod must not trigger rebuilds")
	}
}

func TestProjectWatcher_RebuildMissingSource(t *testing.T) {
	dir := t.TempDir()
	writePDF(t, filepath.Join(dir, "a.pdf"), 1)
	manifest := writeProject(t, dir, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := project.Load(manifest)
	if err != nil {
		t.Fatal(err)
	}
	w, err := newProjectWatcher(ctx, p, nil, discard())
	if err != nil {
		t.Fatal(err)
	}
	defer w.watcher.Close()

	if err := w.rebuild(ctx); err == nil {
		t.Error("expected error for missing b.pdf")
	}
}

func TestRunWithProgress_Plain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.pdf")
	writePDF(t, path, 3)

	list := section.NewList()
	list.Add(section.FileSource{Path: path})
	if _, err := list.ResolvePageCounts(context.Background(), section.CountPages, discard()); err != nil {
		t.Fatal(err)
	}
	sections, _ := list.Snapshot()

	cfg := layout.DefaultConfig()
	cfg.Flatten = false
	out, err := runWithProgress(context.Background(), &assemble.Assembler{Logger: discard()}, sections, cfg, false, discard())
	if err != nil {
		t.Fatalf("runWithProgress() error = %v", err)
	}
	if out.PageCount != 3 || len(out.Stamps) != 3 {
		t.Errorf("unexpected output: pages %d stamps %d", out.PageCount, len(out.Stamps))
	}
}
