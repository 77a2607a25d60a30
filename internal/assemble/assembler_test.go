package assemble

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/jackzampolin/binder/internal/layout"
	"github.com/jackzampolin/binder/internal/section"
)

var (
	a4       = layout.Size{Width: 595, Height: 842}
	a4Wide   = layout.Size{Width: 842, Height: 595}
	testConf = layout.Config{
		Merge:       true,
		BlankPage:   true,
		Orientation: layout.OrientationAuto,
		Format:      layout.DefaultFormat,
		Position:    layout.Position{Horizontal: layout.HCenter, Vertical: layout.Bottom},
		Margin:      10,
		FontSize:    9,
	}
)

// fixture renders a document with one page per size.
func fixture(t *testing.T, sizes ...layout.Size) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "pt", "", "")
	pdf.SetFont("Helvetica", "", 12)
	for i, s := range sizes {
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: s.Width, Ht: s.Height})
		pdf.Text(50, 50, fmt.Sprintf("source page %d", i+1))
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func sec(t *testing.T, number string, enabled bool, sizes ...layout.Size) section.Section {
	t.Helper()
	return section.Section{
		ID:        "id-" + number,
		Number:    number,
		Name:      number + ".pdf",
		Source:    section.NewMemorySource(number+".pdf", fixture(t, sizes...)),
		PageCount: len(sizes),
		Enabled:   enabled,
	}
}

func readOutput(t *testing.T, data []byte) *model.Context {
	t.Helper()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		t.Fatal(err)
	}
	return ctx
}

func pageInfo(t *testing.T, ctx *model.Context, pageNr int) (layout.Size, int, string) {
	t.Helper()
	pageDict, _, inh, err := ctx.PageDict(pageNr, false)
	if err != nil {
		t.Fatal(err)
	}
	content, err := ctx.PageContent(pageDict, pageNr)
	if err != nil {
		content = nil
	}
	return layout.Size{Width: inh.MediaBox.Width(), Height: inh.MediaBox.Height()}, inh.Rotate, string(content)
}

func TestAssemble_PageCount(t *testing.T) {
	tests := []struct {
		name      string
		blankPage bool
		expected  int
	}{
		{"with separators", true, 6 + 2},
		{"without separators", false, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections := []section.Section{
				sec(t, "A", true, a4, a4),
				sec(t, "B", false, a4, a4, a4),
				sec(t, "C", true, a4),
			}
			cfg := testConf
			cfg.BlankPage = tt.blankPage

			var a Assembler
			out, err := a.Assemble(context.Background(), sections, cfg, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.PageCount != tt.expected {
				t.Errorf("PageCount = %d, want %d", out.PageCount, tt.expected)
			}
			n, err := api.PageCount(bytes.NewReader(out.Data), nil)
			if err != nil {
				t.Fatal(err)
			}
			if n != tt.expected {
				t.Errorf("document has %d pages, want %d", n, tt.expected)
			}
		})
	}
}

func TestAssemble_Stamps(t *testing.T) {
	sections := []section.Section{
		sec(t, "A", true, a4, a4),
		sec(t, "B", false, a4),
		sec(t, "7", true, a4),
	}

	var a Assembler
	out, err := a.Assemble(context.Background(), sections, testConf, nil)
	if err != nil {
		t.Fatal(err)
	}

	var labels []string
	var pages []int
	for _, s := range out.Stamps {
		labels = append(labels, s.Label)
		pages = append(pages, s.OutputPage)
	}
	// A(2) + sep + B(1) + sep + 7(1)
	if !reflect.DeepEqual(labels, []string{"A-1", "A-2", "7-1"}) {
		t.Errorf("labels = %v", labels)
	}
	if !reflect.DeepEqual(pages, []int{1, 2, 6}) {
		t.Errorf("output pages = %v", pages)
	}

	doc := readOutput(t, out.Data)
	_, _, content := pageInfo(t, doc, 1)
	if !strings.Contains(content, "(A-1) Tj") {
		t.Errorf("page 1 content missing label: %q", content)
	}
	if !strings.Contains(content, "source page 1") {
		t.Error("page 1 lost its original content")
	}
	_, _, content = pageInfo(t, doc, 4)
	if strings.Contains(content, fontResource) {
		t.Error("disabled section was stamped")
	}
}

func TestAssemble_PlacementMatchesResolver(t *testing.T) {
	sections := []section.Section{sec(t, "A", true, a4)}

	var a Assembler
	out, err := a.Assemble(context.Background(), sections, testConf, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Stamps) != 1 {
		t.Fatalf("expected 1 stamp, got %d", len(out.Stamps))
	}

	text := layout.Helvetica.Measure("A-1", testConf.FontSize)
	want := layout.Resolve(a4, layout.OrientationAuto, layout.BottomCenter, 10, text)
	if out.Stamps[0].Placement != want {
		t.Errorf("placement = %+v, want %+v", out.Stamps[0].Placement, want)
	}
}

func TestAssemble_OrientationMismatchRotatesPage(t *testing.T) {
	tests := []struct {
		name     string
		o        layout.Orientation
		page     layout.Size
		rotation int
		rotate   int
	}{
		{"wide page as portrait", layout.OrientationPortrait, a4Wide, -90, 270},
		{"tall page as landscape", layout.OrientationLandscape, a4, 90, 90},
		{"tall page as portrait", layout.OrientationPortrait, a4, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConf
			cfg.Orientation = tt.o

			var a Assembler
			out, err := a.Assemble(context.Background(), []section.Section{sec(t, "A", true, tt.page)}, cfg, nil)
			if err != nil {
				t.Fatal(err)
			}
			if got := out.Stamps[0].Placement.Rotation; got != tt.rotation {
				t.Errorf("stamp rotation = %d, want %d", got, tt.rotation)
			}
			_, rotate, _ := pageInfo(t, readOutput(t, out.Data), 1)
			if rotate != tt.rotate {
				t.Errorf("page /Rotate = %d, want %d", rotate, tt.rotate)
			}
		})
	}
}

func TestAssemble_SeparatorSize(t *testing.T) {
	tests := []struct {
		name string
		o    layout.Orientation
		last layout.Size
		want layout.Size
	}{
		{"auto copies last page", layout.OrientationAuto, a4Wide, a4Wide},
		{"landscape swaps tall", layout.OrientationLandscape, a4, a4Wide},
		{"portrait swaps wide", layout.OrientationPortrait, a4Wide, a4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConf
			cfg.Orientation = tt.o
			sections := []section.Section{
				sec(t, "A", false, a4, tt.last),
				sec(t, "B", false, a4),
			}

			var a Assembler
			out, err := a.Assemble(context.Background(), sections, cfg, nil)
			if err != nil {
				t.Fatal(err)
			}
			size, _, _ := pageInfo(t, readOutput(t, out.Data), 3)
			if !approxSize(size, tt.want) {
				t.Errorf("separator = %+v, want %+v", size, tt.want)
			}
		})
	}
}

func approxSize(a, b layout.Size) bool {
	const eps = 0.01
	dw, dh := a.Width-b.Width, a.Height-b.Height
	return dw < eps && dw > -eps && dh < eps && dh > -eps
}

func TestAssemble_NoSeparatorAfterLast(t *testing.T) {
	sections := []section.Section{
		sec(t, "A", true, a4),
		{ID: "empty", Number: "X", Enabled: true},
	}

	var a Assembler
	out, err := a.Assemble(context.Background(), sections, testConf, nil)
	if err != nil {
		t.Fatal(err)
	}
	// The source-less last section contributes nothing, but A is not last,
	// so it still gets a separator.
	if out.PageCount != 2 {
		t.Errorf("PageCount = %d, want 2", out.PageCount)
	}
}

func TestAssemble_Reorder(t *testing.T) {
	a1 := sec(t, "A", true, a4)
	b1 := sec(t, "B", true, a4Wide)
	cfg := testConf
	cfg.BlankPage = false

	var a Assembler
	out, err := a.Assemble(context.Background(), []section.Section{b1, a1}, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Stamps[0].Label != "B-1" || out.Stamps[1].Label != "A-1" {
		t.Errorf("labels out of order: %v, %v", out.Stamps[0].Label, out.Stamps[1].Label)
	}
	size, _, _ := pageInfo(t, readOutput(t, out.Data), 1)
	if !approxSize(size, a4Wide) {
		t.Errorf("first page = %+v, want wide", size)
	}
}

func TestAssemble_ReorderWithSeparators(t *testing.T) {
	a1 := sec(t, "A", true, a4, a4)
	b1 := sec(t, "B", true, a4Wide)

	tests := []struct {
		name      string
		order     []section.Section
		sizes     []layout.Size
		separator int
		stamped   map[int]string
	}{
		{
			name:      "A then B",
			order:     []section.Section{a1, b1},
			sizes:     []layout.Size{a4, a4, a4, a4Wide},
			separator: 3,
			stamped:   map[int]string{1: "A-1", 2: "A-2", 4: "B-1"},
		},
		{
			name:      "B then A",
			order:     []section.Section{b1, a1},
			sizes:     []layout.Size{a4Wide, a4Wide, a4, a4},
			separator: 2,
			stamped:   map[int]string{1: "B-1", 3: "A-1", 4: "A-2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Assembler
			out, err := a.Assemble(context.Background(), tt.order, testConf, nil)
			if err != nil {
				t.Fatal(err)
			}
			if out.PageCount != len(tt.sizes) {
				t.Fatalf("PageCount = %d, want %d", out.PageCount, len(tt.sizes))
			}

			got := make(map[int]string, len(out.Stamps))
			for _, st := range out.Stamps {
				got[st.OutputPage] = st.Label
			}
			if !reflect.DeepEqual(got, tt.stamped) {
				t.Errorf("stamps = %v, want %v", got, tt.stamped)
			}
			if _, ok := got[tt.separator]; ok {
				t.Errorf("separator page %d was stamped", tt.separator)
			}

			doc := readOutput(t, out.Data)
			for i, want := range tt.sizes {
				size, _, content := pageInfo(t, doc, i+1)
				if !approxSize(size, want) {
					t.Errorf("page %d = %+v, want %+v", i+1, size, want)
				}
				if i+1 == tt.separator && strings.Contains(content, "source page") {
					t.Errorf("separator page %d has source content", i+1)
				}
			}
		})
	}
}

func TestAssemble_Idempotent(t *testing.T) {
	sections := []section.Section{
		sec(t, "A", true, a4, a4Wide),
		sec(t, "B", true, a4),
	}

	var a Assembler
	first, err := a.Assemble(context.Background(), sections, testConf, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.Assemble(context.Background(), sections, testConf, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.PageCount != second.PageCount {
		t.Errorf("page counts differ: %d vs %d", first.PageCount, second.PageCount)
	}
	if !reflect.DeepEqual(first.Stamps, second.Stamps) {
		t.Error("stamps differ between identical runs")
	}
}

func TestAssemble_LoadErrorAborts(t *testing.T) {
	sections := []section.Section{
		sec(t, "A", true, a4),
		{ID: "bad", Name: "bad.pdf", Number: "B", Enabled: true, PageCount: 1,
			Source: section.NewMemorySource("bad.pdf", []byte("not a pdf"))},
	}

	progress := make(chan Progress, 64)
	var a Assembler
	out, err := a.Assemble(context.Background(), sections, testConf, progress)
	if out != nil {
		t.Error("expected no output on load failure")
	}
	if !errors.Is(err, ErrSourceLoad) {
		t.Fatalf("expected ErrSourceLoad, got %v", err)
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || loadErr.SectionID != "bad" {
		t.Errorf("expected LoadError for section bad, got %v", err)
	}

	close(progress)
	var last Progress
	for p := range progress {
		last = p
	}
	if last != (Progress{}) {
		t.Errorf("final progress = %+v, want reset", last)
	}
}

// stubFlattener returns err on every call, or only on the first failFirst
// calls when failFirst is set. Successful calls return out, or the source
// unchanged when out is nil.
type stubFlattener struct {
	out       []byte
	err       error
	failFirst int
	calls     int
}

func (s *stubFlattener) Engine() string                 { return "stub" }
func (s *stubFlattener) Available(context.Context) bool { return true }
func (s *stubFlattener) Flatten(_ context.Context, src []byte) ([]byte, error) {
	s.calls++
	if s.err != nil && (s.failFirst == 0 || s.calls <= s.failFirst) {
		return nil, s.err
	}
	if s.out != nil {
		return s.out, nil
	}
	return src, nil
}

func TestAssemble_Flatten(t *testing.T) {
	t.Run("flattened bytes are used", func(t *testing.T) {
		f := &stubFlattener{out: fixture(t, a4, a4, a4)}
		cfg := testConf
		cfg.Flatten = true

		a := Assembler{Flattener: f}
		out, err := a.Assemble(context.Background(), []section.Section{sec(t, "A", true, a4)}, cfg, nil)
		if err != nil {
			t.Fatal(err)
		}
		if f.calls != 1 {
			t.Errorf("flatten calls = %d, want 1", f.calls)
		}
		if out.PageCount != 3 {
			t.Errorf("PageCount = %d, want 3 from flattened document", out.PageCount)
		}
	})

	t.Run("failure falls back to original", func(t *testing.T) {
		f := &stubFlattener{err: errors.New("gs crashed")}
		cfg := testConf
		cfg.Flatten = true

		a := Assembler{Flattener: f}
		out, err := a.Assemble(context.Background(), []section.Section{sec(t, "A", true, a4, a4)}, cfg, nil)
		if err != nil {
			t.Fatalf("flatten failure must not abort: %v", err)
		}
		if out.PageCount != 2 {
			t.Errorf("PageCount = %d, want 2", out.PageCount)
		}
	})

	t.Run("failure on one section does not affect the others", func(t *testing.T) {
		f := &stubFlattener{err: errors.New("gs crashed"), failFirst: 1}
		cfg := testConf
		cfg.Flatten = true
		sections := []section.Section{
			sec(t, "A", true, a4, a4),
			sec(t, "B", true, a4Wide),
			sec(t, "C", true, a4),
		}

		a := Assembler{Flattener: f}
		out, err := a.Assemble(context.Background(), sections, cfg, nil)
		if err != nil {
			t.Fatalf("flatten failure must not abort: %v", err)
		}
		if f.calls != 3 {
			t.Errorf("flatten calls = %d, want 3", f.calls)
		}
		// 4 source pages and 2 separators
		if out.PageCount != 6 {
			t.Fatalf("PageCount = %d, want 6", out.PageCount)
		}

		wantStamps := []struct {
			label      string
			outputPage int
		}{{"A-1", 1}, {"A-2", 2}, {"B-1", 4}, {"C-1", 6}}
		if len(out.Stamps) != len(wantStamps) {
			t.Fatalf("got %d stamps, want %d", len(out.Stamps), len(wantStamps))
		}
		for i, want := range wantStamps {
			if got := out.Stamps[i]; got.Label != want.label || got.OutputPage != want.outputPage {
				t.Errorf("stamp %d = %s on page %d, want %s on page %d", i, got.Label, got.OutputPage, want.label, want.outputPage)
			}
		}

		doc := readOutput(t, out.Data)
		wantSizes := []layout.Size{a4, a4, a4, a4Wide, a4Wide, a4}
		for i, want := range wantSizes {
			if size, _, _ := pageInfo(t, doc, i+1); !approxSize(size, want) {
				t.Errorf("page %d = %+v, want %+v", i+1, size, want)
			}
		}
	})

	t.Run("not called when disabled in layout", func(t *testing.T) {
		f := &stubFlattener{err: errors.New("unused")}
		a := Assembler{Flattener: f}
		if _, err := a.Assemble(context.Background(), []section.Section{sec(t, "A", true, a4)}, testConf, nil); err != nil {
			t.Fatal(err)
		}
		if f.calls != 0 {
			t.Errorf("flatten calls = %d, want 0", f.calls)
		}
	})
}

func TestAssemble_Progress(t *testing.T) {
	sections := []section.Section{
		sec(t, "A", true, a4, a4),
		sec(t, "B", true, a4),
	}
	progress := make(chan Progress, 64)

	var a Assembler
	if _, err := a.Assemble(context.Background(), sections, testConf, progress); err != nil {
		t.Fatal(err)
	}
	close(progress)

	var events []Progress
	for p := range progress {
		events = append(events, p)
	}
	want := []Progress{{0, 3}, {1, 3}, {2, 3}, {3, 3}, {0, 0}}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestAssemble_Empty(t *testing.T) {
	var a Assembler
	_, err := a.Assemble(context.Background(), []section.Section{{ID: "x", Enabled: true}}, testConf, nil)
	if !errors.Is(err, ErrNothingToAssemble) {
		t.Errorf("expected ErrNothingToAssemble, got %v", err)
	}
}

func TestAssemble_InvalidLayout(t *testing.T) {
	cfg := testConf
	cfg.FontSize = 0
	var a Assembler
	if _, err := a.Assemble(context.Background(), nil, cfg, nil); !errors.Is(err, layout.ErrInvalidLayout) {
		t.Errorf("expected ErrInvalidLayout, got %v", err)
	}
}

func TestAssemble_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var a Assembler
	if _, err := a.Assemble(ctx, []section.Section{sec(t, "A", true, a4)}, testConf, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
