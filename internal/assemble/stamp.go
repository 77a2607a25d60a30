package assemble

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/jackzampolin/binder/internal/layout"
	"github.com/jackzampolin/binder/internal/section"
)

// fontResource is the resource name the stamp font is registered under.
const fontResource = "BinderHelv"

// appendSection loads one section document, stamps its pages when the
// section is enabled, and queues it for merging.
func (a *Assembler) appendSection(r *run, s section.Section, data []byte, cfg layout.Config) error {
	loadErr := func(err error) error {
		return &LoadError{SectionID: s.ID, Name: s.Name, Err: err}
	}

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), a.conf())
	if err != nil {
		return loadErr(err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return loadErr(err)
	}

	logger := a.logger().With("section", s.ID)
	metrics := a.metrics()

	var font *types.IndirectRef
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		if err := r.ctx.Err(); err != nil {
			return err
		}

		pageDict, _, inh, err := ctx.PageDict(pageNr, true)
		if err != nil {
			return loadErr(fmt.Errorf("page %d: %w", pageNr, err))
		}
		if pageDict == nil || inh == nil || inh.MediaBox == nil {
			return loadErr(fmt.Errorf("page %d has no media box", pageNr))
		}
		box := inh.MediaBox
		size := layout.Size{Width: box.Width(), Height: box.Height()}

		if s.Enabled {
			if font == nil {
				font, err = ctx.IndRefForNewObject(helveticaDict())
				if err != nil {
					return fmt.Errorf("failed to add stamp font: %w", err)
				}
			}

			label := winAnsiSafe(layout.FormatLabel(cfg.Format, s.Number, pageNr))
			text := metrics.Measure(label, cfg.FontSize)
			p := layout.Resolve(size, cfg.Orientation, cfg.Anchor(), cfg.Margin, text)

			if err := stampPage(ctx, pageDict, pageNr, inh, *font, label, p, cfg.FontSize, box); err != nil {
				return fmt.Errorf("failed to stamp page %d of %s: %w", pageNr, s.Name, err)
			}
			r.stamps = append(r.stamps, Stamp{
				SectionID:  s.ID,
				Page:       pageNr,
				OutputPage: r.pages + 1,
				Label:      label,
				Placement:  p,
			})
		}

		r.pages++
		r.last, r.hasLast = size, true
		r.advance()
	}

	if ctx.PageCount == 0 {
		logger.Warn("section has no pages")
		return nil
	}

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return fmt.Errorf("failed to write section %s: %w", s.Name, err)
	}
	r.parts = append(r.parts, buf.Bytes())
	logger.Debug("section appended", "pages", ctx.PageCount, "enabled", s.Enabled)
	return nil
}

func helveticaDict() types.Dict {
	return types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name("Helvetica"),
		"Encoding": types.Name("WinAnsiEncoding"),
	}
}

// stampPage wraps the existing content in a saved graphics state and draws
// label after it.
func stampPage(ctx *model.Context, pageDict types.Dict, pageNr int, inh *model.InheritedPageAttrs, font types.IndirectRef, label string, p layout.Placement, fontSize float64, box *types.Rectangle) error {
	var content []byte
	if _, ok := pageDict.Find("Contents"); ok {
		c, err := ctx.PageContent(pageDict, pageNr)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		content = c
	}

	encoded, err := encodeLabel(label)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString("q\n")
	buf.Write(content)
	buf.WriteString("\nQ\n")
	buf.WriteString(textOps(encoded, p, fontSize, box.LL.X, box.LL.Y))

	streamDict, err := ctx.NewStreamDictForBuf(buf.Bytes())
	if err != nil {
		return fmt.Errorf("failed to create content stream: %w", err)
	}
	if err := streamDict.Encode(); err != nil {
		return fmt.Errorf("failed to encode content stream: %w", err)
	}
	indRef, err := ctx.IndRefForNewObject(*streamDict)
	if err != nil {
		return fmt.Errorf("failed to add content stream: %w", err)
	}
	pageDict["Contents"] = *indRef

	res, err := pageResources(ctx, pageDict, inh)
	if err != nil {
		return err
	}
	fonts := types.Dict{}
	if o, ok := res.Find("Font"); ok {
		d, err := ctx.DereferenceDict(o)
		if err != nil {
			return fmt.Errorf("failed to read font resources: %w", err)
		}
		for k, v := range d {
			fonts[k] = v
		}
	}
	fonts[fontResource] = font
	res["Font"] = fonts
	pageDict["Resources"] = res

	if p.Rotation != 0 {
		pageDict["Rotate"] = types.Integer(pageRotate(p.Rotation))
	}
	return nil
}

// pageResources returns a copy of the page's resource dict, falling back to
// the inherited one.
func pageResources(ctx *model.Context, pageDict types.Dict, inh *model.InheritedPageAttrs) (types.Dict, error) {
	src := inh.Resources
	if o, ok := pageDict.Find("Resources"); ok {
		d, err := ctx.DereferenceDict(o)
		if err != nil {
			return nil, fmt.Errorf("failed to read resources: %w", err)
		}
		if d != nil {
			src = d
		}
	}
	res := types.Dict{}
	for k, v := range src {
		res[k] = v
	}
	return res, nil
}

// pageRotate maps a stamp rotation to a /Rotate value, which must be a
// non-negative multiple of 90.
func pageRotate(deg int) int {
	return ((deg % 360) + 360) % 360
}

// rotationMatrix returns the text matrix components for deg, which is 0, 90
// or -90.
func rotationMatrix(deg int) (a, b, c, d int) {
	switch deg {
	case 90:
		return 0, 1, -1, 0
	case -90:
		return 0, -1, 1, 0
	default:
		return 1, 0, 0, 1
	}
}

// textOps draws encoded at the placement, offset by the media box origin.
func textOps(encoded []byte, p layout.Placement, fontSize, originX, originY float64) string {
	a, b, c, d := rotationMatrix(p.Rotation)
	return fmt.Sprintf("BT /%s %s Tf 0 g %d %d %d %d %s %s Tm (%s) Tj ET\n",
		fontResource, num(fontSize), a, b, c, d, num(originX+p.X), num(originY+p.Y), escapeString(encoded))
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
