package layout

import (
	"github.com/pdfcpu/pdfcpu/pkg/font"
)

// glyphUnits is the glyph space scale of core font metrics.
const glyphUnits = 1000

// Metrics measures rendered text.
type Metrics interface {
	// FontName is the PDF base font the measured text is drawn with.
	FontName() string
	// Measure returns the size of text drawn at fontSize.
	Measure(text string, fontSize float64) Size
}

// CoreFont measures text set in one of the 14 PDF core fonts.
type CoreFont struct {
	Name      string
	Ascender  float64 // glyph units
	Descender float64 // glyph units, negative below the baseline
}

// Helvetica is the stamp font. Ascender and descender come from its AFM.
var Helvetica = CoreFont{Name: "Helvetica", Ascender: 718, Descender: -207}

// FontName implements Metrics.
func (f CoreFont) FontName() string {
	return f.Name
}

// Measure implements Metrics. Widths are taken from pdfcpu's core font
// tables at glyph scale so fractional font sizes stay exact.
func (f CoreFont) Measure(text string, fontSize float64) Size {
	w := font.TextWidth(text, f.Name, glyphUnits)
	return Size{
		Width:  w * fontSize / glyphUnits,
		Height: (f.Ascender - f.Descender) * fontSize / glyphUnits,
	}
}
