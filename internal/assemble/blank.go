package assemble

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/jackzampolin/binder/internal/layout"
)

// DefaultPageSize is A4 portrait, used for a separator when nothing has been
// appended before it.
var DefaultPageSize = layout.Size{Width: 595.28, Height: 841.89}

// fixedDate keeps each generated separator byte-stable. The merged document
// is not: the writer renumbers objects on every run.
var fixedDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// blankPage renders a one-page document of the given size.
func blankPage(size layout.Size) ([]byte, error) {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: size.Width, Ht: size.Height},
	})
	pdf.SetCreationDate(fixedDate)
	pdf.SetCatalogSort(true)
	pdf.AddPage()

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render blank page: %w", err)
	}
	return buf.Bytes(), nil
}
