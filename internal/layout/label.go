package layout

import (
	"strconv"
	"strings"
)

// Placeholders recognized in a numbering template.
const (
	SectionPlaceholder = "{section}"
	PagePlaceholder    = "{page}"
)

// DefaultFormat is the numbering template used when none is configured.
const DefaultFormat = SectionPlaceholder + "-" + PagePlaceholder

// FormatLabel builds the stamp text for a page.
// The first occurrence of each placeholder is replaced literally, section
// first; page is the 1-based index within the section.
// e.g., FormatLabel("{section}-{page}", "A", 3) -> "A-3"
func FormatLabel(template, section string, page int) string {
	s := strings.Replace(template, SectionPlaceholder, section, 1)
	return strings.Replace(s, PagePlaceholder, strconv.Itoa(page), 1)
}
