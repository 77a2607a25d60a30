package assemble

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// winAnsiSafe replaces runes Windows-1252 cannot encode with '?', so the
// measured string is the one that gets drawn.
func winAnsiSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if _, ok := charmap.Windows1252.EncodeRune(r); ok {
			return r
		}
		return '?'
	}, s)
}

// encodeLabel encodes s as Windows-1252 bytes.
func encodeLabel(s string) ([]byte, error) {
	out, err := charmap.Windows1252.NewEncoder().Bytes([]byte(winAnsiSafe(s)))
	if err != nil {
		return nil, fmt.Errorf("failed to encode label %q: %w", s, err)
	}
	return out, nil
}

// escapeString escapes b for use inside a PDF literal string.
func escapeString(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		switch c {
		case '(', ')', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(&sb, "\\%03o", c)
				continue
			}
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
