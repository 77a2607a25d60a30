package assemble

import (
	"bytes"
	"testing"

	"github.com/jackzampolin/binder/internal/layout"
)

func TestWinAnsiSafe(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"A-1", "A-1"},
		{"Anhang Ü-3", "Anhang Ü-3"},
		{"第1章-2", "?1?-2"},
		{"€5", "€5"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := winAnsiSafe(tt.input); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestEncodeLabel(t *testing.T) {
	got, err := encodeLabel("Ü€")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0xdc, 0x80}) {
		t.Errorf("got % x", got)
	}
}

func TestEscapeString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"A-1", "A-1"},
		{"(a)", `\(a\)`},
		{`back\slash`, `back\\slash`},
		{"tab\there", `tab\011here`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := escapeString([]byte(tt.input)); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestTextOps(t *testing.T) {
	p := layout.Placement{X: 10, Y: 20.5, Rotation: -90}
	got := textOps([]byte("A-1"), p, 9, 5, 0)
	want := "BT /BinderHelv 9 Tf 0 g 0 -1 1 0 15 20.5 Tm (A-1) Tj ET\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPageRotate(t *testing.T) {
	for deg, want := range map[int]int{0: 0, 90: 90, -90: 270, 270: 270, -270: 90} {
		if got := pageRotate(deg); got != want {
			t.Errorf("pageRotate(%d) = %d, want %d", deg, got, want)
		}
	}
}
