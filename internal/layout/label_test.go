package layout

import (
	"errors"
	"math"
	"testing"
)

func TestFormatLabel(t *testing.T) {
	tests := []struct {
		name     string
		template string
		section  string
		page     int
		expected string
	}{
		{"default template", "{section}-{page}", "A", 3, "A-3"},
		{"page only", "p. {page}", "A", 12, "p. 12"},
		{"section only", "Exhibit {section}", "7", 1, "Exhibit 7"},
		{"no placeholders", "CONFIDENTIAL", "A", 5, "CONFIDENTIAL"},
		{"first occurrence only", "{page}/{page}", "A", 2, "2/{page}"},
		{"empty section", "{section}-{page}", "", 1, "-1"},
		{"section replaced before page", "{section}", "{page}", 4, "4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatLabel(tt.template, tt.section, tt.page); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFormatLabel_ConstantForEveryPage(t *testing.T) {
	for page := 1; page <= 20; page++ {
		if got := FormatLabel("DRAFT", "B", page); got != "DRAFT" {
			t.Fatalf("page %d: got %q", page, got)
		}
	}
}

func TestHelvetica_Measure(t *testing.T) {
	// A=667 hyphen=333 3=556 glyph units
	got := Helvetica.Measure("A-3", 9)
	if math.Abs(got.Width-1556*9/1000.0) > 1e-6 {
		t.Errorf("width = %g, want %g", got.Width, 1556*9/1000.0)
	}
	if math.Abs(got.Height-925*9/1000.0) > 1e-6 {
		t.Errorf("height = %g, want %g", got.Height, 925*9/1000.0)
	}

	half := Helvetica.Measure("A-3", 4.5)
	if math.Abs(half.Width*2-got.Width) > 1e-6 {
		t.Errorf("width does not scale linearly: %g vs %g", half.Width, got.Width)
	}
	if Helvetica.FontName() != "Helvetica" {
		t.Errorf("unexpected font name %q", Helvetica.FontName())
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		if err := DefaultConfig().Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	bad := map[string]func(c *Config){
		"negative margin":    func(c *Config) { c.Margin = -1 },
		"zero font size":     func(c *Config) { c.FontSize = 0 },
		"unknown orient":     func(c *Config) { c.Orientation = "diagonal" },
		"unknown horizontal": func(c *Config) { c.Position.Horizontal = "middle" },
		"unknown vertical":   func(c *Config) { c.Position.Vertical = "above" },
	}
	for name, mutate := range bad {
		t.Run(name, func(t *testing.T) {
			c := DefaultConfig()
			mutate(&c)
			if err := c.Validate(); !errors.Is(err, ErrInvalidLayout) {
				t.Errorf("expected ErrInvalidLayout, got %v", err)
			}
		})
	}

	t.Run("zero margin allowed", func(t *testing.T) {
		c := DefaultConfig()
		c.Margin = 0
		if err := c.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestConfig_Normalized(t *testing.T) {
	c := Config{Orientation: "Landscape", FontSize: 9}
	n := c.Normalized()
	if !n.Merge {
		t.Error("expected merge forced on")
	}
	if n.Orientation != OrientationLandscape {
		t.Errorf("orientation = %q", n.Orientation)
	}
	if n.Anchor() != BottomCenter {
		t.Errorf("anchor = %s, want bottom-center", n.Anchor())
	}
}
