package layout

import (
	"errors"
	"fmt"
)

// ErrInvalidLayout is returned for layout settings outside their domain.
var ErrInvalidLayout = errors.New("invalid layout")

// Config is the layout configuration of an assembly run.
type Config struct {
	// Merge is always true; sections are never written as separate files.
	Merge       bool        `mapstructure:"merge" yaml:"merge" json:"merge"`
	BlankPage   bool        `mapstructure:"blank_page" yaml:"blank_page" json:"blank_page"`
	Flatten     bool        `mapstructure:"flatten" yaml:"flatten" json:"flatten"`
	Orientation Orientation `mapstructure:"orientation" yaml:"orientation" json:"orientation"`
	Format      string      `mapstructure:"format" yaml:"format" json:"format"`
	Position    Position    `mapstructure:"position" yaml:"position" json:"position"`
	Margin      float64     `mapstructure:"margin" yaml:"margin" json:"margin"`
	FontSize    float64     `mapstructure:"font_size" yaml:"font_size" json:"font_size"`
	AutoUpdate  bool        `mapstructure:"auto_update" yaml:"auto_update" json:"auto_update"`
}

// DefaultConfig returns the layout used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Merge:       true,
		BlankPage:   true,
		Flatten:     true,
		Orientation: OrientationAuto,
		Format:      DefaultFormat,
		Position:    Position{Horizontal: HCenter, Vertical: Bottom},
		Margin:      10,
		FontSize:    9,
		AutoUpdate:  true,
	}
}

// Validate checks the configuration. It does not modify c.
func (c Config) Validate() error {
	if c.Margin < 0 {
		return fmt.Errorf("%w: margin must be non-negative, got %g", ErrInvalidLayout, c.Margin)
	}
	if c.FontSize <= 0 {
		return fmt.Errorf("%w: font size must be positive, got %g", ErrInvalidLayout, c.FontSize)
	}
	if _, err := ParseOrientation(string(c.Orientation)); err != nil {
		return err
	}
	if _, err := c.Position.Anchor(); err != nil {
		return err
	}
	return nil
}

// Normalized returns a copy with empty fields filled and merge forced on.
func (c Config) Normalized() Config {
	c.Merge = true
	if o, err := ParseOrientation(string(c.Orientation)); err == nil {
		c.Orientation = o
	}
	if c.Position.Horizontal == "" {
		c.Position.Horizontal = HCenter
	}
	if c.Position.Vertical == "" {
		c.Position.Vertical = Bottom
	}
	return c
}

// Anchor returns the configured anchor, BottomCenter when invalid.
func (c Config) Anchor() Anchor {
	a, err := c.Position.Anchor()
	if err != nil {
		return BottomCenter
	}
	return a
}
