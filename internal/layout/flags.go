package layout

import (
	"github.com/spf13/pflag"
)

// Flags binds layout options to command-line flags.
type Flags struct {
	fs          *pflag.FlagSet
	blankPage   bool
	flatten     bool
	autoUpdate  bool
	orientation string
	format      string
	position    string
	margin      float64
	fontSize    float64
}

// AddFlags registers the layout flags on fs. Defaults shown in help are the
// built-in defaults; only flags set explicitly are applied.
func AddFlags(fs *pflag.FlagSet) *Flags {
	d := DefaultConfig()
	f := &Flags{fs: fs}
	fs.BoolVar(&f.blankPage, "blank-page", d.BlankPage, "Insert a blank separator page between sections")
	fs.BoolVar(&f.flatten, "flatten", d.Flatten, "Flatten sources through Ghostscript before stamping")
	fs.BoolVar(&f.autoUpdate, "auto-update", d.AutoUpdate, "Regenerate the preview on every change")
	fs.StringVar(&f.orientation, "orientation", string(d.Orientation), "Orientation policy: auto, portrait or landscape")
	fs.StringVar(&f.format, "format", d.Format, "Label template; {section} and {page} are substituted")
	fs.StringVar(&f.position, "position", d.Anchor().String(), "Stamp position, e.g. bottom-center, top-right or center")
	fs.Float64Var(&f.margin, "margin", d.Margin, "Distance from the page edge in points")
	fs.Float64Var(&f.fontSize, "font-size", d.FontSize, "Label font size in points")
	return f
}

// Changed reports whether any layout flag was set.
func (f *Flags) Changed() bool {
	for _, name := range []string{"blank-page", "flatten", "auto-update", "orientation", "format", "position", "margin", "font-size"} {
		if f.fs.Changed(name) {
			return true
		}
	}
	return false
}

// Apply returns c with every explicitly set flag applied.
func (f *Flags) Apply(c Config) (Config, error) {
	if f.fs.Changed("blank-page") {
		c.BlankPage = f.blankPage
	}
	if f.fs.Changed("flatten") {
		c.Flatten = f.flatten
	}
	if f.fs.Changed("auto-update") {
		c.AutoUpdate = f.autoUpdate
	}
	if f.fs.Changed("orientation") {
		o, err := ParseOrientation(f.orientation)
		if err != nil {
			return c, err
		}
		c.Orientation = o
	}
	if f.fs.Changed("format") {
		c.Format = f.format
	}
	if f.fs.Changed("position") {
		a, err := ParseAnchor(f.position)
		if err != nil {
			return c, err
		}
		c.Position = a.Position()
	}
	if f.fs.Changed("margin") {
		c.Margin = f.margin
	}
	if f.fs.Changed("font-size") {
		c.FontSize = f.fontSize
	}
	c = c.Normalized()
	return c, c.Validate()
}
