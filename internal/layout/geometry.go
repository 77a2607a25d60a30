// Package layout computes where page-number stamps go on a page.
package layout

import (
	"fmt"
	"strings"
)

// Orientation is the document orientation policy.
type Orientation string

const (
	OrientationAuto      Orientation = "auto"
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// ParseOrientation parses an orientation policy. Empty means auto.
func ParseOrientation(s string) (Orientation, error) {
	switch o := Orientation(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return OrientationAuto, nil
	case OrientationAuto, OrientationPortrait, OrientationLandscape:
		return o, nil
	default:
		return "", fmt.Errorf("%w: unknown orientation %q", ErrInvalidLayout, s)
	}
}

// Horizontal is the horizontal component of an anchor.
type Horizontal string

const (
	Left    Horizontal = "left"
	HCenter Horizontal = "center"
	Right   Horizontal = "right"
)

// Vertical is the vertical component of an anchor.
type Vertical string

const (
	Top     Vertical = "top"
	VCenter Vertical = "center"
	Bottom  Vertical = "bottom"
)

// Position is the user-facing form of an anchor.
type Position struct {
	Horizontal Horizontal `mapstructure:"horizontal" yaml:"horizontal" json:"horizontal"`
	Vertical   Vertical   `mapstructure:"vertical" yaml:"vertical" json:"vertical"`
}

// Anchor is one of the nine stamp placements.
type Anchor int

const (
	TopLeft Anchor = iota
	TopCenter
	TopRight
	CenterLeft
	Center
	CenterRight
	BottomLeft
	BottomCenter
	BottomRight

	anchorCount
)

var (
	horizontals = [...]Horizontal{Left, HCenter, Right}
	verticals   = [...]Vertical{Top, VCenter, Bottom}
)

// Anchors returns all nine anchors in row-major order.
func Anchors() []Anchor {
	out := make([]Anchor, 0, anchorCount)
	for a := TopLeft; a < anchorCount; a++ {
		out = append(out, a)
	}
	return out
}

// NewAnchor builds an anchor from its components.
func NewAnchor(h Horizontal, v Vertical) (Anchor, error) {
	hi, vi := -1, -1
	for i, c := range horizontals {
		if c == h {
			hi = i
		}
	}
	for i, c := range verticals {
		if c == v {
			vi = i
		}
	}
	if hi < 0 || vi < 0 {
		return 0, fmt.Errorf("%w: unknown position %s/%s", ErrInvalidLayout, v, h)
	}
	return Anchor(vi*len(horizontals) + hi), nil
}

// ParseAnchor parses "vertical-horizontal" strings such as "bottom-center".
// "center" alone is the page center.
func ParseAnchor(s string) (Anchor, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "center" {
		return Center, nil
	}
	v, h, ok := strings.Cut(s, "-")
	if !ok {
		return 0, fmt.Errorf("%w: anchor %q is not vertical-horizontal", ErrInvalidLayout, s)
	}
	return NewAnchor(Horizontal(h), Vertical(v))
}

// Valid reports whether a is one of the nine anchors.
func (a Anchor) Valid() bool {
	return a >= TopLeft && a < anchorCount
}

// Horizontal returns the horizontal component.
func (a Anchor) Horizontal() Horizontal {
	return horizontals[int(a)%len(horizontals)]
}

// Vertical returns the vertical component.
func (a Anchor) Vertical() Vertical {
	return verticals[int(a)/len(horizontals)]
}

// Position returns the anchor as a position pair.
func (a Anchor) Position() Position {
	return Position{Horizontal: a.Horizontal(), Vertical: a.Vertical()}
}

func (a Anchor) String() string {
	if !a.Valid() {
		return fmt.Sprintf("Anchor(%d)", int(a))
	}
	if a == Center {
		return "center"
	}
	return string(a.Vertical()) + "-" + string(a.Horizontal())
}

// Anchor converts the position to an anchor.
func (p Position) Anchor() (Anchor, error) {
	return NewAnchor(p.Horizontal, p.Vertical)
}

// Size is a width/height pair in PDF user space units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Landscape reports whether the size is wider than tall.
func (s Size) Landscape() bool {
	return s.Width > s.Height
}

// Placement is where a stamp is drawn and how it is rotated.
type Placement struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation int     `json:"rotation"`
}

// coord computes one coordinate of a stamp.
type coord func(w, h, margin, tw, th float64) float64

// rule computes both coordinates for one anchor.
type rule func(w, h, margin, tw, th float64) (x, y float64)

// Base placement against the page's own extent.
var (
	baseX = map[Horizontal]coord{
		Left:    func(w, h, m, tw, th float64) float64 { return m },
		HCenter: func(w, h, m, tw, th float64) float64 { return w/2 - tw/2 },
		Right:   func(w, h, m, tw, th float64) float64 { return w - m - tw },
	}
	baseY = map[Vertical]coord{
		Top:     func(w, h, m, tw, th float64) float64 { return h - m - th },
		VCenter: func(w, h, m, tw, th float64) float64 { return h/2 - th/2 },
		Bottom:  func(w, h, m, tw, th float64) float64 { return m },
	}
)

// Wide page shown as portrait: text runs along the rotated axis (-90).
var (
	clockwiseX = map[Vertical]coord{
		Top:     func(w, h, m, tw, th float64) float64 { return w - m - th },
		VCenter: func(w, h, m, tw, th float64) float64 { return w/2 - th/2 },
		Bottom:  func(w, h, m, tw, th float64) float64 { return m },
	}
	clockwiseY = map[Horizontal]coord{
		Right:   func(w, h, m, tw, th float64) float64 { return m + tw },
		HCenter: func(w, h, m, tw, th float64) float64 { return h/2 - tw/2 },
		Left:    func(w, h, m, tw, th float64) float64 { return h - m },
	}
)

// Tall page shown as landscape (+90).
var (
	counterX = map[Vertical]coord{
		Bottom:  func(w, h, m, tw, th float64) float64 { return w - m },
		VCenter: func(w, h, m, tw, th float64) float64 { return w/2 + th/2 },
		Top:     func(w, h, m, tw, th float64) float64 { return m + th },
	}
	counterY = map[Horizontal]coord{
		Left:    func(w, h, m, tw, th float64) float64 { return m },
		HCenter: func(w, h, m, tw, th float64) float64 { return h/2 - tw/2 },
		Right:   func(w, h, m, tw, th float64) float64 { return h - m - tw },
	}
)

// turn identifies which rule table applies to a page.
type turn int

const (
	noTurn turn = iota
	turnClockwise
	turnCounter
)

var (
	rotations = [...]int{noTurn: 0, turnClockwise: -90, turnCounter: 90}
	rules     [3][anchorCount]rule
)

func init() {
	for _, a := range Anchors() {
		h, v := a.Horizontal(), a.Vertical()
		rules[noTurn][a] = compose(baseX[h], baseY[v])
		rules[turnClockwise][a] = compose(clockwiseX[v], clockwiseY[h])
		rules[turnCounter][a] = compose(counterX[v], counterY[h])
	}
}

func compose(x, y coord) rule {
	return func(w, h, m, tw, th float64) (float64, float64) {
		return x(w, h, m, tw, th), y(w, h, m, tw, th)
	}
}

func turnFor(page Size, o Orientation) turn {
	switch {
	case page.Landscape() && o == OrientationPortrait:
		return turnClockwise
	case !page.Landscape() && o == OrientationLandscape:
		return turnCounter
	default:
		return noTurn
	}
}

// Resolve computes the stamp placement for a page.
//
// text is the measured size of the exact label at the stamp font size.
// Rotation is only applied when the orientation policy disagrees with the
// page's physical orientation; the anchor is then read against the rotated
// axes.
func Resolve(page Size, o Orientation, a Anchor, margin float64, text Size) Placement {
	if !a.Valid() {
		a = BottomCenter
	}
	t := turnFor(page, o)
	x, y := rules[t][a](page.Width, page.Height, margin, text.Width, text.Height)
	return Placement{X: x, Y: y, Rotation: rotations[t]}
}

// SeparatorSize returns the size of a blank page inserted after a page of
// size last under policy o.
func SeparatorSize(last Size, o Orientation) Size {
	swapped := Size{Width: last.Height, Height: last.Width}
	switch o {
	case OrientationLandscape:
		if last.Landscape() {
			return last
		}
		return swapped
	case OrientationPortrait:
		if last.Landscape() {
			return swapped
		}
		return last
	default:
		return last
	}
}
