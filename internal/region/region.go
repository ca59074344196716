// Package region implements a simple rectangle-list region used to
// accumulate screen damage between frames. It trades the banded
// representation of a real pixman-style region for a short list of possibly
// overlapping rectangles, which is enough for clipping repaints: damage
// regions are tiny (a handful of rects per frame) and are cleared on every
// paint.
package region

import (
	"fmt"
	"strings"

	"github.com/jezek/xgb/xproto"
)

// Rect is a half-open rectangle [X1,X2) x [Y1,Y2) in root coordinates.
type Rect struct {
	X1, Y1, X2, Y2 int32
}

func FromXRect(r xproto.Rectangle) Rect {
	return Rect{
		X1: int32(r.X),
		Y1: int32(r.Y),
		X2: int32(r.X) + int32(r.Width),
		Y2: int32(r.Y) + int32(r.Height),
	}
}

func (r Rect) ToXRect() xproto.Rectangle {
	return xproto.Rectangle{
		X:      int16(r.X1),
		Y:      int16(r.Y1),
		Width:  uint16(r.X2 - r.X1),
		Height: uint16(r.Y2 - r.Y1),
	}
}

func (r Rect) Empty() bool { return r.X1 >= r.X2 || r.Y1 >= r.Y2 }

func (r Rect) Translate(dx, dy int32) Rect {
	return Rect{X1: r.X1 + dx, Y1: r.Y1 + dy, X2: r.X2 + dx, Y2: r.Y2 + dy}
}

func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		X1: max32(r.X1, o.X1),
		Y1: max32(r.Y1, o.Y1),
		X2: min32(r.X2, o.X2),
		Y2: min32(r.Y2, o.Y2),
	}
	if out.Empty() {
		return Rect{}
	}
	return out
}

func (r Rect) Contains(o Rect) bool {
	return r.X1 <= o.X1 && r.Y1 <= o.Y1 && r.X2 >= o.X2 && r.Y2 >= o.Y2
}

func (r Rect) Overlaps(o Rect) bool {
	return r.X1 < o.X2 && o.X1 < r.X2 && r.Y1 < o.Y2 && o.Y1 < r.Y2
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.X2-r.X1, r.Y2-r.Y1, r.X1, r.Y1)
}

// Region is a set of points represented as a rectangle list. Rectangles may
// overlap; Subtract and Rects see through that. The zero value is empty.
type Region struct {
	rects []Rect
}

func New(rects ...Rect) Region {
	var rg Region
	for _, r := range rects {
		rg.AddRect(r)
	}
	return rg
}

func (rg *Region) Empty() bool { return len(rg.rects) == 0 }

func (rg *Region) Clear() { rg.rects = rg.rects[:0] }

// Rects returns the rectangle list. Callers must not mutate it.
func (rg *Region) Rects() []Rect { return rg.rects }

// AddRect unions one rectangle in. Rectangles already covered are dropped
// and a new rectangle swallowed by an existing one is a no-op, which keeps
// the list short under repeated full-window damage.
func (rg *Region) AddRect(r Rect) {
	if r.Empty() {
		return
	}
	for _, e := range rg.rects {
		if e.Contains(r) {
			return
		}
	}
	out := rg.rects[:0]
	for _, e := range rg.rects {
		if r.Contains(e) {
			continue
		}
		out = append(out, e)
	}
	rg.rects = append(out, r)
}

// Add unions another region in.
func (rg *Region) Add(o *Region) {
	for _, r := range o.rects {
		rg.AddRect(r)
	}
}

// SubtractRect removes one rectangle. Each existing rectangle splits into at
// most four fragments.
func (rg *Region) SubtractRect(s Rect) {
	if s.Empty() || len(rg.rects) == 0 {
		return
	}
	out := make([]Rect, 0, len(rg.rects))
	for _, e := range rg.rects {
		if !e.Overlaps(s) {
			out = append(out, e)
			continue
		}
		if e.Y1 < s.Y1 { // band above
			out = append(out, Rect{X1: e.X1, Y1: e.Y1, X2: e.X2, Y2: s.Y1})
		}
		if e.Y2 > s.Y2 { // band below
			out = append(out, Rect{X1: e.X1, Y1: s.Y2, X2: e.X2, Y2: e.Y2})
		}
		midY1, midY2 := max32(e.Y1, s.Y1), min32(e.Y2, s.Y2)
		if e.X1 < s.X1 { // left sliver
			out = append(out, Rect{X1: e.X1, Y1: midY1, X2: s.X1, Y2: midY2})
		}
		if e.X2 > s.X2 { // right sliver
			out = append(out, Rect{X1: s.X2, Y1: midY1, X2: e.X2, Y2: midY2})
		}
	}
	rg.rects = out
}

// Subtract removes another region.
func (rg *Region) Subtract(o *Region) {
	for _, r := range o.rects {
		rg.SubtractRect(r)
	}
}

// IntersectRect clips the region to r.
func (rg *Region) IntersectRect(r Rect) {
	out := rg.rects[:0]
	for _, e := range rg.rects {
		if c := e.Intersect(r); !c.Empty() {
			out = append(out, c)
		}
	}
	rg.rects = out
}

// Translate shifts the whole region.
func (rg *Region) Translate(dx, dy int32) {
	for i := range rg.rects {
		rg.rects[i] = rg.rects[i].Translate(dx, dy)
	}
}

// Bounds returns the smallest rectangle covering the region.
func (rg *Region) Bounds() Rect {
	if len(rg.rects) == 0 {
		return Rect{}
	}
	b := rg.rects[0]
	for _, r := range rg.rects[1:] {
		b.X1 = min32(b.X1, r.X1)
		b.Y1 = min32(b.Y1, r.Y1)
		b.X2 = max32(b.X2, r.X2)
		b.Y2 = max32(b.Y2, r.Y2)
	}
	return b
}

// ContainsRect reports whether r is fully covered. Used to decide whether a
// repaint already includes a window's extents.
func (rg *Region) ContainsRect(r Rect) bool {
	if r.Empty() {
		return true
	}
	rem := Region{rects: []Rect{r}}
	for _, e := range rg.rects {
		rem.SubtractRect(e)
		if rem.Empty() {
			return true
		}
	}
	return false
}

// Area returns the covered area, counting overlaps once.
func (rg *Region) Area() int64 {
	var flat Region
	var total int64
	for _, r := range rg.rects {
		piece := Region{rects: []Rect{r}}
		piece.Subtract(&flat)
		for _, p := range piece.rects {
			total += int64(p.X2-p.X1) * int64(p.Y2-p.Y1)
		}
		flat.AddRect(r)
	}
	return total
}

func (rg *Region) String() string {
	if len(rg.rects) == 0 {
		return "empty"
	}
	parts := make([]string, len(rg.rects))
	for i, r := range rg.rects {
		parts[i] = r.String()
	}
	return strings.Join(parts, " ")
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
