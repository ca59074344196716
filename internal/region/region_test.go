package region

import (
	"testing"

	"github.com/jezek/xgb/xproto"
)

func rect(x, y, w, h int32) Rect {
	return Rect{X1: x, Y1: y, X2: x + w, Y2: y + h}
}

func TestRect(t *testing.T) {
	r := FromXRect(xproto.Rectangle{X: 10, Y: 20, Width: 30, Height: 40})
	if r != rect(10, 20, 30, 40) {
		t.Fatalf("FromXRect = %v", r)
	}
	if got := r.ToXRect(); got.Width != 30 || got.Y != 20 {
		t.Fatalf("ToXRect = %v", got)
	}
	if !rect(0, 0, 10, 10).Overlaps(rect(9, 9, 5, 5)) {
		t.Fatal("expected overlap")
	}
	if rect(0, 0, 10, 10).Overlaps(rect(10, 0, 5, 5)) {
		t.Fatal("edge-adjacent rects do not overlap")
	}
	if got := rect(0, 0, 10, 10).Intersect(rect(5, 5, 10, 10)); got != rect(5, 5, 5, 5) {
		t.Fatalf("Intersect = %v", got)
	}
	if !rect(20, 20, 0, 5).Empty() {
		t.Fatal("zero width is empty")
	}
}

func TestRegionAdd(t *testing.T) {
	var rg Region
	if !rg.Empty() {
		t.Fatal("zero value should be empty")
	}

	rg.AddRect(rect(0, 0, 100, 100))
	rg.AddRect(rect(10, 10, 20, 20)) // swallowed
	if len(rg.Rects()) != 1 {
		t.Fatalf("contained rect should be dropped, have %s", rg.String())
	}

	rg.AddRect(rect(-50, -50, 200, 200)) // swallows
	if len(rg.Rects()) != 1 || rg.Bounds() != rect(-50, -50, 200, 200) {
		t.Fatalf("covering rect should replace, have %s", rg.String())
	}

	rg.AddRect(rect(300, 0, 10, 10))
	if got := rg.Area(); got != 200*200+100 {
		t.Fatalf("Area = %d", got)
	}
}

func TestRegionAreaOverlap(t *testing.T) {
	var rg Region
	rg.AddRect(rect(0, 0, 10, 10))
	rg.AddRect(rect(5, 0, 10, 10))
	if got := rg.Area(); got != 150 {
		t.Fatalf("overlap counted twice: Area = %d", got)
	}
}

func TestRegionSubtract(t *testing.T) {
	var rg Region
	rg.AddRect(rect(0, 0, 100, 100))

	// Punch a hole in the middle: four fragments.
	rg.SubtractRect(rect(40, 40, 20, 20))
	if len(rg.Rects()) != 4 {
		t.Fatalf("want 4 fragments, have %s", rg.String())
	}
	if got := rg.Area(); got != 100*100-20*20 {
		t.Fatalf("Area = %d", got)
	}
	if rg.ContainsRect(rect(45, 45, 5, 5)) {
		t.Fatal("hole should not be covered")
	}
	if !rg.ContainsRect(rect(0, 0, 100, 40)) {
		t.Fatal("band above the hole should be covered")
	}

	// Subtracting everything empties the region.
	rg.SubtractRect(rect(0, 0, 100, 100))
	if !rg.Empty() {
		t.Fatalf("want empty, have %s", rg.String())
	}
}

func TestRegionSubtractPartial(t *testing.T) {
	var rg Region
	rg.AddRect(rect(0, 0, 100, 50))
	rg.SubtractRect(rect(50, -10, 100, 100)) // clip right half
	if got := rg.Bounds(); got != rect(0, 0, 50, 50) {
		t.Fatalf("Bounds = %v", got)
	}
	if got := rg.Area(); got != 50*50 {
		t.Fatalf("Area = %d", got)
	}
}

func TestRegionIntersectTranslate(t *testing.T) {
	var rg Region
	rg.AddRect(rect(0, 0, 50, 50))
	rg.AddRect(rect(100, 100, 50, 50))

	rg.Translate(10, -10)
	if got := rg.Bounds(); got != rect(10, -10, 150, 150) {
		t.Fatalf("Bounds after translate = %v", got)
	}

	// Clip to a screen that only covers the first rect.
	rg.IntersectRect(rect(0, -20, 80, 80))
	if len(rg.Rects()) != 1 || rg.Bounds() != rect(10, -10, 50, 50) {
		t.Fatalf("clip = %s", rg.String())
	}
}

func TestRegionContainsCoverageAcrossRects(t *testing.T) {
	// Coverage assembled from two abutting rects, neither alone sufficient.
	var rg Region
	rg.AddRect(rect(0, 0, 50, 100))
	rg.AddRect(rect(50, 0, 50, 100))
	if !rg.ContainsRect(rect(20, 20, 60, 60)) {
		t.Fatal("combined coverage should contain the straddling rect")
	}
	if rg.ContainsRect(rect(20, 20, 100, 60)) {
		t.Fatal("rect extending past both should not be contained")
	}
}
