package window

import "testing"

func TestRectContains(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 5, Height: 5}
	if !r.Contains(Point{12, 12}) {
		t.Fatal("expected point inside rect to be contained")
	}
	if r.Contains(Point{15, 12}) {
		t.Fatal("expected point on the right edge to be outside (half-open rect)")
	}
	if r.Contains(Point{9, 9}) {
		t.Fatal("expected point before the rect to be outside")
	}
}

func TestRectIntersection(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	b := Rect{X: 5, Y: 5, Width: 10, Height: 10}
	got, ok := a.Intersection(b)
	if !ok {
		t.Fatal("expected overlapping rects to intersect")
	}
	want := Rect{X: 5, Y: 5, Width: 5, Height: 5}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestRectIntersectionDisjoint(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 5, Height: 5}
	b := Rect{X: 100, Y: 100, Width: 5, Height: 5}
	if _, ok := a.Intersection(b); ok {
		t.Fatal("expected disjoint rects to have no intersection")
	}
}

func TestNewWindowIDMonotonicAndUnique(t *testing.T) {
	a := newWindowID()
	b := newWindowID()
	if a == b {
		t.Fatal("expected successive window ids to differ")
	}
	if a == 0 || b == 0 {
		t.Fatal("expected nonzero window ids, since 0 means \"no window\"")
	}
}
