package inventory

import "testing"

func item(id string, w, h int) *Item {
	return &Item{ID: id, Name: id, W: w, H: h}
}

func placed(id string, w, h, x, y int) *Item {
	it := item(id, w, h)
	it.Position = &Point{X: x, Y: y}
	return it
}

func TestFits_Bounds(t *testing.T) {
	it := item("sword", 1, 3)
	cases := []struct {
		x, y int
		want bool
	}{
		{0, 0, true},
		{3, 1, true},
		{-1, 0, false},
		{0, -1, false},
		{4, 0, false},
		{0, 2, false},
	}
	for _, c := range cases {
		if got := Fits(c.x, c.y, it, 4, 4); got != c.want {
			t.Fatalf("Fits(%d,%d) = %v, want %v", c.x, c.y, got, c.want)
		}
	}
}

func TestFits_ExactFill(t *testing.T) {
	if !Fits(0, 0, item("chest", 4, 4), 4, 4) {
		t.Fatalf("item exactly filling the grid must fit")
	}
}

func TestOverlaps(t *testing.T) {
	other := placed("shield", 2, 2, 2, 2)
	cases := []struct {
		x, y int
		want bool
	}{
		{0, 0, false},
		{1, 1, true},
		{2, 2, true},
		{3, 3, true},
		{4, 2, false},
		{2, 4, false},
		{0, 2, false},
	}
	it := item("probe", 2, 2)
	for _, c := range cases {
		if got := Overlaps(c.x, c.y, it, other); got != c.want {
			t.Fatalf("Overlaps(%d,%d) = %v, want %v", c.x, c.y, got, c.want)
		}
	}
}

func TestOverlaps_UnplacedNeverCollides(t *testing.T) {
	if Overlaps(0, 0, item("a", 2, 2), item("b", 2, 2)) {
		t.Fatalf("item without position must not overlap")
	}
}

func TestFindFirstSlot_RowMajor(t *testing.T) {
	existing := []*Item{placed("rock", 1, 1, 0, 0)}
	p, ok := FindFirstSlot(existing, item("coin", 1, 1), 2, 2)
	if !ok {
		t.Fatalf("expected a slot")
	}
	if p.X != 1 || p.Y != 0 {
		t.Fatalf("expected (1,0), got (%d,%d)", p.X, p.Y)
	}
}

func TestFindFirstSlot_NoSpace(t *testing.T) {
	existing := []*Item{placed("rock", 1, 1, 0, 0)}
	if _, ok := FindFirstSlot(existing, item("slab", 2, 2), 2, 2); ok {
		t.Fatalf("2x2 cannot fit a 2x2 next to an occupied cell")
	}
}

func TestFindFirstSlot_NeverInvalid(t *testing.T) {
	existing := []*Item{
		placed("a", 2, 1, 0, 0),
		placed("b", 1, 2, 3, 0),
		placed("c", 2, 2, 1, 2),
	}
	for _, shape := range []*Item{item("s1", 1, 1), item("s2", 2, 1), item("s3", 1, 3), item("s4", 3, 2)} {
		p, ok := FindFirstSlot(existing, shape, 4, 4)
		if !ok {
			continue
		}
		if !Fits(p.X, p.Y, shape, 4, 4) {
			t.Fatalf("%s: slot (%d,%d) out of bounds", shape.ID, p.X, p.Y)
		}
		for _, other := range existing {
			if Overlaps(p.X, p.Y, shape, other) {
				t.Fatalf("%s: slot (%d,%d) overlaps %s", shape.ID, p.X, p.Y, other.ID)
			}
		}
		// First-fit means no earlier row-major origin is legal.
		for y := 0; y <= p.Y; y++ {
			for x := 0; x < 4; x++ {
				if y == p.Y && x >= p.X {
					break
				}
				if !Fits(x, y, shape, 4, 4) {
					continue
				}
				clear := true
				for _, other := range existing {
					if Overlaps(x, y, shape, other) {
						clear = false
						break
					}
				}
				if clear {
					t.Fatalf("%s: (%d,%d) legal but slot was (%d,%d)", shape.ID, x, y, p.X, p.Y)
				}
			}
		}
	}
}

func TestRotate_Idempotence(t *testing.T) {
	it := item("polearm", 1, 4)
	Rotate(it)
	if it.W != 4 || it.H != 1 {
		t.Fatalf("after rotate: %dx%d", it.W, it.H)
	}
	Rotate(it)
	if it.W != 1 || it.H != 4 {
		t.Fatalf("double rotate must restore shape, got %dx%d", it.W, it.H)
	}
}

func TestContainer_PlaceAt(t *testing.T) {
	c := &Container{ID: "pack", GridWidth: 3, GridHeight: 3}
	it := item("rope", 2, 1)
	if err := c.PlaceAt(it, 1, 2); err != nil {
		t.Fatalf("place: %v", err)
	}
	if it.Position == nil || it.Position.X != 1 || it.Position.Y != 2 {
		t.Fatalf("bad position: %+v", it.Position)
	}
	if err := c.PlaceAt(item("torch", 1, 1), 2, 2); err != ErrCollision {
		t.Fatalf("expected ErrCollision, got %v", err)
	}
	if err := c.PlaceAt(item("pole", 1, 4), 0, 0); err != ErrOutOfBounds {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestContainer_PlaceFirstFit_Full(t *testing.T) {
	c := &Container{ID: "pouch", GridWidth: 1, GridHeight: 1}
	if err := c.PlaceFirstFit(item("gem", 1, 1)); err != nil {
		t.Fatalf("place: %v", err)
	}
	if err := c.PlaceFirstFit(item("coin", 1, 1)); err != ErrNoSpace {
		t.Fatalf("expected ErrNoSpace, got %v", err)
	}
}

func TestContainer_RemoveGridItem_StripsPosition(t *testing.T) {
	c := &Container{ID: "pack", GridWidth: 2, GridHeight: 2}
	if err := c.PlaceAt(item("map", 1, 1), 0, 0); err != nil {
		t.Fatalf("place: %v", err)
	}
	it := c.RemoveGridItem("map")
	if it == nil {
		t.Fatalf("missing item")
	}
	if it.Position != nil {
		t.Fatalf("removed item must not keep a grid position")
	}
	if len(c.GridItems) != 0 {
		t.Fatalf("grid not emptied")
	}
}
