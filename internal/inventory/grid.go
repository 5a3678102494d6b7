package inventory

// Grid placement rules. Items occupy the axis-aligned cell rectangle
// [x, x+w) x [y, y+h). Placement is first-fit: candidates are scanned
// row-major (y outer, x inner) and the first legal origin wins. Grids are
// player-scale (tens of cells), so the O(W*H*n) scan is fine.

// Fits reports whether the item's rectangle lies fully inside a grid of the
// given size when anchored at (x, y).
func Fits(x, y int, it *Item, gridW, gridH int) bool {
	if x < 0 || y < 0 {
		return false
	}
	return x+it.W <= gridW && y+it.H <= gridH
}

// Overlaps reports whether the item anchored at (x, y) intersects other at
// its current position. Items without a position never overlap anything.
func Overlaps(x, y int, it *Item, other *Item) bool {
	if other.Position == nil {
		return false
	}
	ox, oy := other.Position.X, other.Position.Y
	if x+it.W <= ox || ox+other.W <= x {
		return false
	}
	if y+it.H <= oy || oy+other.H <= y {
		return false
	}
	return true
}

// FindFirstSlot returns the first origin, in row-major order, where the item
// fits without colliding with any existing item. ok is false when the grid
// has no legal origin.
func FindFirstSlot(existing []*Item, it *Item, gridW, gridH int) (p Point, ok bool) {
	for y := 0; y+it.H <= gridH; y++ {
	next:
		for x := 0; x+it.W <= gridW; x++ {
			for _, other := range existing {
				if other.ID == it.ID {
					continue
				}
				if Overlaps(x, y, it, other) {
					continue next
				}
			}
			return Point{X: x, Y: y}, true
		}
	}
	return Point{}, false
}

// Rotate swaps the item's width and height in place. Callers must re-validate
// the placement afterwards: a rotated item may no longer fit at its origin.
func Rotate(it *Item) {
	it.W, it.H = it.H, it.W
}

// CanPlaceAt validates bounds and collisions for the item anchored at (x, y)
// inside the container. The item itself is ignored during collision checks so
// in-place moves and rotations validate correctly.
func (c *Container) CanPlaceAt(it *Item, x, y int) error {
	if !Fits(x, y, it, c.GridWidth, c.GridHeight) {
		return ErrOutOfBounds
	}
	for _, other := range c.GridItems {
		if other.ID == it.ID {
			continue
		}
		if Overlaps(x, y, it, other) {
			return ErrCollision
		}
	}
	return nil
}

// PlaceAt anchors the item at (x, y) and appends it to the grid if it is not
// already there.
func (c *Container) PlaceAt(it *Item, x, y int) error {
	if err := c.CanPlaceAt(it, x, y); err != nil {
		return err
	}
	it.Position = &Point{X: x, Y: y}
	for _, g := range c.GridItems {
		if g.ID == it.ID {
			return nil
		}
	}
	c.GridItems = append(c.GridItems, it)
	return nil
}

// PlaceFirstFit places the item at the first free slot, or returns ErrNoSpace.
func (c *Container) PlaceFirstFit(it *Item) error {
	p, ok := FindFirstSlot(c.GridItems, it, c.GridWidth, c.GridHeight)
	if !ok {
		return ErrNoSpace
	}
	return c.PlaceAt(it, p.X, p.Y)
}

// RemoveGridItem takes the item out of the grid and strips its position.
func (c *Container) RemoveGridItem(id string) *Item {
	for i, it := range c.GridItems {
		if it.ID == id {
			c.GridItems = append(c.GridItems[:i], c.GridItems[i+1:]...)
			it.Position = nil
			return it
		}
	}
	return nil
}

// RemoveTrayItem takes the item out of the container's local tray.
func (c *Container) RemoveTrayItem(id string) *Item {
	for i, it := range c.TrayItems {
		if it.ID == id {
			c.TrayItems = append(c.TrayItems[:i], c.TrayItems[i+1:]...)
			return it
		}
	}
	return nil
}
