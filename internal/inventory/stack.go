package inventory

import "fmt"

// Stacking rules for quantity-bearing items.

// CanMerge reports whether src can pour into dst: both stackable, same name
// and type, distinct instances.
func CanMerge(src, dst *Item) bool {
	if src == nil || dst == nil || src.ID == dst.ID {
		return false
	}
	if !src.Stackable || !dst.Stackable {
		return false
	}
	return src.Name == dst.Name && src.Type == dst.Type
}

// Merge moves as much quantity as fits from src into dst and returns the
// amount transferred. ErrStackFull is returned, with no state change, when
// dst has no room. The caller removes src from its collection when its
// quantity reaches zero; otherwise src stays where it is, reduced in place.
func Merge(src, dst *Item) (int, error) {
	if !CanMerge(src, dst) {
		return 0, fmt.Errorf("items %q and %q do not stack", src.Name, dst.Name)
	}
	room := dst.EffectiveMaxStack() - dst.Count()
	transferred := src.Count()
	if transferred > room {
		transferred = room
	}
	if transferred <= 0 {
		return 0, ErrStackFull
	}
	dst.Quantity = dst.Count() + transferred
	src.Quantity = src.Count() - transferred
	return transferred, nil
}

// Split carves amount units off src into a fresh item with the given id.
// amount must satisfy 0 < amount < src quantity. The new item has no
// position; the caller decides its placement.
func Split(src *Item, amount int, newID string) (*Item, error) {
	if !src.Stackable {
		return nil, fmt.Errorf("item %q is not stackable", src.Name)
	}
	if amount <= 0 || amount >= src.Count() {
		return nil, fmt.Errorf("split amount %d out of range (1..%d)", amount, src.Count()-1)
	}
	part := src.Clone()
	part.ID = newID
	part.Position = nil
	part.Quantity = amount
	src.Quantity = src.Count() - amount
	return part, nil
}
