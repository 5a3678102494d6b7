package inventory

// LocationKind names the collections an item can live in.
type LocationKind string

const (
	LocGrid          LocationKind = "grid"
	LocTray          LocationKind = "tray"
	LocContainerTray LocationKind = "containerTray"
	LocEquipped      LocationKind = "equipped"
)

// Locator pins down one collection inside one owner's inventory.
// ContainerID is set for grid and containerTray locations only.
type Locator struct {
	Kind        LocationKind
	ContainerID string
}

// FindItem scans every collection for the item id.
func (inv *Inventory) FindItem(id string) (*Item, Locator, bool) {
	for _, it := range inv.TrayItems {
		if it.ID == id {
			return it, Locator{Kind: LocTray}, true
		}
	}
	for _, it := range inv.EquippedItems {
		if it.ID == id {
			return it, Locator{Kind: LocEquipped}, true
		}
	}
	for _, c := range inv.OrderedContainers() {
		for _, it := range c.GridItems {
			if it.ID == id {
				return it, Locator{Kind: LocGrid, ContainerID: c.ID}, true
			}
		}
		for _, it := range c.TrayItems {
			if it.ID == id {
				return it, Locator{Kind: LocContainerTray, ContainerID: c.ID}, true
			}
		}
	}
	return nil, Locator{}, false
}

// RemoveItem detaches the item from whichever collection holds it. Grid
// removals strip the position so the invariant (position iff in grid) holds.
func (inv *Inventory) RemoveItem(id string) (*Item, Locator, bool) {
	for i, it := range inv.TrayItems {
		if it.ID == id {
			inv.TrayItems = append(inv.TrayItems[:i], inv.TrayItems[i+1:]...)
			return it, Locator{Kind: LocTray}, true
		}
	}
	for i, it := range inv.EquippedItems {
		if it.ID == id {
			inv.EquippedItems = append(inv.EquippedItems[:i], inv.EquippedItems[i+1:]...)
			return it, Locator{Kind: LocEquipped}, true
		}
	}
	for _, c := range inv.OrderedContainers() {
		if it := c.RemoveGridItem(id); it != nil {
			return it, Locator{Kind: LocGrid, ContainerID: c.ID}, true
		}
		if it := c.RemoveTrayItem(id); it != nil {
			return it, Locator{Kind: LocContainerTray, ContainerID: c.ID}, true
		}
	}
	return nil, Locator{}, false
}

// AddToFloor appends the item to the owner's unplaced list, stripping any
// grid position.
func (inv *Inventory) AddToFloor(it *Item) {
	it.Position = nil
	inv.TrayItems = append(inv.TrayItems, it)
}

// PlaceAnywhere tries every container in owner order and falls back to the
// floor when all grids are full. It returns the id of the container that
// took the item, or "" and false after a floor fallback.
func (inv *Inventory) PlaceAnywhere(it *Item) (string, bool) {
	for _, c := range inv.OrderedContainers() {
		if err := c.PlaceFirstFit(it); err == nil {
			return c.ID, true
		}
	}
	inv.AddToFloor(it)
	return "", false
}
