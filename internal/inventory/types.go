package inventory

// Point is a cell origin inside a container grid. (0,0) is top-left.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Item is a single owned thing. Position is set if and only if the item
// currently sits in a container grid; items on a tray or equipped list never
// carry one.
type Item struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Type         string  `json:"type,omitempty"`
	W            int     `json:"width"`
	H            int     `json:"height"`
	Position     *Point  `json:"position,omitempty"`
	Stackable    bool    `json:"stackable,omitempty"`
	Quantity     int     `json:"quantity,omitempty"`
	MaxStack     int     `json:"maxStack,omitempty"`
	Weight       float64 `json:"weight,omitempty"`
	Cost         string  `json:"cost,omitempty"`
	Magic        string  `json:"magic,omitempty"`
	MagicVisible bool    `json:"magicVisible,omitempty"`
	Icon         string  `json:"icon,omitempty"`
}

// DefaultMaxStack applies when a stackable item does not specify its own cap.
const DefaultMaxStack = 20

func (it *Item) EffectiveMaxStack() int {
	if it.MaxStack > 0 {
		return it.MaxStack
	}
	return DefaultMaxStack
}

// Count returns the quantity, treating non-stackable items as a single unit.
func (it *Item) Count() int {
	if !it.Stackable || it.Quantity < 1 {
		return 1
	}
	return it.Quantity
}

func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	cp := *it
	if it.Position != nil {
		p := *it.Position
		cp.Position = &p
	}
	return &cp
}

// Container is one rectangular grid plus an optional local tray for owner
// types that have no separate floor list.
type Container struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	GridWidth   int     `json:"gridWidth"`
	GridHeight  int     `json:"gridHeight"`
	GridItems   []*Item `json:"gridItems"`
	TrayItems   []*Item `json:"trayItems,omitempty"`
	TrackWeight bool    `json:"trackWeight,omitempty"`
}

func (c *Container) Clone() *Container {
	if c == nil {
		return nil
	}
	cp := *c
	cp.GridItems = cloneItems(c.GridItems)
	cp.TrayItems = cloneItems(c.TrayItems)
	return &cp
}

// Inventory is the full holdings of one owner.
type Inventory struct {
	OwnerID          string
	CharacterName    string
	Kind             OwnerKind
	Containers       map[string]*Container
	ContainerOrder   []string
	TrayItems        []*Item
	EquippedItems    []*Item
	Currency         Wallet
	TotalMaxWeight   float64
	WeightUnit       string
	VisibleToPlayers bool
}

func (inv *Inventory) Clone() *Inventory {
	if inv == nil {
		return nil
	}
	cp := *inv
	cp.Containers = make(map[string]*Container, len(inv.Containers))
	for id, c := range inv.Containers {
		cp.Containers[id] = c.Clone()
	}
	cp.ContainerOrder = append([]string(nil), inv.ContainerOrder...)
	cp.TrayItems = cloneItems(inv.TrayItems)
	cp.EquippedItems = cloneItems(inv.EquippedItems)
	return &cp
}

// OrderedContainers returns containers in owner order, skipping stale ids.
func (inv *Inventory) OrderedContainers() []*Container {
	out := make([]*Container, 0, len(inv.ContainerOrder))
	for _, id := range inv.ContainerOrder {
		if c := inv.Containers[id]; c != nil {
			out = append(out, c)
		}
	}
	return out
}

// TotalWeight sums carried weight: floor and equipped items always count,
// container contents only when the container tracks weight.
func (inv *Inventory) TotalWeight() float64 {
	var total float64
	for _, it := range inv.TrayItems {
		total += it.Weight * float64(it.Count())
	}
	for _, it := range inv.EquippedItems {
		total += it.Weight * float64(it.Count())
	}
	for _, c := range inv.OrderedContainers() {
		if !c.TrackWeight {
			continue
		}
		for _, it := range c.GridItems {
			total += it.Weight * float64(it.Count())
		}
		for _, it := range c.TrayItems {
			total += it.Weight * float64(it.Count())
		}
	}
	return total
}

func cloneItems(items []*Item) []*Item {
	if items == nil {
		return nil
	}
	out := make([]*Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}
