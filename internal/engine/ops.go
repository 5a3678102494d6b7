package engine

import (
	"errors"

	"github.com/google/uuid"

	"gridloot/internal/inventory"
	"gridloot/internal/store"
)

var (
	ErrOwnerNotFound     = errors.New("owner not found")
	ErrContainerNotFound = errors.New("container not found")
)

// Result reports a completed operation. Warning is set when a recoverable
// condition was resolved (an item demoted to the floor); the operation still
// succeeded.
type Result struct {
	Warning string
}

const warnDemotedToFloor = "no free slot; item placed on the floor"

// MoveRequest describes a drag-and-drop style relocation. A nil X/Y asks for
// first-fit placement; ToContainer empty targets the owner's floor list;
// ToContainerTray targets the container's local tray instead of its grid.
type MoveRequest struct {
	OpID            string
	FromOwner       string
	ToOwner         string
	ItemID          string
	ToContainer     string
	ToContainerTray bool
	X, Y            *int
}

// MoveItem relocates an item inside one inventory or across two. Dropping
// onto a compatible stack merges instead of placing. When the source owner
// is a merchant and the destination is somebody else, the move is a
// purchase: the item's cost is deducted from the destination owner's wallet
// first and the whole operation aborts if they cannot afford it.
func (s *Session) MoveItem(req MoveRequest) (Result, error) {
	s.mu.Lock()
	res, owners, err := s.moveItemLocked(req)
	s.mu.Unlock()
	s.notifyOwners(owners)
	return res, err
}

func (s *Session) moveItemLocked(req MoveRequest) (Result, []string, error) {
	if s.closed {
		return Result{}, nil, ErrClosed
	}
	srcBase := s.invs[req.FromOwner]
	if srcBase == nil {
		return Result{}, nil, ErrOwnerNotFound
	}
	dstBase := srcBase
	if req.ToOwner != req.FromOwner {
		dstBase = s.invs[req.ToOwner]
		if dstBase == nil {
			return Result{}, nil, ErrOwnerNotFound
		}
	}
	if !inventory.CanEdit(s.cfg.ViewerKind, s.cfg.ViewerID, srcBase.Kind, srcBase.OwnerID) ||
		!inventory.CanEdit(s.cfg.ViewerKind, s.cfg.ViewerID, dstBase.Kind, dstBase.OwnerID) {
		return Result{}, nil, ErrPermission
	}

	purchase := srcBase.Kind.SellsItems() && req.FromOwner != req.ToOwner
	keepStock := purchase && s.cfg.MerchantStockInfinite

	src := srcBase.Clone()
	dst := src
	if req.ToOwner != req.FromOwner {
		dst = dstBase.Clone()
	}

	// Detach from the source (or copy it, for infinite merchant stock).
	var moved *inventory.Item
	var fromLoc inventory.Locator
	if keepStock {
		stock, _, ok := src.FindItem(req.ItemID)
		if !ok {
			return Result{}, nil, inventory.ErrItemNotFound
		}
		moved = stock.Clone()
		moved.ID = uuid.NewString()
		moved.Position = nil
	} else {
		var ok bool
		moved, fromLoc, ok = src.RemoveItem(req.ItemID)
		if !ok {
			return Result{}, nil, inventory.ErrItemNotFound
		}
	}

	// Purchases pay before anything lands.
	if purchase {
		if cost := inventory.ParseCost(moved.Cost); cost > 0 {
			wallet, err := inventory.Deduct(dst.Currency, cost)
			if err != nil {
				return Result{}, nil, err
			}
			dst.Currency = wallet
		}
	}

	dstTouched, err := s.placeMoved(dst, moved, req)
	if err != nil {
		return Result{}, nil, err
	}

	next := make(map[string]*inventory.Inventory)
	var writes []store.Write
	if !keepStock {
		next[req.FromOwner] = src
		writes = append(writes, s.ownerWrites(src, touchSet{root: fromLoc.Kind == inventory.LocTray || fromLoc.Kind == inventory.LocEquipped, containers: containerOf(fromLoc)})...)
	}
	next[req.ToOwner] = dst
	writes = append(writes, s.ownerWrites(dst, dstTouched)...)

	op := s.beginLocked(req.OpID)
	s.commitLocked(op, next, writes)
	return Result{}, ownerKeys(next), nil
}

// placeMoved lands the detached item in the destination inventory and
// reports which documents changed. A drop onto a compatible stack merges;
// any residual quantity is re-homed in the target's container, falling back
// to the destination floor.
func (s *Session) placeMoved(dst *inventory.Inventory, moved *inventory.Item, req MoveRequest) (touchSet, error) {
	touched := touchSet{}

	if req.ToContainer == "" {
		// Floor drop, wallet might also have changed on purchase.
		dst.AddToFloor(moved)
		touched.root = true
		return touched, nil
	}

	c := dst.Containers[req.ToContainer]
	if c == nil {
		return touched, ErrContainerNotFound
	}
	touched.containers = append(touched.containers, c.ID)
	touched.root = true // wallet/tray may have changed; root write is cheap and keeps LWW simple

	if req.ToContainerTray {
		moved.Position = nil
		c.TrayItems = append(c.TrayItems, moved)
		return touched, nil
	}

	if req.X != nil && req.Y != nil {
		// A drop onto a compatible stack merges instead of placing.
		if target := itemAt(c, *req.X, *req.Y); target != nil {
			if inventory.CanMerge(moved, target) {
				if _, err := inventory.Merge(moved, target); err != nil {
					return touched, err
				}
				if moved.Quantity > 0 {
					// Residual goes back beside the target.
					if err := c.PlaceFirstFit(moved); err != nil {
						dst.AddToFloor(moved)
					}
				}
				return touched, nil
			}
			return touched, inventory.ErrCollision
		}
		if err := c.PlaceAt(moved, *req.X, *req.Y); err != nil {
			return touched, err
		}
		return touched, nil
	}

	if err := c.PlaceFirstFit(moved); err != nil {
		return touched, err
	}
	return touched, nil
}

func itemAt(c *inventory.Container, x, y int) *inventory.Item {
	for _, it := range c.GridItems {
		if it.Position == nil {
			continue
		}
		if x >= it.Position.X && x < it.Position.X+it.W &&
			y >= it.Position.Y && y < it.Position.Y+it.H {
			return it
		}
	}
	return nil
}

// touchSet tracks which documents of one owner an operation wrote.
type touchSet struct {
	root       bool
	containers []string
}

func containerOf(loc inventory.Locator) []string {
	if loc.ContainerID == "" {
		return nil
	}
	return []string{loc.ContainerID}
}

func (s *Session) ownerWrites(inv *inventory.Inventory, touched touchSet) []store.Write {
	var writes []store.Write
	if touched.root {
		writes = append(writes, store.Write{
			Path:   store.InventoryPath(s.cfg.CampaignID, inv.OwnerID),
			Fields: inventoryDoc(inv),
		})
	}
	seen := map[string]bool{}
	for _, id := range touched.containers {
		if seen[id] {
			continue
		}
		seen[id] = true
		c := inv.Containers[id]
		if c == nil {
			continue
		}
		writes = append(writes, store.Write{
			Path:   store.ContainerPath(s.cfg.CampaignID, inv.OwnerID, id),
			Fields: containerDoc(c),
		})
	}
	return writes
}

func ownerKeys(m map[string]*inventory.Inventory) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func (s *Session) notifyOwners(owners []string) {
	if s.OnInventoryChange == nil {
		return
	}
	for _, o := range owners {
		s.OnInventoryChange(o)
	}
}

func newItemID() string { return uuid.NewString() }
