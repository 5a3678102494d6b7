package engine

import (
	"errors"
	"fmt"

	"gridloot/internal/inventory"
)

var ErrInvalid = errors.New("invalid request")

// ownerForEditLocked resolves the target inventory, checks the viewer's
// write permission, and hands back a private clone to mutate.
func (s *Session) ownerForEditLocked(ownerID string) (*inventory.Inventory, error) {
	if s.closed {
		return nil, ErrClosed
	}
	base := s.invs[ownerID]
	if base == nil {
		return nil, ErrOwnerNotFound
	}
	if !inventory.CanEdit(s.cfg.ViewerKind, s.cfg.ViewerID, base.Kind, base.OwnerID) {
		return nil, ErrPermission
	}
	return base.Clone(), nil
}

func (s *Session) commitOwnerLocked(opID string, inv *inventory.Inventory, touched touchSet) {
	next := map[string]*inventory.Inventory{inv.OwnerID: inv}
	op := s.beginLocked(opID)
	s.commitLocked(op, next, s.ownerWrites(inv, touched))
}

// Equip moves an item from a grid or tray to the owner's equipped list.
func (s *Session) Equip(opID, ownerID, itemID string) (Result, error) {
	s.mu.Lock()
	res, err := s.equipLocked(opID, ownerID, itemID)
	s.mu.Unlock()
	if err == nil {
		s.notifyOwners([]string{ownerID})
	}
	return res, err
}

func (s *Session) equipLocked(opID, ownerID, itemID string) (Result, error) {
	inv, err := s.ownerForEditLocked(ownerID)
	if err != nil {
		return Result{}, err
	}
	it, loc, ok := inv.RemoveItem(itemID)
	if !ok {
		return Result{}, inventory.ErrItemNotFound
	}
	if loc.Kind == inventory.LocEquipped {
		return Result{}, ErrInvalid
	}
	inv.EquippedItems = append(inv.EquippedItems, it)
	s.commitOwnerLocked(opID, inv, touchSet{root: true, containers: containerOf(loc)})
	return Result{}, nil
}

// Unequip returns an equipped item to the first container grid with room,
// demoting it to the floor when every grid is full.
func (s *Session) Unequip(opID, ownerID, itemID string) (Result, error) {
	s.mu.Lock()
	res, err := s.unequipLocked(opID, ownerID, itemID)
	s.mu.Unlock()
	if err == nil {
		s.notifyOwners([]string{ownerID})
	}
	return res, err
}

func (s *Session) unequipLocked(opID, ownerID, itemID string) (Result, error) {
	inv, err := s.ownerForEditLocked(ownerID)
	if err != nil {
		return Result{}, err
	}
	var it *inventory.Item
	for i, e := range inv.EquippedItems {
		if e.ID == itemID {
			it = e
			inv.EquippedItems = append(inv.EquippedItems[:i], inv.EquippedItems[i+1:]...)
			break
		}
	}
	if it == nil {
		return Result{}, inventory.ErrItemNotFound
	}
	res := Result{}
	cid, placed := inv.PlaceAnywhere(it)
	if !placed {
		res.Warning = warnDemotedToFloor
	}
	touched := touchSet{root: true}
	if cid != "" {
		touched.containers = append(touched.containers, cid)
	}
	s.commitOwnerLocked(opID, inv, touched)
	return res, nil
}

// SplitStack carves amount units off a stack into a new item with a fresh
// id, placed beside the source when possible. Returns the new item's id.
func (s *Session) SplitStack(opID, ownerID, itemID string, amount int) (string, Result, error) {
	s.mu.Lock()
	id, res, err := s.splitStackLocked(opID, ownerID, itemID, amount)
	s.mu.Unlock()
	if err == nil {
		s.notifyOwners([]string{ownerID})
	}
	return id, res, err
}

func (s *Session) splitStackLocked(opID, ownerID, itemID string, amount int) (string, Result, error) {
	inv, err := s.ownerForEditLocked(ownerID)
	if err != nil {
		return "", Result{}, err
	}
	it, loc, ok := inv.FindItem(itemID)
	if !ok {
		return "", Result{}, inventory.ErrItemNotFound
	}
	part, err := inventory.Split(it, amount, newItemID())
	if err != nil {
		return "", Result{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	res := Result{}
	touched := touchSet{}
	switch loc.Kind {
	case inventory.LocGrid:
		c := inv.Containers[loc.ContainerID]
		touched.containers = append(touched.containers, c.ID)
		if err := c.PlaceFirstFit(part); err != nil {
			inv.AddToFloor(part)
			touched.root = true
			res.Warning = warnDemotedToFloor
		}
	case inventory.LocContainerTray:
		c := inv.Containers[loc.ContainerID]
		c.TrayItems = append(c.TrayItems, part)
		touched.containers = append(touched.containers, c.ID)
	default:
		inv.AddToFloor(part)
		touched.root = true
	}
	s.commitOwnerLocked(opID, inv, touched)
	return part.ID, res, nil
}

// RotateItem swaps an item's width and height. For grid items the rotated
// footprint is validated in place first, then against the first free slot,
// and finally the item is demoted to the floor if nothing fits.
func (s *Session) RotateItem(opID, ownerID, itemID string) (Result, error) {
	s.mu.Lock()
	res, err := s.rotateLocked(opID, ownerID, itemID)
	s.mu.Unlock()
	if err == nil {
		s.notifyOwners([]string{ownerID})
	}
	return res, err
}

func (s *Session) rotateLocked(opID, ownerID, itemID string) (Result, error) {
	inv, err := s.ownerForEditLocked(ownerID)
	if err != nil {
		return Result{}, err
	}
	it, loc, ok := inv.FindItem(itemID)
	if !ok {
		return Result{}, inventory.ErrItemNotFound
	}
	inventory.Rotate(it)

	res := Result{}
	touched := touchSet{root: loc.ContainerID == ""}
	if loc.ContainerID != "" {
		touched.containers = append(touched.containers, loc.ContainerID)
	}
	if loc.Kind == inventory.LocGrid {
		c := inv.Containers[loc.ContainerID]
		if !revalidate(c, it) {
			c.RemoveGridItem(it.ID)
			inv.AddToFloor(it)
			touched.root = true
			res.Warning = warnDemotedToFloor
		}
	}
	s.commitOwnerLocked(opID, inv, touched)
	return res, nil
}

// revalidate keeps a resized or rotated grid item where it is when the new
// footprint still fits, otherwise relocates it to the first free slot. It
// reports false when the container has no room at all.
func revalidate(c *inventory.Container, it *inventory.Item) bool {
	if it.Position != nil && c.CanPlaceAt(it, it.Position.X, it.Position.Y) == nil {
		return true
	}
	for y := 0; y+it.H <= c.GridHeight; y++ {
		for x := 0; x+it.W <= c.GridWidth; x++ {
			if c.CanPlaceAt(it, x, y) == nil {
				it.Position = &inventory.Point{X: x, Y: y}
				return true
			}
		}
	}
	return false
}

// AddItem creates a new item, first-fit in the named container or straight
// onto the floor when containerID is empty. Returns the item's id.
func (s *Session) AddItem(opID, ownerID, containerID string, src *inventory.Item) (string, Result, error) {
	s.mu.Lock()
	id, res, err := s.addItemLocked(opID, ownerID, containerID, src)
	s.mu.Unlock()
	if err == nil {
		s.notifyOwners([]string{ownerID})
	}
	return id, res, err
}

func (s *Session) addItemLocked(opID, ownerID, containerID string, src *inventory.Item) (string, Result, error) {
	if err := validateItem(src); err != nil {
		return "", Result{}, err
	}
	inv, err := s.ownerForEditLocked(ownerID)
	if err != nil {
		return "", Result{}, err
	}
	it := src.Clone()
	if it.ID == "" {
		it.ID = newItemID()
	}
	it.Position = nil
	if it.Stackable && it.Quantity < 1 {
		it.Quantity = 1
	}

	res := Result{}
	touched := touchSet{}
	if containerID == "" {
		inv.AddToFloor(it)
		touched.root = true
	} else {
		c := inv.Containers[containerID]
		if c == nil {
			return "", Result{}, ErrContainerNotFound
		}
		touched.containers = append(touched.containers, c.ID)
		if err := c.PlaceFirstFit(it); err != nil {
			inv.AddToFloor(it)
			touched.root = true
			res.Warning = warnDemotedToFloor
		}
	}
	s.commitOwnerLocked(opID, inv, touched)
	return it.ID, res, nil
}

// EditItem replaces an item's fields wholesale, keeping its location. A
// size change on a grid item is revalidated like a rotation.
func (s *Session) EditItem(opID, ownerID string, patch *inventory.Item) (Result, error) {
	s.mu.Lock()
	res, err := s.editItemLocked(opID, ownerID, patch)
	s.mu.Unlock()
	if err == nil {
		s.notifyOwners([]string{ownerID})
	}
	return res, err
}

func (s *Session) editItemLocked(opID, ownerID string, patch *inventory.Item) (Result, error) {
	if err := validateItem(patch); err != nil {
		return Result{}, err
	}
	inv, err := s.ownerForEditLocked(ownerID)
	if err != nil {
		return Result{}, err
	}
	it, loc, ok := inv.FindItem(patch.ID)
	if !ok {
		return Result{}, inventory.ErrItemNotFound
	}
	pos := it.Position
	*it = *patch.Clone()
	it.Position = pos
	if it.Stackable && it.Quantity < 1 {
		it.Quantity = 1
	}

	res := Result{}
	touched := touchSet{root: loc.ContainerID == ""}
	if loc.ContainerID != "" {
		touched.containers = append(touched.containers, loc.ContainerID)
	}
	if loc.Kind == inventory.LocGrid {
		c := inv.Containers[loc.ContainerID]
		if !revalidate(c, it) {
			c.RemoveGridItem(it.ID)
			inv.AddToFloor(it)
			touched.root = true
			res.Warning = warnDemotedToFloor
		}
	}
	s.commitOwnerLocked(opID, inv, touched)
	return res, nil
}

// DuplicateItem clones an item under a fresh id next to the original.
// Returns the new item's id.
func (s *Session) DuplicateItem(opID, ownerID, itemID string) (string, Result, error) {
	s.mu.Lock()
	id, res, err := s.duplicateLocked(opID, ownerID, itemID)
	s.mu.Unlock()
	if err == nil {
		s.notifyOwners([]string{ownerID})
	}
	return id, res, err
}

func (s *Session) duplicateLocked(opID, ownerID, itemID string) (string, Result, error) {
	inv, err := s.ownerForEditLocked(ownerID)
	if err != nil {
		return "", Result{}, err
	}
	it, loc, ok := inv.FindItem(itemID)
	if !ok {
		return "", Result{}, inventory.ErrItemNotFound
	}
	cp := it.Clone()
	cp.ID = newItemID()
	cp.Position = nil

	res := Result{}
	touched := touchSet{}
	switch loc.Kind {
	case inventory.LocGrid:
		c := inv.Containers[loc.ContainerID]
		touched.containers = append(touched.containers, c.ID)
		if err := c.PlaceFirstFit(cp); err != nil {
			if cid, ok := inv.PlaceAnywhere(cp); ok {
				touched.containers = append(touched.containers, cid)
			} else {
				touched.root = true
				res.Warning = warnDemotedToFloor
			}
		}
	case inventory.LocContainerTray:
		c := inv.Containers[loc.ContainerID]
		c.TrayItems = append(c.TrayItems, cp)
		touched.containers = append(touched.containers, c.ID)
	default:
		inv.AddToFloor(cp)
		touched.root = true
	}
	s.commitOwnerLocked(opID, inv, touched)
	return cp.ID, res, nil
}

// DeleteItem removes an item from whichever collection holds it.
func (s *Session) DeleteItem(opID, ownerID, itemID string) (Result, error) {
	s.mu.Lock()
	res, err := s.deleteLocked(opID, ownerID, itemID)
	s.mu.Unlock()
	if err == nil {
		s.notifyOwners([]string{ownerID})
	}
	return res, err
}

func (s *Session) deleteLocked(opID, ownerID, itemID string) (Result, error) {
	inv, err := s.ownerForEditLocked(ownerID)
	if err != nil {
		return Result{}, err
	}
	_, loc, ok := inv.RemoveItem(itemID)
	if !ok {
		return Result{}, inventory.ErrItemNotFound
	}
	touched := touchSet{root: loc.ContainerID == "", containers: containerOf(loc)}
	s.commitOwnerLocked(opID, inv, touched)
	return Result{}, nil
}

// SetWallet stores the wallet exactly as given; denominations are not
// rewritten until a deduction canonicalizes them.
func (s *Session) SetWallet(opID, ownerID string, w inventory.Wallet) (Result, error) {
	s.mu.Lock()
	res, err := s.setWalletLocked(opID, ownerID, w)
	s.mu.Unlock()
	if err == nil {
		s.notifyOwners([]string{ownerID})
	}
	return res, err
}

func (s *Session) setWalletLocked(opID, ownerID string, w inventory.Wallet) (Result, error) {
	if w.GP < 0 || w.SP < 0 || w.CP < 0 {
		return Result{}, ErrInvalid
	}
	inv, err := s.ownerForEditLocked(ownerID)
	if err != nil {
		return Result{}, err
	}
	inv.Currency = w
	s.commitOwnerLocked(opID, inv, touchSet{root: true})
	return Result{}, nil
}

// AdjustWallet applies a signed copper delta. Negative deltas go through
// the same deduction path a purchase uses and fail on insufficient funds.
func (s *Session) AdjustWallet(opID, ownerID string, deltaCopper int) (Result, error) {
	s.mu.Lock()
	res, err := s.adjustWalletLocked(opID, ownerID, deltaCopper)
	s.mu.Unlock()
	if err == nil {
		s.notifyOwners([]string{ownerID})
	}
	return res, err
}

func (s *Session) adjustWalletLocked(opID, ownerID string, deltaCopper int) (Result, error) {
	inv, err := s.ownerForEditLocked(ownerID)
	if err != nil {
		return Result{}, err
	}
	if deltaCopper < 0 {
		w, err := inventory.Deduct(inv.Currency, -deltaCopper)
		if err != nil {
			return Result{}, err
		}
		inv.Currency = w
	} else {
		inv.Currency = inventory.FromCopper(inv.Currency.Copper() + deltaCopper)
	}
	s.commitOwnerLocked(opID, inv, touchSet{root: true})
	return Result{}, nil
}

func validateItem(it *inventory.Item) error {
	if it == nil || it.Name == "" || it.W < 1 || it.H < 1 {
		return ErrInvalid
	}
	return nil
}
