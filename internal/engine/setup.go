package engine

import (
	"context"
	"errors"

	"gridloot/internal/inventory"
	"gridloot/internal/store"
)

// EnsureInventory creates an owner's documents if they do not exist yet.
// Existing documents are left untouched, so concurrent clients racing to
// create the same loot pile converge on one inventory. The local replica
// picks the result up through the normal subscription.
func (s *Session) EnsureInventory(ctx context.Context, ownerID, name string, kind inventory.OwnerKind, containers []*inventory.Container) error {
	s.mu.Lock()
	exists := s.invs[ownerID] != nil
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if exists {
		return nil
	}

	root := store.InventoryPath(s.cfg.CampaignID, ownerID)
	if _, _, err := s.st.Get(ctx, root); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return &PersistenceError{Op: "ensure inventory", Err: err}
	}

	inv := &inventory.Inventory{
		OwnerID:          ownerID,
		CharacterName:    name,
		Kind:             kind,
		Containers:       map[string]*inventory.Container{},
		VisibleToPlayers: kind.Shared(),
	}
	for _, c := range containers {
		inv.Containers[c.ID] = c
		inv.ContainerOrder = append(inv.ContainerOrder, c.ID)
	}

	if err := s.st.SetMerge(ctx, root, inventoryDoc(inv)); err != nil {
		return &PersistenceError{Op: "ensure inventory", Err: err}
	}
	for _, c := range inv.OrderedContainers() {
		path := store.ContainerPath(s.cfg.CampaignID, ownerID, c.ID)
		if err := s.st.SetMerge(ctx, path, containerDoc(c)); err != nil {
			return &PersistenceError{Op: "ensure container", Err: err}
		}
	}
	return nil
}

// EnsureLootPile lazily creates a shared loot pile with a single grid the
// first time something is dropped into it.
func (s *Session) EnsureLootPile(ctx context.Context, ownerID, name string, gridW, gridH int) error {
	c := &inventory.Container{
		ID:         "pile",
		Name:       name,
		GridWidth:  gridW,
		GridHeight: gridH,
	}
	return s.EnsureInventory(ctx, ownerID, name, inventory.KindLootPile, []*inventory.Container{c})
}
