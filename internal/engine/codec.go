package engine

import (
	"encoding/json"
	"fmt"

	"gridloot/internal/inventory"
	"gridloot/internal/store"
)

// Persisted inventory document:
//
//	{ characterName, ownerId, trayItems, equippedItems, currency:{gp,sp,cp},
//	  totalMaxWeight, weightUnit, containerOrder, isMerchant?, isLootPile?,
//	  isVisibleToPlayers? }
//
// with nested container documents
//
//	{ name, gridWidth, gridHeight, gridItems, trayItems?, trackWeight }
//
// Owner kind is not stored as an enum: merchant and loot-pile inventories
// carry their role flag, everything else reads back as a player inventory
// (the DM's kind is a property of the viewer, not of a document).

func inventoryDoc(inv *inventory.Inventory) store.Document {
	doc := store.Document{
		"characterName":  store.Field(inv.CharacterName),
		"ownerId":        store.Field(inv.OwnerID),
		"trayItems":      store.Field(itemsOrEmpty(inv.TrayItems)),
		"equippedItems":  store.Field(itemsOrEmpty(inv.EquippedItems)),
		"currency":       store.Field(inv.Currency),
		"totalMaxWeight": store.Field(inv.TotalMaxWeight),
		"weightUnit":     store.Field(inv.WeightUnit),
		"containerOrder": store.Field(inv.ContainerOrder),
	}
	switch inv.Kind {
	case inventory.KindMerchant:
		doc["isMerchant"] = store.Field(true)
		doc["isVisibleToPlayers"] = store.Field(inv.VisibleToPlayers)
	case inventory.KindLootPile:
		doc["isLootPile"] = store.Field(true)
		doc["isVisibleToPlayers"] = store.Field(inv.VisibleToPlayers)
	}
	return doc
}

func containerDoc(c *inventory.Container) store.Document {
	return store.Document{
		"name":        store.Field(c.Name),
		"gridWidth":   store.Field(c.GridWidth),
		"gridHeight":  store.Field(c.GridHeight),
		"gridItems":   store.Field(itemsOrEmpty(c.GridItems)),
		"trayItems":   store.Field(itemsOrEmpty(c.TrayItems)),
		"trackWeight": store.Field(c.TrackWeight),
	}
}

func itemsOrEmpty(items []*inventory.Item) []*inventory.Item {
	if items == nil {
		return []*inventory.Item{}
	}
	return items
}

func decodeInventory(ownerID string, doc store.Document) (*inventory.Inventory, error) {
	inv := &inventory.Inventory{
		OwnerID:    ownerID,
		Kind:       inventory.KindPlayer,
		Containers: make(map[string]*inventory.Container),
	}
	if err := decodeField(doc, "characterName", &inv.CharacterName); err != nil {
		return nil, err
	}
	if err := decodeField(doc, "trayItems", &inv.TrayItems); err != nil {
		return nil, err
	}
	if err := decodeField(doc, "equippedItems", &inv.EquippedItems); err != nil {
		return nil, err
	}
	if err := decodeField(doc, "currency", &inv.Currency); err != nil {
		return nil, err
	}
	if err := decodeField(doc, "totalMaxWeight", &inv.TotalMaxWeight); err != nil {
		return nil, err
	}
	if err := decodeField(doc, "weightUnit", &inv.WeightUnit); err != nil {
		return nil, err
	}
	if err := decodeField(doc, "containerOrder", &inv.ContainerOrder); err != nil {
		return nil, err
	}
	var isMerchant, isLootPile bool
	if err := decodeField(doc, "isMerchant", &isMerchant); err != nil {
		return nil, err
	}
	if err := decodeField(doc, "isLootPile", &isLootPile); err != nil {
		return nil, err
	}
	switch {
	case isMerchant:
		inv.Kind = inventory.KindMerchant
	case isLootPile:
		inv.Kind = inventory.KindLootPile
	}
	if err := decodeField(doc, "isVisibleToPlayers", &inv.VisibleToPlayers); err != nil {
		return nil, err
	}
	return inv, nil
}

func decodeContainer(containerID string, doc store.Document) (*inventory.Container, error) {
	c := &inventory.Container{ID: containerID}
	if err := decodeField(doc, "name", &c.Name); err != nil {
		return nil, err
	}
	if err := decodeField(doc, "gridWidth", &c.GridWidth); err != nil {
		return nil, err
	}
	if err := decodeField(doc, "gridHeight", &c.GridHeight); err != nil {
		return nil, err
	}
	if err := decodeField(doc, "gridItems", &c.GridItems); err != nil {
		return nil, err
	}
	if err := decodeField(doc, "trayItems", &c.TrayItems); err != nil {
		return nil, err
	}
	if err := decodeField(doc, "trackWeight", &c.TrackWeight); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeField(doc store.Document, key string, out any) error {
	raw, ok := doc[key]
	if !ok || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("field %s: %w", key, err)
	}
	return nil
}
