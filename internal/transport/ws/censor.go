package ws

import (
	"encoding/json"

	"gridloot/internal/inventory"
	"gridloot/internal/protocol"
	"gridloot/internal/store"
)

// The CHANGE stream pushes raw store documents, so the DM-only views are
// enforced here: hidden merchant and loot-pile inventories are withheld
// from players, and unrevealed magic text is stripped before a document
// leaves the server.

func (c *conn) subscribeChanges() {
	c.unsubInv = c.srv.st.Subscribe(store.InventoriesPrefix(c.campaignID), c.onInventoryDoc, c.onStreamError)
	c.unsubTrades = c.srv.st.Subscribe(store.TradesPrefix(c.campaignID), c.onTradeDoc, c.onStreamError)
}

func (c *conn) onInventoryDoc(ch store.Change) {
	_, ownerID, containerID, ok := store.ParseInventoryPath(ch.Path)
	if !ok {
		return
	}
	doc := ch.Doc
	if c.viewerKind != inventory.KindDungeonMaster {
		if !ch.Deleted && !c.docVisible(ownerID, containerID, doc) {
			return
		}
		doc = censorItems(doc)
	}
	c.send(changeMsg(ch, doc))
}

func (c *conn) onTradeDoc(ch store.Change) {
	if c.viewerKind != inventory.KindDungeonMaster && !ch.Deleted {
		var from, to string
		if raw, ok := ch.Doc["fromId"]; ok {
			_ = json.Unmarshal(raw, &from)
		}
		if raw, ok := ch.Doc["toId"]; ok {
			_ = json.Unmarshal(raw, &to)
		}
		if from != c.viewerID && to != c.viewerID {
			return
		}
	}
	c.send(changeMsg(ch, ch.Doc))
}

func (c *conn) onStreamError(err error) {
	c.srv.log.Printf("change stream (%s): %v", c.viewerID, err)
}

// docVisible applies the shared-inventory visibility flag. Root documents
// carry their own flags; container documents defer to the session's replica
// of the owner.
func (c *conn) docVisible(ownerID, containerID string, doc store.Document) bool {
	if containerID == "" {
		var shared, visible bool
		for _, key := range []string{"isMerchant", "isLootPile"} {
			var b bool
			if raw, ok := doc[key]; ok {
				_ = json.Unmarshal(raw, &b)
			}
			shared = shared || b
		}
		if raw, ok := doc["isVisibleToPlayers"]; ok {
			_ = json.Unmarshal(raw, &visible)
		}
		return !shared || visible
	}
	_, ok := c.session.Inventory(ownerID)
	return ok
}

// censorItems strips unrevealed magic from every item list field.
func censorItems(doc store.Document) store.Document {
	out := doc.Clone()
	for _, key := range []string{"gridItems", "trayItems", "equippedItems"} {
		raw, ok := out[key]
		if !ok {
			continue
		}
		var items []*inventory.Item
		if err := json.Unmarshal(raw, &items); err != nil {
			continue
		}
		changed := false
		for _, it := range items {
			if it.Magic != "" && !it.MagicVisible {
				it.Magic = ""
				changed = true
			}
		}
		if !changed {
			continue
		}
		b, err := json.Marshal(items)
		if err != nil {
			continue
		}
		out[key] = b
	}
	return out
}

func changeMsg(ch store.Change, doc store.Document) protocol.ChangeMsg {
	msg := protocol.ChangeMsg{
		Type:            protocol.TypeChange,
		ProtocolVersion: protocol.Version,
		Path:            ch.Path,
		Deleted:         ch.Deleted,
		Rev:             ch.Rev,
	}
	if !ch.Deleted {
		if b, err := json.Marshal(doc); err == nil {
			msg.Doc = b
		}
	}
	return msg
}
