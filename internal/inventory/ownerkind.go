package inventory

// OwnerKind is the closed set of inventory subjects. Placement, visibility
// and editability rules are pure functions over it rather than scattered
// boolean checks.
type OwnerKind string

const (
	KindPlayer        OwnerKind = "player"
	KindDungeonMaster OwnerKind = "dm"
	KindMerchant      OwnerKind = "merchant"
	KindLootPile      OwnerKind = "lootpile"
)

func ParseOwnerKind(s string) (OwnerKind, bool) {
	switch OwnerKind(s) {
	case KindPlayer, KindDungeonMaster, KindMerchant, KindLootPile:
		return OwnerKind(s), true
	default:
		return "", false
	}
}

// Shared reports whether the inventory is a communal surface any participant
// may pull from.
func (k OwnerKind) Shared() bool {
	return k == KindMerchant || k == KindLootPile
}

// SellsItems reports whether moving an item out of this owner's inventory is
// a purchase for a different destination owner.
func (k OwnerKind) SellsItems() bool {
	return k == KindMerchant
}

// CanEdit decides whether a viewer may mutate the owner's inventory. The DM
// edits everything; everyone edits shared piles; otherwise only the subject
// themself.
func CanEdit(viewerKind OwnerKind, viewerID string, ownerKind OwnerKind, ownerID string) bool {
	if viewerKind == KindDungeonMaster {
		return true
	}
	if ownerKind.Shared() {
		return true
	}
	return viewerID == ownerID
}

// CanSeeMagic gates the DM-only magic payload: the DM always sees it, other
// viewers only once it has been revealed.
func CanSeeMagic(viewerKind OwnerKind, it *Item) bool {
	if viewerKind == KindDungeonMaster {
		return true
	}
	return it.MagicVisible
}

// CanSeeInventory decides whether a viewer may see the owner's inventory at
// all. Merchant and loot-pile inventories are gated on their visibility flag
// for non-DM viewers.
func CanSeeInventory(viewerKind OwnerKind, viewerID string, inv *Inventory) bool {
	if viewerKind == KindDungeonMaster {
		return true
	}
	if inv.Kind.Shared() {
		return inv.VisibleToPlayers
	}
	return true
}
