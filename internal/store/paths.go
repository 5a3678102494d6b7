package store

import "strings"

// Document paths form a small fixed hierarchy:
//
//	campaigns/<campaign>/inventories/<owner>
//	campaigns/<campaign>/inventories/<owner>/containers/<container>
//	campaigns/<campaign>/trades/<trade>
//	campaigns/<campaign>/meta

func InventoryPath(campaignID, ownerID string) string {
	return "campaigns/" + campaignID + "/inventories/" + ownerID
}

func ContainerPath(campaignID, ownerID, containerID string) string {
	return InventoryPath(campaignID, ownerID) + "/containers/" + containerID
}

func TradePath(campaignID, tradeID string) string {
	return "campaigns/" + campaignID + "/trades/" + tradeID
}

func CampaignMetaPath(campaignID string) string {
	return "campaigns/" + campaignID + "/meta"
}

func InventoriesPrefix(campaignID string) string {
	return "campaigns/" + campaignID + "/inventories"
}

func TradesPrefix(campaignID string) string {
	return "campaigns/" + campaignID + "/trades"
}

// OwnerSubtreePath is the root of one owner's document tree, the unit a
// viewer subscribes to.
func OwnerSubtreePath(campaignID, ownerID string) string {
	return InventoryPath(campaignID, ownerID)
}

// ParseInventoryPath splits an inventory or container path. containerID is
// empty for the inventory root document.
func ParseInventoryPath(path string) (campaignID, ownerID, containerID string, ok bool) {
	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 4 && parts[0] == "campaigns" && parts[2] == "inventories":
		return parts[1], parts[3], "", true
	case len(parts) == 6 && parts[0] == "campaigns" && parts[2] == "inventories" && parts[4] == "containers":
		return parts[1], parts[3], parts[5], true
	default:
		return "", "", "", false
	}
}

// ParseTradePath splits a trade document path.
func ParseTradePath(path string) (campaignID, tradeID string, ok bool) {
	parts := strings.Split(path, "/")
	if len(parts) == 4 && parts[0] == "campaigns" && parts[2] == "trades" {
		return parts[1], parts[3], true
	}
	return "", "", false
}

// Covers reports whether a subscription rooted at prefix matches path.
func Covers(prefix, path string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
