package protocol

import "encoding/json"

// Intent operations.
const (
	OpMoveItem      = "MOVE_ITEM"
	OpEquip         = "EQUIP"
	OpUnequip       = "UNEQUIP"
	OpSplitStack    = "SPLIT_STACK"
	OpRotateItem    = "ROTATE_ITEM"
	OpAddItem       = "ADD_ITEM"
	OpEditItem      = "EDIT_ITEM"
	OpDuplicateItem = "DUPLICATE_ITEM"
	OpDeleteItem    = "DELETE_ITEM"
	OpSetWallet     = "SET_WALLET"
	OpAdjustWallet  = "ADJUST_WALLET"
	OpOfferTrade    = "OFFER_TRADE"
	OpAcceptTrade   = "ACCEPT_TRADE"
	OpDeclineTrade  = "DECLINE_TRADE"
)

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	CampaignID      string `json:"campaign_id"`
	ViewerID        string `json:"viewer_id"`
	ViewerName      string `json:"viewer_name,omitempty"`
	ViewerKind      string `json:"viewer_kind,omitempty"`
	JoinCode        string `json:"join_code,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	SessionID       string     `json:"session_id"`
	CampaignID      string     `json:"campaign_id"`
	ViewerID        string     `json:"viewer_id"`
	ViewerKind      string     `json:"viewer_kind"`
	GridParams      GridParams `json:"grid_params"`
	Owners          []OwnerRef `json:"owners,omitempty"`
}

// GridParams carries the placement engine's cell metadata so clients can size
// drag previews without asking per item.
type GridParams struct {
	CellSizePx        int `json:"cell_size_px"`
	DefaultGridWidth  int `json:"default_grid_width"`
	DefaultGridHeight int `json:"default_grid_height"`
}

type OwnerRef struct {
	OwnerID string `json:"owner_id"`
	Name    string `json:"name,omitempty"`
	Kind    string `json:"kind"`
}

// INTENT (client -> server): one user-originated mutation.
type IntentMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Op              string `json:"op"`

	OwnerID       string `json:"owner_id,omitempty"`
	ToOwnerID     string `json:"to_owner_id,omitempty"`
	ItemID        string `json:"item_id,omitempty"`
	ContainerID   string `json:"container_id,omitempty"`
	ToContainerID string `json:"to_container_id,omitempty"`
	ToLocation    string `json:"to_location,omitempty"` // grid | tray | equipped
	X             *int   `json:"x,omitempty"`
	Y             *int   `json:"y,omitempty"`
	Amount        int    `json:"amount,omitempty"`
	Delta         int    `json:"delta,omitempty"` // ADJUST_WALLET, copper, may be negative

	Item   json.RawMessage `json:"item,omitempty"`   // ADD_ITEM / EDIT_ITEM payload
	Wallet json.RawMessage `json:"wallet,omitempty"` // SET_WALLET payload

	TradeID   string `json:"trade_id,omitempty"`
	InviteeID string `json:"invitee_id,omitempty"`
}

// ACK (server -> client): the per-operation outcome. Warning carries recovered
// conditions (e.g. demoted to floor) for operations that still completed.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	Warning         string `json:"warning,omitempty"`
}

// CHANGE (server -> client): one document in the viewer's subscribed subtree
// changed or was deleted. Doc is the full post-change document (LWW store,
// no diffs on the wire).
type ChangeMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Path            string          `json:"path"`
	Doc             json.RawMessage `json:"doc,omitempty"`
	Deleted         bool            `json:"deleted,omitempty"`
	Rev             uint64          `json:"rev,omitempty"`
}
