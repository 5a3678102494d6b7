package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Campaign routing.
	ErrCampaignNotFound = "E_CAMPAIGN_NOT_FOUND"
	ErrNoPermission     = "E_NO_PERMISSION"

	// Placement/stacking rules.
	ErrBadRequest  = "E_BAD_REQUEST"
	ErrOutOfBounds = "E_OUT_OF_BOUNDS"
	ErrCollision   = "E_COLLISION"
	ErrNoSpace     = "E_NO_SPACE"
	ErrStackFull   = "E_STACK_FULL"

	// Commerce.
	ErrInsufficientFunds = "E_INSUFFICIENT_FUNDS"

	// Lookup.
	ErrItemNotFound  = "E_ITEM_NOT_FOUND"
	ErrTradeNotFound = "E_TRADE_NOT_FOUND"

	// Store.
	ErrPersistence = "E_PERSISTENCE"
	ErrStale       = "E_STALE"
	ErrInternal    = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:   {},
	ErrCampaignNotFound:  {},
	ErrNoPermission:      {},
	ErrBadRequest:        {},
	ErrOutOfBounds:       {},
	ErrCollision:         {},
	ErrNoSpace:           {},
	ErrStackFull:         {},
	ErrInsufficientFunds: {},
	ErrItemNotFound:      {},
	ErrTradeNotFound:     {},
	ErrPersistence:       {},
	ErrStale:             {},
	ErrInternal:          {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
