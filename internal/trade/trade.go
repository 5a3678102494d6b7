package trade

import (
	"errors"

	"gridloot/internal/store"
)

// State is the lifecycle position of a trade handshake. A declined trade
// has no state: its document is deleted outright.
type State string

const (
	StatePending State = "pending"
	StateActive  State = "active"
)

// Trade is one invitation between two participants. FromID proposed it,
// ToID decides its fate while pending.
type Trade struct {
	ID         string
	CampaignID string
	FromID     string
	ToID       string
	State      State
}

var (
	ErrNotFound   = errors.New("trade not found")
	ErrSelfTrade  = errors.New("cannot trade with yourself")
	ErrNotInvitee = errors.New("only the invited party may answer")
	ErrNotParty   = errors.New("not a party to this trade")
	ErrBadState   = errors.New("trade is not pending")
)

func tradeDoc(t *Trade) store.Document {
	return store.Document{
		"id":     store.Field(t.ID),
		"fromId": store.Field(t.FromID),
		"toId":   store.Field(t.ToID),
		"state":  store.Field(string(t.State)),
	}
}

func decodeTrade(campaignID, tradeID string, doc store.Document) (*Trade, error) {
	t := &Trade{ID: tradeID, CampaignID: campaignID}
	var state string
	for key, out := range map[string]*string{
		"fromId": &t.FromID,
		"toId":   &t.ToID,
		"state":  &state,
	} {
		raw, ok := doc[key]
		if !ok {
			continue
		}
		if err := unmarshalField(raw, out); err != nil {
			return nil, err
		}
	}
	t.State = State(state)
	if t.State != StatePending && t.State != StateActive {
		return nil, errors.New("unknown trade state " + state)
	}
	return t, nil
}
