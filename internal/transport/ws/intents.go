package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gridloot/internal/engine"
	"gridloot/internal/inventory"
	"gridloot/internal/protocol"
	"gridloot/internal/trade"
)

var errCampaignNotFound = errors.New("campaign not found")

// dispatch routes one INTENT to the engine or the trade manager and builds
// its ACK. Mutations are applied optimistically: an ok ACK means the local
// apply succeeded; if persistence later fails the rollback pushes a second,
// failed ACK with the same ref.
func (c *conn) dispatch(in protocol.IntentMsg) protocol.AckMsg {
	ack := protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		Ref:             in.ID,
	}

	var (
		res engine.Result
		err error
	)
	switch in.Op {
	case protocol.OpMoveItem:
		res, err = c.moveIntent(in)
	case protocol.OpEquip:
		res, err = c.session.Equip(in.ID, in.OwnerID, in.ItemID)
	case protocol.OpUnequip:
		res, err = c.session.Unequip(in.ID, in.OwnerID, in.ItemID)
	case protocol.OpSplitStack:
		_, res, err = c.session.SplitStack(in.ID, in.OwnerID, in.ItemID, in.Amount)
	case protocol.OpRotateItem:
		res, err = c.session.RotateItem(in.ID, in.OwnerID, in.ItemID)
	case protocol.OpAddItem:
		var it inventory.Item
		if uerr := json.Unmarshal(in.Item, &it); uerr != nil {
			err = engine.ErrInvalid
			break
		}
		_, res, err = c.session.AddItem(in.ID, in.OwnerID, in.ContainerID, &it)
	case protocol.OpEditItem:
		var it inventory.Item
		if uerr := json.Unmarshal(in.Item, &it); uerr != nil {
			err = engine.ErrInvalid
			break
		}
		res, err = c.session.EditItem(in.ID, in.OwnerID, &it)
	case protocol.OpDuplicateItem:
		_, res, err = c.session.DuplicateItem(in.ID, in.OwnerID, in.ItemID)
	case protocol.OpDeleteItem:
		res, err = c.session.DeleteItem(in.ID, in.OwnerID, in.ItemID)
	case protocol.OpSetWallet:
		var w inventory.Wallet
		if uerr := json.Unmarshal(in.Wallet, &w); uerr != nil {
			err = engine.ErrInvalid
			break
		}
		res, err = c.session.SetWallet(in.ID, in.OwnerID, w)
	case protocol.OpAdjustWallet:
		res, err = c.session.AdjustWallet(in.ID, in.OwnerID, in.Delta)
	case protocol.OpOfferTrade, protocol.OpAcceptTrade, protocol.OpDeclineTrade:
		err = c.tradeIntent(in)
	default:
		err = engine.ErrInvalid
	}

	if err != nil {
		ack.Code = ackCode(err)
		ack.Message = err.Error()
		return ack
	}
	ack.OK = true
	ack.Warning = res.Warning
	return ack
}

func (c *conn) moveIntent(in protocol.IntentMsg) (engine.Result, error) {
	toOwner := in.ToOwnerID
	if toOwner == "" {
		toOwner = in.OwnerID
	}
	if in.ToLocation == "equipped" {
		return c.session.Equip(in.ID, in.OwnerID, in.ItemID)
	}
	req := engine.MoveRequest{
		OpID:      in.ID,
		FromOwner: in.OwnerID,
		ToOwner:   toOwner,
		ItemID:    in.ItemID,
		X:         in.X,
		Y:         in.Y,
	}
	switch in.ToLocation {
	case "", "grid":
		req.ToContainer = in.ToContainerID
	case "tray":
		req.ToContainer = in.ToContainerID
		req.ToContainerTray = in.ToContainerID != ""
		req.X, req.Y = nil, nil
	default:
		return engine.Result{}, engine.ErrInvalid
	}
	return c.session.MoveItem(req)
}

func (c *conn) tradeIntent(in protocol.IntentMsg) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	switch in.Op {
	case protocol.OpOfferTrade:
		_, err := c.trades.Propose(ctx, in.InviteeID)
		return err
	case protocol.OpAcceptTrade:
		return c.trades.Accept(ctx, in.TradeID)
	default:
		return c.trades.Decline(ctx, in.TradeID)
	}
}

func ackCode(err error) string {
	var pe *engine.PersistenceError
	switch {
	case errors.Is(err, inventory.ErrOutOfBounds):
		return protocol.ErrOutOfBounds
	case errors.Is(err, inventory.ErrCollision):
		return protocol.ErrCollision
	case errors.Is(err, inventory.ErrNoSpace):
		return protocol.ErrNoSpace
	case errors.Is(err, inventory.ErrStackFull):
		return protocol.ErrStackFull
	case errors.Is(err, inventory.ErrInsufficientFunds):
		return protocol.ErrInsufficientFunds
	case errors.Is(err, inventory.ErrItemNotFound):
		return protocol.ErrItemNotFound
	case errors.Is(err, engine.ErrPermission),
		errors.Is(err, trade.ErrNotInvitee),
		errors.Is(err, trade.ErrNotParty):
		return protocol.ErrNoPermission
	case errors.Is(err, trade.ErrNotFound):
		return protocol.ErrTradeNotFound
	case errors.Is(err, errCampaignNotFound):
		return protocol.ErrCampaignNotFound
	case errors.Is(err, engine.ErrInvalid),
		errors.Is(err, engine.ErrOwnerNotFound),
		errors.Is(err, engine.ErrContainerNotFound),
		errors.Is(err, trade.ErrSelfTrade),
		errors.Is(err, trade.ErrBadState):
		return protocol.ErrBadRequest
	case errors.As(err, &pe):
		return protocol.ErrPersistence
	default:
		return protocol.ErrInternal
	}
}
