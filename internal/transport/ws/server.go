package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gridloot/internal/engine"
	"gridloot/internal/inventory"
	"gridloot/internal/protocol"
	"gridloot/internal/store"
	"gridloot/internal/trade"
	"gridloot/internal/tuning"
)

// Server upgrades connections, runs the HELLO/WELCOME handshake, then
// bridges one engine session and one trade manager per connection: INTENT
// in, ACK and CHANGE out.
type Server struct {
	st  store.Store
	tun tuning.Tuning
	log *log.Logger

	upgrader websocket.Upgrader

	connsActive atomic.Int64
	connsTotal  atomic.Int64
	intents     atomic.Int64
	acksFailed  atomic.Int64
}

// Metrics is a point-in-time snapshot of the transport counters.
type Metrics struct {
	ConnsActive int64
	ConnsTotal  int64
	Intents     int64
	AcksFailed  int64
}

func (s *Server) Metrics() Metrics {
	return Metrics{
		ConnsActive: s.connsActive.Load(),
		ConnsTotal:  s.connsTotal.Load(),
		Intents:     s.intents.Load(),
		AcksFailed:  s.acksFailed.Load(),
	}
}

func NewServer(st store.Store, tun tuning.Tuning, logger *log.Logger) *Server {
	return &Server{
		st:  st,
		tun: tun,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := s.handshake(conn)
		if c == nil {
			return
		}
		s.connsTotal.Add(1)
		s.connsActive.Add(1)
		defer s.connsActive.Add(-1)
		defer c.close()
		c.run(conn)
	}
}

// conn is the per-connection state after a successful handshake.
type conn struct {
	srv     *Server
	session *engine.Session
	trades  *trade.Manager

	viewerID   string
	viewerKind inventory.OwnerKind
	campaignID string

	out         chan []byte
	cancel      context.CancelFunc
	unsubInv    func()
	unsubTrades func()
}

func (s *Server) handshake(wc *websocket.Conn) *conn {
	_ = wc.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := wc.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closePolicy(wc, "expected HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closePolicy(wc, "bad protocol_version")
		return nil
	}
	if hello.ViewerID == "" {
		closePolicy(wc, "viewer_id required")
		return nil
	}
	kind := inventory.KindPlayer
	if hello.ViewerKind != "" {
		k, ok := inventory.ParseOwnerKind(hello.ViewerKind)
		if !ok || (k != inventory.KindPlayer && k != inventory.KindDungeonMaster) {
			closePolicy(wc, "bad viewer_kind")
			return nil
		}
		kind = k
	}

	ctx, cancelCtx := context.WithTimeout(context.Background(), 10*time.Second)
	campaignID, err := s.resolveCampaign(ctx, hello, kind)
	cancelCtx()
	if err != nil {
		_ = writeJSON(wc, protocol.AckMsg{
			Type:            protocol.TypeAck,
			ProtocolVersion: protocol.Version,
			Ref:             "HELLO",
			Code:            ackCode(err),
			Message:         err.Error(),
		})
		return nil
	}

	session := engine.NewSession(s.st, engine.Config{
		CampaignID:            campaignID,
		ViewerID:              hello.ViewerID,
		ViewerKind:            kind,
		MerchantStockInfinite: s.tun.MerchantStockInfinite,
		PersistTimeout:        time.Duration(s.tun.PersistTimeoutMs) * time.Millisecond,
		Logger:                s.log,
	})
	trades := trade.NewManager(s.st, trade.Config{
		CampaignID: campaignID,
		ViewerID:   hello.ViewerID,
		Logger:     s.log,
	})

	c := &conn{
		srv:        s,
		session:    session,
		trades:     trades,
		viewerID:   hello.ViewerID,
		viewerKind: kind,
		campaignID: campaignID,
		out:        make(chan []byte, 256),
	}

	// Players get a default inventory on first join.
	if kind == inventory.KindPlayer {
		ctx, cancelCtx := context.WithTimeout(context.Background(), 10*time.Second)
		err := session.EnsureInventory(ctx, hello.ViewerID, hello.ViewerName, kind, []*inventory.Container{{
			ID:         "pack",
			Name:       "Backpack",
			GridWidth:  s.tun.DefaultGridWidth,
			GridHeight: s.tun.DefaultGridHeight,
		}})
		cancelCtx()
		if err != nil {
			s.log.Printf("ensure inventory %s: %v", hello.ViewerID, err)
			c.close()
			return nil
		}
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		CampaignID:      campaignID,
		ViewerID:        hello.ViewerID,
		ViewerKind:      string(kind),
		GridParams: protocol.GridParams{
			CellSizePx:        s.tun.CellSizePx,
			DefaultGridWidth:  s.tun.DefaultGridWidth,
			DefaultGridHeight: s.tun.DefaultGridHeight,
		},
	}
	if err := writeJSON(wc, welcome); err != nil {
		c.close()
		return nil
	}
	return c
}

// resolveCampaign maps the HELLO to a campaign. A DM joining an unknown
// campaign creates it, minting a join code; players may join by id or code
// but never create.
func (s *Server) resolveCampaign(ctx context.Context, hello protocol.HelloMsg, kind inventory.OwnerKind) (string, error) {
	if hello.CampaignID != "" {
		_, _, err := s.st.Get(ctx, store.CampaignMetaPath(hello.CampaignID))
		if err == nil {
			return hello.CampaignID, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
		if kind != inventory.KindDungeonMaster {
			return "", errCampaignNotFound
		}
		code := strings.Split(uuid.NewString(), "-")[0]
		err = s.st.SetMerge(ctx, store.CampaignMetaPath(hello.CampaignID), store.Document{
			"joinCode":  store.Field(code),
			"createdBy": store.Field(hello.ViewerID),
		})
		if err != nil {
			return "", err
		}
		return hello.CampaignID, nil
	}

	if hello.JoinCode == "" {
		return "", errCampaignNotFound
	}
	// Join codes are rare lookups over a small campaign count; a scan of
	// the meta documents is fine.
	docs, err := s.st.List(ctx, "campaigns")
	if err != nil {
		return "", err
	}
	for _, d := range docs {
		campaignID, ok := parseMetaPath(d.Path)
		if !ok {
			continue
		}
		var code string
		if raw, ok := d.Doc["joinCode"]; ok {
			_ = json.Unmarshal(raw, &code)
		}
		if code != "" && code == hello.JoinCode {
			return campaignID, nil
		}
	}
	return "", errCampaignNotFound
}

func parseMetaPath(path string) (string, bool) {
	parts := strings.Split(path, "/")
	if len(parts) == 3 && parts[0] == "campaigns" && parts[2] == "meta" {
		return parts[1], true
	}
	return "", false
}

// run pumps the connection until either side drops.
func (c *conn) run(wc *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	defer cancel()

	c.session.OnRollback = func(opID string, err error) {
		c.srv.acksFailed.Add(1)
		c.sendAck(protocol.AckMsg{
			Type:            protocol.TypeAck,
			ProtocolVersion: protocol.Version,
			Ref:             opID,
			Code:            protocol.ErrPersistence,
			Message:         "operation rolled back: " + err.Error(),
		})
	}
	c.subscribeChanges()

	// Writer goroutine.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case b, ok := <-c.out:
				if !ok {
					return
				}
				_ = wc.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := wc.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	// Reader loop.
	for {
		_ = wc.SetReadDeadline(time.Now().Add(120 * time.Second))
		_, msg, err := wc.ReadMessage()
		if err != nil {
			cancel()
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil || base.Type != protocol.TypeIntent {
			continue
		}
		var intent protocol.IntentMsg
		if err := json.Unmarshal(msg, &intent); err != nil {
			continue
		}
		if intent.ProtocolVersion != protocol.Version {
			continue
		}
		c.srv.intents.Add(1)
		ack := c.dispatch(intent)
		if !ack.OK {
			c.srv.acksFailed.Add(1)
		}
		c.sendAck(ack)
	}
}

func (c *conn) close() {
	if c.unsubInv != nil {
		c.unsubInv()
	}
	if c.unsubTrades != nil {
		c.unsubTrades()
	}
	c.trades.Close()
	c.session.Close()
}

// send queues an outbound frame; a consumer too slow to drain the buffer
// loses the connection rather than stalling the store fanout.
func (c *conn) send(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.out <- b:
	default:
		if c.cancel != nil {
			c.cancel()
		}
	}
}

func (c *conn) sendAck(ack protocol.AckMsg) { c.send(ack) }

func closePolicy(wc *websocket.Conn, reason string) {
	_ = wc.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func writeJSON(wc *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = wc.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return wc.WriteMessage(websocket.TextMessage, b)
}
