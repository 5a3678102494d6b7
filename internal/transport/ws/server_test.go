package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"gridloot/internal/protocol"
	"gridloot/internal/store"
	"gridloot/internal/tuning"
)

func startTestServer(t *testing.T) (*store.Memory, string) {
	t.Helper()
	st := store.NewMemory()
	t.Cleanup(func() { st.Close() })

	logger := log.New(os.Stderr, "[ws-test] ", log.LstdFlags)
	srv := NewServer(st, tuning.Defaults(), logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", srv.Handler())
	hs := httptest.NewServer(mux)
	t.Cleanup(hs.Close)
	return st, "ws" + strings.TrimPrefix(hs.URL, "http") + "/v1/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func hello(t *testing.T, conn *websocket.Conn, campaignID, viewerID, kind string) protocol.WelcomeMsg {
	t.Helper()
	send(t, conn, protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		CampaignID:      campaignID,
		ViewerID:        viewerID,
		ViewerName:      viewerID,
		ViewerKind:      kind,
	})
	var welcome protocol.WelcomeMsg
	readTyped(t, conn, protocol.TypeWelcome, func(b []byte) bool {
		return json.Unmarshal(b, &welcome) == nil
	})
	return welcome
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readTyped scans inbound frames until one of the wanted type satisfies the
// predicate, skipping everything else (CHANGE traffic is interleaved).
func readTyped(t *testing.T, conn *websocket.Conn, wantType string, accept func([]byte) bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read while waiting for %s: %v", wantType, err)
		}
		base, err := protocol.DecodeBase(b)
		if err != nil || base.Type != wantType {
			continue
		}
		if accept(b) {
			return
		}
	}
	t.Fatalf("never received a matching %s", wantType)
}

func TestWS_HelloWelcomeAndIntent(t *testing.T) {
	_, url := startTestServer(t)

	dm := dial(t, url)
	welcome := hello(t, dm, "c1", "dm1", "dm")
	if welcome.CampaignID != "c1" || welcome.ViewerKind != "dm" {
		t.Fatalf("welcome wrong: %+v", welcome)
	}
	if welcome.GridParams.CellSizePx != tuning.Defaults().CellSizePx {
		t.Fatalf("grid params missing: %+v", welcome.GridParams)
	}

	player := dial(t, url)
	hello(t, player, "c1", "alice", "player")

	item := map[string]any{"name": "Rope", "width": 2, "height": 1}
	rawItem, _ := json.Marshal(item)
	send(t, player, protocol.IntentMsg{
		Type:            protocol.TypeIntent,
		ProtocolVersion: protocol.Version,
		ID:              "i1",
		Op:              protocol.OpAddItem,
		OwnerID:         "alice",
		ContainerID:     "pack",
		Item:            rawItem,
	})

	var ack protocol.AckMsg
	readTyped(t, player, protocol.TypeAck, func(b []byte) bool {
		return json.Unmarshal(b, &ack) == nil && ack.Ref == "i1"
	})
	if !ack.OK {
		t.Fatalf("add item should succeed: %+v", ack)
	}

	// The container change must be pushed back with the new item in it.
	readTyped(t, player, protocol.TypeChange, func(b []byte) bool {
		var ch protocol.ChangeMsg
		if json.Unmarshal(b, &ch) != nil {
			return false
		}
		return strings.HasSuffix(ch.Path, "/containers/pack") && strings.Contains(string(ch.Doc), "Rope")
	})
}

func TestWS_UnknownCampaignRejectsPlayers(t *testing.T) {
	_, url := startTestServer(t)

	conn := dial(t, url)
	send(t, conn, protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		CampaignID:      "nope",
		ViewerID:        "alice",
	})
	var ack protocol.AckMsg
	readTyped(t, conn, protocol.TypeAck, func(b []byte) bool {
		return json.Unmarshal(b, &ack) == nil
	})
	if ack.OK || ack.Code != protocol.ErrCampaignNotFound {
		t.Fatalf("want E_CAMPAIGN_NOT_FOUND, got %+v", ack)
	}
}

func TestWS_JoinByCode(t *testing.T) {
	st, url := startTestServer(t)

	dm := dial(t, url)
	hello(t, dm, "c1", "dm1", "dm")

	// The DM's join minted a code into the campaign meta document.
	doc, _, err := st.Get(context.Background(), store.CampaignMetaPath("c1"))
	if err != nil {
		t.Fatalf("meta doc: %v", err)
	}
	var code string
	if err := json.Unmarshal(doc["joinCode"], &code); err != nil || code == "" {
		t.Fatalf("join code missing: %v %q", err, code)
	}

	player := dial(t, url)
	send(t, player, protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		JoinCode:        code,
		ViewerID:        "alice",
	})
	var welcome protocol.WelcomeMsg
	readTyped(t, player, protocol.TypeWelcome, func(b []byte) bool {
		return json.Unmarshal(b, &welcome) == nil
	})
	if welcome.CampaignID != "c1" {
		t.Fatalf("join code should resolve to c1, got %q", welcome.CampaignID)
	}
}

func TestWS_MagicHiddenFromPlayers(t *testing.T) {
	_, url := startTestServer(t)

	dm := dial(t, url)
	hello(t, dm, "c1", "dm1", "dm")
	player := dial(t, url)
	hello(t, player, "c1", "alice", "player")

	item := map[string]any{"name": "Blade", "width": 1, "height": 1, "magic": "+1, cursed"}
	rawItem, _ := json.Marshal(item)
	send(t, dm, protocol.IntentMsg{
		Type:            protocol.TypeIntent,
		ProtocolVersion: protocol.Version,
		ID:              "i1",
		Op:              protocol.OpAddItem,
		OwnerID:         "alice",
		ContainerID:     "pack",
		Item:            rawItem,
	})

	// DM sees the magic text in the pushed change; the player does not.
	readTyped(t, dm, protocol.TypeChange, func(b []byte) bool {
		var ch protocol.ChangeMsg
		return json.Unmarshal(b, &ch) == nil && strings.Contains(string(ch.Doc), "cursed")
	})
	readTyped(t, player, protocol.TypeChange, func(b []byte) bool {
		var ch protocol.ChangeMsg
		if json.Unmarshal(b, &ch) != nil {
			return false
		}
		if !strings.Contains(string(ch.Doc), "Blade") {
			return false
		}
		if strings.Contains(string(ch.Doc), "cursed") {
			t.Fatalf("magic text leaked to a player: %s", ch.Doc)
		}
		return true
	})
}

func TestWS_TradeHandshake(t *testing.T) {
	_, url := startTestServer(t)

	dm := dial(t, url)
	hello(t, dm, "c1", "dm1", "dm")
	alice := dial(t, url)
	hello(t, alice, "c1", "alice", "player")
	bob := dial(t, url)
	hello(t, bob, "c1", "bob", "player")

	send(t, alice, protocol.IntentMsg{
		Type:            protocol.TypeIntent,
		ProtocolVersion: protocol.Version,
		ID:              "t1",
		Op:              protocol.OpOfferTrade,
		InviteeID:       "bob",
	})
	var ack protocol.AckMsg
	readTyped(t, alice, protocol.TypeAck, func(b []byte) bool {
		return json.Unmarshal(b, &ack) == nil && ack.Ref == "t1"
	})
	if !ack.OK {
		t.Fatalf("offer: %+v", ack)
	}

	// Bob sees the pending trade and accepts it.
	var tradeID string
	readTyped(t, bob, protocol.TypeChange, func(b []byte) bool {
		var ch protocol.ChangeMsg
		if json.Unmarshal(b, &ch) != nil {
			return false
		}
		camp, id, ok := store.ParseTradePath(ch.Path)
		if !ok || camp != "c1" {
			return false
		}
		tradeID = id
		return strings.Contains(string(ch.Doc), `"pending"`)
	})

	send(t, bob, protocol.IntentMsg{
		Type:            protocol.TypeIntent,
		ProtocolVersion: protocol.Version,
		ID:              "t2",
		Op:              protocol.OpAcceptTrade,
		TradeID:         tradeID,
	})
	readTyped(t, bob, protocol.TypeAck, func(b []byte) bool {
		return json.Unmarshal(b, &ack) == nil && ack.Ref == "t2"
	})
	if !ack.OK {
		t.Fatalf("accept: %+v", ack)
	}

	// Declining afterwards deletes the document for both parties.
	send(t, alice, protocol.IntentMsg{
		Type:            protocol.TypeIntent,
		ProtocolVersion: protocol.Version,
		ID:              "t3",
		Op:              protocol.OpDeclineTrade,
		TradeID:         tradeID,
	})
	readTyped(t, alice, protocol.TypeChange, func(b []byte) bool {
		var ch protocol.ChangeMsg
		if json.Unmarshal(b, &ch) != nil {
			return false
		}
		_, id, ok := store.ParseTradePath(ch.Path)
		return ok && id == tradeID && ch.Deleted
	})
}
