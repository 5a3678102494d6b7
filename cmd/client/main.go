package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gridloot/internal/protocol"
)

// A terminal client for poking at a running server: performs the handshake,
// optionally fires one intent, then prints every ACK and CHANGE it receives.
func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		campaign = flag.String("campaign", "", "campaign id")
		joinCode = flag.String("join_code", "", "campaign join code (alternative to -campaign)")
		viewerID = flag.String("viewer", "cli", "viewer id")
		kind     = flag.String("kind", "player", "viewer kind (player or dm)")
		intent   = flag.String("intent", "", "intent JSON to send after WELCOME (op and fields; id filled in if absent)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[client] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		CampaignID:      *campaign,
		JoinCode:        *joinCode,
		ViewerID:        *viewerID,
		ViewerKind:      *kind,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME campaign=%s viewer=%s kind=%s session=%s", w.CampaignID, w.ViewerID, w.ViewerKind, w.SessionID)
			if *intent != "" {
				if err := sendIntent(conn, *intent); err != nil {
					logger.Fatalf("send INTENT: %v", err)
				}
			}

		case protocol.TypeAck:
			var a protocol.AckMsg
			if err := json.Unmarshal(msg, &a); err != nil {
				continue
			}
			if a.OK {
				logger.Printf("ACK ok ref=%s warning=%q", a.Ref, a.Warning)
			} else {
				logger.Printf("ACK fail ref=%s code=%s msg=%q", a.Ref, a.Code, a.Message)
			}

		case protocol.TypeChange:
			var c protocol.ChangeMsg
			if err := json.Unmarshal(msg, &c); err != nil {
				continue
			}
			if c.Deleted {
				logger.Printf("CHANGE deleted path=%s rev=%d", c.Path, c.Rev)
			} else {
				logger.Printf("CHANGE path=%s rev=%d doc=%s", c.Path, c.Rev, c.Doc)
			}
		}
	}
}

func sendIntent(conn *websocket.Conn, raw string) error {
	var in protocol.IntentMsg
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return err
	}
	in.Type = protocol.TypeIntent
	in.ProtocolVersion = protocol.Version
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	return conn.WriteJSON(in)
}
