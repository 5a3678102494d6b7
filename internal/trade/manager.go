package trade

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"

	"gridloot/internal/store"
)

// Config describes the viewer driving a Manager.
type Config struct {
	CampaignID string
	ViewerID   string
	Logger     *log.Logger
}

// Manager tracks the trade documents of one campaign for one viewer and
// runs the invitation handshake: propose creates a pending document,
// accept flips it active, decline deletes it. Writes are synchronous;
// trades are low-frequency control traffic, not item mutations.
type Manager struct {
	cfg Config
	st  store.Store

	mu          sync.Mutex
	closed      bool
	trades      map[string]*Trade
	unsubscribe func()

	// OnTradeChange fires outside mu whenever a trade document appears,
	// changes, or is deleted. Optional.
	OnTradeChange func(t *Trade, deleted bool)
}

func NewManager(st store.Store, cfg Config) *Manager {
	m := &Manager{
		cfg:    cfg,
		st:     st,
		trades: make(map[string]*Trade),
	}
	m.unsubscribe = st.Subscribe(store.TradesPrefix(cfg.CampaignID), m.onStoreChange, m.onStoreError)
	return m
}

func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	unsub := m.unsubscribe
	m.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Propose invites another participant and returns the new trade's id.
func (m *Manager) Propose(ctx context.Context, inviteeID string) (string, error) {
	if inviteeID == "" || inviteeID == m.cfg.ViewerID {
		return "", ErrSelfTrade
	}
	t := &Trade{
		ID:         uuid.NewString(),
		CampaignID: m.cfg.CampaignID,
		FromID:     m.cfg.ViewerID,
		ToID:       inviteeID,
		State:      StatePending,
	}
	path := store.TradePath(m.cfg.CampaignID, t.ID)
	if err := m.st.WriteBatch(ctx, []store.Write{{Path: path, Fields: tradeDoc(t)}}); err != nil {
		return "", err
	}
	return t.ID, nil
}

// Accept flips a pending trade to active. Only the invited party may
// accept, and only while the trade is still pending.
func (m *Manager) Accept(ctx context.Context, tradeID string) error {
	t, err := m.partyTrade(tradeID)
	if err != nil {
		return err
	}
	if t.ToID != m.cfg.ViewerID {
		return ErrNotInvitee
	}
	if t.State != StatePending {
		return ErrBadState
	}
	path := store.TradePath(m.cfg.CampaignID, tradeID)
	return m.st.WriteBatch(ctx, []store.Write{{Path: path, Fields: store.Document{
		"state": store.Field(string(StateActive)),
	}}})
}

// Decline removes the trade document entirely. Either party may decline a
// pending invitation or walk away from an active trade; there is no
// tombstone state to garbage-collect later.
func (m *Manager) Decline(ctx context.Context, tradeID string) error {
	if _, err := m.partyTrade(tradeID); err != nil {
		return err
	}
	path := store.TradePath(m.cfg.CampaignID, tradeID)
	return m.st.WriteBatch(ctx, []store.Write{{Path: path, Delete: true}})
}

// Get returns a copy of the trade when the viewer is a party to it.
func (m *Manager) Get(tradeID string) (*Trade, bool) {
	t, err := m.partyTrade(tradeID)
	if err != nil {
		return nil, false
	}
	cp := *t
	return &cp, true
}

// List returns the viewer's trades sorted by id.
func (m *Manager) List() []*Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Trade, 0, len(m.trades))
	for _, t := range m.trades {
		if t.FromID != m.cfg.ViewerID && t.ToID != m.cfg.ViewerID {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) partyTrade(tradeID string) (*Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.trades[tradeID]
	if t == nil {
		return nil, ErrNotFound
	}
	if t.FromID != m.cfg.ViewerID && t.ToID != m.cfg.ViewerID {
		return nil, ErrNotParty
	}
	return t, nil
}

func (m *Manager) onStoreChange(ch store.Change) {
	campaignID, tradeID, ok := store.ParseTradePath(ch.Path)
	if !ok || campaignID != m.cfg.CampaignID {
		return
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	var notify *Trade
	deleted := ch.Deleted
	if deleted {
		if t := m.trades[tradeID]; t != nil {
			notify = t
			delete(m.trades, tradeID)
		}
	} else {
		t, err := decodeTrade(campaignID, tradeID, ch.Doc)
		if err != nil {
			m.mu.Unlock()
			m.logf("decode trade %s: %v", ch.Path, err)
			return
		}
		m.trades[tradeID] = t
		notify = t
	}
	cb := m.OnTradeChange
	m.mu.Unlock()
	if cb != nil && notify != nil {
		cp := *notify
		cb(&cp, deleted)
	}
}

func (m *Manager) onStoreError(err error) {
	m.logf("trade stream: %v", err)
}

func (m *Manager) logf(format string, args ...any) {
	if m.cfg.Logger != nil {
		m.cfg.Logger.Printf(format, args...)
	}
}

func unmarshalField(raw json.RawMessage, out *string) error {
	return json.Unmarshal(raw, out)
}
