package engine

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"gridloot/internal/inventory"
	"gridloot/internal/store"
)

// Config describes the viewer entering a campaign.
type Config struct {
	CampaignID string
	ViewerID   string
	ViewerKind inventory.OwnerKind

	// MerchantStockInfinite keeps merchant stock untouched by purchases
	// (the buyer receives a copy with a fresh identity). When false the
	// purchased item leaves the merchant like any other transfer.
	MerchantStockInfinite bool

	// PersistTimeout bounds each WriteBatch call.
	PersistTimeout time.Duration

	Logger *log.Logger
}

// Session is the mutation coordinator for one viewer of one campaign. It
// owns its subscriptions (torn down by Close), holds the local eventually-
// consistent replica of every inventory in the campaign, applies operations
// optimistically and rolls them back when persistence fails.
//
// All exported methods are safe for concurrent use; internally the session
// is a single logical thread guarded by mu, matching the cooperative model
// of the store callbacks.
type Session struct {
	cfg Config
	st  store.Store

	mu     sync.Mutex
	closed bool
	invs   map[string]*inventory.Inventory

	// latest[path] is the sequence number of the newest local operation that
	// touched the document at path. A persistence ack (success or failure)
	// carrying a smaller number is stale and must be ignored.
	nextSeq uint64
	latest  map[string]uint64

	unsubscribe func()
	wg          sync.WaitGroup

	// OnInventoryChange fires (outside mu) after the local replica of an
	// owner changed, whether from a local optimistic apply, a rollback, or
	// a remote notification. OnRollback fires when a persistence failure
	// undid an operation. Both are optional.
	OnInventoryChange func(ownerID string)
	OnRollback        func(opID string, err error)
}

// NewSession builds the session and subscribes to the campaign's inventory
// subtree. The current documents are delivered through the same stream, so
// the local replica fills in shortly after construction.
func NewSession(st store.Store, cfg Config) *Session {
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 10 * time.Second
	}
	s := &Session{
		cfg:    cfg,
		st:     st,
		invs:   make(map[string]*inventory.Inventory),
		latest: make(map[string]uint64),
	}
	s.unsubscribe = st.Subscribe(store.InventoriesPrefix(cfg.CampaignID), s.onStoreChange, s.onStoreError)
	return s
}

// Close tears down the subscription and marks the session dead; any late
// persistence ack or store callback after Close is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsub := s.unsubscribe
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	s.wg.Wait()
}

// Wait blocks until every in-flight persistence call has reconciled. Used by
// tests and by graceful shutdown.
func (s *Session) Wait() { s.wg.Wait() }

// Inventory returns a deep copy of the local replica for the owner, filtered
// for the viewer: hidden magic payloads are stripped, invisible shared
// inventories are absent.
func (s *Session) Inventory(ownerID string) (*inventory.Inventory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv := s.invs[ownerID]
	if inv == nil {
		return nil, false
	}
	if !inventory.CanSeeInventory(s.cfg.ViewerKind, s.cfg.ViewerID, inv) {
		return nil, false
	}
	cp := inv.Clone()
	s.censorMagic(cp)
	return cp, true
}

// Owners lists the owner ids present in the local replica, sorted for
// deterministic iteration.
func (s *Session) Owners() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.invs))
	for id, inv := range s.invs {
		if !inventory.CanSeeInventory(s.cfg.ViewerKind, s.cfg.ViewerID, inv) {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Session) censorMagic(inv *inventory.Inventory) {
	censor := func(items []*inventory.Item) {
		for _, it := range items {
			if !inventory.CanSeeMagic(s.cfg.ViewerKind, it) {
				it.Magic = ""
			}
		}
	}
	censor(inv.TrayItems)
	censor(inv.EquippedItems)
	for _, c := range inv.Containers {
		censor(c.GridItems)
		censor(c.TrayItems)
	}
}

// onStoreChange replaces the local view of the changed document subtree.
// Last remote writer wins; an unconfirmed optimistic edit on the same
// document is overwritten (accepted trade-off, the echo re-applies it).
func (s *Session) onStoreChange(ch store.Change) {
	_, ownerID, containerID, ok := store.ParseInventoryPath(ch.Path)
	if !ok {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	inv := s.invs[ownerID]
	switch {
	case ch.Deleted && containerID == "":
		delete(s.invs, ownerID)
	case ch.Deleted:
		if inv != nil {
			delete(inv.Containers, containerID)
		}
	case containerID == "":
		next, err := decodeInventory(ownerID, ch.Doc)
		if err != nil {
			s.mu.Unlock()
			s.logf("decode inventory %s: %v", ch.Path, err)
			return
		}
		if inv != nil {
			// Containers live in their own documents; carry them over.
			next.Containers = inv.Containers
		}
		s.invs[ownerID] = next
	default:
		c, err := decodeContainer(containerID, ch.Doc)
		if err != nil {
			s.mu.Unlock()
			s.logf("decode container %s: %v", ch.Path, err)
			return
		}
		if inv == nil {
			inv = &inventory.Inventory{
				OwnerID:    ownerID,
				Kind:       inventory.KindPlayer,
				Containers: make(map[string]*inventory.Container),
			}
			s.invs[ownerID] = inv
		}
		if inv.Containers == nil {
			inv.Containers = make(map[string]*inventory.Container)
		}
		if _, known := inv.Containers[containerID]; !known {
			inv.ContainerOrder = appendMissing(inv.ContainerOrder, containerID)
		}
		inv.Containers[containerID] = c
	}
	notify := s.OnInventoryChange
	s.mu.Unlock()
	if notify != nil {
		notify(ownerID)
	}
}

func (s *Session) onStoreError(err error) {
	s.logf("store stream: %v", err)
}

func (s *Session) logf(format string, args ...any) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Printf(format, args...)
	}
}

func appendMissing(order []string, id string) []string {
	for _, existing := range order {
		if existing == id {
			return order
		}
	}
	return append(order, id)
}

// pendingOp captures what a single operation needs for reconciliation: the
// pre-operation clones of every touched owner and the paths it wrote.
type pendingOp struct {
	id    string
	seq   uint64
	prior map[string]*inventory.Inventory
	paths map[string][]string // ownerID -> touched document paths
}

// beginLocked stamps the next sequence number. Callers hold mu.
func (s *Session) beginLocked(opID string) *pendingOp {
	s.nextSeq++
	return &pendingOp{
		id:    opID,
		seq:   s.nextSeq,
		prior: make(map[string]*inventory.Inventory),
		paths: make(map[string][]string),
	}
}

// commitLocked applies the computed owner snapshots to the local replica,
// records sequence numbers for every written path, and launches the batched
// persistence call. Callers hold mu and have fully validated the operation.
func (s *Session) commitLocked(op *pendingOp, next map[string]*inventory.Inventory, writes []store.Write) {
	for owner, inv := range next {
		op.prior[owner] = s.invs[owner]
		s.invs[owner] = inv
	}
	for _, w := range writes {
		s.latest[w.Path] = op.seq
		if _, ownerID, _, ok := store.ParseInventoryPath(w.Path); ok {
			op.paths[ownerID] = append(op.paths[ownerID], w.Path)
		}
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PersistTimeout)
		defer cancel()
		err := s.st.WriteBatch(ctx, writes)
		s.reconcile(op, err)
	}()
}

// reconcile finishes an operation once the store acknowledged or rejected
// it. Success needs no action (the change stream re-confirms the same
// state). Failure restores the pre-operation snapshots, unless a newer
// operation already touched the document (stale rollback, ignored per path).
func (s *Session) reconcile(op *pendingOp, err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var restored []string
	for owner, prior := range op.prior {
		stale := false
		for _, p := range op.paths[owner] {
			if s.latest[p] != op.seq {
				stale = true
				break
			}
		}
		if stale {
			continue
		}
		if prior == nil {
			delete(s.invs, owner)
		} else {
			s.invs[owner] = prior
		}
		restored = append(restored, owner)
	}
	notify := s.OnInventoryChange
	onRollback := s.OnRollback
	s.mu.Unlock()

	s.logf("op %s: persistence failed, rolled back %d owner(s): %v", op.id, len(restored), err)
	if notify != nil {
		for _, owner := range restored {
			notify(owner)
		}
	}
	if onRollback != nil {
		onRollback(op.id, &PersistenceError{Op: op.id, Err: err})
	}
}
