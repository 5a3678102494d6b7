package store

import (
	"sync"
	"sync/atomic"
)

// notifier fans committed changes out to subscribers. Delivery runs on a
// single dispatch goroutine in enqueue order, so subscribers observe commits
// in commit order. Dropping is not allowed: the queue is generously buffered
// and enqueue blocks rather than losing a change.
type notifier struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64

	queue  chan dispatch
	wg     sync.WaitGroup
	closed atomic.Bool
}

type subscriber struct {
	id       uint64
	prefix   string
	onChange func(Change)
	onError  func(error)
	gone     atomic.Bool
}

type dispatch struct {
	changes []Change
	only    *subscriber // targeted initial delivery; nil for broadcast
	err     error
}

func newNotifier() *notifier {
	n := &notifier{
		subs:  make(map[uint64]*subscriber),
		queue: make(chan dispatch, 4096),
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.loop()
	}()
	return n
}

func (n *notifier) loop() {
	for d := range n.queue {
		if d.only != nil {
			if !d.only.gone.Load() {
				n.deliver(d.only, d)
			}
			continue
		}
		n.mu.Lock()
		targets := make([]*subscriber, 0, len(n.subs))
		for _, s := range n.subs {
			targets = append(targets, s)
		}
		n.mu.Unlock()
		for _, s := range targets {
			if s.gone.Load() {
				continue
			}
			n.deliver(s, d)
		}
	}
}

func (n *notifier) deliver(s *subscriber, d dispatch) {
	if d.err != nil {
		if s.onError != nil {
			s.onError(d.err)
		}
		return
	}
	for _, ch := range d.changes {
		if !Covers(s.prefix, ch.Path) {
			continue
		}
		if s.gone.Load() {
			return
		}
		s.onChange(ch)
	}
}

// subscribe registers the callback pair. Callbacks stop shortly after the
// returned cancel runs; a delivery already in flight may still complete, so
// subscribers must tolerate one trailing callback (the engine's sessions
// guard themselves the same way for late persistence acks).
func (n *notifier) subscribe(prefix string, onChange func(Change), onError func(error)) (*subscriber, func()) {
	s := &subscriber{
		prefix:   prefix,
		onChange: onChange,
		onError:  onError,
	}
	n.mu.Lock()
	n.nextID++
	s.id = n.nextID
	n.subs[s.id] = s
	n.mu.Unlock()
	return s, func() {
		s.gone.Store(true)
		n.mu.Lock()
		delete(n.subs, s.id)
		n.mu.Unlock()
	}
}

func (n *notifier) publish(changes []Change) {
	if n.closed.Load() || len(changes) == 0 {
		return
	}
	n.queue <- dispatch{changes: changes}
}

// publishTo delivers the initial snapshot to one subscriber through the same
// queue so it cannot race ahead of, or fall behind, concurrent commits.
func (n *notifier) publishTo(s *subscriber, changes []Change) {
	if n.closed.Load() {
		return
	}
	n.queue <- dispatch{changes: changes, only: s}
}

func (n *notifier) publishError(err error) {
	if n.closed.Load() || err == nil {
		return
	}
	n.queue <- dispatch{err: err}
}

func (n *notifier) close() {
	if n.closed.CompareAndSwap(false, true) {
		close(n.queue)
		n.wg.Wait()
	}
}
