package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store used by tests and single-node development.
// It shares the notifier fanout with the sqlite implementation, so the
// subscription semantics are identical.
type Memory struct {
	mu   sync.Mutex
	docs map[string]*memDoc
	rev  uint64

	fan *notifier
}

type memDoc struct {
	fields Document
	rev    uint64
}

func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]*memDoc),
		fan:  newNotifier(),
	}
}

func (m *Memory) Subscribe(path string, onChange func(Change), onError func(error)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, cancel := m.fan.subscribe(path, onChange, onError)
	m.fan.publishTo(sub, m.snapshotLocked(path))
	return cancel
}

func (m *Memory) snapshotLocked(prefix string) []Change {
	var out []Change
	for p, d := range m.docs {
		if !Covers(prefix, p) {
			continue
		}
		out = append(out, Change{Path: p, Doc: d.fields.Clone(), Rev: d.rev})
	}
	return out
}

func (m *Memory) WriteBatch(ctx context.Context, writes []Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	changes := make([]Change, 0, len(writes))
	for _, w := range writes {
		changes = append(changes, m.applyLocked(w))
	}
	m.fan.publish(changes)
	return nil
}

func (m *Memory) applyLocked(w Write) Change {
	m.rev++
	if w.Delete {
		delete(m.docs, w.Path)
		return Change{Path: w.Path, Deleted: true, Rev: m.rev}
	}
	d := m.docs[w.Path]
	if d == nil {
		d = &memDoc{fields: make(Document)}
		m.docs[w.Path] = d
	}
	for k, v := range w.Fields {
		d.fields[k] = v
	}
	d.rev = m.rev
	return Change{Path: w.Path, Doc: d.fields.Clone(), Rev: d.rev}
}

func (m *Memory) SetMerge(ctx context.Context, path string, fields Document) error {
	return m.WriteBatch(ctx, []Write{{Path: path, Fields: fields}})
}

func (m *Memory) Get(ctx context.Context, path string) (Document, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.docs[path]
	if d == nil {
		return nil, 0, ErrNotFound
	}
	return d.fields.Clone(), d.rev, nil
}

func (m *Memory) List(ctx context.Context, prefix string) ([]Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.snapshotLocked(prefix)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *Memory) Close() error {
	m.fan.close()
	return nil
}
