package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "docs.db"), nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	stores := map[string]Store{
		"memory": NewMemory(),
		"sqlite": sq,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func waitChange(t *testing.T, ch chan Change) Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for change")
		return Change{}
	}
}

func TestStore_WriteGetMergeDelete(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			path := InventoryPath("c1", "alice")

			if _, _, err := s.Get(ctx, path); err != ErrNotFound {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			if err := s.SetMerge(ctx, path, Document{"characterName": Field("Alice")}); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := s.SetMerge(ctx, path, Document{"weightUnit": Field("lb")}); err != nil {
				t.Fatalf("merge: %v", err)
			}

			doc, rev, err := s.Get(ctx, path)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if rev == 0 {
				t.Fatalf("rev must be monotonic from 1")
			}
			if string(doc["characterName"]) != `"Alice"` || string(doc["weightUnit"]) != `"lb"` {
				t.Fatalf("merge lost fields: %v", doc)
			}

			if err := s.WriteBatch(ctx, []Write{{Path: path, Delete: true}}); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, _, err := s.Get(ctx, path); err != ErrNotFound {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}

func TestStore_BatchTouchesMultipleDocuments(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := InventoryPath("c1", "buyer")
			b := InventoryPath("c1", "seller")
			err := s.WriteBatch(ctx, []Write{
				{Path: a, Fields: Document{"currency": Field(map[string]int{"gp": 1})}},
				{Path: b, Fields: Document{"currency": Field(map[string]int{"gp": 9})}},
			})
			if err != nil {
				t.Fatalf("batch: %v", err)
			}
			da, ra, _ := s.Get(ctx, a)
			db, rb, _ := s.Get(ctx, b)
			if da == nil || db == nil {
				t.Fatalf("both documents must exist")
			}
			if rb <= ra {
				t.Fatalf("batch writes must carry increasing revs: %d then %d", ra, rb)
			}
		})
	}
}

func TestStore_SubscribeDeliversCurrentThenUpdates(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			inv := InventoryPath("c1", "alice")
			cont := ContainerPath("c1", "alice", "pack")
			other := InventoryPath("c1", "bob")

			if err := s.SetMerge(ctx, inv, Document{"characterName": Field("Alice")}); err != nil {
				t.Fatalf("seed: %v", err)
			}

			ch := make(chan Change, 16)
			cancel := s.Subscribe(OwnerSubtreePath("c1", "alice"), func(c Change) { ch <- c }, nil)
			defer cancel()

			first := waitChange(t, ch)
			if first.Path != inv {
				t.Fatalf("initial delivery path = %s", first.Path)
			}

			// A write under the subtree arrives; one outside does not.
			if err := s.WriteBatch(ctx, []Write{
				{Path: other, Fields: Document{"characterName": Field("Bob")}},
				{Path: cont, Fields: Document{"name": Field("Backpack")}},
			}); err != nil {
				t.Fatalf("write: %v", err)
			}
			next := waitChange(t, ch)
			if next.Path != cont {
				t.Fatalf("expected container change, got %s", next.Path)
			}

			// Deletes are observed too.
			if err := s.WriteBatch(ctx, []Write{{Path: cont, Delete: true}}); err != nil {
				t.Fatalf("delete: %v", err)
			}
			del := waitChange(t, ch)
			if !del.Deleted || del.Path != cont {
				t.Fatalf("expected delete of %s, got %+v", cont, del)
			}
		})
	}
}

func TestStore_UnsubscribeStopsDelivery(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			path := TradePath("c1", "t1")
			ch := make(chan Change, 16)
			cancel := s.Subscribe(TradesPrefix("c1"), func(c Change) { ch <- c }, nil)
			cancel()

			if err := s.SetMerge(ctx, path, Document{"state": Field("pending")}); err != nil {
				t.Fatalf("set: %v", err)
			}
			select {
			case c := <-ch:
				t.Fatalf("unexpected delivery after unsubscribe: %+v", c)
			case <-time.After(100 * time.Millisecond):
			}
		})
	}
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "docs.db")
	ctx := context.Background()

	s, err := OpenSQLite(dbPath, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.SetMerge(ctx, CampaignMetaPath("c1"), Document{"joinCode": Field("XYZZY")}); err != nil {
		t.Fatalf("set: %v", err)
	}
	_, rev1, _ := s.Get(ctx, CampaignMetaPath("c1"))
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := OpenSQLite(dbPath, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	doc, _, err := s2.Get(ctx, CampaignMetaPath("c1"))
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(doc["joinCode"]) != `"XYZZY"` {
		t.Fatalf("lost field after reopen: %v", doc)
	}
	// Rev counter resumes past the persisted maximum.
	if err := s2.SetMerge(ctx, CampaignMetaPath("c2"), Document{"joinCode": Field("PLUGH")}); err != nil {
		t.Fatalf("set: %v", err)
	}
	_, rev2, _ := s2.Get(ctx, CampaignMetaPath("c2"))
	if rev2 <= rev1 {
		t.Fatalf("rev must keep increasing across reopen: %d then %d", rev1, rev2)
	}
}

func TestPaths_ParseRoundTrip(t *testing.T) {
	camp, owner, cont, ok := ParseInventoryPath(ContainerPath("c9", "alice", "pack"))
	if !ok || camp != "c9" || owner != "alice" || cont != "pack" {
		t.Fatalf("parse container path: %q %q %q %v", camp, owner, cont, ok)
	}
	camp, owner, cont, ok = ParseInventoryPath(InventoryPath("c9", "alice"))
	if !ok || cont != "" || owner != "alice" {
		t.Fatalf("parse inventory path: %q %q %q %v", camp, owner, cont, ok)
	}
	if _, _, _, ok := ParseInventoryPath("campaigns/c9/trades/t1"); ok {
		t.Fatalf("trade path must not parse as inventory")
	}
	camp, trade, ok := ParseTradePath(TradePath("c9", "t1"))
	if !ok || camp != "c9" || trade != "t1" {
		t.Fatalf("parse trade path: %q %q %v", camp, trade, ok)
	}
	if !Covers("campaigns/c9/inventories/alice", "campaigns/c9/inventories/alice/containers/pack") {
		t.Fatalf("prefix must cover child")
	}
	if Covers("campaigns/c9/inventories/alice", "campaigns/c9/inventories/alice2") {
		t.Fatalf("prefix must not cover sibling with shared text prefix")
	}
}

func TestStore_ListStaysInsidePrefix(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			err := s.WriteBatch(ctx, []Write{
				{Path: InventoryPath("c1", "alice"), Fields: Document{"characterName": Field("Alice")}},
				{Path: ContainerPath("c1", "alice", "pack"), Fields: Document{"gridWidth": Field(4)}},
				{Path: InventoryPath("c1", "alice2"), Fields: Document{"characterName": Field("Sibling")}},
				{Path: InventoryPath("c2", "alice"), Fields: Document{"characterName": Field("Elsewhere")}},
			})
			if err != nil {
				t.Fatalf("seed: %v", err)
			}

			got, err := s.List(ctx, InventoryPath("c1", "alice"))
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("want the owner root and its container, got %d docs", len(got))
			}
			if got[0].Path != InventoryPath("c1", "alice") || got[1].Path != ContainerPath("c1", "alice", "pack") {
				t.Fatalf("listing must be path-sorted: %q, %q", got[0].Path, got[1].Path)
			}
		})
	}
}
