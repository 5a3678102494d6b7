package snapshot

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"gridloot/internal/store"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := store.NewMemory()
	defer src.Close()

	writes := []store.Write{
		{Path: "campaigns/c1/inventories/alice", Fields: store.Document{
			"characterName": store.Field("Alice"),
			"currency":      store.Field(map[string]int{"gp": 3}),
		}},
		{Path: "campaigns/c1/inventories/alice/containers/pack", Fields: store.Document{
			"gridWidth": store.Field(4),
		}},
		{Path: "campaigns/c2/inventories/zed", Fields: store.Document{
			"characterName": store.Field("Other Campaign"),
		}},
	}
	if err := src.WriteBatch(ctx, writes); err != nil {
		t.Fatalf("seed: %v", err)
	}

	snap, err := Capture(ctx, src, "c1")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if len(snap.Documents) != 2 {
		t.Fatalf("capture must stay inside the campaign, got %d docs", len(snap.Documents))
	}
	if snap.Header.CampaignID != "c1" || snap.Header.Version != 1 {
		t.Fatalf("header wrong: %+v", snap.Header)
	}

	path := filepath.Join(t.TempDir(), "c1.snap.zst")
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got.Documents, snap.Documents) {
		t.Fatalf("round trip changed the documents")
	}

	dst := store.NewMemory()
	defer dst.Close()
	if err := Restore(ctx, dst, got); err != nil {
		t.Fatalf("restore: %v", err)
	}
	doc, _, err := dst.Get(ctx, "campaigns/c1/inventories/alice")
	if err != nil {
		t.Fatalf("restored doc missing: %v", err)
	}
	if string(doc["characterName"]) != `"Alice"` {
		t.Fatalf("restored field wrong: %s", doc["characterName"])
	}
	if _, _, err := dst.Get(ctx, "campaigns/c2/inventories/zed"); err != store.ErrNotFound {
		t.Fatalf("other campaigns must not leak into the restore, got %v", err)
	}
}
