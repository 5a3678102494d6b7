package snapshot

import (
	"bufio"
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"gridloot/internal/store"
)

// A snapshot is a point-in-time export of one campaign's document tree,
// used for backups and for moving a campaign between deployments. The file
// is zstd-framed: a one-line JSON header for quick inspection with zstdcat,
// then the gob body.

type Header struct {
	Version    int       `json:"version"`
	CampaignID string    `json:"campaign_id"`
	TakenAt    time.Time `json:"taken_at"`
	Rev        uint64    `json:"rev"`
}

type DocumentV1 struct {
	Path   string                     `json:"path"`
	Fields map[string]json.RawMessage `json:"fields"`
	Rev    uint64                     `json:"rev"`
}

type SnapshotV1 struct {
	Header    Header       `json:"header"`
	Documents []DocumentV1 `json:"documents"`
}

// Capture reads every document under the campaign's subtree.
func Capture(ctx context.Context, st store.Store, campaignID string) (SnapshotV1, error) {
	snap := SnapshotV1{Header: Header{
		Version:    1,
		CampaignID: campaignID,
		TakenAt:    time.Now().UTC(),
	}}
	changes, err := st.List(ctx, "campaigns/"+campaignID)
	if err != nil {
		return snap, err
	}
	for _, ch := range changes {
		snap.Documents = append(snap.Documents, DocumentV1{
			Path:   ch.Path,
			Fields: ch.Doc,
			Rev:    ch.Rev,
		})
		if ch.Rev > snap.Header.Rev {
			snap.Header.Rev = ch.Rev
		}
	}
	return snap, nil
}

// Restore writes the snapshot's documents back in one batch. Snapshots
// carry full documents, so the field merge amounts to replacement.
func Restore(ctx context.Context, st store.Store, snap SnapshotV1) error {
	writes := make([]store.Write, 0, len(snap.Documents))
	for _, d := range snap.Documents {
		writes = append(writes, store.Write{Path: d.Path, Fields: store.Document(d.Fields)})
	}
	return st.WriteBatch(ctx, writes)
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Skip the header line; the gob body repeats it.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
