package store

import (
	"context"
	"encoding/json"
	"errors"
)

// Document is a flat field map, the unit of last-write-wins persistence.
type Document map[string]json.RawMessage

func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	cp := make(Document, len(d))
	for k, v := range d {
		cp[k] = v
	}
	return cp
}

// Write is one element of an atomic batch: a field merge into the document at
// Path, or a whole-document delete.
type Write struct {
	Path   string
	Fields Document
	Delete bool
}

// Change is delivered to subscribers after a commit. Doc is the full
// post-change document; nil with Deleted set when the document was removed.
type Change struct {
	Path    string
	Doc     Document
	Rev     uint64
	Deleted bool
}

var ErrNotFound = errors.New("document not found")

// Store is the remote document store collaborator. Implementations provide
// per-document last-write-wins semantics and an asynchronous change stream.
//
// Subscribe registers for the document at path and everything below it; the
// current value of every matching document is delivered immediately (in
// commit order relative to concurrent writes), then every subsequent change.
// Errors are delivered out-of-band via onError and never panic the stream.
// The returned function tears the subscription down; no callback fires after
// it returns.
type Store interface {
	Subscribe(path string, onChange func(Change), onError func(error)) (unsubscribe func())
	WriteBatch(ctx context.Context, writes []Write) error
	SetMerge(ctx context.Context, path string, fields Document) error
	Get(ctx context.Context, path string) (Document, uint64, error)
	// List returns the current documents under prefix, sorted by path.
	List(ctx context.Context, prefix string) ([]Change, error)
	Close() error
}

// Field marshals v into a document field, panicking on unmarshalable values;
// documents carry only plain JSON-friendly types.
func Field(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
