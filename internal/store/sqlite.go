package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// AuditSink receives one entry per committed batch. Implemented by the
// JSONL mutation log; nil disables auditing.
type AuditSink interface {
	WriteMutation(entry AuditEntry) error
}

type AuditEntry struct {
	At      time.Time `json:"at"`
	Rev     uint64    `json:"rev"`
	Paths   []string  `json:"paths"`
	Deletes []string  `json:"deletes,omitempty"`
}

// SQLite is the durable Store. One write connection, WAL journaling, every
// WriteBatch in a single transaction so multi-document operations commit or
// fail as a unit.
type SQLite struct {
	mu  sync.Mutex
	db  *sql.DB
	rev uint64

	fan   *notifier
	audit AuditSink
}

func OpenSQLite(path string, audit AuditSink) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLite{
		db:    db,
		fan:   newNotifier(),
		audit: audit,
	}
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(rev), 0) FROM documents`).Scan(&s.rev); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the write pattern: many small commits, concurrent readers.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			path   TEXT PRIMARY KEY,
			fields TEXT NOT NULL,
			rev    INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_rev ON documents(rev);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Subscribe(path string, onChange func(Change), onError func(error)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, cancel := s.fan.subscribe(path, onChange, onError)
	snap, err := s.snapshotLocked(path)
	if err != nil {
		s.fan.publishError(fmt.Errorf("subscribe snapshot %s: %w", path, err))
		return cancel
	}
	s.fan.publishTo(sub, snap)
	return cancel
}

func (s *SQLite) snapshotLocked(prefix string) ([]Change, error) {
	rows, err := s.db.Query(
		`SELECT path, fields, rev FROM documents WHERE path = ? OR path LIKE ? ORDER BY rev`,
		prefix, prefix+"/%",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Change
	for rows.Next() {
		var p, fields string
		var rev uint64
		if err := rows.Scan(&p, &fields, &rev); err != nil {
			return nil, err
		}
		var doc Document
		if err := json.Unmarshal([]byte(fields), &doc); err != nil {
			return nil, fmt.Errorf("document %s: %w", p, err)
		}
		out = append(out, Change{Path: p, Doc: doc, Rev: rev})
	}
	return out, rows.Err()
}

func (s *SQLite) WriteBatch(ctx context.Context, writes []Write) error {
	if len(writes) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	changes := make([]Change, 0, len(writes))
	entry := AuditEntry{At: time.Now().UTC()}
	rev := s.rev
	for _, w := range writes {
		rev++
		ch, err := s.applyTx(ctx, tx, w, rev)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		changes = append(changes, ch)
		if w.Delete {
			entry.Deletes = append(entry.Deletes, w.Path)
		} else {
			entry.Paths = append(entry.Paths, w.Path)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.rev = rev

	entry.Rev = s.rev
	if s.audit != nil {
		if err := s.audit.WriteMutation(entry); err != nil {
			s.fan.publishError(fmt.Errorf("audit log: %w", err))
		}
	}
	s.fan.publish(changes)
	return nil
}

func (s *SQLite) applyTx(ctx context.Context, tx *sql.Tx, w Write, rev uint64) (Change, error) {
	if w.Delete {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, w.Path); err != nil {
			return Change{}, err
		}
		return Change{Path: w.Path, Deleted: true, Rev: rev}, nil
	}

	merged := make(Document, len(w.Fields))
	var existing string
	err := tx.QueryRowContext(ctx, `SELECT fields FROM documents WHERE path = ?`, w.Path).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return Change{}, err
	default:
		if err := json.Unmarshal([]byte(existing), &merged); err != nil {
			return Change{}, fmt.Errorf("document %s: %w", w.Path, err)
		}
	}
	for k, v := range w.Fields {
		merged[k] = v
	}
	b, err := json.Marshal(merged)
	if err != nil {
		return Change{}, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents(path, fields, rev) VALUES(?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET fields = excluded.fields, rev = excluded.rev`,
		w.Path, string(b), rev,
	)
	if err != nil {
		return Change{}, err
	}
	return Change{Path: w.Path, Doc: merged, Rev: rev}, nil
}

func (s *SQLite) SetMerge(ctx context.Context, path string, fields Document) error {
	return s.WriteBatch(ctx, []Write{{Path: path, Fields: fields}})
}

func (s *SQLite) Get(ctx context.Context, path string) (Document, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var fields string
	var rev uint64
	err := s.db.QueryRowContext(ctx, `SELECT fields, rev FROM documents WHERE path = ?`, path).Scan(&fields, &rev)
	if err == sql.ErrNoRows {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	var doc Document
	if err := json.Unmarshal([]byte(fields), &doc); err != nil {
		return nil, 0, fmt.Errorf("document %s: %w", path, err)
	}
	return doc, rev, nil
}

func (s *SQLite) List(ctx context.Context, prefix string) ([]Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, fields, rev FROM documents WHERE path = ? OR path LIKE ? ORDER BY path`,
		prefix, prefix+"/%",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Change
	for rows.Next() {
		var p, fields string
		var rev uint64
		if err := rows.Scan(&p, &fields, &rev); err != nil {
			return nil, err
		}
		var doc Document
		if err := json.Unmarshal([]byte(fields), &doc); err != nil {
			return nil, fmt.Errorf("document %s: %w", p, err)
		}
		out = append(out, Change{Path: p, Doc: doc, Rev: rev})
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	s.fan.close()
	return s.db.Close()
}
