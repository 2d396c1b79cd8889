package bus

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/TSGCFO/langchain-agent/core"
)

//go:embed sql/001_messages.sql
var messagesSchema string

// SQLiteStore is a MessageStore backed by a SQLite table. Several processes
// may share one database file; each keeps its own live subscribers.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the schema. Use ":memory:" for a private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create dir: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(messagesSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Save upserts msg with an expiry of now+ttl.
func (s *SQLiteStore) Save(ctx context.Context, msg core.Message, ttl time.Duration) error {
	if msg.ID == "" {
		return fmt.Errorf("store: message without id: %w", core.ErrValidation)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("store: marshal message: %w", err)
	}
	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages(id,type,sender_id,correlation_id,body_json,created_at,expires_at) VALUES (?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET body_json=excluded.body_json, expires_at=excluded.expires_at`,
		msg.ID, string(msg.Type), nullable(msg.Metadata.SenderID), nullable(msg.Metadata.CorrelationID),
		string(body), now.Format(time.RFC3339Nano), now.Add(ttl).UnixNano())
	if err != nil {
		return fmt.Errorf("store: insert message: %w", err)
	}
	return nil
}

// Get loads an unexpired message. The payload comes back as decoded JSON
// (maps, slices, strings, float64), not as the original Go type.
func (s *SQLiteStore) Get(ctx context.Context, id string) (core.Message, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body_json FROM messages WHERE id = ? AND expires_at > ?`, id, s.now().UnixNano()).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Message{}, fmt.Errorf("message %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Message{}, fmt.Errorf("store: query message: %w", err)
	}
	var msg core.Message
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return core.Message{}, fmt.Errorf("store: decode message: %w", err)
	}
	return msg, nil
}

// PurgeExpired deletes expired rows.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("store: purge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
