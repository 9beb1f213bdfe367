package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/assistant/core"
	"github.com/hupe1980/assistant/logging"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a durable HistoryStore backed by a single SQLite file.
// Messages are ordered by an autoincrement sequence, which preserves arrival
// order across restarts.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

var _ core.HistoryStore = (*SQLiteStore)(nil)

// SQLiteOptions configures a SQLiteStore.
type SQLiteOptions struct {
	Logger logging.Logger
}

// NewSQLiteStore opens (or creates) the database at dbPath and migrates the
// schema. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(dbPath string, optFns ...func(o *SQLiteOptions)) (*SQLiteStore, error) {
	opts := SQLiteOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	dsn := dbPath
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
		}
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection: serializes appends and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logging.OrNoOp(opts.Logger)}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		seq             INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		role            TEXT NOT NULL,
		agent           TEXT NOT NULL DEFAULT '',
		type            TEXT NOT NULL DEFAULT '',
		content         TEXT NOT NULL DEFAULT '',
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conv ON messages(conversation_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append inserts msg at the end of the conversation.
func (s *SQLiteStore) Append(conversationID string, msg core.Message) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO messages (conversation_id, role, agent, type, content) VALUES (?, ?, ?, ?, ?)`,
		conversationID, string(msg.Role), msg.Agent, string(msg.Type), msg.Content,
	)
	if err != nil {
		s.logger.Error("session.sqlite.append_failed", "conversation_id", conversationID, "error", err.Error())
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// Conversation returns the conversation in arrival order.
func (s *SQLiteStore) Conversation(conversationID string) ([]core.Message, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT role, agent, type, content FROM messages WHERE conversation_id = ? ORDER BY seq`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	msgs := []core.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// All returns every conversation keyed by id.
func (s *SQLiteStore) All() (map[string][]core.Message, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT conversation_id, role, agent, type, content FROM messages ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]core.Message)
	for rows.Next() {
		var (
			convID              string
			role, agent, typ, c string
		)
		if err := rows.Scan(&convID, &role, &agent, &typ, &c); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out[convID] = append(out[convID], core.Message{
			Content: c, Role: core.Role(role), Agent: agent, Type: core.MessageType(typ),
		})
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func scanMessage(rows *sql.Rows) (core.Message, error) {
	var role, agent, typ, content string
	if err := rows.Scan(&role, &agent, &typ, &content); err != nil {
		return core.Message{}, fmt.Errorf("scan message: %w", err)
	}
	return core.Message{Content: content, Role: core.Role(role), Agent: agent, Type: core.MessageType(typ)}, nil
}
