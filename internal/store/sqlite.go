package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// defaultSearchLimit bounds searches when the caller passes a nonpositive limit.
const defaultSearchLimit = 5

// SQLiteStore implements Store using SQLite for persistence.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) a SQLite-backed store at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// case_sensitive_like keeps substring search byte-exact; the pragmas are
	// set per connection via the DSN so the pool stays consistent.
	dsn := fmt.Sprintf("file:%s?_pragma=case_sensitive_like(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storageErr("open", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, storageErr("migrate", err)
	}

	return store, nil
}

// migrate creates the necessary tables if they don't exist.
func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ai_knowledge (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		category TEXT,
		tags TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ai_knowledge_updated_at ON ai_knowledge(updated_at);

	CREATE TABLE IF NOT EXISTS conversation_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		message TEXT NOT NULL,
		response TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conversation_history_user_id ON conversation_history(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// AddKnowledge appends a knowledge entry and returns its assigned id.
func (s *SQLiteStore) AddKnowledge(ctx context.Context, title, content, category string, tags []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tagsJSON any
	if len(tags) > 0 {
		data, err := json.Marshal(tags)
		if err != nil {
			return 0, storageErr("add_knowledge", err)
		}
		tagsJSON = string(data)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_knowledge (title, content, category, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, title, content, nullable(category), tagsJSON, now, now)
	if err != nil {
		return 0, storageErr("add_knowledge", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("add_knowledge", err)
	}
	return id, nil
}

// SearchKnowledge returns entries whose title or content contains query as a
// case-sensitive substring, most-recently-updated first. An empty query
// matches everything, since every string contains the empty substring.
func (s *SQLiteStore) SearchKnowledge(ctx context.Context, query string, limit int) ([]KnowledgeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = defaultSearchLimit
	}

	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, category, tags, created_at, updated_at
		FROM ai_knowledge
		WHERE title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\'
		ORDER BY updated_at DESC, id DESC
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, storageErr("search_knowledge", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListAllKnowledge returns every entry, most-recently-updated first.
func (s *SQLiteStore) ListAllKnowledge(ctx context.Context) ([]KnowledgeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, category, tags, created_at, updated_at
		FROM ai_knowledge
		ORDER BY updated_at DESC, id DESC
	`)
	if err != nil {
		return nil, storageErr("list_knowledge", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// SaveConversation appends a conversation record. Records are only written
// for complete exchanges: missing user id, message or response skips the
// write silently.
func (s *SQLiteStore) SaveConversation(ctx context.Context, userID, message, response string) error {
	if userID == "" || message == "" || response == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_history (user_id, message, response, timestamp)
		VALUES (?, ?, ?, ?)
	`, userID, message, response, time.Now().UTC())
	if err != nil {
		return storageErr("save_conversation", err)
	}
	return nil
}

// UserHistory returns a user's records, most recent first.
func (s *SQLiteStore) UserHistory(ctx context.Context, userID string, limit int) ([]ConversationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, message, response, timestamp
		FROM conversation_history
		WHERE user_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, storageErr("user_history", err)
	}
	defer rows.Close()

	records := []ConversationRecord{}
	for rows.Next() {
		var rec ConversationRecord
		if err := rows.Scan(&rec.UserID, &rec.Message, &rec.Response, &rec.Timestamp); err != nil {
			return nil, storageErr("user_history", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("user_history", err)
	}
	return records, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanEntries(rows *sql.Rows) ([]KnowledgeEntry, error) {
	entries := []KnowledgeEntry{}
	for rows.Next() {
		var (
			entry    KnowledgeEntry
			category sql.NullString
			tagsJSON sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.Title, &entry.Content, &category, &tagsJSON, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, storageErr("scan", err)
		}

		entry.Category = category.String
		entry.Tags = []string{}
		if tagsJSON.Valid && tagsJSON.String != "" {
			if err := json.Unmarshal([]byte(tagsJSON.String), &entry.Tags); err != nil {
				return nil, storageErr("scan", err)
			}
		}

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("scan", err)
	}
	return entries, nil
}

// escapeLike escapes LIKE wildcards so the query is treated as a literal
// substring.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
