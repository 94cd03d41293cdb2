// Package store persists knowledge entries and per-user conversation logs.
package store

import (
	"context"
	"time"
)

// KnowledgeEntry is a stored, retrievable fact record.
type KnowledgeEntry struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category,omitempty"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationRecord is an immutable log row of one user query and its answer.
type ConversationRecord struct {
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the persistence interface used by the response and pipeline layers.
type Store interface {
	// AddKnowledge appends a knowledge entry and returns its assigned id.
	AddKnowledge(ctx context.Context, title, content, category string, tags []string) (int64, error)

	// SearchKnowledge returns entries whose title or content contains query
	// as a case-sensitive substring, most-recently-updated first, at most
	// limit entries. An empty query matches everything.
	SearchKnowledge(ctx context.Context, query string, limit int) ([]KnowledgeEntry, error)

	// ListAllKnowledge returns every entry, most-recently-updated first.
	ListAllKnowledge(ctx context.Context) ([]KnowledgeEntry, error)

	// SaveConversation appends a conversation record. It is a silent no-op
	// when userID, message or response is empty.
	SaveConversation(ctx context.Context, userID, message, response string) error

	// UserHistory returns a user's records, most recent first, at most limit.
	UserHistory(ctx context.Context, userID string, limit int) ([]ConversationRecord, error)

	// Close releases the backing medium.
	Close() error
}

// StorageError reports a failure of the backing medium. It propagates to
// callers uncaught; a broken store is not something the pipeline can paper
// over.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
