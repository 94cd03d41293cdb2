package responder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/voxbot/voxbot/internal/store"
)

// fakeStore is an in-memory Store for testing.
type fakeStore struct {
	entries   []store.KnowledgeEntry
	saved     []store.ConversationRecord
	searchErr error
	saveErr   error
}

func (f *fakeStore) AddKnowledge(ctx context.Context, title, content, category string, tags []string) (int64, error) {
	f.entries = append(f.entries, store.KnowledgeEntry{
		ID: int64(len(f.entries) + 1), Title: title, Content: content, Category: category, Tags: tags,
	})
	return int64(len(f.entries)), nil
}

func (f *fakeStore) SearchKnowledge(ctx context.Context, query string, limit int) ([]store.KnowledgeEntry, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	matched := []store.KnowledgeEntry{}
	for _, e := range f.entries {
		if strings.Contains(e.Title, query) || strings.Contains(e.Content, query) {
			matched = append(matched, e)
		}
		if len(matched) == limit {
			break
		}
	}
	return matched, nil
}

func (f *fakeStore) ListAllKnowledge(ctx context.Context) ([]store.KnowledgeEntry, error) {
	return f.entries, nil
}

func (f *fakeStore) SaveConversation(ctx context.Context, userID, message, response string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if userID == "" || message == "" || response == "" {
		return nil
	}
	f.saved = append(f.saved, store.ConversationRecord{UserID: userID, Message: message, Response: response})
	return nil
}

func (f *fakeStore) UserHistory(ctx context.Context, userID string, limit int) ([]store.ConversationRecord, error) {
	return f.saved, nil
}

func (f *fakeStore) Close() error { return nil }

// echoGenerator returns the user prompt it was sent, so tests can inspect
// the assembled prompt.
type echoGenerator struct {
	lastSystem string
	lastUser   string
	err        error
}

func (g *echoGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	g.lastSystem = system
	g.lastUser = user
	if g.err != nil {
		return "", g.err
	}
	return user, nil
}

func TestRuleStrategy_Greeting(t *testing.T) {
	s := NewRuleStrategy()

	reply := s.Respond(context.Background(), "Hello there", "")
	if reply != "Hello! I'm your AI assistant. How can I help you today?" {
		t.Errorf("unexpected greeting reply %q", reply)
	}

	// Case-insensitive.
	if got := s.Respond(context.Background(), "HELLO", ""); got != reply {
		t.Errorf("expected same reply regardless of case, got %q", got)
	}
}

func TestRuleStrategy_FixedPhrases(t *testing.T) {
	s := NewRuleStrategy()
	tests := []struct {
		query string
		want  string
	}{
		{"how are you doing", "I'm doing great! Thanks for asking. How can I assist you?"},
		{"so, what can you do?", "I can help you with various tasks, answer questions, and convert voice messages. Just let me know what you need!"},
		{"thanks a lot", "You're welcome! I'm happy to help."},
		{"ok bye now", "Goodbye! Have a great day!"},
	}

	for _, tt := range tests {
		if got := s.Respond(context.Background(), tt.query, ""); got != tt.want {
			t.Errorf("Respond(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestRuleStrategy_EchoPreservesInput(t *testing.T) {
	s := NewRuleStrategy()
	query := "Explain quantum entanglement"

	reply := s.Respond(context.Background(), query, "")
	if !strings.Contains(reply, query) {
		t.Errorf("echo reply %q does not contain original input", reply)
	}
}

func TestGenerateResponse_NoContext(t *testing.T) {
	st := &fakeStore{}
	gen := &echoGenerator{}
	r := New(st, NewProviderStrategy(gen, nil), nil)

	_, err := r.GenerateResponse(context.Background(), "What is reinforcement learning?", "42")
	if err != nil {
		t.Fatalf("GenerateResponse failed: %v", err)
	}

	if !strings.Contains(gen.lastUser, "User question: What is reinforcement learning?") {
		t.Errorf("prompt missing the user question: %q", gen.lastUser)
	}
	if strings.Contains(gen.lastUser, "Relevant AI knowledge") {
		t.Errorf("prompt should not contain a knowledge digest when the store is empty: %q", gen.lastUser)
	}
}

func TestGenerateResponse_WithContext(t *testing.T) {
	st := &fakeStore{}
	st.AddKnowledge(context.Background(), "Reinforcement Learning",
		"An agent learns by maximizing cumulative reward.", "RL", []string{"agent", "reward"})

	gen := &echoGenerator{}
	r := New(st, NewProviderStrategy(gen, nil), nil)

	_, err := r.GenerateResponse(context.Background(), "Reinforcement Learning", "")
	if err != nil {
		t.Fatalf("GenerateResponse failed: %v", err)
	}

	if !strings.Contains(gen.lastUser, "Relevant AI knowledge") {
		t.Errorf("prompt missing the knowledge digest header: %q", gen.lastUser)
	}
	if !strings.Contains(gen.lastUser, "An agent learns by maximizing cumulative reward.") {
		t.Errorf("prompt missing the entry content: %q", gen.lastUser)
	}
	if !strings.Contains(gen.lastUser, "Tags: agent, reward") {
		t.Errorf("prompt missing the tag list: %q", gen.lastUser)
	}
}

func TestGenerateResponse_SavesConversation(t *testing.T) {
	st := &fakeStore{}
	gen := &echoGenerator{}
	r := New(st, NewProviderStrategy(gen, nil), nil)

	_, err := r.GenerateResponse(context.Background(), "hello", "42")
	if err != nil {
		t.Fatalf("GenerateResponse failed: %v", err)
	}

	if len(st.saved) != 1 {
		t.Fatalf("expected 1 saved conversation, got %d", len(st.saved))
	}
	if st.saved[0].UserID != "42" || st.saved[0].Message != "hello" {
		t.Errorf("unexpected saved record %+v", st.saved[0])
	}

	// Without a user id, nothing is written.
	st2 := &fakeStore{}
	r2 := New(st2, NewProviderStrategy(&echoGenerator{}, nil), nil)
	if _, err := r2.GenerateResponse(context.Background(), "hello", ""); err != nil {
		t.Fatalf("GenerateResponse failed: %v", err)
	}
	if len(st2.saved) != 0 {
		t.Errorf("expected no saved conversations, got %d", len(st2.saved))
	}
}

func TestGenerateResponse_ProviderFailureDegradesToApology(t *testing.T) {
	st := &fakeStore{}
	gen := &echoGenerator{err: errors.New("connection refused")}
	r := New(st, NewProviderStrategy(gen, nil), nil)

	reply, err := r.GenerateResponse(context.Background(), "anything", "42")
	if err != nil {
		t.Fatalf("provider failure must not surface as an error: %v", err)
	}
	if !strings.Contains(reply, "I apologize") {
		t.Errorf("expected an apology reply, got %q", reply)
	}
	if strings.Contains(reply, "connection refused") {
		t.Errorf("raw provider error must not reach the user: %q", reply)
	}

	// The failed exchange is still recorded: the user saw the apology.
	if len(st.saved) != 1 {
		t.Errorf("expected the apology exchange to be saved, got %d records", len(st.saved))
	}
}

func TestGenerateResponse_StorageErrorPropagates(t *testing.T) {
	st := &fakeStore{searchErr: &store.StorageError{Op: "search_knowledge", Err: errors.New("disk gone")}}
	r := New(st, NewRuleStrategy(), nil)

	_, err := r.GenerateResponse(context.Background(), "hello", "42")
	if err == nil {
		t.Fatal("expected storage error to propagate")
	}
	var storageErr *store.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected *store.StorageError, got %T", err)
	}
}

func TestRetrieveContext_Format(t *testing.T) {
	st := &fakeStore{}
	st.AddKnowledge(context.Background(), "Entry A", "content a", "CatA", []string{"x"})
	st.AddKnowledge(context.Background(), "Entry B", "content b", "", nil)

	r := New(st, NewRuleStrategy(), nil)
	digest, err := r.RetrieveContext(context.Background(), "Entry")
	if err != nil {
		t.Fatalf("RetrieveContext failed: %v", err)
	}

	if !strings.HasPrefix(digest, "Relevant AI knowledge:\n\n") {
		t.Errorf("digest missing header: %q", digest)
	}
	if !strings.Contains(digest, "Title: Entry A\n") || !strings.Contains(digest, "Title: Entry B\n") {
		t.Errorf("digest missing entries: %q", digest)
	}
	if !strings.Contains(digest, "Tags: None\n") {
		t.Errorf("untagged entry should render 'Tags: None': %q", digest)
	}
	if strings.Count(digest, strings.Repeat("-", 50)) != 2 {
		t.Errorf("expected one delimiter line per entry: %q", digest)
	}

	// Nothing matched: empty string, not an error.
	digest, err = r.RetrieveContext(context.Background(), "zzz-no-match")
	if err != nil {
		t.Fatalf("RetrieveContext failed: %v", err)
	}
	if digest != "" {
		t.Errorf("expected empty digest, got %q", digest)
	}
}
