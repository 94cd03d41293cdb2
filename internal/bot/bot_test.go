package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/voxbot/voxbot/internal/channels"
	"github.com/voxbot/voxbot/internal/config"
	"github.com/voxbot/voxbot/internal/pipeline"
	"github.com/voxbot/voxbot/internal/provider"
	"github.com/voxbot/voxbot/internal/session"
	"github.com/voxbot/voxbot/internal/store"
)

// fakeChannel records everything the bot sends.
type fakeChannel struct {
	*channels.BaseChannel
	sent []*channels.OutboundMessage
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{BaseChannel: channels.NewBaseChannel("fake", true)}
}

func (f *fakeChannel) Start(ctx context.Context) error { return nil }
func (f *fakeChannel) Stop() error                     { return nil }

func (f *fakeChannel) SendMessage(userID string, msg *channels.OutboundMessage) error {
	f.sent = append(f.sent, msg)
	return nil
}

// fakeFlows is a scriptable pipeline.
type fakeFlows struct {
	result *pipeline.Result
	err    error

	textCalls     int
	convertCalls  int
	exchangeCalls int
	lastVoiceID   string
}

func (f *fakeFlows) TextToVoice(ctx context.Context, text, userID, voiceID string) (*pipeline.Result, error) {
	f.textCalls++
	f.lastVoiceID = voiceID
	return f.result, f.err
}

func (f *fakeFlows) VoiceToVoice(ctx context.Context, audio []byte, sourceFormat, userID, voiceID string) (*pipeline.Result, error) {
	f.convertCalls++
	f.lastVoiceID = voiceID
	return f.result, f.err
}

func (f *fakeFlows) VoiceExchange(ctx context.Context, audio []byte, sourceFormat, userID, voiceID string) (*pipeline.Result, error) {
	f.exchangeCalls++
	f.lastVoiceID = voiceID
	return f.result, f.err
}

type fakeResponder struct {
	answer string
	err    error
	calls  int
}

func (f *fakeResponder) GenerateResponse(ctx context.Context, query, userID string) (string, error) {
	f.calls++
	return f.answer, f.err
}

type fakeDirectory struct {
	voices []provider.VoiceInfo
	err    error
}

func (f *fakeDirectory) Voices(ctx context.Context, customOnly bool) ([]provider.VoiceInfo, error) {
	return f.voices, f.err
}

// fakeStore is an in-memory store.Store.
type fakeStore struct {
	entries []store.KnowledgeEntry
	history []store.ConversationRecord
	nextID  int64
}

func (f *fakeStore) AddKnowledge(ctx context.Context, title, content, category string, tags []string) (int64, error) {
	f.nextID++
	f.entries = append(f.entries, store.KnowledgeEntry{
		ID: f.nextID, Title: title, Content: content, Category: category, Tags: tags,
	})
	return f.nextID, nil
}

func (f *fakeStore) SearchKnowledge(ctx context.Context, query string, limit int) ([]store.KnowledgeEntry, error) {
	var out []store.KnowledgeEntry
	for _, e := range f.entries {
		if strings.Contains(e.Title, query) || strings.Contains(e.Content, query) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAllKnowledge(ctx context.Context) ([]store.KnowledgeEntry, error) {
	return f.entries, nil
}

func (f *fakeStore) SaveConversation(ctx context.Context, userID, message, response string) error {
	f.history = append(f.history, store.ConversationRecord{
		UserID: userID, Message: message, Response: response, Timestamp: time.Now(),
	})
	return nil
}

func (f *fakeStore) UserHistory(ctx context.Context, userID string, limit int) ([]store.ConversationRecord, error) {
	var out []store.ConversationRecord
	for _, r := range f.history {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) Close() error { return nil }

type fixture struct {
	bot     *Bot
	channel *fakeChannel
	flows   *fakeFlows
	resp    *fakeResponder
	store   *fakeStore
	sess    *session.Manager
}

func newFixture(t *testing.T, mode string, flows *fakeFlows, resp *fakeResponder, dir *fakeDirectory) *fixture {
	t.Helper()
	ch := newFakeChannel()
	router := channels.NewRouter()
	router.Register(ch)
	st := &fakeStore{}
	sess := session.NewManager()
	b := New(router, sess, flows, resp, st, dir, Config{Mode: mode, DefaultVoice: "default-voice"}, nil)
	return &fixture{bot: b, channel: ch, flows: flows, resp: resp, store: st, sess: sess}
}

func inbound(kind channels.InboundKind) *channels.InboundMessage {
	return &channels.InboundMessage{
		ID:          "1",
		UserID:      "42",
		ChannelName: "fake",
		ChannelID:   "42",
		Kind:        kind,
		ReceivedAt:  time.Now(),
	}
}

func (f *fixture) allSentText() string {
	var sb strings.Builder
	for _, m := range f.channel.sent {
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

func TestAssistantTextGoesThroughResponder(t *testing.T) {
	fx := newFixture(t, config.ModeAssistant, &fakeFlows{}, &fakeResponder{answer: "here is your answer"}, &fakeDirectory{})

	msg := inbound(channels.KindText)
	msg.Content = "what is deep learning"
	fx.bot.handle(context.Background(), msg)

	if fx.resp.calls != 1 {
		t.Fatalf("expected 1 responder call, got %d", fx.resp.calls)
	}
	if !strings.Contains(fx.allSentText(), "here is your answer") {
		t.Errorf("answer not sent, got %q", fx.allSentText())
	}
}

func TestAssistantKnowledgeSubmission(t *testing.T) {
	fx := newFixture(t, config.ModeAssistant, &fakeFlows{}, &fakeResponder{}, &fakeDirectory{})

	msg := inbound(channels.KindText)
	msg.Content = "Title: Transformers\nCategory: Deep Learning\nTags: attention, nlp\nContent: Attention-based architecture."
	fx.bot.handle(context.Background(), msg)

	if len(fx.store.entries) != 1 {
		t.Fatalf("expected 1 stored entry, got %d", len(fx.store.entries))
	}
	e := fx.store.entries[0]
	if e.Title != "Transformers" || e.Category != "Deep Learning" || e.Content != "Attention-based architecture." {
		t.Errorf("entry stored wrong: %+v", e)
	}
	if len(e.Tags) != 2 || e.Tags[0] != "attention" || e.Tags[1] != "nlp" {
		t.Errorf("tags stored wrong: %v", e.Tags)
	}
	if fx.resp.calls != 0 {
		t.Errorf("submission must not reach the responder")
	}
}

func TestAssistantVoiceExchange(t *testing.T) {
	flows := &fakeFlows{result: &pipeline.Result{
		Transcript: "hello there",
		ReplyText:  "hi!",
		Audio:      []byte("mp3"),
	}}
	fx := newFixture(t, config.ModeAssistant, flows, &fakeResponder{}, &fakeDirectory{})

	msg := inbound(channels.KindVoice)
	msg.Media = []channels.Media{{Type: channels.MediaAudio, Data: []byte("ogg"), Format: "ogg"}}
	fx.bot.handle(context.Background(), msg)

	if flows.exchangeCalls != 1 {
		t.Fatalf("expected 1 exchange call, got %d", flows.exchangeCalls)
	}
	if flows.lastVoiceID != "default-voice" {
		t.Errorf("assistant mode should use the default voice, got %q", flows.lastVoiceID)
	}
	text := fx.allSentText()
	if !strings.Contains(text, "You said: hello there") || !strings.Contains(text, "hi!") {
		t.Errorf("missing transcript or reply in %q", text)
	}
}

func TestAssistantVoiceNoSpeech(t *testing.T) {
	flows := &fakeFlows{err: pipeline.ErrNoSpeech}
	fx := newFixture(t, config.ModeAssistant, flows, &fakeResponder{}, &fakeDirectory{})

	msg := inbound(channels.KindVoice)
	msg.Media = []channels.Media{{Type: channels.MediaAudio, Data: []byte("ogg"), Format: "ogg"}}
	fx.bot.handle(context.Background(), msg)

	if !strings.Contains(fx.allSentText(), "couldn't detect any speech") {
		t.Errorf("expected no-speech message, got %q", fx.allSentText())
	}
}

func TestConverterTextWithoutSessionPrompts(t *testing.T) {
	flows := &fakeFlows{}
	fx := newFixture(t, config.ModeConverter, flows, &fakeResponder{}, &fakeDirectory{})

	msg := inbound(channels.KindText)
	msg.Content = "make this speech"
	fx.bot.handle(context.Background(), msg)

	if flows.textCalls != 0 {
		t.Errorf("no session means no synthesis, got %d calls", flows.textCalls)
	}
	if len(fx.channel.sent) == 0 || len(fx.channel.sent[0].Buttons) == 0 {
		t.Fatal("expected a prompt with the Generate Voice button")
	}
	if fx.channel.sent[0].Buttons[0].Data != callbackGenerate {
		t.Errorf("unexpected button data %q", fx.channel.sent[0].Buttons[0].Data)
	}
}

func TestConverterTextWithSessionSynthesizes(t *testing.T) {
	flows := &fakeFlows{result: &pipeline.Result{ReplyText: "make this speech", Audio: []byte("mp3")}}
	fx := newFixture(t, config.ModeConverter, flows, &fakeResponder{}, &fakeDirectory{})

	fx.sess.Begin("42")
	fx.sess.SelectVoice("42", "voice-7")

	msg := inbound(channels.KindText)
	msg.Content = "make this speech"
	fx.bot.handle(context.Background(), msg)

	if flows.textCalls != 1 {
		t.Fatalf("expected 1 synthesis call, got %d", flows.textCalls)
	}
	if flows.lastVoiceID != "voice-7" {
		t.Errorf("expected selected voice, got %q", flows.lastVoiceID)
	}
	if _, ok := fx.sess.Get("42"); ok {
		t.Error("session should end after the exchange")
	}

	var gotAudio bool
	for _, m := range fx.channel.sent {
		for _, media := range m.Media {
			if media.Type == channels.MediaAudio && len(media.Data) > 0 {
				gotAudio = true
			}
		}
	}
	if !gotAudio {
		t.Error("expected an audio reply")
	}
}

func TestConverterVoiceConversion(t *testing.T) {
	flows := &fakeFlows{result: &pipeline.Result{Audio: []byte("converted")}}
	fx := newFixture(t, config.ModeConverter, flows, &fakeResponder{}, &fakeDirectory{})

	fx.sess.Begin("42")
	fx.sess.SelectVoice("42", "voice-9")

	msg := inbound(channels.KindVoice)
	msg.Media = []channels.Media{{Type: channels.MediaAudio, Data: []byte("ogg"), Format: "ogg"}}
	fx.bot.handle(context.Background(), msg)

	if flows.convertCalls != 1 {
		t.Fatalf("expected 1 conversion call, got %d", flows.convertCalls)
	}
	// Direct conversion result carries no transcript, so no text echo.
	if strings.Contains(fx.allSentText(), "You said:") {
		t.Errorf("direct conversion must not echo a transcript: %q", fx.allSentText())
	}
}

func TestVoiceSelectionCallbackFlow(t *testing.T) {
	dir := &fakeDirectory{voices: []provider.VoiceInfo{
		{ID: "v1", Name: "Alpha", Category: "cloned"},
		{ID: "v2", Name: "Beta", Category: "generated"},
	}}
	fx := newFixture(t, config.ModeConverter, &fakeFlows{}, &fakeResponder{}, dir)

	press := inbound(channels.KindCallback)
	press.Content = callbackGenerate
	fx.bot.handle(context.Background(), press)

	if len(fx.channel.sent) != 1 || len(fx.channel.sent[0].Buttons) != 2 {
		t.Fatalf("expected a keyboard with 2 voices, got %+v", fx.channel.sent)
	}
	if fx.channel.sent[0].Buttons[0].Data != callbackVoicePfx+"v1" {
		t.Errorf("unexpected callback data %q", fx.channel.sent[0].Buttons[0].Data)
	}

	choose := inbound(channels.KindCallback)
	choose.Content = callbackVoicePfx + "v2"
	fx.bot.handle(context.Background(), choose)

	sess, ok := fx.sess.Get("42")
	if !ok || sess.VoiceID != "v2" || sess.State != session.StateAwaitingInput {
		t.Fatalf("session not advanced: %+v", sess)
	}
}

func TestSearchCommand(t *testing.T) {
	fx := newFixture(t, config.ModeAssistant, &fakeFlows{}, &fakeResponder{}, &fakeDirectory{})
	fx.store.AddKnowledge(context.Background(), "Neural Networks", "Layered function approximators.", "Deep Learning", []string{"nn"})

	msg := inbound(channels.KindCommand)
	msg.Command = "search"
	msg.Content = "Neural"
	fx.bot.handle(context.Background(), msg)

	text := fx.allSentText()
	if !strings.Contains(text, "Neural Networks") || !strings.Contains(text, "Category: Deep Learning") {
		t.Errorf("search results missing, got %q", text)
	}
}

func TestSearchCommandRequiresQuery(t *testing.T) {
	fx := newFixture(t, config.ModeAssistant, &fakeFlows{}, &fakeResponder{}, &fakeDirectory{})

	msg := inbound(channels.KindCommand)
	msg.Command = "search"
	fx.bot.handle(context.Background(), msg)

	if !strings.Contains(fx.allSentText(), "Please provide a search query") {
		t.Errorf("expected usage hint, got %q", fx.allSentText())
	}
}

func TestHistoryCommand(t *testing.T) {
	fx := newFixture(t, config.ModeAssistant, &fakeFlows{}, &fakeResponder{}, &fakeDirectory{})
	fx.store.SaveConversation(context.Background(), "42", "a question", "an answer")
	fx.store.SaveConversation(context.Background(), "99", "other user", "other answer")

	msg := inbound(channels.KindCommand)
	msg.Command = "history"
	fx.bot.handle(context.Background(), msg)

	text := fx.allSentText()
	if !strings.Contains(text, "a question") {
		t.Errorf("history missing own records, got %q", text)
	}
	if strings.Contains(text, "other user") {
		t.Errorf("history leaked another user's records: %q", text)
	}
}

func TestParseKnowledgeSubmission(t *testing.T) {
	title, category, tags, content, ok := parseKnowledgeSubmission(
		"Title: GANs\nCategory: Generative\nTags: images, adversarial\nContent: Two networks in a minimax game.\nSecond line.")
	if !ok {
		t.Fatal("expected submission to parse")
	}
	if title != "GANs" || category != "Generative" {
		t.Errorf("got title=%q category=%q", title, category)
	}
	if len(tags) != 2 {
		t.Errorf("got tags %v", tags)
	}
	if content != "Two networks in a minimax game.\nSecond line." {
		t.Errorf("got content %q", content)
	}

	if _, _, _, _, ok := parseKnowledgeSubmission("just a normal question"); ok {
		t.Error("plain text must not parse as a submission")
	}
	if _, _, _, _, ok := parseKnowledgeSubmission("Title: missing content"); ok {
		t.Error("submission without content must not parse")
	}
}
