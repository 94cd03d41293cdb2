// Package bot runs the front-end loop: it consumes messages from all
// registered channels, routes them through the voice pipeline and the
// responder, and sends the replies back.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxbot/voxbot/internal/channels"
	"github.com/voxbot/voxbot/internal/config"
	"github.com/voxbot/voxbot/internal/pipeline"
	"github.com/voxbot/voxbot/internal/provider"
	"github.com/voxbot/voxbot/internal/session"
	"github.com/voxbot/voxbot/internal/store"
)

const (
	voiceListLimit    = 8
	callbackVoicePfx  = "select_voice_"
	callbackGenerate  = "generate_voice"
	callbackSearchKB  = "search_kb"
	callbackHistory   = "history"
	callbackAddKnow   = "add_knowledge"
	historyListLimit  = 5
	searchResultLimit = 5
)

// Flows is the subset of the voice pipeline the bot drives.
type Flows interface {
	TextToVoice(ctx context.Context, text, userID, voiceID string) (*pipeline.Result, error)
	VoiceToVoice(ctx context.Context, audio []byte, sourceFormat, userID, voiceID string) (*pipeline.Result, error)
	VoiceExchange(ctx context.Context, audio []byte, sourceFormat, userID, voiceID string) (*pipeline.Result, error)
}

// ResponseGenerator produces text replies for text messages.
type ResponseGenerator interface {
	GenerateResponse(ctx context.Context, query, userID string) (string, error)
}

// VoiceDirectory lists the voices available for selection.
type VoiceDirectory interface {
	Voices(ctx context.Context, customOnly bool) ([]provider.VoiceInfo, error)
}

// Config carries the per-deployment bot behavior.
type Config struct {
	Mode             string
	DefaultVoice     string
	CustomVoicesOnly bool
}

// Bot is the front-end message loop.
type Bot struct {
	router    *channels.Router
	sessions  *session.Manager
	flows     Flows
	responder ResponseGenerator
	store     store.Store
	voices    VoiceDirectory
	cfg       Config
	logger    *slog.Logger
}

// New creates the bot loop over an already-populated router.
func New(router *channels.Router, sessions *session.Manager, flows Flows, responder ResponseGenerator, st store.Store, voices VoiceDirectory, cfg Config, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		router:    router,
		sessions:  sessions,
		flows:     flows,
		responder: responder,
		store:     st,
		voices:    voices,
		cfg:       cfg,
		logger:    logger.With("component", "bot"),
	}
}

// Run consumes inbound messages until the context is cancelled. Each message
// is handled in its own goroutine so a slow synthesis call does not block the
// queue.
func (b *Bot) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-b.router.Incoming():
			if !ok {
				return nil
			}
			go b.handle(ctx, msg)
		}
	}
}

func (b *Bot) handle(ctx context.Context, msg *channels.InboundMessage) {
	switch msg.Kind {
	case channels.KindCommand:
		b.handleCommand(ctx, msg)
	case channels.KindCallback:
		b.handleCallback(ctx, msg)
	case channels.KindVoice:
		b.handleVoice(ctx, msg)
	case channels.KindText:
		b.handleText(ctx, msg)
	}
}

// ----------------------------------------------------------------------------
// Commands
// ----------------------------------------------------------------------------

func (b *Bot) handleCommand(ctx context.Context, msg *channels.InboundMessage) {
	switch msg.Command {
	case "start":
		b.sendWelcome(msg)
	case "help":
		b.reply(msg, b.helpText())
	case "voices":
		b.sendVoiceList(ctx, msg)
	case "search":
		b.handleSearch(ctx, msg)
	case "history":
		b.sendHistory(ctx, msg)
	case "add_knowledge":
		b.sendAddKnowledgeHelp(msg)
	default:
		b.reply(msg, "Unknown command. Use /help to see what I can do.")
	}
}

func (b *Bot) sendWelcome(msg *channels.InboundMessage) {
	if b.cfg.Mode == config.ModeConverter {
		b.send(msg, &channels.OutboundMessage{
			Content: "Click to Generate",
			Buttons: []channels.Button{{Label: "Generate Voice", Data: callbackGenerate}},
		})
		return
	}

	welcome := `Welcome to the AI Knowledge Bot!

I'm here to help you with questions about artificial intelligence. I have access to a comprehensive knowledge database and can provide detailed answers.

Available Commands:
/start - Show this welcome message
/help - Show help information
/search <query> - Search the knowledge database
/history - Show your conversation history
/add_knowledge - Add new knowledge to the database
/voices - List available voices

Voice Features:
Send voice messages and get voice responses!

Just ask me anything about AI!`

	b.send(msg, &channels.OutboundMessage{
		Content: welcome,
		Buttons: []channels.Button{
			{Label: "Search Knowledge", Data: callbackSearchKB},
			{Label: "View History", Data: callbackHistory},
			{Label: "Add Knowledge", Data: callbackAddKnow},
		},
	})
}

func (b *Bot) helpText() string {
	if b.cfg.Mode == config.ModeConverter {
		return `Voice Bot Help

Commands:
/start - Welcome message and main menu
/help - Show this help information
/voices - List available voices

How to Use:
1. Click "Generate Voice" button
2. Select a voice from the list
3. Send text or voice message
4. Get converted audio back

Features:
Text-to-Speech with custom voices
Voice-to-Voice conversion
Custom voice selection
Interactive voice buttons

Just click "Generate Voice" to start!`
	}

	return `Bot Help Guide

Commands:
/start - Welcome message and main menu
/help - Show this help information
/search <query> - Search the AI knowledge database
/history - View your conversation history
/add_knowledge - Add new knowledge to the database
/voices - List available voices

Examples:
/search machine learning
/search neural networks
/search AI ethics

Features:
Access to AI knowledge database
Conversation history tracking
Smart knowledge search
Voice-to-Voice chat - send voice messages and get voice responses!

Just send me a text message or voice message with your AI question!`
}

func (b *Bot) sendVoiceList(ctx context.Context, msg *channels.InboundMessage) {
	voices, err := b.voices.Voices(ctx, b.cfg.CustomVoicesOnly)
	if err != nil || len(voices) == 0 {
		if err != nil {
			b.logger.Error("failed to list voices", "error", err)
		}
		b.reply(msg, "Could not retrieve available voices. Make sure the speech API key is set correctly.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Available Voices:\n\n")
	shown := voices
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for i, v := range shown {
		fmt.Fprintf(&sb, "%d. %s\n   ID: %s\n   Category: %s\n\n", i+1, v.Name, v.ID, v.Category)
	}
	if len(voices) > 10 {
		fmt.Fprintf(&sb, "... and %d more voices available.\n\n", len(voices)-10)
	}
	sb.WriteString("Tip: Use the Generate Voice button to select and use these voices.")

	b.reply(msg, sb.String())
}

func (b *Bot) handleSearch(ctx context.Context, msg *channels.InboundMessage) {
	query := strings.TrimSpace(msg.Content)
	if query == "" {
		b.reply(msg, "Please provide a search query. Example: /search machine learning")
		return
	}

	results, err := b.store.SearchKnowledge(ctx, query, searchResultLimit)
	if err != nil {
		b.logger.Error("knowledge search failed", "error", err)
		b.reply(msg, "Sorry, I encountered an error while searching. Please try again.")
		return
	}
	if len(results) == 0 {
		b.reply(msg, "No relevant knowledge found in the database.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Search Results for '%s':\n\n", query)
	for i, item := range results {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, item.Title)
		fmt.Fprintf(&sb, "Category: %s\n", item.Category)
		fmt.Fprintf(&sb, "Content: %s\n", truncate(item.Content, 200))
		if len(item.Tags) > 0 {
			fmt.Fprintf(&sb, "Tags: %s\n", strings.Join(item.Tags, ", "))
		}
		sb.WriteString("\n")
	}

	b.reply(msg, sb.String())
}

func (b *Bot) sendHistory(ctx context.Context, msg *channels.InboundMessage) {
	history, err := b.store.UserHistory(ctx, msg.UserID, historyListLimit)
	if err != nil {
		b.logger.Error("failed to load history", "error", err)
		b.reply(msg, "Sorry, I encountered an error while loading your history. Please try again.")
		return
	}
	if len(history) == 0 {
		b.reply(msg, "No conversation history found.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Your Recent Conversations:\n\n")
	for i, conv := range history {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, conv.Timestamp.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&sb, "Q: %s\n", truncate(conv.Message, 100))
		fmt.Fprintf(&sb, "A: %s\n\n", truncate(conv.Response, 100))
	}

	b.reply(msg, sb.String())
}

func (b *Bot) sendAddKnowledgeHelp(msg *channels.InboundMessage) {
	b.reply(msg, "To add knowledge to the database, please use the format:\n"+
		"Title: [Your Title]\n"+
		"Category: [Category]\n"+
		"Tags: [tag1, tag2, tag3]\n"+
		"Content: [Your content here]")
}

// ----------------------------------------------------------------------------
// Callbacks (inline button presses)
// ----------------------------------------------------------------------------

func (b *Bot) handleCallback(ctx context.Context, msg *channels.InboundMessage) {
	data := msg.Content
	switch {
	case data == callbackGenerate:
		b.beginVoiceSelection(ctx, msg)

	case strings.HasPrefix(data, callbackVoicePfx):
		voiceID := strings.TrimPrefix(data, callbackVoicePfx)
		if !b.sessions.SelectVoice(msg.UserID, voiceID) {
			b.sessions.Begin(msg.UserID)
			b.sessions.SelectVoice(msg.UserID, voiceID)
		}
		b.reply(msg, "Voice Selected! Now send me some text to convert to speech, or send a voice message to convert it to the selected voice.")

	case data == callbackSearchKB:
		b.reply(msg, "Search the Knowledge Base\n\n"+
			"Use /search <your query> to search for specific topics.\n\n"+
			"Examples:\n"+
			"/search machine learning\n"+
			"/search neural networks\n"+
			"/search AI ethics")

	case data == callbackHistory:
		b.sendHistory(ctx, msg)

	case data == callbackAddKnow:
		b.sendAddKnowledgeHelp(msg)
	}
}

func (b *Bot) beginVoiceSelection(ctx context.Context, msg *channels.InboundMessage) {
	voices, err := b.voices.Voices(ctx, b.cfg.CustomVoicesOnly)
	if err != nil || len(voices) == 0 {
		if err != nil {
			b.logger.Error("failed to list voices", "error", err)
		}
		b.reply(msg, "Could not retrieve voices. Please check the speech API key.")
		return
	}

	b.sessions.Begin(msg.UserID)

	if len(voices) > voiceListLimit {
		voices = voices[:voiceListLimit]
	}
	buttons := make([]channels.Button, 0, len(voices))
	for _, v := range voices {
		buttons = append(buttons, channels.Button{Label: v.Name, Data: callbackVoicePfx + v.ID})
	}

	b.send(msg, &channels.OutboundMessage{Content: "Select a voice", Buttons: buttons})
}

// ----------------------------------------------------------------------------
// Text and voice messages
// ----------------------------------------------------------------------------

func (b *Bot) handleText(ctx context.Context, msg *channels.InboundMessage) {
	if b.cfg.Mode == config.ModeConverter {
		b.handleConverterText(ctx, msg)
		return
	}

	if title, category, tags, content, ok := parseKnowledgeSubmission(msg.Content); ok {
		if _, err := b.store.AddKnowledge(ctx, title, content, category, tags); err != nil {
			b.logger.Error("failed to add knowledge", "error", err)
			b.reply(msg, "Sorry, I couldn't save that knowledge entry. Please try again.")
			return
		}
		b.reply(msg, fmt.Sprintf("Added %q to the knowledge base.", title))
		return
	}

	answer, err := b.responder.GenerateResponse(ctx, msg.Content, msg.UserID)
	if err != nil {
		b.logger.Error("failed to generate response", "error", err)
		b.reply(msg, "Sorry, I encountered an error while processing your request. Please try again.")
		return
	}
	b.reply(msg, answer)
}

func (b *Bot) handleConverterText(ctx context.Context, msg *channels.InboundMessage) {
	sess, ok := b.sessions.Get(msg.UserID)
	if !ok || sess.State != session.StateAwaitingInput {
		b.promptVoiceSelection(msg, "Send me some text and I'll convert it to speech! Click the button below to select a voice:")
		return
	}

	result, err := b.flows.TextToVoice(ctx, msg.Content, msg.UserID, sess.VoiceID)
	b.sessions.End(msg.UserID)
	if err != nil {
		b.logger.Error("text to voice failed", "error", err)
		b.reply(msg, "Sorry, I couldn't generate the voice. Please try again.")
		b.promptVoiceSelection(msg, "Click to Generate")
		return
	}

	b.sendAudio(msg, result.Audio, "generated-voice.mp3")
	b.promptVoiceSelection(msg, "Click to Generate")
}

func (b *Bot) handleVoice(ctx context.Context, msg *channels.InboundMessage) {
	if len(msg.Media) == 0 {
		return
	}
	audio := msg.Media[0]

	if b.cfg.Mode == config.ModeConverter {
		b.handleConverterVoice(ctx, msg, audio)
		return
	}

	result, err := b.flows.VoiceExchange(ctx, audio.Data, audio.Format, msg.UserID, b.cfg.DefaultVoice)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoSpeech) {
			b.reply(msg, "I couldn't detect any speech in your message. Please try again.")
			return
		}
		b.logger.Error("voice exchange failed", "error", err)
		b.reply(msg, "Sorry, I encountered an error while processing your voice message. Please try again.")
		return
	}

	b.reply(msg, fmt.Sprintf("You said: %s", result.Transcript))
	b.reply(msg, result.ReplyText)
	b.sendAudio(msg, result.Audio, "reply.mp3")
}

func (b *Bot) handleConverterVoice(ctx context.Context, msg *channels.InboundMessage, audio channels.Media) {
	sess, ok := b.sessions.Get(msg.UserID)
	if !ok || sess.VoiceID == "" {
		b.promptVoiceSelection(msg, "I can convert your voice to a different voice! Click the button below to select a target voice:")
		return
	}

	result, err := b.flows.VoiceToVoice(ctx, audio.Data, audio.Format, msg.UserID, sess.VoiceID)
	b.sessions.End(msg.UserID)
	if err != nil {
		b.logger.Error("voice conversion failed", "error", err)
		b.reply(msg, "Sorry, I couldn't convert your voice. Please try again.")
		b.promptVoiceSelection(msg, "Click to Generate")
		return
	}

	b.sendAudio(msg, result.Audio, "converted-voice.mp3")
	if result.Transcript != "" {
		// The direct path failed and the exchange fallback answered instead.
		b.reply(msg, fmt.Sprintf("You said: %s", result.Transcript))
		b.reply(msg, result.ReplyText)
	}
	b.promptVoiceSelection(msg, "Click to Generate")
}

// ----------------------------------------------------------------------------
// Send helpers
// ----------------------------------------------------------------------------

func (b *Bot) promptVoiceSelection(msg *channels.InboundMessage, text string) {
	b.send(msg, &channels.OutboundMessage{
		Content: text,
		Buttons: []channels.Button{{Label: "Generate Voice", Data: callbackGenerate}},
	})
}

func (b *Bot) reply(msg *channels.InboundMessage, text string) {
	b.send(msg, &channels.OutboundMessage{Content: text})
}

func (b *Bot) sendAudio(msg *channels.InboundMessage, audio []byte, filename string) {
	b.send(msg, &channels.OutboundMessage{
		Media: []channels.Media{{
			Type:     channels.MediaAudio,
			Data:     audio,
			Filename: filename,
			MimeType: "audio/mpeg",
		}},
	})
}

func (b *Bot) send(msg *channels.InboundMessage, out *channels.OutboundMessage) {
	if err := b.router.SendToChannel(msg.ChannelName, msg.UserID, out); err != nil {
		b.logger.Error("failed to send message", "channel", msg.ChannelName, "error", err)
	}
}

// ----------------------------------------------------------------------------
// Knowledge submission parsing
// ----------------------------------------------------------------------------

// parseKnowledgeSubmission recognizes the structured format announced by
// /add_knowledge. Content runs to the end of the message.
func parseKnowledgeSubmission(text string) (title, category string, tags []string, content string, ok bool) {
	if !strings.HasPrefix(strings.TrimSpace(text), "Title:") {
		return "", "", nil, "", false
	}

	lines := strings.Split(text, "\n")
	var contentLines []string
	inContent := false
	for _, line := range lines {
		switch {
		case inContent:
			contentLines = append(contentLines, line)
		case strings.HasPrefix(line, "Title:"):
			title = strings.TrimSpace(strings.TrimPrefix(line, "Title:"))
		case strings.HasPrefix(line, "Category:"):
			category = strings.TrimSpace(strings.TrimPrefix(line, "Category:"))
		case strings.HasPrefix(line, "Tags:"):
			raw := strings.TrimSpace(strings.TrimPrefix(line, "Tags:"))
			for _, t := range strings.Split(raw, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tags = append(tags, t)
				}
			}
		case strings.HasPrefix(line, "Content:"):
			inContent = true
			if first := strings.TrimSpace(strings.TrimPrefix(line, "Content:")); first != "" {
				contentLines = append(contentLines, first)
			}
		}
	}

	content = strings.TrimSpace(strings.Join(contentLines, "\n"))
	if title == "" || content == "" {
		return "", "", nil, "", false
	}
	return title, category, tags, content, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
