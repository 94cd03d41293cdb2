// Package telegram provides the Telegram channel adapter for Voxbot.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/voxbot/voxbot/internal/channels"
	"github.com/voxbot/voxbot/internal/config"
)

// Telegram delivers voice notes as OGG/Opus.
const voiceFormat = "ogg"

// Adapter implements the channels.Channel interface for Telegram
type Adapter struct {
	config   config.TelegramConfig
	bot      *tgbotapi.BotAPI
	logger   *slog.Logger
	incoming chan *channels.InboundMessage

	running bool
	mu      sync.RWMutex
	cancel  context.CancelFunc
}

// New creates a new Telegram adapter
func New(cfg config.TelegramConfig, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		config:   cfg,
		logger:   logger.With("channel", "telegram"),
		incoming: make(chan *channels.InboundMessage, 100),
	}
}

// Name returns the channel name
func (a *Adapter) Name() string {
	return "telegram"
}

// IsEnabled returns whether the channel is enabled
func (a *Adapter) IsEnabled() bool {
	return a.config.Enabled && a.config.Token != ""
}

// SupportsAudio returns true - Telegram supports voice notes and audio files
func (a *Adapter) SupportsAudio() bool {
	return true
}

// SupportsButtons returns true - Telegram has inline keyboard buttons
func (a *Adapter) SupportsButtons() bool {
	return true
}

// Start initializes and starts the Telegram adapter
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return nil
	}

	if a.config.Token == "" {
		return fmt.Errorf("telegram token not configured")
	}

	bot, err := tgbotapi.NewBotAPI(a.config.Token)
	if err != nil {
		return fmt.Errorf("failed to create telegram bot: %w", err)
	}

	a.bot = bot
	a.logger.Info("telegram bot authorized", "username", bot.Self.UserName)

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.running = true

	go a.receiveUpdates(ctx)

	return nil
}

// Stop stops the Telegram adapter
func (a *Adapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}

	if a.cancel != nil {
		a.cancel()
	}

	a.running = false
	a.logger.Info("telegram adapter stopped")
	return nil
}

// Incoming returns the channel for incoming messages
func (a *Adapter) Incoming() <-chan *channels.InboundMessage {
	return a.incoming
}

// SendMessage sends a message to a user. Audio media is delivered as a voice
// note; text and buttons go out as a regular message.
func (a *Adapter) SendMessage(userID string, msg *channels.OutboundMessage) error {
	chatID, err := parseChatID(userID)
	if err != nil {
		return err
	}

	for _, media := range msg.Media {
		if media.Type != channels.MediaAudio {
			continue
		}
		name := media.Filename
		if name == "" {
			name = "reply.mp3"
		}
		voice := tgbotapi.NewVoice(chatID, tgbotapi.FileBytes{
			Name:  name,
			Bytes: media.Data,
		})
		if _, err := a.bot.Send(voice); err != nil {
			return fmt.Errorf("failed to send voice note: %w", err)
		}
	}

	if msg.Content == "" {
		return nil
	}

	teleMsg := tgbotapi.NewMessage(chatID, msg.Content)
	if msg.Format == channels.FormatMarkdown {
		teleMsg.ParseMode = tgbotapi.ModeMarkdownV2
		teleMsg.Text = escapeMarkdownV2(msg.Content)
	}

	if len(msg.Buttons) > 0 {
		var rows [][]tgbotapi.InlineKeyboardButton
		for _, btn := range msg.Buttons {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data),
			))
		}
		teleMsg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	_, err = a.bot.Send(teleMsg)
	return err
}

// receiveUpdates processes incoming Telegram updates
func (a *Adapter) receiveUpdates(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			a.handleUpdate(update)
		}
	}
}

// handleUpdate processes a single Telegram update
func (a *Adapter) handleUpdate(update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		a.handleCallbackQuery(update.CallbackQuery)
		return
	}

	if update.Message != nil {
		a.handleMessage(update.Message)
		return
	}
}

// handleMessage processes an incoming message
func (a *Adapter) handleMessage(msg *tgbotapi.Message) {
	inbound := &channels.InboundMessage{
		ID:          fmt.Sprintf("%d", msg.MessageID),
		UserID:      fmt.Sprintf("%d", msg.Chat.ID),
		ChannelName: "telegram",
		ChannelID:   fmt.Sprintf("%d", msg.Chat.ID),
		ReceivedAt:  time.Unix(int64(msg.Date), 0),
	}

	switch {
	case msg.IsCommand():
		inbound.Kind = channels.KindCommand
		inbound.Command = msg.Command()
		inbound.Content = msg.CommandArguments()

	case msg.Voice != nil:
		data, err := a.downloadFile(msg.Voice.FileID)
		if err != nil {
			a.logger.Error("failed to download voice note", "error", err)
			return
		}
		inbound.Kind = channels.KindVoice
		inbound.Media = append(inbound.Media, channels.Media{
			Type:     channels.MediaAudio,
			Data:     data,
			MimeType: msg.Voice.MimeType,
			Format:   voiceFormat,
			Duration: msg.Voice.Duration,
		})

	case msg.Audio != nil:
		data, err := a.downloadFile(msg.Audio.FileID)
		if err != nil {
			a.logger.Error("failed to download audio file", "error", err)
			return
		}
		inbound.Kind = channels.KindVoice
		inbound.Media = append(inbound.Media, channels.Media{
			Type:     channels.MediaAudio,
			Data:     data,
			Filename: msg.Audio.FileName,
			MimeType: msg.Audio.MimeType,
			Format:   audioFormat(msg.Audio.FileName, msg.Audio.MimeType),
			Duration: msg.Audio.Duration,
		})

	case msg.Text != "":
		inbound.Kind = channels.KindText
		inbound.Content = msg.Text

	default:
		return
	}

	select {
	case a.incoming <- inbound:
	default:
		a.logger.Warn("incoming message channel full, dropping message")
	}
}

// handleCallbackQuery processes button press callbacks
func (a *Adapter) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	// Acknowledge so the client clears its spinner.
	callback := tgbotapi.NewCallback(query.ID, "")
	if _, err := a.bot.Request(callback); err != nil {
		a.logger.Warn("failed to answer callback query", "error", err)
	}

	if query.Message == nil {
		return
	}

	inbound := &channels.InboundMessage{
		ID:          query.ID,
		UserID:      fmt.Sprintf("%d", query.Message.Chat.ID),
		ChannelName: "telegram",
		ChannelID:   fmt.Sprintf("%d", query.Message.Chat.ID),
		Kind:        channels.KindCallback,
		Content:     query.Data,
		ReceivedAt:  time.Now(),
	}

	select {
	case a.incoming <- inbound:
	default:
		a.logger.Warn("incoming message channel full, dropping callback")
	}
}

// downloadFile fetches a file's bytes from the Telegram file API
func (a *Adapter) downloadFile(fileID string) ([]byte, error) {
	url, err := a.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file url: %w", err)
	}

	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// Helper functions

func parseChatID(userID string) (int64, error) {
	var chatID int64
	_, err := fmt.Sscanf(userID, "%d", &chatID)
	return chatID, err
}

// audioFormat guesses the container from the filename or MIME type.
func audioFormat(filename, mimeType string) string {
	if ext := strings.TrimPrefix(path.Ext(filename), "."); ext != "" {
		return strings.ToLower(ext)
	}
	switch mimeType {
	case "audio/mpeg":
		return "mp3"
	case "audio/ogg":
		return "ogg"
	case "audio/wav", "audio/x-wav":
		return "wav"
	}
	return "ogg"
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	chars := []string{"_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	result := text
	for _, char := range chars {
		result = strings.ReplaceAll(result, char, "\\"+char)
	}
	return result
}
