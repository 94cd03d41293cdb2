// Package channels provides unified messaging channel interfaces for Voxbot.
//
// The Channel interface is the core abstraction for all messaging front-ends.
// It provides:
//   - Unified messaging with audio media support
//   - Inline button keyboards for voice selection
//   - Capability discovery for channel-specific features
package channels

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Common errors
var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrChannelDisabled = errors.New("channel is disabled")
)

// InboundKind categorizes incoming messages so the bot loop can route them.
type InboundKind string

const (
	KindText     InboundKind = "text"     // Plain text message
	KindVoice    InboundKind = "voice"    // Voice note with audio media attached
	KindCommand  InboundKind = "command"  // Slash command, name in Command
	KindCallback InboundKind = "callback" // Inline button press, data in Content
)

// Channel is the interface all messaging channels must implement.
type Channel interface {
	// Lifecycle
	Name() string
	Start(ctx context.Context) error
	Stop() error
	IsEnabled() bool

	// Messaging
	SendMessage(userID string, msg *OutboundMessage) error
	Incoming() <-chan *InboundMessage

	// Capabilities - channels report what features they support
	SupportsAudio() bool
	SupportsButtons() bool
}

// InboundMessage represents an incoming message from any channel
type InboundMessage struct {
	ID          string
	UserID      string
	ChannelName string // "telegram"
	ChannelID   string // Platform-specific chat ID
	Kind        InboundKind
	Content     string // Text, command arguments, or callback data
	Command     string // Command name when Kind is KindCommand
	Media       []Media
	ReceivedAt  time.Time
}

// OutboundMessage represents a message to send
type OutboundMessage struct {
	Content string
	Media   []Media
	Buttons []Button
	Format  MessageFormat
}

// Media represents attached media (audio, documents)
type Media struct {
	Type     MediaType
	Data     []byte
	Filename string
	MimeType string
	// Format is the audio container as known to the platform, e.g. "ogg".
	Format string
	// Duration is the audio length in seconds when the platform reports it.
	Duration int
}

// MediaType categorizes media
type MediaType string

const (
	MediaAudio    MediaType = "audio"
	MediaDocument MediaType = "document"
)

// Button represents an inline keyboard button. Data is delivered back as a
// KindCallback message when the button is pressed.
type Button struct {
	Label string
	Data  string
}

// MessageFormat defines how to format the message
type MessageFormat string

const (
	FormatPlain    MessageFormat = "plain"
	FormatMarkdown MessageFormat = "markdown"
)

// Router manages message routing across channels.
type Router struct {
	mu       sync.RWMutex
	channels map[string]Channel
	incoming chan *InboundMessage
	done     chan struct{}
}

// NewRouter creates a new channel router
func NewRouter() *Router {
	return &Router{
		channels: make(map[string]Channel),
		incoming: make(chan *InboundMessage, 100),
		done:     make(chan struct{}),
	}
}

// Register adds a channel to the router
func (r *Router) Register(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.Name()] = ch
}

// Get retrieves a channel by name
func (r *Router) Get(name string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[name]
	return ch, ok
}

// All returns all registered channels
func (r *Router) All() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channels := make([]Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		channels = append(channels, ch)
	}
	return channels
}

// Incoming returns a unified channel for messages from all channels
func (r *Router) Incoming() <-chan *InboundMessage {
	return r.incoming
}

// StartAll starts all enabled channels and begins message aggregation
func (r *Router) StartAll(ctx context.Context) error {
	r.mu.RLock()
	channels := make([]Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		if ch.IsEnabled() {
			channels = append(channels, ch)
		}
	}
	r.mu.RUnlock()

	for _, ch := range channels {
		if err := ch.Start(ctx); err != nil {
			return err
		}
	}

	for _, ch := range channels {
		go r.aggregateMessages(ctx, ch)
	}

	return nil
}

// aggregateMessages forwards messages from a channel to the unified incoming channel
func (r *Router) aggregateMessages(ctx context.Context, ch Channel) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case msg, ok := <-ch.Incoming():
			if !ok {
				return
			}
			select {
			case r.incoming <- msg:
			case <-ctx.Done():
				return
			case <-r.done:
				return
			}
		}
	}
}

// StopAll stops all channels
func (r *Router) StopAll() error {
	close(r.done)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var lastErr error
	for _, ch := range r.channels {
		if err := ch.Stop(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// SendToChannel sends a message to a specific channel
func (r *Router) SendToChannel(channelName, userID string, msg *OutboundMessage) error {
	ch, ok := r.Get(channelName)
	if !ok {
		return ErrChannelNotFound
	}
	return ch.SendMessage(userID, msg)
}

// -----------------------------------------------------------------------------
// BaseChannel provides a partial implementation for common channel functionality
// -----------------------------------------------------------------------------

// BaseChannel provides common functionality that can be embedded by channel
// implementations. It handles the incoming queue and capability defaults.
type BaseChannel struct {
	name     string
	enabled  bool
	incoming chan *InboundMessage
}

// NewBaseChannel creates a new base channel
func NewBaseChannel(name string, enabled bool) *BaseChannel {
	return &BaseChannel{
		name:     name,
		enabled:  enabled,
		incoming: make(chan *InboundMessage, 100),
	}
}

// Name returns the channel name
func (b *BaseChannel) Name() string {
	return b.name
}

// IsEnabled returns whether the channel is enabled
func (b *BaseChannel) IsEnabled() bool {
	return b.enabled
}

// SetEnabled enables or disables the channel
func (b *BaseChannel) SetEnabled(enabled bool) {
	b.enabled = enabled
}

// Incoming returns the channel for incoming messages
func (b *BaseChannel) Incoming() <-chan *InboundMessage {
	return b.incoming
}

// EnqueueMessage adds a message to the incoming queue
func (b *BaseChannel) EnqueueMessage(msg *InboundMessage) {
	select {
	case b.incoming <- msg:
	default:
		// Channel full, drop message (or could log warning)
	}
}

// SupportsAudio returns false by default
func (b *BaseChannel) SupportsAudio() bool {
	return false
}

// SupportsButtons returns false by default
func (b *BaseChannel) SupportsButtons() bool {
	return false
}

// Close closes the incoming channel
func (b *BaseChannel) Close() {
	close(b.incoming)
}
