// Package pipeline orchestrates the end-to-end media flows: text in / voice
// out, direct voice conversion, and the transcribe-regenerate fallback. One
// request is processed sequentially with no internal parallelism; concurrency
// exists only across independent requests.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voxbot/voxbot/internal/metrics"
	"github.com/voxbot/voxbot/internal/provider"
)

// State tracks where a request is in its flow. Every flow ends in
// StateDelivered or StateAborted.
type State string

const (
	StateReceived     State = "received"
	StateTranscribing State = "transcribing"
	StateRetrieving   State = "retrieving"
	StateGenerating   State = "generating"
	StateSynthesizing State = "synthesizing"
	StateDelivered    State = "delivered"
	StateAborted      State = "aborted"
)

// canonicalFormat is the container every inbound audio payload is normalized
// to before it reaches a provider.
const canonicalFormat = "wav"

// ErrNoSpeech reports that transcription produced no usable text; the flow
// aborts before any generation or synthesis call is made.
var ErrNoSpeech = errors.New("no speech detected")

// SpeechBridge is the speech provider contract the pipeline depends on.
type SpeechBridge interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
	ConvertVoice(ctx context.Context, audio []byte, targetVoiceID string) ([]byte, error)
}

// Transcoder normalizes audio containers.
type Transcoder interface {
	Convert(ctx context.Context, src []byte, sourceFormat, targetFormat string) ([]byte, error)
}

// ResponseGenerator produces reply text for a transcript or text message.
type ResponseGenerator interface {
	GenerateResponse(ctx context.Context, query, userID string) (string, error)
}

// Config selects the deployment behavior at construction time. The pipeline
// itself is mode-agnostic: it calls whatever was injected.
type Config struct {
	Speech     SpeechBridge
	Transcoder Transcoder
	Responder  ResponseGenerator

	// GenerateReplies runs text input through the responder before
	// synthesis. When false, text is synthesized verbatim.
	GenerateReplies bool

	// TextFallback enables the transcribe-regenerate flow when direct
	// voice conversion fails. When false, a failed conversion aborts.
	TextFallback bool

	Logger *slog.Logger
}

// Pipeline chains provider calls for one request at a time.
type Pipeline struct {
	speech          SpeechBridge
	transcoder      Transcoder
	responder       ResponseGenerator
	generateReplies bool
	textFallback    bool
	logger          *slog.Logger
}

// Result carries everything a flow produced. Fields a flow does not produce
// stay zero: direct conversion never materializes a transcript.
type Result struct {
	Transcript string
	ReplyText  string
	Audio      []byte
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		speech:          cfg.Speech,
		transcoder:      cfg.Transcoder,
		responder:       cfg.Responder,
		generateReplies: cfg.GenerateReplies,
		textFallback:    cfg.TextFallback,
		logger:          logger,
	}
}

// TextToVoice synthesizes speech for a text message. In generating
// deployments the text first goes through the responder; otherwise it is
// spoken verbatim.
func (p *Pipeline) TextToVoice(ctx context.Context, text, userID, voiceID string) (*Result, error) {
	run := p.newRun("text_to_voice")

	replyText := text
	if p.generateReplies {
		run.to(StateGenerating)
		generated, err := p.responder.GenerateResponse(ctx, text, userID)
		if err != nil {
			return nil, run.abort(err)
		}
		replyText = generated
	}

	run.to(StateSynthesizing)
	audio, err := p.speech.Synthesize(ctx, replyText, voiceID)
	if err != nil {
		return nil, run.abort(err)
	}

	run.deliver()
	return &Result{ReplyText: replyText, Audio: audio}, nil
}

// VoiceToVoice converts a voice message to the target voice. The direct
// conversion path never materializes text; when it fails and the fallback is
// enabled, the transcribe-regenerate flow takes over.
func (p *Pipeline) VoiceToVoice(ctx context.Context, audio []byte, sourceFormat, userID, voiceID string) (*Result, error) {
	run := p.newRun("voice_to_voice")

	normalized, err := p.normalize(ctx, run, audio, sourceFormat)
	if err != nil {
		return nil, run.abort(err)
	}

	converted, err := p.speech.ConvertVoice(ctx, normalized, voiceID)
	if err == nil {
		run.deliver()
		return &Result{Audio: converted}, nil
	}

	if !p.textFallback {
		return nil, run.abort(err)
	}

	p.logger.Warn("direct voice conversion failed, falling back to transcribe-regenerate",
		"request_id", run.id, "error", err)
	countProviderFailure(err)

	result, ferr := p.exchange(ctx, run, normalized, userID, voiceID)
	if ferr != nil {
		return nil, run.abort(ferr)
	}
	run.deliver()
	return result, nil
}

// VoiceExchange runs the transcribe-regenerate flow and returns the
// transcript, the generated reply and the synthesized audio.
func (p *Pipeline) VoiceExchange(ctx context.Context, audio []byte, sourceFormat, userID, voiceID string) (*Result, error) {
	run := p.newRun("voice_exchange")

	normalized, err := p.normalize(ctx, run, audio, sourceFormat)
	if err != nil {
		return nil, run.abort(err)
	}

	result, err := p.exchange(ctx, run, normalized, userID, voiceID)
	if err != nil {
		return nil, run.abort(err)
	}

	run.deliver()
	return result, nil
}

// normalize converts inbound audio to the canonical container. Audio already
// in canonical form passes through untouched.
func (p *Pipeline) normalize(ctx context.Context, run *flowRun, audio []byte, sourceFormat string) ([]byte, error) {
	if sourceFormat == canonicalFormat {
		return audio, nil
	}
	normalized, err := p.transcoder.Convert(ctx, audio, sourceFormat, canonicalFormat)
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

// exchange is the shared transcribe → generate → synthesize sequence over
// already-normalized audio.
func (p *Pipeline) exchange(ctx context.Context, run *flowRun, normalized []byte, userID, voiceID string) (*Result, error) {
	run.to(StateTranscribing)
	transcript, err := p.speech.Transcribe(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if transcript == "" {
		// Abort before any generation or synthesis call.
		return nil, ErrNoSpeech
	}

	run.to(StateRetrieving)
	run.to(StateGenerating)
	replyText, err := p.responder.GenerateResponse(ctx, transcript, userID)
	if err != nil {
		return nil, err
	}

	run.to(StateSynthesizing)
	audio, err := p.speech.Synthesize(ctx, replyText, voiceID)
	if err != nil {
		return nil, err
	}

	return &Result{Transcript: transcript, ReplyText: replyText, Audio: audio}, nil
}

// flowRun tracks state transitions for one request.
type flowRun struct {
	id     string
	flow   string
	state  State
	start  time.Time
	logger *slog.Logger
}

func (p *Pipeline) newRun(flow string) *flowRun {
	run := &flowRun{
		id:     uuid.NewString(),
		flow:   flow,
		state:  StateReceived,
		start:  time.Now(),
		logger: p.logger,
	}
	run.logger.Debug("flow started", "request_id", run.id, "flow", flow)
	return run
}

func (r *flowRun) to(s State) {
	r.state = s
	r.logger.Debug("flow state", "request_id", r.id, "flow", r.flow, "state", s)
}

func (r *flowRun) deliver() {
	r.state = StateDelivered
	metrics.PipelineRequests.WithLabelValues(r.flow, "delivered").Inc()
	metrics.PipelineDuration.WithLabelValues(r.flow).Observe(time.Since(r.start).Seconds())
	r.logger.Info("flow delivered", "request_id", r.id, "flow", r.flow,
		"duration_ms", time.Since(r.start).Milliseconds())
}

// abort moves the run to its terminal failure state and passes err through,
// so call sites read `return nil, run.abort(err)`.
func (r *flowRun) abort(err error) error {
	r.state = StateAborted
	metrics.PipelineRequests.WithLabelValues(r.flow, "aborted").Inc()
	metrics.PipelineDuration.WithLabelValues(r.flow).Observe(time.Since(r.start).Seconds())
	countProviderFailure(err)
	r.logger.Error("flow aborted", "request_id", r.id, "flow", r.flow,
		"state", r.state, "error", err)
	return err
}

func countProviderFailure(err error) {
	var provErr *provider.Error
	if errors.As(err, &provErr) {
		metrics.ProviderFailures.WithLabelValues(provErr.Provider, provErr.Op).Inc()
	}
}
