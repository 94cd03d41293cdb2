// Package provider implements clients for the external services voxbot
// depends on: an OpenAI-compatible text-generation API, an ElevenLabs-style
// speech API (transcription, synthesis, voice listing, direct voice
// conversion) and a local ffmpeg transcoder.
//
// Clients return explicit errors; the pipeline and responder layers decide
// which failures degrade to empty results or canned replies. Provider error
// bodies are for operator logs only and must never reach end users.
package provider

import "errors"

// ErrEmptyInput reports that an operation was given nothing usable: empty
// text for synthesis, or audio that produced no transcript.
var ErrEmptyInput = errors.New("empty input")

// Error reports a failed external provider call, including network errors
// and non-2xx responses.
type Error struct {
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return e.Provider + " " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func providerErr(name, op string, err error) error {
	return &Error{Provider: name, Op: op, Err: err}
}

// VoiceInfo describes one synthesis voice offered by the speech provider.
type VoiceInfo struct {
	ID       string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}
