package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// SpeechConfig holds speech provider client configuration.
type SpeechConfig struct {
	BaseURL           string
	APIKey            string
	TTSModel          string
	TranscribeTimeout time.Duration
	SynthesizeTimeout time.Duration
}

// SpeechClient talks to an ElevenLabs-style speech API.
type SpeechClient struct {
	cfg        SpeechConfig
	httpClient *http.Client
}

// NewSpeechClient creates a speech provider client.
func NewSpeechClient(cfg SpeechConfig) (*SpeechClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.TranscribeTimeout <= 0 {
		cfg.TranscribeTimeout = 30 * time.Second
	}
	if cfg.SynthesizeTimeout <= 0 {
		cfg.SynthesizeTimeout = 60 * time.Second
	}

	// Timeouts differ per operation, so they are applied per call rather
	// than on the shared client.
	return &SpeechClient{cfg: cfg, httpClient: &http.Client{}}, nil
}

// Transcribe sends raw audio to the speech-to-text endpoint and returns the
// transcript.
func (c *SpeechClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyInput
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.TranscribeTimeout)
	defer cancel()

	body, contentType, err := audioForm("file", "audio.wav", audio, nil)
	if err != nil {
		return "", providerErr("speech", "transcribe", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/speech-to-text", body)
	if err != nil {
		return "", providerErr("speech", "transcribe", err)
	}
	req.Header.Set("Content-Type", contentType)
	c.setAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", providerErr("speech", "transcribe", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", providerErr("speech", "transcribe",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", providerErr("speech", "transcribe", err)
	}

	return result.Text, nil
}

// Synthesize converts text to audio in the given voice.
func (c *SpeechClient) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.SynthesizeTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{
		"text":     text,
		"model_id": c.cfg.TTSModel,
	})
	if err != nil {
		return nil, providerErr("speech", "synthesize", err)
	}

	url := c.cfg.BaseURL + "/text-to-speech/" + voiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, providerErr("speech", "synthesize", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, providerErr("speech", "synthesize", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, providerErr("speech", "synthesize",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providerErr("speech", "synthesize", err)
	}
	return audio, nil
}

// ConvertVoice performs direct voice conversion: the source audio's timbre is
// transferred to the target voice without an intermediate transcript. Not all
// provider accounts have access to this endpoint.
func (c *SpeechClient) ConvertVoice(ctx context.Context, audio []byte, targetVoiceID string) ([]byte, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyInput
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.SynthesizeTimeout)
	defer cancel()

	body, contentType, err := audioForm("input_file", "input.wav", audio, map[string]string{
		"voice_id": targetVoiceID,
	})
	if err != nil {
		return nil, providerErr("speech", "convert_voice", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/voice-conversion", body)
	if err != nil {
		return nil, providerErr("speech", "convert_voice", err)
	}
	req.Header.Set("Content-Type", contentType)
	c.setAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, providerErr("speech", "convert_voice", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, providerErr("speech", "convert_voice",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)))
	}

	converted, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providerErr("speech", "convert_voice", err)
	}
	return converted, nil
}

// Voices lists the synthesis voices available to this account. When
// customOnly is set, stock voices are filtered out and only cloned,
// generated or custom voices are returned.
func (c *SpeechClient) Voices(ctx context.Context, customOnly bool) ([]VoiceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.TranscribeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/voices", nil)
	if err != nil {
		return nil, providerErr("speech", "voices", err)
	}
	c.setAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, providerErr("speech", "voices", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, providerErr("speech", "voices",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)))
	}

	var result struct {
		Voices []VoiceInfo `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, providerErr("speech", "voices", err)
	}

	if !customOnly {
		return result.Voices, nil
	}

	custom := []VoiceInfo{}
	for _, v := range result.Voices {
		switch v.Category {
		case "cloned", "generated", "custom":
			custom = append(custom, v)
		}
	}
	return custom, nil
}

func (c *SpeechClient) setAuthHeader(req *http.Request) {
	req.Header.Set("xi-api-key", c.cfg.APIKey)
}

// audioForm builds a multipart body with one file part and optional plain
// form fields.
func audioForm(fileField, filename string, audio []byte, fields map[string]string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(fileField, filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}
