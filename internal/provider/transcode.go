package provider

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// Transcoder converts audio containers by shelling out to ffmpeg. Telegram
// delivers voice notes as OGG/Opus; the speech provider wants WAV.
type Transcoder struct {
	ffmpegPath string
	tempDir    string
}

// NewTranscoder creates a transcoder. ffmpegPath defaults to "ffmpeg" on
// PATH; tempDir defaults to the system temp directory.
func NewTranscoder(ffmpegPath, tempDir string) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Transcoder{ffmpegPath: ffmpegPath, tempDir: tempDir}
}

// Convert transcodes src from sourceFormat to targetFormat and returns the
// converted bytes. No partial output survives a failed conversion: both temp
// artifacts are removed on every exit path.
func (t *Transcoder) Convert(ctx context.Context, src []byte, sourceFormat, targetFormat string) ([]byte, error) {
	if len(src) == 0 {
		return nil, ErrEmptyInput
	}

	id := uuid.NewString()
	inPath := filepath.Join(t.tempDir, fmt.Sprintf("voxbot-in-%s.%s", id, sourceFormat))
	outPath := filepath.Join(t.tempDir, fmt.Sprintf("voxbot-out-%s.%s", id, targetFormat))
	defer os.Remove(inPath)
	defer os.Remove(outPath)

	if err := os.WriteFile(inPath, src, 0600); err != nil {
		return nil, providerErr("ffmpeg", "convert", err)
	}

	cmd := exec.CommandContext(ctx, t.ffmpegPath,
		"-i", inPath,
		"-acodec", "pcm_s16le",
		"-ar", "44100",
		"-ac", "2",
		"-y", outPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, providerErr("ffmpeg", "convert",
			fmt.Errorf("%w: %s", err, string(output)))
	}

	converted, err := os.ReadFile(outPath)
	if err != nil {
		return nil, providerErr("ffmpeg", "convert", err)
	}
	return converted, nil
}
