// Package janitor sweeps orphaned audio artifacts out of the temp directory.
//
// Transcoding removes its own temp files on every path, but a crash mid-flow
// can leave them behind. The janitor runs on a cron schedule and deletes any
// voxbot-prefixed file past the configured age.
package janitor

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/voxbot/voxbot/internal/config"
	"github.com/voxbot/voxbot/internal/metrics"
)

const artifactPrefix = "voxbot-"

// Janitor manages the scheduled temp-file sweep
type Janitor struct {
	cron   *cron.Cron
	dir    string
	maxAge time.Duration
	logger *slog.Logger
}

// New creates a janitor from config. Returns an error when the schedule does
// not parse.
func New(cfg config.JanitorConfig, tempDir string, logger *slog.Logger) (*Janitor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	j := &Janitor{
		cron:   cron.New(),
		dir:    tempDir,
		maxAge: time.Duration(cfg.MaxAgeMinutes) * time.Minute,
		logger: logger.With("component", "janitor"),
	}

	if _, err := j.cron.AddFunc(cfg.Schedule, j.sweep); err != nil {
		return nil, err
	}
	return j, nil
}

// Start starts the scheduler
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop stops the scheduler and waits for a running sweep to finish
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

// Sweep removes stale artifacts immediately, outside the schedule.
func (j *Janitor) Sweep() int {
	return j.removeStale()
}

func (j *Janitor) sweep() {
	if n := j.removeStale(); n > 0 {
		j.logger.Info("swept stale audio artifacts", "count", n, "dir", j.dir)
	}
}

func (j *Janitor) removeStale() int {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		j.logger.Error("failed to read temp dir", "dir", j.dir, "error", err)
		return 0
	}

	cutoff := time.Now().Add(-j.maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), artifactPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(j.dir, entry.Name())); err != nil {
			j.logger.Warn("failed to remove artifact", "file", entry.Name(), "error", err)
			continue
		}
		removed++
		metrics.ArtifactsSwept.Inc()
	}
	return removed
}
