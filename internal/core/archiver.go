package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

// ArchiveConfig holds findings archive settings.
type ArchiveConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Dir      string `yaml:"dir"`
	Compress bool   `yaml:"compress"` // gzip compress (default true)
}

// DefaultArchiveConfig returns sane defaults for the findings archive.
func DefaultArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		Enabled:  false,
		Dir:      "./data/archive",
		Compress: true,
	}
}

// Archiver appends the new findings of one run to an NDJSON file (gzip
// compressed by default) so alert history outlives the seen-state TTL.
// One file per run; it is opened on the first write.
type Archiver struct {
	cfg    ArchiveConfig
	runID  string
	logger zerolog.Logger

	file    *os.File
	gz      *gzip.Writer
	w       io.Writer
	path    string
	written int
	bytes   int64
}

// archiveRecord is the NDJSON envelope written to archive files.
type archiveRecord struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"ts"`
	RunID     string    `json:"run_id"`
	Data      Finding   `json:"data"`
}

// NewArchiver creates the archive directory and returns an idle archiver.
func NewArchiver(cfg ArchiveConfig, runID string, logger zerolog.Logger) (*Archiver, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating archive dir %s: %w", cfg.Dir, err)
	}
	return &Archiver{
		cfg:    cfg,
		runID:  runID,
		logger: logger.With().Str("component", "archiver").Logger(),
	}, nil
}

// Write appends one finding.
func (a *Archiver) Write(f Finding) error {
	if a.w == nil {
		if err := a.open(); err != nil {
			return err
		}
	}

	line, err := json.Marshal(archiveRecord{
		Type:      "finding",
		Timestamp: time.Now().UTC(),
		RunID:     a.runID,
		Data:      f,
	})
	if err != nil {
		return fmt.Errorf("marshaling archive record: %w", err)
	}
	line = append(line, '\n')

	n, err := a.w.Write(line)
	if err != nil {
		return fmt.Errorf("writing archive record: %w", err)
	}
	a.written++
	a.bytes += int64(n)
	return nil
}

func (a *Archiver) open() error {
	ts := time.Now().UTC().Format("20060102T150405Z")
	ext := ".ndjson"
	if a.cfg.Compress {
		ext = ".ndjson.gz"
	}
	short := a.runID
	if len(short) > 8 {
		short = short[:8]
	}
	path := filepath.Join(a.cfg.Dir, fmt.Sprintf("authburst-findings-%s-%s%s", ts, short, ext))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening archive file: %w", err)
	}

	a.file = f
	a.path = path
	a.w = f
	if a.cfg.Compress {
		a.gz, _ = gzip.NewWriterLevel(f, gzip.BestSpeed)
		a.w = a.gz
	}

	a.logger.Debug().Str("file", filepath.Base(path)).Msg("opened archive file")
	return nil
}

// Close flushes and closes the current file, if any.
func (a *Archiver) Close() error {
	var firstErr error
	if a.gz != nil {
		if err := a.gz.Close(); err != nil {
			firstErr = fmt.Errorf("closing gzip stream: %w", err)
		}
		a.gz = nil
	}
	if a.file != nil {
		if err := a.file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing archive file: %w", err)
		}
		a.file = nil
	}
	a.w = nil

	if a.written > 0 {
		a.logger.Info().
			Str("file", a.path).
			Int("findings", a.written).
			Int64("bytes", a.bytes).
			Msg("findings archived")
	}
	return firstErr
}

// Path returns the file written by this run, or "" if nothing was written.
func (a *Archiver) Path() string {
	return a.path
}

// Count returns the number of findings written.
func (a *Archiver) Count() int {
	return a.written
}
