package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// SeenState is the persisted cooldown cache. It maps a finding's dedup key
// to the instant it was last alerted. It is not safe for concurrent use.
type SeenState struct {
	Seen map[string]time.Time `json:"seen"`
}

// NewSeenState returns an empty cache.
func NewSeenState() *SeenState {
	return &SeenState{Seen: make(map[string]time.Time)}
}

// LoadSeenState reads the cache at path. A missing file yields an empty
// cache; an unreadable or corrupt file yields an empty cache and a warning.
func LoadSeenState(path string, logger zerolog.Logger) *SeenState {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Err(err).Str("path", path).Msg("seen-state unreadable, starting empty")
		}
		return NewSeenState()
	}

	var st SeenState
	if err := json.Unmarshal(data, &st); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("seen-state corrupt, starting empty")
		return NewSeenState()
	}
	if st.Seen == nil {
		st.Seen = make(map[string]time.Time)
	}
	return &st
}

// IsNew reports whether key has never been alerted, or was last alerted
// more than ttl before now. An age of exactly ttl is still suppressed.
func (s *SeenState) IsNew(key string, now time.Time, ttl time.Duration) bool {
	last, ok := s.Seen[key]
	if !ok {
		return true
	}
	return now.Sub(last) > ttl
}

// MarkSeen records now as the last alert time for key. Nothing is written
// to disk until Save.
func (s *SeenState) MarkSeen(key string, now time.Time) {
	s.Seen[key] = now
}

// LastSeen returns the stored instant for key.
func (s *SeenState) LastSeen(key string) (time.Time, bool) {
	t, ok := s.Seen[key]
	return t, ok
}

// Prune removes entries whose age exceeds ttl and returns how many were
// dropped. Pruned keys would have been reported as new anyway.
func (s *SeenState) Prune(now time.Time, ttl time.Duration) int {
	dropped := 0
	for k, t := range s.Seen {
		if now.Sub(t) > ttl {
			delete(s.Seen, k)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of tracked keys.
func (s *SeenState) Len() int {
	return len(s.Seen)
}

// Keys returns the tracked keys in sorted order.
func (s *SeenState) Keys() []string {
	keys := make([]string, 0, len(s.Seen))
	for k := range s.Seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save writes the whole cache to path, creating parent directories. The
// document goes to a temp file first and is renamed over the target.
func (s *SeenState) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling seen-state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".seen-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing state file %s: %w", path, err)
	}
	return nil
}
