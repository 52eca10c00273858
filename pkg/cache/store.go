package cache

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NoExpiry makes Load treat an entry as valid regardless of its age.
const NoExpiry time.Duration = -1

// entry is the on-disk record. An entry is always written whole, never
// partially updated.
type entry struct {
	Data     json.RawMessage `json:"data"`
	CachedAt time.Time       `json:"_cached_at"`
}

// Store persists JSON values under deterministic keys with optional
// age-based expiration.
type Store struct {
	dir string
	log zerolog.Logger
	now func() time.Time
}

// New creates the cache directory if needed and returns a store over it.
func New(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir %s: %w", dir, err)
	}
	return &Store{dir: dir, log: log, now: time.Now}, nil
}

// Key derives a deterministic cache key from the given query parts.
func Key(parts ...string) string {
	joined := strings.Join(parts, "|")
	h := fnv.New64a()
	h.Write([]byte(joined))
	// keep a readable prefix for debugging
	prefix := parts[0]
	if len(prefix) > 40 {
		prefix = prefix[:40]
	}
	return fmt.Sprintf("%s_%016x", sanitize(prefix), h.Sum64())
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// Load returns the cached value for key. An entry is valid iff
// now - cached_at <= maxAge; pass NoExpiry to accept any age. Corrupt or
// missing entries read as absent.
func (s *Store) Load(key string, maxAge time.Duration) (json.RawMessage, bool) {
	path := s.path(key)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		s.log.Warn().Str("key", key).Err(err).Msg("cache entry corrupt, ignoring")
		return nil, false
	}
	if maxAge >= 0 && s.now().Sub(e.CachedAt) > maxAge {
		s.log.Debug().Str("key", key).Msg("cache entry expired")
		return nil, false
	}
	return e.Data, true
}

// Save persists value under key. The record is built in full and written via
// a temp file + rename so concurrent runs can overwrite each other but never
// observe a partially-written entry.
func (s *Store) Save(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal value for %s: %w", key, err)
	}
	raw, err := json.Marshal(entry{Data: data, CachedAt: s.now()})
	if err != nil {
		return fmt.Errorf("cache: marshal entry for %s: %w", key, err)
	}
	tmp, err := os.CreateTemp(s.dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("cache: temp file for %s: %w", key, err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: rename %s: %w", key, err)
	}
	s.log.Debug().Str("key", key).Msg("cache entry saved")
	return nil
}

// Invalidate removes the entry for key if it exists.
func (s *Store) Invalidate(key string) {
	if err := os.Remove(s.path(key)); err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Str("key", key).Err(err).Msg("cache invalidate failed")
		}
		return
	}
	s.log.Debug().Str("key", key).Msg("cache entry invalidated")
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}
