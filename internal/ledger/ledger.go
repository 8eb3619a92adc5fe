package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Version is the on-disk schema version.
const Version = 1

// Entry records one delivered relay key.
type Entry struct {
	FirstSeenAt time.Time         `json:"firstSeenAt"`
	LastSeenAt  time.Time         `json:"lastSeenAt"`
	Meta        map[string]string `json:"meta,omitempty"`
}

type fileFormat struct {
	Version   int              `json:"version"`
	Processed map[string]Entry `json:"processed"`
}

// Ledger is a durable, bounded set of relay keys that have already been
// delivered downstream. Keys are opaque; derivation belongs to the caller.
//
// Mark must only be called after a confirmed successful delivery, so a failed
// dispatch stays retryable on the next upstream attempt.
type Ledger struct {
	path       string
	maxEntries int

	// mu serializes the read-modify-rewrite cycle in Mark.
	mu sync.Mutex

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a Ledger persisting to path and capped at maxEntries.
func New(path string, maxEntries int) *Ledger {
	return &Ledger{
		path:       path,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Path returns the backing file location.
func (l *Ledger) Path() string {
	return l.path
}

// Has reports whether key has already been delivered. A missing ledger file
// means nothing has been processed yet and is not an error.
func (l *Ledger) Has(key string) (bool, error) {
	state, err := l.load()
	if err != nil {
		return false, err
	}
	_, ok := state.Processed[key]
	return ok, nil
}

// Get returns the recorded entry for key, if present.
func (l *Ledger) Get(key string) (Entry, bool, error) {
	state, err := l.load()
	if err != nil {
		return Entry{}, false, err
	}
	entry, ok := state.Processed[key]
	return entry, ok, nil
}

// Size returns the number of recorded keys.
func (l *Ledger) Size() (int, error) {
	state, err := l.load()
	if err != nil {
		return 0, err
	}
	return len(state.Processed), nil
}

// Mark upserts key, preserving the original first-seen time, evicts the
// oldest entries by last-seen time beyond the configured cap, and persists
// the result atomically. It returns the number of entries evicted.
func (l *Ledger) Mark(key string, meta map[string]string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.load()
	if err != nil {
		return 0, err
	}

	now := l.now().UTC()
	entry := Entry{FirstSeenAt: now, LastSeenAt: now, Meta: meta}
	if existing, ok := state.Processed[key]; ok {
		entry.FirstSeenAt = existing.FirstSeenAt
	}
	state.Processed[key] = entry

	evicted := l.evict(state)

	if err := l.save(state); err != nil {
		return 0, err
	}
	return evicted, nil
}

// evict drops the oldest entries by LastSeenAt until the cap holds.
func (l *Ledger) evict(state *fileFormat) int {
	if l.maxEntries <= 0 || len(state.Processed) <= l.maxEntries {
		return 0
	}

	type keyed struct {
		key      string
		lastSeen time.Time
	}
	entries := make([]keyed, 0, len(state.Processed))
	for k, e := range state.Processed {
		entries = append(entries, keyed{key: k, lastSeen: e.LastSeenAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].lastSeen.Before(entries[j].lastSeen)
	})

	excess := len(state.Processed) - l.maxEntries
	for _, e := range entries[:excess] {
		delete(state.Processed, e.key)
	}
	return excess
}

func (l *Ledger) load() (*fileFormat, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileFormat{Version: Version, Processed: map[string]Entry{}}, nil
		}
		return nil, fmt.Errorf("failed to read relay ledger %s: %w", l.path, err)
	}

	var state fileFormat
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode relay ledger %s: %w", l.path, err)
	}
	if state.Processed == nil {
		state.Processed = map[string]Entry{}
	}
	if state.Version == 0 {
		state.Version = Version
	}
	return &state, nil
}

func (l *Ledger) save(state *fileFormat) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode relay ledger: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write relay ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("failed to replace relay ledger: %w", err)
	}
	return nil
}
