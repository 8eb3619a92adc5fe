package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// CacheVersion is the on-disk schema version.
const CacheVersion = 1

// Token is the delegated credential material for one account.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

// Account is one delegated identity held in the cache.
type Account struct {
	Username      string `json:"username"`
	HomeAccountID string `json:"home_account_id,omitempty"`
	Token         Token  `json:"token"`
}

// Cache is the serialized credential cache. It holds zero or one account in
// practice; the slice shape keeps the file forward-compatible.
type Cache struct {
	Version  int       `json:"version"`
	Accounts []Account `json:"accounts"`
}

// Active selects the account to use. An explicit username hint wins
// (case-insensitive); otherwise the first account is used. Returns nil when
// the cache is empty or the hint matches nothing.
func (c *Cache) Active(usernameHint string) *Account {
	if c == nil || len(c.Accounts) == 0 {
		return nil
	}
	if usernameHint == "" {
		return &c.Accounts[0]
	}
	for i := range c.Accounts {
		if strings.EqualFold(c.Accounts[i].Username, usernameHint) {
			return &c.Accounts[i]
		}
	}
	return nil
}

// Upsert replaces the account with the same username or appends a new one.
func (c *Cache) Upsert(acct Account) {
	for i := range c.Accounts {
		if strings.EqualFold(c.Accounts[i].Username, acct.Username) {
			c.Accounts[i] = acct
			return
		}
	}
	c.Accounts = append(c.Accounts, acct)
}

// Store persists the credential cache as a single owner-only JSON file.
// Writes go through a temp file followed by a rename so a crash mid-write
// never leaves a truncated cache, and are serialized so concurrent saves
// cannot interleave on the same temp path.
type Store struct {
	path string

	// mu serializes Save calls; Load is read-only and safe without it.
	mu sync.Mutex
}

// New creates a Store persisting to the given path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the cache from disk. A missing file yields an empty cache, not
// an error; any other read or decode failure propagates.
func (s *Store) Load() (*Cache, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Cache{Version: CacheVersion}, nil
		}
		return nil, fmt.Errorf("failed to read credential cache %s: %w", s.path, err)
	}

	var cache Cache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("failed to decode credential cache %s: %w", s.path, err)
	}
	if cache.Version == 0 {
		cache.Version = CacheVersion
	}
	return &cache, nil
}

// Save writes the cache atomically with owner-only permissions, creating the
// state directory on first write.
func (s *Store) Save(cache *Cache) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cache.Version == 0 {
		cache.Version = CacheVersion
	}

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credential cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credential cache: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace credential cache: %w", err)
	}
	return nil
}
