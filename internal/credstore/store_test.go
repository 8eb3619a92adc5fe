package credstore

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "state", "credentials.json"))
}

func TestLoadMissingFile(t *testing.T) {
	store := testStore(t)

	cache, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, CacheVersion, cache.Version)
	assert.Empty(t, cache.Accounts)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := testStore(t)

	cache := &Cache{}
	cache.Upsert(Account{
		Username: "alice@example.com",
		Token: Token{
			AccessToken:  "at-1",
			RefreshToken: "rt-1",
			TokenType:    "Bearer",
			Expiry:       time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
		},
	})
	require.NoError(t, store.Save(cache))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Accounts, 1)
	assert.Equal(t, "alice@example.com", loaded.Accounts[0].Username)
	assert.Equal(t, "rt-1", loaded.Accounts[0].Token.RefreshToken)
	assert.True(t, loaded.Accounts[0].Token.Expiry.Equal(time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)))
}

func TestSaveRestrictsPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}
	store := testStore(t)
	require.NoError(t, store.Save(&Cache{}))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Dir(store.Path()))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Save(&Cache{}))

	_, err := os.Stat(store.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLoadCorruptFile(t *testing.T) {
	store := testStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o700))
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o600))

	_, err := store.Load()
	assert.Error(t, err)
}

func TestActiveSelection(t *testing.T) {
	cache := &Cache{Accounts: []Account{
		{Username: "first@example.com"},
		{Username: "second@example.com"},
	}}

	tests := []struct {
		name string
		hint string
		want string
	}{
		{name: "no hint picks first", hint: "", want: "first@example.com"},
		{name: "hint selects match", hint: "second@example.com", want: "second@example.com"},
		{name: "hint is case insensitive", hint: "SECOND@EXAMPLE.COM", want: "second@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := cache.Active(tt.hint)
			require.NotNil(t, acct)
			assert.Equal(t, tt.want, acct.Username)
		})
	}

	t.Run("hint with no match", func(t *testing.T) {
		assert.Nil(t, cache.Active("missing@example.com"))
	})

	t.Run("empty cache", func(t *testing.T) {
		assert.Nil(t, (&Cache{}).Active(""))
	})
}

func TestUpsertReplacesByUsername(t *testing.T) {
	cache := &Cache{}
	cache.Upsert(Account{Username: "alice@example.com", Token: Token{RefreshToken: "old"}})
	cache.Upsert(Account{Username: "Alice@Example.com", Token: Token{RefreshToken: "new"}})

	require.Len(t, cache.Accounts, 1)
	assert.Equal(t, "new", cache.Accounts[0].Token.RefreshToken)
}

func TestConcurrentSaves(t *testing.T) {
	store := testStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache := &Cache{}
			cache.Upsert(Account{Username: "alice@example.com", Token: Token{RefreshToken: "rt"}})
			assert.NoError(t, store.Save(cache))
		}()
	}
	wg.Wait()

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Accounts, 1)
}
