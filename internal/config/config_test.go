package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "consumers", cfg.Auth.TenantID)
	assert.Equal(t, DefaultWorkListName, cfg.Tasks.WorkListName)
	assert.Equal(t, "personal", cfg.Relay.TargetCategory)
	assert.Equal(t, DefaultLedgerMaxEntries, cfg.Relay.LedgerMaxEntries)
	assert.Equal(t, DefaultRelayTimeout, cfg.Relay.Timeout)
	assert.NotEmpty(t, cfg.StateDir)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TASKBRIDGE_AUTH_CLIENT_ID", "client-123")
	t.Setenv("TASKBRIDGE_RELAY_TARGET_URL", "https://relay.example.com/hook")
	t.Setenv("TASKBRIDGE_HTTP_ADDR", ":9999")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "client-123", cfg.Auth.ClientID)
	assert.Equal(t, "https://relay.example.com/hook", cfg.Relay.TargetURL)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskbridge.yaml")
	content := []byte(`
auth:
  client_id: file-client
  tenant_id: common
relay:
  target_category: work
  duration_minutes: 45
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-client", cfg.Auth.ClientID)
	assert.Equal(t, "common", cfg.Auth.TenantID)
	assert.Equal(t, "work", cfg.Relay.TargetCategory)
	assert.Equal(t, 45, cfg.Relay.DurationMinutes)
}

func TestValidateAuth(t *testing.T) {
	tests := []struct {
		name    string
		auth    Auth
		wantErr bool
	}{
		{name: "valid", auth: Auth{TenantID: "consumers", ClientID: "abc"}, wantErr: false},
		{name: "missing client id", auth: Auth{TenantID: "consumers"}, wantErr: true},
		{name: "blank client id", auth: Auth{TenantID: "consumers", ClientID: "   "}, wantErr: true},
		{name: "missing tenant", auth: Auth{ClientID: "abc"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Auth: tt.auth}
			err := cfg.ValidateAuth()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("bad start time", func(t *testing.T) {
		cfg := base()
		cfg.Relay.DefaultStartTime = "25:99"
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive duration", func(t *testing.T) {
		cfg := base()
		cfg.Relay.DurationMinutes = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive ledger cap", func(t *testing.T) {
		cfg := base()
		cfg.Relay.LedgerMaxEntries = -1
		assert.Error(t, cfg.Validate())
	})
}

func TestParseClock(t *testing.T) {
	got, err := ParseClock(" 08:00 ")
	require.NoError(t, err)
	assert.Equal(t, "08:00", got)

	_, err = ParseClock("8am")
	assert.Error(t, err)
}

func TestStatePaths(t *testing.T) {
	cfg := &Config{StateDir: "/var/lib/taskbridge"}
	assert.Equal(t, "/var/lib/taskbridge/credentials.json", cfg.CredentialCachePath())
	assert.Equal(t, "/var/lib/taskbridge/legacy_refresh_token.json", cfg.LegacyTokenPath())
	assert.Equal(t, "/var/lib/taskbridge/relay_ledger.json", cfg.LedgerPath())
}
