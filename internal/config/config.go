package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults for settings that have a sensible out-of-the-box value.
const (
	DefaultHTTPAddr         = ":8484"
	DefaultMetricsAddr      = ":9090"
	DefaultWorkListName     = "Work"
	DefaultTimeZone         = "UTC"
	DefaultDueTime          = "08:00"
	DefaultRelayStartTime   = "08:00"
	DefaultRelayDuration    = 30
	DefaultRelayCalendar    = "Tasks"
	DefaultLedgerMaxEntries = 500
	DefaultRelayTimeout     = 15 * time.Second
	DefaultGraphTimeout     = 30 * time.Second
)

// Auth holds the delegated Microsoft identity configuration.
type Auth struct {
	// TenantID is the directory the delegated user belongs to.
	// "consumers" or "common" work for personal Microsoft accounts.
	TenantID string

	// ClientID is the public application (client) id registered for the
	// device-code flow. Required for any Graph-backed operation.
	ClientID string

	// UsernameHint selects the cached account when the credential cache
	// holds more than one. Empty means "first account found".
	UsernameHint string
}

// Tasks holds category-to-list routing and due-date defaults.
type Tasks struct {
	// WorkListName is the display name of the list backing the "work" category.
	WorkListName string

	// DefaultTimeZone is applied to bare due dates sent to the task API.
	DefaultTimeZone string

	// DefaultDueTime (HH:MM) is combined with bare due dates.
	DefaultDueTime string
}

// Relay holds the downstream calendar relay configuration.
type Relay struct {
	// TargetURL is the downstream receiver. Empty disables delivery;
	// inbound events are then accepted but undelivered.
	TargetURL string

	// AuthHeader is sent verbatim as the Authorization header when set.
	AuthHeader string

	// Secret is sent as X-Relay-Secret when set.
	Secret string

	// TargetCategory is the category label that qualifies an event for relay.
	TargetCategory string

	// CalendarName is the downstream calendar the receiver should write to.
	CalendarName string

	// DurationMinutes is the event length the receiver should book.
	DurationMinutes int

	// DefaultStartTime (HH:MM) is combined with bare due dates.
	DefaultStartTime string

	// DefaultTimeZone is attached to events built from bare due dates.
	DefaultTimeZone string

	// LedgerMaxEntries caps the idempotency ledger size.
	LedgerMaxEntries int

	// Timeout bounds a single delivery attempt.
	Timeout time.Duration
}

// Config is the process-wide configuration for taskbridge.
type Config struct {
	// HTTPAddr is the bind address of the bridge API.
	HTTPAddr string

	// APIToken, when set, is required as a bearer token on bridge API calls.
	APIToken string

	// StateDir holds the credential cache and the relay ledger.
	StateDir string

	// MetricsEnabled starts the dedicated metrics listener.
	MetricsEnabled bool

	// MetricsAddr is the bind address of the metrics listener.
	MetricsAddr string

	// LogFormat is "json" or "text".
	LogFormat string

	// Debug lowers the log level to debug.
	Debug bool

	Auth  Auth
	Tasks Tasks
	Relay Relay
}

// Load reads configuration from the environment (TASKBRIDGE_* variables) and
// an optional YAML file. Flag overrides are applied by the cobra layer after
// loading. Missing file is not an error; a malformed file is.
func Load(file string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TASKBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
			}
		}
	}

	cfg := &Config{
		HTTPAddr:       v.GetString("http_addr"),
		APIToken:       v.GetString("api_token"),
		StateDir:       v.GetString("state_dir"),
		MetricsEnabled: v.GetBool("metrics.enabled"),
		MetricsAddr:    v.GetString("metrics.addr"),
		LogFormat:      v.GetString("log_format"),
		Debug:          v.GetBool("debug"),
		Auth: Auth{
			TenantID:     v.GetString("auth.tenant_id"),
			ClientID:     v.GetString("auth.client_id"),
			UsernameHint: v.GetString("auth.username_hint"),
		},
		Tasks: Tasks{
			WorkListName:    v.GetString("tasks.work_list_name"),
			DefaultTimeZone: v.GetString("tasks.default_time_zone"),
			DefaultDueTime:  v.GetString("tasks.default_due_time"),
		},
		Relay: Relay{
			TargetURL:        v.GetString("relay.target_url"),
			AuthHeader:       v.GetString("relay.auth_header"),
			Secret:           v.GetString("relay.secret"),
			TargetCategory:   v.GetString("relay.target_category"),
			CalendarName:     v.GetString("relay.calendar_name"),
			DurationMinutes:  v.GetInt("relay.duration_minutes"),
			DefaultStartTime: v.GetString("relay.default_start_time"),
			DefaultTimeZone:  v.GetString("relay.default_time_zone"),
			LedgerMaxEntries: v.GetInt("relay.ledger_max_entries"),
			Timeout:          v.GetDuration("relay.timeout"),
		},
	}

	if cfg.StateDir == "" {
		cfg.StateDir = defaultStateDir()
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", DefaultHTTPAddr)
	v.SetDefault("log_format", "json")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", DefaultMetricsAddr)
	v.SetDefault("auth.tenant_id", "consumers")
	v.SetDefault("tasks.work_list_name", DefaultWorkListName)
	v.SetDefault("tasks.default_time_zone", DefaultTimeZone)
	v.SetDefault("tasks.default_due_time", DefaultDueTime)
	v.SetDefault("relay.target_category", "personal")
	v.SetDefault("relay.calendar_name", DefaultRelayCalendar)
	v.SetDefault("relay.duration_minutes", DefaultRelayDuration)
	v.SetDefault("relay.default_start_time", DefaultRelayStartTime)
	v.SetDefault("relay.default_time_zone", DefaultTimeZone)
	v.SetDefault("relay.ledger_max_entries", DefaultLedgerMaxEntries)
	v.SetDefault("relay.timeout", DefaultRelayTimeout)
}

// ValidateAuth checks the settings every Graph-backed path depends on.
// A failure here is a configuration error and is fatal for that path.
func (c *Config) ValidateAuth() error {
	if strings.TrimSpace(c.Auth.ClientID) == "" {
		return fmt.Errorf("auth.client_id is required (set TASKBRIDGE_AUTH_CLIENT_ID)")
	}
	if strings.TrimSpace(c.Auth.TenantID) == "" {
		return fmt.Errorf("auth.tenant_id must not be empty")
	}
	return nil
}

// Validate checks cross-cutting settings that do not depend on auth.
func (c *Config) Validate() error {
	if _, err := ParseClock(c.Relay.DefaultStartTime); err != nil {
		return fmt.Errorf("relay.default_start_time: %w", err)
	}
	if _, err := ParseClock(c.Tasks.DefaultDueTime); err != nil {
		return fmt.Errorf("tasks.default_due_time: %w", err)
	}
	if c.Relay.DurationMinutes <= 0 {
		return fmt.Errorf("relay.duration_minutes must be positive")
	}
	if c.Relay.LedgerMaxEntries <= 0 {
		return fmt.Errorf("relay.ledger_max_entries must be positive")
	}
	return nil
}

// ParseClock validates an HH:MM wall-clock string and returns it normalized.
func ParseClock(s string) (string, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid HH:MM time %q", s)
	}
	return t.Format("15:04"), nil
}

// CredentialCachePath returns the location of the credential cache file.
func (c *Config) CredentialCachePath() string {
	return filepath.Join(c.StateDir, "credentials.json")
}

// LegacyTokenPath returns the location of the legacy flat refresh-token file.
func (c *Config) LegacyTokenPath() string {
	return filepath.Join(c.StateDir, "legacy_refresh_token.json")
}

// LedgerPath returns the location of the relay idempotency ledger.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.StateDir, "relay_ledger.json")
}

func defaultStateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "taskbridge")
	}
	return filepath.Join(".", ".taskbridge")
}
