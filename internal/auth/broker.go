package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"taskbridge/internal/credstore"
	"taskbridge/internal/instrumentation"
	"taskbridge/internal/logging"
)

// ErrAuthRequired reports that no usable credential exists and the
// interactive device-code flow has not been completed. The remediation is a
// one-time `taskbridge login`.
var ErrAuthRequired = errors.New("authentication required: run 'taskbridge login' to sign in")

// DefaultScopes is the fixed delegated scope set the bridge requests.
// offline_access is what yields a refresh token for silent renewal.
var DefaultScopes = []string{
	"https://graph.microsoft.com/Tasks.ReadWrite",
	"offline_access",
	"openid",
	"profile",
}

// defaultRefreshSkew refreshes tokens this close to expiry before use rather
// than after a 401.
const defaultRefreshSkew = 2 * time.Minute

// DeviceCodePrompt presents a device-code challenge to the user. The flow
// then blocks until the provider resolves or expires the code.
type DeviceCodePrompt func(verificationURI, userCode string)

// Endpoint returns the Microsoft identity platform v2 endpoint for a tenant.
func Endpoint(tenantID string) oauth2.Endpoint {
	base := "https://login.microsoftonline.com/" + tenantID
	return oauth2.Endpoint{
		AuthURL:       base + "/oauth2/v2.0/authorize",
		TokenURL:      base + "/oauth2/v2.0/token",
		DeviceAuthURL: base + "/oauth2/v2.0/devicecode",
	}
}

// Options configures a Broker.
type Options struct {
	// Store persists the credential cache. Required.
	Store *credstore.Store

	// ClientID is the public application id. Required.
	ClientID string

	// TenantID selects the identity endpoint; ignored when Endpoint is set.
	TenantID string

	// Endpoint overrides the provider endpoint; used by tests.
	Endpoint oauth2.Endpoint

	// UsernameHint selects the cached account when more than one exists.
	UsernameHint string

	// Scopes overrides DefaultScopes.
	Scopes []string

	// LegacyTokenPath is the flat refresh-token file consulted at most once
	// per process, only when the cache is empty.
	LegacyTokenPath string

	// Prompt presents the device-code challenge. When nil the broker never
	// starts an interactive flow and reports ErrAuthRequired instead.
	Prompt DeviceCodePrompt

	// RefreshSkew overrides how close to expiry a token is renewed.
	RefreshSkew time.Duration

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Metrics records acquisition attempts by path and result. Optional.
	Metrics *instrumentation.Metrics
}

// Broker produces valid delegated access tokens, hiding whether the path
// taken was silent refresh, legacy-credential migration, or an interactive
// device-code sign-in.
//
// Acquisition attempts are collapsed: all concurrent callers share one
// in-flight attempt, so a refresh token is never redeemed twice in parallel
// and the user is never shown duplicate device-code prompts.
type Broker struct {
	conf         *oauth2.Config
	store        *credstore.Store
	usernameHint string
	legacyPath   string
	prompt       DeviceCodePrompt
	refreshSkew  time.Duration
	logger       *slog.Logger
	metrics      *instrumentation.Metrics

	flight singleflight.Group

	// legacyTried ensures the legacy file is consulted at most once per
	// process lifetime.
	legacyTried atomic.Bool
}

// New creates a Broker. A missing client id is a configuration error; every
// auth-dependent path is fatal without it.
func New(opts Options) (*Broker, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("auth: credential store is required")
	}
	if strings.TrimSpace(opts.ClientID) == "" {
		return nil, fmt.Errorf("auth: client id is required")
	}

	endpoint := opts.Endpoint
	if endpoint.TokenURL == "" {
		tenant := opts.TenantID
		if tenant == "" {
			tenant = "consumers"
		}
		endpoint = Endpoint(tenant)
	}

	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	refreshSkew := opts.RefreshSkew
	if refreshSkew <= 0 {
		refreshSkew = defaultRefreshSkew
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Broker{
		conf: &oauth2.Config{
			ClientID: opts.ClientID,
			Endpoint: endpoint,
			Scopes:   scopes,
		},
		store:        opts.Store,
		usernameHint: opts.UsernameHint,
		legacyPath:   opts.LegacyTokenPath,
		prompt:       opts.Prompt,
		refreshSkew:  refreshSkew,
		logger:       logging.WithComponent(logger, "auth"),
		metrics:      opts.Metrics,
	}, nil
}

// Token returns a valid access token, serializing concurrent callers onto
// one in-flight acquisition. The in-flight handle clears on completion so
// the next call starts a fresh attempt.
func (b *Broker) Token(ctx context.Context) (*oauth2.Token, error) {
	v, err, _ := b.flight.Do("token", func() (any, error) {
		return b.acquire(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*oauth2.Token), nil
}

// AccessToken returns just the bearer string, for use as a graph.TokenProvider.
func (b *Broker) AccessToken(ctx context.Context) (string, error) {
	tok, err := b.Token(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// CanAuthenticateSilently reports whether a token can be produced right now
// without any interactive prompt. Used by the auth status probe.
//
// The probe shares the acquisition flight with Token, so a status check
// arriving mid-acquisition joins the in-flight attempt instead of redeeming
// the same refresh token a second time. A Token caller that joins a
// probe-originated flight sees ErrAuthRequired on failure, same as a full
// acquisition without a prompt.
func (b *Broker) CanAuthenticateSilently(ctx context.Context) bool {
	_, err, _ := b.flight.Do("token", func() (any, error) {
		tok, err := b.silent(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w (silent acquisition failed: %v)", ErrAuthRequired, err)
		}
		return tok, nil
	})
	return err == nil
}

// StatusInfo describes the cached credential state.
type StatusInfo struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	TokenExpiry   string `json:"tokenExpiry,omitempty"`
}

// Status reports whether the bridge can act for the user without a new
// sign-in, plus the cached account identity. It may redeem a refresh token
// but never starts an interactive flow.
func (b *Broker) Status(ctx context.Context) StatusInfo {
	info := StatusInfo{Authenticated: b.CanAuthenticateSilently(ctx)}

	cache, err := b.store.Load()
	if err != nil {
		return info
	}
	acct := cache.Active(b.usernameHint)
	if acct == nil {
		return info
	}
	info.Username = acct.Username
	if !acct.Token.Expiry.IsZero() {
		info.TokenExpiry = acct.Token.Expiry.UTC().Format(time.RFC3339)
	}
	return info
}

// acquire walks the three-step state machine: silent, legacy migration,
// interactive. Silent and migration failures are recoverable and never
// reported; only a failed interactive attempt surfaces to the caller.
func (b *Broker) acquire(ctx context.Context) (*oauth2.Token, error) {
	if tok, err := b.silent(ctx); err == nil {
		return tok, nil
	} else if !errors.Is(err, errNoAccount) {
		b.logger.Debug("silent token acquisition failed", logging.Err(err))
	}

	if tok, err := b.migrateLegacy(ctx); tok != nil {
		return tok, nil
	} else if err != nil {
		b.logger.Debug("legacy migration failed", logging.Err(err))
	}

	return b.interactive(ctx)
}

// errNoAccount distinguishes "cache is empty" from a failed refresh, so the
// legacy migration gate stays correct.
var errNoAccount = errors.New("no cached account")

// silent tries the cached account: reuse a fresh access token, or redeem the
// cached refresh material. Never interactive.
func (b *Broker) silent(ctx context.Context) (tok *oauth2.Token, err error) {
	defer func() {
		// An empty cache is not an attempt, so it stays off the counter.
		if errors.Is(err, errNoAccount) {
			return
		}
		result := "success"
		if err != nil {
			result = "failure"
		}
		b.metrics.RecordTokenAcquisition(ctx, "silent", result)
	}()

	cache, err := b.store.Load()
	if err != nil {
		return nil, err
	}
	acct := cache.Active(b.usernameHint)
	if acct == nil {
		return nil, errNoAccount
	}

	if acct.Token.AccessToken != "" && time.Until(acct.Token.Expiry) > b.refreshSkew {
		return &oauth2.Token{
			AccessToken: acct.Token.AccessToken,
			TokenType:   acct.Token.TokenType,
			Expiry:      acct.Token.Expiry,
		}, nil
	}

	if acct.Token.RefreshToken == "" {
		return nil, fmt.Errorf("cached account %s has no refresh token", logging.SanitizeUsername(acct.Username))
	}

	refreshed, err := b.redeem(ctx, acct.Token.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh for %s failed: %w", logging.SanitizeUsername(acct.Username), err)
	}
	if err := b.persist(acct.Username, acct.HomeAccountID, refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// migrateLegacy redeems a flat legacy refresh-token file into the cache.
// Entered only when no cached account exists, at most once per process.
// Returns (nil, nil) when there is nothing to migrate.
func (b *Broker) migrateLegacy(ctx context.Context) (*oauth2.Token, error) {
	if b.legacyPath == "" || b.legacyTried.Swap(true) {
		return nil, nil
	}

	cache, err := b.store.Load()
	if err != nil || len(cache.Accounts) > 0 {
		return nil, nil
	}

	data, err := os.ReadFile(b.legacyPath)
	if err != nil {
		return nil, nil
	}

	var legacy struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(data, &legacy); err != nil || legacy.RefreshToken == "" {
		b.logger.Warn("legacy refresh token file is malformed, ignoring",
			slog.String("path", b.legacyPath))
		return nil, nil
	}

	tok, err := b.redeem(ctx, legacy.RefreshToken)
	if err != nil {
		// A stale legacy file looks exactly like "never authenticated" to
		// the caller; the distinct log line is the only breadcrumb.
		b.metrics.RecordTokenAcquisition(ctx, "legacy", "failure")
		b.logger.Warn("legacy refresh token rejected by provider",
			slog.String("path", b.legacyPath), logging.Err(err))
		return nil, nil
	}

	username := b.usernameHint
	if username == "" {
		username = "default"
	}
	if err := b.persist(username, "", tok); err != nil {
		return nil, err
	}

	b.metrics.RecordTokenAcquisition(ctx, "legacy", "success")
	b.logger.Info("migrated legacy refresh token into credential cache")
	return tok, nil
}

// interactive runs the device-code flow: present a verification URL and a
// short code, then poll until the user completes sign-in or the provider
// expires the code. Never retried automatically.
func (b *Broker) interactive(ctx context.Context) (tok *oauth2.Token, err error) {
	if b.prompt == nil {
		return nil, ErrAuthRequired
	}
	defer func() {
		result := "success"
		if err != nil {
			result = "failure"
		}
		b.metrics.RecordTokenAcquisition(ctx, "interactive", result)
	}()

	challenge, err := b.conf.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w (device code request failed: %v)", ErrAuthRequired, err)
	}

	b.logger.Info("device code challenge issued",
		slog.String("verification_uri", challenge.VerificationURI))
	b.prompt(challenge.VerificationURI, challenge.UserCode)

	tok, err = b.conf.DeviceAccessToken(ctx, challenge)
	if err != nil {
		return nil, fmt.Errorf("%w (device sign-in not completed: %v)", ErrAuthRequired, err)
	}

	username := b.usernameHint
	if username == "" {
		username = "default"
	}
	if err := b.persist(username, "", tok); err != nil {
		return nil, err
	}

	b.logger.Info("interactive sign-in completed",
		slog.String("account", logging.SanitizeUsername(username)))
	return tok, nil
}

// redeem exchanges refresh material for a fresh token, preserving the old
// refresh token when the provider does not rotate it.
func (b *Broker) redeem(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := b.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, err
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return tok, nil
}

// persist updates the cached account in place. Every silent refresh rewrites
// the cache so the newest refresh token survives a restart.
func (b *Broker) persist(username, homeAccountID string, tok *oauth2.Token) error {
	cache, err := b.store.Load()
	if err != nil {
		return err
	}
	cache.Upsert(credstore.Account{
		Username:      username,
		HomeAccountID: homeAccountID,
		Token: credstore.Token{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			TokenType:    tok.TokenType,
			Expiry:       tok.Expiry,
		},
	})
	return b.store.Save(cache)
}
