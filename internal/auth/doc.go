// Package auth implements the delegated token broker for taskbridge.
//
// The broker produces access tokens for one pre-authorized Microsoft account
// and hides which path produced them. Each acquisition walks a fixed state
// machine:
//
//  1. SilentAttempt: reuse or refresh the cached credential
//  2. LegacyMigration: one-time redemption of a flat legacy refresh-token file
//  3. Interactive: device-code sign-in, only when a prompt handler is wired
//
// Silent and migration failures fall through silently; only a failed (or
// unavailable) interactive step is reported, as ErrAuthRequired. Concurrent
// callers share a single in-flight acquisition via singleflight, because
// some providers invalidate a refresh token after first use and a duplicate
// device prompt would confuse the one human involved.
package auth
