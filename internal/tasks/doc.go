// Package tasks is the typed gateway between bridge operations and the
// remote To Do API.
//
// It translates a category plus task fields into Graph calls, resolving the
// category's backing list once per process via an in-memory cache. Lists for
// non-default categories are created lazily on first use. The gateway
// performs no retries; remote failures are wrapped with operation context
// and surfaced to the caller, which decides whether they are retryable.
package tasks
