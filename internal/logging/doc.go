// Package logging provides structured logging utilities for taskbridge.
//
// This package centralizes logging patterns to ensure consistent, structured
// logging throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - Consistent attribute naming across the codebase
//   - Token and account-name sanitization
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithComponent(slog.Default(), "relay")
//	logger.Info("event dispatched",
//	    logging.Status(logging.StatusSuccess))
//
// # Security Considerations
//
// Tokens are never logged directly; use SanitizeToken. Account sign-in names
// are masked with SanitizeUsername before they reach log output.
package logging
