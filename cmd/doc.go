// Package cmd implements the command-line interface for taskbridge.
//
// This package provides the following commands:
//   - serve: Run the HTTP bridge and inbound relay webhook
//   - mcp: Run the MCP stdio server exposing the task tools
//   - login: One-time interactive device-code sign-in
//   - status: Show the cached credential state
//   - version: Display version information
//
// Only login is interactive. serve and mcp rely on the cached credential and
// fail task operations with an auth_required error until login has run once.
package cmd
