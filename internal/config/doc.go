// Package config loads and validates the taskbridge process configuration.
//
// Settings come from TASKBRIDGE_* environment variables and an optional YAML
// file, with cobra flags layered on top by the command layer. Auth settings
// are validated separately from the rest because only Graph-backed paths
// depend on them; the relay path can run without any identity configuration.
package config
