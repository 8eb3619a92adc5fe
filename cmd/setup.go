package cmd

import (
	"fmt"
	"log/slog"

	"taskbridge/internal/auth"
	"taskbridge/internal/config"
	"taskbridge/internal/credstore"
	"taskbridge/internal/graph"
	"taskbridge/internal/instrumentation"
	"taskbridge/internal/logging"
	"taskbridge/internal/tasks"
)

// loadConfig reads configuration, applies root flag overrides, and installs
// the process logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	if debugFlag {
		cfg.Debug = true
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.Setup(cfg.LogFormat, cfg.Debug)
	return cfg, logger, nil
}

// buildBroker wires the credential store and token broker. prompt may be nil
// for non-interactive paths; token acquisition then fails with
// auth.ErrAuthRequired instead of starting a device-code flow. metrics may be
// nil for commands that do not serve a metrics endpoint.
func buildBroker(cfg *config.Config, logger *slog.Logger, prompt auth.DeviceCodePrompt, metrics *instrumentation.Metrics) (*auth.Broker, error) {
	if err := cfg.ValidateAuth(); err != nil {
		return nil, err
	}

	return auth.New(auth.Options{
		Store:           credstore.New(cfg.CredentialCachePath()),
		ClientID:        cfg.Auth.ClientID,
		TenantID:        cfg.Auth.TenantID,
		UsernameHint:    cfg.Auth.UsernameHint,
		LegacyTokenPath: cfg.LegacyTokenPath(),
		Prompt:          prompt,
		Logger:          logger,
		Metrics:         metrics,
	})
}

// buildGateway wires the Graph client and task gateway on top of the broker.
func buildGateway(cfg *config.Config, broker *auth.Broker, logger *slog.Logger, metrics *instrumentation.Metrics) (*tasks.Gateway, error) {
	client, err := graph.NewClient(graph.Options{
		TokenProvider: broker.AccessToken,
		Metrics:       metrics,
	})
	if err != nil {
		return nil, err
	}
	return tasks.NewGateway(client, cfg.Tasks, logger), nil
}
