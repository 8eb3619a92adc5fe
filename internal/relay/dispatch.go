package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"taskbridge/internal/config"
	"taskbridge/internal/logging"
)

// ErrDeliveryFailed marks a dispatch attempt the receiver did not accept.
// Callers match it with errors.Is to classify the failure as retryable.
var ErrDeliveryFailed = errors.New("relay delivery failed")

// Delivery statuses.
const (
	DeliveryDelivered     = "delivered"
	DeliveryNotConfigured = "not_configured"
	DeliveryFailed        = "failed"
)

// defaultDispatchTimeout bounds a single delivery attempt.
const defaultDispatchTimeout = 15 * time.Second

// maxReceiverBody caps how much of an error response is kept for diagnostics.
const maxReceiverBody = 4 << 10

// DeliveryResult describes one dispatch attempt.
type DeliveryResult struct {
	Status     string
	StatusCode int
	Body       string
}

// Dispatcher performs the single POST to the downstream receiver. It never
// retries; the upstream producer redelivers and the ledger keeps redelivery
// idempotent.
type Dispatcher struct {
	targetURL  string
	authHeader string
	secret     string
	client     *http.Client
	logger     *slog.Logger
}

// NewDispatcher creates a Dispatcher from the relay configuration.
func NewDispatcher(cfg config.Relay, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &Dispatcher{
		targetURL:  cfg.TargetURL,
		authHeader: cfg.AuthHeader,
		secret:     cfg.Secret,
		client:     &http.Client{Timeout: timeout},
		logger:     logging.WithComponent(logger, "relay"),
	}
}

// Dispatch POSTs the event to the receiver. Any 2xx counts as delivered; a
// missing target URL is the not-configured state; everything else is a
// failure carrying the receiver's status and (truncated) body.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) (DeliveryResult, error) {
	if d.targetURL == "" {
		return DeliveryResult{Status: DeliveryNotConfigured}, nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return DeliveryResult{Status: DeliveryFailed}, fmt.Errorf("failed to encode relay event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.targetURL, bytes.NewReader(payload))
	if err != nil {
		return DeliveryResult{Status: DeliveryFailed}, fmt.Errorf("failed to build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.authHeader != "" {
		req.Header.Set("Authorization", d.authHeader)
	}
	if d.secret != "" {
		req.Header.Set("X-Relay-Secret", d.secret)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return DeliveryResult{Status: DeliveryFailed}, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		d.logger.Debug("relay event delivered",
			logging.Operation("relay.dispatch"),
			slog.Int("status_code", resp.StatusCode))
		return DeliveryResult{Status: DeliveryDelivered, StatusCode: resp.StatusCode}, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxReceiverBody))
	return DeliveryResult{
			Status:     DeliveryFailed,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}, fmt.Errorf("%w: receiver returned status %d: %s",
			ErrDeliveryFailed, resp.StatusCode, string(body))
}
