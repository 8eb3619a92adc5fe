package relay

import (
	"context"
	"fmt"
	"log/slog"

	"taskbridge/internal/instrumentation"
	"taskbridge/internal/ledger"
	"taskbridge/internal/logging"
)

// Outcome is the disposition of one inbound notification.
type Outcome string

const (
	// OutcomeRelayed means the event was delivered and recorded.
	OutcomeRelayed Outcome = "relayed"

	// OutcomeDuplicateIgnored means the exact event was delivered before.
	OutcomeDuplicateIgnored Outcome = "duplicate_ignored"

	// OutcomeIgnored means the notification does not qualify for relay.
	OutcomeIgnored Outcome = "ignored"

	// OutcomeAccepted means the event qualified but no receiver is
	// configured, so nothing was delivered or recorded.
	OutcomeAccepted Outcome = "accepted"

	// OutcomeError means the event could not be relayed: delivery failed,
	// or the ledger could not be consulted. Either way the event stays
	// unrecorded so a redelivery can retry it.
	OutcomeError Outcome = "error"
)

// Result is the outcome of processing one inbound notification.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
	Key     string  `json:"key,omitempty"`
}

// Service orchestrates the relay pipeline: qualification gate, duplicate
// check, dispatch, and the delivery record.
type Service struct {
	normalizer *Normalizer
	ledger     *ledger.Ledger
	dispatcher *Dispatcher
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// NewService wires the relay pipeline.
func NewService(n *Normalizer, l *ledger.Ledger, d *Dispatcher, logger *slog.Logger, metrics *instrumentation.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		normalizer: n,
		ledger:     l,
		dispatcher: d,
		logger:     logging.WithComponent(logger, "relay"),
		metrics:    metrics,
	}
}

// Process handles one inbound notification end to end. The ledger is written
// only after a confirmed delivery, so failed dispatches stay retryable.
// force skips the duplicate check but still records the delivery.
func (s *Service) Process(ctx context.Context, in Inbound, force bool) (Result, error) {
	event, reason := s.normalizer.Normalize(in)
	if event == nil {
		s.metrics.RecordRelayEvent(ctx, string(OutcomeIgnored))
		s.logger.Debug("notification does not qualify for relay",
			logging.Operation("relay.process"),
			slog.String("reason", reason))
		return Result{Outcome: OutcomeIgnored, Reason: reason}, nil
	}

	key := event.Key()

	if !force {
		seen, err := s.ledger.Has(key)
		if err != nil {
			s.metrics.RecordRelayEvent(ctx, string(OutcomeError))
			return Result{Outcome: OutcomeError, Key: key}, fmt.Errorf("ledger lookup: %w", err)
		}
		if seen {
			s.metrics.RecordRelayEvent(ctx, string(OutcomeDuplicateIgnored))
			s.logger.Info("duplicate notification ignored",
				logging.Operation("relay.process"),
				slog.String("source_task_id", event.SourceTaskID))
			return Result{Outcome: OutcomeDuplicateIgnored, Key: key}, nil
		}
	}

	delivery, err := s.dispatcher.Dispatch(ctx, *event)
	switch delivery.Status {
	case DeliveryNotConfigured:
		s.metrics.RecordRelayEvent(ctx, string(OutcomeAccepted))
		s.logger.Info("relay target not configured, event accepted without delivery",
			logging.Operation("relay.process"),
			slog.String("source_task_id", event.SourceTaskID))
		return Result{Outcome: OutcomeAccepted, Key: key}, nil

	case DeliveryDelivered:
		evicted, markErr := s.ledger.Mark(key, map[string]string{
			"sourceTaskId": event.SourceTaskID,
			"action":       string(event.Action),
		})
		if markErr != nil {
			// Delivery already happened; surface the bookkeeping
			// failure without asking the caller to retry.
			s.logger.Warn("failed to record delivered event",
				logging.Operation("relay.process"), logging.Err(markErr))
		}
		s.metrics.RecordLedgerEvictions(ctx, evicted)
		s.metrics.RecordRelayEvent(ctx, string(OutcomeRelayed))
		s.logger.Info("event relayed",
			logging.Operation("relay.process"),
			slog.String("source_task_id", event.SourceTaskID),
			slog.String("action", string(event.Action)))
		return Result{Outcome: OutcomeRelayed, Key: key}, nil

	default:
		s.metrics.RecordRelayEvent(ctx, string(OutcomeError))
		s.logger.Error("relay delivery failed",
			logging.Operation("relay.process"),
			slog.Int("status_code", delivery.StatusCode),
			logging.Err(err))
		return Result{Outcome: OutcomeError, Key: key}, err
	}
}
