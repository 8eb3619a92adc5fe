package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledProviderIsNoop(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	require.NotNil(t, p.Metrics())

	// Recording against the no-op recorder must not panic.
	ctx := context.Background()
	p.Metrics().RecordHTTPRequest(ctx, "GET", "/api/tasks", 200, time.Millisecond)
	p.Metrics().RecordGraphOperation(ctx, "list tasks", "success", time.Millisecond)
	p.Metrics().RecordTokenAcquisition(ctx, "silent", "success")
	p.Metrics().RecordRelayEvent(ctx, "relayed")
	p.Metrics().RecordLedgerEvictions(ctx, 3)

	assert.NoError(t, p.Shutdown(ctx))
}

func TestNilMetricsRecorderIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	m.RecordHTTPRequest(ctx, "POST", "/api/tasks", 201, time.Millisecond)
	m.RecordRelayEvent(ctx, "duplicate_ignored")
	m.RecordToolInvocation(ctx, "tasks_create", "success", time.Millisecond)
}

func TestEnabledProviderRecords(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{
		Enabled:        true,
		ServiceName:    "taskbridge-test",
		ServiceVersion: "0.0.1",
	})
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(context.Background()) }()

	assert.True(t, p.Enabled())

	ctx := context.Background()
	p.Metrics().RecordGraphOperation(ctx, "create task", "success", 50*time.Millisecond)
	p.Metrics().RecordTokenAcquisition(ctx, "interactive", "success")
	p.Metrics().RecordRelayEvent(ctx, "relayed")
}

func TestTracerWithoutTracingIsNoop(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: true})
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(context.Background()) }()

	tracer := p.Tracer("test")
	_, span := tracer.Start(context.Background(), "op")
	span.End()
}
