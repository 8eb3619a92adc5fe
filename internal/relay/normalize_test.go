package relay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbridge/internal/config"
)

func relayConfig() config.Relay {
	return config.Relay{
		TargetCategory:   "personal",
		CalendarName:     "Tasks",
		DurationMinutes:  30,
		DefaultStartTime: "08:00",
		DefaultTimeZone:  "Europe/Berlin",
	}
}

func newTestNormalizer(t *testing.T, cfg config.Relay) *Normalizer {
	t.Helper()
	n, err := NewNormalizer(cfg)
	require.NoError(t, err)
	return n
}

func TestNormalizeBareDueDate(t *testing.T) {
	n := newTestNormalizer(t, relayConfig())

	event, reason := n.Normalize(Inbound{
		ID:                   "task-1",
		Title:                "Dentist",
		Categories:           []string{"Personal"},
		DueDate:              "2025-12-15",
		LastModifiedDateTime: "2025-12-01T10:00:00Z",
	})
	require.Empty(t, reason)
	require.NotNil(t, event)

	assert.Equal(t, "2025-12-15T08:00:00", event.StartDateTime)
	assert.Equal(t, "Europe/Berlin", event.TimeZone, "bare dates carry the configured zone, not a payload override")
	assert.Equal(t, ActionUpsert, event.Action)
	assert.Equal(t, 30, event.DurationMinutes)
	assert.Equal(t, "Tasks", event.CalendarName)
}

func TestNormalizeExplicitDueObjectWinsVerbatim(t *testing.T) {
	n := newTestNormalizer(t, relayConfig())

	event, reason := n.Normalize(Inbound{
		ID:         "task-1",
		Title:      "Flight",
		Categories: []string{"personal"},
		DueDate:    "2025-12-14",
		DueDateTime: &DueObject{
			DateTime: "2025-12-15T09:30:00",
			TimeZone: "America/Chicago",
		},
	})
	require.Empty(t, reason)
	require.NotNil(t, event)

	assert.Equal(t, "2025-12-15T09:30:00", event.StartDateTime)
	assert.Equal(t, "America/Chicago", event.TimeZone)
}

func TestNormalizeCategoryGate(t *testing.T) {
	n := newTestNormalizer(t, relayConfig())

	tests := []struct {
		name    string
		in      Inbound
		matched bool
	}{
		{"exact label", Inbound{Categories: []string{"personal"}}, true},
		{"synonym spelling", Inbound{Categories: []string{"Private"}}, true},
		{"string field alias", Inbound{Category: "PERSONAL"}, true},
		{"among several labels", Inbound{Categories: []string{"urgent", "personal"}}, true},
		{"wrong category", Inbound{Categories: []string{"work"}}, false},
		{"no category at all", Inbound{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.ID = "task-1"
			tt.in.DueDate = "2025-12-15"
			event, reason := n.Normalize(tt.in)
			if tt.matched {
				assert.NotNil(t, event)
				assert.Empty(t, reason)
			} else {
				assert.Nil(t, event)
				assert.Equal(t, ReasonWrongCategory, reason)
			}
		})
	}
}

func TestNormalizeWorkSynonyms(t *testing.T) {
	cfg := relayConfig()
	cfg.TargetCategory = "work"
	n := newTestNormalizer(t, cfg)

	event, reason := n.Normalize(Inbound{
		ID:         "task-1",
		Categories: []string{"Business"},
		DueDate:    "2025-12-15",
	})
	assert.Empty(t, reason)
	assert.NotNil(t, event)
}

func TestNormalizeNoDueInformation(t *testing.T) {
	n := newTestNormalizer(t, relayConfig())

	event, reason := n.Normalize(Inbound{
		ID:         "task-1",
		Title:      "Someday",
		Categories: []string{"personal"},
	})
	assert.Nil(t, event)
	assert.Equal(t, ReasonNoDueInformation, reason)
}

func TestNormalizeAccessorPrecedence(t *testing.T) {
	n := newTestNormalizer(t, relayConfig())

	event, reason := n.Normalize(Inbound{
		TaskID:      "fallback-id",
		Subject:     "From subject",
		BodyPreview: "preview text",
		Categories:  []string{"personal"},
		DueDate:     "2025-12-15",
		ModifiedAt:  "2025-12-01T10:00:00Z",
	})
	require.Empty(t, reason)
	require.NotNil(t, event)

	assert.Equal(t, "fallback-id", event.SourceTaskID)
	assert.Equal(t, "From subject", event.Title)
	assert.Contains(t, event.Notes, "preview text")
	assert.Equal(t, "2025-12-01T10:00:00Z", event.lastModified)
}

func TestNormalizeTraceTag(t *testing.T) {
	n := newTestNormalizer(t, relayConfig())

	event, _ := n.Normalize(Inbound{
		ID:         "task-42",
		Title:      "Tagged",
		Notes:      "original notes",
		Categories: []string{"personal"},
		DueDate:    "2025-12-15",
	})
	require.NotNil(t, event)
	assert.Equal(t, "original notes\n\n[taskbridge:task-42]", event.Notes)

	bare, _ := n.Normalize(Inbound{
		ID:         "task-43",
		Categories: []string{"personal"},
		DueDate:    "2025-12-15",
	})
	require.NotNil(t, bare)
	assert.Equal(t, "[taskbridge:task-43]", bare.Notes)
}

func TestNormalizeCompletedStatus(t *testing.T) {
	n := newTestNormalizer(t, relayConfig())

	event, _ := n.Normalize(Inbound{
		ID:         "task-1",
		Status:     "Completed",
		Categories: []string{"personal"},
		DueDate:    "2025-12-15",
	})
	require.NotNil(t, event)
	assert.Equal(t, ActionComplete, event.Action)
}

func TestEventKeyStableAndSensitive(t *testing.T) {
	n := newTestNormalizer(t, relayConfig())

	in := Inbound{
		ID:                   "task-1",
		Title:                "Dentist",
		Categories:           []string{"personal"},
		DueDate:              "2025-12-15",
		LastModifiedDateTime: "2025-12-01T10:00:00Z",
	}

	first, _ := n.Normalize(in)
	second, _ := n.Normalize(in)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.Key(), second.Key(), "identical payloads must key identically")
	assert.Len(t, first.Key(), 64)

	in.LastModifiedDateTime = "2025-12-02T10:00:00Z"
	changed, _ := n.Normalize(in)
	require.NotNil(t, changed)
	assert.NotEqual(t, first.Key(), changed.Key(), "a later modification is a distinct change")
}

func TestFlexBodyDecodesBothShapes(t *testing.T) {
	var fromString Inbound
	require.NoError(t, json.Unmarshal([]byte(`{"body": "plain text"}`), &fromString))
	assert.Equal(t, "plain text", fromString.Body.Content)

	var fromObject Inbound
	require.NoError(t, json.Unmarshal([]byte(`{"body": {"content": "rich text", "contentType": "text"}}`), &fromObject))
	assert.Equal(t, "rich text", fromObject.Body.Content)

	var fromNull Inbound
	require.NoError(t, json.Unmarshal([]byte(`{"body": null}`), &fromNull))
	assert.Empty(t, fromNull.Body.Content)
}

func TestNewNormalizerRejectsBadStartTime(t *testing.T) {
	cfg := relayConfig()
	cfg.DefaultStartTime = "8 o'clock"
	_, err := NewNormalizer(cfg)
	assert.Error(t, err)
}
