package relay

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"taskbridge/internal/config"
)

// Action tells the downstream receiver what to do with the event.
type Action string

const (
	// ActionUpsert creates or updates the downstream calendar entry.
	ActionUpsert Action = "upsert"

	// ActionComplete marks the downstream calendar entry done.
	ActionComplete Action = "complete"
)

// Ignore reasons returned by Normalize for non-qualifying notifications.
const (
	ReasonWrongCategory    = "wrong category"
	ReasonNoDueInformation = "no due information"
)

// Event is the canonical payload delivered to the downstream receiver.
type Event struct {
	SourceTaskID    string `json:"sourceTaskId"`
	Title           string `json:"title"`
	Notes           string `json:"notes,omitempty"`
	Action          Action `json:"action"`
	StartDateTime   string `json:"startDateTime"`
	DurationMinutes int    `json:"durationMinutes"`
	TimeZone        string `json:"timeZone,omitempty"`
	CalendarName    string `json:"calendarName"`

	// lastModified participates in the idempotency key but is not part of
	// the downstream payload.
	lastModified string
}

// Key derives the idempotency key for the event: the hex SHA-256 over the
// fields that make two notifications "the same change".
func (e Event) Key() string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		e.SourceTaskID,
		e.Title,
		string(e.Action),
		e.StartDateTime,
		e.lastModified,
	}, "|")))
	return hex.EncodeToString(sum[:])
}

// DueObject is the date+time+zone due shape some upstream payloads carry.
type DueObject struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// FlexBody accepts either a plain string or an item body object with a
// content field, since upstream notification shapes vary.
type FlexBody struct {
	Content string
}

func (b *FlexBody) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, "\"") {
		return json.Unmarshal(data, &b.Content)
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	b.Content = obj.Content
	return nil
}

// Inbound is the loosely shaped upstream notification. Several upstream
// producers spell the same field differently; the accessor lists below
// resolve each logical field in preference order.
type Inbound struct {
	ID         string `json:"id"`
	TaskID     string `json:"taskId"`
	ResourceID string `json:"resourceId"`

	Title   string `json:"title"`
	Subject string `json:"subject"`

	Notes       string   `json:"notes"`
	Body        FlexBody `json:"body"`
	BodyPreview string   `json:"bodyPreview"`
	Description string   `json:"description"`

	Categories []string `json:"categories"`
	Category   string   `json:"category"`

	Status string `json:"status"`

	LastModifiedDateTime string `json:"lastModifiedDateTime"`
	ModifiedAt           string `json:"modifiedAt"`

	DueDate     string     `json:"dueDate"`
	DueDateTime *DueObject `json:"dueDateTime"`
}

type accessor struct {
	name string
	get  func(in Inbound) string
}

var idAccessors = []accessor{
	{"id", func(in Inbound) string { return in.ID }},
	{"taskId", func(in Inbound) string { return in.TaskID }},
	{"resourceId", func(in Inbound) string { return in.ResourceID }},
}

var titleAccessors = []accessor{
	{"title", func(in Inbound) string { return in.Title }},
	{"subject", func(in Inbound) string { return in.Subject }},
}

var notesAccessors = []accessor{
	{"notes", func(in Inbound) string { return in.Notes }},
	{"body", func(in Inbound) string { return in.Body.Content }},
	{"bodyPreview", func(in Inbound) string { return in.BodyPreview }},
	{"description", func(in Inbound) string { return in.Description }},
}

var lastModifiedAccessors = []accessor{
	{"lastModifiedDateTime", func(in Inbound) string { return in.LastModifiedDateTime }},
	{"modifiedAt", func(in Inbound) string { return in.ModifiedAt }},
}

// firstOf returns the first non-empty value in accessor order.
func firstOf(in Inbound, accessors []accessor) string {
	for _, a := range accessors {
		if v := strings.TrimSpace(a.get(in)); v != "" {
			return v
		}
	}
	return ""
}

// categorySpellings maps a canonical target category to the labels that
// count as a match. Unknown targets match only themselves.
var categorySpellings = map[string][]string{
	"personal": {"personal", "private"},
	"work":     {"work", "business"},
}

func categoryMatches(labels []string, target string) bool {
	target = strings.ToLower(strings.TrimSpace(target))
	accepted := categorySpellings[target]
	if accepted == nil {
		accepted = []string{target}
	}
	for _, label := range labels {
		label = strings.ToLower(strings.TrimSpace(label))
		for _, want := range accepted {
			if label == want {
				return true
			}
		}
	}
	return false
}

// Normalizer turns inbound notifications into canonical events. It is pure;
// all variability comes from static configuration captured at construction.
type Normalizer struct {
	cfg config.Relay

	// startClock is the validated HH:MM default start time.
	startClock string
}

// NewNormalizer validates the relay configuration and returns a Normalizer.
func NewNormalizer(cfg config.Relay) (*Normalizer, error) {
	if cfg.TargetCategory == "" {
		cfg.TargetCategory = "personal"
	}
	if cfg.DefaultStartTime == "" {
		cfg.DefaultStartTime = "08:00"
	}
	clock, err := config.ParseClock(cfg.DefaultStartTime)
	if err != nil {
		return nil, fmt.Errorf("invalid relay default start time: %w", err)
	}
	return &Normalizer{cfg: cfg, startClock: clock}, nil
}

// Normalize builds the canonical event for an inbound notification. A nil
// event with a non-empty reason means the notification does not qualify for
// relay; that is a normal outcome, not an error.
func (n *Normalizer) Normalize(in Inbound) (*Event, string) {
	labels := in.Categories
	if len(labels) == 0 && in.Category != "" {
		labels = []string{in.Category}
	}
	if !categoryMatches(labels, n.cfg.TargetCategory) {
		return nil, ReasonWrongCategory
	}

	start, timeZone := n.resolveStart(in)
	if start == "" {
		return nil, ReasonNoDueInformation
	}

	sourceTaskID := firstOf(in, idAccessors)
	action := ActionUpsert
	if strings.EqualFold(strings.TrimSpace(in.Status), "completed") {
		action = ActionComplete
	}

	return &Event{
		SourceTaskID:    sourceTaskID,
		Title:           firstOf(in, titleAccessors),
		Notes:           withTraceTag(firstOf(in, notesAccessors), sourceTaskID),
		Action:          action,
		StartDateTime:   start,
		DurationMinutes: n.cfg.DurationMinutes,
		TimeZone:        timeZone,
		CalendarName:    n.cfg.CalendarName,
		lastModified:    firstOf(in, lastModifiedAccessors),
	}, ""
}

// resolveStart picks the single canonical start instant. An explicit
// date+time+zone object wins verbatim; a bare date is completed with the
// configured default start time and time zone; otherwise there is none.
func (n *Normalizer) resolveStart(in Inbound) (start, timeZone string) {
	if in.DueDateTime != nil && strings.TrimSpace(in.DueDateTime.DateTime) != "" {
		return strings.TrimSpace(in.DueDateTime.DateTime), strings.TrimSpace(in.DueDateTime.TimeZone)
	}
	if date := strings.TrimSpace(in.DueDate); date != "" {
		return date + "T" + n.startClock + ":00", n.cfg.DefaultTimeZone
	}
	return "", ""
}

// withTraceTag appends the machine-readable source marker the downstream
// receiver uses to find-and-update instead of duplicating.
func withTraceTag(notes, sourceTaskID string) string {
	tag := "[taskbridge:" + sourceTaskID + "]"
	if notes == "" {
		return tag
	}
	return notes + "\n\n" + tag
}
