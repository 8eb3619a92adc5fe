package tasks

import (
	"fmt"
	"strings"

	"taskbridge/internal/graph"
)

// Category routes a task to a specific remote list. The set is closed;
// every category maps to exactly one list display name.
type Category string

const (
	// CategoryPersonal is the default category, backed by the account's
	// built-in default list.
	CategoryPersonal Category = "personal"

	// CategoryWork is backed by a configured list, created lazily.
	CategoryWork Category = "work"
)

// ParseCategory validates a category label. Empty input selects the default.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(CategoryPersonal):
		return CategoryPersonal, nil
	case string(CategoryWork):
		return CategoryWork, nil
	default:
		return "", fmt.Errorf("unknown category %q (expected personal or work)", s)
	}
}

// Importance mirrors the remote API's three-level importance.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceNormal Importance = "normal"
	ImportanceHigh   Importance = "high"
)

// ParseImportance validates an importance label. Empty input selects normal.
func ParseImportance(s string) (Importance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ImportanceNormal):
		return ImportanceNormal, nil
	case string(ImportanceLow):
		return ImportanceLow, nil
	case string(ImportanceHigh):
		return ImportanceHigh, nil
	default:
		return "", fmt.Errorf("unknown importance %q (expected low, normal or high)", s)
	}
}

// TaskRef is the normalized task record returned to callers.
type TaskRef struct {
	RemoteTaskID    string `json:"remoteTaskId"`
	ListID          string `json:"listId"`
	ListDisplayName string `json:"listDisplayName"`
	Category        string `json:"category"`

	Title             string `json:"title"`
	Notes             string `json:"notes,omitempty"`
	Importance        string `json:"importance"`
	Status            string `json:"status"`
	CreatedDateTime   string `json:"createdDateTime,omitempty"`
	DueDateTime       string `json:"dueDateTime,omitempty"`
	DueTimeZone       string `json:"dueTimeZone,omitempty"`
	CompletedDateTime string `json:"completedDateTime,omitempty"`
}

// toTaskRef converts a Graph task to the normalized shape.
func toTaskRef(t *graph.Task, list graph.TaskList, category Category) TaskRef {
	if t == nil {
		return TaskRef{}
	}

	ref := TaskRef{
		RemoteTaskID:    t.ID,
		ListID:          list.ID,
		ListDisplayName: list.DisplayName,
		Category:        string(category),
		Title:           t.Title,
		Importance:      t.Importance,
		Status:          t.Status,
		CreatedDateTime: t.CreatedDateTime,
	}
	if ref.Importance == "" {
		ref.Importance = string(ImportanceNormal)
	}
	if t.Body != nil {
		ref.Notes = strings.TrimSpace(t.Body.Content)
	}
	if t.DueDateTime != nil {
		ref.DueDateTime = t.DueDateTime.DateTime
		ref.DueTimeZone = t.DueDateTime.TimeZone
	}
	if t.CompletedDateTime != nil {
		ref.CompletedDateTime = t.CompletedDateTime.DateTime
	}
	return ref
}
