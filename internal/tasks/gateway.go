package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskbridge/internal/config"
	"taskbridge/internal/graph"
	"taskbridge/internal/logging"
)

// DefaultListDisplayName is the well-known name of the account's built-in
// list, used as a fallback match when the wellknown marker is absent.
const DefaultListDisplayName = "Tasks"

// maxListLimit caps a single listing request.
const maxListLimit = 100

// defaultListLimit applies when the caller does not bound the query.
const defaultListLimit = 20

// GraphAPI is the slice of the Graph client the gateway consumes.
type GraphAPI interface {
	ListTaskLists(ctx context.Context) ([]graph.TaskList, error)
	CreateTaskList(ctx context.Context, displayName string) (*graph.TaskList, error)
	CreateTask(ctx context.Context, listID string, task graph.TaskCreate) (*graph.Task, error)
	ListTasks(ctx context.Context, listID string, opts graph.ListTasksOptions) ([]graph.Task, error)
	CompleteTask(ctx context.Context, listID, taskID string) (*graph.Task, error)
}

// Gateway translates category + task fields into remote API calls and caches
// list identifiers for the process lifetime.
//
// The list cache is read and written without a lock: the worst case under a
// race is a duplicate list lookup or a duplicate create for the same name,
// both idempotent at the provider.
type Gateway struct {
	client GraphAPI
	cfg    config.Tasks
	logger *slog.Logger

	// listCache maps lowercased display name to the resolved list.
	listCache map[string]graph.TaskList
}

// NewGateway creates a Gateway over the given Graph API.
func NewGateway(client GraphAPI, cfg config.Tasks, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		client:    client,
		cfg:       cfg,
		logger:    logging.WithComponent(logger, "tasks"),
		listCache: make(map[string]graph.TaskList),
	}
}

// listNameFor maps a category to its configured list display name.
func (g *Gateway) listNameFor(category Category) string {
	if category == CategoryWork {
		return g.cfg.WorkListName
	}
	return DefaultListDisplayName
}

// ResolveList returns the remote list backing a category, consulting the
// per-process cache first. A missing list is created lazily for non-default
// categories; the default list is expected to exist on every account.
func (g *Gateway) ResolveList(ctx context.Context, category Category) (graph.TaskList, error) {
	name := g.listNameFor(category)
	cacheKey := strings.ToLower(name)
	if list, ok := g.listCache[cacheKey]; ok {
		return list, nil
	}

	lists, err := g.client.ListTaskLists(ctx)
	if err != nil {
		return graph.TaskList{}, fmt.Errorf("resolve list for category %s: %w", category, err)
	}

	if found, ok := matchList(lists, name, category == CategoryPersonal); ok {
		g.listCache[cacheKey] = found
		return found, nil
	}

	if category == CategoryPersonal {
		return graph.TaskList{}, fmt.Errorf("default task list not found on account")
	}

	created, err := g.client.CreateTaskList(ctx, name)
	if err != nil {
		return graph.TaskList{}, fmt.Errorf("create list %q: %w", name, err)
	}
	g.logger.Info("created task list",
		logging.Category(string(category)), slog.String("list", created.DisplayName))
	g.listCache[cacheKey] = *created
	return *created, nil
}

// matchList finds a list by display name (case-insensitive). For the default
// category the wellknown marker wins over the name match.
func matchList(lists []graph.TaskList, name string, wantDefault bool) (graph.TaskList, bool) {
	if wantDefault {
		for _, l := range lists {
			if l.WellknownListName == graph.WellknownDefaultList {
				return l, true
			}
		}
	}
	for _, l := range lists {
		if strings.EqualFold(l.DisplayName, name) {
			return l, true
		}
	}
	return graph.TaskList{}, false
}

// CreateInput is a validated task-creation request.
type CreateInput struct {
	Title      string
	Notes      string
	Importance Importance
	// DueDate is a bare YYYY-MM-DD date; the configured default due time
	// and time zone complete it.
	DueDate  string
	Category Category
}

// Create builds the provider request and returns the created reference.
func (g *Gateway) Create(ctx context.Context, in CreateInput) (*TaskRef, error) {
	list, err := g.ResolveList(ctx, in.Category)
	if err != nil {
		return nil, err
	}

	body := graph.TaskCreate{
		Title:      in.Title,
		Importance: string(in.Importance),
	}
	if in.Notes != "" {
		body.Body = &graph.ItemBody{Content: in.Notes, ContentType: "text"}
	}
	if in.DueDate != "" {
		due, err := g.dueDateTime(in.DueDate)
		if err != nil {
			return nil, err
		}
		body.DueDateTime = due
	}

	created, err := g.client.CreateTask(ctx, list.ID, body)
	if err != nil {
		return nil, fmt.Errorf("create task in %q: %w", list.DisplayName, err)
	}

	g.logger.Info("task created",
		logging.Operation("tasks.create"),
		logging.Category(string(in.Category)),
		slog.String("list", list.DisplayName))

	ref := toTaskRef(created, list, in.Category)
	return &ref, nil
}

// dueDateTime completes a bare date with the configured default time/zone.
func (g *Gateway) dueDateTime(date string) (*graph.DateTimeTimeZone, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("invalid due date %q (expected YYYY-MM-DD)", date)
	}
	dueTime, err := config.ParseClock(g.cfg.DefaultDueTime)
	if err != nil {
		return nil, err
	}
	return &graph.DateTimeTimeZone{
		DateTime: date + "T" + dueTime + ":00",
		TimeZone: g.cfg.DefaultTimeZone,
	}, nil
}

// ListInput bounds a task listing request.
type ListInput struct {
	Category         Category
	Limit            int
	IncludeCompleted bool
}

// List returns tasks in the category's list, most recent first.
func (g *Gateway) List(ctx context.Context, in ListInput) ([]TaskRef, error) {
	if in.Limit <= 0 {
		in.Limit = defaultListLimit
	}
	if in.Limit > maxListLimit {
		in.Limit = maxListLimit
	}

	list, err := g.ResolveList(ctx, in.Category)
	if err != nil {
		return nil, err
	}

	items, err := g.client.ListTasks(ctx, list.ID, graph.ListTasksOptions{
		Top:              in.Limit,
		IncludeCompleted: in.IncludeCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks in %q: %w", list.DisplayName, err)
	}

	refs := make([]TaskRef, 0, len(items))
	for i := range items {
		refs = append(refs, toTaskRef(&items[i], list, in.Category))
	}
	return refs, nil
}

// CompleteInput identifies the task to complete. ListID wins over Category
// when both are present.
type CompleteInput struct {
	RemoteTaskID string
	Category     Category
	ListID       string
}

// Complete marks a task completed. A remote 404 keeps its not-found
// classification (graph.ErrNotFound) so the caller can report it as such.
func (g *Gateway) Complete(ctx context.Context, in CompleteInput) (*TaskRef, error) {
	var list graph.TaskList
	if in.ListID != "" {
		list = graph.TaskList{ID: in.ListID}
	} else {
		var err error
		list, err = g.ResolveList(ctx, in.Category)
		if err != nil {
			return nil, err
		}
	}

	updated, err := g.client.CompleteTask(ctx, list.ID, in.RemoteTaskID)
	if err != nil {
		return nil, fmt.Errorf("complete task %s: %w", in.RemoteTaskID, err)
	}

	g.logger.Info("task completed",
		logging.Operation("tasks.complete"),
		logging.Category(string(in.Category)))

	ref := toTaskRef(updated, list, in.Category)
	return &ref, nil
}
