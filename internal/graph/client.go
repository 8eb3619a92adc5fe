package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taskbridge/internal/instrumentation"
)

// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

const defaultTimeout = 30 * time.Second

// maxErrorBody bounds how much of an error response is kept for diagnostics.
const maxErrorBody = 4 << 10

// ErrNotFound classifies a 404 from Graph, so callers can report not-found
// semantics distinctly from generic remote failures.
var ErrNotFound = errors.New("not found")

// TokenProvider supplies a bearer token for one request.
type TokenProvider func(ctx context.Context) (string, error)

// APIError is a non-2xx response from Graph, carrying enough context to be
// logged usefully. The client performs no retries; retry policy belongs to
// the caller.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph %s failed: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrNotFound) match a 404 APIError.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Options configures a Client.
type Options struct {
	// BaseURL overrides the Graph endpoint; used by tests.
	BaseURL string

	// TokenProvider supplies the delegated bearer token. Required.
	TokenProvider TokenProvider

	// HTTPClient overrides the transport. A finite timeout is applied when
	// nil so a hung remote cannot stall the bridge indefinitely.
	HTTPClient *http.Client

	// Metrics records calls by operation and status. Optional.
	Metrics *instrumentation.Metrics
}

// Client is a thin typed wrapper around the Graph To Do REST endpoints for
// one delegated identity.
type Client struct {
	baseURL       string
	tokenProvider TokenProvider
	httpClient    *http.Client
	metrics       *instrumentation.Metrics
}

// NewClient creates a Graph client.
func NewClient(opts Options) (*Client, error) {
	if opts.TokenProvider == nil {
		return nil, fmt.Errorf("graph: token provider is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:       baseURL,
		tokenProvider: opts.TokenProvider,
		httpClient:    httpClient,
		metrics:       opts.Metrics,
	}, nil
}

// ListTaskLists returns all task lists of the delegated account, following
// pagination links.
func (c *Client) ListTaskLists(ctx context.Context) ([]TaskList, error) {
	var lists []TaskList
	next := c.baseURL + "/me/todo/lists"
	for next != "" {
		var page listEnvelope[TaskList]
		if err := c.do(ctx, http.MethodGet, next, nil, &page, "list task lists"); err != nil {
			return nil, err
		}
		lists = append(lists, page.Value...)
		next = page.NextLink
	}
	return lists, nil
}

// CreateTaskList creates a task list with the given display name.
func (c *Client) CreateTaskList(ctx context.Context, displayName string) (*TaskList, error) {
	body := map[string]string{"displayName": displayName}
	var created TaskList
	err := c.do(ctx, http.MethodPost, c.baseURL+"/me/todo/lists", body, &created, "create task list")
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateTask creates a task in the given list.
func (c *Client) CreateTask(ctx context.Context, listID string, task TaskCreate) (*Task, error) {
	endpoint := fmt.Sprintf("%s/me/todo/lists/%s/tasks", c.baseURL, url.PathEscape(listID))
	var created Task
	if err := c.do(ctx, http.MethodPost, endpoint, task, &created, "create task"); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListTasksOptions filters a task query.
type ListTasksOptions struct {
	// Top caps the result count. Graph's own default applies when zero.
	Top int

	// IncludeCompleted keeps completed tasks in the result.
	IncludeCompleted bool
}

// ListTasks returns tasks in a list, most recently created first.
func (c *Client) ListTasks(ctx context.Context, listID string, opts ListTasksOptions) ([]Task, error) {
	query := url.Values{}
	query.Set("$orderby", "createdDateTime desc")
	if !opts.IncludeCompleted {
		query.Set("$filter", "status ne 'completed'")
	}
	if opts.Top > 0 {
		query.Set("$top", fmt.Sprintf("%d", opts.Top))
	}

	endpoint := fmt.Sprintf("%s/me/todo/lists/%s/tasks?%s",
		c.baseURL, url.PathEscape(listID), query.Encode())

	var page listEnvelope[Task]
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &page, "list tasks"); err != nil {
		return nil, err
	}
	return page.Value, nil
}

// CompleteTask patches a task's status to completed and returns the updated
// task. A 404 surfaces as ErrNotFound.
func (c *Client) CompleteTask(ctx context.Context, listID, taskID string) (*Task, error) {
	endpoint := fmt.Sprintf("%s/me/todo/lists/%s/tasks/%s",
		c.baseURL, url.PathEscape(listID), url.PathEscape(taskID))

	body := map[string]string{"status": StatusCompleted}
	var updated Task
	if err := c.do(ctx, http.MethodPatch, endpoint, body, &updated, "complete task"); err != nil {
		return nil, err
	}
	return &updated, nil
}

// do issues one request with the delegated bearer token and decodes the JSON
// response into out. Non-2xx responses become an APIError with the status
// and a bounded copy of the body.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any, operation string) error {
	token, err := c.tokenProvider(ctx)
	if err != nil {
		return fmt.Errorf("graph %s: %w", operation, err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("graph %s: failed to encode request: %w", operation, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("graph %s: failed to build request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordGraphOperation(ctx, operation, "error", time.Since(start))
		return fmt.Errorf("graph %s: request failed: %w", operation, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.RecordGraphOperation(ctx, operation, "error", time.Since(start))
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}
	c.metrics.RecordGraphOperation(ctx, operation, "success", time.Since(start))

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("graph %s: failed to decode response: %w", operation, err)
	}
	return nil
}
