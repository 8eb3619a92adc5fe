package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbridge/internal/auth"
	"taskbridge/internal/graph"
	"taskbridge/internal/relay"
	"taskbridge/internal/tasks"
)

type fakeTasks struct {
	createCalls int
	listCalls   int

	lastCreate   tasks.CreateInput
	lastComplete tasks.CompleteInput

	createErr   error
	completeErr error
	listRefs    []tasks.TaskRef
}

func (f *fakeTasks) Create(_ context.Context, in tasks.CreateInput) (*tasks.TaskRef, error) {
	f.createCalls++
	f.lastCreate = in
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &tasks.TaskRef{RemoteTaskID: "task-1", Title: in.Title, Category: string(in.Category)}, nil
}

func (f *fakeTasks) List(_ context.Context, in tasks.ListInput) ([]tasks.TaskRef, error) {
	f.listCalls++
	return f.listRefs, nil
}

func (f *fakeTasks) Complete(_ context.Context, in tasks.CompleteInput) (*tasks.TaskRef, error) {
	f.lastComplete = in
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &tasks.TaskRef{RemoteTaskID: in.RemoteTaskID, Status: graph.StatusCompleted}, nil
}

type fakeAuth struct {
	status auth.StatusInfo
}

func (f *fakeAuth) Status(context.Context) auth.StatusInfo { return f.status }

type fakeRelay struct {
	lastForce bool
	result    relay.Result
	err       error
}

func (f *fakeRelay) Process(_ context.Context, in relay.Inbound, force bool) (relay.Result, error) {
	f.lastForce = force
	return f.result, f.err
}

type testDeps struct {
	tasks *fakeTasks
	auth  *fakeAuth
	relay *fakeRelay
}

func newTestServer(t *testing.T, mutate func(*Options)) (*httptest.Server, *testDeps) {
	t.Helper()
	deps := &testDeps{
		tasks: &fakeTasks{},
		auth:  &fakeAuth{},
		relay: &fakeRelay{result: relay.Result{Outcome: relay.OutcomeRelayed, Key: "k"}},
	}
	opts := Options{
		Tasks: deps.tasks,
		Auth:  deps.auth,
		Relay: deps.relay,
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv := httptest.NewServer(New(opts).Router())
	t.Cleanup(srv.Close)
	return srv, deps
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeError(t *testing.T, resp *http.Response) errorBody {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var envelope errorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Error
}

func TestCreateTask(t *testing.T) {
	srv, deps := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/api/tasks", map[string]any{
		"title":    "Buy milk",
		"category": "work",
		"dueDate":  "2026-03-15",
	})
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Buy milk", deps.tasks.lastCreate.Title)
	assert.Equal(t, tasks.CategoryWork, deps.tasks.lastCreate.Category)
}

func TestCreateTaskValidationListsAllFields(t *testing.T) {
	srv, deps := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/api/tasks", map[string]any{
		"category":   "chores",
		"importance": "urgent",
		"dueDate":    "15.03.2026",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, "validation", body.Kind)

	var fieldNames []string
	for _, f := range body.Fields {
		fieldNames = append(fieldNames, f.Field)
	}
	assert.ElementsMatch(t, []string{"title", "category", "importance", "dueDate"}, fieldNames)
	assert.Zero(t, deps.tasks.createCalls, "validation failures must not reach the gateway")
}

func TestCreateTaskAuthRequired(t *testing.T) {
	srv, deps := newTestServer(t, nil)
	deps.tasks.createErr = auth.ErrAuthRequired

	resp := postJSON(t, srv.URL+"/api/tasks", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "auth_required", decodeError(t, resp).Kind)
}

func TestCreateTaskRemoteError(t *testing.T) {
	srv, deps := newTestServer(t, nil)
	deps.tasks.createErr = &graph.APIError{Operation: "create task", StatusCode: 503, Body: "down"}

	resp := postJSON(t, srv.URL+"/api/tasks", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "remote_api", decodeError(t, resp).Kind)
}

func TestListTasks(t *testing.T) {
	srv, deps := newTestServer(t, nil)
	deps.tasks.listRefs = []tasks.TaskRef{{RemoteTaskID: "t1", Title: "One"}}

	resp, err := http.Get(srv.URL + "/api/tasks?category=personal&limit=5")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Tasks []tasks.TaskRef `json:"tasks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Tasks, 1)
	assert.Equal(t, "t1", body.Tasks[0].RemoteTaskID)
}

func TestListTasksRejectsBadLimit(t *testing.T) {
	srv, deps := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/tasks?limit=lots")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation", decodeError(t, resp).Kind)
	assert.Zero(t, deps.tasks.listCalls)
}

func TestCompleteTask(t *testing.T) {
	srv, deps := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/api/tasks/task-9/complete", map[string]any{"category": "personal"})
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "task-9", deps.tasks.lastComplete.RemoteTaskID)
}

func TestCompleteTaskNotFound(t *testing.T) {
	srv, deps := newTestServer(t, nil)
	deps.tasks.completeErr = &graph.APIError{Operation: "complete task", StatusCode: 404, Body: "gone"}

	resp := postJSON(t, srv.URL+"/api/tasks/missing/complete", map[string]any{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decodeError(t, resp).Kind)
}

func TestAuthStatus(t *testing.T) {
	srv, deps := newTestServer(t, nil)
	deps.auth.status = auth.StatusInfo{Authenticated: true, Username: "alice@example.com"}

	resp, err := http.Get(srv.URL + "/api/auth/status")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var status auth.StatusInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.True(t, status.Authenticated)
	assert.Equal(t, "alice@example.com", status.Username)
}

func TestTaskChangedForceFlag(t *testing.T) {
	srv, deps := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/api/relay/task-changed?force=true", map[string]any{"id": "t1"})
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, deps.relay.lastForce)

	var res relay.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, relay.OutcomeRelayed, res.Outcome)
}

func TestTaskChangedDeliveryFailure(t *testing.T) {
	srv, deps := newTestServer(t, nil)
	deps.relay.result = relay.Result{Outcome: relay.OutcomeError}
	deps.relay.err = relay.ErrDeliveryFailed

	resp := postJSON(t, srv.URL+"/api/relay/task-changed", map[string]any{"id": "t1"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "relay_failed", decodeError(t, resp).Kind)
}

func TestBearerAuthGuardsAPIRoutes(t *testing.T) {
	srv, _ := newTestServer(t, func(o *Options) {
		o.APIToken = "assistant-token"
	})

	resp, err := http.Get(srv.URL + "/api/tasks")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/tasks", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer assistant-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// Health probes stay open.
	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestRequestIDEchoedAndGenerated(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/auth/status", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "caller-chosen")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, "caller-chosen", resp.Header.Get("X-Request-Id"))
	_ = resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/auth/status")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	_ = resp.Body.Close()
}

func TestReadinessFlipsWithState(t *testing.T) {
	h := NewHealthChecker()

	w := httptest.NewRecorder()
	h.ReadinessHandler()(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	h.SetReady(true)
	w = httptest.NewRecorder()
	h.ReadinessHandler()(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsServerRequiresEnabledProvider(t *testing.T) {
	_, err := NewMetricsServer(":0", nil)
	assert.Error(t, err)
}

func TestErrorEnvelopeShape(t *testing.T) {
	srv, deps := newTestServer(t, nil)
	deps.tasks.createErr = errors.New("boom")

	resp := postJSON(t, srv.URL+"/api/tasks", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, "internal", body.Kind)
	assert.NotEmpty(t, body.Message)
}
