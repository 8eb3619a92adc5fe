// Package graph provides a minimal typed client for the Microsoft Graph
// To Do endpoints used by taskbridge.
//
// The client covers list discovery, list creation, task creation, filtered
// task queries, and completion patches for one delegated identity. Every
// non-2xx response is wrapped as an APIError carrying the status code and a
// bounded copy of the response body; a 404 additionally matches ErrNotFound
// via errors.Is. The client never retries.
package graph
