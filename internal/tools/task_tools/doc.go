// Package task_tools provides MCP tools for the bridge's task operations.
//
// # Available Tools
//
//   - tasks_create: Create a task in the user's Microsoft To Do
//   - tasks_list: List tasks in a category's backing list
//   - tasks_complete: Mark a task as completed
//   - auth_status: Report the cached credential state
//
// The tools share the same gateway as the HTTP surface, so category
// resolution, validation, and error classification behave identically on
// both transports.
package task_tools
