package task_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"taskbridge/internal/instrumentation"
	"taskbridge/internal/server"
	"taskbridge/internal/tasks"
)

// Deps carries the bridge services the tools call into.
type Deps struct {
	Tasks   server.TaskService
	Auth    server.AuthReporter
	Metrics *instrumentation.Metrics
}

// stringArg extracts an optional string argument.
func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

// intArg extracts an optional integer argument. MCP clients send JSON
// numbers, which decode as float64.
func intArg(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// RegisterTaskTools registers the bridge's task and auth tools with the MCP
// server.
func RegisterTaskTools(s *mcpserver.MCPServer, deps Deps) error {
	if deps.Tasks == nil || deps.Auth == nil {
		return fmt.Errorf("task tools require task and auth services")
	}

	registerCreateTask(s, deps)
	registerListTasks(s, deps)
	registerCompleteTask(s, deps)
	registerAuthStatus(s, deps)
	return nil
}

// observe wraps a tool handler with invocation metrics.
func observe(deps Deps, name string, handler mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := handler(ctx, request)
		status := "success"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}
		deps.Metrics.RecordToolInvocation(ctx, name, status, time.Since(start))
		return result, err
	}
}

func registerCreateTask(s *mcpserver.MCPServer, deps Deps) {
	tool := mcp.NewTool("tasks_create",
		mcp.WithDescription("Create a task in the user's Microsoft To Do"),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Task title"),
		),
		mcp.WithString("notes",
			mcp.Description("Free-form notes attached to the task"),
		),
		mcp.WithString("importance",
			mcp.Description("Task importance: low, normal or high (default: normal)"),
		),
		mcp.WithString("dueDate",
			mcp.Description("Due date as YYYY-MM-DD; completed with the configured default time"),
		),
		mcp.WithString("category",
			mcp.Description("Task category: personal or work (default: personal)"),
		),
	)

	s.AddTool(tool, observe(deps, "tasks_create", func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})

		title := stringArg(args, "title")
		if title == "" {
			return mcp.NewToolResultError("title is required"), nil
		}
		category, err := tasks.ParseCategory(stringArg(args, "category"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		importance, err := tasks.ParseImportance(stringArg(args, "importance"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		ref, err := deps.Tasks.Create(ctx, tasks.CreateInput{
			Title:      title,
			Notes:      stringArg(args, "notes"),
			Importance: importance,
			DueDate:    stringArg(args, "dueDate"),
			Category:   category,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to create task: %v", err)), nil
		}

		result, _ := json.MarshalIndent(ref, "", "  ")
		return mcp.NewToolResultText(string(result)), nil
	}))
}

func registerListTasks(s *mcpserver.MCPServer, deps Deps) {
	tool := mcp.NewTool("tasks_list",
		mcp.WithDescription("List open tasks in a category's list, most recent first"),
		mcp.WithString("category",
			mcp.Description("Task category: personal or work (default: personal)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of tasks to return (default: 20, max: 100)"),
		),
		mcp.WithBoolean("includeCompleted",
			mcp.Description("Include completed tasks (default: false)"),
		),
	)

	s.AddTool(tool, observe(deps, "tasks_list", func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})

		category, err := tasks.ParseCategory(stringArg(args, "category"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		includeCompleted, _ := args["includeCompleted"].(bool)

		refs, err := deps.Tasks.List(ctx, tasks.ListInput{
			Category:         category,
			Limit:            intArg(args, "limit"),
			IncludeCompleted: includeCompleted,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list tasks: %v", err)), nil
		}

		result, _ := json.MarshalIndent(refs, "", "  ")
		return mcp.NewToolResultText(string(result)), nil
	}))
}

func registerCompleteTask(s *mcpserver.MCPServer, deps Deps) {
	tool := mcp.NewTool("tasks_complete",
		mcp.WithDescription("Mark a task as completed"),
		mcp.WithString("taskId",
			mcp.Required(),
			mcp.Description("The remote id of the task to complete"),
		),
		mcp.WithString("category",
			mcp.Description("Category whose list holds the task (default: personal)"),
		),
		mcp.WithString("listId",
			mcp.Description("Explicit list id; overrides category resolution"),
		),
	)

	s.AddTool(tool, observe(deps, "tasks_complete", func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})

		taskID := stringArg(args, "taskId")
		if taskID == "" {
			return mcp.NewToolResultError("taskId is required"), nil
		}
		category, err := tasks.ParseCategory(stringArg(args, "category"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		ref, err := deps.Tasks.Complete(ctx, tasks.CompleteInput{
			RemoteTaskID: taskID,
			Category:     category,
			ListID:       stringArg(args, "listId"),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to complete task: %v", err)), nil
		}

		result, _ := json.MarshalIndent(ref, "", "  ")
		return mcp.NewToolResultText(string(result)), nil
	}))
}

func registerAuthStatus(s *mcpserver.MCPServer, deps Deps) {
	tool := mcp.NewTool("auth_status",
		mcp.WithDescription("Report whether the bridge can act for the user without a new sign-in"),
	)

	s.AddTool(tool, observe(deps, "auth_status", func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status := deps.Auth.Status(ctx)
		result, _ := json.MarshalIndent(status, "", "  ")
		return mcp.NewToolResultText(string(result)), nil
	}))
}
