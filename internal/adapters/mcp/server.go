// Package mcp exposes the task tools over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/PabloGalante/todo-agent/internal/app/tools"
	"github.com/PabloGalante/todo-agent/internal/observability"
)

const serverName = "todo-agent"

// params describes the arguments of each tool besides user_id.
var params = map[string][]mcp.ToolOption{
	tools.AddTaskName: {
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title, at most 200 characters")),
		mcp.WithString("description", mcp.Description("Optional details")),
		mcp.WithString("due_date", mcp.Description("Due date in RFC 3339 format")),
		mcp.WithString("priority", mcp.Enum("low", "medium", "high")),
		mcp.WithString("tags", mcp.Description("Comma separated tags")),
		mcp.WithString("recurrence_pattern", mcp.Enum("daily", "weekly", "monthly", "yearly")),
	},
	tools.ListTasksName: {
		mcp.WithString("status", mcp.Enum("all", "pending", "completed"), mcp.Description("Defaults to all")),
	},
	tools.CompleteTaskName: {
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task UUID or its number in the task list")),
	},
	tools.DeleteTaskName: {
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task UUID or its number in the task list")),
	},
	tools.UpdateTaskName: {
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task UUID or its number in the task list")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
	},
}

// NewServer registers every tool of the registry on a new MCP server.
func NewServer(registry *tools.Registry, version string) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Manage a user's todo list. Every tool needs the user_id of the list owner."),
	)

	for _, t := range registry.All() {
		s.AddTool(Definition(t), Handler(t))
	}
	return s
}

// Definition builds the MCP tool schema for t.
func Definition(t tools.Tool) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(t.Description()),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Owner of the task list")),
	}
	opts = append(opts, params[t.Name()]...)
	return mcp.NewTool(t.Name(), opts...)
}

// Handler adapts t to an MCP tool handler. Tool failures are reported as
// error results so the client can show them.
func Handler(t tools.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		userID, _ := args["user_id"].(string)
		log := observability.LoggerFromContext(ctx).With("tool", t.Name(), "user_id", userID)

		if userID == "" {
			return mcp.NewToolResultError("user_id is required"), nil
		}

		out, err := t.Call(ctx, tools.ToolContext{UserID: userID}, args)
		if err != nil {
			log.Warn("tool call failed", "error", err)
			return mcp.NewToolResultError(tools.UserMessage(err)), nil
		}

		raw, err := json.Marshal(out)
		if err != nil {
			return nil, err
		}
		log.Info("tool call handled")
		return mcp.NewToolResultText(string(raw)), nil
	}
}
