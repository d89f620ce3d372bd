// Package mcpsurface exposes the same operations cmd/bridge's CLI tree
// offers as MCP tools over stdio, generalizing the teacher's native MCP
// mode (cmd/dev-console/main_connection_mcp.go's runMCPMode, which drives
// browser-log tools) from "get browser logs" to "run/web-open/status"
// automation tools — both fronts call the same internal/bridgeops.Ops,
// so they can never drift apart.
package mcpsurface

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/brennhill/oi-web-bridge/internal/bridgeops"
	"github.com/brennhill/oi-web-bridge/internal/state"
)

// New builds an MCP server exposing bridge_run, bridge_status,
// bridge_web_open, bridge_web_release, and bridge_web_close, all backed
// by ops.
func New(ops *bridgeops.Ops) *server.MCPServer {
	s := server.NewMCPServer("oi-web-bridge", "1.0.0")

	s.AddTool(mcp.NewTool("bridge_run",
		mcp.WithDescription("Run a task under the bridge's guardrail and reporting layer"),
		mcp.WithString("task", mcp.Required(), mcp.Description("free-text task description")),
		mcp.WithString("mode", mcp.Description("shell|gui|web, default web")),
		mcp.WithBoolean("verified", mcp.Description("enforce verify-finding invariants")),
		mcp.WithBoolean("teaching", mcp.Description("enable teaching-mode handoff on stuck steps")),
		mcp.WithString("attach", mcp.Description("attach to an existing web session id")),
	), handleRun(ops))

	s.AddTool(mcp.NewTool("bridge_status",
		mcp.WithDescription("List recent run status entries"),
	), handleStatus(ops))

	s.AddTool(mcp.NewTool("bridge_web_open",
		mcp.WithDescription("Open a new controlled web session"),
		mcp.WithString("url", mcp.Description("initial URL to navigate to")),
	), handleWebOpen(ops))

	s.AddTool(mcp.NewTool("bridge_web_release",
		mcp.WithDescription("Release assistant control of a web session without closing it"),
		mcp.WithString("session_id", mcp.Required()),
	), handleWebRelease(ops))

	s.AddTool(mcp.NewTool("bridge_web_close",
		mcp.WithDescription("Close and forget a web session"),
		mcp.WithString("session_id", mcp.Required()),
	), handleWebClose(ops))

	return s
}

func handleRun(ops *bridgeops.Ops) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		task, err := req.RequireString("task")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		mode := state.Mode(req.GetString("mode", "web"))

		params := bridgeops.RunParams{
			Task:            task,
			Mode:            mode,
			Verified:        req.GetBool("verified", false),
			Teaching:        req.GetBool("teaching", false),
			AttachSessionID: req.GetString("attach", ""),
		}

		out, err := ops.Run(ctx, params)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(out)
	}
}

func handleStatus(ops *bridgeops.Ops) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		idx, err := ops.Status()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(idx)
	}
}

func handleWebOpen(ops *bridgeops.Ops) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ws, err := ops.WebOpen(req.GetString("url", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(ws)
	}
}

func handleWebRelease(ops *bridgeops.Ops) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := ops.WebRelease(id); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("released %s", id)), nil
	}
}

func handleWebClose(ops *bridgeops.Ops) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := ops.WebClose(id); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("closed %s", id)), nil
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// Serve runs the MCP server over stdio until stdin closes or the process
// receives SIGINT/SIGTERM (ctx is not consulted), matching spec §1's "additive" framing: this blocks the
// process the same way cmd/bridge's `run`/`watch` commands do, so it is
// invoked from its own cobra subcommand, not alongside them.
func Serve(ctx context.Context, ops *bridgeops.Ops) error {
	return server.ServeStdio(New(ops))
}
