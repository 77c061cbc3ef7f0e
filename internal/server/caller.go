package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"git.cscs.ch/openchami/chamicore-cosmos/internal/audit"
	"git.cscs.ch/openchami/chamicore-cosmos/internal/tools"
)

// ToolCaller executes one tool call and returns structured content.
type ToolCaller interface {
	Call(ctx context.Context, name string, args map[string]any) (map[string]any, error)
}

// invokeTool executes an authorized call and records its outcome on event.
// Tool failures become in-band results; event.ResponseCode carries the status
// the failure kind maps to.
func invokeTool(ctx context.Context, caller ToolCaller, tool ToolSpec, mode string, args map[string]any, event *audit.ToolCallCompletion) callToolResult {
	payload, err := caller.Call(ctx, tool.Name, args)
	if err != nil {
		toolErr := tools.Normalize(err)
		event.ErrorKind = string(toolErr.Kind())
		event.ErrorDetail = auditDetail(toolErr)
		event.ResponseCode = toolErr.StatusCode()
		return toolCallResultFromError(tool.Name, mode, toolErr)
	}
	event.Result = "success"
	event.ResponseCode = http.StatusOK
	return toolCallResultFromExecution(tool.Name, mode, payload)
}

func toolErrorMessage(err error) string {
	if err == nil {
		return "unknown tool execution error"
	}
	message := strings.TrimSpace(err.Error())
	if message == "" {
		return "unknown tool execution error"
	}
	return message
}

// toolErrorPayload renders err as {kind, status, message, details?}.
func toolErrorPayload(err error) map[string]any {
	toolErr := tools.Normalize(err)
	payload := map[string]any{
		"kind":    string(toolErr.Kind()),
		"status":  toolErr.StatusCode(),
		"message": toolErrorMessage(toolErr),
	}
	if detail := toolErr.Detail(); detail != "" {
		payload["details"] = detail
	}
	return payload
}

func auditDetail(toolErr *tools.ToolError) string {
	if detail := toolErr.Detail(); detail != "" {
		return toolErr.Message() + ": " + detail
	}
	return toolErr.Message()
}

func toolCallResultFromExecution(name, mode string, payload map[string]any) callToolResult {
	return callToolResult{
		Content: []contentBlock{
			{
				Type: "text",
				Text: fmt.Sprintf("tool %s executed", strings.TrimSpace(name)),
			},
		},
		IsError: false,
		StructuredContent: map[string]any{
			"tool":   strings.TrimSpace(name),
			"mode":   strings.TrimSpace(mode),
			"status": "ok",
			"result": payload,
		},
	}
}

func toolCallResultFromError(name, mode string, err error) callToolResult {
	return callToolResult{
		Content: []contentBlock{
			{
				Type: "text",
				Text: toolErrorMessage(err),
			},
		},
		IsError: true,
		StructuredContent: map[string]any{
			"tool":   strings.TrimSpace(name),
			"mode":   strings.TrimSpace(mode),
			"status": "error",
			"error":  toolErrorPayload(err),
		},
	}
}
