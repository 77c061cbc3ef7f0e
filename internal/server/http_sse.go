package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"git.cscs.ch/openchami/chamicore-cosmos/internal/audit"
	"git.cscs.ch/openchami/chamicore-cosmos/internal/httputil"
)

func registerMCPHTTPRoutes(
	r chi.Router,
	registry *ToolRegistry,
	authorizer ToolAuthorizer,
	caller ToolCaller,
	version string,
	logger zerolog.Logger,
) {
	r.Route("/mcp/v1", func(r chi.Router) {
		r.Post("/initialize", handleInitializeHTTP(version))
		r.Get("/tools", handleListToolsHTTP(registry))
		r.Post("/tools/call", handleCallToolHTTP(registry, authorizer, caller, logger))
		r.Post("/tools/call/sse", handleCallToolSSE(registry, authorizer, caller, logger))
	})
}

func handleInitializeHTTP(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httputil.RespondJSON(w, http.StatusOK, newInitializeResult(version))
	}
}

func handleListToolsHTTP(registry *ToolRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httputil.RespondJSON(w, http.StatusOK, listToolsResult{Tools: registry.descriptors()})
	}
}

func handleCallToolHTTP(
	registry *ToolRegistry,
	authorizer ToolAuthorizer,
	caller ToolCaller,
	logger zerolog.Logger,
) http.HandlerFunc {
	auditLogger := audit.NewLogger(logger)

	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		requestID := httputil.RequestIDFromContext(r.Context())

		params, tool, rejectionDetail, ok := parseCallToolRequest(w, r, registry, authorizer, caller)
		auditEvent := audit.ToolCallCompletion{
			RequestID: requestID,
			SessionID: sessionIDFromHTTPRequest(r, requestID),
			Transport: "http",
			ToolName:  strings.TrimSpace(params.Name),
			Mode:      resolvedMode(authorizer),
			Arguments: params.Arguments,
			Result:    "error",
		}
		defer func() {
			auditEvent.Duration = time.Since(started)
			auditLogger.Complete(auditEvent)
		}()

		if !ok {
			auditEvent.ErrorDetail = rejectionDetail
			return
		}

		auditEvent.ToolName = tool.Name
		logger.Info().Str("transport", "http").Str("tool", tool.Name).Msg("received tool call")

		result := invokeTool(r.Context(), caller, tool, resolvedMode(authorizer), params.Arguments, &auditEvent)
		httputil.RespondJSON(w, http.StatusOK, result)
	}
}

func handleCallToolSSE(
	registry *ToolRegistry,
	authorizer ToolAuthorizer,
	caller ToolCaller,
	logger zerolog.Logger,
) http.HandlerFunc {
	auditLogger := audit.NewLogger(logger)

	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		requestID := httputil.RequestIDFromContext(r.Context())

		params, tool, rejectionDetail, ok := parseCallToolRequest(w, r, registry, authorizer, caller)
		auditEvent := audit.ToolCallCompletion{
			RequestID: requestID,
			SessionID: sessionIDFromHTTPRequest(r, requestID),
			Transport: "http-sse",
			ToolName:  strings.TrimSpace(params.Name),
			Mode:      resolvedMode(authorizer),
			Arguments: params.Arguments,
			Result:    "error",
		}
		defer func() {
			auditEvent.Duration = time.Since(started)
			auditLogger.Complete(auditEvent)
		}()

		if !ok {
			auditEvent.ErrorDetail = rejectionDetail
			return
		}
		auditEvent.ToolName = tool.Name

		controller := http.NewResponseController(w)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		logger.Info().Str("transport", "http-sse").Str("tool", tool.Name).Msg("streaming tool call")

		if err := writeSSEEvent(r.Context(), w, "accepted", map[string]any{
			"tool":      tool.Name,
			"status":    "accepted",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		}); err != nil {
			auditEvent.ErrorDetail = err.Error()
			auditEvent.ResponseCode = http.StatusInternalServerError
			return
		}
		_ = controller.Flush()

		result := invokeTool(r.Context(), caller, tool, resolvedMode(authorizer), params.Arguments, &auditEvent)
		if writeErr := writeSSEEvent(r.Context(), w, "result", result); writeErr != nil {
			auditEvent.Result = "error"
			auditEvent.ErrorDetail = writeErr.Error()
			auditEvent.ResponseCode = http.StatusInternalServerError
			return
		}
		_ = controller.Flush()

		_ = writeSSEEvent(r.Context(), w, "done", map[string]any{"status": "done"})
		_ = controller.Flush()
	}
}

func parseCallToolRequest(
	w http.ResponseWriter,
	r *http.Request,
	registry *ToolRegistry,
	authorizer ToolAuthorizer,
	caller ToolCaller,
) (callToolParams, ToolSpec, string, bool) {
	var params callToolParams
	if err := decodeJSONStrict(r, &params); err != nil {
		if httputil.IsBodyTooLarge(err) {
			httputil.RespondProblem(w, r, http.StatusRequestEntityTooLarge, payloadTooLargeMessage)
			return callToolParams{}, ToolSpec{}, payloadTooLargeMessage, false
		}
		detail := fmt.Sprintf("invalid request body: %v", err)
		httputil.RespondProblem(w, r, http.StatusBadRequest, detail)
		return callToolParams{}, ToolSpec{}, detail, false
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		httputil.RespondProblem(w, r, http.StatusBadRequest, "tool name is required")
		return params, ToolSpec{}, "tool name is required", false
	}

	tool, ok := registry.Lookup(name)
	if !ok {
		detail := fmt.Sprintf("unknown tool: %s", name)
		httputil.RespondProblem(w, r, http.StatusBadRequest, detail)
		return params, ToolSpec{}, detail, false
	}
	if err := authorizeToolCall(authorizer, tool); err != nil {
		httputil.RespondProblem(w, r, http.StatusForbidden, err.Error())
		return params, tool, err.Error(), false
	}
	if caller == nil {
		httputil.RespondProblem(w, r, http.StatusInternalServerError, "tool caller is not configured")
		return params, tool, "tool caller is not configured", false
	}

	return params, tool, "", true
}

func writeSSEEvent(ctx context.Context, w http.ResponseWriter, event string, payload any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", strings.TrimSpace(event)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}

func decodeJSONStrict(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if decoder.More() {
		return fmt.Errorf("request must contain exactly one JSON object")
	}
	return nil
}

func sessionIDFromHTTPRequest(r *http.Request, fallback string) string {
	if r == nil {
		return strings.TrimSpace(fallback)
	}
	if sessionID := strings.TrimSpace(r.Header.Get("MCP-Session-ID")); sessionID != "" {
		return sessionID
	}
	if sessionID := strings.TrimSpace(r.Header.Get("X-Session-ID")); sessionID != "" {
		return sessionID
	}
	return strings.TrimSpace(fallback)
}
