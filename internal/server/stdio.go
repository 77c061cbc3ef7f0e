package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"git.cscs.ch/openchami/chamicore-cosmos/internal/audit"
)

const (
	jsonRPCVersion = "2.0"

	rpcCodeInvalidRequest = -32600
	rpcCodeMethodNotFound = -32601
	rpcCodeInvalidParams  = -32602
	rpcCodeInternalError  = -32603

	maxStdioMessageBytes = 4 * 1024 * 1024
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id,omitempty"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type initializeResult struct {
	ProtocolVersion string `json:"protocolVersion"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
	Capabilities struct {
		Tools struct {
			ListChanged bool `json:"listChanged"`
		} `json:"tools"`
	} `json:"capabilities"`
}

type listToolsResult struct {
	Tools []toolDescriptor `json:"tools"`
}

type toolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type callToolResult struct {
	Content           []contentBlock `json:"content"`
	IsError           bool           `json:"isError"`
	StructuredContent map[string]any `json:"structuredContent,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func newInitializeResult(version string) initializeResult {
	result := initializeResult{ProtocolVersion: defaultProtocolVersion}
	result.ServerInfo.Name = defaultServerName
	result.ServerInfo.Version = strings.TrimSpace(version)
	result.Capabilities.Tools.ListChanged = false
	return result
}

// RunStdio serves MCP over line-delimited JSON-RPC on in and out. Requests
// are answered one at a time in arrival order.
func RunStdio(
	ctx context.Context,
	in io.Reader,
	out io.Writer,
	registry *ToolRegistry,
	authorizer ToolAuthorizer,
	caller ToolCaller,
	version string,
	logger zerolog.Logger,
) error {
	srv := &stdioServer{
		registry:   registry,
		authorizer: authorizer,
		caller:     caller,
		version:    version,
		logger:     logger,
		audit:      audit.NewLogger(logger),
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStdioMessageBytes)
	w := bufio.NewWriter(out)
	defer w.Flush()

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := writeRPC(w, srv.handleLine(ctx, line)); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdio request: %w", err)
	}
	return nil
}

type stdioServer struct {
	registry   *ToolRegistry
	authorizer ToolAuthorizer
	caller     ToolCaller
	version    string
	logger     zerolog.Logger
	audit      *audit.Logger
}

func (s *stdioServer) handleLine(ctx context.Context, line []byte) rpcResponse {
	var req rpcRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return rpcFailure(nil, rpcCodeInvalidRequest, "invalid json-rpc payload: %v", err)
	}
	if strings.TrimSpace(req.JSONRPC) != jsonRPCVersion {
		return rpcFailure(req.ID, rpcCodeInvalidRequest, "jsonrpc must be %s", jsonRPCVersion)
	}

	switch method := strings.TrimSpace(req.Method); method {
	case "initialize":
		return rpcSuccess(req.ID, newInitializeResult(s.version))
	case "tools/list":
		return rpcSuccess(req.ID, listToolsResult{Tools: s.registry.descriptors()})
	case "tools/call":
		return s.callTool(ctx, req)
	default:
		return rpcFailure(req.ID, rpcCodeMethodNotFound, "unknown method: %s", method)
	}
}

// callTool rejects protocol and policy problems as JSON-RPC errors; anything
// the dispatcher reports comes back as an in-band result.
func (s *stdioServer) callTool(ctx context.Context, req rpcRequest) rpcResponse {
	if len(req.Params) == 0 {
		return rpcFailure(req.ID, rpcCodeInvalidParams, "missing params")
	}
	var params callToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return rpcFailure(req.ID, rpcCodeInvalidParams, "invalid tools/call params: %v", err)
	}

	name := strings.TrimSpace(params.Name)
	tool, ok := s.registry.Lookup(name)
	if !ok {
		return rpcFailure(req.ID, rpcCodeInvalidParams, "unknown tool: %s", name)
	}
	if err := authorizeToolCall(s.authorizer, tool); err != nil {
		return rpcFailure(req.ID, rpcCodeInvalidParams, "%s", err)
	}
	if s.caller == nil {
		return rpcFailure(req.ID, rpcCodeInternalError, "tool caller is not configured")
	}

	mode := resolvedMode(s.authorizer)
	s.logger.Info().Str("transport", "stdio").Str("tool", tool.Name).Msg("received tool call")

	started := time.Now()
	event := audit.ToolCallCompletion{
		RequestID: rpcRequestID(req.ID),
		Transport: "stdio",
		ToolName:  tool.Name,
		Mode:      mode,
		Arguments: params.Arguments,
		Result:    "error",
	}
	result := invokeTool(ctx, s.caller, tool, mode, params.Arguments, &event)
	event.Duration = time.Since(started)
	s.audit.Complete(event)

	return rpcSuccess(req.ID, result)
}

func rpcSuccess(id, result any) rpcResponse {
	return rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
}

func rpcFailure(id any, code int, format string, args ...any) rpcResponse {
	return rpcResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &rpcError{Code: code, Message: fmt.Sprintf(format, args...)},
	}
}

func writeRPC(w *bufio.Writer, resp rpcResponse) error {
	encoded, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding rpc response: %w", err)
	}
	encoded = append(encoded, '\n')
	if _, err := w.Write(encoded); err != nil {
		return fmt.Errorf("writing rpc response: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing rpc response: %w", err)
	}
	return nil
}

func rpcRequestID(id any) string {
	if id == nil {
		return ""
	}
	return fmt.Sprint(id)
}
