// Package audit provides structured audit logging for Cosmos DB tool calls.
package audit

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	bearerTokenPattern = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9\-._~+/]+=*`)
	keyValuePattern    = regexp.MustCompile(`(?i)\b(accountkey|masterkey|sig|token|secret|password|authorization)\s*[:=]\s*([^\s,;&]+)`)
)

// ToolCallCompletion captures one finalized tool-call outcome.
type ToolCallCompletion struct {
	RequestID    string
	SessionID    string
	Transport    string
	ToolName     string
	Mode         string
	Arguments    map[string]any
	Result       string
	ErrorKind    string
	ErrorDetail  string
	Duration     time.Duration
	ResponseCode int
}

// TargetSummary is a compact summary of the documents a call addressed.
type TargetSummary struct {
	Container     string   `json:"container,omitempty"`
	DocumentIDs   []string `json:"document_ids,omitempty"`
	PartitionKeys []string `json:"partition_keys,omitempty"`
}

// Logger emits structured audit entries.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates an audit logger.
func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Complete writes a single completion log entry for one tool call. The level
// follows the error kind: client mistakes stay quiet, store and internal
// failures are raised.
func (l *Logger) Complete(event ToolCallCompletion) {
	if l == nil {
		return
	}

	result := strings.TrimSpace(event.Result)
	if result == "" {
		result = "error"
	}

	tool := strings.TrimSpace(event.ToolName)
	if tool == "" {
		tool = "unknown"
	}

	duration := event.Duration
	if duration < 0 {
		duration = 0
	}

	kind := strings.TrimSpace(event.ErrorKind)
	entry := l.levelFor(result, kind).
		Str("event", "cosmos.tool_call.completed").
		Str("request_id", strings.TrimSpace(event.RequestID)).
		Str("session_id", strings.TrimSpace(event.SessionID)).
		Str("transport", strings.TrimSpace(event.Transport)).
		Str("tool", tool).
		Str("mode", strings.TrimSpace(event.Mode)).
		Str("result", result).
		Int64("duration_ms", duration.Milliseconds()).
		Interface("target", SummarizeTargets(event.Arguments))

	if kind != "" {
		entry = entry.Str("error_kind", kind)
	}
	if event.ResponseCode > 0 {
		entry = entry.Int("response_code", event.ResponseCode)
	}
	if redactedError := RedactSensitiveText(event.ErrorDetail); redactedError != "" {
		entry = entry.Str("error_detail", redactedError)
	}

	entry.Msg("tool call completed")
}

func (l *Logger) levelFor(result, kind string) *zerolog.Event {
	if result == "success" {
		return l.logger.Info()
	}
	switch kind {
	case "BadRequest":
		return l.logger.Debug()
	case "NotFound", "Forbidden":
		return l.logger.Info()
	case "StoreError":
		return l.logger.Warn()
	default:
		return l.logger.Error()
	}
}

// SummarizeTargets extracts the container, document ids and partition keys
// named by tool arguments. Document bodies are never copied.
func SummarizeTargets(args map[string]any) TargetSummary {
	if args == nil {
		return TargetSummary{}
	}

	ids := readString(args, "id")
	pks := readScalar(args, "partitionKey")
	if item, ok := args["item"].(map[string]any); ok {
		ids = append(ids, readString(item, "id")...)
	}

	summary := TargetSummary{
		DocumentIDs:   uniqueStrings(ids),
		PartitionKeys: uniqueStrings(pks),
	}
	if containers := readString(args, "contenedor", "container"); len(containers) > 0 {
		summary.Container = containers[0]
	}
	return summary
}

// RedactSensitiveText removes obvious secrets from free-text error details,
// including Cosmos DB account keys embedded in connection strings.
func RedactSensitiveText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	redacted := bearerTokenPattern.ReplaceAllString(trimmed, "Bearer [REDACTED]")
	redacted = keyValuePattern.ReplaceAllStringFunc(redacted, func(match string) string {
		parts := strings.SplitN(match, "=", 2)
		if len(parts) == 2 && !strings.Contains(parts[0], ":") {
			return fmt.Sprintf("%s=[REDACTED]", strings.TrimSpace(parts[0]))
		}
		parts = strings.SplitN(match, ":", 2)
		if len(parts) == 2 {
			return fmt.Sprintf("%s: [REDACTED]", strings.TrimSpace(parts[0]))
		}
		return "[REDACTED]"
	})
	return redacted
}

func readString(args map[string]any, keys ...string) []string {
	values := make([]string, 0, len(keys))
	for _, key := range keys {
		asString, ok := args[key].(string)
		if !ok {
			continue
		}
		if trimmed := strings.TrimSpace(asString); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func readScalar(args map[string]any, key string) []string {
	raw, ok := args[key]
	if !ok {
		return nil
	}
	switch typed := raw.(type) {
	case nil:
		return []string{"null"}
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			parts = append(parts, fmt.Sprint(item))
		}
		return []string{"[" + strings.Join(parts, ",") + "]"}
	case map[string]any:
		return nil
	default:
		return []string{fmt.Sprint(typed)}
	}
}

func uniqueStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		unique = append(unique, trimmed)
	}
	if len(unique) == 0 {
		return nil
	}
	slices.Sort(unique)
	return unique
}
