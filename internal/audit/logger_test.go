package audit

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLoggerComplete_EmitsOneStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	auditLogger := NewLogger(zerolog.New(&buf))

	auditLogger.Complete(ToolCallCompletion{
		RequestID: "req-1",
		SessionID: "sess-1",
		Transport: "http",
		ToolName:  "cosmos_patch_item",
		Mode:      "read-write",
		Arguments: map[string]any{
			"id":           "node-1",
			"partitionKey": "tenant-a",
			"operations":   []any{map[string]any{"op": "replace", "path": "/status", "value": "inactive"}},
		},
		Result:       "success",
		Duration:     250 * time.Millisecond,
		ResponseCode: 200,
	})

	lines := splitJSONLines(t, buf.String())
	require.Len(t, lines, 1)

	entry := lines[0]
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "audit", entry["component"])
	require.Equal(t, "cosmos.tool_call.completed", entry["event"])
	require.Equal(t, "req-1", entry["request_id"])
	require.Equal(t, "sess-1", entry["session_id"])
	require.Equal(t, "http", entry["transport"])
	require.Equal(t, "cosmos_patch_item", entry["tool"])
	require.Equal(t, "read-write", entry["mode"])
	require.Equal(t, "success", entry["result"])
	require.EqualValues(t, 250, entry["duration_ms"])
	require.EqualValues(t, 200, entry["response_code"])

	target, ok := entry["target"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, []any{"node-1"}, target["document_ids"])
	require.Equal(t, []any{"tenant-a"}, target["partition_keys"])
	_, hasOps := target["operations"]
	require.False(t, hasOps)
}

func TestLoggerComplete_LevelFollowsErrorKind(t *testing.T) {
	tests := map[string]string{
		"BadRequest":    "debug",
		"NotFound":      "info",
		"StoreError":    "warn",
		"InternalError": "error",
	}

	for kind, level := range tests {
		t.Run(kind, func(t *testing.T) {
			var buf bytes.Buffer
			NewLogger(zerolog.New(&buf)).Complete(ToolCallCompletion{
				ToolName:    "cosmos_get_item",
				Result:      "error",
				ErrorKind:   kind,
				ErrorDetail: "AccountKey=abc123==;",
			})

			lines := splitJSONLines(t, buf.String())
			require.Len(t, lines, 1)
			require.Equal(t, level, lines[0]["level"])
			require.Equal(t, kind, lines[0]["error_kind"])
			require.Equal(t, "AccountKey=[REDACTED];", lines[0]["error_detail"])
		})
	}
}

func TestLoggerComplete_NilLoggerIsNoop(t *testing.T) {
	var auditLogger *Logger
	require.NotPanics(t, func() {
		auditLogger.Complete(ToolCallCompletion{ToolName: "cosmos_get_item"})
	})
}

func TestRedactSensitiveText_RedactsTokenLikeSegments(t *testing.T) {
	raw := "request failed: Authorization: Bearer abc.def.ghi token=xyz123 password=hunter2"
	redacted := RedactSensitiveText(raw)

	require.NotContains(t, redacted, "abc.def.ghi")
	require.NotContains(t, redacted, "xyz123")
	require.NotContains(t, redacted, "hunter2")
	require.Contains(t, redacted, "Authorization: [REDACTED]")
	require.Contains(t, redacted, "token=[REDACTED]")
	require.Contains(t, redacted, "password=[REDACTED]")
}

func TestRedactSensitiveText_RedactsConnectionStringKey(t *testing.T) {
	raw := "AccountEndpoint=https://acct.documents.azure.com:443/;AccountKey=c2VjcmV0LWtleQ==;"
	redacted := RedactSensitiveText(raw)

	require.Equal(t, "AccountEndpoint=https://acct.documents.azure.com:443/;AccountKey=[REDACTED];", redacted)
}

func TestSummarizeTargets_CollectsDocumentIdentifiers(t *testing.T) {
	summary := SummarizeTargets(map[string]any{
		"id":           "doc-1",
		"partitionKey": []any{"tenant", float64(3)},
	})
	require.Equal(t, []string{"doc-1"}, summary.DocumentIDs)
	require.Equal(t, []string{"[tenant,3]"}, summary.PartitionKeys)

	summary = SummarizeTargets(map[string]any{
		"item": map[string]any{"id": "doc-2", "secret": "body"},
	})
	require.Equal(t, []string{"doc-2"}, summary.DocumentIDs)
	require.Nil(t, summary.PartitionKeys)

	summary = SummarizeTargets(map[string]any{"contenedor": "items", "query": "SELECT * FROM c"})
	require.Equal(t, "items", summary.Container)
	require.Nil(t, summary.DocumentIDs)

	require.Equal(t, TargetSummary{}, SummarizeTargets(nil))
}

func splitJSONLines(t *testing.T, payload string) []map[string]any {
	t.Helper()

	rawLines := bytes.Split(bytes.TrimSpace([]byte(payload)), []byte("\n"))
	lines := make([]map[string]any, 0, len(rawLines))
	for _, raw := range rawLines {
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var item map[string]any
		require.NoError(t, json.Unmarshal(raw, &item))
		lines = append(lines, item)
	}
	return lines
}
