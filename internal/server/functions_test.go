package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/stretchr/testify/require"

	"git.cscs.ch/openchami/chamicore-cosmos/internal/cosmos"
	"git.cscs.ch/openchami/chamicore-cosmos/internal/policy"
	"git.cscs.ch/openchami/chamicore-cosmos/internal/tools"
)

func TestFunctionRoutes_HealthAndCORS(t *testing.T) {
	ts := newTestHTTPServer(t, nil, &fakeCaller{}, nil)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	payload := decodeBody(t, resp)
	require.Equal(t, defaultServerName, payload["name"])
	require.Equal(t, "v-test", payload["version"])
	require.Equal(t, "ok", payload["status"])
}

func TestFunctionRoutes_Preflight(t *testing.T) {
	caller := &fakeCaller{}
	ts := newTestHTTPServer(t, nil, caller, nil)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/tools/cosmos_get_item", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "Content-Type,Authorization,x-functions-key", resp.Header.Get("Access-Control-Allow-Headers"))
	require.Equal(t, "GET,POST,OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
	require.Zero(t, caller.callCount())
}

func TestFunctionRoutes_ListToolsAndContract(t *testing.T) {
	ts := newTestHTTPServer(t, nil, &fakeCaller{}, nil)

	resp, err := http.Get(ts.URL + "/api/tools")
	require.NoError(t, err)
	listed, ok := decodeBody(t, resp)["tools"].([]any)
	require.True(t, ok)
	require.Len(t, listed, len(tools.Catalog()))
	first := listed[0].(map[string]any)
	require.Equal(t, tools.ToolGetItem, first["name"])
	require.NotEmpty(t, first["inputSchema"])

	resp, err = http.Get(ts.URL + "/api/tools.yaml")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))
	require.Contains(t, string(body), "name: cosmos_delete_item")
}

func TestFunctionRoutes_Swagger(t *testing.T) {
	ts := newTestHTTPServer(t, nil, &fakeCaller{}, nil)

	resp, err := http.Get(ts.URL + "/api/swagger")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	require.Contains(t, string(body), "swagger-ui")
	require.Contains(t, string(body), "openapi.json")
}

func TestFunctionCallTool_ReturnsRawResult(t *testing.T) {
	caller := &fakeCaller{
		callFn: func(_ context.Context, _ string, args map[string]any) (map[string]any, error) {
			return map[string]any{"id": args["id"], "status": "active"}, nil
		},
	}
	ts := newTestHTTPServer(t, nil, caller, nil)

	resp := postJSON(t, ts.URL+"/api/tools/cosmos_get_item", `{"id":"1","partitionKey":"tenant-a"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decodeBody(t, resp)
	require.Equal(t, map[string]any{"id": "1", "status": "active"}, payload)
	require.Equal(t, []string{tools.ToolGetItem}, caller.calls)
	require.Equal(t, "tenant-a", caller.args[0]["partitionKey"])
}

func TestFunctionCallTool_EmptyBodyIsEmptyObject(t *testing.T) {
	caller := &fakeCaller{}
	ts := newTestHTTPServer(t, nil, caller, nil)

	resp, err := http.Post(ts.URL+"/api/tools/cosmos_query_items", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, caller.args, 1)
	require.NotNil(t, caller.args[0])
	require.Empty(t, caller.args[0])
}

func TestFunctionCallTool_InvalidPayloads(t *testing.T) {
	caller := &fakeCaller{}
	ts := newTestHTTPServer(t, nil, caller, nil)

	resp := postJSON(t, ts.URL+"/api/tools/cosmos_get_item", `[1,2]`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Invalid payload: expected a JSON object", decodeBody(t, resp)["error"])

	resp = postJSON(t, ts.URL+"/api/tools/cosmos_get_item", `{"id":`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	payload := decodeBody(t, resp)
	require.Equal(t, "Invalid JSON payload", payload["error"])
	require.NotEmpty(t, payload["details"])

	require.Zero(t, caller.callCount())
}

func upsertBody(blobBytes int) string {
	return `{"item":{"id":"big","pk":"tenant-a","blob":"` + strings.Repeat("x", blobBytes) + `"}}`
}

func TestFunctionCallTool_AcceptsLargeDocuments(t *testing.T) {
	caller := &fakeCaller{}
	ts := newTestHTTPServer(t, nil, caller, nil)

	resp := postJSON(t, ts.URL+"/api/tools/cosmos_upsert_item", upsertBody(3<<19))
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, caller.callCount())
}

func TestFunctionCallTool_BodyTooLarge(t *testing.T) {
	caller := &fakeCaller{}
	ts := newTestHTTPServer(t, nil, caller, nil)

	resp := postJSON(t, ts.URL+"/api/tools/cosmos_upsert_item", upsertBody(maxRequestBodyBytes))
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	payload := decodeBody(t, resp)
	require.Equal(t, payloadTooLargeMessage, payload["error"])
	require.Zero(t, caller.callCount())

	resp = postJSON(t, ts.URL+"/mcp/v1/tools/call", `{"name":"cosmos_upsert_item","arguments":`+upsertBody(maxRequestBodyBytes)+`}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	require.Equal(t, payloadTooLargeMessage, decodeBody(t, resp)["detail"])
	require.Zero(t, caller.callCount())
}

func TestFunctionCallTool_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantError   string
		wantDetails bool
	}{
		{
			name:       "bad request",
			err:        tools.Normalize(fmt.Errorf("%w: item is missing partition key field /pk", cosmos.ErrInvalidInput)),
			wantStatus: http.StatusBadRequest,
			wantError:  "item is missing partition key field /pk",
		},
		{
			name:       "not found",
			err:        &azcore.ResponseError{StatusCode: http.StatusNotFound, ErrorCode: "NotFound"},
			wantStatus: http.StatusNotFound,
			wantError:  "resource not found",
		},
		{
			name:        "store error",
			err:         &azcore.ResponseError{StatusCode: http.StatusTooManyRequests, ErrorCode: "TooManyRequests"},
			wantStatus:  http.StatusInternalServerError,
			wantError:   "cosmos db error: 429 TooManyRequests",
			wantDetails: true,
		},
		{
			name:        "internal error",
			err:         fmt.Errorf("decoding document: unexpected EOF"),
			wantStatus:  http.StatusInternalServerError,
			wantError:   "Server error",
			wantDetails: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			caller := &fakeCaller{
				callFn: func(context.Context, string, map[string]any) (map[string]any, error) {
					return nil, tc.err
				},
			}
			ts := newTestHTTPServer(t, nil, caller, nil)

			resp := postJSON(t, ts.URL+"/api/tools/cosmos_get_item", `{"id":"1","partitionKey":"a"}`)
			require.Equal(t, tc.wantStatus, resp.StatusCode)
			payload := decodeBody(t, resp)
			require.Equal(t, tc.wantError, payload["error"])
			if tc.wantDetails {
				require.NotEmpty(t, payload["details"])
			} else {
				require.NotContains(t, payload, "details")
			}
		})
	}
}

func TestFunctionCallTool_RunnerValidation(t *testing.T) {
	ts := newTestHTTPServer(t, nil, tools.NewRunner(nil), nil)

	resp := postJSON(t, ts.URL+"/api/tools/cosmos_drop_database", `{}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "unknown tool: cosmos_drop_database", decodeBody(t, resp)["error"])

	resp = postJSON(t, ts.URL+"/api/tools/cosmos_query_items", `{"query":"SELECT * FROM c","maxItemCount":0}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "maxItemCount must be an integer between 1 and 1000", decodeBody(t, resp)["error"])

	resp = postJSON(t, ts.URL+"/api/tools/cosmos_get_item", `{"id":"1","partitionKey":"a"}`)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	payload := decodeBody(t, resp)
	require.Equal(t, "Server error", payload["error"])
	require.Contains(t, payload["details"], "COSMOS_CONNECTION_STRING")
}

func TestFunctionCallTool_ReadOnlyDeniesWrite(t *testing.T) {
	caller := &fakeCaller{}
	ts := newTestHTTPServer(t, mustGuard(t, policy.ModeReadOnly), caller, nil)

	resp := postJSON(t, ts.URL+"/api/tools/cosmos_delete_item", `{"id":"1","partitionKey":"a"}`)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Contains(t, decodeBody(t, resp)["error"], "tool authorization denied")

	resp = postJSON(t, ts.URL+"/api/tools/cosmos_get_item", `{"id":"1","partitionKey":"a"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
	require.Equal(t, []string{tools.ToolGetItem}, caller.calls)
}
