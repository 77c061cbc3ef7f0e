package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"git.cscs.ch/openchami/chamicore-cosmos/internal/cosmos"
)

func TestParseOperationVariants(t *testing.T) {
	op, err := ParseOperation(ToolGetItem, map[string]any{"id": "n1", "partitionKey": []any{"tenant", float64(7)}})
	require.NoError(t, err)
	require.Equal(t, GetItem{ID: "n1", PartitionKey: []any{"tenant", float64(7)}}, op)

	op, err = ParseOperation(ToolQueryItems, map[string]any{"query": "SELECT * FROM c"})
	require.NoError(t, err)
	require.Equal(t, QueryItems{Query: "SELECT * FROM c", MaxItemCount: cosmos.DefaultMaxItemCount}, op)

	op, err = ParseOperation(ToolUpsertItem, map[string]any{"item": map[string]any{"id": "n1", "pk": "a"}})
	require.NoError(t, err)
	require.Equal(t, UpsertItem{Item: cosmos.Document{"id": "n1", "pk": "a"}}, op)

	op, err = ParseOperation(ToolPatchItem, map[string]any{
		"id":           "n1",
		"partitionKey": nil,
		"operations": []any{
			map[string]any{"op": "Set", "path": "/a", "value": 1},
			map[string]any{"op": "remove", "path": "/b", "value": "ignored"},
			map[string]any{"op": "incr", "path": "/c", "value": json.Number("2")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, PatchItem{
		ID:           "n1",
		PartitionKey: nil,
		Operations: []cosmos.PatchOperation{
			{Op: cosmos.PatchSet, Path: "/a", Value: 1},
			{Op: cosmos.PatchRemove, Path: "/b"},
			{Op: cosmos.PatchIncr, Path: "/c", Value: json.Number("2")},
		},
	}, op)

	op, err = ParseOperation(ToolDeleteItem, map[string]any{"id": "n1", "partitionKey": true})
	require.NoError(t, err)
	require.Equal(t, ToolDeleteItem, op.Tool())
}

func TestParseOperationIgnoresExtraArguments(t *testing.T) {
	op, err := ParseOperation(ToolGetItem, map[string]any{"id": "n1", "partitionKey": "a", "verbose": true})
	require.NoError(t, err)
	require.Equal(t, GetItem{ID: "n1", PartitionKey: "a"}, op)
}

func TestParseQueryOptions(t *testing.T) {
	op, err := ParseOperation(ToolQueryItems, map[string]any{
		"query":        "SELECT * FROM c WHERE c.kind = @kind",
		"parameters":   []any{map[string]any{"name": "@kind", "value": nil}},
		"maxItemCount": json.Number("1000"),
	})
	require.NoError(t, err)
	require.Equal(t, QueryItems{
		Query:        "SELECT * FROM c WHERE c.kind = @kind",
		Parameters:   []cosmos.QueryParameter{{Name: "@kind", Value: nil}},
		MaxItemCount: 1000,
	}, op)
}

func TestParseOperationRejectsBadArguments(t *testing.T) {
	tests := []struct {
		name    string
		tool    string
		args    map[string]any
		message string
	}{
		{name: "numeric id", tool: ToolGetItem, args: map[string]any{"id": 4, "partitionKey": "a"}, message: "id must be a non-empty string"},
		{name: "blank id", tool: ToolDeleteItem, args: map[string]any{"id": " ", "partitionKey": "a"}, message: "id must be a non-empty string"},
		{name: "object partition key", tool: ToolGetItem, args: map[string]any{"id": "1", "partitionKey": map[string]any{}}, message: "partitionKey: unsupported partition key type map[string]interface {}"},
		{name: "blank query", tool: ToolQueryItems, args: map[string]any{"query": ""}, message: "query must be a non-empty string"},
		{name: "page size too large", tool: ToolQueryItems, args: map[string]any{"query": "SELECT 1", "maxItemCount": 1001}, message: "maxItemCount must be an integer between 1 and 1000"},
		{name: "page size zero", tool: ToolQueryItems, args: map[string]any{"query": "SELECT 1", "maxItemCount": 0}, message: "maxItemCount must be an integer between 1 and 1000"},
		{name: "fractional page size", tool: ToolQueryItems, args: map[string]any{"query": "SELECT 1", "maxItemCount": 2.5}, message: "maxItemCount must be an integer between 1 and 1000"},
		{name: "string page size", tool: ToolQueryItems, args: map[string]any{"query": "SELECT 1", "maxItemCount": "10"}, message: "maxItemCount must be an integer between 1 and 1000"},
		{name: "parameters not array", tool: ToolQueryItems, args: map[string]any{"query": "SELECT 1", "parameters": "x"}, message: "parameters must be an array"},
		{name: "parameter without name", tool: ToolQueryItems, args: map[string]any{"query": "SELECT 1", "parameters": []any{map[string]any{"value": 1}}}, message: "parameters[0].name must be a non-empty string"},
		{name: "parameter without value", tool: ToolQueryItems, args: map[string]any{"query": "SELECT 1", "parameters": []any{map[string]any{"name": "@a"}}}, message: "parameters[0].value is required"},
		{name: "item not object", tool: ToolUpsertItem, args: map[string]any{"item": []any{}}, message: "item must be a JSON object"},
		{name: "item without id", tool: ToolUpsertItem, args: map[string]any{"item": map[string]any{"pk": "a"}}, message: "item.id must be a non-empty string"},
		{name: "empty operations", tool: ToolPatchItem, args: map[string]any{"id": "1", "partitionKey": "a", "operations": []any{}}, message: "operations must contain at least one operation"},
		{name: "operations not array", tool: ToolPatchItem, args: map[string]any{"id": "1", "partitionKey": "a", "operations": map[string]any{}}, message: "operations must be an array"},
		{name: "unknown op", tool: ToolPatchItem, args: map[string]any{"id": "1", "partitionKey": "a", "operations": []any{map[string]any{"op": "move", "path": "/a"}}}, message: "operations[0].op must be one of add, replace, remove, set, incr"},
		{name: "missing path", tool: ToolPatchItem, args: map[string]any{"id": "1", "partitionKey": "a", "operations": []any{map[string]any{"op": "set", "value": 1}}}, message: "operations[0].path must be a non-empty string"},
		{name: "missing value", tool: ToolPatchItem, args: map[string]any{"id": "1", "partitionKey": "a", "operations": []any{map[string]any{"op": "replace", "path": "/a"}}}, message: "operations[0].value is required for replace"},
		{name: "fractional incr", tool: ToolPatchItem, args: map[string]any{"id": "1", "partitionKey": "a", "operations": []any{map[string]any{"op": "incr", "path": "/a", "value": 1.5}}}, message: "operations[0].value must be an integer for incr"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseOperation(tc.tool, tc.args)
			toolErr := requireKind(t, err, KindBadRequest)
			require.Equal(t, tc.message, toolErr.Message())
		})
	}
}

func TestParseOperationReportsFirstMissingFieldInCatalogOrder(t *testing.T) {
	_, err := ParseOperation(ToolPatchItem, map[string]any{"operations": []any{}})
	toolErr := requireKind(t, err, KindBadRequest)
	require.Equal(t, "missing required parameter: id", toolErr.Message())

	_, err = ParseOperation(ToolPatchItem, map[string]any{"id": "1"})
	toolErr = requireKind(t, err, KindBadRequest)
	require.Equal(t, "missing required parameter: partitionKey", toolErr.Message())
}
