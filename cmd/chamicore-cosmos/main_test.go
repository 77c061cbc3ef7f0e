package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	root := newRootCommand()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

func TestToolsCommandPrintsContract(t *testing.T) {
	out := runCommand(t, "tools")
	require.Contains(t, out, "service: chamicore-cosmos")
	require.Contains(t, out, "name: cosmos_get_item")
	require.Contains(t, out, "name: cosmos_delete_item")
}

func TestOpenAPICommandPrintsValidDocument(t *testing.T) {
	out := runCommand(t, "openapi", "--server-url", "https://func.example.test/api")

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Equal(t, "3.0.3", doc["openapi"])
	servers := doc["servers"].([]any)
	require.Equal(t, "https://func.example.test/api", servers[0].(map[string]any)["url"])
	paths := doc["paths"].(map[string]any)
	require.Contains(t, paths, "/tools/cosmos_query_items")
}

func TestVersionCommand(t *testing.T) {
	require.Contains(t, runCommand(t, "version"), "chamicore-cosmos dev")
}
