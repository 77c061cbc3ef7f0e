package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

const (
	openAPIVersion = "3.0.3"
	openAPITitle   = "CosmosDB Tools API"
	functionKey    = "FunctionKey"
)

// BuildOpenAPI renders the tool-invocation API as a validated OpenAPI 3.0
// document. serverURL becomes servers[0].url, typically "<base>/api".
func BuildOpenAPI(registry *ToolRegistry, serverURL, version string) (*openapi3.T, error) {
	if registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	version = strings.TrimSpace(version)
	if version == "" {
		version = "dev"
	}

	security := []any{map[string]any{functionKey: []any{}}}
	errorContent := map[string]any{
		"application/json": map[string]any{
			"schema": map[string]any{"$ref": "#/components/schemas/Error"},
		},
	}

	paths := map[string]any{
		"/health": map[string]any{
			"get": map[string]any{
				"operationId": "getHealth",
				"summary":     "API health",
				"responses": map[string]any{
					"200": map[string]any{
						"description": "Service metadata",
						"content": map[string]any{
							"application/json": map[string]any{
								"example": map[string]any{
									"name":    defaultServerName,
									"version": version,
									"status":  "ok",
								},
							},
						},
					},
				},
			},
		},
		"/tools": map[string]any{
			"get": map[string]any{
				"operationId": "listTools",
				"summary":     "List available tools",
				"security":    security,
				"responses": map[string]any{
					"200": map[string]any{
						"description": "Tool catalog",
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{
									"type": "object",
									"properties": map[string]any{
										"tools": map[string]any{
											"type":  "array",
											"items": map[string]any{"type": "object"},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}

	for _, tool := range registry.List() {
		summary := strings.TrimSpace(tool.Description)
		if summary == "" {
			summary = "Execute " + tool.Name
		}
		schema := tool.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		paths["/tools/"+tool.Name] = map[string]any{
			"post": map[string]any{
				"operationId": "execute_" + tool.Name,
				"summary":     summary,
				"security":    security,
				"requestBody": map[string]any{
					"required": true,
					"content": map[string]any{
						"application/json": map[string]any{"schema": schema},
					},
				},
				"responses": map[string]any{
					"200": map[string]any{"description": "Tool result"},
					"400": map[string]any{"description": "Invalid request payload", "content": errorContent},
					"404": map[string]any{"description": "Resource not found", "content": errorContent},
					"500": map[string]any{"description": "Server error", "content": errorContent},
				},
			},
		}
	}

	raw := map[string]any{
		"openapi": openAPIVersion,
		"info": map[string]any{
			"title":       openAPITitle,
			"version":     version,
			"description": "HTTP endpoints that expose the Cosmos DB tools directly.",
		},
		"servers": []any{map[string]any{"url": strings.TrimSpace(serverURL)}},
		"paths":   paths,
		"components": map[string]any{
			"schemas": map[string]any{
				"Error": map[string]any{
					"type":     "object",
					"required": []any{"error"},
					"properties": map[string]any{
						"error":   map[string]any{"type": "string"},
						"details": map[string]any{"type": "string"},
					},
				},
			},
			"securitySchemes": map[string]any{
				functionKey: map[string]any{
					"type":        "apiKey",
					"in":          "header",
					"name":        "x-functions-key",
					"description": "Azure Functions key for function-level endpoints.",
				},
			},
		},
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encoding openapi document: %w", err)
	}
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(encoded)
	if err != nil {
		return nil, fmt.Errorf("loading openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validating openapi document: %w", err)
	}
	return doc, nil
}
