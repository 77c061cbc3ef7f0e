package server

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"git.cscs.ch/openchami/chamicore-cosmos/internal/tools"
)

const (
	defaultProtocolVersion = "2024-11-05"
	defaultServerName      = "chamicore-cosmos"
	contractAPIVersion     = "cosmos/v1"
	contractVersion        = "1.0"
)

// ToolSpec represents a single tool contract entry.
type ToolSpec struct {
	Name        string         `yaml:"name" json:"name"`
	Capability  string         `yaml:"capability" json:"capability"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	InputSchema map[string]any `yaml:"inputSchema,omitempty" json:"inputSchema,omitempty"`
}

type toolContract struct {
	Version    string     `yaml:"version"`
	Service    string     `yaml:"service"`
	APIVersion string     `yaml:"apiVersion"`
	Tools      []ToolSpec `yaml:"tools"`
}

// ToolRegistry provides read-only access to parsed tools.
type ToolRegistry struct {
	contract toolContract
	byName   map[string]ToolSpec
}

// ContractYAML renders the operation catalog as a tool contract document.
func ContractYAML(descriptors []tools.Descriptor) ([]byte, error) {
	contract := toolContract{
		Version:    contractVersion,
		Service:    defaultServerName,
		APIVersion: contractAPIVersion,
		Tools:      make([]ToolSpec, 0, len(descriptors)),
	}
	for _, d := range descriptors {
		contract.Tools = append(contract.Tools, ToolSpec{
			Name:        d.Name,
			Capability:  string(d.Capability),
			Description: d.Description,
			InputSchema: d.InputSchema(),
		})
	}
	encoded, err := yaml.Marshal(contract)
	if err != nil {
		return nil, fmt.Errorf("encoding tool contract: %w", err)
	}
	return encoded, nil
}

// CatalogRegistry builds the registry and its YAML contract from the
// operation catalog.
func CatalogRegistry() (*ToolRegistry, []byte, error) {
	contract, err := ContractYAML(tools.Catalog())
	if err != nil {
		return nil, nil, err
	}
	registry, err := NewToolRegistry(contract)
	if err != nil {
		return nil, nil, err
	}
	return registry, contract, nil
}

// NewToolRegistry parses tools contract YAML and validates minimal invariants.
func NewToolRegistry(contractYAML []byte) (*ToolRegistry, error) {
	var parsed toolContract
	if err := yaml.Unmarshal(contractYAML, &parsed); err != nil {
		return nil, fmt.Errorf("decoding tool contract: %w", err)
	}
	if len(parsed.Tools) == 0 {
		return nil, fmt.Errorf("tool contract has no tools")
	}

	byName := make(map[string]ToolSpec, len(parsed.Tools))
	for i, tool := range parsed.Tools {
		name := strings.TrimSpace(tool.Name)
		if name == "" {
			return nil, fmt.Errorf("tool contract contains empty tool name")
		}
		if _, exists := byName[name]; exists {
			return nil, fmt.Errorf("tool contract contains duplicate tool %q", name)
		}
		tool.Name = name
		tool.Capability = strings.TrimSpace(tool.Capability)
		if tool.Capability == "" {
			return nil, fmt.Errorf("tool %q has empty capability", name)
		}
		parsed.Tools[i] = tool
		byName[name] = tool
	}

	return &ToolRegistry{
		contract: parsed,
		byName:   byName,
	}, nil
}

// List returns all registered tools in contract order.
func (r *ToolRegistry) List() []ToolSpec {
	items := make([]ToolSpec, 0, len(r.contract.Tools))
	items = append(items, r.contract.Tools...)
	return items
}

// Lookup returns a tool by name.
func (r *ToolRegistry) Lookup(name string) (ToolSpec, bool) {
	tool, ok := r.byName[strings.TrimSpace(name)]
	return tool, ok
}

func (r *ToolRegistry) descriptors() []toolDescriptor {
	items := make([]toolDescriptor, 0, len(r.contract.Tools))
	for _, tool := range r.contract.Tools {
		items = append(items, toolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
	}
	return items
}
