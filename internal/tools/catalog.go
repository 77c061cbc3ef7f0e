package tools

import (
	"strings"

	"git.cscs.ch/openchami/chamicore-cosmos/internal/cosmos"
)

// Tool names exposed on every front end.
const (
	ToolGetItem    = "cosmos_get_item"
	ToolQueryItems = "cosmos_query_items"
	ToolUpsertItem = "cosmos_upsert_item"
	ToolPatchItem  = "cosmos_patch_item"
	ToolDeleteItem = "cosmos_delete_item"
)

// Capability classifies whether a tool mutates the store.
type Capability string

const (
	CapabilityRead  Capability = "read"
	CapabilityWrite Capability = "write"
)

// ArgType is the JSON type accepted for one argument.
type ArgType string

const (
	ArgString  ArgType = "string"
	ArgInteger ArgType = "integer"
	ArgObject  ArgType = "object"
	ArgArray   ArgType = "array"
	// ArgAny accepts any JSON value, including null.
	ArgAny ArgType = "any"
)

// Argument describes one named tool argument.
type Argument struct {
	Name        string
	Type        ArgType
	Required    bool
	Description string
	Enum        []string
	Minimum     int
	Maximum     int
	Default     any
	// Items lists the properties of each element when Type is ArgArray.
	Items []Argument
}

// Descriptor is one entry of the operation catalog.
type Descriptor struct {
	Name        string
	Capability  Capability
	Description string
	Arguments   []Argument
}

var patchOps = []string{
	string(cosmos.PatchAdd),
	string(cosmos.PatchReplace),
	string(cosmos.PatchRemove),
	string(cosmos.PatchSet),
	string(cosmos.PatchIncr),
}

var catalog = []Descriptor{
	{
		Name:        ToolGetItem,
		Capability:  CapabilityRead,
		Description: "Read a document by id and partition key.",
		Arguments: []Argument{
			{Name: "id", Type: ArgString, Required: true, Description: "Document id."},
			{Name: "partitionKey", Type: ArgAny, Required: true, Description: "Partition key value of the document."},
		},
	},
	{
		Name:        ToolQueryItems,
		Capability:  CapabilityRead,
		Description: "Run a SQL query across all partitions and return every matching document.",
		Arguments: []Argument{
			{Name: "query", Type: ArgString, Required: true, Description: "Cosmos DB SQL query text."},
			{
				Name:        "parameters",
				Type:        ArgArray,
				Description: "Named query parameters such as @status.",
				Items: []Argument{
					{Name: "name", Type: ArgString, Required: true},
					{Name: "value", Type: ArgAny, Required: true},
				},
			},
			{
				Name:        "maxItemCount",
				Type:        ArgInteger,
				Description: "Page size hint used while draining the query.",
				Minimum:     cosmos.MinMaxItemCount,
				Maximum:     cosmos.MaxMaxItemCount,
				Default:     cosmos.DefaultMaxItemCount,
			},
		},
	},
	{
		Name:        ToolUpsertItem,
		Capability:  CapabilityWrite,
		Description: "Create or replace a document. The document must include id and its partition key field.",
		Arguments: []Argument{
			{Name: "item", Type: ArgObject, Required: true, Description: "Full document body."},
		},
	},
	{
		Name:        ToolPatchItem,
		Capability:  CapabilityWrite,
		Description: "Apply partial update operations to a document atomically.",
		Arguments: []Argument{
			{Name: "id", Type: ArgString, Required: true, Description: "Document id."},
			{Name: "partitionKey", Type: ArgAny, Required: true, Description: "Partition key value of the document."},
			{
				Name:        "operations",
				Type:        ArgArray,
				Required:    true,
				Description: "Ordered patch operations.",
				Items: []Argument{
					{Name: "op", Type: ArgString, Required: true, Enum: patchOps},
					{Name: "path", Type: ArgString, Required: true, Description: "JSON pointer, e.g. /status."},
					{Name: "value", Type: ArgAny, Description: "Required for every op except remove."},
				},
			},
		},
	},
	{
		Name:        ToolDeleteItem,
		Capability:  CapabilityWrite,
		Description: "Delete a document by id and partition key.",
		Arguments: []Argument{
			{Name: "id", Type: ArgString, Required: true, Description: "Document id."},
			{Name: "partitionKey", Type: ArgAny, Required: true, Description: "Partition key value of the document."},
		},
	},
}

// Catalog returns a copy of every descriptor in declaration order.
func Catalog() []Descriptor {
	out := make([]Descriptor, 0, len(catalog))
	for _, d := range catalog {
		out = append(out, d.clone())
	}
	return out
}

// Lookup finds a descriptor by name.
func Lookup(name string) (Descriptor, bool) {
	name = strings.TrimSpace(name)
	for _, d := range catalog {
		if d.Name == name {
			return d.clone(), true
		}
	}
	return Descriptor{}, false
}

// Required returns the names of required arguments in declaration order.
func (d Descriptor) Required() []string {
	var names []string
	for _, arg := range d.Arguments {
		if arg.Required {
			names = append(names, arg.Name)
		}
	}
	return names
}

// InputSchema renders the arguments as a JSON schema object.
func (d Descriptor) InputSchema() map[string]any {
	return objectSchema(d.Arguments)
}

// JSONSchema renders a single argument as a JSON schema.
func (a Argument) JSONSchema() map[string]any {
	schema := map[string]any{}
	switch a.Type {
	case ArgAny, "":
	case ArgArray:
		schema["type"] = string(ArgArray)
		if len(a.Items) > 0 {
			schema["items"] = objectSchema(a.Items)
		}
	default:
		schema["type"] = string(a.Type)
	}
	if a.Description != "" {
		schema["description"] = a.Description
	}
	if len(a.Enum) > 0 {
		enum := make([]any, 0, len(a.Enum))
		for _, v := range a.Enum {
			enum = append(enum, v)
		}
		schema["enum"] = enum
	}
	if a.Type == ArgInteger && a.Maximum > 0 {
		schema["minimum"] = a.Minimum
		schema["maximum"] = a.Maximum
	}
	if a.Default != nil {
		schema["default"] = a.Default
	}
	return schema
}

func objectSchema(args []Argument) map[string]any {
	properties := make(map[string]any, len(args))
	required := make([]any, 0, len(args))
	for _, arg := range args {
		properties[arg.Name] = arg.JSONSchema()
		if arg.Required {
			required = append(required, arg.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func (d Descriptor) clone() Descriptor {
	d.Arguments = cloneArguments(d.Arguments)
	return d
}

func cloneArguments(args []Argument) []Argument {
	if args == nil {
		return nil
	}
	out := make([]Argument, len(args))
	for i, arg := range args {
		arg.Enum = append([]string(nil), arg.Enum...)
		arg.Items = cloneArguments(arg.Items)
		out[i] = arg
	}
	return out
}
