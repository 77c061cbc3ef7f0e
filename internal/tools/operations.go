package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"git.cscs.ch/openchami/chamicore-cosmos/internal/cosmos"
)

// Operation is one validated request for the store. The set of
// implementations is closed: GetItem, QueryItems, UpsertItem, PatchItem and
// DeleteItem.
type Operation interface {
	Tool() string
	operation()
}

// GetItem reads one document.
type GetItem struct {
	ID           string
	PartitionKey any
}

// QueryItems runs a cross-partition query.
type QueryItems struct {
	Query        string
	Parameters   []cosmos.QueryParameter
	MaxItemCount int
}

// UpsertItem creates or replaces one document.
type UpsertItem struct {
	Item cosmos.Document
}

// PatchItem applies ordered partial updates to one document.
type PatchItem struct {
	ID           string
	PartitionKey any
	Operations   []cosmos.PatchOperation
}

// DeleteItem removes one document.
type DeleteItem struct {
	ID           string
	PartitionKey any
}

func (GetItem) Tool() string    { return ToolGetItem }
func (QueryItems) Tool() string { return ToolQueryItems }
func (UpsertItem) Tool() string { return ToolUpsertItem }
func (PatchItem) Tool() string  { return ToolPatchItem }
func (DeleteItem) Tool() string { return ToolDeleteItem }

func (GetItem) operation()    {}
func (QueryItems) operation() {}
func (UpsertItem) operation() {}
func (PatchItem) operation()  {}
func (DeleteItem) operation() {}

// ParseOperation validates args against the named catalog entry. Required
// arguments are checked in catalog order and arguments the tool does not
// declare are ignored.
func ParseOperation(name string, args map[string]any) (Operation, error) {
	name = strings.TrimSpace(name)
	desc, ok := Lookup(name)
	if !ok {
		return nil, validationErrorf("unknown tool: %s", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	for _, field := range desc.Required() {
		if _, ok := args[field]; !ok {
			return nil, validationErrorf("missing required parameter: %s", field)
		}
	}

	switch desc.Name {
	case ToolGetItem:
		id, pk, err := parseKey(args)
		if err != nil {
			return nil, err
		}
		return GetItem{ID: id, PartitionKey: pk}, nil

	case ToolQueryItems:
		return parseQuery(args)

	case ToolUpsertItem:
		item, ok := args["item"].(map[string]any)
		if !ok {
			return nil, validationErrorf("item must be a JSON object")
		}
		if id, ok := item["id"].(string); !ok || strings.TrimSpace(id) == "" {
			return nil, validationErrorf("item.id must be a non-empty string")
		}
		return UpsertItem{Item: item}, nil

	case ToolPatchItem:
		id, pk, err := parseKey(args)
		if err != nil {
			return nil, err
		}
		ops, err := parsePatchOperations(args["operations"])
		if err != nil {
			return nil, err
		}
		return PatchItem{ID: id, PartitionKey: pk, Operations: ops}, nil

	case ToolDeleteItem:
		id, pk, err := parseKey(args)
		if err != nil {
			return nil, err
		}
		return DeleteItem{ID: id, PartitionKey: pk}, nil

	default:
		return nil, validationErrorf("unknown tool: %s", name)
	}
}

func parseKey(args map[string]any) (string, any, error) {
	id, ok := args["id"].(string)
	if !ok || strings.TrimSpace(id) == "" {
		return "", nil, validationErrorf("id must be a non-empty string")
	}
	pk := args["partitionKey"]
	if _, err := cosmos.PartitionKeyOf(pk); err != nil {
		return "", nil, Normalize(fmt.Errorf("partitionKey: %w", err))
	}
	return id, pk, nil
}

func parseQuery(args map[string]any) (Operation, error) {
	text, ok := args["query"].(string)
	if !ok || strings.TrimSpace(text) == "" {
		return nil, validationErrorf("query must be a non-empty string")
	}

	op := QueryItems{Query: text, MaxItemCount: cosmos.DefaultMaxItemCount}

	if raw, ok := args["maxItemCount"]; ok && raw != nil {
		n, ok := integerValue(raw)
		if !ok || n < cosmos.MinMaxItemCount || n > cosmos.MaxMaxItemCount {
			return nil, validationErrorf("maxItemCount must be an integer between %d and %d", cosmos.MinMaxItemCount, cosmos.MaxMaxItemCount)
		}
		op.MaxItemCount = int(n)
	}

	if raw, ok := args["parameters"]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, validationErrorf("parameters must be an array")
		}
		op.Parameters = make([]cosmos.QueryParameter, 0, len(list))
		for i, entry := range list {
			obj, ok := entry.(map[string]any)
			if !ok {
				return nil, validationErrorf("parameters[%d] must be an object", i)
			}
			pname, ok := obj["name"].(string)
			if !ok || strings.TrimSpace(pname) == "" {
				return nil, validationErrorf("parameters[%d].name must be a non-empty string", i)
			}
			value, ok := obj["value"]
			if !ok {
				return nil, validationErrorf("parameters[%d].value is required", i)
			}
			op.Parameters = append(op.Parameters, cosmos.QueryParameter{Name: pname, Value: value})
		}
	}

	return op, nil
}

func parsePatchOperations(raw any) ([]cosmos.PatchOperation, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, validationErrorf("operations must be an array")
	}
	if len(list) == 0 {
		return nil, validationErrorf("operations must contain at least one operation")
	}

	ops := make([]cosmos.PatchOperation, 0, len(list))
	for i, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			return nil, validationErrorf("operations[%d] must be an object", i)
		}
		opName, _ := obj["op"].(string)
		op := cosmos.PatchOp(strings.ToLower(strings.TrimSpace(opName)))
		if !op.Valid() {
			return nil, validationErrorf("operations[%d].op must be one of add, replace, remove, set, incr", i)
		}
		path, ok := obj["path"].(string)
		if !ok || strings.TrimSpace(path) == "" {
			return nil, validationErrorf("operations[%d].path must be a non-empty string", i)
		}
		value, hasValue := obj["value"]
		if op.NeedsValue() && !hasValue {
			return nil, validationErrorf("operations[%d].value is required for %s", i, op)
		}
		if op == cosmos.PatchIncr {
			if _, err := cosmos.IncrementDelta(value); err != nil {
				return nil, validationErrorf("operations[%d].value must be an integer for incr", i)
			}
		}
		if !op.NeedsValue() {
			value = nil
		}
		ops = append(ops, cosmos.PatchOperation{Op: op, Path: path, Value: value})
	}
	return ops, nil
}

func integerValue(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
