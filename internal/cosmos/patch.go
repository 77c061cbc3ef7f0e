package cosmos

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
)

// PatchOp is one of the partial document update kinds the store supports.
type PatchOp string

const (
	PatchAdd     PatchOp = "add"
	PatchReplace PatchOp = "replace"
	PatchRemove  PatchOp = "remove"
	PatchSet     PatchOp = "set"
	PatchIncr    PatchOp = "incr"
)

// PatchOperation is one step of a patch. Value is ignored for remove.
type PatchOperation struct {
	Op    PatchOp `json:"op"`
	Path  string  `json:"path"`
	Value any     `json:"value,omitempty"`
}

// NeedsValue reports whether op requires a value.
func (op PatchOp) NeedsValue() bool {
	return op != PatchRemove
}

// Valid reports whether op is a known patch kind.
func (op PatchOp) Valid() bool {
	switch op {
	case PatchAdd, PatchReplace, PatchRemove, PatchSet, PatchIncr:
		return true
	default:
		return false
	}
}

// buildPatch keeps the caller's order; the store applies the operations in
// sequence within a single transaction.
func buildPatch(ops []PatchOperation) (azcosmos.PatchOperations, error) {
	patch := azcosmos.PatchOperations{}
	for i, op := range ops {
		switch op.Op {
		case PatchAdd:
			patch.AppendAdd(op.Path, op.Value)
		case PatchReplace:
			patch.AppendReplace(op.Path, op.Value)
		case PatchRemove:
			patch.AppendRemove(op.Path)
		case PatchSet:
			patch.AppendSet(op.Path, op.Value)
		case PatchIncr:
			delta, err := IncrementDelta(op.Value)
			if err != nil {
				return azcosmos.PatchOperations{}, fmt.Errorf("operation %d: %w", i, err)
			}
			patch.AppendIncrement(op.Path, delta)
		default:
			return azcosmos.PatchOperations{}, invalidf("operation %d: unsupported patch op %q", i, op.Op)
		}
	}
	return patch, nil
}

// IncrementDelta converts an incr value to the integer delta the store expects.
func IncrementDelta(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, invalidf("incr value must be an integer")
		}
		return int64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, invalidf("incr value must be an integer")
		}
		return n, nil
	default:
		return 0, invalidf("incr value must be an integer")
	}
}
