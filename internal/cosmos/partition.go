package cosmos

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
)

// PartitionKeyOf converts a JSON partition key value into an azcosmos key.
// Scalars map to single-level keys; arrays of scalars map to hierarchical keys.
func PartitionKeyOf(value any) (azcosmos.PartitionKey, error) {
	if values, ok := value.([]any); ok {
		if len(values) == 0 {
			return azcosmos.PartitionKey{}, invalidf("partition key must not be an empty array")
		}
		pk := azcosmos.NewPartitionKey()
		for i, v := range values {
			next, err := appendComponent(pk, v)
			if err != nil {
				return azcosmos.PartitionKey{}, fmt.Errorf("partition key component %d: %w", i, err)
			}
			pk = next
		}
		return pk, nil
	}
	return appendComponent(azcosmos.NewPartitionKey(), value)
}

func appendComponent(pk azcosmos.PartitionKey, value any) (azcosmos.PartitionKey, error) {
	switch v := value.(type) {
	case nil:
		return pk.AppendNull(), nil
	case string:
		return pk.AppendString(v), nil
	case bool:
		return pk.AppendBool(v), nil
	case float64:
		return pk.AppendNumber(v), nil
	case float32:
		return pk.AppendNumber(float64(v)), nil
	case int:
		return pk.AppendNumber(float64(v)), nil
	case int64:
		return pk.AppendNumber(float64(v)), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return azcosmos.PartitionKey{}, invalidf("invalid numeric partition key %q", v.String())
		}
		return pk.AppendNumber(f), nil
	default:
		return azcosmos.PartitionKey{}, invalidf("unsupported partition key type %T", value)
	}
}

// PartitionKeyFromDocument resolves the partition key of item from the
// container's partition key paths ("/tenantId", "/address/zip", ...).
func PartitionKeyFromDocument(item Document, paths []string) (azcosmos.PartitionKey, error) {
	if len(paths) == 0 {
		return azcosmos.PartitionKey{}, fmt.Errorf("no partition key paths configured")
	}
	pk := azcosmos.NewPartitionKey()
	for _, path := range paths {
		value, ok := lookupPath(item, path)
		if !ok {
			return azcosmos.PartitionKey{}, invalidf("item is missing partition key field %s", path)
		}
		next, err := appendComponent(pk, value)
		if err != nil {
			return azcosmos.PartitionKey{}, fmt.Errorf("partition key field %s: %w", path, err)
		}
		pk = next
	}
	return pk, nil
}

func lookupPath(doc map[string]any, path string) (any, bool) {
	segments := strings.Split(strings.Trim(strings.TrimSpace(path), "/"), "/")
	var current any = doc
	for _, segment := range segments {
		if segment == "" {
			return nil, false
		}
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// ParsePartitionKeyPaths splits a comma separated list of partition key paths.
func ParsePartitionKeyPaths(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	paths := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, "/") {
			part = "/" + part
		}
		paths = append(paths, part)
	}
	return paths
}
