package cosmos

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
)

const (
	// DefaultMaxItemCount is the page size requested when none is supplied.
	DefaultMaxItemCount = 50
	// MinMaxItemCount and MaxMaxItemCount bound a caller-supplied page size.
	MinMaxItemCount = 1
	MaxMaxItemCount = 1000
)

// QueryParameter is one named substitution of a parameterized query.
type QueryParameter struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// QueryRequest describes one cross-partition query.
type QueryRequest struct {
	Text         string
	Parameters   []QueryParameter
	MaxItemCount int
}

// QueryResult holds every document returned by the query, in store order.
type QueryResult struct {
	Count int        `json:"count"`
	Items []Document `json:"items"`
}

// Query runs req across all partitions. Every page is drained before
// returning so callers never observe a partial result.
func (c *Connector) Query(ctx context.Context, req QueryRequest) (QueryResult, error) {
	pageSize := req.MaxItemCount
	if pageSize == 0 {
		pageSize = DefaultMaxItemCount
	}
	if pageSize < MinMaxItemCount || pageSize > MaxMaxItemCount {
		return QueryResult{}, invalidf("maxItemCount must be between %d and %d", MinMaxItemCount, MaxMaxItemCount)
	}

	params := make([]azcosmos.QueryParameter, 0, len(req.Parameters))
	for _, p := range req.Parameters {
		params = append(params, azcosmos.QueryParameter{Name: p.Name, Value: p.Value})
	}

	pager := c.items.NewQueryItemsPager(req.Text, azcosmos.NewPartitionKey(), &azcosmos.QueryOptions{
		PageSizeHint:    int32(pageSize),
		QueryParameters: params,
	})

	items := make([]Document, 0)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return QueryResult{}, fmt.Errorf("querying items: %w", err)
		}
		for _, raw := range page.Items {
			doc, err := decodeDocument(raw)
			if err != nil {
				return QueryResult{}, err
			}
			items = append(items, doc)
		}
	}

	return QueryResult{Count: len(items), Items: items}, nil
}
