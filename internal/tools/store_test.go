package tools

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"git.cscs.ch/openchami/chamicore-cosmos/internal/cosmos"
)

// memoryStore is an in-memory Store keyed by id and the "pk" field.
type memoryStore struct {
	mu    sync.Mutex
	order []string
	docs  map[string]cosmos.Document
	calls int

	queryErr error
}

func newMemoryStore(docs ...cosmos.Document) *memoryStore {
	s := &memoryStore{docs: map[string]cosmos.Document{}}
	for _, doc := range docs {
		s.put(doc)
	}
	return s
}

func notFound() error {
	return &azcore.ResponseError{StatusCode: http.StatusNotFound, ErrorCode: "NotFound"}
}

func storeKey(id string, pk any) string {
	return fmt.Sprintf("%s|%v", id, pk)
}

func (s *memoryStore) put(doc cosmos.Document) cosmos.Document {
	stored := cosmos.Document{}
	for k, v := range doc {
		stored[k] = v
	}
	key := storeKey(doc["id"].(string), doc["pk"])
	stored["_etag"] = "etag-" + key
	if _, exists := s.docs[key]; !exists {
		s.order = append(s.order, key)
	}
	s.docs[key] = stored
	return stored
}

func (s *memoryStore) Read(_ context.Context, id string, pk any) (cosmos.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	doc, ok := s.docs[storeKey(id, pk)]
	if !ok {
		return nil, fmt.Errorf("reading item %s: %w", id, notFound())
	}
	return doc, nil
}

func (s *memoryStore) Query(_ context.Context, req cosmos.QueryRequest) (cosmos.QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.queryErr != nil {
		return cosmos.QueryResult{}, s.queryErr
	}
	items := make([]cosmos.Document, 0)
	for _, key := range s.order {
		doc, ok := s.docs[key]
		if !ok {
			continue
		}
		match := true
		for _, p := range req.Parameters {
			if doc[strings.TrimPrefix(p.Name, "@")] != p.Value {
				match = false
			}
		}
		if match {
			items = append(items, doc)
		}
	}
	return cosmos.QueryResult{Count: len(items), Items: items}, nil
}

func (s *memoryStore) Upsert(_ context.Context, item cosmos.Document) (cosmos.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if _, ok := item["pk"]; !ok {
		return nil, fmt.Errorf("%w: item is missing partition key field /pk", cosmos.ErrInvalidInput)
	}
	return s.put(item), nil
}

func (s *memoryStore) Patch(_ context.Context, id string, pk any, ops []cosmos.PatchOperation) (cosmos.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	doc, ok := s.docs[storeKey(id, pk)]
	if !ok {
		return nil, fmt.Errorf("patching item %s: %w", id, notFound())
	}
	for _, op := range ops {
		field := strings.TrimPrefix(op.Path, "/")
		switch op.Op {
		case cosmos.PatchRemove:
			delete(doc, field)
		case cosmos.PatchIncr:
			delta, _ := cosmos.IncrementDelta(op.Value)
			current, _ := doc[field].(int64)
			doc[field] = current + delta
		default:
			doc[field] = op.Value
		}
	}
	return doc, nil
}

func (s *memoryStore) Delete(_ context.Context, id string, pk any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	key := storeKey(id, pk)
	if _, ok := s.docs[key]; !ok {
		return nil, fmt.Errorf("deleting item %s: %w", id, notFound())
	}
	delete(s.docs, key)
	return map[string]any{"deleted": true, "id": id}, nil
}

func (s *memoryStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
