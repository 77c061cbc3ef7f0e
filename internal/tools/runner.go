// Package tools provides the Cosmos DB operation catalog and the dispatcher
// that validates tool arguments and executes them against the store.
package tools

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"git.cscs.ch/openchami/chamicore-cosmos/internal/cosmos"
)

const (
	tracerName = "git.cscs.ch/openchami/chamicore-cosmos/internal/tools"

	// OutcomeOK labels successful calls in metrics.
	OutcomeOK = "ok"

	unknownTool = "unknown"
)

// Store is the set of primitive item operations the runner depends on.
// *cosmos.Connector satisfies it.
type Store interface {
	Read(ctx context.Context, id string, partitionKey any) (cosmos.Document, error)
	Query(ctx context.Context, req cosmos.QueryRequest) (cosmos.QueryResult, error)
	Upsert(ctx context.Context, item cosmos.Document) (cosmos.Document, error)
	Patch(ctx context.Context, id string, partitionKey any, ops []cosmos.PatchOperation) (cosmos.Document, error)
	Delete(ctx context.Context, id string, partitionKey any) (map[string]any, error)
}

// Observer receives one observation per completed call.
type Observer interface {
	ObserveOperation(tool, outcome string, elapsed time.Duration)
}

// Option customizes a Runner.
type Option func(*Runner)

// WithObserver records call outcomes, typically into Prometheus.
func WithObserver(observer Observer) Option {
	return func(r *Runner) {
		r.observer = observer
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// Runner executes tool calls. It holds no per-call state and is safe for
// concurrent use when the store is.
type Runner struct {
	store    Store
	observer Observer
	tracer   trace.Tracer
}

// NewRunner creates a runner over store. A nil store is allowed; every call
// then fails with an InternalError after argument validation.
func NewRunner(store Store, opts ...Option) *Runner {
	r := &Runner{
		store:  store,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Configured reports whether a store is attached.
func (r *Runner) Configured() bool {
	return r != nil && r.store != nil
}

// Call validates args for the named tool, performs exactly one store call and
// returns the JSON-like result. Every error is a *ToolError.
func (r *Runner) Call(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	name = strings.TrimSpace(name)
	label := name
	if _, ok := Lookup(name); !ok {
		label = unknownTool
	}

	started := time.Now()
	ctx, span := r.tracer.Start(ctx, "tools."+label, trace.WithAttributes(
		attribute.String("tool.name", label),
	))
	defer span.End()

	result, err := r.call(ctx, name, args)
	outcome := OutcomeOK
	if err != nil {
		toolErr := Normalize(err)
		outcome = string(toolErr.Kind())
		span.SetAttributes(attribute.String("tool.error_kind", outcome))
		span.SetStatus(codes.Error, toolErr.Message())
		err = toolErr
	}
	if r.observer != nil {
		r.observer.ObserveOperation(label, outcome, time.Since(started))
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Runner) call(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	op, err := ParseOperation(name, args)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, op)
}

// Execute runs an already validated operation.
func (r *Runner) Execute(ctx context.Context, op Operation) (map[string]any, error) {
	if r.store == nil {
		return nil, &ToolError{
			kind:    KindInternalError,
			message: cosmos.ErrNotConfigured.Error(),
			detail:  "set COSMOS_CONNECTION_STRING or COSMOS_ENDPOINT and COSMOS_KEY, plus COSMOS_DATABASE_NAME and COSMOS_CONTAINER_NAME",
		}
	}

	var (
		result map[string]any
		err    error
	)
	switch op := op.(type) {
	case GetItem:
		result, err = r.store.Read(ctx, op.ID, op.PartitionKey)
	case QueryItems:
		var res cosmos.QueryResult
		res, err = r.store.Query(ctx, cosmos.QueryRequest{
			Text:         op.Query,
			Parameters:   op.Parameters,
			MaxItemCount: op.MaxItemCount,
		})
		if err == nil {
			result = map[string]any{"count": res.Count, "items": res.Items}
		}
	case UpsertItem:
		result, err = r.store.Upsert(ctx, op.Item)
	case PatchItem:
		result, err = r.store.Patch(ctx, op.ID, op.PartitionKey, op.Operations)
	case DeleteItem:
		result, err = r.store.Delete(ctx, op.ID, op.PartitionKey)
	default:
		return nil, validationErrorf("unsupported operation %T", op)
	}
	if err != nil {
		return nil, Normalize(err)
	}
	if result == nil {
		result = map[string]any{}
	}
	return result, nil
}
