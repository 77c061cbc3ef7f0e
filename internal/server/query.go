package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"git.cscs.ch/openchami/chamicore-cosmos/internal/audit"
	"git.cscs.ch/openchami/chamicore-cosmos/internal/cosmos"
	"git.cscs.ch/openchami/chamicore-cosmos/internal/httputil"
	"git.cscs.ch/openchami/chamicore-cosmos/internal/policy"
	"git.cscs.ch/openchami/chamicore-cosmos/internal/tools"
)

// QueryStore runs ad-hoc queries against any container of the configured
// database. *cosmos.Database satisfies it.
type QueryStore interface {
	QueryContainer(ctx context.Context, container, text string) (cosmos.QueryResult, error)
	Ping(ctx context.Context) error
}

type adHocQueryRequest struct {
	Container string `json:"contenedor"`
	Query     string `json:"query"`
}

type adHocQueryResponse struct {
	Success bool              `json:"success"`
	Count   int               `json:"count"`
	Results []cosmos.Document `json:"results"`
}

func handleAdHocQuery(store QueryStore, logger zerolog.Logger) http.HandlerFunc {
	auditLogger := audit.NewLogger(logger)

	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		requestID := httputil.RequestIDFromContext(r.Context())
		event := audit.ToolCallCompletion{
			RequestID: requestID,
			SessionID: sessionIDFromHTTPRequest(r, requestID),
			Transport: "query",
			ToolName:  tools.ToolQueryItems,
			Mode:      policy.ModeReadOnly,
			Result:    "error",
		}
		defer func() {
			event.Duration = time.Since(started)
			auditLogger.Complete(event)
		}()

		fail := func(status int, kind tools.Kind, message, details string) {
			event.ResponseCode = status
			event.ErrorKind = string(kind)
			event.ErrorDetail = message
			if details != "" {
				event.ErrorDetail += ": " + details
			}
			httputil.RespondError(w, status, message, details)
		}

		var req adHocQueryRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			if httputil.IsBodyTooLarge(err) {
				fail(http.StatusRequestEntityTooLarge, tools.KindBadRequest, payloadTooLargeMessage, "")
				return
			}
			fail(http.StatusBadRequest, tools.KindBadRequest, "request body must be a valid JSON object", "")
			return
		}
		event.Arguments = map[string]any{"contenedor": req.Container, "query": req.Query}

		container := strings.TrimSpace(req.Container)
		if container == "" {
			fail(http.StatusBadRequest, tools.KindBadRequest, `parameter "contenedor" is required`, "")
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			fail(http.StatusBadRequest, tools.KindBadRequest, `parameter "query" is required`, "")
			return
		}
		if store == nil {
			fail(http.StatusInternalServerError, tools.KindInternalError, "Cosmos DB is not configured; check the environment variables", "")
			return
		}
		if err := policy.CheckReadOnlyQuery(req.Query); err != nil {
			fail(http.StatusBadRequest, tools.KindBadRequest, err.Error(), "")
			return
		}

		result, err := store.QueryContainer(r.Context(), container, req.Query)
		if err != nil {
			toolErr := tools.Normalize(err)
			switch toolErr.Kind() {
			case tools.KindNotFound:
				fail(http.StatusNotFound, toolErr.Kind(), "resource not found: "+container, "")
			case tools.KindBadRequest:
				fail(http.StatusBadRequest, toolErr.Kind(), toolErr.Message(), "")
			case tools.KindStoreError:
				fail(http.StatusInternalServerError, toolErr.Kind(), "query failed: "+toolErr.Message(), toolErr.Detail())
			default:
				fail(http.StatusInternalServerError, toolErr.Kind(), "internal error", toolErr.Detail())
			}
			return
		}

		items := result.Items
		if items == nil {
			items = []cosmos.Document{}
		}
		event.Result = "success"
		event.ResponseCode = http.StatusOK
		httputil.RespondJSON(w, http.StatusOK, adHocQueryResponse{
			Success: true,
			Count:   len(items),
			Results: items,
		})
	}
}

func handleHealth(store QueryStore) http.HandlerFunc {
	configured := store != nil
	return func(w http.ResponseWriter, _ *http.Request) {
		httputil.RespondJSON(w, http.StatusOK, map[string]any{
			"status":            "healthy",
			"cosmos_configured": configured,
		})
	}
}

func storeReadiness(store QueryStore) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if store == nil {
			return cosmos.ErrNotConfigured
		}
		return store.Ping(ctx)
	}
}
