package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"git.cscs.ch/openchami/chamicore-cosmos/internal/audit"
	"git.cscs.ch/openchami/chamicore-cosmos/internal/httputil"
	"git.cscs.ch/openchami/chamicore-cosmos/internal/tools"
)

var functionCORS = httputil.CORSOptions{
	AllowOrigin:  "*",
	AllowHeaders: []string{"Content-Type", "Authorization", "x-functions-key"},
	AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
}

// functionRoutes serves the tool-invocation API under /api, laid out the way
// an Azure Functions custom handler expects.
type functionRoutes struct {
	version    string
	contract   []byte
	registry   *ToolRegistry
	authorizer ToolAuthorizer
	caller     ToolCaller
	logger     zerolog.Logger
	audit      *audit.Logger
}

func registerFunctionRoutes(r chi.Router, fr *functionRoutes) {
	r.Route("/api", func(r chi.Router) {
		// Preflight OPTIONS requests are answered here before routing.
		r.Use(httputil.CORS(functionCORS))

		r.Get("/health", fr.health)
		r.Get("/tools", fr.listTools)
		r.Get("/tools.yaml", fr.contractYAML)
		r.Post("/tools/{name}", fr.callTool)
		r.Get("/openapi.json", fr.openAPI)
		r.Get("/swagger", fr.swagger)
		r.Get("/docs", fr.swagger)
	})
}

func (fr *functionRoutes) health(w http.ResponseWriter, _ *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{
		"name":    defaultServerName,
		"version": fr.version,
		"status":  "ok",
	})
}

func (fr *functionRoutes) listTools(w http.ResponseWriter, _ *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, listToolsResult{Tools: fr.registry.descriptors()})
}

func (fr *functionRoutes) contractYAML(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(fr.contract)
}

func (fr *functionRoutes) openAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := BuildOpenAPI(fr.registry, requestBaseURL(r)+"/api", fr.version)
	if err != nil {
		fr.logger.Error().Err(err).Msg("building openapi document")
		httputil.RespondError(w, http.StatusInternalServerError, "Server error", err.Error())
		return
	}
	httputil.RespondJSON(w, http.StatusOK, doc)
}

func (fr *functionRoutes) swagger(w http.ResponseWriter, _ *http.Request) {
	page, err := renderSwaggerPage("./openapi.json")
	if err != nil {
		fr.logger.Error().Err(err).Msg("rendering swagger page")
		httputil.RespondError(w, http.StatusInternalServerError, "Server error", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

func (fr *functionRoutes) callTool(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	requestID := httputil.RequestIDFromContext(r.Context())
	name := strings.TrimSpace(chi.URLParam(r, "name"))

	event := audit.ToolCallCompletion{
		RequestID: requestID,
		SessionID: sessionIDFromHTTPRequest(r, requestID),
		Transport: "function",
		ToolName:  name,
		Mode:      resolvedMode(fr.authorizer),
		Result:    "error",
	}
	defer func() {
		event.Duration = time.Since(started)
		fr.audit.Complete(event)
	}()

	args, err := httputil.DecodeObject(r)
	if err != nil {
		event.ErrorKind = string(tools.KindBadRequest)
		if httputil.IsBodyTooLarge(err) {
			event.ResponseCode = http.StatusRequestEntityTooLarge
			event.ErrorDetail = payloadTooLargeMessage
			httputil.RespondError(w, http.StatusRequestEntityTooLarge, payloadTooLargeMessage, "")
			return
		}
		event.ResponseCode = http.StatusBadRequest
		if errors.Is(err, httputil.ErrNotObject) {
			event.ErrorDetail = "Invalid payload: expected a JSON object"
			httputil.RespondError(w, http.StatusBadRequest, event.ErrorDetail, "")
			return
		}
		event.ErrorDetail = "Invalid JSON payload: " + err.Error()
		httputil.RespondError(w, http.StatusBadRequest, "Invalid JSON payload", err.Error())
		return
	}
	event.Arguments = args

	// Unknown names fall through to the runner, which reports them as
	// BadRequest like any other validation failure.
	if tool, ok := fr.registry.Lookup(name); ok {
		if err := authorizeToolCall(fr.authorizer, tool); err != nil {
			event.ResponseCode = http.StatusForbidden
			event.ErrorKind = "Forbidden"
			event.ErrorDetail = err.Error()
			httputil.RespondError(w, http.StatusForbidden, err.Error(), "")
			return
		}
	}
	if fr.caller == nil {
		event.ResponseCode = http.StatusInternalServerError
		event.ErrorKind = string(tools.KindInternalError)
		event.ErrorDetail = "tool caller is not configured"
		httputil.RespondError(w, http.StatusInternalServerError, "Server error", "tool caller is not configured")
		return
	}

	result, err := fr.caller.Call(r.Context(), name, args)
	if err != nil {
		toolErr := tools.Normalize(err)
		event.ErrorKind = string(toolErr.Kind())
		event.ErrorDetail = auditDetail(toolErr)
		event.ResponseCode = toolErr.StatusCode()
		respondToolError(w, toolErr)
		return
	}

	event.Result = "success"
	event.ResponseCode = http.StatusOK
	httputil.RespondJSON(w, http.StatusOK, result)
}

// respondToolError writes the {error, details?} body for a failed call.
// Internal failures keep their cause in details only.
func respondToolError(w http.ResponseWriter, toolErr *tools.ToolError) {
	switch toolErr.Kind() {
	case tools.KindInternalError:
		details := toolErr.Detail()
		if details == "" {
			details = toolErr.Message()
		}
		httputil.RespondError(w, http.StatusInternalServerError, "Server error", details)
	default:
		httputil.RespondError(w, toolErr.StatusCode(), toolErrorMessage(toolErr), toolErr.Detail())
	}
}

// requestBaseURL reconstructs scheme://host, honouring the forwarding headers
// set by the Functions host and reverse proxies.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); forwarded != "" {
		scheme = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host := r.Host
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-Host")); forwarded != "" {
		host = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	return scheme + "://" + host
}
