package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"git.cscs.ch/openchami/chamicore-cosmos/internal/audit"
	"git.cscs.ch/openchami/chamicore-cosmos/internal/config"
	"git.cscs.ch/openchami/chamicore-cosmos/internal/httputil"
	"git.cscs.ch/openchami/chamicore-cosmos/internal/telemetry"
)

// maxRequestBodyBytes matches the stdio message limit and stays above the
// store's 2 MB item size.
const maxRequestBodyBytes = maxStdioMessageBytes

var payloadTooLargeMessage = fmt.Sprintf("request body exceeds %d bytes", maxRequestBodyBytes)

// HTTPServer wraps HTTP routing state for every front end.
type HTTPServer struct {
	cfg      config.Config
	version  string
	commit   string
	build    string
	contract []byte
	registry *ToolRegistry
	policy   ToolAuthorizer
	caller   ToolCaller
	store    QueryStore
	metrics  *telemetry.Metrics
	logger   zerolog.Logger
}

// NewHTTPServer creates an HTTP server with health, tool, ad-hoc query and
// MCP routes. store and metrics may be nil.
func NewHTTPServer(
	cfg config.Config,
	version, commit, buildDate string,
	contract []byte,
	registry *ToolRegistry,
	policy ToolAuthorizer,
	caller ToolCaller,
	store QueryStore,
	metrics *telemetry.Metrics,
	logger zerolog.Logger,
) *HTTPServer {
	return &HTTPServer{
		cfg:      cfg,
		version:  version,
		commit:   commit,
		build:    buildDate,
		contract: contract,
		registry: registry,
		policy:   policy,
		caller:   caller,
		store:    store,
		metrics:  metrics,
		logger:   logger,
	}
}

// Router builds the HTTP router.
func (s *HTTPServer) Router() chi.Router {
	r := chi.NewRouter()

	if s.cfg.TracesEnabled {
		r.Use(telemetry.HTTPTracing(defaultServerName))
	}
	if s.metrics != nil {
		r.Use(s.metrics.HTTPMiddleware())
	}
	r.Use(httputil.RequestID)
	r.Use(httputil.RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(httputil.SecureHeaders)
	r.Use(middleware.RequestSize(maxRequestBodyBytes))
	r.Use(httputil.APIVersion(contractAPIVersion))
	r.Use(middleware.NoCache)

	registerHealthRoutes(r, s.store, s.version, s.commit, s.build, s.metrics)
	r.Post("/query", handleAdHocQuery(s.store, s.logger))
	registerFunctionRoutes(r, &functionRoutes{
		version:    s.version,
		contract:   s.contract,
		registry:   s.registry,
		authorizer: s.policy,
		caller:     s.caller,
		logger:     s.logger.With().Str("component", "functions").Logger(),
		audit:      audit.NewLogger(s.logger),
	})
	registerMCPHTTPRoutes(r, s.registry, s.policy, s.caller, s.version, s.logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondProblem(w, r, http.StatusNotFound, "route not found")
	})

	return r
}
