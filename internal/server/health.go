package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"git.cscs.ch/openchami/chamicore-cosmos/internal/httputil"
	"git.cscs.ch/openchami/chamicore-cosmos/internal/telemetry"
)

func registerHealthRoutes(r chi.Router, store QueryStore, version, commit, buildDate string, metrics *telemetry.Metrics) {
	r.Get("/health", handleHealth(store))
	r.Method(http.MethodGet, "/readiness", httputil.ReadinessHandler(storeReadiness(store)))
	r.Method(http.MethodGet, "/version", httputil.VersionHandler(version, commit, buildDate))
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}
}
