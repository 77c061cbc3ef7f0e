package httputil

import (
	"context"
	"net/http"
	"time"
)

const readinessTimeout = 5 * time.Second

// ReadinessHandler reports 200 when check succeeds and 503 otherwise.
func ReadinessHandler(check func(ctx context.Context) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if check != nil {
			if err := check(ctx); err != nil {
				RespondJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "not ready",
					"error":  err.Error(),
				})
				return
			}
		}
		RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
}

// VersionHandler reports build metadata.
func VersionHandler(version, commit, buildDate string) http.Handler {
	body := map[string]string{
		"version":    version,
		"commit":     commit,
		"build_date": buildDate,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		RespondJSON(w, http.StatusOK, body)
	})
}
