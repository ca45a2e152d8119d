package api

import (
	"log/slog"
	"net/http"

	"github.com/scoutchat/scout/internal/session"
)

// healthHandler reports liveness plus the live session count.
func healthHandler(logger *slog.Logger, store *session.Store, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string]any{
			"status":          "ok",
			"active_sessions": store.Len(),
			"version":         version,
		})
	}
}
