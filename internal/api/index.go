package api

import (
	"embed"
	"log/slog"
	"net/http"
)

//go:embed static/index.html
var staticFS embed.FS

// indexHandler serves the embedded single-page chat client.
func indexHandler(logger *slog.Logger) http.HandlerFunc {
	page, err := staticFS.ReadFile("static/index.html")
	return func(w http.ResponseWriter, r *http.Request) {
		if err != nil {
			logger.Error("reading embedded page", "error", err)
			writeError(w, logger, http.StatusInternalServerError, "internal", "page unavailable")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	}
}
