// Package api exposes the chat service over HTTP: a minimal browser page,
// a streaming chat endpoint, and session inspection routes.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/scoutchat/scout/internal/agent"
	"github.com/scoutchat/scout/internal/session"
)

// ServerConfig carries the dependencies for the HTTP handler tree.
type ServerConfig struct {
	Logger *slog.Logger
	Flow   *agent.Flow
	Store  *session.Store

	CORSOrigins []string
	RateBurst   int  // Chat requests per minute per client (0 disables limiting)
	TrustProxy  bool // Honor X-Forwarded-For for client identity
	Version     string
}

func (cfg ServerConfig) validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Flow == nil {
		return errors.New("chat flow is required")
	}
	if cfg.Store == nil {
		return errors.New("session store is required")
	}
	return nil
}

// NewHandler builds the complete HTTP handler.
//
// The middleware order is recovery, request ID, logging, CORS; the chat
// route additionally passes through the per-IP rate limiter. The health
// probe is mounted outside the stack so load balancer checks stay out of
// the request log.
func NewHandler(cfg ServerConfig) (http.Handler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ch := &chatHandler{logger: cfg.Logger, flow: cfg.Flow, store: cfg.Store}
	sh := &sessionHandler{logger: cfg.Logger, store: cfg.Store}

	var chat http.Handler = http.HandlerFunc(ch.chat)
	if cfg.RateBurst > 0 {
		rl := newRateLimiter(cfg.RateBurst)
		chat = rateLimitMiddleware(cfg.Logger, rl, cfg.TrustProxy)(chat)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", indexHandler(cfg.Logger))
	mux.Handle("POST /chat", chat)
	mux.HandleFunc("GET /sessions", sh.list)
	mux.HandleFunc("GET /session/{id}", sh.get)
	mux.HandleFunc("DELETE /session/{id}", sh.delete)

	var handler http.Handler = mux
	for _, mw := range []middleware{
		corsMiddleware(cfg.CORSOrigins),
		loggingMiddleware(cfg.Logger),
		requestIDMiddleware(),
		recoveryMiddleware(cfg.Logger),
	} {
		handler = mw(handler)
	}

	root := http.NewServeMux()
	root.HandleFunc("GET /health", healthHandler(cfg.Logger, cfg.Store, cfg.Version))
	root.Handle("/", handler)
	return root, nil
}
