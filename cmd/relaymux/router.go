package main

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	relaymux "github.com/relaymux/relaymux"
	"github.com/relaymux/relaymux/internal/logging"
	"github.com/relaymux/relaymux/internal/version"
)

// newRouter builds the HTTP router. When gatewayKey is non-empty, every
// route except /healthz and /metrics requires a matching bearer token.
func newRouter(gw *relaymux.Gateway, gatewayKey string, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware)
	r.Use(corsMiddleware(corsOrigins...))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "ok",
			"version":  version.Short(),
			"backends": gw.Catalog().Len(),
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(gatewayKey))

		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"message": "OpenAI-compatible aggregation gateway",
				"docs":    "Use baseURL = http://localhost:" + listenPort() + "/v1",
				"version": version.Short(),
			})
		})

		// A single alias model is advertised; the gateway rewrites it to
		// the concrete upstream model per backend.
		r.Get("/v1/models", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"object": "list",
				"data": []map[string]interface{}{{
					"id":       gw.Catalog().DefaultModel(),
					"object":   "model",
					"created":  time.Now().Unix(),
					"owned_by": "gateway",
				}},
			})
		})

		r.Post("/v1/chat/completions", gw.ServeChat)
		r.Post("/v1/embeddings", gw.ServeEmbeddings)
	})

	return r
}

func listenPort() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return defaultPort
}

// writeOpenAIError writes an OpenAI-compatible JSON error response.
func writeOpenAIError(w http.ResponseWriter, status int, message, errType string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    errType,
		},
	})
}
