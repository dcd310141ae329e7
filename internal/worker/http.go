package worker

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/equityscope/equityscope/internal/basket"
)

// HTTPServer exposes one basket's tools over HTTP for load-balanced
// deployments. The aggregator relies on POST /tools/<name> and
// GET /health; GET /status serves external probes.
type HTTPServer struct {
	set      *basket.Set
	registry *Registry
	logger   *slog.Logger
	instance string
	started  time.Time
}

// NewHTTPServer builds the HTTP worker for one basket of the registry.
func NewHTTPServer(registry *Registry, server string, logger *slog.Logger) (*HTTPServer, bool) {
	set, ok := registry.Set(server)
	if !ok {
		return nil, false
	}

	if logger == nil {
		logger = slog.Default()
	}

	hostname, _ := os.Hostname()

	return &HTTPServer{
		set:      set,
		registry: registry,
		logger:   logger,
		instance: hostname,
		started:  time.Now(),
	}, true
}

// Routes builds the worker's HTTP router.
func (s *HTTPServer) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/tools/{name}", s.handleTool)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)

	return r
}

func (s *HTTPServer) handleTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	args := map[string]any{}

	err := json.NewDecoder(r.Body).Decode(&args)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "invalid JSON body: " + err.Error(),
			"tool":  name,
		})

		return
	}

	result := s.set.Invoke(r.Context(), s.logger, name, args)

	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"server":         s.set.Server,
		"instance":       s.instance,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"cache_stats":    s.registry.CacheStats(),
	})
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	tools := make([]string, len(s.set.Tools))
	for i, tool := range s.set.Tools {
		tools[i] = tool.Name
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"server":           s.set.Server,
		"instance":         s.instance,
		"uptime_seconds":   int(time.Since(s.started).Seconds()),
		"tools":            tools,
		"circuit_breakers": s.registry.BreakerStatus(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(payload)
}
