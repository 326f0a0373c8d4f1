package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/steffomix/simplex-audio-repeater/internal/config"
	"github.com/steffomix/simplex-audio-repeater/internal/engine"
	"github.com/steffomix/simplex-audio-repeater/internal/metrics"
)

// HTTPServer provides the control and monitoring API.
type HTTPServer struct {
	server  *http.Server
	params  *config.Store
	engine  *engine.Engine
	metrics *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates the control API server over the engine and the
// live parameter store.
func NewHTTPServer(cfg config.HTTPConfig, params *config.Store, eng *engine.Engine, m *metrics.Metrics) *HTTPServer {
	h := &HTTPServer{
		params:    params,
		engine:    eng,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures the API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/api/v1/status", h.withMetrics("/api/v1/status", h.handleStatus))
	mux.HandleFunc("/api/v1/params", h.withMetrics("/api/v1/params", h.handleParams))

	// The websocket feed manages its own lifetime; no timing wrapper.
	mux.HandleFunc("/ws/levels", h.handleLevels)

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps a handler with request metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		h.metrics.RecordHTTPRequest(r.Method, endpoint, fmt.Sprintf("%d", ww.statusCode), duration)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	slog.Info("Starting HTTP API server", "address", h.server.Addr)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	slog.Info("Stopping HTTP API server...")
	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"engine": map[string]interface{}{
			"running": h.engine.Running(),
		},
	}

	writeJSON(w, health)
}

// handleStatus implements the /api/v1/status endpoint
func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, h.engine.Status())
}

// paramsPatch is the partial-update body for PUT /api/v1/params. Absent
// fields leave the current value untouched.
type paramsPatch struct {
	Mode            *config.Mode `json:"mode"`
	StartThreshold  *int         `json:"start_threshold"`
	StopThreshold   *int         `json:"stop_threshold"`
	RiseTimeMs      *float64     `json:"rise_time_ms"`
	FallTimeMs      *float64     `json:"fall_time_ms"`
	RecordTime      *float64     `json:"record_time"`
	StopTime        *float64     `json:"stop_time"`
	DeadTime        *float64     `json:"dead_time"`
	PlaybackDelayMs *float64     `json:"playback_delay_ms"`
	MonitorEnabled  *bool        `json:"monitor_enabled"`
	EQEnabled       *bool        `json:"eq_enabled"`
	EQGains         []float64    `json:"eq_gains"`
	GainDB          *float64     `json:"gain_db"`
}

// handleParams implements GET and PUT on /api/v1/params
func (h *HTTPServer) handleParams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, h.params.Snapshot())

	case http.MethodPut:
		var patch paramsPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
			return
		}

		if patch.Mode != nil {
			if *patch.Mode != config.ModeSimplex && *patch.Mode != config.ModeDuplex {
				http.Error(w, fmt.Sprintf("Unknown mode %q", *patch.Mode), http.StatusBadRequest)
				return
			}
			current := h.params.Snapshot()
			if h.engine.Running() && *patch.Mode != current.Mode {
				http.Error(w, "Mode cannot change while the engine is running", http.StatusConflict)
				return
			}
		}

		updated := h.params.Update(func(p *config.Params) {
			applyPatch(p, patch)
		})

		slog.Info("Parameters updated",
			"start_threshold", updated.StartThreshold,
			"stop_threshold", updated.StopThreshold,
			"gain_db", updated.GainDB)

		writeJSON(w, updated)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func applyPatch(p *config.Params, patch paramsPatch) {
	if patch.Mode != nil {
		p.Mode = *patch.Mode
	}
	if patch.StartThreshold != nil {
		p.StartThreshold = *patch.StartThreshold
	}
	if patch.StopThreshold != nil {
		p.StopThreshold = *patch.StopThreshold
	}
	if patch.RiseTimeMs != nil {
		p.RiseTimeMs = *patch.RiseTimeMs
	}
	if patch.FallTimeMs != nil {
		p.FallTimeMs = *patch.FallTimeMs
	}
	if patch.RecordTime != nil {
		p.RecordTime = *patch.RecordTime
	}
	if patch.StopTime != nil {
		p.StopTime = *patch.StopTime
	}
	if patch.DeadTime != nil {
		p.DeadTime = *patch.DeadTime
	}
	if patch.PlaybackDelayMs != nil {
		p.PlaybackDelayMs = *patch.PlaybackDelayMs
	}
	if patch.MonitorEnabled != nil {
		p.MonitorEnabled = *patch.MonitorEnabled
	}
	if patch.EQEnabled != nil {
		p.EQEnabled = *patch.EQEnabled
	}
	if patch.EQGains != nil {
		p.EQGains = patch.EQGains
	}
	if patch.GainDB != nil {
		p.GainDB = *patch.GainDB
	}
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "simplex-audio-repeater",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":              "API documentation",
			"GET /health":        "Service health check",
			"GET /api/v1/status": "Engine state, levels, progress, ring depth",
			"GET /api/v1/params": "Current live parameters",
			"PUT /api/v1/params": "Partial update of live parameters",
			"GET /ws/levels":     "Websocket level feed",
			"GET /metrics":       "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, apiDoc)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
