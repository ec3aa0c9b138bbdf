package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"heatingcontrol/internal/heating"
	"heatingcontrol/internal/shadowstate"

	"github.com/NYTimes/gziphandler"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HeatingController is what the API needs from the heating plugin
type HeatingController interface {
	Rooms() []heating.Room
	// RequestEvaluation queues a pass scoped to entityID, or a full pass
	// when entityID is empty. It returns false for unknown entities.
	RequestEvaluation(entityID string) (heating.Trigger, bool)
}

// Server provides HTTP API endpoints for the heating controller
type Server struct {
	controller    HeatingController
	shadowTracker *shadowstate.Tracker
	gatherer      prometheus.Gatherer
	logger        *zap.Logger
	handler       http.Handler
	server        *http.Server
}

// NewServer creates a new API server. gatherer may be nil, in which case
// /metrics serves the default registry.
func NewServer(controller HeatingController, shadowTracker *shadowstate.Tracker, gatherer prometheus.Gatherer, logger *zap.Logger, port int) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		controller:    controller,
		shadowTracker: shadowTracker,
		gatherer:      gatherer,
		logger:        logger.Named("api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleSitemap)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/rooms", s.handleGetRooms)
	mux.HandleFunc("/api/shadow", s.handleGetShadowState)
	mux.HandleFunc("/api/evaluate", s.handleEvaluate)

	root := http.NewServeMux()
	root.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	root.Handle("/", gziphandler.GzipHandler(mux))

	accessLog := zap.NewStdLog(s.logger.Named("access"))
	s.handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(s.logger)),
		handlers.PrintRecoveryStack(true),
	)(handlers.LoggingHandler(accessLog.Writer(), root))

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// RoomResponse describes one configured room
type RoomResponse struct {
	Name             string   `json:"room_name"`
	Sensor           string   `json:"sensor"`
	TemperatureDay   string   `json:"temperature_day"`
	TemperatureNight string   `json:"temperature_night"`
	HeatingValves    []string `json:"heating_valves"`
	ManualMode       string   `json:"manual_mode,omitempty"`
}

// EvaluateResponse acknowledges a queued pass
type EvaluateResponse struct {
	Queued string `json:"queued"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleGetRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rooms := s.controller.Rooms()
	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, RoomResponse{
			Name:             room.Name,
			Sensor:           room.SensorID,
			TemperatureDay:   room.DayTargetID,
			TemperatureNight: room.NightTargetID,
			HeatingValves:    room.ValveIDs,
			ManualMode:       room.ManualOverrideID,
		})
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleGetShadowState returns all plugin shadow states, or one with ?plugin=
func (s *Server) handleGetShadowState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if name := r.URL.Query().Get("plugin"); name != "" {
		st, ok := s.shadowTracker.GetPluginState(name)
		if !ok {
			s.writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("no shadow state for plugin %q", name)})
			return
		}
		s.writeJSON(w, http.StatusOK, st)
		return
	}

	s.writeJSON(w, http.StatusOK, s.shadowTracker.GetAllPluginStates())
}

// handleEvaluate queues a full pass, or a scoped one with ?entity_id=
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entityID := strings.TrimSpace(r.URL.Query().Get("entity_id"))
	trigger, ok := s.controller.RequestEvaluation(entityID)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("entity %q does not belong to any room", entityID)})
		return
	}

	s.logger.Info("Evaluation requested via API",
		zap.Stringer("trigger", trigger),
		zap.String("remote_addr", r.RemoteAddr))
	s.writeJSON(w, http.StatusAccepted, EvaluateResponse{Queued: trigger.String()})
}

// handleHealth returns a simple health check response
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Endpoint represents an API endpoint with its documentation
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

var endpoints = []Endpoint{
	{Path: "/", Method: "GET", Description: "This sitemap - lists all available API endpoints"},
	{Path: "/health", Method: "GET", Description: "Health check endpoint - returns {\"status\": \"ok\"}"},
	{Path: "/api/rooms", Method: "GET", Description: "Configured rooms and their entities"},
	{Path: "/api/shadow", Method: "GET", Description: "Shadow state of all plugins (?plugin=heating for one)"},
	{Path: "/api/evaluate", Method: "POST", Description: "Queue a full pass, or a scoped one with ?entity_id="},
	{Path: "/metrics", Method: "GET", Description: "Prometheus metrics"},
}

// handleSitemap returns a list of all available API endpoints
func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	// Only handle requests to the root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	preferHTML := strings.Contains(r.Header.Get("Accept"), "text/html")

	// 404 for automation compatibility, with a helpful body
	if preferHTML {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Heating Control API</title>
    <style>
        body { font-family: monospace; margin: 40px; background: #1e1e1e; color: #d4d4d4; }
        h1 { color: #4ec9b0; }
        .endpoint { background: #2d2d2d; padding: 15px; margin: 10px 0; border-left: 3px solid #007acc; }
        .method { color: #4ec9b0; font-weight: bold; }
        .path { color: #ce9178; }
        .description { color: #9cdcfe; margin-top: 5px; }
    </style>
</head>
<body>
    <h1>Heating Control API</h1>
`)
		for _, ep := range endpoints {
			fmt.Fprintf(w, `    <div class="endpoint">
        <div><span class="method">%s</span> <span class="path">%s</span></div>
        <div class="description">%s</div>
    </div>
`, ep.Method, ep.Path, ep.Description)
		}
		fmt.Fprintf(w, "</body>\n</html>\n")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "Heating Control API\n")
		fmt.Fprintf(w, "===================\n\n")
		fmt.Fprintf(w, "Available endpoints:\n\n")
		for _, ep := range endpoints {
			fmt.Fprintf(w, "  %-10s %-20s %s\n", ep.Method, ep.Path, ep.Description)
		}
		fmt.Fprintf(w, "\nExamples:\n\n")
		fmt.Fprintf(w, "  Re-evaluate the kitchen:\n")
		fmt.Fprintf(w, "    curl -X POST 'http://localhost:8081/api/evaluate?entity_id=sensor.kitchen_temperature'\n\n")
		fmt.Fprintf(w, "  Pretty print shadow state:\n")
		fmt.Fprintf(w, "    curl http://localhost:8081/api/shadow | jq\n\n")
	}

	s.logger.Debug("Sitemap request served",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Bool("html_format", preferHTML))
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP API server", zap.String("addr", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
