// Package server exposes the navigator over HTTP: synchronous single routes,
// batched submissions to the worker pool, a websocket stream of results, and
// the graph itself as GeoJSON.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"agent-navigator/internal/logger"
	"agent-navigator/navgraph"
	"agent-navigator/pathfinding"
	"agent-navigator/pathservice"
)

// maxBatch caps the number of queries accepted in one submission.
const maxBatch = 10000

type RouteRequest struct {
	Start navgraph.Vec3 `json:"start"`
	End   navgraph.Vec3 `json:"end"`
}

type RouteResponse struct {
	Path     []navgraph.Vec3 `json:"path"`
	Success  bool            `json:"success"`
	Message  string          `json:"message,omitempty"`
	Distance float64         `json:"distance,omitempty"`
	Cost     float64         `json:"cost,omitempty"`
	Expanded int             `json:"expanded"`
}

type SubmitRequest struct {
	Queries []pathservice.Query `json:"queries"`
}

type SubmitResponse struct {
	IDs []pathservice.RequestID `json:"ids"`
}

type ResultsResponse struct {
	Results []pathservice.Result `json:"results"`
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithSnapTolerance limits endpoint snapping for POST /route.
func WithSnapTolerance(d float64) Option {
	return func(s *Server) {
		s.finderOpts = append(s.finderOpts, pathfinding.WithSnapTolerance(d))
	}
}

// WithPollInterval sets the shortest interval at which the router polls the
// service for results.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) { s.pollInterval = d }
}

// WithMailboxLimit bounds how many unclaimed results are held for
// GET /paths/results. Once full, the oldest results are discarded.
func WithMailboxLimit(n int) Option {
	return func(s *Server) { s.mailboxLimit = n }
}

// Server is an http.Handler for one path service.
type Server struct {
	service *pathservice.Service
	graph   *navgraph.Graph
	finder  *pathfinding.Finder
	router  *Router
	logger  logger.Logger

	finderOpts   []pathfinding.Option
	pollInterval time.Duration
	mailboxLimit int

	upgrader websocket.Upgrader
	handler  http.Handler

	connsMu sync.Mutex
	conns   map[*websocket.Conn]struct{}
}

// New creates a Server for service. Router().Run must be running for batched
// results to be delivered.
func New(service *pathservice.Service, opts ...Option) *Server {
	s := &Server{
		service: service,
		graph:   service.Graph(),
		logger:  logger.NewNoopLogger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.finder = pathfinding.NewFinder(s.graph, s.finderOpts...)
	s.router = newRouter(service, s.logger, s.pollInterval, s.mailboxLimit)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /route", s.routeHandler)
	mux.HandleFunc("POST /paths", s.submitHandler)
	mux.HandleFunc("GET /paths/results", s.resultsHandler)
	mux.HandleFunc("GET /paths/stream", s.streamHandler)
	mux.HandleFunc("GET /graph/lines", s.linesHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.handler = corsMiddleware(mux)

	return s
}

// Router returns the result router.
func (s *Server) Router() *Router {
	return s.router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// CloseStreams closes every open websocket connection. http.Server.Shutdown
// does not track hijacked connections.
func (s *Server) CloseStreams() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()

	for conn := range s.conns {
		conn.Close()
	}
}

// corsMiddleware adds CORS headers to allow frontend requests
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// POST /route - single route, answered synchronously
func (s *Server) routeHandler(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Debug("invalid route request", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Start.Finite() || !req.End.Finite() {
		http.Error(w, "Coordinates must be finite", http.StatusBadRequest)
		return
	}

	outcome := s.finder.Find(req.Start, req.End)

	response := RouteResponse{
		Path:     outcome.Waypoints,
		Success:  outcome.Found,
		Expanded: outcome.Expanded,
	}
	if outcome.Found {
		response.Cost = outcome.Cost
		for i := 0; i+1 < len(outcome.Waypoints); i++ {
			response.Distance += outcome.Waypoints[i].Distance(outcome.Waypoints[i+1])
		}
		s.logger.Info("route found",
			zap.Int("waypoints", len(outcome.Waypoints)),
			zap.Float64("cost", outcome.Cost),
			zap.Int("expanded", outcome.Expanded))
	} else {
		response.Message = "No path found"
		s.logger.Info("no route found", zap.Int("expanded", outcome.Expanded))
	}

	writeJSON(w, http.StatusOK, response)
}

// POST /paths - batch submission to the worker pool
func (s *Server) submitHandler(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Debug("invalid submit request", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Queries) > maxBatch {
		http.Error(w, "Too many queries", http.StatusBadRequest)
		return
	}

	ids, err := s.service.SubmitPathRequests(req.Queries)
	if err != nil {
		s.submitError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitResponse{IDs: ids})
}

// GET /paths/results - results not claimed by a stream
func (s *Server) resultsHandler(w http.ResponseWriter, r *http.Request) {
	results := s.router.takeMailbox()
	if results == nil {
		results = []pathservice.Result{}
	}
	writeJSON(w, http.StatusOK, ResultsResponse{Results: results})
}

// GET /graph/lines - graph edges as GeoJSON
func (s *Server) linesHandler(w http.ResponseWriter, r *http.Request) {
	data, err := navgraph.Lines(s.graph).MarshalJSON()
	if err != nil {
		s.logger.Error("failed to encode graph lines", zap.Error(err))
		http.Error(w, "failed to encode", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(data)
}

// GET /health - Health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ready",
		"nodes":    s.graph.Len(),
		"edges":    s.graph.EdgeCount(),
		"walkable": s.graph.WalkableCount(),
		"indexed":  s.graph.Indexed(),
		"workers":  s.service.Workers(),
		"pending":  s.service.Pending(),
	})
}

func (s *Server) submitError(w http.ResponseWriter, err error) {
	if errors.Is(err, pathservice.ErrClosed) {
		http.Error(w, "Service is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.logger.Error("failed to submit path requests", zap.Error(err))
	http.Error(w, "failed to submit", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
