// Package api provides the HTTP API for observing a running simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/engine"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/persistence"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/report"
)

const maxTick = uint64(1<<63 - 1) // SQLite integers are signed

// Server serves the simulation state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB // Optional; run history endpoints return 503 without it
	RunID    string
	Epoch    time.Time
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	started time.Time
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}
	// Full snapshots with mosquito positions can run to thousands of entries.
	snapshotLimiter := NewRateLimiter(60, time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/snapshot", RateLimitMiddleware(snapshotLimiter, s.handleSnapshot))
	mux.HandleFunc("GET /api/v1/habitats", s.handleHabitats)
	mux.HandleFunc("GET /api/v1/series", s.handleSeries)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}/series", s.handleRunSeries)

	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	return corsMiddleware(mux)
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP server shutdown", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no api.adminKey set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	completed := s.Sim.Completed()
	latest := s.Sim.Latest()

	status := map[string]any{
		"run_id":          s.RunID,
		"ticks_completed": completed,
		"sim_time":        engine.SimTime(s.Epoch, completed),
		"started":         humanize.Time(s.started),
		"running":         s.Eng != nil && s.Eng.Running(),
		"counts":          latest,
		"humans":          latest.Humans(),
		"mosquitoes":      humanize.Comma(int64(latest.Mosquitoes())),
		"stats":           s.Sim.CurrentStats(),
	}
	if s.Eng != nil {
		status["horizon"] = s.Eng.Horizon
		status["speed"] = s.Eng.Speed()
	}
	writeJSON(w, status)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	withMosquitoes, _ := strconv.ParseBool(r.URL.Query().Get("mosquitoes"))
	writeJSON(w, s.Sim.Snapshot(withMosquitoes))
}

func (s *Server) handleHabitats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.HabitatViews())
}

// tickRange parses the from/to query parameters, defaulting to everything.
func tickRange(r *http.Request) (from, to uint64, err error) {
	from, to = 0, maxTick
	if f := r.URL.Query().Get("from"); f != "" {
		if from, err = strconv.ParseUint(f, 10, 64); err != nil {
			return 0, 0, fmt.Errorf("invalid from %q", f)
		}
	}
	if t := r.URL.Query().Get("to"); t != "" {
		if to, err = strconv.ParseUint(t, 10, 64); err != nil {
			return 0, 0, fmt.Errorf("invalid to %q", t)
		}
	}
	if to > maxTick {
		to = maxTick
	}
	if from > to {
		return 0, 0, fmt.Errorf("from %d is after to %d", from, to)
	}
	return from, to, nil
}

// resample applies the resolution query parameter. Day and week views
// start from aligned to the period boundary below it.
func resample(resolution string, load func(from, to uint64) ([]engine.Counts, error), from, to uint64) (any, error) {
	switch resolution {
	case "", "hour":
		return load(from, to)
	case "day":
		series, err := load(from-from%report.HoursPerDay, to)
		if err != nil {
			return nil, err
		}
		return report.Daily(series), nil
	case "week":
		series, err := load(from-from%report.HoursPerWeek, to)
		if err != nil {
			return nil, err
		}
		return report.Weekly(series), nil
	default:
		return nil, errBadResolution
	}
}

var errBadResolution = errors.New("resolution must be hour, day or week")

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	from, to, err := tickRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	load := func(from, to uint64) ([]engine.Counts, error) {
		return s.Sim.SeriesCopy(from, to), nil
	}
	out, err := resample(r.URL.Query().Get("resolution"), load, from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, out)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	runs, err := s.DB.ListRuns(limit)
	if err != nil {
		slog.Error("list runs failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

func (s *Server) handleRunSeries(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	id := r.PathValue("id")
	if _, err := s.DB.GetRun(id); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		slog.Error("get run failed", "run", id, "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	from, to, err := tickRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	load := func(from, to uint64) ([]engine.Counts, error) {
		return s.DB.LoadSeries(id, from, to)
	}
	out, err := resample(r.URL.Query().Get("resolution"), load, from, to)
	if errors.Is(err, errBadResolution) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("load series failed", "run", id, "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, out)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not available", http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
