package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"velowind/internal/config"
	"velowind/internal/models"
	"velowind/internal/safety"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultForecastDays = 5
	defaultWarningLimit = 50
	maxWarningLimit     = 500
)

// WindService is the wind engine surface exposed over HTTP
type WindService interface {
	GetDetailedWindData(ctx context.Context, location models.GeoLocation) (*models.WindData, error)
	GetWindForecast(ctx context.Context, location models.GeoLocation, days int) (*models.WindForecast, error)
	GetWindSafetyRecommendation(ctx context.Context, location models.GeoLocation, experience safety.Experience, terrain safety.Terrain) (*models.SafetyRecommendation, error)
	CheckMountainPassWindConditions(ctx context.Context, colID string, location models.GeoLocation) (*models.MountainPassReport, error)
}

// WarningLister reads archived warnings
type WarningLister interface {
	GetWarnings(ctx context.Context, colID string, limit int) ([]models.WindWarning, error)
}

// Server represents the HTTP server
type Server struct {
	wind     WindService
	warnings WarningLister
	cols     []config.Col
	logger   *slog.Logger
	mux      *http.ServeMux
	srv      *http.Server
}

// NewServer creates a new HTTP server. warnings may be nil when no archive
// is configured, and a nil gatherer serves the default registry.
func NewServer(svc WindService, warnings WarningLister, cols []config.Col, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		wind:     svc,
		warnings: warnings,
		cols:     cols,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	// Register routes
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /wind", s.handleWind)
	s.mux.HandleFunc("GET /forecast", s.handleForecast)
	s.mux.HandleFunc("GET /safety", s.handleSafety)
	s.mux.HandleFunc("GET /cols", s.handleCols)
	s.mux.HandleFunc("GET /cols/{id}", s.handleCol)
	s.mux.HandleFunc("GET /warnings", s.handleWarnings)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("http server listening", "addr", addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops a started server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// handleHealth returns the server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().String(),
	})
}

// handleWind returns current surface wind for ?lat&lon
func (s *Server) handleWind(w http.ResponseWriter, r *http.Request) {
	loc, err := parseLocation(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := s.wind.GetDetailedWindData(r.Context(), loc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// handleForecast returns the forecast for ?lat&lon&days
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	loc, err := parseLocation(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	days := defaultForecastDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		d, err := strconv.Atoi(daysStr)
		if err != nil {
			http.Error(w, "days must be an integer", http.StatusBadRequest)
			return
		}
		days = d
	}

	fc, err := s.wind.GetWindForecast(r.Context(), loc, days)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

// handleSafety returns a riding recommendation for ?lat&lon&experience&terrain
func (s *Server) handleSafety(w http.ResponseWriter, r *http.Request) {
	loc, err := parseLocation(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	rec, err := s.wind.GetWindSafetyRecommendation(r.Context(), loc,
		safety.ParseExperience(q.Get("experience")), safety.ParseTerrain(q.Get("terrain")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(s.cols),
		"cols":  s.cols,
	})
}

// handleCol returns the mountain pass report of a configured col
func (s *Server) handleCol(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	col, ok := s.findCol(id)
	if !ok {
		http.Error(w, "unknown col: "+id, http.StatusNotFound)
		return
	}

	report, err := s.wind.CheckMountainPassWindConditions(r.Context(), col.ID, col.Location())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleWarnings returns archived warnings, optionally filtered by ?col
func (s *Server) handleWarnings(w http.ResponseWriter, r *http.Request) {
	if s.warnings == nil {
		http.Error(w, "warning archive not configured", http.StatusServiceUnavailable)
		return
	}

	limit := defaultWarningLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = min(l, maxWarningLimit)
		}
	}

	warnings, err := s.warnings.GetWarnings(r.Context(), r.URL.Query().Get("col"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(warnings),
		"warnings": warnings,
	})
}

func (s *Server) findCol(id string) (config.Col, bool) {
	for _, col := range s.cols {
		if col.ID == id {
			return col, true
		}
	}
	return config.Col{}, false
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	http.Error(w, err.Error(), http.StatusBadGateway)
}

func parseLocation(r *http.Request) (models.GeoLocation, error) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return models.GeoLocation{}, errors.New("lat is required and must be a number")
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		return models.GeoLocation{}, errors.New("lon is required and must be a number")
	}

	if !(lat >= -90 && lat <= 90) {
		return models.GeoLocation{}, errors.New("latitude must be between -90 and 90")
	}
	if !(lon >= -180 && lon <= 180) {
		return models.GeoLocation{}, errors.New("longitude must be between -180 and 180")
	}

	return models.GeoLocation{Lat: lat, Lon: lon, Name: q.Get("name")}, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
