// Package api provides the HTTP REST API server for GridSage.
//
// It exposes endpoints for the European day-ahead price grid, the Swiss
// smart consumption dashboard, volatility analysis, the conversational
// assistant, and WebSocket streaming.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gridsage/gridsage/internal/assistant"
	"github.com/gridsage/gridsage/internal/config"
	"github.com/gridsage/gridsage/internal/insight"
	"github.com/gridsage/gridsage/internal/llm"
	"github.com/gridsage/gridsage/internal/market"
	"github.com/gridsage/gridsage/internal/volatility"
	"github.com/gridsage/gridsage/pkg/models"
	"github.com/gridsage/gridsage/pkg/utils"
)

// Version is stamped by the build; "dev" otherwise.
var Version = "dev"

// Server is the HTTP API server.
type Server struct {
	router    chi.Router
	cfg       *config.Config
	market    *market.Service
	assistant *assistant.Service
	wsHub     *WSHub
}

// NewServer creates a configured API server with all routes and
// middleware. Missing provider credentials degrade the affected
// endpoints to 503 instead of failing startup.
func NewServer(cfg *config.Config) (*Server, error) {
	var marketSvc *market.Service
	session, err := insight.NewSession(insight.Config{
		ClientID:     cfg.Insight.ClientID,
		ClientSecret: cfg.Insight.ClientSecret,
		AuthURL:      cfg.Insight.AuthURL,
		BaseURL:      cfg.Insight.BaseURL,
	})
	switch {
	case err == nil:
		marketSvc = market.NewService(session)
	case errors.Is(err, insight.ErrNotInitialized):
		log.Println("insight credentials missing, price endpoints disabled")
	default:
		return nil, err
	}

	var assistantSvc *assistant.Service
	if cfg.LLM.OpenAIKey != "" {
		provider, err := llm.NewOpenAIProvider(cfg.LLM.OpenAIKey, llm.WithModel(cfg.LLM.Model))
		if err != nil {
			return nil, err
		}
		assistantSvc = assistant.NewService(provider, marketSvc, assistant.Config{
			SessionCapacity: cfg.Assistant.SessionCapacity,
			SessionTTL:      time.Duration(cfg.Assistant.SessionTTLMin) * time.Minute,
			ChatOptions: &llm.ChatOptions{
				Model:       cfg.LLM.Model,
				Temperature: cfg.LLM.Temperature,
				MaxTokens:   cfg.LLM.MaxTokens,
			},
		})
	} else {
		log.Println("OpenAI key missing, chat endpoint disabled")
	}

	srv := &Server{
		cfg:       cfg,
		market:    marketSvc,
		assistant: assistantSvc,
		wsHub:     NewWSHub(),
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.wsHub.Run()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/europe/prices", s.handleEuropePrices)
		r.Get("/dashboard/swiss-smart", s.handleSwissSmart)
		r.Post("/chat", s.handleChat)
		r.Post("/volatility", s.handleVolatility)
		r.Get("/config/keys", s.handleConfigKeys)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// ============================================================
// Request types
// ============================================================

// VolatilityRequest is the body for POST /v1/volatility.
type VolatilityRequest struct {
	Area string `json:"area"`
	Date string `json:"date"` // YYYY-MM-DD
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"version":   Version,
		"insight":   s.market != nil,
		"assistant": s.assistant != nil,
		"time_cet":  utils.FormatDateTime(utils.NowCET()),
	})
}

func (s *Server) handleEuropePrices(w http.ResponseWriter, r *http.Request) {
	if s.market == nil {
		writeError(w, http.StatusServiceUnavailable, "insight session not initialized")
		return
	}

	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date query parameter is required")
		return
	}
	date, err := utils.ParseDate(dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	run := r.URL.Query().Get("run")
	if run == "" {
		run = market.DefaultRun
	}

	grid, err := s.market.EuropePrices(r.Context(), date, run)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.wsHub.Broadcast(WSMessage{Type: "prices", Data: map[string]interface{}{
		"date":    grid.Date,
		"run":     grid.Run,
		"missing": grid.Missing,
	}})
	writeJSON(w, http.StatusOK, grid)
}

func (s *Server) handleSwissSmart(w http.ResponseWriter, r *http.Request) {
	if s.market == nil {
		writeError(w, http.StatusServiceUnavailable, "insight session not initialized")
		return
	}

	dash, err := s.market.SwissSmart(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dash)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant not configured")
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	turn := s.assistant.Run(ctx, req.Message, req.SessionID)

	s.wsHub.Broadcast(WSMessage{Type: "chat", Data: map[string]interface{}{
		"session_id": turn.SessionID,
	}})
	writeJSON(w, http.StatusOK, turn)
}

func (s *Server) handleVolatility(w http.ResponseWriter, r *http.Request) {
	if s.market == nil {
		writeError(w, http.StatusServiceUnavailable, "insight session not initialized")
		return
	}

	var req VolatilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	area := strings.ToLower(strings.TrimSpace(req.Area))
	if !market.ValidArea(area) {
		writeError(w, http.StatusBadRequest, "unknown area: "+req.Area)
		return
	}
	date, err := utils.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	from, to := volatility.Lookback(date)
	series, err := s.market.ActualsHourly(r.Context(), area, from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	report, err := volatility.Analyze(series, date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	report.Area = strings.ToUpper(area)

	s.wsHub.Broadcast(WSMessage{Type: "volatility", Data: map[string]interface{}{
		"area": report.Area,
		"date": report.Date,
	}})
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"keys": s.cfg.CheckAPIKeys(),
	})
}

// ============================================================
// Helpers
// ============================================================

// writeServiceError maps domain errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, insight.ErrNotInitialized):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, market.ErrUnknownArea):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, market.ErrCurveNotFound), errors.Is(err, market.ErrNoData):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, volatility.ErrInsufficientData):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write JSON response: %v", err)
	}
}

// writeError emits the {"detail": ...} error body used across the API.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
