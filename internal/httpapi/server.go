package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/confluence/internal/store"
)

type requestIDKey struct{}

// Config mirrors the teacher's ServerConfig: local-only by default, with the
// port overridable via HTTP_PORT.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func DefaultConfig() Config {
	port := 8090
	if portStr := os.Getenv("HTTP_PORT"); portStr != "" {
		if p, err := strconv.Atoi(portStr); err == nil {
			port = p
		}
	}
	return Config{
		Host:         "127.0.0.1",
		Port:         port,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server is the read-mostly HTTP surface over the confluence store (spec §6,
// boundary-only per the Non-goals around chat/interpretation logic).
type Server struct {
	router *mux.Router
	server *http.Server
	config Config
	h      *handlers
}

// NewServer wires the store into handlers and builds the route table. It
// probes the port the way the teacher does, failing fast rather than
// discovering a bind conflict on Start.
func NewServer(s store.Store, backtests *backtestRegistry, config Config) (*Server, error) {
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("httpapi: port %d busy or unavailable: %w", config.Port, err)
	}
	listener.Close()

	srv := &Server{
		router: mux.NewRouter(),
		config: config,
		h:      newHandlers(s, backtests),
	}
	srv.setupRoutes()
	srv.server = &http.Server{
		Addr:         addr,
		Handler:      srv.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return srv, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.timeoutMiddleware)
	s.router.Use(s.corsMiddleware)

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(s.jsonContentTypeMiddleware)

	api.HandleFunc("/health", s.h.Health).Methods("GET")

	api.HandleFunc("/api/prices/{symbol}", s.h.Prices).Methods("GET")
	api.HandleFunc("/api/signals/ta/{symbol}", s.h.TASignal).Methods("GET")
	api.HandleFunc("/api/onchain/{symbol}", s.h.OnChainSignal).Methods("GET")
	api.HandleFunc("/api/celestial/current", s.h.CelestialCurrent).Methods("GET")
	api.HandleFunc("/api/numerology/current", s.h.NumerologyCurrent).Methods("GET")
	api.HandleFunc("/api/sentiment/{symbol}", s.h.SentimentSignal).Methods("GET")
	api.HandleFunc("/api/political/signal", s.h.PoliticalSignal).Methods("GET")
	api.HandleFunc("/api/macro/signal", s.h.MacroSignal).Methods("GET")

	api.HandleFunc("/api/confluence/{symbol}", s.h.Confluence).Methods("GET")
	api.HandleFunc("/api/confluence/weights", s.h.GetWeights).Methods("GET")
	api.HandleFunc("/api/confluence/weights", s.h.PostWeights).Methods("POST")

	api.HandleFunc("/api/alerts", s.h.ListAlerts).Methods("GET")
	api.HandleFunc("/api/alerts/{id}/acknowledge", s.h.AcknowledgeAlert).Methods("POST")

	api.HandleFunc("/api/backtest/cycle", s.h.PostCycleBacktest).Methods("POST")
	api.HandleFunc("/api/backtest/signals", s.h.PostSignalBacktest).Methods("POST")
	api.HandleFunc("/api/backtest/results/{id}", s.h.GetBacktestResult).Methods("GET")

	api.HandleFunc("/api/cycles", s.h.ListCycles).Methods("GET")
	api.HandleFunc("/api/cycles", s.h.PostCycle).Methods("POST")
	api.HandleFunc("/api/cycles/{id}/status", s.h.CycleStatus).Methods("GET")

	s.router.HandleFunc("/api/stream", s.h.Stream)

	s.router.NotFoundHandler = http.HandlerFunc(s.h.NotFound)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		log.Info().
			Str("request_id", fmt.Sprint(r.Context().Value(requestIDKey{}))).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("httpapi starting")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("httpapi shutting down")
	return s.server.Shutdown(ctx)
}

func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
