// Package api provides the operator-facing HTTP and WebSocket surface:
// halt state, the alert log, backtest and stress results, and the
// Prometheus scrape endpoint.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/quantforge/riskengine/internal/monitor"
	"github.com/quantforge/riskengine/internal/regime"
	"github.com/quantforge/riskengine/internal/stress"
	"github.com/quantforge/riskengine/pkg/types"
)

// Server is the ops API server. Result setters may be called at any
// time; reads are served from the latest snapshot.
type Server struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	config     types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
	session    *monitor.Session
	registry   *prometheus.Registry

	performance  *types.PerformanceMetrics
	stressReport *stress.Report
	regime       *regime.Classification
}

// NewServer creates an ops API server bound to one monitoring session.
// registry may be nil to disable the scrape endpoint.
func NewServer(logger *zap.Logger, config types.ServerConfig, session *monitor.Session, registry *prometheus.Registry) *Server {
	s := &Server{
		logger:   logger,
		config:   config,
		router:   mux.NewRouter(),
		session:  session,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/v1/halt", s.handleHalt).Methods("GET")
	s.router.HandleFunc("/api/v1/halt/reset", s.handleHaltReset).Methods("POST")
	s.router.HandleFunc("/api/v1/alerts", s.handleAlerts).Methods("GET")
	s.router.HandleFunc("/api/v1/performance", s.handlePerformance).Methods("GET")
	s.router.HandleFunc("/api/v1/stress", s.handleStress).Methods("GET")
	s.router.HandleFunc("/api/v1/regime", s.handleRegime).Methods("GET")
	s.router.HandleFunc("/ws/alerts", s.handleAlertStream)

	if s.registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
}

// Router exposes the route table for embedding and tests.
func (s *Server) Router() *mux.Router { return s.router }

// SetPerformance publishes the latest backtest metrics.
func (s *Server) SetPerformance(m types.PerformanceMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.performance = &m
}

// SetStressReport publishes the latest stress test report.
func (s *Server) SetStressReport(r *stress.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stressReport = r
}

// SetRegime publishes the latest regime classification.
func (s *Server) SetRegime(c regime.Classification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regime = &c
}

// Start runs the server until Stop or a listener error.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("starting ops API server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"session": s.session.ID(),
		"time":    time.Now().Unix(),
	})
}

func (s *Server) handleHalt(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.HaltState())
}

func (s *Server) handleHaltReset(w http.ResponseWriter, r *http.Request) {
	s.session.Reset()
	s.logger.Info("halt state reset by operator")
	writeJSON(w, http.StatusOK, s.session.HaltState())
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := s.session.Alerts()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.performance == nil {
		writeError(w, http.StatusNotFound, "no backtest has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, s.performance)
}

func (s *Server) handleStress(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stressReport == nil {
		writeError(w, http.StatusNotFound, "no stress test has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, s.stressReport)
}

func (s *Server) handleRegime(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.regime == nil {
		writeError(w, http.StatusNotFound, "no regime classification yet")
		return
	}
	writeJSON(w, http.StatusOK, s.regime)
}

// handleAlertStream upgrades to WebSocket and forwards live alerts from
// the session feed. A write error or client disconnect ends the stream.
func (s *Server) handleAlertStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	feed, cancel := s.session.Subscribe(64)
	defer cancel()

	// Drain client reads so control frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for alert := range feed {
		payload, err := json.Marshal(alert)
		if err != nil {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
