// Package server exposes liveness and readiness endpoints for the bot process.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/EternisAI/image-vault/pkg/db"
	"github.com/EternisAI/image-vault/pkg/events"
	"github.com/EternisAI/image-vault/pkg/lazy"
)

const (
	MongoUp       = "up"
	MongoDown     = "down"
	MongoIdle     = "idle"
	MongoDisabled = "disabled"

	pingTimeout = 2 * time.Second
)

type backend interface {
	Backend() string
}

type Status struct {
	Store  string           `json:"store"`
	Mongo  string           `json:"mongo"`
	Events map[string]int64 `json:"events"`
	Uptime string           `json:"uptime"`
}

type Server struct {
	logger  *log.Logger
	items   backend
	mongo   *db.Mongo
	started time.Time
	counts  map[events.Action]*atomic.Int64
	router  *chi.Mux
	http    *http.Server
}

// New builds the status server and subscribes its counters to bus when non-nil.
func New(addr string, items backend, mongo *db.Mongo, bus *events.Bus, logger *log.Logger) *Server {
	s := &Server{
		logger:  logger,
		items:   items,
		mongo:   mongo,
		started: time.Now(),
		counts:  make(map[events.Action]*atomic.Int64, len(events.Actions)),
	}
	for _, action := range events.Actions {
		s.counts[action] = &atomic.Int64{}
	}
	if bus != nil {
		for _, action := range events.Actions {
			bus.Subscribe(action, s.count)
		}
	}

	s.router = s.setupRouter()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) setupRouter() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/healthz", s.healthHandler)
	router.Get("/readyz", s.readyHandler)
	return router
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) count(_ context.Context, event events.ItemEvent) error {
	if c, ok := s.counts[event.Action]; ok {
		c.Add(1)
	}
	return nil
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	go func() {
		s.logger.Info("Starting status server", "address", listener.Addr().String())
		if err := s.http.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Status server error", "error", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down status server")
	return s.http.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	status := s.Status(r.Context())

	code := http.StatusOK
	if status.Mongo == MongoDown {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error("Failed to encode status", "error", err)
	}
}

func (s *Server) Status(ctx context.Context) Status {
	counts := make(map[string]int64, len(s.counts))
	for action, c := range s.counts {
		counts[string(action)] = c.Load()
	}
	return Status{
		Store:  s.items.Backend(),
		Mongo:  s.mongoStatus(ctx),
		Events: counts,
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}
}

// mongoStatus never dials; "idle" means no connection has been needed yet.
func (s *Server) mongoStatus(ctx context.Context) string {
	if !s.mongo.Configured() {
		return MongoDisabled
	}
	switch s.mongo.State() {
	case lazy.StateReady:
		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := s.mongo.Ping(ctx); err != nil {
			s.logger.Warn("MongoDB ping failed", "error", err)
			return MongoDown
		}
		return MongoUp
	case lazy.StateFailed:
		return MongoDown
	default:
		return MongoIdle
	}
}
