// Package chatapi is the HTTP surface of the chat client: tool catalogue,
// tool execution, installs, the streaming chat endpoint and screenshot
// intake.
package chatapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"goa.design/clue/log"

	"github.com/inspirepan/chatcore/internal/orchestrator"
	"github.com/inspirepan/chatcore/internal/store"
	"github.com/inspirepan/chatcore/registry"
)

const defaultMaxBody = 10 << 20

// Config wires a Server.
type Config struct {
	Registry     *registry.Registry
	Orchestrator *orchestrator.Service
	// Store persists installs; nil serves only the default install list.
	Store *store.Store

	ToolTimeout time.Duration
	CORSOrigin  string
	MaxBody     int64
	// Now stamps default installs and screenshot receipts.
	Now func() time.Time
}

// Server serves the chat API.
type Server struct {
	reg         *registry.Registry
	chat        *orchestrator.Service
	store       *store.Store
	toolTimeout time.Duration
	corsOrigin  string
	maxBody     int64
	now         func() time.Time
}

// New returns a Server for cfg.
func New(cfg Config) *Server {
	s := &Server{
		reg:         cfg.Registry,
		chat:        cfg.Orchestrator,
		store:       cfg.Store,
		toolTimeout: cfg.ToolTimeout,
		corsOrigin:  cfg.CORSOrigin,
		maxBody:     cfg.MaxBody,
		now:         cfg.Now,
	}
	if s.maxBody <= 0 {
		s.maxBody = defaultMaxBody
	}
	if s.toolTimeout <= 0 {
		s.toolTimeout = 30 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Handler returns the routed handler. logCtx carries the clue logger used
// for request logs.
func (s *Server) Handler(logCtx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(log.HTTP(logCtx))
	r.Use(s.cors)
	r.Use(middleware.RequestSize(s.maxBody))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)

	r.Route("/api", func(api chi.Router) {
		api.Route("/tools", func(r chi.Router) {
			r.Get("/available", s.availableTools)
			r.Get("/search", s.searchTools)
			r.Post("/execute", s.executeTool)
			r.Get("/marketplace", s.marketplace)
			r.Post("/install", s.installTool)
			r.Get("/installed", s.installedTools)
			r.Delete("/installed/{toolId}", s.uninstallTool)
		})
		api.Post("/chat", s.chatHandler)
		api.Get("/screenshot", s.screenshotInfo)
		api.Post("/screenshot", s.screenshot)
	})
	return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "tools": s.reg.Len()})
}

func (s *Server) cors(next http.Handler) http.Handler {
	origin := strings.TrimSpace(s.corsOrigin)
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, user-id")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
