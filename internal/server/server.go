// Package server provides the HTTP API for carebook.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/carebook/carebook/internal/auth"
	"github.com/carebook/carebook/internal/chatbot"
	"github.com/carebook/carebook/internal/config"
	"github.com/carebook/carebook/internal/knowledge"
	"github.com/carebook/carebook/internal/storage"
	"github.com/carebook/carebook/internal/uploads"
)

// Server is the HTTP server for the carebook API.
type Server struct {
	store    storage.Store
	authSvc  *auth.Service
	answerer *chatbot.Answerer
	base     *knowledge.Base
	uploads  *uploads.Store
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	store storage.Store,
	authSvc *auth.Service,
	answerer *chatbot.Answerer,
	base *knowledge.Base,
	uploadStore *uploads.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		store:    store,
		authSvc:  authSvc,
		answerer: answerer,
		base:     base,
		uploads:  uploadStore,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/auth/register", s.handleRegister)
	r.Post("/api/v1/auth/login", s.handleLogin)
	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/status", s.handleStatus)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.authSvc))

		r.Post("/api/v1/auth/password", s.handleChangePassword)
		r.Post("/api/v1/triage", s.handleTriage)
		r.Post("/api/v1/ask", s.handleAsk)

		r.Post("/api/v1/appointments", s.handleBookAppointment)
		r.Get("/api/v1/appointments", s.handleListAppointments)
		r.Get("/api/v1/appointments/{id}", s.handleGetAppointment)

		r.Post("/api/v1/prescriptions", s.handleUploadPrescription)
		r.Get("/api/v1/prescriptions", s.handleListPrescriptions)
		r.Get("/api/v1/prescriptions/{name}", s.handleDownloadPrescription)

		r.Get("/api/v1/suggestions", s.handleListSuggestions)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireDoctor)
			r.Put("/api/v1/appointments/{id}/status", s.handleUpdateAppointmentStatus)
			r.Post("/api/v1/suggestions", s.handleCreateSuggestion)
		})
	})

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
