package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"vigila/src/alerts"
	"vigila/src/helpers"
	"vigila/src/logger"
	"vigila/src/models"
	"vigila/src/session"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humagin"
	"github.com/gin-gonic/gin"
)

const (
	headerUserID = "X-User-Id"
	headerEmail  = "X-User-Email"
)

// -----------------------------------------------------------------------------
// APIServer serves the watchlist REST API, the OpenAPI docs and the push socket.
// -----------------------------------------------------------------------------

type APIServer struct {
	Config   *models.MConfig
	Logger   *logger.Logger
	Registry *session.Registry
	Alerts   *alerts.Job // nil disables the alert endpoint

	engine *gin.Engine
	api    huma.API
	hub    *Hub
	http   *http.Server

	contactMu sync.Mutex
	contacts  map[string]string
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(cfg *models.MConfig, registry *session.Registry, job *alerts.Job, log *logger.Logger) *APIServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &APIServer{
		Config:   cfg,
		Logger:   log,
		Registry: registry,
		Alerts:   job,
		engine:   gin.New(),
		hub:      NewHub(log.Named("Hub")),
		contacts: make(map[string]string),
	}
	s.hub.OnCommand = s.handleCommand
	s.hub.OnDisconnect = s.handleDisconnect

	s.engine.Use(gin.Recovery(), s.requestLogger(), corsMiddleware())

	humaCfg := huma.DefaultConfig(cfg.Name+" API", "1.0.0")
	s.api = humagin.New(s.engine, humaCfg)

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, "+headerUserID+", "+headerEmail)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// -----------------------------------------------------------------------------

func (s *APIServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.Debug("%s %s -> %d (%d bytes, %d ms)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.Writer.Size(), time.Since(start).Milliseconds())
	}
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Handler exposes the router, mainly for tests.
func (s *APIServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------

// Start runs the hub and serves HTTP until Stop. It blocks.
func (s *APIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	go s.hub.Run()

	s.http = &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *APIServer) Stop() error {
	s.hub.Stop()
	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast pushes a state change to the user's websocket clients.
func (s *APIServer) Broadcast(message *models.MPushMessage) {
	s.hub.Broadcast(message)
}

// -----------------------------------------------------------------------------

func (s *APIServer) handleCommand(userID string, cmd models.MClientCommand) {
	switch cmd.Command {
	case models.CommandInput:
		w, err := s.Registry.Widget(userID, cmd.WidgetID)
		if err != nil {
			s.Logger.Debug("Input for unknown widget %s of %s", cmd.WidgetID, userID)
			return
		}
		if err := w.Input(cmd.Query); err != nil {
			s.Logger.Debug("Input rejected for widget %s: %v", cmd.WidgetID, err)
		}

	case models.CommandRefresh:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		view, err := s.Registry.View(ctx, userID)
		if err != nil {
			return
		}
		if err := view.Refresh(ctx); err != nil {
			s.Logger.Warning("Refresh for %s failed: %v", userID, err)
		}
	}
}

// -----------------------------------------------------------------------------

// handleDisconnect closes the widgets of a user whose last client left. A
// reconnect that raced the hub keeps them open.
func (s *APIServer) handleDisconnect(userID string) {
	if s.hub.Clients(userID) > 0 {
		return
	}
	if n := s.Registry.ReleaseUser(userID); n > 0 {
		s.Logger.Info("Closed %d widgets of %s after its last client left", n, userID)
	}
}

// -----------------------------------------------------------------------------
// Identity
// -----------------------------------------------------------------------------

// UserHeaders identifies the caller. Authentication happens upstream.
type UserHeaders struct {
	UserID string `header:"X-User-Id" doc:"Authenticated user id"`
	Email  string `header:"X-User-Email" doc:"Contact address for volume alerts"`
}

// identify returns the caller's user id and records a new contact address.
func (s *APIServer) identify(ctx context.Context, h UserHeaders) (string, error) {
	userID := strings.TrimSpace(h.UserID)
	if userID == "" {
		return "", huma.Error401Unauthorized("missing " + headerUserID + " header")
	}

	email := strings.TrimSpace(h.Email)
	if email == "" {
		return userID, nil
	}

	s.contactMu.Lock()
	known := s.contacts[userID] == email
	s.contactMu.Unlock()
	if known {
		return userID, nil
	}

	if err := s.Registry.RecordContact(ctx, userID, email); err != nil {
		s.Logger.Warning("Failed to record contact for %s: %v", userID, err)
		return userID, nil
	}
	s.contactMu.Lock()
	s.contacts[userID] = email
	s.contactMu.Unlock()
	return userID, nil
}

// -----------------------------------------------------------------------------
// Error mapping
// -----------------------------------------------------------------------------

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var statusErr huma.StatusError
	if errors.As(err, &statusErr) {
		return err
	}

	switch {
	case helpers.IsNotAuthenticated(err):
		return huma.Error401Unauthorized(err.Error())
	case errors.Is(err, helpers.ErrWidgetNotFound),
		errors.Is(err, helpers.ErrWidgetClosed),
		errors.Is(err, helpers.ErrSymbolNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, helpers.ErrCommitInProgress),
		errors.Is(err, alerts.ErrAlreadyRunning):
		return huma.Error409Conflict(err.Error())
	case helpers.IsValidation(err):
		return huma.Error400BadRequest(err.Error())
	case helpers.IsNetwork(err), helpers.IsDatabase(err):
		return huma.Error502BadGateway(err.Error())
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}
