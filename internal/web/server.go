// Package web serves the master's read-only query interface and the
// websocket live feed.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/user/gridpulse/internal/master"
	"github.com/user/gridpulse/internal/store"
	"github.com/user/gridpulse/internal/util"
)

// Server is the query-interface HTTP server.
type Server struct {
	cfg    *util.Config
	engine *master.Engine
	store  *store.Store
	hub    *Hub
	srv    *http.Server
}

// NewServer creates the server. hub may be nil to disable the live feed.
func NewServer(cfg *util.Config, engine *master.Engine, st *store.Store, hub *Hub) *Server {
	return &Server{cfg: cfg, engine: engine, store: st, hub: hub}
}

// Router builds the gin router. Exposed separately so tests can drive it
// with httptest without binding a port.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	h := NewHandlers(s.cfg, s.engine, s.store)

	api := r.Group("/api")
	{
		api.GET("/status", h.GetStatus)
		api.GET("/outstation/:id", h.GetOutstation)
		api.GET("/measurements/:id", h.GetMeasurements)
		api.GET("/stats/:id", h.GetStats)
		api.GET("/config", h.GetConfig)
		api.GET("/health", h.Health)
	}

	if s.hub != nil {
		r.GET("/ws", s.hub.Serve)
	}

	return r
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.APIPort),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		util.Info("Query API listening on port %d", s.cfg.APIPort)
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
