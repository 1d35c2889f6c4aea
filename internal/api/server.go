package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yanun0323/logs"

	"main/internal/core"
	"main/internal/execution"
	"main/internal/notify"
	"main/internal/obs"
	"main/internal/position"
	"main/internal/stop"
	"main/pkg/exception"
)

// Server is the admin surface: auto-orders, stops, alerts, positions,
// orders and the desktop alert stream.
type Server struct {
	core      *core.Service
	exec      *execution.Engine
	stops     *stop.Service
	alerts    *notify.Manager
	positions *position.Manager
	metrics   *obs.Metrics
	hub       *notify.Hub

	engine *gin.Engine
	srv    *http.Server
}

func NewServer(coreSvc *core.Service, exec *execution.Engine, stops *stop.Service, alerts *notify.Manager, positions *position.Manager, metrics *obs.Metrics, hub *notify.Hub) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		core:      coreSvc,
		exec:      exec,
		stops:     stops,
		alerts:    alerts,
		positions: positions,
		metrics:   metrics,
		hub:       hub,
		engine:    engine,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")
	{
		v1.POST("/auto-orders", s.handleCreateAutoOrder)
		v1.GET("/auto-orders", s.handleListAutoOrders)
		v1.POST("/auto-orders/:id/pause", s.handlePauseAutoOrder)
		v1.POST("/auto-orders/:id/resume", s.handleResumeAutoOrder)
		v1.DELETE("/auto-orders/:id", s.handleDeleteAutoOrder)

		v1.GET("/orders", s.handleListOrders)
		v1.GET("/orders/:id", s.handleGetOrder)

		v1.GET("/positions", s.handleListPositions)

		v1.POST("/stops", s.handleActivateStop)
		v1.GET("/stops", s.handleListStops)
		v1.DELETE("/stops/:id", s.handleCancelStop)

		v1.GET("/alerts", s.handleListAlerts)
		v1.POST("/alerts/:id/ack", s.handleAckAlert)
		v1.POST("/alerts/:id/resolve", s.handleResolveAlert)

		v1.GET("/metrics", s.handleMetrics)
	}

	if s.hub != nil {
		s.engine.GET("/v1/stream", gin.WrapH(s.hub))
	}

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logs.Infof("admin api listening on %s", addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, exception.ErrNotFound),
		errors.Is(err, exception.ErrNotifyUnknownAlert),
		errors.Is(err, exception.ErrStopUnknownRecord),
		errors.Is(err, exception.ErrOrderUnknown):
		return http.StatusNotFound
	case errors.Is(err, exception.ErrStopBadConfirmToken):
		return http.StatusForbidden
	case errors.Is(err, exception.ErrStopDuplicateActive),
		errors.Is(err, exception.ErrStopNotActive),
		errors.Is(err, exception.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, exception.ErrInvalidArgument),
		errors.Is(err, exception.ErrStopInvalidLevel):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
