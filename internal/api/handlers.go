package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleCreateAutoOrder(c *gin.Context) {
	var req AutoOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	auto, err := req.toModel()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cond, err := buildCondition(req.Condition, req.Symbol)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := s.core.RegisterAutoOrder(c.Request.Context(), auto, cond)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleListAutoOrders(c *gin.Context) {
	c.JSON(http.StatusOK, s.core.AutoOrders())
}

func (s *Server) handlePauseAutoOrder(c *gin.Context) {
	auto, err := s.core.SetPaused(c.Request.Context(), c.Param("id"), true)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, auto)
}

func (s *Server) handleResumeAutoOrder(c *gin.Context) {
	auto, err := s.core.SetPaused(c.Request.Context(), c.Param("id"), false)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, auto)
}

func (s *Server) handleDeleteAutoOrder(c *gin.Context) {
	if err := s.core.RemoveAutoOrder(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListOrders(c *gin.Context) {
	c.JSON(http.StatusOK, s.exec.Orders().All())
}

func (s *Server) handleGetOrder(c *gin.Context) {
	order, ok := s.exec.Orders().Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) handleListPositions(c *gin.Context) {
	c.JSON(http.StatusOK, s.positions.All())
}

func (s *Server) handleActivateStop(c *gin.Context) {
	var req StopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	level, err := parseStopLevel(req.Level)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	triggeredBy := req.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = "api"
	}

	record, err := s.stops.ActivateManual(c.Request.Context(), level, req.TargetID, req.Reason, req.ConfirmToken, triggeredBy)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (s *Server) handleListStops(c *gin.Context) {
	c.JSON(http.StatusOK, s.stops.Records())
}

func (s *Server) handleCancelStop(c *gin.Context) {
	by := c.Query("by")
	if by == "" {
		by = "api"
	}
	record, err := s.stops.Cancel(c.Request.Context(), c.Param("id"), by)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleListAlerts(c *gin.Context) {
	if c.Query("all") == "true" {
		c.JSON(http.StatusOK, s.alerts.All())
		return
	}
	c.JSON(http.StatusOK, s.alerts.Pending())
}

func (s *Server) handleAckAlert(c *gin.Context) {
	alert, err := s.alerts.Acknowledge(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (s *Server) handleResolveAlert(c *gin.Context) {
	alert, err := s.alerts.Resolve(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (s *Server) handleMetrics(c *gin.Context) {
	stats := s.metrics.Stats()
	c.JSON(http.StatusOK, gin.H{
		"ticks":           stats.Ticks,
		"triggers":        stats.Triggers,
		"riskBlocks":      stats.RiskBlocks,
		"submitted":       stats.Submitted,
		"filled":          stats.Filled,
		"rejected":        stats.Rejected,
		"cancelled":       stats.Cancelled,
		"expired":         stats.Expired,
		"queueDrops":      stats.QueueDrops,
		"notifyDelivered": stats.NotifyDelivered,
		"notifyFailed":    stats.NotifyFailed,
		"triggerLatency": gin.H{
			"count": stats.TriggerLatency.Count,
			"min":   stats.TriggerLatency.Min.String(),
			"max":   stats.TriggerLatency.Max.String(),
			"avg":   stats.TriggerLatency.Avg.String(),
		},
	})
}

func actor(c *gin.Context) string {
	if by := c.Query("by"); by != "" {
		return by
	}
	return "api"
}
