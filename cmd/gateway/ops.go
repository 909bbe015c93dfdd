package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// opsRouter serves the operations endpoints: health, Prometheus
// metrics, and read-only gateway state. No mutation endpoints.
func (a *app) opsRouter() http.Handler {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ops := router.Group("/ops")

	ops.GET("/breakers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"breakers": a.breakers.Snapshots()})
	})

	ops.GET("/ratelimit/rules", func(c *gin.Context) {
		rules := a.limiter.RuleSet().Rules()
		out := make([]gin.H, 0, len(rules))
		for _, r := range rules {
			out = append(out, gin.H{
				"id":             r.ID,
				"pathPattern":    r.PathPattern,
				"methods":        r.Methods,
				"enabled":        r.Enabled,
				"priority":       r.Priority,
				"identifierType": r.IdentifierType,
				"windowSeconds":  int(r.Window.Seconds()),
				"maxRequests":    r.MaxRequests,
			})
		}
		c.JSON(http.StatusOK, gin.H{"rules": out})
	})

	ops.GET("/analytics/summary", func(c *gin.Context) {
		window := time.Hour
		if raw := c.Query("window"); raw != "" {
			parsed, err := time.ParseDuration(raw)
			if err != nil || parsed <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window"})
				return
			}
			window = parsed
		}

		to := time.Now()
		summary, err := a.aggregator.GetDashboardSummary(c.Request.Context(), to.Add(-window), to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	return router
}
