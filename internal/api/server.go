// Package api exposes the HTTP control surface: feed and item listings and
// commands to the update actors.
package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates the gin engine with all routes configured. When apiKey
// is empty the /api group is served without authentication.
func NewServer(h *Handler, apiKey string, log *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(requestLogger(log))
	r.Use(gin.Recovery())

	r.GET("/health", h.Health)

	api := r.Group("/api")
	if apiKey != "" {
		api.Use(authMiddleware(apiKey))
	} else {
		log.Warn("API_KEY not set, control API is unauthenticated")
	}
	{
		api.GET("/feeds", h.ListFeeds)
		api.GET("/feeds/:id", h.GetFeed)
		api.GET("/feeds/:id/items", h.ListItems)
		api.GET("/items", h.RecentItems)
		api.POST("/feeds/:id/update", h.UpdateFeed)
		api.POST("/feeds/update", h.UpdateAll)
		api.PUT("/feeds/:id/schedule", h.ScheduleFeed)
		api.DELETE("/feeds/:id/schedule", h.CancelSchedule)
		api.POST("/schedules/refresh", h.RefreshSchedules)
	}
	return r
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// authMiddleware accepts the key in X-API-Key or as a bearer token.
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("X-API-Key")
		if provided == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				provided = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{
				Error:   "API key required",
				Message: "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{
				Error:   "Invalid API key",
				Message: "The provided API key is not valid",
			})
			return
		}
		c.Next()
	}
}
