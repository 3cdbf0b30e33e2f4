package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/litka-chat/litka/pkg/version"
)

// AdminSecretHeader carries the shared secret for admin routes.
const AdminSecretHeader = "X-Admin-Secret"

type rankRequest struct {
	Username string `json:"username" binding:"required"`
	Rank     string `json:"rank"`
}

// Handler builds the HTTP router: health, stats, metrics, admin and /ws.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.metrics.GinMiddleware())
	if limiter := newKeyedLimiter(s.cfg.RateLimit.HTTPPerSecond, s.cfg.RateLimit.HTTPBurst, limiterTTL); limiter != nil {
		limiter.startGC(limiterGCInterval, s.ctx.Done())
		r.Use(rateLimit(limiter))
	}

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Litka Chat Server is running")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "build": version.Get()})
	})
	r.GET("/stats", s.handleStats)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	r.POST("/admin/rank", s.handleAdminRank)
	r.GET("/ws", func(c *gin.Context) {
		s.ServeWS(c.Writer, c.Request)
	})
	return r
}

// handleStats reports connection and user counts. "online" counts
// authenticated connections; "users" counts distinct usernames among them.
func (s *Server) handleStats(c *gin.Context) {
	users := make(map[string]struct{})
	for _, sess := range s.sessions.All() {
		users[sess.Username] = struct{}{}
	}
	c.JSON(http.StatusOK, gin.H{
		"online":   s.sessions.Count(),
		"users":    len(users),
		"messages": s.history.Total(),
		"accounts": s.accounts.Count(),
	})
}

// handleAdminRank assigns or clears a special rank. It is disabled when no
// admin secret is configured.
func (s *Server) handleAdminRank(c *gin.Context) {
	if s.cfg.AdminSecret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin API disabled"})
		return
	}
	got := c.GetHeader(AdminSecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.AdminSecret)) != 1 {
		slog.Warn("admin request rejected", "remote", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin secret"})
		return
	}

	var req rankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Rank = strings.TrimSpace(req.Rank)
	if !s.accounts.Exists(req.Username) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	s.profiles.SetSpecialRank(req.Username, req.Rank)
	s.pushProfile(req.Username)
	slog.Info("special rank assigned", "user", req.Username, "rank", req.Rank)
	c.JSON(http.StatusOK, gin.H{"username": req.Username, "rank": req.Rank})
}
