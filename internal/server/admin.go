package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/priont/epos-bridge/internal/journal"
)

// adminAuth guards the admin endpoints with a static bearer token. When no
// token is configured the endpoints are open, which matches running the proxy
// on a trusted point-of-sale LAN.
func (s *Server) adminAuth() gin.HandlerFunc {
	token := s.cfg.Admin.Token
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") || strings.TrimPrefix(header, "Bearer ") != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		c.Next()
	}
}

func (s *Server) handleListJobs(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Journal disabled"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	entries, err := s.journal.List(c.Request.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list journal entries")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": entries, "count": len(entries)})
}

func (s *Server) handleGetJob(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Journal disabled"})
		return
	}

	entry, err := s.journal.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		s.log.Error().Err(err).Msg("Failed to load journal entry")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load job"})
		return
	}

	c.JSON(http.StatusOK, entry)
}
