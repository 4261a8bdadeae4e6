package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/kitt/pkg/registry"
)

const agentIDContextKey = "kitt.agent_id"

// bearerToken extracts the raw token from an "Authorization: Bearer <token>"
// header, or "" if the header is missing or malformed.
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}

// adminAuth requires the server's single admin token, compared in constant
// time exactly like the per-agent token comparison in pkg/registry.
func (s *Server) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}
		c.Next()
	}
}

// agentAuth requires a valid per-agent bearer token. When the route has a
// :name parameter, it additionally checks that the token belongs to that
// named agent — an agent cannot heartbeat or report results on another
// agent's behalf.
func (s *Server) agentAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}

		agentID, err := s.agents.Verify(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, registry.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
			return
		}

		if name := c.Param("name"); name != "" {
			named, err := s.agents.GetByName(c.Request.Context(), name)
			if err != nil || named.ID != agentID {
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
				return
			}
		}

		c.Set(agentIDContextKey, agentID)
		c.Next()
	}
}

func agentIDFromContext(c *gin.Context) string {
	v, _ := c.Get(agentIDContextKey)
	id, _ := v.(string)
	return id
}
