package api

import "github.com/gin-gonic/gin"

// extractAuthor derives an actor string from proxy-injected headers:
// oauth2-proxy sets X-Forwarded-User/-Email, kube-rbac-proxy sets
// X-Remote-User for service-account API clients; direct clients get the
// fallback.
func extractAuthor(c *gin.Context) string {
	if user := c.GetHeader("X-Forwarded-User"); user != "" {
		return user
	}
	if email := c.GetHeader("X-Forwarded-Email"); email != "" {
		return email
	}
	if remote := c.GetHeader("X-Remote-User"); remote != "" {
		return remote
	}
	return "api-client"
}
