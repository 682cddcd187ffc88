package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health handles GET /health. It is unauthenticated and carries no
// session state.
func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"uptime":   time.Since(a.Started).Round(time.Second).String(),
		"sessions": a.Sessions.Count(),
	})
}
