package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gl0balRak/textanalyzer-gateway/models"
)

// ToggleCompetitor handles POST /competitors/toggle: flip one
// competitor's membership in the downstream selection.
func (a *API) ToggleCompetitor(c *gin.Context) {
	sess := a.Sessions.Acquire(c)

	var req struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &models.ValidationError{Field: "body", Message: "invalid JSON payload: " + err.Error()})
		return
	}

	if err := sess.Coordinator.ToggleCompetitor(req.URL); err != nil {
		writeError(c, err)
		return
	}
	snap := sess.Coordinator.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"competitors": snap.Competitors,
		"selected":    snap.Selected,
	})
}

// SelectAll handles POST /competitors/select-all: select every
// competitor, or clear the selection when all are already selected.
func (a *API) SelectAll(c *gin.Context) {
	sess := a.Sessions.Acquire(c)
	sess.Coordinator.SelectAll()
	snap := sess.Coordinator.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"competitors": snap.Competitors,
		"selected":    snap.Selected,
	})
}
