package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Gl0balRak/textanalyzer-gateway/models"
	"github.com/Gl0balRak/textanalyzer-gateway/pipeline"
)

// API exposes the analysis pipeline over HTTP. All routes resolve the
// caller's session from the X-Session-ID header.
type API struct {
	Sessions *SessionStore
	Started  time.Time
}

// NewAPI wires the handler set over a session store.
func NewAPI(sessions *SessionStore) *API {
	return &API{Sessions: sessions, Started: time.Now()}
}

// writeError maps a pipeline error onto the API error envelope.
func writeError(c *gin.Context, err error) {
	detail := models.ToDetail(err)
	c.JSON(statusFor(detail.Code), gin.H{"error": detail})
}

func statusFor(code string) int {
	switch code {
	case models.ErrCodeValidation:
		return http.StatusBadRequest
	case models.ErrCodeStageBusy:
		return http.StatusConflict
	case models.ErrCodePrecondition:
		return http.StatusPreconditionFailed
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case models.ErrCodeRemote, models.ErrCodeStream, models.ErrCodeServer,
		models.ErrCodeSinglePage:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// StartAnalysis handles POST /analysis. Validation and busy checks are
// synchronous; the analysis itself runs in the background and is
// observed via GET /analysis and the progress stream.
func (a *API) StartAnalysis(c *gin.Context) {
	sess := a.Sessions.Acquire(c)

	var req models.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &models.ValidationError{Field: "body", Message: "invalid JSON payload: " + err.Error()})
		return
	}

	// Stop words uploaded for the session apply to every run.
	req.ExcludedWords = mergeWords(req.ExcludedWords, sess.Stopwords())

	req.Defaults()
	if err := req.Validate(); err != nil {
		writeError(c, err)
		return
	}
	if sess.Coordinator.StageView(models.StagePrimary).Status.Active() {
		writeError(c, models.ErrStageBusy)
		return
	}

	go func() {
		if err := sess.Coordinator.RunPrimary(context.Background(), &req); err != nil {
			slog.Warn("primary analysis failed",
				"session_id", sess.ID, "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"session_id": sess.ID,
		"stage":      sess.Coordinator.StageView(models.StagePrimary),
	})
}

// GetAnalysis handles GET /analysis and returns the full pipeline
// snapshot for the session.
func (a *API) GetAnalysis(c *gin.Context) {
	sess := a.Sessions.Acquire(c)
	c.JSON(http.StatusOK, sess.Coordinator.Snapshot())
}

// StreamProgress handles GET /analysis/progress. It relays stage state
// as server-sent events until the requested stage reaches a terminal
// state or the client disconnects.
func (a *API) StreamProgress(c *gin.Context) {
	sess := a.Sessions.Acquire(c)

	kind := models.StageKind(c.DefaultQuery("stage", string(models.StagePrimary)))
	switch kind {
	case models.StagePrimary, models.StageLSI, models.StageKeywords:
	default:
		writeError(c, &models.ValidationError{Field: "stage", Message: "unknown stage " + string(kind)})
		return
	}

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-ticker.C:
		}
		view := sess.Coordinator.StageView(kind)
		c.SSEvent("progress", view)
		return !view.Status.Terminal()
	})
}

// AnalyzeSinglePage handles POST /analysis/single-page: analyze one
// extra URL and add it to the competitor table without disturbing the
// main result set.
func (a *API) AnalyzeSinglePage(c *gin.Context) {
	sess := a.Sessions.Acquire(c)

	pageURL := c.Query("url")
	if pageURL == "" {
		var req struct {
			URL string `json:"url"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, &models.ValidationError{Field: "url", Message: "url query parameter or JSON body is required"})
			return
		}
		pageURL = req.URL
	}

	record, err := sess.Coordinator.AddSingleURL(c.Request.Context(), pageURL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// RunLSI handles POST /lsi. Preconditions are checked synchronously;
// the comparison runs in the background.
func (a *API) RunLSI(c *gin.Context) {
	sess := a.Sessions.Acquire(c)

	var params pipeline.LSIParams
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&params); err != nil {
			writeError(c, &models.ValidationError{Field: "body", Message: "invalid JSON payload: " + err.Error()})
			return
		}
	}

	a.runStage(c, sess, models.StageLSI, func(ctx context.Context) error {
		return sess.Coordinator.RunLSI(ctx, &params)
	})
}

// RunKeywords handles POST /keywords.
func (a *API) RunKeywords(c *gin.Context) {
	sess := a.Sessions.Acquire(c)
	a.runStage(c, sess, models.StageKeywords, func(ctx context.Context) error {
		return sess.Coordinator.RunKeywords(ctx)
	})
}

// runStage starts a downstream stage asynchronously after surfacing
// precondition and busy failures to the caller.
func (a *API) runStage(c *gin.Context, sess *Session, kind models.StageKind, run func(ctx context.Context) error) {
	if sess.Coordinator.StageView(kind).Status.Active() {
		writeError(c, models.ErrStageBusy)
		return
	}

	// Precondition failures come back before any network work, so a
	// short probe run surfaces them synchronously.
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(context.Background())
	}()

	select {
	case err := <-errCh:
		if err != nil {
			writeError(c, err)
			return
		}
	case <-time.After(150 * time.Millisecond):
		// Still running: the stage view reports further progress.
	}

	c.JSON(http.StatusAccepted, gin.H{
		"session_id": sess.ID,
		"stage":      sess.Coordinator.StageView(kind),
	})
}

// Reset handles POST /reset and returns the workspace to a blank
// state.
func (a *API) Reset(c *gin.Context) {
	sess := a.Sessions.Acquire(c)
	sess.Coordinator.ResetAll()
	sess.SetStopwords(nil)
	c.JSON(http.StatusOK, sess.Coordinator.Snapshot())
}

func mergeWords(base, extra []string) []string {
	if len(extra) == 0 {
		return base
	}
	seen := make(map[string]struct{}, len(base)+len(extra))
	merged := make([]string, 0, len(base)+len(extra))
	for _, w := range append(append([]string(nil), base...), extra...) {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		merged = append(merged, w)
	}
	return merged
}
