package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Gl0balRak/textanalyzer-gateway/api/handler"
	"github.com/Gl0balRak/textanalyzer-gateway/api/middleware"
	"github.com/Gl0balRak/textanalyzer-gateway/auth"
	"github.com/Gl0balRak/textanalyzer-gateway/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(a *handler.API, authenticator auth.Authenticator, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", a.Health)

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled && authenticator != nil {
		protected.Use(middleware.Auth(authenticator))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Primary analysis
	protected.POST("/analysis", a.StartAnalysis)
	protected.GET("/analysis", a.GetAnalysis)
	protected.GET("/analysis/progress", a.StreamProgress)
	protected.POST("/analysis/single-page", a.AnalyzeSinglePage)

	// Competitor selection
	protected.POST("/competitors/toggle", a.ToggleCompetitor)
	protected.POST("/competitors/select-all", a.SelectAll)

	// Downstream stages
	protected.POST("/lsi", a.RunLSI)
	protected.POST("/keywords", a.RunKeywords)

	// Workspace
	protected.POST("/stopwords", a.UploadStopwords)
	protected.POST("/reset", a.Reset)

	return r
}
