package server

import (
	"github.com/gin-gonic/gin"

	"claimdocs-backend/internal/documents"
	"claimdocs-backend/internal/services/health"
	"claimdocs-backend/internal/shared/metrics"
	"claimdocs-backend/internal/shared/server/middleware"
)

// RouterDeps carries everything the HTTP surface needs. Bootstrap fills it.
type RouterDeps struct {
	Env            string
	AllowedOrigins []string
	Documents      *documents.Handler
	Health         *health.Handler
}

// NewRouter assembles the gin engine with the full middleware chain.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging())
	r.Use(middleware.CORS(deps.AllowedOrigins))

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", deps.Health.Health)

	authed := api.Group("")
	authed.Use(middleware.Auth())
	deps.Documents.RegisterRoutes(authed)

	return r
}
