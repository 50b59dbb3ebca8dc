package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scribe-backend/internal/dictations"
	"scribe-backend/internal/pairing"
	"scribe-backend/internal/shared/config"
	"scribe-backend/internal/shared/metrics"
	"scribe-backend/internal/shared/server/middleware"
	"scribe-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config           config.Config
	DictationHandler *dictations.Handler
	PairingHandler   *pairing.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	if deps.DictationHandler != nil {
		deps.DictationHandler.RegisterRoutes(api)
	}
	if deps.PairingHandler != nil {
		deps.PairingHandler.RegisterRoutes(api)
	}

	r.GET("/metrics", metrics.Handler())

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
