package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/authrelay/internal/log"
	"github.com/layer-3/authrelay/service"
)

// SetupRouter sets up the Gin router. A nil metrics handler leaves
// /metrics unrouted.
func SetupRouter(client AuthAPI, authService *service.AuthService, metrics http.Handler, logger log.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger.Module("http")))

	// Create handlers
	handlers := NewAuthHandlers(client, authService)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/request", handlers.Request)
		auth.POST("/pair", handlers.Pair)
		auth.GET("/pending", handlers.Pending)
		auth.POST("/message", handlers.Message)
		auth.POST("/respond", handlers.Respond)
		auth.POST("/session", handlers.Session)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/me", handlers.Me)
	}

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	return router
}
