package handlers

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"cloudkv/internal/middleware"
	"cloudkv/internal/service"
)

// NewRouter builds the gin engine with the full public surface.
func NewRouter(svc *service.KV, limits service.Limits, corsOrigin string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{corsOrigin},
		AllowMethods: []string{"GET", "HEAD", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization", "TTL", "X-Request-Id"},
	}))

	h := NewKVHandler(svc, limits.MaxValueSize)

	router.GET("/health", func(c *gin.Context) {
		if err := svc.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/create", middleware.CreateRateLimitMiddleware(), h.CreateNamespace)

	// The wildcard keeps slashes inside keys addressable.
	router.GET("/:namespace/*key", h.Get)
	router.HEAD("/:namespace/*key", h.Head)
	router.POST("/:namespace/*key", h.Set)
	router.DELETE("/:namespace/*key", h.Delete)

	return router
}
