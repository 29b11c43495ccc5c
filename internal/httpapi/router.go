package httpapi

import (
	"time"

	"github.com/fevermarket/catalog-sync/pkg/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the Gin engine: request logging + recovery, permissive
// CORS (this is a read-only public catalog, not a cookie-authenticated
// surface), /search, /health, and /metrics.
func NewRouter(searcher Searcher, log *logger.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(requestLoggerMiddleware(log), gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods:    []string{"GET", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
		MaxAge:          12 * time.Hour,
	}))

	h := NewHandler(searcher, log)
	engine.GET("/search", h.Search)
	engine.GET("/health", healthCheck)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return engine
}

func healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

func requestLoggerMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.LogHTTPRequest(c, time.Since(start))
	}
}
