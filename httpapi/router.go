package httpapi

import (
	"context"
	"time"

	"github.com/bskracic/langs-executor/execution"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Service is what the HTTP surface needs from the execution engine.
type Service interface {
	Execute(ctx context.Context, req execution.Request) execution.Result
	RuntimeAlive(ctx context.Context, language string) (string, bool, error)
	DiskUsage(ctx context.Context, language string) (string, error)
	Languages() []string
}

type handler struct {
	svc    Service
	logger *zap.Logger
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(svc Service, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
	router.Use(cors.New(config))

	h := &handler{svc: svc, logger: logger}

	api := router.Group("/api/v1")
	api.POST("/execution/execute", h.execute)
	api.POST("/execution/execute-with-timeout", h.executeWithTimeout)
	api.GET("/execution/health", h.health)
	api.GET("/runtimes/:language/health", h.runtimeHealth)
	api.GET("/runtimes/:language/disk", h.diskUsage)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
