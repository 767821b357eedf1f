package handler

import (
	"net/http"
	"runtime/debug"
	"time"

	"ngm-go/internal/controller"
	"ngm-go/pkg/mcp"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter builds the HTTP engine. mcpServer may be nil when MCP is disabled.
func SetupRouter(modelController *controller.ModelController, mcpServer *mcp.NgramServer, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(CustomRecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/models", modelController.CreateModel)
		v1.GET("/models", modelController.ListModels)
		v1.POST("/models/load", modelController.LoadModel)
		v1.GET("/models/:id", modelController.GetModel)
		v1.DELETE("/models/:id", modelController.DeleteModel)
		v1.POST("/models/:id/update", modelController.UpdateModel)
		v1.POST("/models/:id/lpmf", modelController.Lpmf)
		v1.POST("/models/:id/score", modelController.Score)
		v1.POST("/models/:id/save", modelController.SaveModel)
		v1.POST("/models/:id/details", modelController.Details)
		v1.GET("/models/:id/ngrams", modelController.NGrams)
		v1.POST("/models/:id/distribution", modelController.Distribution)
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "healthy",
			})
		})
	}

	if mcpServer != nil {
		mcpServer.SetupHTTPRoutes(router)
	}

	return router
}

func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func CustomRecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("stack", string(debug.Stack())),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}
