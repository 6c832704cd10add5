package router

import (
	"github.com/erp/taxconnector/internal/interfaces/http/handler"
	"github.com/erp/taxconnector/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Config holds the handlers the router wires up
type Config struct {
	Documents *handler.TaxDocumentHandler
	Health    *handler.HealthHandler
	Logger    *zap.Logger
	Env       string
}

// New builds the gin engine with all routes and middleware
func New(cfg Config) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Logging(cfg.Logger),
		middleware.Recovery(cfg.Logger),
	)

	engine.GET("/healthz", cfg.Health.Live)
	engine.GET("/readyz", cfg.Health.Ready)

	v1 := engine.Group("/api/v1")
	{
		docs := v1.Group("/tax-documents")
		{
			docs.POST("", cfg.Documents.Create)
			docs.GET("", cfg.Documents.List)
			docs.GET("/:id", cfg.Documents.Get)
			docs.POST("/:id/lines", cfg.Documents.AddLine)
			docs.PATCH("/:id/lines/:line", cfg.Documents.UpdateLine)
			docs.POST("/:id/validate-address", cfg.Documents.ValidateAddress)
			docs.POST("/:id/confirm", cfg.Documents.Confirm)
			docs.POST("/:id/post", cfg.Documents.Post)
			docs.POST("/:id/cancel", cfg.Documents.Cancel)
			docs.POST("/:id/refund", cfg.Documents.Refund)
			docs.POST("/:id/compute-tax", cfg.Documents.ComputeTax)
		}
		v1.POST("/tax-service/ping", cfg.Documents.Ping)
	}

	return engine
}
