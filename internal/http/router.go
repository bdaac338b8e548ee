package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/rubric-backend/internal/http/handlers"
	httpMW "github.com/yungbote/rubric-backend/internal/http/middleware"
	"github.com/yungbote/rubric-backend/internal/observability"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	Metrics     *observability.Metrics

	HealthHandler   *httpH.HealthHandler
	GenerateHandler *httpH.GenerateHandler
	IngestHandler   *httpH.IngestHandler
	LedgerHandler   *httpH.LedgerHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	// Metrics
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	// Generation (form contract of the original upload page)
	if cfg.GenerateHandler != nil {
		r.POST("/generate", cfg.GenerateHandler.Generate)
	}

	api := r.Group("/api")
	{
		// Ingestion
		if cfg.IngestHandler != nil {
			api.POST("/ingest", cfg.IngestHandler.Ingest)
			api.POST("/ingest/book", cfg.IngestHandler.IngestBook)
		}

		// Ledger
		if cfg.LedgerHandler != nil {
			api.POST("/scores", cfg.LedgerHandler.RecordScore)
			api.GET("/scores", cfg.LedgerHandler.ListScores)
			api.POST("/rubrics", cfg.LedgerHandler.DefineRubric)
			api.POST("/rubrics/from-artifact", cfg.LedgerHandler.DefineRubricFromArtifact)
			api.GET("/rubrics", cfg.LedgerHandler.ListRubrics)
		}
	}

	return r
}
