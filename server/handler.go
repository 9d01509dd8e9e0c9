package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/filepipe/logger"
	"github.com/kbukum/filepipe/observability"
	"github.com/kbukum/filepipe/pipeline"
	"github.com/kbukum/filepipe/server/middleware"
	"github.com/kbukum/filepipe/tokens"
)

// Handler serves pipeline execution requests. A request names a
// single-use token; its payload describes the pipeline to run.
type Handler struct {
	store    *tokens.Store
	codec    *tokens.Codec
	executor *pipeline.Executor
	log      *logger.Logger
}

// NewHandler creates the request handler.
func NewHandler(store *tokens.Store, codec *tokens.Codec, executor *pipeline.Executor, log *logger.Logger) *Handler {
	return &Handler{
		store:    store,
		codec:    codec,
		executor: executor,
		log:      log.WithComponent("handler"),
	}
}

// Register mounts the middleware stack and routes on engine.
func (h *Handler) Register(engine *gin.Engine) {
	engine.Use(middleware.Recovery(h.log))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(h.log))

	engine.GET("/pipeline/:token_id", h.runPipeline)
	engine.GET("/healthcheck", h.healthcheck)
}

// runPipeline consumes the token, decodes its pipeline, executes it,
// and streams the final output.
func (h *Handler) runPipeline(c *gin.Context) {
	ctx := c.Request.Context()
	tokenID := c.Param("token_id")

	payload, err := h.store.Fetch(ctx, tokenID)
	if err != nil {
		writeError(c, err)
		return
	}

	specs, err := h.codec.Decode(payload)
	if err != nil {
		writeError(c, err)
		return
	}

	spanCtx, span := observability.StartSpan(ctx, "pipeline.run",
		trace.WithAttributes(attribute.Int("pipeline.steps", len(specs))))
	out, err := h.executor.Run(spanCtx, specs)
	observability.SetSpanError(span, err)
	span.End()
	if err != nil {
		h.log.WithError(err).Error("pipeline failed", map[string]interface{}{
			logger.FieldTokenID: tokenID,
		})
		writeError(c, err)
		return
	}
	defer out.Close()

	writeCarrier(c, out, h.log)
}

// healthcheck reports Redis reachability.
func (h *Handler) healthcheck(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "redis": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
