package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/LeJamon/goxrpl-escrow/internal/core/failure"
	"github.com/LeJamon/goxrpl-escrow/internal/logging"
	"github.com/LeJamon/goxrpl-escrow/internal/metrics"
)

// RequestIDHeader carries the request ID in and out.
const RequestIDHeader = "X-Request-ID"

// Handler serves a Service over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Router builds the gin engine with middleware and all routes.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.L(c.Request.Context(), h.logger).Error("panic recovered", "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, Result{Error: &ErrorBody{
			Kind:    string(failure.KindInternal),
			Message: "internal error",
		}})
	}))
	r.Use(metrics.Middleware())
	r.Use(h.requestID())
	r.Use(h.accessLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	h.RegisterRoutes(r.Group("/v1"))
	return r
}

// RegisterRoutes sets up the versioned API routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/escrows", h.CreateEscrow)
	r.GET("/escrows/:owner", h.ListEscrows)
	r.GET("/escrows/:owner/:seq", h.GetEscrow)
	r.GET("/escrows/:owner/:seq/outcome", h.GetOutcome)
	r.POST("/escrows/:owner/:seq/finish", h.FinishEscrow)
	r.POST("/escrows/:owner/:seq/cancel", h.CancelEscrow)

	r.POST("/conditions", h.GenerateCondition)
	r.POST("/conditions/verify", h.VerifyCondition)

	r.POST("/issuances", h.CreateIssuance)
	r.GET("/issuances/:issuer/:id", h.GetIssuance)
	r.POST("/issuances/:issuer/:id/destroy", h.DestroyIssuance)

	r.POST("/metadata/encode", h.EncodeMetadata)
}

func (h *Handler) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Keep an upstream ID (load balancer, caller)
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, h.logger)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

func (h *Handler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		logger := logging.L(c.Request.Context(), h.logger)
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case status >= 500:
			logger.Error("request completed", append(attrs, "client_ip", c.ClientIP())...)
		case status >= 400:
			logger.Warn("request completed", attrs...)
		default:
			logger.Info("request completed", attrs...)
		}
	}
}

func respond(c *gin.Context, res Result, okStatus int) {
	status := res.HTTPStatus()
	if res.Success {
		status = okStatus
	}
	c.JSON(status, res)
}

func badRequest(c *gin.Context, op string, err error) {
	respond(c, Fail(failure.Validation(op, "invalid request body: %v", err)), http.StatusOK)
}

// sequenceParam reads the :seq path parameter.
func sequenceParam(c *gin.Context, op string) (uint32, bool) {
	seq, err := strconv.ParseUint(c.Param("seq"), 10, 32)
	if err != nil {
		respond(c, Fail(failure.Validation(op, "sequence %q is not a 32-bit unsigned integer", c.Param("seq"))), http.StatusOK)
		return 0, false
	}
	return uint32(seq), true
}

// CreateEscrow handles POST /v1/escrows
func (h *Handler) CreateEscrow(c *gin.Context) {
	var in CreateEscrowInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "escrow.create", err)
		return
	}
	respond(c, h.service.CreateEscrow(c.Request.Context(), in), http.StatusCreated)
}

// ListEscrows handles GET /v1/escrows/:owner
func (h *Handler) ListEscrows(c *gin.Context) {
	respond(c, h.service.ListEscrows(c.Request.Context(), c.Param("owner")), http.StatusOK)
}

// GetEscrow handles GET /v1/escrows/:owner/:seq
func (h *Handler) GetEscrow(c *gin.Context) {
	seq, ok := sequenceParam(c, "escrow.info")
	if !ok {
		return
	}
	respond(c, h.service.EscrowInfo(c.Request.Context(), c.Param("owner"), seq), http.StatusOK)
}

// GetOutcome handles GET /v1/escrows/:owner/:seq/outcome
func (h *Handler) GetOutcome(c *gin.Context) {
	seq, ok := sequenceParam(c, "escrow.outcome")
	if !ok {
		return
	}
	respond(c, h.service.EscrowOutcome(c.Request.Context(), c.Param("owner"), seq), http.StatusOK)
}

// FinishEscrow handles POST /v1/escrows/:owner/:seq/finish
func (h *Handler) FinishEscrow(c *gin.Context) {
	seq, ok := sequenceParam(c, "escrow.finish")
	if !ok {
		return
	}
	var in FinishEscrowInput
	if err := bindOptionalJSON(c, &in); err != nil {
		badRequest(c, "escrow.finish", err)
		return
	}
	in.Owner, in.Sequence = c.Param("owner"), seq
	respond(c, h.service.FinishEscrow(c.Request.Context(), in), http.StatusOK)
}

// CancelEscrow handles POST /v1/escrows/:owner/:seq/cancel
func (h *Handler) CancelEscrow(c *gin.Context) {
	seq, ok := sequenceParam(c, "escrow.cancel")
	if !ok {
		return
	}
	var in CancelEscrowInput
	if err := bindOptionalJSON(c, &in); err != nil {
		badRequest(c, "escrow.cancel", err)
		return
	}
	in.Owner, in.Sequence = c.Param("owner"), seq
	respond(c, h.service.CancelEscrow(c.Request.Context(), in), http.StatusOK)
}

// GenerateCondition handles POST /v1/conditions
func (h *Handler) GenerateCondition(c *gin.Context) {
	respond(c, h.service.GenerateCondition(c.Request.Context()), http.StatusCreated)
}

// VerifyCondition handles POST /v1/conditions/verify
func (h *Handler) VerifyCondition(c *gin.Context) {
	var in VerifyConditionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "condition.verify", err)
		return
	}
	respond(c, h.service.VerifyCondition(c.Request.Context(), in), http.StatusOK)
}

// CreateIssuance handles POST /v1/issuances
func (h *Handler) CreateIssuance(c *gin.Context) {
	var in CreateIssuanceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "mpt.create", err)
		return
	}
	respond(c, h.service.CreateIssuance(c.Request.Context(), in), http.StatusCreated)
}

// GetIssuance handles GET /v1/issuances/:issuer/:id
func (h *Handler) GetIssuance(c *gin.Context) {
	respond(c, h.service.IssuanceInfo(c.Request.Context(), c.Param("issuer"), c.Param("id")), http.StatusOK)
}

// DestroyIssuance handles POST /v1/issuances/:issuer/:id/destroy
func (h *Handler) DestroyIssuance(c *gin.Context) {
	var in DestroyIssuanceInput
	if err := bindOptionalJSON(c, &in); err != nil {
		badRequest(c, "mpt.destroy", err)
		return
	}
	in.IssuanceID = c.Param("id")
	respond(c, h.service.DestroyIssuance(c.Request.Context(), in), http.StatusOK)
}

// EncodeMetadata handles POST /v1/metadata/encode
func (h *Handler) EncodeMetadata(c *gin.Context) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c, "metadata.encode", err)
		return
	}
	respond(c, h.service.EncodeMetadata(c.Request.Context(), fields), http.StatusOK)
}

// bindOptionalJSON binds a body when one was sent. Finish, cancel and
// destroy may rely entirely on the operator seed.
func bindOptionalJSON(c *gin.Context, out any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(out)
}
