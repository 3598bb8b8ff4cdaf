package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Promptonauts/releasepipe/pkg/descriptor"
	"github.com/Promptonauts/releasepipe/pkg/models"
	"github.com/Promptonauts/releasepipe/pkg/observability"
	"github.com/Promptonauts/releasepipe/pkg/plan"
	"github.com/Promptonauts/releasepipe/pkg/publish"
	"github.com/Promptonauts/releasepipe/pkg/store"
)

const maxBodyBytes = 1 << 20

type Server struct {
	store     store.Store
	metrics   *observability.Registry
	logger    *slog.Logger
	publisher *publish.Publisher
	router    *gin.Engine
}

// NewServer wires the HTTP routes. publisher may be nil, in which case the
// publish endpoint answers 501.
func NewServer(st store.Store, metrics *observability.Registry, logger *slog.Logger, publisher *publish.Publisher) *Server {
	s := &Server{
		store:     st,
		metrics:   metrics,
		logger:    logger,
		publisher: publisher,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.health)
	r.GET("/metrics", s.metricsSnapshot)

	v1 := r.Group("/v1")
	v1.POST("/validate", s.validate)
	v1.POST("/export", s.export)
	v1.GET("/plugins", s.listPlugins)

	d := v1.Group("/descriptors")
	d.GET("", s.listDescriptors)
	d.PUT("/:name", s.putDescriptor)
	d.GET("/:name", s.getDescriptor)
	d.DELETE("/:name", s.deleteDescriptor)
	d.POST("/:name/publish", s.publishDescriptor)
	d.POST("/:name/plans", s.createPlan)
	d.GET("/:name/plans", s.listPlans)

	v1.GET("/plans/:id", s.getPlan)

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) metricsSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) listPlugins(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plugins": descriptor.Plugins()})
}

// readDescriptor decodes the request body as JSON, or YAML when the content
// type says so.
func readDescriptor(c *gin.Context) (models.Descriptor, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return models.Descriptor{}, false
	}
	format := descriptor.FormatJSON
	if strings.Contains(c.ContentType(), "yaml") {
		format = descriptor.FormatYAML
	}
	d, err := descriptor.Parse(body, format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return models.Descriptor{}, false
	}
	return d, true
}

func (s *Server) checkDescriptor(d *models.Descriptor) error {
	s.metrics.Counter(observability.MetricValidations).Inc()
	if err := descriptor.Validate(d); err != nil {
		s.metrics.Counter(observability.MetricValidationFailures).Inc()
		return err
	}
	return nil
}

func (s *Server) render(d *models.Descriptor, format descriptor.Format) ([]byte, error) {
	form, err := descriptor.Export(d)
	if err == nil {
		var data []byte
		if data, err = descriptor.Encode(form, format); err == nil {
			s.metrics.Counter(observability.MetricExports).Inc()
			return data, nil
		}
	}
	s.metrics.Counter(observability.MetricExportFailures).Inc()
	return nil, err
}

func (s *Server) writeError(c *gin.Context, err error) {
	var schema *descriptor.SchemaError
	var serial *descriptor.SerializationError
	switch {
	case errors.As(err, &schema):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "field": schema.Field})
	case errors.As(err, &serial):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "path": serial.Path})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, plan.ErrBranchNotEligible):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "field": "branch"})
	case errors.Is(err, publish.ErrDisabled):
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func formatParam(c *gin.Context) (descriptor.Format, bool) {
	format, err := descriptor.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return format, true
}
