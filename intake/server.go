package intake

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/isdmx/judgebox/config"
	"github.com/isdmx/judgebox/executor"
	"github.com/isdmx/judgebox/model"
	"github.com/isdmx/judgebox/pipeline"
)

// Pipeline is the part of *pipeline.Manager the REST surface needs.
type Pipeline interface {
	Enqueue(sub model.Submission) error
	Status(ctx context.Context) pipeline.Status
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Release bool
	// Gatherer backs GET /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewRouter builds the gin engine serving every intake route.
func NewRouter(logger *zap.Logger, p Pipeline, opts RouterOptions) *gin.Engine {
	if opts.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(logger, true))

	h := &handler{logger: logger, pipeline: p}
	r.POST("/execute", h.execute)
	r.GET("/status", h.status)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

type handler struct {
	logger   *zap.Logger
	pipeline Pipeline
}

func (h *handler) execute(c *gin.Context) {
	var sub model.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.pipeline.Enqueue(sub); err != nil {
		c.Error(err)
		status := http.StatusInternalServerError
		if errors.Is(err, executor.ErrNoExecutorAvailable) {
			status = http.StatusNotImplemented
		}
		c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": sub.ID})
}

func (h *handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.pipeline.Status(c.Request.Context()))
}

// Server runs the intake router on an http.Server.
type Server struct {
	logger *zap.Logger
	srv    *http.Server
}

// NewServer creates a Server listening on addr.
func NewServer(logger *zap.Logger, addr string, handler http.Handler) *Server {
	return &Server{
		logger: logger,
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewServerFromConfig builds the router and server from cfg. Metrics are
// served from gatherer when server.enable_metrics is set.
func NewServerFromConfig(logger *zap.Logger, cfg *config.Config, p Pipeline, gatherer prometheus.Gatherer) *Server {
	logger = logger.Named("intake")
	opts := RouterOptions{Release: cfg.Server.Release}
	if cfg.Server.EnableMetrics {
		opts.Gatherer = gatherer
	}
	return NewServer(logger, fmt.Sprintf(":%d", cfg.Server.HTTPPort), NewRouter(logger, p, opts))
}

// Start binds the listener and serves in the background. Bind errors are
// returned immediately.
func (s *Server) Start(context.Context) error {
	lis, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
	}
	s.logger.Info("starting http server", zap.String("addr", lis.Addr().String()))

	go func() {
		if err := s.srv.Serve(lis); errors.Is(err, http.ErrServerClosed) {
			s.logger.Info("http server stopped")
		} else {
			s.logger.Error("http server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.srv.Shutdown(ctx)
}
