package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/codescan/internal/datastore"
	"github.com/tphakala/codescan/internal/errors"
	"github.com/tphakala/codescan/internal/logger"
	"github.com/tphakala/codescan/internal/observability/metrics"
	"github.com/tphakala/codescan/internal/pipeline"
	"github.com/tphakala/codescan/internal/scanner"
)

// ScanStore is the part of datastore.Interface the API manages.
type ScanStore interface {
	Rename(ctx context.Context, id, newName string) (*datastore.ScanRecord, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*datastore.ScanRecord, error)
	List(ctx context.Context) ([]datastore.ScanRecord, error)
}

// DetectionProcessor accepts detections submitted over HTTP.
type DetectionProcessor interface {
	Process(ctx context.Context, det scanner.Detection) (pipeline.Result, error)
}

// Server is the REST API server.
type Server struct {
	echo      *echo.Echo
	config    Config
	store     ScanStore
	processor DetectionProcessor
	metrics   *metrics.HTTPMetrics
	logger    logger.Logger
	version   string
	now       func() time.Time
	startTime time.Time
}

// ServerOption configures the Server.
type ServerOption func(*Server)

// WithMetrics records request counts and latencies.
func WithMetrics(m *metrics.HTTPMetrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithDetectionProcessor enables POST /api/v1/detections.
func WithDetectionProcessor(p DetectionProcessor) ServerOption {
	return func(s *Server) { s.processor = p }
}

// WithLogger overrides the server logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) ServerOption {
	return func(s *Server) { s.version = v }
}

// withClock overrides time.Now; used by tests.
func withClock(now func() time.Time) ServerOption {
	return func(s *Server) { s.now = now }
}

// New creates the server and registers its routes. It does not listen.
func New(cfg Config, store ScanStore, opts ...ServerOption) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.Newf("api server requires a scan store").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}

	s := &Server{
		config: cfg,
		store:  store,
		logger: logger.Global().Module("api"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startTime = s.now()

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.handleError
	s.echo.Server.ReadTimeout = cfg.ReadTimeout
	s.echo.Server.WriteTimeout = cfg.WriteTimeout
	s.echo.Server.IdleTimeout = cfg.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(s.requestLogger())
	if s.metrics != nil {
		s.echo.Use(s.metricsMiddleware)
	}
	s.echo.Use(echomw.BodyLimit(s.config.BodyLimit))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/scans", s.listScans)
	v1.GET("/scans/:id", s.getScan)
	v1.PATCH("/scans/:id", s.renameScan)
	v1.DELETE("/scans/:id", s.deleteScan)
	if s.processor != nil {
		v1.POST("/detections", s.submitDetection)
	}
}

// ServeHTTP lets the server be used as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Run serves until ctx is done, then shuts down gracefully. A clean shutdown
// returns nil.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", logger.String("address", s.config.Listen))
		errCh <- s.echo.Start(s.config.Listen)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.New(err).
			Component("api").
			Category(errors.CategoryNetwork).
			Context("operation", "listen").
			Context("listen", s.config.Listen).
			Build()
	case <-ctx.Done():
	}

	s.logger.Info("stopping HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryTimeout).
			Context("operation", "shutdown").
			Build()
	}
	<-errCh
	return nil
}

func (s *Server) healthCheck(c echo.Context) error {
	uptime := s.now().Sub(s.startTime)
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"version":        s.version,
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      s.now().UTC().Format(time.RFC3339),
	})
}
