package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// StatusFunc returns a JSON-serializable snapshot of an engine.
type StatusFunc func() any

// Server serves /metrics, /healthz and /status.
type Server struct {
	engine *gin.Engine
	server *http.Server
	logger *zap.Logger
}

// NewServer builds the HTTP server. status may be nil.
func NewServer(addr string, gatherer prometheus.Gatherer, status StatusFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	engine.GET("/status", func(c *gin.Context) {
		if status == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no status"})
			return
		}
		c.JSON(http.StatusOK, status())
	})

	return &Server{
		engine: engine,
		server: &http.Server{Addr: addr, Handler: engine, ReadHeaderTimeout: 5 * time.Second},
		logger: logger,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("metrics server listening", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
