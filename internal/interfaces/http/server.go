package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CherryPod/sentinel-sub000/internal/domain/eventbus"
	"github.com/CherryPod/sentinel-sub000/internal/domain/orchestrator"
	"github.com/CherryPod/sentinel-sub000/internal/domain/service"
	"github.com/CherryPod/sentinel-sub000/internal/infrastructure/monitoring"
	"github.com/CherryPod/sentinel-sub000/internal/interfaces/http/handlers"
	wsinterfaces "github.com/CherryPod/sentinel-sub000/internal/interfaces/websocket"
)

// Server is the gateway's HTTP transport.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// Config configures the HTTP transport.
type Config struct {
	Host string
	Port int
	Mode string // debug, release
}

// NewServer builds the gin router exposing handle_task, the approval queue,
// a per-task websocket event stream and Prometheus-format metrics.
func NewServer(cfg Config, orch *orchestrator.Orchestrator, approvals *service.ApprovalManager, bus *eventbus.Bus, monitor *monitoring.Monitor, tracer *monitoring.Tracer, logger *zap.Logger) *Server {
	if cfg.Mode == "production" || cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))
	router.Use(metricsMiddleware(monitor))

	taskHandler := handlers.NewTaskHandler(orch, monitor, tracer, logger)
	approvalHandler := handlers.NewApprovalHandler(approvals, logger)
	wsHandler := wsinterfaces.NewHandler(bus, logger)

	setupRoutes(router, taskHandler, approvalHandler, wsHandler, monitor, tracer)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	return &Server{server: server, logger: logger}
}

// Start starts listening in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting HTTP server", zap.String("address", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func setupRoutes(router *gin.Engine, taskHandler *handlers.TaskHandler, approvalHandler *handlers.ApprovalHandler, wsHandler *wsinterfaces.Handler, monitor *monitoring.Monitor, tracer *monitoring.Tracer) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})
	router.GET("/metrics", gin.WrapH(monitor.PrometheusHandler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/tasks", taskHandler.SubmitTask)
		v1.GET("/approvals/:id", approvalHandler.GetApproval)
		v1.POST("/approvals/:id/decision", approvalHandler.SubmitApproval)
		v1.GET("/tasks/:id/events", wsHandler.ServeTaskEvents)
		v1.GET("/stats", func(c *gin.Context) {
			c.JSON(http.StatusOK, monitor.GetDashboardData())
		})
		v1.GET("/traces/:trace_id", func(c *gin.Context) {
			c.JSON(http.StatusOK, tracer.SpansByTraceID(c.Param("trace_id")))
		})
	}
}

// metricsMiddleware records request counts and latency for every route.
func metricsMiddleware(monitor *monitoring.Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		monitor.IncRequestTotal()

		c.Next()

		monitor.RecordRequestLatency(time.Since(start))
		if c.Writer.Status() >= 500 {
			monitor.IncRequestFailed()
		} else {
			monitor.IncRequestSuccess()
		}
	}
}

// ginLogger logs every request's method, path, status and latency.
func ginLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", statusCode),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
