// Package server exposes the HTTP API: health, metrics, processing stats,
// alerts and on-demand pipeline runs.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"intelbrief/internal/model"
	"intelbrief/internal/pipeline"
	"intelbrief/internal/store"
	"intelbrief/internal/telemetry"
)

// Server wires the HTTP API over the store and orchestrator.
type Server struct {
	echo   *echo.Echo
	store  *store.Store
	orch   *pipeline.Orchestrator
	tele   *telemetry.Telemetry
	logger *log.Logger

	// one manual pipeline run at a time
	runMu sync.Mutex
}

// New builds the server and registers all routes.
func New(st *store.Store, orch *pipeline.Orchestrator, tele *telemetry.Telemetry) *Server {
	logger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	s := &Server{echo: e, store: st, orch: orch, tele: tele, logger: logger}

	e.GET("/healthz", s.healthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.GET("/stats", s.stats)
	api.GET("/alerts", s.listAlerts)
	api.POST("/alerts/:id/read", s.markAlertRead)
	api.GET("/analyses", s.recentAnalyses)
	api.GET("/costs", s.costs)
	api.POST("/pipeline/run", s.runPipeline)

	return s
}

// Start serves until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Printf("listening on %s", addr)
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "database unreachable")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) stats(c echo.Context) error {
	stats, err := s.store.Stats(c.Request().Context())
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) listAlerts(c echo.Context) error {
	limit := intQuery(c, "limit", 50)
	unreadOnly := c.QueryParam("unread") == "true"
	alerts, err := s.store.ListAlerts(c.Request().Context(), limit, unreadOnly)
	if err != nil {
		return fmt.Errorf("list alerts: %w", err)
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"alerts": alerts})
}

func (s *Server) markAlertRead(c echo.Context) error {
	id := c.Param("id")
	if err := s.store.MarkAlertRead(c.Request().Context(), id); err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "alert not found")
		}
		return fmt.Errorf("mark alert read: %w", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "read"})
}

func (s *Server) recentAnalyses(c echo.Context) error {
	limit := intQuery(c, "limit", 100)
	recs, err := s.store.RecentAnalyses(c.Request().Context(), limit)
	if err != nil {
		return fmt.Errorf("list analyses: %w", err)
	}
	if recs == nil {
		recs = []model.AnalysisRecord{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"analyses": recs})
}

func (s *Server) costs(c echo.Context) error {
	if s.tele == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{})
	}
	return c.JSON(http.StatusOK, s.tele.CostSummary())
}

func (s *Server) runPipeline(c echo.Context) error {
	if s.orch == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "pipeline not configured")
	}
	if !s.runMu.TryLock() {
		return echo.NewHTTPError(http.StatusConflict, "pipeline run already in progress")
	}
	defer s.runMu.Unlock()

	sum, err := s.orch.Run(c.Request().Context())
	if err != nil {
		s.logger.Printf("warn: manual pipeline run finished with error: %v", err)
	}
	return c.JSON(http.StatusOK, sum)
}

func intQuery(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
