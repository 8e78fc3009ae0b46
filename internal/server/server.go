// Package server exposes the HTTP API over gin. Handlers are thin
// translators between HTTP and the store/runner; typed errors map onto
// status codes in one place.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rzhai/acmtrack/internal/metrics"
	"github.com/rzhai/acmtrack/internal/store"
	"github.com/rzhai/acmtrack/internal/task"
)

// Server wraps the gin engine with its dependencies and HTTP lifecycle.
type Server struct {
	router    *gin.Engine
	http      *http.Server
	logger    *slog.Logger
	store     *store.Store
	runner    *task.Runner
	generator task.Generator
	collector *metrics.Collector
}

// New wires the API routes. All dependencies are passed in explicitly; the
// server owns none of them.
func New(st *store.Store, runner *task.Runner, generator task.Generator, collector *metrics.Collector, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(RequestLogger(logger))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	s := &Server{
		router:    router,
		logger:    logger,
		store:     st,
		runner:    runner,
		generator: generator,
		collector: collector,
	}

	router.GET("/health", s.health)

	api := router.Group("/api")
	{
		problems := api.Group("/problems")
		{
			problems.POST("/import", s.importProblems)
			problems.GET("", s.listProblems)
			problems.GET("/:source/:id", s.getProblem)
			problems.PUT("/:source/:id", s.updateProblemInfo)
			problems.DELETE("/:source/:id", s.deleteProblem)
			problems.PATCH("/:source/:id/status", s.patchProblemStatus)
			problems.PUT("/:source/:id/status", s.patchProblemStatus)
			problems.PUT("/:source/:id/ac-code", s.updateProblemACCode)
			problems.PUT("/:source/:id/reflection", s.updateProblemReflection)
			problems.PUT("/:source/:id/difficulty", s.updateProblemDifficulty)
			problems.GET("/:source/:id/markdown", s.getProblemMarkdown)
			problems.POST("/:source/:id/translate", s.translateProblem)
			problems.POST("/:source/:id/auto-tag", s.autoTagProblem)
			problems.POST("/:source/:id/images", s.uploadSolutionImage)
			problems.GET("/:source/:id/images/:imageId", s.getSolutionImage)
			problems.DELETE("/:source/:id/images/:imageId", s.deleteSolutionImage)
		}

		solutions := api.Group("/solutions")
		{
			solutions.POST("/tasks", s.createSolutionTasks)
			solutions.GET("/tasks", s.listTasks)
			solutions.GET("/tasks/:taskId", s.getTask)
			solutions.GET("/pending", s.listPendingProblems)
			solutions.GET("/:source/:id", s.readSolution)
		}

		reports := api.Group("/reports")
		{
			reports.POST("/weekly/:week/generate", s.generateWeeklyReport)
			reports.GET("/weekly/:week/status", s.weeklyReportStatus)
			reports.GET("/weekly/:week", s.getWeeklyReport)
		}

		api.GET("/stats/series", s.statsSeries)
		api.GET("/stats/runtime", s.runtimeStats)

		settings := api.Group("/settings")
		{
			settings.GET("", s.getSettings)
			settings.POST("/ai/profiles", s.addAIProfile)
			settings.PUT("/ai/profiles/:profileId", s.updateAIProfile)
			settings.DELETE("/ai/profiles/:profileId", s.deleteAIProfile)
			settings.POST("/ai/profiles/:profileId/activate", s.activateAIProfile)
			settings.DELETE("/ai/models/:model", s.removeModelOption)
			settings.POST("/ai/test", s.testAIConnection)
			settings.PUT("/prompts", s.updatePromptSettings)
			settings.PUT("/ui", s.updateUISettings)
			settings.POST("/storage/migrate", s.migrateStorage)
		}
	}

	return s
}

// Start begins serving on addr. Blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start(host string, port int) error {
	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Router exposes the engine for httptest.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) runtimeStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.collector.Snapshot())
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
