// Package web exposes the engine's commands over HTTP.
package web

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ritual/internal/core"
	"ritual/pkg/domain"
)

// Engine is the subset of *core.Engine the handlers drive.
type Engine interface {
	NewDay(ctx context.Context, date time.Time) (domain.Day, error)
	AddHabitToDay(ctx context.Context, title string, dayID uuid.UUID) (domain.Habit, error)
	SetHabitDone(ctx context.Context, dayID, habitID uuid.UUID, done bool) (domain.HabitRef, error)
	Save(ctx context.Context) error
	Snapshot() domain.State
}

// Server is the ritual HTTP API.
type Server struct {
	engine   Engine
	router   *gin.Engine
	logger   core.Logger
	gatherer prometheus.Gatherer
}

// Option customises a Server.
type Option func(*Server)

// WithLogger logs every request at debug level and failures at error level.
func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer serves /metrics from gatherer instead of the default registry.
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		if gatherer != nil {
			s.gatherer = gatherer
		}
	}
}

// NewServer builds the router.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		logger:   nopLogger{},
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.logRequests)
	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	router.GET("/debug/vars", gin.WrapH(expvar.Handler()))

	api := router.Group("/api")
	{
		api.GET("/state", s.handleState)
		api.GET("/days", s.handleListDays)
		api.POST("/days", s.handleAddDay)
		api.POST("/days/:day/habits", s.handleAddHabit)
		api.PUT("/days/:day/habits/:habit", s.handleSetDone)
		api.POST("/save", s.handleSave)
	}
	s.router = router
	return s
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("http server listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("http request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"duration", time.Since(start))
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
