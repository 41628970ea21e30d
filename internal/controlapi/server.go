package controlapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"diarist/internal/config"
	"diarist/internal/logging"
	"diarist/internal/store"
	"diarist/internal/supervisor"
)

// Controller is the supervisor surface the API drives.
type Controller interface {
	Start(ctx context.Context, actor string) (supervisor.StartAck, error)
	Stop(ctx context.Context, actor string) (supervisor.StopAck, error)
	Status(ctx context.Context) (supervisor.Snapshot, error)
	Logs(ctx context.Context, limit int) ([]store.LogEntry, error)
}

// DiaryState reads the active diary date.
type DiaryState interface {
	DiaryDate(ctx context.Context) (string, error)
}

// ScheduleWriter persists runs_per_day.
type ScheduleWriter func(path string, runsPerDay int) error

// Options wires a Server.
type Options struct {
	Config     *config.Config
	ConfigPath string
	Controller Controller
	Diary      DiaryState
	// WriteSchedule defaults to config.SetRunsPerDay.
	WriteSchedule ScheduleWriter
	Logger        *slog.Logger
}

// Server is the gin control API.
type Server struct {
	cfg           *config.Config
	configPath    string
	controller    Controller
	diary         DiaryState
	writeSchedule ScheduleWriter
	defaultActor  string
	logger        *slog.Logger
	engine        *gin.Engine
}

// New builds the server and its routes.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("controlapi: config is required")
	}
	if opts.Controller == nil {
		return nil, errors.New("controlapi: controller is required")
	}
	s := &Server{
		cfg:           opts.Config,
		configPath:    opts.ConfigPath,
		controller:    opts.Controller,
		diary:         opts.Diary,
		writeSchedule: opts.WriteSchedule,
		defaultActor:  strings.TrimSpace(opts.Config.Control.DefaultActor),
		logger:        logging.NewComponentLogger(opts.Logger, "controlapi"),
	}
	if s.writeSchedule == nil {
		s.writeSchedule = config.SetRunsPerDay
	}
	if s.defaultActor == "" {
		s.defaultActor = "operator"
	}
	s.engine = s.routes()
	return s, nil
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := r.Group("/api")
	apiGroup.Use(s.actorMiddleware())
	apiGroup.GET("/status", s.handleStatus)
	apiGroup.GET("/logs", s.handleLogs)
	apiGroup.POST("/scheduler/start", s.handleStart)
	apiGroup.POST("/scheduler/stop", s.handleStop)
	apiGroup.PUT("/schedule", s.handleSchedule)
	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "api listen on %s", addr)
	}
	return s.ServeListener(ctx, listener)
}

// ServeListener serves on an existing listener.
func (s *Server) ServeListener(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Start and stop block for the startup grace and termination timeout.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "api server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
