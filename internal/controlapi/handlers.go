package controlapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"diarist/internal/api"
	"diarist/internal/config"
	"diarist/internal/logging"
	"diarist/internal/services"
	"diarist/internal/supervisor"
)

const (
	defaultLogLimit = 10
	maxLogLimit     = 1000
)

func (s *Server) handleStatus(c *gin.Context) {
	snap, err := s.controller.Status(c.Request.Context())
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, err)
		return
	}
	resp := api.StatusResponse{
		Scheduler: api.FromSnapshot(snap),
		Schedule:  api.FromRunsPerDay(s.cfg.Scheduler.RunsPerDay),
	}
	if s.diary != nil {
		date, err := s.diary.DiaryDate(c.Request.Context())
		if err != nil {
			s.logger.Warn("diary date unavailable", logging.Error(err))
		}
		resp.DiaryDate = date
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleLogs(c *gin.Context) {
	limit := defaultLogLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(c, http.StatusBadRequest, errors.Newf("limit must be a positive integer (got %q)", raw))
			return
		}
		limit = min(n, maxLogLimit)
	}
	entries, err := s.controller.Logs(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, api.LogsResponse{Entries: api.FromLogEntries(entries)})
}

func (s *Server) handleStart(c *gin.Context) {
	ack, err := s.controller.Start(c.Request.Context(), actorOf(c))
	if err != nil {
		var already *supervisor.AlreadyRunningError
		if errors.As(err, &already) {
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error(), PID: already.PID})
			return
		}
		s.writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, api.FromStartAck(ack))
}

func (s *Server) handleStop(c *gin.Context) {
	ack, err := s.controller.Stop(c.Request.Context(), actorOf(c))
	if err != nil {
		if errors.Is(err, supervisor.ErrNotRunning) {
			s.writeError(c, http.StatusConflict, err)
			return
		}
		s.writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, api.FromStopAck(ack))
}

func (s *Server) handleSchedule(c *gin.Context) {
	var req api.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, errors.Wrap(err, "decode schedule"))
		return
	}
	if req.RunsPerDay == nil {
		s.writeError(c, http.StatusBadRequest, errors.New("runsPerDay is required"))
		return
	}
	if strings.TrimSpace(s.configPath) == "" {
		s.writeError(c, http.StatusInternalServerError, errors.New("config path unknown; start the server with --config"))
		return
	}
	if err := s.writeSchedule(s.configPath, *req.RunsPerDay); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, config.ErrInvalid) {
			status = http.StatusBadRequest
		}
		s.writeError(c, status, err)
		return
	}
	s.logger.Info("schedule updated",
		logging.String(logging.FieldEventType, "schedule_updated"),
		logging.String(logging.FieldActor, actorOf(c)),
		logging.Int("runs_per_day", *req.RunsPerDay),
	)
	c.JSON(http.StatusOK, api.ScheduleResponse{
		Schedule:        api.FromRunsPerDay(*req.RunsPerDay),
		RestartRequired: true,
	})
}

func (s *Server) writeError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(c.Request.Context(), s.logger), "api request failed", "api_error",
			logging.String("path", c.Request.URL.Path),
			logging.Error(err),
		)
	}
	c.JSON(status, api.ErrorResponse{Error: err.Error(), Hint: services.Hint(err)})
}
