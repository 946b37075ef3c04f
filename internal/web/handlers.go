package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ritual/internal/core"
	"ritual/internal/display"
	"ritual/pkg/domain"
)

type addDayRequest struct {
	Date *time.Time `json:"date"`
}

type addHabitRequest struct {
	Title string `json:"title"`
}

type setDoneRequest struct {
	Done *bool `json:"done" binding:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Snapshot())
}

// handleListDays returns days oldest first; ?last=N keeps the newest N.
func (s *Server) handleListDays(c *gin.Context) {
	var last domain.NonZeroUint32
	if raw := c.Query("last"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			s.badRequest(c, err)
			return
		}
		last, err = domain.NewNonZeroUint32(uint32(n))
		if err != nil {
			s.fail(c, err)
			return
		}
	}
	days := display.Recent(s.engine.Snapshot(), last)
	c.JSON(http.StatusOK, gin.H{"days": days, "count": len(days)})
}

func (s *Server) handleAddDay(c *gin.Context) {
	var req addDayRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badRequest(c, err)
			return
		}
	}
	var date time.Time
	if req.Date != nil {
		date = *req.Date
	}
	day, err := s.engine.NewDay(c.Request.Context(), date)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, day)
}

func (s *Server) handleAddHabit(c *gin.Context) {
	dayID, ok := s.pathID(c, "day")
	if !ok {
		return
	}
	var req addHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	habit, err := s.engine.AddHabitToDay(c.Request.Context(), req.Title, dayID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, habit)
}

func (s *Server) handleSetDone(c *gin.Context) {
	dayID, ok := s.pathID(c, "day")
	if !ok {
		return
	}
	habitID, ok := s.pathID(c, "habit")
	if !ok {
		return
	}
	var req setDoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	ref, err := s.engine.SetHabitDone(c.Request.Context(), dayID, habitID, *req.Done)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ref)
}

func (s *Server) handleSave(c *gin.Context) {
	if err := s.engine.Save(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		s.fail(c, domain.ValidationError{Predicate: "a UUID", Value: c.Param(name)})
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "invalid_request"})
}

// fail maps err's kind to a status code.
func (s *Server) fail(c *gin.Context, err error) {
	kind := domain.ErrorKind(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrEngineStopped):
		status, kind = http.StatusServiceUnavailable, "unavailable"
	case kind == "not_found":
		status = http.StatusNotFound
	case kind == "invalid_value":
		status = http.StatusBadRequest
	case kind == "duplicate_key":
		status = http.StatusConflict
	case kind == "rule_violation":
		status = http.StatusUnprocessableEntity
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "kind", kind, "error", err)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error(), Kind: kind})
}
