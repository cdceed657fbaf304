package api

import (
	"errors"
	"net/http"

	"github.com/PACTF/pactf/internal/contest"
	"github.com/PACTF/pactf/internal/database"
	"github.com/PACTF/pactf/internal/util"
	"github.com/gin-gonic/gin"
)

func (h *Handler) getVisibleProblems(c *gin.Context) {
	window, ok := h.window(c)
	if !ok {
		return
	}
	competitor, ok := h.competitor(c)
	if !ok {
		return
	}

	// Problems stay hidden until the team's timer is running (admins see
	// everything).
	if !competitor.IsAdmin {
		state, err := h.engine.TeamState(&competitor.Team, window)
		if err != nil {
			util.Error(c, http.StatusInternalServerError, err)
			return
		}
		if state != contest.StateActive && state != contest.StateEnded && state != contest.StateExpired {
			util.Error(c, http.StatusForbidden, "window is not open for your team")
			return
		}
	}

	problems, err := h.engine.VisibleProblems(&competitor.Team, window)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, problems, "Problems retrieved")
}

func (h *Handler) submitFlag(c *gin.Context) {
	competitor, ok := h.competitor(c)
	if !ok {
		return
	}

	allowed, err := h.limiter.Allow(c.Request.Context(), competitor.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	if !allowed {
		util.Error(c, http.StatusTooManyRequests, "you are submitting flags too fast, slow down")
		return
	}

	var req struct {
		Flag string `json:"flag"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	result, err := h.engine.SubmitFlag(c.Request.Context(), competitor, c.Param("id"), req.Flag)
	if err != nil {
		switch {
		case errors.Is(err, contest.ErrProblemNotFound):
			util.Error(c, http.StatusNotFound, err)
		case errors.Is(err, contest.ErrAlreadySolved):
			util.Error(c, http.StatusConflict, "your team has already solved this problem")
		case errors.Is(err, contest.ErrFlagAlreadyTried):
			util.Error(c, http.StatusConflict, "your team has already tried this flag")
		case errors.Is(err, contest.ErrSubmissionNotAllowed):
			util.Error(c, http.StatusForbidden, "your timer must have expired; reload the page")
		case errors.Is(err, contest.ErrEmptyFlag):
			util.Error(c, http.StatusBadRequest, "the flag was empty")
		case errors.Is(err, contest.ErrFlagTooLong):
			util.Error(c, http.StatusBadRequest, "the flag is too long")
		case errors.Is(err, contest.ErrGraderFault):
			// Already logged with full context; nothing internal leaks here.
			util.Error(c, http.StatusInternalServerError, "something went wrong grading your flag")
		default:
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}

	util.Success(c, result, "Flag graded")
}

func (h *Handler) getTeamSubmissions(c *gin.Context) {
	competitor, ok := h.competitor(c)
	if !ok {
		return
	}

	subs, err := database.GetSubmissionsForTeam(h.db, competitor.TeamID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, subs, "Submissions retrieved")
}
