package api

import (
	"errors"
	"net/http"

	"github.com/PACTF/pactf/internal/contest"
	"github.com/PACTF/pactf/internal/util"
	"github.com/gin-gonic/gin"
)

func (h *Handler) getAllWindows(c *gin.Context) {
	windows, err := h.engine.AllWindows()
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, windows, "Windows retrieved")
}

func (h *Handler) getCurrentWindow(c *gin.Context) {
	window, err := h.engine.CurrentWindow()
	if err != nil {
		if errors.Is(err, contest.ErrNoWindows) {
			util.Error(c, http.StatusServiceUnavailable, "no contest windows configured")
			return
		}
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, window, "Current window retrieved")
}

// getWindow returns one window along with the acting team's state in it, so
// the client can branch between waiting/inactive/expired/active/ended views.
func (h *Handler) getWindow(c *gin.Context) {
	window, ok := h.window(c)
	if !ok {
		return
	}
	competitor, ok := h.competitor(c)
	if !ok {
		return
	}

	state, err := h.engine.TeamState(&competitor.Team, window)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	resp := gin.H{"window": window, "state": state}
	if timer, err := h.engine.HasTimer(&competitor.Team, window); err == nil && timer {
		resp["has_timer"] = true
	}
	util.Success(c, resp, "Window retrieved")
}

func (h *Handler) startTimer(c *gin.Context) {
	window, ok := h.window(c)
	if !ok {
		return
	}
	competitor, ok := h.competitor(c)
	if !ok {
		return
	}

	timer, err := h.engine.StartTimer(&competitor.Team, window)
	if err != nil {
		switch {
		case errors.Is(err, contest.ErrAlreadyStarted):
			util.Error(c, http.StatusConflict, err)
		case errors.Is(err, contest.ErrWindowNotStarted), errors.Is(err, contest.ErrWindowEnded):
			util.Error(c, http.StatusForbidden, err)
		default:
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}
	util.Success(c, timer, "Timer started")
}

func (h *Handler) getBoard(c *gin.Context) {
	// The overall pseudo-window has no row of its own.
	if c.Param("code") == h.cfg.Contest.OverallCode {
		h.getOverallBoard(c)
		return
	}

	window, ok := h.window(c)
	if !ok {
		return
	}

	board, err := h.engine.Board(window)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, board, "Board retrieved")
}

func (h *Handler) getOverallBoard(c *gin.Context) {
	board, err := h.engine.OverallBoard()
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, board, "Overall board retrieved")
}
