package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/PACTF/pactf/internal/contest"
	"github.com/PACTF/pactf/internal/database"
	"github.com/PACTF/pactf/internal/database/models"
	"github.com/PACTF/pactf/internal/util"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// saveWindow creates or updates the window identified by the :code path
// parameter. Updating the personal timer duration resyncs every existing
// timer; the update is rejected if any timer would land outside the new
// bounds.
func (h *Handler) saveWindow(c *gin.Context) {
	var req struct {
		Title                     string    `json:"title" binding:"required"`
		Start                     time.Time `json:"start" binding:"required"`
		End                       time.Time `json:"end" binding:"required"`
		PersonalTimerDurationSecs int64     `json:"personal_timer_duration_secs" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	code := c.Param("code")
	window, err := database.GetWindowByCode(h.db, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		window = &models.Window{Code: code}
	} else if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	window.Title = req.Title
	window.Start = req.Start
	window.End = req.End
	window.PersonalTimerDuration = time.Duration(req.PersonalTimerDurationSecs) * time.Second

	if err := h.engine.SaveWindow(window); err != nil {
		switch {
		case errors.Is(err, contest.ErrWindowInvalid):
			util.Error(c, http.StatusBadRequest, err)
		case errors.Is(err, contest.ErrWindowsOverlap),
			errors.Is(err, contest.ErrWindowUpdateInvalidatesTimers):
			util.Error(c, http.StatusConflict, err)
		default:
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}

	h.engine.InvalidateBoard(window.ID)
	zap.S().Infof("window %s saved by admin", window.Code)
	util.Success(c, window, "Window saved")
}

// saveProblems imports or updates a window's problem set. New problems are
// assigned opaque ids so locked problems cannot be enumerated.
func (h *Handler) saveProblems(c *gin.Context) {
	window, ok := h.window(c)
	if !ok {
		return
	}

	var req []struct {
		ID              string          `json:"id"`
		Name            string          `json:"name" binding:"required"`
		Points          int             `json:"points" binding:"required"`
		DescriptionHTML string          `json:"description_html"`
		HintHTML        string          `json:"hint_html"`
		Generator       string          `json:"generator"`
		Grader          string          `json:"grader" binding:"required"`
		Deps            *models.DepSpec `json:"deps"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	var saved []models.Problem
	err := h.db.Transaction(func(tx *gorm.DB) error {
		for _, p := range req {
			if p.Generator != "" && (p.DescriptionHTML != "" || p.HintHTML != "") {
				return errors.New("problem " + p.Name + " cannot be both static and dynamic")
			}
			problem := models.Problem{
				ID:              p.ID,
				WindowID:        window.ID,
				Name:            p.Name,
				Points:          p.Points,
				DescriptionHTML: p.DescriptionHTML,
				HintHTML:        p.HintHTML,
				Generator:       p.Generator,
				Grader:          p.Grader,
				Deps:            p.Deps,
			}
			if problem.ID == "" {
				problem.ID = uuid.NewString()
			}
			if err := database.SaveProblem(tx, &problem); err != nil {
				return err
			}
			saved = append(saved, problem)
		}
		return nil
	})
	if err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	h.engine.InvalidateBoard(window.ID)
	zap.S().Infof("%d problems saved for window %s", len(saved), window.Code)
	util.Success(c, saved, "Problems saved")
}

func (h *Handler) banTeam(c *gin.Context) {
	teamID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, http.StatusBadRequest, "invalid team id")
		return
	}

	var req struct {
		Banned *bool `json:"banned" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	if err := database.SetTeamBanned(h.db, uint(teamID), *req.Banned); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	// A ban (or unban) changes every board the team appears on.
	windows, err := h.engine.AllWindows()
	if err == nil {
		for i := range windows {
			h.engine.InvalidateBoard(windows[i].ID)
		}
	}

	zap.S().Infof("team %d banned=%v", teamID, *req.Banned)
	util.Success(c, gin.H{"team_id": teamID, "banned": *req.Banned}, "Team ban state updated")
}

func (h *Handler) invalidateBoard(c *gin.Context) {
	window, ok := h.window(c)
	if !ok {
		return
	}
	h.engine.InvalidateBoard(window.ID)
	util.Success(c, nil, "Board cache invalidated")
}
