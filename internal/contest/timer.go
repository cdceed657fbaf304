package contest

import (
	"errors"
	"strings"

	"github.com/PACTF/pactf/internal/database"
	"github.com/PACTF/pactf/internal/database/models"
	"gorm.io/gorm"
)

// State describes where a team stands with respect to a window. Callers
// branch on this enum instead of re-deriving the window/timer conditions at
// every entry point.
type State string

const (
	// StateWaiting: the window has not started yet.
	StateWaiting State = "waiting"
	// StateEnded: the window is over.
	StateEnded State = "ended"
	// StateInactive: the window is ongoing but the team has not started its
	// timer.
	StateInactive State = "inactive"
	// StateExpired: the team's timer has run out while the window is ongoing.
	StateExpired State = "expired"
	// StateActive: the team's timer is running; it may view problems and
	// submit flags.
	StateActive State = "active"
)

// StartTimer starts the team's personal countdown for a window. This is the
// only path that creates timers. The timer ends after the window's personal
// duration, clamped to the window end.
func (e *Engine) StartTimer(team *models.Team, window *models.Window) (*models.Timer, error) {
	exists, err := database.HasTimer(e.db, window.ID, team.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyStarted
	}

	now := e.clock.Now()
	if now.Before(window.Start) {
		return nil, ErrWindowNotStarted
	}
	if !now.Before(window.End) {
		return nil, ErrWindowEnded
	}

	end := now.Add(window.PersonalTimerDuration)
	if end.After(window.End) {
		end = window.End
	}

	timer := &models.Timer{
		WindowID: window.ID,
		TeamID:   team.ID,
		Start:    now,
		End:      end,
	}
	if !withinWindow(timer, window) {
		return nil, ErrTimerOutOfWindowBounds
	}

	if err := database.CreateTimer(e.db, timer); err != nil {
		// Two workers may race past the existence check; the unique index on
		// (window, team) decides the winner.
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return nil, ErrAlreadyStarted
		}
		return nil, err
	}
	return timer, nil
}

// UpdateTimer persists direct edits to a timer, re-validating the window
// bounds invariant.
func (e *Engine) UpdateTimer(timer *models.Timer) error {
	window, err := database.GetWindowByID(e.db, timer.WindowID)
	if err != nil {
		return err
	}
	if !withinWindow(timer, window) {
		return ErrTimerOutOfWindowBounds
	}
	return database.SaveTimer(e.db, timer)
}

// HasTimer reports whether the team has started its timer for the window.
func (e *Engine) HasTimer(team *models.Team, window *models.Window) (bool, error) {
	return database.HasTimer(e.db, window.ID, team.ID)
}

// TimerActive reports whether a timer is currently running.
func (e *Engine) TimerActive(timer *models.Timer) bool {
	now := e.clock.Now()
	return !timer.Start.After(now) && !timer.End.Before(now)
}

func (e *Engine) hasActiveTimer(db *gorm.DB, teamID uint, window *models.Window) (bool, error) {
	timer, err := database.GetTimer(db, window.ID, teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return e.TimerActive(timer), nil
}

// TeamState classifies the team's standing in a window at the current time.
func (e *Engine) TeamState(team *models.Team, window *models.Window) (State, error) {
	if !e.WindowStarted(window) {
		return StateWaiting, nil
	}
	if e.WindowEnded(window) {
		return StateEnded, nil
	}

	timer, err := database.GetTimer(e.db, window.ID, team.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StateInactive, nil
		}
		return "", err
	}
	if !e.TimerActive(timer) {
		return StateExpired, nil
	}
	return StateActive, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key")
}
