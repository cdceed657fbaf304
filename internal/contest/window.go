package contest

import (
	"fmt"

	"github.com/PACTF/pactf/internal/database"
	"github.com/PACTF/pactf/internal/database/models"
	"gorm.io/gorm"
)

// CurrentWindow resolves "the current window": the ongoing one if any, else
// the soonest upcoming one, else the most recently ended one. A contest with
// zero windows is a configuration error.
func (e *Engine) CurrentWindow() (*models.Window, error) {
	windows, err := database.GetAllWindows(e.db)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, ErrNoWindows
	}

	now := e.clock.Now()

	for i := range windows {
		w := &windows[i]
		if !w.Start.After(now) && !w.End.Before(now) {
			return w, nil
		}
	}

	// Windows are ordered by start ascending, so the first future one is the
	// soonest upcoming.
	for i := range windows {
		if windows[i].Start.After(now) {
			return &windows[i], nil
		}
	}

	return &windows[len(windows)-1], nil
}

// AllWindows lists every window by start time ascending.
func (e *Engine) AllWindows() ([]models.Window, error) {
	return database.GetAllWindows(e.db)
}

func (e *Engine) WindowStarted(w *models.Window) bool {
	return !w.Start.After(e.clock.Now())
}

func (e *Engine) WindowEnded(w *models.Window) bool {
	return w.End.Before(e.clock.Now())
}

// SaveWindow creates or updates a window, enforcing end > start and
// non-overlap against every other window. The overlap check runs inside the
// save transaction, serialized against competing saves, so two concurrent
// writers cannot both pass it. On update, all dependent timers are resynced to
// the new personal timer duration inside the same transaction; if any timer
// would fall outside the new bounds the whole update fails.
func (e *Engine) SaveWindow(window *models.Window) error {
	if !window.End.After(window.Start) {
		return ErrWindowInvalid
	}
	if window.PersonalTimerDuration <= 0 {
		return fmt.Errorf("%w: personal timer duration must be positive", ErrWindowInvalid)
	}

	return e.db.Transaction(func(tx *gorm.DB) error {
		if err := database.LockWindows(tx); err != nil {
			return err
		}
		others, err := database.GetAllWindows(tx)
		if err != nil {
			return err
		}
		for i := range others {
			other := &others[i]
			if other.ID == window.ID {
				continue
			}
			if overlaps(window, other) {
				return fmt.Errorf("%w: %q and %q", ErrWindowsOverlap, window.Code, other.Code)
			}
		}

		if err := database.SaveWindow(tx, window); err != nil {
			return err
		}
		return resyncTimers(tx, window)
	})
}

func overlaps(a, b *models.Window) bool {
	return !a.Start.After(b.End) && !b.Start.After(a.End)
}

// resyncTimers recomputes every timer's end from the window's (possibly
// changed) duration. Unlike StartTimer, no clamping happens here: a timer
// that would be pushed past the window bound aborts the update.
func resyncTimers(tx *gorm.DB, window *models.Window) error {
	timers, err := database.GetTimersForWindow(tx, window.ID)
	if err != nil {
		return err
	}
	for i := range timers {
		timer := &timers[i]
		timer.End = timer.Start.Add(window.PersonalTimerDuration)
		if timer.Start.Before(window.Start) || timer.End.After(window.End) {
			return fmt.Errorf("%w: timer for team %d", ErrWindowUpdateInvalidatesTimers, timer.TeamID)
		}
		if err := database.SaveTimer(tx, timer); err != nil {
			return err
		}
	}
	return nil
}

// withinWindow is the timer bounds invariant shared by every timer mutation
// path.
func withinWindow(timer *models.Timer, window *models.Window) bool {
	return !timer.Start.Before(window.Start) && !timer.End.After(window.End)
}
