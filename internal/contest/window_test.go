package contest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/PACTF/pactf/internal/database"
	"github.com/PACTF/pactf/internal/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentWindowPrefersOngoing(t *testing.T) {
	engine, db, _, _ := newTestEngine(t)

	mkWindow(t, db, "past", testEpoch.Add(-48*time.Hour), testEpoch.Add(-24*time.Hour), time.Hour)
	mkWindow(t, db, "now", testEpoch.Add(-time.Hour), testEpoch.Add(time.Hour), time.Hour)
	mkWindow(t, db, "future", testEpoch.Add(24*time.Hour), testEpoch.Add(48*time.Hour), time.Hour)

	window, err := engine.CurrentWindow()
	require.NoError(t, err)
	assert.Equal(t, "now", window.Code)
}

func TestCurrentWindowFallsBackToSoonestUpcoming(t *testing.T) {
	engine, db, _, _ := newTestEngine(t)

	mkWindow(t, db, "past", testEpoch.Add(-48*time.Hour), testEpoch.Add(-24*time.Hour), time.Hour)
	mkWindow(t, db, "later", testEpoch.Add(72*time.Hour), testEpoch.Add(96*time.Hour), time.Hour)
	mkWindow(t, db, "sooner", testEpoch.Add(24*time.Hour), testEpoch.Add(48*time.Hour), time.Hour)

	window, err := engine.CurrentWindow()
	require.NoError(t, err)
	assert.Equal(t, "sooner", window.Code)
}

func TestCurrentWindowFallsBackToLastEnded(t *testing.T) {
	engine, db, _, _ := newTestEngine(t)

	mkWindow(t, db, "first", testEpoch.Add(-96*time.Hour), testEpoch.Add(-72*time.Hour), time.Hour)
	mkWindow(t, db, "last", testEpoch.Add(-48*time.Hour), testEpoch.Add(-24*time.Hour), time.Hour)

	window, err := engine.CurrentWindow()
	require.NoError(t, err)
	assert.Equal(t, "last", window.Code)
}

func TestCurrentWindowWithNoWindows(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	_, err := engine.CurrentWindow()
	assert.ErrorIs(t, err, ErrNoWindows)
}

func TestSaveWindowRejectsInvertedBounds(t *testing.T) {
	engine, db, _, _ := newTestEngine(t)

	window := mkWindow(t, db, "w", testEpoch, testEpoch.Add(time.Hour), time.Hour)
	window.End = window.Start.Add(-time.Minute)
	assert.ErrorIs(t, engine.SaveWindow(window), ErrWindowInvalid)
}

func TestSaveWindowRejectsNonPositiveTimerDuration(t *testing.T) {
	engine, db, _, _ := newTestEngine(t)

	window := mkWindow(t, db, "w", testEpoch, testEpoch.Add(time.Hour), time.Hour)
	window.PersonalTimerDuration = 0
	assert.ErrorIs(t, engine.SaveWindow(window), ErrWindowInvalid)
}

func TestSaveWindowRejectsOverlap(t *testing.T) {
	engine, db, _, _ := newTestEngine(t)

	mkWindow(t, db, "a", testEpoch, testEpoch.Add(24*time.Hour), time.Hour)
	b := mkWindow(t, db, "b", testEpoch.Add(48*time.Hour), testEpoch.Add(72*time.Hour), time.Hour)

	// Slide b back so it straddles a's end.
	b.Start = testEpoch.Add(12 * time.Hour)
	b.End = testEpoch.Add(36 * time.Hour)
	assert.ErrorIs(t, engine.SaveWindow(b), ErrWindowsOverlap)
}

func TestSaveWindowOverlapHoldsUnderConcurrency(t *testing.T) {
	engine, db, _, _ := newTestEngine(t)

	for i := 0; i < 20; i++ {
		require.NoError(t, db.Exec("DELETE FROM windows").Error)

		a := &models.Window{
			Code:                  fmt.Sprintf("a%d", i),
			Start:                 testEpoch,
			End:                   testEpoch.Add(2 * time.Hour),
			PersonalTimerDuration: time.Hour,
		}
		b := &models.Window{
			Code:                  fmt.Sprintf("b%d", i),
			Start:                 testEpoch.Add(time.Hour),
			End:                   testEpoch.Add(3 * time.Hour),
			PersonalTimerDuration: time.Hour,
		}

		start := make(chan struct{})
		errs := make([]error, 2)
		var wg sync.WaitGroup
		for j, window := range []*models.Window{a, b} {
			wg.Add(1)
			go func(j int, window *models.Window) {
				defer wg.Done()
				<-start
				errs[j] = engine.SaveWindow(window)
			}(j, window)
		}
		close(start)
		wg.Wait()

		// At most one save may win; the loser fails with ErrWindowsOverlap or
		// loses the write serialization.
		assert.False(t, errs[0] == nil && errs[1] == nil, "both overlapping saves committed")

		windows, err := database.GetAllWindows(db)
		require.NoError(t, err)
		for x := range windows {
			for y := x + 1; y < len(windows); y++ {
				assert.False(t, overlaps(&windows[x], &windows[y]),
					"%q and %q overlap in the database", windows[x].Code, windows[y].Code)
			}
		}
	}
}

func TestSaveWindowResyncsTimers(t *testing.T) {
	engine, db, _, _ := newTestEngine(t)

	window := mkWindow(t, db, "w", testEpoch, testEpoch.Add(24*time.Hour), 2*time.Hour)
	team := mkTeam(t, db, "crimson")
	mkTimer(t, db, window, team, testEpoch.Add(time.Hour), testEpoch.Add(3*time.Hour))

	window.PersonalTimerDuration = 4 * time.Hour
	require.NoError(t, engine.SaveWindow(window))

	timer, err := database.GetTimer(db, window.ID, team.ID)
	require.NoError(t, err)
	assert.True(t, timer.End.Equal(testEpoch.Add(5*time.Hour)), "timer end should track the new duration")
}

func TestSaveWindowAbortsWhenResyncBreaksTimerBounds(t *testing.T) {
	engine, db, _, _ := newTestEngine(t)

	window := mkWindow(t, db, "w", testEpoch, testEpoch.Add(4*time.Hour), time.Hour)
	team := mkTeam(t, db, "crimson")
	originalEnd := testEpoch.Add(4 * time.Hour)
	mkTimer(t, db, window, team, testEpoch.Add(3*time.Hour), originalEnd)

	// A longer duration would push the timer past the window end; nothing may
	// change.
	window.PersonalTimerDuration = 6 * time.Hour
	err := engine.SaveWindow(window)
	assert.ErrorIs(t, err, ErrWindowUpdateInvalidatesTimers)

	reloaded, err := database.GetWindowByCode(db, "w")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, reloaded.PersonalTimerDuration)

	timer, err := database.GetTimer(db, window.ID, team.ID)
	require.NoError(t, err)
	assert.True(t, timer.End.Equal(originalEnd), "timer must be untouched after rollback")
}
