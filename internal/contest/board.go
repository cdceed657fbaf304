package contest

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PACTF/pactf/internal/database"
	"github.com/PACTF/pactf/internal/database/models"
	"github.com/PACTF/pactf/internal/pubsub"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// overallKey is the cache slot for the cross-window board.
const overallKey uint = 0

// BoardEntry is one ranked row of a scoreboard. Ranks are 1-based and
// distinct: ties in the sort order still get sequential ranks.
type BoardEntry struct {
	Rank     int     `json:"rank"`
	TeamID   uint    `json:"team_id"`
	TeamName string  `json:"team_name"`
	Score    float64 `json:"score"`

	lastSolve *time.Time
}

// Score computes a team's score for a window: the summed points of its solves
// timestamped inside the team's personal timer. Solves outside that range
// (for example via an admin bypass) do not count. No timer means zero.
func (e *Engine) Score(team *models.Team, window *models.Window) (int, error) {
	timer, err := database.GetTimer(e.db, window.ID, team.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return database.SumQualifyingSolvePoints(e.db, team.ID, window.ID, timer.Start, timer.End)
}

// Board returns the ranked scoreboard for a window, cached for the configured
// TTL. Staleness up to the TTL is deliberate; data-affecting admin operations
// call InvalidateBoard.
func (e *Engine) Board(window *models.Window) ([]BoardEntry, error) {
	if rows, ok := e.boards.get(window.ID); ok {
		return rows, nil
	}

	teams, err := database.GetAllTeams(e.db)
	if err != nil {
		return nil, err
	}

	entries := make([]BoardEntry, 0, len(teams))
	for i := range teams {
		team := &teams[i]
		if team.Banned {
			continue
		}
		score, lastSolve, err := e.windowStanding(team, window)
		if err != nil {
			return nil, err
		}
		entries = append(entries, BoardEntry{
			TeamID:    team.ID,
			TeamName:  team.Name,
			Score:     float64(score),
			lastSolve: lastSolve,
		})
	}

	rankEntries(entries)
	e.boards.put(window.ID, entries)
	return entries, nil
}

// OverallBoard aggregates across all windows: each window's score is
// normalized to a fixed point scale before summing, so windows with different
// point totals weigh equally.
func (e *Engine) OverallBoard() ([]BoardEntry, error) {
	if rows, ok := e.boards.get(overallKey); ok {
		return rows, nil
	}

	windows, err := database.GetAllWindows(e.db)
	if err != nil {
		return nil, err
	}
	teams, err := database.GetAllTeams(e.db)
	if err != nil {
		return nil, err
	}

	maxPoints := make(map[uint]int, len(windows))
	for i := range windows {
		total, err := database.SumProblemPoints(e.db, windows[i].ID)
		if err != nil {
			return nil, err
		}
		maxPoints[windows[i].ID] = total
	}

	scale := float64(e.cfg.Contest.OverallScale)
	entries := make([]BoardEntry, 0, len(teams))
	for i := range teams {
		team := &teams[i]
		if team.Banned {
			continue
		}

		var (
			total     float64
			lastSolve *time.Time
		)
		for j := range windows {
			window := &windows[j]
			if maxPoints[window.ID] == 0 {
				continue
			}
			score, solveTime, err := e.windowStanding(team, window)
			if err != nil {
				return nil, err
			}
			total += scale * float64(score) / float64(maxPoints[window.ID])
			if solveTime != nil && (lastSolve == nil || solveTime.After(*lastSolve)) {
				lastSolve = solveTime
			}
		}
		entries = append(entries, BoardEntry{
			TeamID:    team.ID,
			TeamName:  team.Name,
			Score:     total,
			lastSolve: lastSolve,
		})
	}

	rankEntries(entries)
	e.boards.put(overallKey, entries)
	return entries, nil
}

// windowStanding returns a team's qualifying score for a window along with
// the timestamp of its last qualifying solve, which drives the tie-break.
func (e *Engine) windowStanding(team *models.Team, window *models.Window) (int, *time.Time, error) {
	timer, err := database.GetTimer(e.db, window.ID, team.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil, nil
		}
		return 0, nil, err
	}
	score, err := database.SumQualifyingSolvePoints(e.db, team.ID, window.ID, timer.Start, timer.End)
	if err != nil {
		return 0, nil, err
	}
	lastSolve, err := database.LastQualifyingSolveTime(e.db, team.ID, window.ID, timer.Start, timer.End)
	if err != nil {
		return 0, nil, err
	}
	return score, lastSolve, nil
}

// rankEntries sorts by score descending, breaking ties by earlier last
// qualifying solve (teams with none sort last) and then by case-insensitive
// name, and assigns sequential 1-based ranks.
func rankEntries(entries []BoardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := &entries[i], &entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		switch {
		case a.lastSolve == nil && b.lastSolve != nil:
			return false
		case a.lastSolve != nil && b.lastSolve == nil:
			return true
		case a.lastSolve != nil && b.lastSolve != nil && !a.lastSolve.Equal(*b.lastSolve):
			return a.lastSolve.Before(*b.lastSolve)
		}
		return strings.ToLower(a.TeamName) < strings.ToLower(b.TeamName)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// InvalidateBoard drops the cached board for a window (and the overall board,
// which depends on every window).
func (e *Engine) InvalidateBoard(windowID uint) {
	e.boards.invalidate(windowID)
	e.boards.invalidate(overallKey)
}

// BoardTopic names the pubsub topic carrying live updates for a window's
// board.
func BoardTopic(windowID uint) string {
	return fmt.Sprintf("board:%d", windowID)
}

func (e *Engine) publishSolve(window *models.Window, teamID uint, problem *models.Problem) {
	if e.broker == nil {
		return
	}
	e.broker.Publish(BoardTopic(window.ID), pubsub.FormatEvent("solve", map[string]interface{}{
		"team_id":    teamID,
		"problem_id": problem.ID,
		"points":     problem.Points,
	}))
}

// boardCache holds computed boards for a fixed TTL. Misses fail open to
// recomputation.
type boardCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	clock   clockwork.Clock
	entries map[uint]cachedBoard
}

type cachedBoard struct {
	rows    []BoardEntry
	expires time.Time
}

func newBoardCache(ttl time.Duration, clock clockwork.Clock) *boardCache {
	return &boardCache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[uint]cachedBoard),
	}
}

func (c *boardCache) get(key uint) ([]BoardEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cached, ok := c.entries[key]
	if !ok || c.clock.Now().After(cached.expires) {
		return nil, false
	}
	return cached.rows, true
}

func (c *boardCache) put(key uint, rows []BoardEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedBoard{rows: rows, expires: c.clock.Now().Add(c.ttl)}
}

func (c *boardCache) invalidate(key uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
