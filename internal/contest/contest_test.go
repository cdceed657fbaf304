package contest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/PACTF/pactf/internal/config"
	"github.com/PACTF/pactf/internal/database"
	"github.com/PACTF/pactf/internal/database/models"
	"github.com/PACTF/pactf/internal/grader"
	"github.com/PACTF/pactf/internal/pubsub"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testEpoch = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

type graderFunc func(teamKey int64, flag string) (grader.Verdict, error)

func (f graderFunc) Grade(_ context.Context, teamKey int64, flag string) (grader.Verdict, error) {
	return f(teamKey, flag)
}

type generatorFunc func(teamKey int64) (grader.Content, error)

func (f generatorFunc) Generate(_ context.Context, teamKey int64) (grader.Content, error) {
	return f(teamKey)
}

// fakeLoader maps script names to in-process functions. Unknown scripts fail,
// standing in for a broken script on disk.
type fakeLoader struct {
	graders    map[string]graderFunc
	generators map[string]generatorFunc
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		graders:    make(map[string]graderFunc),
		generators: make(map[string]generatorFunc),
	}
}

func (l *fakeLoader) Grader(script string) grader.Grader {
	if f, ok := l.graders[script]; ok {
		return f
	}
	return graderFunc(func(int64, string) (grader.Verdict, error) {
		return grader.Verdict{}, errors.New("no such script: " + script)
	})
}

func (l *fakeLoader) Generator(script string) grader.Generator {
	if f, ok := l.generators[script]; ok {
		return f
	}
	return generatorFunc(func(int64) (grader.Content, error) {
		return grader.Content{}, errors.New("no such script: " + script)
	})
}

// exactFlag is the common grading stub: correct iff the flag matches.
func exactFlag(want string) graderFunc {
	return func(_ int64, flag string) (grader.Verdict, error) {
		if flag == want {
			return grader.Verdict{Correct: true, Message: "correct"}, nil
		}
		return grader.Verdict{Correct: false, Message: "incorrect"}, nil
	}
}

func newTestEngine(t *testing.T) (*Engine, *gorm.DB, *clockwork.FakeClock, *fakeLoader) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{}
	cfg.Contest.FlagMaxLength = 100
	cfg.Contest.SubmitPerSec = 2
	cfg.Contest.BoardCacheTTL = 30
	cfg.Contest.OverallScale = 1000
	cfg.Contest.ProblemSalt = "salt"
	cfg.Contest.ServerSecret = "secret"
	cfg.Problems.StaticURL = "/static/problems"

	clock := clockwork.NewFakeClockAt(testEpoch)
	loader := newFakeLoader()
	engine := New(db, cfg, clock, loader, pubsub.NewBroker())
	return engine, db, clock, loader
}

func mkTeam(t *testing.T, db *gorm.DB, name string) *models.Team {
	t.Helper()
	team := &models.Team{Name: name}
	require.NoError(t, database.CreateTeam(db, team))
	return team
}

func mkCompetitor(t *testing.T, db *gorm.DB, username string, team *models.Team, admin bool) *models.Competitor {
	t.Helper()
	competitor := &models.Competitor{
		Username: username,
		Email:    username + "@example.com",
		TeamID:   team.ID,
		IsAdmin:  admin,
	}
	require.NoError(t, database.CreateCompetitor(db, competitor))
	return competitor
}

func mkWindow(t *testing.T, db *gorm.DB, code string, start, end time.Time, timerDuration time.Duration) *models.Window {
	t.Helper()
	window := &models.Window{
		Code:                  code,
		Title:                 code,
		Start:                 start,
		End:                   end,
		PersonalTimerDuration: timerDuration,
	}
	require.NoError(t, database.CreateWindow(db, window))
	return window
}

func mkProblem(t *testing.T, db *gorm.DB, window *models.Window, name string, points int, deps *models.DepSpec) *models.Problem {
	t.Helper()
	problem := &models.Problem{
		ID:              uuid.NewString(),
		WindowID:        window.ID,
		Name:            name,
		Points:          points,
		DescriptionHTML: "<p>" + name + "</p>",
		Grader:          "grade.py",
		Deps:            deps,
	}
	require.NoError(t, database.SaveProblem(db, problem))
	return problem
}

func mkTimer(t *testing.T, db *gorm.DB, window *models.Window, team *models.Team, start, end time.Time) *models.Timer {
	t.Helper()
	timer := &models.Timer{WindowID: window.ID, TeamID: team.ID, Start: start, End: end}
	require.NoError(t, database.CreateTimer(db, timer))
	return timer
}

func mkSolve(t *testing.T, db *gorm.DB, problem *models.Problem, competitor *models.Competitor, at time.Time) *models.Solve {
	t.Helper()
	solve := &models.Solve{
		CreatedAt:    at,
		ProblemID:    problem.ID,
		CompetitorID: competitor.ID,
		TeamID:       competitor.TeamID,
		Flag:         "flag",
	}
	require.NoError(t, database.CreateSolve(db, solve))
	return solve
}
