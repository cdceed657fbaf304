package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// DepSpec describes the unlock rule attached to a problem: the problem
// becomes visible once the summed points of solved prerequisites reach
// Threshold. A nil DepSpec means the problem is always unlocked.
type DepSpec struct {
	Threshold int      `json:"threshold"`
	Probs     []string `json:"probs"`
}

func (d DepSpec) Value() (driver.Value, error) {
	return json.Marshal(d)
}

func (d *DepSpec) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return errors.New("type assertion to []byte failed")
		}
	}
	return json.Unmarshal(bytes, d)
}

type Team struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Name   string `gorm:"uniqueIndex" json:"name"`
	Banned bool   `json:"banned"`

	// Eligibility attributes, collected at registration.
	Country     string `json:"country"`
	Background  string `json:"background"`
	Affiliation string `json:"affiliation"`

	Competitors []Competitor `gorm:"foreignKey:TeamID" json:"-"`
	Timers      []Timer      `gorm:"foreignKey:TeamID" json:"-"`
}

type Competitor struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Username     string `gorm:"uniqueIndex" json:"username"`
	PasswordHash string `json:"-"`
	Email        string `gorm:"uniqueIndex" json:"email"`

	TeamID uint `gorm:"index" json:"team_id"`
	Team   Team `json:"-"`

	IsAdmin bool `json:"-"`
}

// BeforeUpdate rejects team reassignment. Membership is fixed at
// registration.
func (c *Competitor) BeforeUpdate(tx *gorm.DB) error {
	if !tx.Statement.Changed("TeamID") {
		return nil
	}
	return errors.New("competitor team membership is immutable")
}

type Window struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Code  string `gorm:"uniqueIndex" json:"code"`
	Title string `json:"title"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	PersonalTimerDuration time.Duration `json:"personal_timer_duration"`
}

type Timer struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	WindowID uint `gorm:"uniqueIndex:idx_timer_window_team" json:"window_id"`
	TeamID   uint `gorm:"uniqueIndex:idx_timer_window_team" json:"team_id"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Problem ids are opaque UUIDs rather than small sequential integers so that
// locked problems cannot be enumerated. Problems are written by the import
// process and read-only to the engine.
type Problem struct {
	ID        string `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	WindowID uint   `gorm:"index" json:"window_id"`
	Name     string `json:"name"`
	Points   int    `json:"points"`

	// Static problems carry pre-rendered HTML; dynamic problems carry a
	// generator script instead. The two are mutually exclusive.
	DescriptionHTML string `json:"description_html"`
	HintHTML        string `json:"hint_html"`
	Generator       string `json:"-"`

	Grader string `json:"-"`

	Deps *DepSpec `gorm:"type:text" json:"-"`
}

// Announcement is a broadcast message attached to a window, shown to every
// competitor viewing it.
type Announcement struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time

	WindowID uint   `gorm:"index" json:"window_id"`
	Title    string `json:"title"`
	Body     string `json:"body"`
}

// Solve is the authoritative record that a team got a problem. Score is
// always derived by summing Solve -> Problem.Points; it is never stored. The
// (problem, team) unique index is the dialect-independent backstop for the
// one-solve-per-team rule; the locked pre-insert check only narrows the
// failure to a typed error.
type Solve struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ProblemID    string `gorm:"uniqueIndex:idx_solve_problem_competitor;uniqueIndex:idx_solve_problem_team" json:"problem_id"`
	CompetitorID uint   `gorm:"uniqueIndex:idx_solve_problem_competitor" json:"competitor_id"`
	TeamID       uint   `gorm:"uniqueIndex:idx_solve_problem_team" json:"team_id"`

	Flag string `json:"-"`
}

// Submission is the append-only audit log of every graded flag attempt. The
// problem id is denormalized so the log survives problem deletion. It is
// never authoritative for scoring.
type Submission struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ProblemID    string `gorm:"index" json:"problem_id"`
	CompetitorID uint   `gorm:"index" json:"competitor_id"`
	TeamID       uint   `gorm:"index" json:"team_id"`

	Flag    string `json:"-"`
	Correct bool   `json:"correct"`
}
