package database

import (
	"errors"
	"time"

	"github.com/PACTF/pactf/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Team and Competitor

func CreateTeam(db *gorm.DB, team *models.Team) error {
	return db.Create(team).Error
}

func GetTeamByID(db *gorm.DB, id uint) (*models.Team, error) {
	var team models.Team
	if err := db.Where("id = ?", id).First(&team).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

func GetTeamByName(db *gorm.DB, name string) (*models.Team, error) {
	var team models.Team
	if err := db.Where("name = ?", name).First(&team).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

func GetAllTeams(db *gorm.DB) ([]models.Team, error) {
	var teams []models.Team
	if err := db.Order("id asc").Find(&teams).Error; err != nil {
		return nil, err
	}
	return teams, nil
}

func SetTeamBanned(db *gorm.DB, teamID uint, banned bool) error {
	return db.Model(&models.Team{}).Where("id = ?", teamID).Update("banned", banned).Error
}

func CreateCompetitor(db *gorm.DB, competitor *models.Competitor) error {
	return db.Create(competitor).Error
}

func GetCompetitorByID(db *gorm.DB, id uint) (*models.Competitor, error) {
	var competitor models.Competitor
	if err := db.Preload("Team").Where("id = ?", id).First(&competitor).Error; err != nil {
		return nil, err
	}
	return &competitor, nil
}

func GetCompetitorByUsername(db *gorm.DB, username string) (*models.Competitor, error) {
	var competitor models.Competitor
	if err := db.Preload("Team").Where("username = ?", username).First(&competitor).Error; err != nil {
		return nil, err
	}
	return &competitor, nil
}

// Windows

func CreateWindow(db *gorm.DB, window *models.Window) error {
	return db.Create(window).Error
}

func SaveWindow(db *gorm.DB, window *models.Window) error {
	return db.Save(window).Error
}

func GetWindowByID(db *gorm.DB, id uint) (*models.Window, error) {
	var window models.Window
	if err := db.Where("id = ?", id).First(&window).Error; err != nil {
		return nil, err
	}
	return &window, nil
}

func GetWindowByCode(db *gorm.DB, code string) (*models.Window, error) {
	var window models.Window
	if err := db.Where("code = ?", code).First(&window).Error; err != nil {
		return nil, err
	}
	return &window, nil
}

// LockWindows serializes window writers for the rest of the transaction, so a
// read-check-write sequence (like the overlap check) cannot interleave with a
// competing save. sqlite transactions are single-writer and need no explicit
// lock; FOR UPDATE on the existing rows is not enough on other dialects
// because a concurrent insert locks nothing.
func LockWindows(tx *gorm.DB) error {
	switch tx.Dialector.Name() {
	case "postgres":
		return tx.Exec("LOCK TABLE windows IN SHARE ROW EXCLUSIVE MODE").Error
	default:
		return nil
	}
}

// GetAllWindows returns every window ordered by start time ascending.
func GetAllWindows(db *gorm.DB) ([]models.Window, error) {
	var windows []models.Window
	if err := db.Order("start asc").Find(&windows).Error; err != nil {
		return nil, err
	}
	return windows, nil
}

// Timers

func CreateTimer(db *gorm.DB, timer *models.Timer) error {
	return db.Create(timer).Error
}

func GetTimer(db *gorm.DB, windowID, teamID uint) (*models.Timer, error) {
	var timer models.Timer
	if err := db.Where("window_id = ? AND team_id = ?", windowID, teamID).First(&timer).Error; err != nil {
		return nil, err
	}
	return &timer, nil
}

func HasTimer(db *gorm.DB, windowID, teamID uint) (bool, error) {
	var count int64
	err := db.Model(&models.Timer{}).
		Where("window_id = ? AND team_id = ?", windowID, teamID).
		Count(&count).Error
	return count > 0, err
}

func GetTimersForWindow(db *gorm.DB, windowID uint) ([]models.Timer, error) {
	var timers []models.Timer
	if err := db.Where("window_id = ?", windowID).Find(&timers).Error; err != nil {
		return nil, err
	}
	return timers, nil
}

func SaveTimer(db *gorm.DB, timer *models.Timer) error {
	return db.Save(timer).Error
}

// Problems

func SaveProblem(db *gorm.DB, problem *models.Problem) error {
	return db.Save(problem).Error
}

func GetProblem(db *gorm.DB, id string) (*models.Problem, error) {
	var problem models.Problem
	if err := db.Where("id = ?", id).First(&problem).Error; err != nil {
		return nil, err
	}
	return &problem, nil
}

func GetProblemsForWindow(db *gorm.DB, windowID uint) ([]models.Problem, error) {
	var problems []models.Problem
	if err := db.Where("window_id = ?", windowID).Find(&problems).Error; err != nil {
		return nil, err
	}
	return problems, nil
}

// SumProblemPoints returns the maximum number of points obtainable in a
// window, used for cross-window normalization on the overall board.
func SumProblemPoints(db *gorm.DB, windowID uint) (int, error) {
	var total int
	err := db.Model(&models.Problem{}).
		Select("COALESCE(SUM(points), 0)").
		Where("window_id = ?", windowID).
		Scan(&total).Error
	return total, err
}

// Announcements

func CreateAnnouncement(db *gorm.DB, announcement *models.Announcement) error {
	return db.Create(announcement).Error
}

func GetAnnouncementsForWindow(db *gorm.DB, windowID uint) ([]models.Announcement, error) {
	var announcements []models.Announcement
	if err := db.Where("window_id = ?", windowID).Order("created_at desc").Find(&announcements).Error; err != nil {
		return nil, err
	}
	return announcements, nil
}

func DeleteAnnouncement(db *gorm.DB, windowID, id uint) error {
	result := db.Where("window_id = ? AND id = ?", windowID, id).Delete(&models.Announcement{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Solves

func CreateSolve(db *gorm.DB, solve *models.Solve) error {
	return db.Create(solve).Error
}

// TeamSolveExists reports whether any competitor on the team has solved the
// problem. Pass a transaction with a locking clause when the answer guards an
// insert.
func TeamSolveExists(db *gorm.DB, problemID string, teamID uint) (bool, error) {
	var count int64
	err := db.Model(&models.Solve{}).
		Where("problem_id = ? AND team_id = ?", problemID, teamID).
		Count(&count).Error
	return count > 0, err
}

// TeamSolveExistsLocked performs the same check under a row lock so that two
// competitors on one team cannot both pass it inside concurrent transactions.
// sqlite has no FOR UPDATE; its single-writer transactions serialize the check
// on their own.
func TeamSolveExistsLocked(tx *gorm.DB, problemID string, teamID uint) (bool, error) {
	if tx.Dialector.Name() != "sqlite" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var solves []models.Solve
	err := tx.Where("problem_id = ? AND team_id = ?", problemID, teamID).
		Find(&solves).Error
	return len(solves) > 0, err
}

// SolvedPrerequisitePoints returns the points of each prerequisite problem the
// team has solved.
func SolvedPrerequisitePoints(db *gorm.DB, teamID uint, problemIDs []string) ([]int, error) {
	if len(problemIDs) == 0 {
		return nil, nil
	}
	var points []int
	err := db.Model(&models.Solve{}).
		Select("problems.points").
		Joins("JOIN problems ON problems.id = solves.problem_id").
		Where("solves.team_id = ? AND solves.problem_id IN ?", teamID, problemIDs).
		Scan(&points).Error
	return points, err
}

// SumQualifyingSolvePoints sums the points of the team's solves in a window
// that fall inside the given time range.
func SumQualifyingSolvePoints(db *gorm.DB, teamID, windowID uint, from, to time.Time) (int, error) {
	var total int
	err := db.Model(&models.Solve{}).
		Select("COALESCE(SUM(problems.points), 0)").
		Joins("JOIN problems ON problems.id = solves.problem_id").
		Where("solves.team_id = ? AND problems.window_id = ?", teamID, windowID).
		Where("solves.created_at >= ? AND solves.created_at <= ?", from, to).
		Scan(&total).Error
	return total, err
}

// LastQualifyingSolveTime returns the timestamp of the team's most recent
// qualifying solve in the window, or nil if there is none.
func LastQualifyingSolveTime(db *gorm.DB, teamID, windowID uint, from, to time.Time) (*time.Time, error) {
	var solve models.Solve
	err := db.Model(&models.Solve{}).
		Joins("JOIN problems ON problems.id = solves.problem_id").
		Where("solves.team_id = ? AND problems.window_id = ?", teamID, windowID).
		Where("solves.created_at >= ? AND solves.created_at <= ?", from, to).
		Order("solves.created_at desc").
		First(&solve).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &solve.CreatedAt, nil
}

func TeamSolvedProblem(db *gorm.DB, problemID string, teamID uint) (bool, error) {
	return TeamSolveExists(db, problemID, teamID)
}

// Submissions

func CreateSubmission(db *gorm.DB, sub *models.Submission) error {
	return db.Create(sub).Error
}

// SubmissionExists reports whether the team has already tried this exact flag
// on this problem.
func SubmissionExists(db *gorm.DB, problemID string, teamID uint, flag string) (bool, error) {
	var count int64
	err := db.Model(&models.Submission{}).
		Where("problem_id = ? AND team_id = ? AND flag = ?", problemID, teamID, flag).
		Count(&count).Error
	return count > 0, err
}

func GetSubmissionsForTeam(db *gorm.DB, teamID uint) ([]models.Submission, error) {
	var subs []models.Submission
	if err := db.Where("team_id = ?", teamID).Order("created_at desc").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func CountSubmissions(db *gorm.DB, problemID string, teamID uint) (int64, error) {
	var count int64
	err := db.Model(&models.Submission{}).
		Where("problem_id = ? AND team_id = ?", problemID, teamID).
		Count(&count).Error
	return count, err
}
