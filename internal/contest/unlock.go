package contest

import (
	"sort"
	"strings"

	"github.com/PACTF/pactf/internal/database"
	"github.com/PACTF/pactf/internal/database/models"
)

// Unlocked decides whether the team may see a problem. A problem with no
// dependency spec is always unlocked. Otherwise the threshold is compared
// against the summed points of the solved prerequisites; a threshold of 1
// unlocks on any single prerequisite solve without summing.
func (e *Engine) Unlocked(team *models.Team, problem *models.Problem) (bool, error) {
	deps := problem.Deps
	if deps == nil {
		return true, nil
	}

	solved, err := database.SolvedPrerequisitePoints(e.db, team.ID, deps.Probs)
	if err != nil {
		return false, err
	}
	if len(solved) == 0 {
		return false, nil
	}
	if deps.Threshold <= 1 {
		return true, nil
	}

	total := 0
	for _, points := range solved {
		total += points
	}
	return total >= deps.Threshold, nil
}

// VisibleProblems returns the window's problems the team has unlocked,
// formatted for display and sorted ascending by points then by
// case-insensitive name.
func (e *Engine) VisibleProblems(team *models.Team, window *models.Window) ([]ProblemView, error) {
	problems, err := database.GetProblemsForWindow(e.db, window.ID)
	if err != nil {
		return nil, err
	}

	var unlocked []models.Problem
	for i := range problems {
		ok, err := e.Unlocked(team, &problems[i])
		if err != nil {
			return nil, err
		}
		if ok {
			unlocked = append(unlocked, problems[i])
		}
	}

	sort.Slice(unlocked, func(i, j int) bool {
		if unlocked[i].Points != unlocked[j].Points {
			return unlocked[i].Points < unlocked[j].Points
		}
		return strings.ToLower(unlocked[i].Name) < strings.ToLower(unlocked[j].Name)
	})

	views := make([]ProblemView, 0, len(unlocked))
	for i := range unlocked {
		views = append(views, e.FormatProblem(team, &unlocked[i]))
	}
	return views, nil
}
