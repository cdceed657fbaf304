package contest

import (
	"context"
	"errors"
	"fmt"

	"github.com/PACTF/pactf/internal/database"
	"github.com/PACTF/pactf/internal/database/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SubmitResult reports the outcome of a graded submission.
type SubmitResult struct {
	Correct bool   `json:"correct"`
	Message string `json:"message"`
}

// SubmitFlag validates and grades one flag attempt. Checks run in a fixed
// order and the first failing one wins:
//
//  1. the problem must exist,
//  2. the window must not have ended and the team must hold an active timer
//     (admins bypass this check only),
//  3. the team must not have solved the problem already,
//  4. the flag must be non-empty and within the length limit,
//  5. the problem's grading script decides correctness,
//  6. a correct flag records the Solve (the only scoring side effect),
//  7. a repeated incorrect flag is reported as already tried,
//  8. every graded attempt is appended to the submission log, including
//     repeat-incorrect ones; attempts rejected in steps 1-4 are not logged
//     because no grading occurred.
//
// Steps 3-8 run inside a single transaction. The unique index on
// (problem, competitor) plus a locked team-level re-check before insert
// guarantee at most one Solve per team even under concurrent submissions.
func (e *Engine) SubmitFlag(ctx context.Context, competitor *models.Competitor, problemID, flag string) (*SubmitResult, error) {
	problem, err := database.GetProblem(e.db, problemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProblemNotFound
		}
		return nil, err
	}

	window, err := database.GetWindowByID(e.db, problem.WindowID)
	if err != nil {
		return nil, err
	}

	if !competitor.IsAdmin {
		if e.WindowEnded(window) {
			return nil, ErrSubmissionNotAllowed
		}
		active, err := e.hasActiveTimer(e.db, competitor.TeamID, window)
		if err != nil {
			return nil, err
		}
		if !active {
			return nil, ErrSubmissionNotAllowed
		}
	}

	var (
		result       SubmitResult
		alreadyTried bool
	)

	err = e.db.Transaction(func(tx *gorm.DB) error {
		solved, err := database.TeamSolveExistsLocked(tx, problem.ID, competitor.TeamID)
		if err != nil {
			return err
		}
		if solved {
			return ErrAlreadySolved
		}

		if flag == "" {
			return ErrEmptyFlag
		}
		if len(flag) > e.cfg.Contest.FlagMaxLength {
			return ErrFlagTooLong
		}

		verdict, err := e.scripts.Grader(problem.Grader).Grade(ctx, e.TeamKey(competitor.TeamID), flag)
		if err != nil {
			zap.S().Errorw("grading script fault",
				"problem", problem.ID, "script", problem.Grader,
				"team", competitor.TeamID, "error", err)
			return fmt.Errorf("%w: %v", ErrGraderFault, err)
		}
		result = SubmitResult{Correct: verdict.Correct, Message: verdict.Message}

		if verdict.Correct {
			solve := &models.Solve{
				ProblemID:    problem.ID,
				CompetitorID: competitor.ID,
				TeamID:       competitor.TeamID,
				Flag:         flag,
			}
			if err := database.CreateSolve(tx, solve); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
					return ErrAlreadySolved
				}
				return err
			}
		} else {
			// The already-tried check must come after grading: a flag that was
			// wrong before may have become right after a problem update.
			tried, err := database.SubmissionExists(tx, problem.ID, competitor.TeamID, flag)
			if err != nil {
				return err
			}
			alreadyTried = tried
		}

		return database.CreateSubmission(tx, &models.Submission{
			ProblemID:    problem.ID,
			CompetitorID: competitor.ID,
			TeamID:       competitor.TeamID,
			Flag:         flag,
			Correct:      verdict.Correct,
		})
	})
	if err != nil {
		return nil, err
	}

	if result.Correct {
		e.InvalidateBoard(window.ID)
		e.publishSolve(window, competitor.TeamID, problem)
	}

	if alreadyTried {
		return nil, ErrFlagAlreadyTried
	}
	return &result, nil
}

// IsPrecondition reports whether an error is one of the expected, user-facing
// submission failures, as opposed to an invariant violation or an
// infrastructure fault.
func IsPrecondition(err error) bool {
	for _, target := range []error{
		ErrProblemNotFound, ErrSubmissionNotAllowed, ErrEmptyFlag, ErrFlagTooLong,
		ErrAlreadySolved, ErrFlagAlreadyTried, ErrAlreadyStarted,
		ErrWindowNotStarted, ErrWindowEnded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
