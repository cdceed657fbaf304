package contest

import "errors"

// Precondition errors: expected, user-facing, returned as typed values and
// never logged beyond the audit trail.
var (
	ErrProblemNotFound      = errors.New("problem not found")
	ErrSubmissionNotAllowed = errors.New("submission not allowed")
	ErrEmptyFlag            = errors.New("flag is empty")
	ErrFlagTooLong          = errors.New("flag is too long")
	ErrAlreadySolved        = errors.New("problem already solved")
	ErrFlagAlreadyTried     = errors.New("flag already tried")
	ErrAlreadyStarted       = errors.New("timer already started")
	ErrWindowNotStarted     = errors.New("window has not started")
	ErrWindowEnded          = errors.New("window has ended")
)

// Invariant violations: configuration/admin errors. They always abort the
// enclosing transaction.
var (
	ErrWindowInvalid                 = errors.New("window end is not after start")
	ErrWindowsOverlap                = errors.New("window overlaps another window")
	ErrTimerOutOfWindowBounds        = errors.New("timer does not lie within window")
	ErrWindowUpdateInvalidatesTimers = errors.New("window update would invalidate existing timers")
)

// Infrastructure errors.
var (
	// ErrNoWindows means the contest has no windows configured at all, which
	// is fatal for window resolution.
	ErrNoWindows = errors.New("no windows configured")

	// ErrGraderFault covers a grading or generator script that is missing,
	// crashes, times out, or returns a malformed result. It is logged with
	// full context and surfaced to the submitter generically.
	ErrGraderFault = errors.New("grader fault")
)
