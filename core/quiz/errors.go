package quiz

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned when a quiz (or its questions) does not exist or is not visible to the learner.
	ErrNotFound = errors.New("quiz not found")
	// ErrAttemptNotFound is returned when a learner has no attempt for a quiz.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAlreadyAttempted is returned when starting a quiz the learner already completed.
	ErrAlreadyAttempted = errors.New("quiz already completed")
	// ErrDuplicateAttempt is returned when an attempt was already persisted for the same learner & quiz.
	ErrDuplicateAttempt = errors.New("quiz already submitted")
	// ErrSessionNotFound is returned when the learner has no session in progress for a quiz.
	ErrSessionNotFound = errors.New("no quiz session in progress")
	// ErrSessionClosed is returned when mutating a session that was submitted, abandoned or ran out of time.
	ErrSessionClosed = errors.New("quiz session is closed")

	ErrUnknownQuestion = errors.New("question is not part of this quiz")
	ErrInvalidOption   = errors.New("option is not one of the question's options")
)

// IsNotFound reports whether err is one of the quiz "not found" errors.
func IsNotFound(err error) bool {
	switch errors.Cause(err) {
	case ErrNotFound, ErrAttemptNotFound, ErrSessionNotFound:
		return true
	default:
		return false
	}
}
