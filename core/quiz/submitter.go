package quiz

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type attemptCreator interface {
	CreateAttempt(ctx context.Context, a Attempt) (Attempt, error)
}

// Submitter scores & persists sessions, at most once per session.
type Submitter struct {
	repo attemptCreator
}

func NewSubmitter(repo Repository) *Submitter {
	return &Submitter{repo: repo}
}

// Submit scores the session & saves its Attempt.
// submitting a completed session returns its result again; if another session already saved an Attempt
// for the same (quiz, student), the session is completed anyway & ErrDuplicateAttempt is returned.
// other storage errors leave the session in progress so that it can be submitted again.
func (sb *Submitter) Submit(ctx context.Context, s *Session) (Attempt, error) {
	a, _, err := sb.submit(ctx, s)
	return a, err
}

// submit also reports whether this call saved the Attempt.
func (sb *Submitter) submit(ctx context.Context, s *Session) (Attempt, bool, error) {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	sub, cached, err := s.beginSubmit()
	if err != nil {
		return Attempt{}, false, err
	}
	if cached != nil {
		return *cached, false, nil
	}

	now := nowFunc().UTC()
	score, total := Score(sub.questions, sub.answers)
	a := Attempt{
		ID:               uuid.New().String(),
		QuizID:           sub.quiz.ID,
		StudentID:        sub.learner.ID,
		Answers:          sub.answers,
		Score:            score,
		TotalPoints:      total,
		TimeTakenSeconds: elapsedSeconds(sub.startTime, now),
		CompletedAt:      now,
	}

	saved, err := sb.repo.CreateAttempt(ctx, a)
	if err != nil {
		if errors.Cause(err) == ErrDuplicateAttempt {
			s.finishSubmit(nil, ErrDuplicateAttempt)
			return Attempt{}, false, ErrDuplicateAttempt
		}
		s.finishSubmit(nil, err)
		return Attempt{}, false, errors.Wrap(err, "saving attempt")
	}
	s.finishSubmit(&saved, nil)
	return saved, true, nil
}

func elapsedSeconds(start, end time.Time) int {
	secs := math.Floor(end.Sub(start).Seconds())
	if secs < 0 {
		return 0
	}
	return int(secs)
}
