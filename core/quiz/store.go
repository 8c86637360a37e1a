package quiz

import (
	"context"

	"github.com/pkg/errors"
)

// LoadQuestions fetches the ordered questions of a quiz. it is never cached: every new session calls it.
func LoadQuestions(ctx context.Context, repo Repository, quizID string) ([]Question, error) {
	questions, err := repo.QueryQuestions(ctx, quizID)
	if err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	if len(questions) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "quiz %s has no questions", quizID)
	}
	return questions, nil
}
