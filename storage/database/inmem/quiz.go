package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-quiz/core"
	"github.com/trezcool/masomo-quiz/core/quiz"
)

type quizRepository struct {
	db *quizTable
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *DB) quiz.Repository {
	return &quizRepository{db: db.quiz}
}

func copyQuestion(q quiz.Question) quiz.Question {
	q.Options = append([]string(nil), q.Options...)
	return q
}

func copyAttempt(a quiz.Attempt) quiz.Attempt {
	answers := make(quiz.Answers, len(a.Answers))
	for k, v := range a.Answers {
		answers[k] = v
	}
	a.Answers = answers
	return a
}

func (repo *quizRepository) CreateQuiz(_ context.Context, qz quiz.Quiz, questions []quiz.Question) (quiz.Quiz, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	qz.ID = uuid.New().String()
	qz.TotalQuestions = len(questions)
	saved := make([]quiz.Question, 0, len(questions))
	for i, q := range questions {
		q = copyQuestion(q)
		q.ID = uuid.New().String()
		q.QuizID = qz.ID
		q.Position = i
		saved = append(saved, q)
	}
	repo.db.quizzes[qz.ID] = qz
	repo.db.questions[qz.ID] = saved
	return qz, nil
}

func (repo *quizRepository) GetQuiz(_ context.Context, id string) (quiz.Quiz, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if qz, ok := repo.db.quizzes[id]; ok {
		return qz, nil
	}
	return quiz.Quiz{}, quiz.ErrNotFound
}

func (repo *quizRepository) QueryQuizzes(_ context.Context, filter quiz.QuizFilter) ([]quiz.Quiz, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	quizzes := make([]quiz.Quiz, 0, len(repo.db.quizzes))
	for _, qz := range repo.db.quizzes {
		if filter.ClassID != "" && qz.ClassID != filter.ClassID {
			continue
		}
		if filter.ActiveOnly && !qz.IsActive {
			continue
		}
		if filter.CreatedBy != "" && qz.CreatedBy != filter.CreatedBy {
			continue
		}
		quizzes = append(quizzes, qz)
	}
	sort.Slice(quizzes, func(i, j int) bool {
		if quizzes[i].CreatedAt.Equal(quizzes[j].CreatedAt) {
			return quizzes[i].Title < quizzes[j].Title
		}
		return quizzes[i].CreatedAt.After(quizzes[j].CreatedAt)
	})
	return quizzes, nil
}

func (repo *quizRepository) QueryQuestions(_ context.Context, quizID string) ([]quiz.Question, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	questions := make([]quiz.Question, 0, len(repo.db.questions[quizID]))
	for _, q := range repo.db.questions[quizID] {
		questions = append(questions, copyQuestion(q))
	}
	return questions, nil
}

func (repo *quizRepository) CreateAttempt(_ context.Context, a quiz.Attempt) (quiz.Attempt, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := attemptKey{quizID: a.QuizID, studentID: a.StudentID}
	if _, exists := repo.db.attempts[key]; exists {
		return quiz.Attempt{}, errors.Wrap(quiz.ErrDuplicateAttempt, "inserting attempt")
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a = copyAttempt(a)
	repo.db.attempts[key] = a
	return copyAttempt(a), nil
}

func (repo *quizRepository) GetAttempt(_ context.Context, quizID, studentID string) (quiz.Attempt, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.attempts[attemptKey{quizID: quizID, studentID: studentID}]; ok {
		return copyAttempt(a), nil
	}
	return quiz.Attempt{}, quiz.ErrAttemptNotFound
}

func (repo *quizRepository) QueryAttempts(_ context.Context, filter quiz.AttemptFilter, ordering []core.DBOrdering) ([]quiz.Attempt, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	attempts := make([]quiz.Attempt, 0)
	for key, a := range repo.db.attempts {
		if filter.QuizID != "" && key.quizID != filter.QuizID {
			continue
		}
		if filter.StudentID != "" && key.studentID != filter.StudentID {
			continue
		}
		attempts = append(attempts, copyAttempt(a))
	}

	quiz.SortAttempts(attempts, ordering)
	return attempts, nil
}
