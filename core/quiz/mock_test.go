package quiz

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-quiz/core"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2021, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// useClock replaces nowFunc for the duration of the test.
func useClock(t *testing.T) *fakeClock {
	clock := newFakeClock()
	prev := nowFunc
	nowFunc = clock.Now
	t.Cleanup(func() { nowFunc = prev })
	return clock
}

type mockRepo struct {
	mu        sync.Mutex
	quizzes   map[string]Quiz
	questions map[string][]Question
	attempts  []Attempt
	createErr error // returned once by CreateAttempt
	inserts   int
}

var _ Repository = (*mockRepo)(nil)

func newMockRepo() *mockRepo {
	return &mockRepo{
		quizzes:   make(map[string]Quiz),
		questions: make(map[string][]Question),
	}
}

func (r *mockRepo) CreateQuiz(_ context.Context, qz Quiz, questions []Question) (Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if qz.ID == "" {
		qz.ID = uuid.New().String()
	}
	for i := range questions {
		if questions[i].ID == "" {
			questions[i].ID = uuid.New().String()
		}
		questions[i].QuizID = qz.ID
	}
	r.quizzes[qz.ID] = qz
	r.questions[qz.ID] = questions
	return qz, nil
}

func (r *mockRepo) GetQuiz(_ context.Context, id string) (Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	qz, ok := r.quizzes[id]
	if !ok {
		return Quiz{}, ErrNotFound
	}
	return qz, nil
}

func (r *mockRepo) QueryQuizzes(_ context.Context, filter QuizFilter) ([]Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]Quiz, 0)
	for _, qz := range r.quizzes {
		if filter.ClassID != "" && qz.ClassID != filter.ClassID {
			continue
		}
		if filter.ActiveOnly && !qz.IsActive {
			continue
		}
		res = append(res, qz)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Title < res[j].Title })
	return res, nil
}

func (r *mockRepo) QueryQuestions(_ context.Context, quizID string) ([]Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]Question, 0, len(r.questions[quizID]))
	for _, q := range r.questions[quizID] {
		res = append(res, q.clone())
	}
	return res, nil
}

func (r *mockRepo) CreateAttempt(_ context.Context, a Attempt) (Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.createErr; err != nil {
		r.createErr = nil
		return Attempt{}, err
	}
	for _, existing := range r.attempts {
		if existing.QuizID == a.QuizID && existing.StudentID == a.StudentID {
			return Attempt{}, errors.Wrap(ErrDuplicateAttempt, "inserting attempt")
		}
	}
	r.inserts++
	r.attempts = append(r.attempts, a)
	return a, nil
}

func (r *mockRepo) GetAttempt(_ context.Context, quizID, studentID string) (Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.QuizID == quizID && a.StudentID == studentID {
			return a, nil
		}
	}
	return Attempt{}, ErrAttemptNotFound
}

func (r *mockRepo) QueryAttempts(_ context.Context, filter AttemptFilter, _ []core.DBOrdering) ([]Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]Attempt, 0)
	for _, a := range r.attempts {
		if (filter.QuizID == "" || a.QuizID == filter.QuizID) && (filter.StudentID == "" || a.StudentID == filter.StudentID) {
			res = append(res, a)
		}
	}
	return res, nil
}

func (r *mockRepo) insertCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inserts
}

type mockMailer struct {
	mu       sync.Mutex
	messages []*core.EmailMessage
}

func (m *mockMailer) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, messages...)
}

func (m *mockMailer) sent() []*core.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*core.EmailMessage(nil), m.messages...)
}

type testLogger struct{ t *testing.T }

func (l testLogger) log(level, msg string, args []interface{}) {
	l.t.Helper()
	l.t.Log(level, msg, fmt.Sprint(args...))
}

func (l testLogger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l testLogger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l testLogger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l testLogger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l testLogger) Fatal(msg string, args ...interface{}) { l.log("FATAL", msg, args) }

// sixQuestions builds the questions of a quiz worth 1 point each, the correct answer is always "a".
func sixQuestions(quizID string) []Question {
	questions := make([]Question, 0, 6)
	for i := 1; i <= 6; i++ {
		questions = append(questions, Question{
			ID:            fmt.Sprintf("q%d", i),
			QuizID:        quizID,
			Prompt:        fmt.Sprintf("Question %d?", i),
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: "a",
			Points:        1,
			Position:      i - 1,
		})
	}
	return questions
}

func newTestSession(t *testing.T, questions []Question, start time.Time) *Session {
	t.Helper()
	qz := Quiz{ID: "quiz", Title: "Algebra", ClassID: "c1", IsActive: true, TotalQuestions: len(questions)}
	sess, err := Start(qz, Learner{ID: "student", Name: "Amani", ClassID: "c1"}, questions, start)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return sess
}
