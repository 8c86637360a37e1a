package quiz

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-quiz/core"
)

type Quiz struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	ClassID          string    `json:"class_id"`
	TotalQuestions   int       `json:"total_questions"`
	TimeLimitMinutes int       `json:"time_limit_minutes,omitempty"` // 0: no time limit
	IsActive         bool      `json:"is_active"`
	CreatedBy        string    `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"` // UTC
}

// TimeLimit returns the duration allowed to complete the Quiz, 0 if unlimited.
func (qz Quiz) TimeLimit() time.Duration {
	if qz.TimeLimitMinutes <= 0 {
		return 0
	}
	return time.Duration(qz.TimeLimitMinutes) * time.Minute
}

type Question struct {
	ID            string    `json:"id"`
	QuizID        string    `json:"quiz_id"`
	Prompt        string    `json:"question"`
	Options       []string  `json:"options"`
	CorrectAnswer string    `json:"correct_answer"`
	Explanation   string    `json:"explanation,omitempty"`
	Points        int       `json:"points"`
	Position      int       `json:"position"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

func (q Question) HasOption(opt string) bool {
	for _, o := range q.Options {
		if o == opt {
			return true
		}
	}
	return false
}

func (q Question) clone() Question {
	q.Options = append([]string(nil), q.Options...)
	return q
}

// Answers maps a question ID to the selected option. an absent question is unanswered.
type Answers map[string]string

func (a Answers) clone() Answers {
	c := make(Answers, len(a))
	for k, v := range a {
		c[k] = v
	}
	return c
}

// Attempt is the persisted result of a completed Session. there is at most one per (quiz, student).
type Attempt struct {
	ID               string    `json:"id"`
	QuizID           string    `json:"quiz_id"`
	StudentID        string    `json:"student_id"`
	Answers          Answers   `json:"answers"`
	Score            int       `json:"score"`
	TotalPoints      int       `json:"total_points"`
	TimeTakenSeconds int       `json:"time_taken_seconds"`
	CompletedAt      time.Time `json:"completed_at"` // UTC
}

func (a Attempt) Percentage() int {
	return Percentage(a.Score, a.TotalPoints)
}

func (a Attempt) TimeTaken() time.Duration {
	return time.Duration(a.TimeTakenSeconds) * time.Second
}

// AttemptOrderingFields are the columns attempts can be ordered by, they default to the newest first.
var AttemptOrderingFields = core.OrderingFields{
	"completed_at": true, "score": true, "total_points": true, "time_taken_seconds": true,
}

// compareAttempts returns -1, 0 or 1 as a is before, with or after b on the given field, ascending.
func compareAttempts(a, b Attempt, field string) int {
	var x, y int64
	switch field {
	case "score":
		x, y = int64(a.Score), int64(b.Score)
	case "total_points":
		x, y = int64(a.TotalPoints), int64(b.TotalPoints)
	case "time_taken_seconds":
		x, y = int64(a.TimeTakenSeconds), int64(b.TimeTakenSeconds)
	default:
		x, y = a.CompletedAt.UnixNano(), b.CompletedAt.UnixNano()
	}
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// SortAttempts sorts in place by every allowed ordering in turn, like an SQL ORDER BY.
func SortAttempts(attempts []Attempt, ordering []core.DBOrdering) {
	ordering = AttemptOrderingFields.Allowed(ordering)
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "completed_at"}}
	}
	sort.SliceStable(attempts, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareAttempts(attempts[i], attempts[j], ord.Field)
			if !ord.Ascending {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
}

// Learner is the student taking a Quiz.
type Learner struct {
	ID      string
	Name    string
	Email   string
	ClassID string
}

// NewQuiz contains information needed to create a new Quiz and its questions.
type NewQuiz struct {
	Title            string        `json:"title" validate:"required,notblank,max=200"`
	Description      string        `json:"description" validate:"max=2000"`
	ClassID          string        `json:"class_id" validate:"required,notblank"`
	TimeLimitMinutes int           `json:"time_limit_minutes" validate:"min=0,max=600"`
	IsActive         *bool         `json:"is_active"`
	Questions        []NewQuestion `json:"questions" validate:"required,min=1,dive"`
}

// NewQuestion contains information needed to create a new Question.
type NewQuestion struct {
	Prompt        string   `json:"question" validate:"required,notblank"`
	Options       []string `json:"options" validate:"required,min=2,unique,dive,notblank"`
	CorrectAnswer string   `json:"correct_answer" validate:"required"`
	Explanation   string   `json:"explanation"`
	Points        int      `json:"points" validate:"min=1"`
}

func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.Title = core.CleanString(nq.Title)
	nq.Description = core.CleanString(nq.Description)
	nq.ClassID = core.CleanString(nq.ClassID)
	for i := range nq.Questions {
		q := &nq.Questions[i]
		q.Prompt = core.CleanString(q.Prompt)
		q.Explanation = core.CleanString(q.Explanation)
		q.CorrectAnswer = core.CleanString(q.CorrectAnswer)
		for j := range q.Options {
			q.Options[j] = core.CleanString(q.Options[j])
		}
		if q.Points == 0 {
			q.Points = 1
		}
	}
	return validate.Struct(nq)
}

// AnswerInput records the option selected for a question.
type AnswerInput struct {
	QuestionID string `json:"question_id" validate:"required"`
	Option     string `json:"option" validate:"required"`
}

func (ai AnswerInput) Validate(validate *validator.Validate) error { return validate.Struct(ai) }

type QuizFilter struct {
	ClassID    string `query:"class_id"`
	ActiveOnly bool   `query:"active"`
	CreatedBy  string `query:"created_by"`
}

type AttemptFilter struct {
	QuizID    string `query:"quiz_id"`
	StudentID string `query:"student_id"`
}

// Repository is the persistence boundary of the quiz engine.
type Repository interface {
	// CreateQuiz saves the Quiz & its questions atomically.
	CreateQuiz(ctx context.Context, qz Quiz, questions []Question) (Quiz, error)
	GetQuiz(ctx context.Context, id string) (Quiz, error)
	QueryQuizzes(ctx context.Context, filter QuizFilter) ([]Quiz, error)
	// QueryQuestions returns the questions of a Quiz in creation order.
	QueryQuestions(ctx context.Context, quizID string) ([]Question, error)
	// CreateAttempt must return ErrDuplicateAttempt if an Attempt exists for the same (quiz, student).
	CreateAttempt(ctx context.Context, a Attempt) (Attempt, error)
	GetAttempt(ctx context.Context, quizID, studentID string) (Attempt, error)
	QueryAttempts(ctx context.Context, filter AttemptFilter, ordering []core.DBOrdering) ([]Attempt, error)
}

// VisibleTo reports whether the learner may take the Quiz.
func (qz Quiz) VisibleTo(l Learner) bool {
	return qz.IsActive && qz.ClassID != "" && qz.ClassID == l.ClassID
}
