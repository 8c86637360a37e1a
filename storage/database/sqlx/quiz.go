package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-quiz/core"
	"github.com/trezcool/masomo-quiz/core/quiz"
)

const (
	quizColumns     = "id, title, description, class_id, total_questions, time_limit_minutes, active, created_by, created_at"
	questionColumns = "id, quiz_id, question, options, correct_answer, explanation, points, position, created_at"
	attemptColumns  = "id, quiz_id, student_id, answers, score, total_points, time_taken_seconds, completed_at"
)

type (
	quizRow struct {
		ID               string      `db:"id"`
		Title            string      `db:"title"`
		Description      null.String `db:"description"`
		ClassID          string      `db:"class_id"`
		TotalQuestions   int         `db:"total_questions"`
		TimeLimitMinutes null.Int    `db:"time_limit_minutes"`
		Active           bool        `db:"active"`
		CreatedBy        null.String `db:"created_by"`
		CreatedAt        time.Time   `db:"created_at"`
	}

	questionRow struct {
		ID            string      `db:"id"`
		QuizID        string      `db:"quiz_id"`
		Question      string      `db:"question"`
		Options       string      `db:"options"` // JSON array
		CorrectAnswer string      `db:"correct_answer"`
		Explanation   null.String `db:"explanation"`
		Points        int         `db:"points"`
		Position      int         `db:"position"`
		CreatedAt     time.Time   `db:"created_at"`
	}

	attemptRow struct {
		ID               string    `db:"id"`
		QuizID           string    `db:"quiz_id"`
		StudentID        string    `db:"student_id"`
		Answers          string    `db:"answers"` // JSON object
		Score            int       `db:"score"`
		TotalPoints      int       `db:"total_points"`
		TimeTakenSeconds int       `db:"time_taken_seconds"`
		CompletedAt      time.Time `db:"completed_at"`
	}
)

func toQuizRow(qz quiz.Quiz) quizRow {
	return quizRow{
		ID:               qz.ID,
		Title:            qz.Title,
		Description:      null.NewString(qz.Description, qz.Description != ""),
		ClassID:          qz.ClassID,
		TotalQuestions:   qz.TotalQuestions,
		TimeLimitMinutes: null.NewInt(qz.TimeLimitMinutes, qz.TimeLimitMinutes > 0),
		Active:           qz.IsActive,
		CreatedBy:        null.NewString(qz.CreatedBy, qz.CreatedBy != ""),
		CreatedAt:        qz.CreatedAt.UTC(),
	}
}

func (r quizRow) quiz() quiz.Quiz {
	return quiz.Quiz{
		ID:               r.ID,
		Title:            r.Title,
		Description:      r.Description.String,
		ClassID:          r.ClassID,
		TotalQuestions:   r.TotalQuestions,
		TimeLimitMinutes: r.TimeLimitMinutes.Int,
		IsActive:         r.Active,
		CreatedBy:        r.CreatedBy.String,
		CreatedAt:        r.CreatedAt.UTC(),
	}
}

func toQuestionRow(q quiz.Question) (questionRow, error) {
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return questionRow{}, errors.Wrap(err, "encoding options")
	}
	return questionRow{
		ID:            q.ID,
		QuizID:        q.QuizID,
		Question:      q.Prompt,
		Options:       string(opts),
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   null.NewString(q.Explanation, q.Explanation != ""),
		Points:        q.Points,
		Position:      q.Position,
		CreatedAt:     q.CreatedAt.UTC(),
	}, nil
}

func (r questionRow) question() (quiz.Question, error) {
	var opts []string
	if err := json.Unmarshal([]byte(r.Options), &opts); err != nil {
		return quiz.Question{}, errors.Wrap(err, "decoding options")
	}
	return quiz.Question{
		ID:            r.ID,
		QuizID:        r.QuizID,
		Prompt:        r.Question,
		Options:       opts,
		CorrectAnswer: r.CorrectAnswer,
		Explanation:   r.Explanation.String,
		Points:        r.Points,
		Position:      r.Position,
		CreatedAt:     r.CreatedAt.UTC(),
	}, nil
}

func toAttemptRow(a quiz.Attempt) (attemptRow, error) {
	answers := a.Answers
	if answers == nil {
		answers = quiz.Answers{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return attemptRow{}, errors.Wrap(err, "encoding answers")
	}
	return attemptRow{
		ID:               a.ID,
		QuizID:           a.QuizID,
		StudentID:        a.StudentID,
		Answers:          string(data),
		Score:            a.Score,
		TotalPoints:      a.TotalPoints,
		TimeTakenSeconds: a.TimeTakenSeconds,
		CompletedAt:      a.CompletedAt.UTC(),
	}, nil
}

func (r attemptRow) attempt() (quiz.Attempt, error) {
	var answers quiz.Answers
	if err := json.Unmarshal([]byte(r.Answers), &answers); err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "decoding answers")
	}
	return quiz.Attempt{
		ID:               r.ID,
		QuizID:           r.QuizID,
		StudentID:        r.StudentID,
		Answers:          answers,
		Score:            r.Score,
		TotalPoints:      r.TotalPoints,
		TimeTakenSeconds: r.TimeTakenSeconds,
		CompletedAt:      r.CompletedAt.UTC(),
	}, nil
}

type quizRepository struct {
	db *sqlx.DB
}

var _ quiz.Repository = (*quizRepository)(nil)

func NewQuizRepository(db *sqlx.DB) *quizRepository {
	return &quizRepository{db: db}
}

func (repo quizRepository) CreateQuiz(ctx context.Context, qz quiz.Quiz, questions []quiz.Question) (_ quiz.Quiz, err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	qz.ID = uuid.New().String()
	qz.TotalQuestions = len(questions)
	q := `INSERT INTO quizzes (` + quizColumns + `)
		VALUES (:id, :title, :description, :class_id, :total_questions, :time_limit_minutes, :active, :created_by, :created_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, q, toQuizRow(qz)); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "inserting quiz")
	}

	q = `INSERT INTO questions (` + questionColumns + `)
		VALUES (:id, :quiz_id, :question, :options, :correct_answer, :explanation, :points, :position, :created_at)`
	for i, question := range questions {
		question.ID = uuid.New().String()
		question.QuizID = qz.ID
		question.Position = i
		var row questionRow
		if row, err = toQuestionRow(question); err != nil {
			return quiz.Quiz{}, err
		}
		if _, err = sqlx.NamedExecContext(ctx, tx, q, row); err != nil {
			return quiz.Quiz{}, errors.Wrap(err, "inserting question")
		}
	}

	if err = tx.Commit(); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "committing quiz")
	}
	return toQuizRow(qz).quiz(), nil
}

func (repo quizRepository) GetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	var row quizRow
	q := repo.db.Rebind("SELECT " + quizColumns + " FROM quizzes WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return quiz.Quiz{}, trapNoRows(err, quiz.ErrNotFound, "getting quiz")
	}
	return row.quiz(), nil
}

func (repo quizRepository) QueryQuizzes(ctx context.Context, filter quiz.QuizFilter) ([]quiz.Quiz, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.ClassID != "" {
		conds = append(conds, "class_id = ?")
		args = append(args, filter.ClassID)
	}
	if filter.ActiveOnly {
		conds = append(conds, "active = ?")
		args = append(args, true)
	}
	if filter.CreatedBy != "" {
		conds = append(conds, "created_by = ?")
		args = append(args, filter.CreatedBy)
	}

	var rows []quizRow
	q := "SELECT " + quizColumns + " FROM quizzes" + where(conds) + " ORDER BY created_at DESC, title"
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying quizzes")
	}

	quizzes := make([]quiz.Quiz, 0, len(rows))
	for _, row := range rows {
		quizzes = append(quizzes, row.quiz())
	}
	return quizzes, nil
}

func (repo quizRepository) QueryQuestions(ctx context.Context, quizID string) ([]quiz.Question, error) {
	var rows []questionRow
	q := repo.db.Rebind("SELECT " + questionColumns + " FROM questions WHERE quiz_id = ? ORDER BY position, created_at")
	if err := repo.db.SelectContext(ctx, &rows, q, quizID); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}

	questions := make([]quiz.Question, 0, len(rows))
	for _, row := range rows {
		question, err := row.question()
		if err != nil {
			return nil, err
		}
		questions = append(questions, question)
	}
	return questions, nil
}

func (repo quizRepository) CreateAttempt(ctx context.Context, a quiz.Attempt) (quiz.Attempt, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	row, err := toAttemptRow(a)
	if err != nil {
		return quiz.Attempt{}, err
	}

	q := `INSERT INTO quiz_attempts (` + attemptColumns + `)
		VALUES (:id, :quiz_id, :student_id, :answers, :score, :total_points, :time_taken_seconds, :completed_at)`
	if _, err = sqlx.NamedExecContext(ctx, repo.db, q, row); err != nil {
		if isUniqueViolation(err) {
			return quiz.Attempt{}, errors.Wrap(quiz.ErrDuplicateAttempt, "inserting attempt")
		}
		return quiz.Attempt{}, errors.Wrap(err, "inserting attempt")
	}
	return row.attempt()
}

func (repo quizRepository) GetAttempt(ctx context.Context, quizID, studentID string) (quiz.Attempt, error) {
	var row attemptRow
	q := repo.db.Rebind("SELECT " + attemptColumns + " FROM quiz_attempts WHERE quiz_id = ? AND student_id = ?")
	if err := repo.db.GetContext(ctx, &row, q, quizID, studentID); err != nil {
		return quiz.Attempt{}, trapNoRows(err, quiz.ErrAttemptNotFound, "getting attempt")
	}
	return row.attempt()
}

func (repo quizRepository) QueryAttempts(ctx context.Context, filter quiz.AttemptFilter, ordering []core.DBOrdering) ([]quiz.Attempt, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.QuizID != "" {
		conds = append(conds, "quiz_id = ?")
		args = append(args, filter.QuizID)
	}
	if filter.StudentID != "" {
		conds = append(conds, "student_id = ?")
		args = append(args, filter.StudentID)
	}

	var rows []attemptRow
	q := "SELECT " + attemptColumns + " FROM quiz_attempts" + where(conds) + orderBy(ordering, quiz.AttemptOrderingFields, "completed_at DESC")
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying attempts")
	}

	attempts := make([]quiz.Attempt, 0, len(rows))
	for _, row := range rows {
		a, err := row.attempt()
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}
