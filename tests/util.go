// Package testutil holds helpers shared by the tests of several packages.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo-quiz/core"
	"github.com/trezcool/masomo-quiz/core/quiz"
	"github.com/trezcool/masomo-quiz/core/user"
	"github.com/trezcool/masomo-quiz/storage/database"
)

// PrepareDB returns a migrated in-memory sqlite database, closed at the end of the test.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := &core.Config{Database: core.DatabaseConfig{Engine: core.EngineSQLite}}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	classID string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		ClassID:   classID,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateQuiz saves an active quiz of the class with the given number of 1 point questions.
// the options of every question are "A", "B" & "C", "B" being the correct one.
func CreateQuiz(t *testing.T, repo quiz.Repository, classID, authorID string, timeLimit, nQuestions int) (quiz.Quiz, []quiz.Question) {
	t.Helper()
	now := time.Now().UTC()
	questions := make([]quiz.Question, 0, nQuestions)
	for i := 0; i < nQuestions; i++ {
		questions = append(questions, quiz.Question{
			Prompt:        "Which one is B?",
			Options:       []string{"A", "B", "C"},
			CorrectAnswer: "B",
			Points:        1,
			Position:      i,
			CreatedAt:     now,
		})
	}
	qz, err := repo.CreateQuiz(context.Background(), quiz.Quiz{
		Title:            "General knowledge",
		ClassID:          classID,
		TimeLimitMinutes: timeLimit,
		IsActive:         true,
		CreatedBy:        authorID,
		CreatedAt:        now,
	}, questions)
	if err != nil {
		t.Fatalf("CreateQuiz() failed: %v", err)
	}
	saved, err := repo.QueryQuestions(context.Background(), qz.ID)
	if err != nil {
		t.Fatalf("CreateQuiz() failed: %v", err)
	}
	return qz, saved
}
