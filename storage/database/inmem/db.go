// Package inmemdb keeps the repositories' data in process memory. it backs the "memory" engine.
package inmemdb

import (
	"sync"

	"github.com/trezcool/masomo-quiz/core/quiz"
	"github.com/trezcool/masomo-quiz/core/user"
)

type (
	DB struct {
		user *userTable
		quiz *quizTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	attemptKey struct {
		quizID    string
		studentID string
	}

	quizTable struct {
		sync.RWMutex
		quizzes   map[string]quiz.Quiz
		questions map[string][]quiz.Question // quiz ID -> questions
		attempts  map[attemptKey]quiz.Attempt
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		quiz: &quizTable{
			quizzes:   make(map[string]quiz.Quiz),
			questions: make(map[string][]quiz.Question),
			attempts:  make(map[attemptKey]quiz.Attempt),
		},
	}
	return db, nil
}
