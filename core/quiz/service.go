package quiz

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-quiz/core"
)

var nowFunc = time.Now // mockable

const resultEmailTemplate = "quiz_result"

type (
	Service interface {
		CreateQuiz(ctx context.Context, nq NewQuiz, authorID string) (Quiz, error)
		GetQuiz(ctx context.Context, id string) (Quiz, error)
		// GetVisibleQuiz returns ErrNotFound if the Quiz is inactive or belongs to another class.
		GetVisibleQuiz(ctx context.Context, id string, learner Learner) (Quiz, error)
		QueryQuizzes(ctx context.Context, filter QuizFilter) ([]Quiz, error)
		LoadQuestions(ctx context.Context, quizID string) ([]Question, error)

		// StartAttempt starts a Session, or returns the one the learner has in progress for the same Quiz.
		StartAttempt(ctx context.Context, learner Learner, quizID string) (*Session, error)
		GetSession(learnerID, quizID string) (*Session, error)
		SubmitAttempt(ctx context.Context, learnerID, quizID string) (Attempt, error)
		AbandonAttempt(learnerID, quizID string) error

		GetAttempt(ctx context.Context, quizID, studentID string) (Attempt, error)
		QueryAttempts(ctx context.Context, filter AttemptFilter, ordering []core.DBOrdering) ([]Attempt, error)

		// Close abandons all the sessions in progress.
		Close()
	}

	sessionKey struct {
		learnerID string
		quizID    string
	}

	service struct {
		repo      Repository
		submitter *Submitter
		mailSvc   core.EmailService
		logger    core.Logger
		conf      core.QuizConfig

		mu       sync.Mutex
		sessions map[sessionKey]*Session
	}

	resultMailData struct {
		StudentName string
		QuizID      string
		QuizTitle   string
		Score       int
		TotalPoints int
		Percentage  int
		TimeTaken   time.Duration
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger, conf core.QuizConfig) Service {
	if conf.TickInterval <= 0 {
		conf.TickInterval = DefaultTickInterval
	}
	if conf.SubmitTimeout <= 0 {
		conf.SubmitTimeout = 10 * time.Second
	}
	return &service{
		repo:      repo,
		submitter: NewSubmitter(repo),
		mailSvc:   mailSvc,
		logger:    logger,
		conf:      conf,
		sessions:  make(map[sessionKey]*Session),
	}
}

func (svc *service) CreateQuiz(ctx context.Context, nq NewQuiz, authorID string) (Quiz, error) {
	now := nowFunc().UTC()
	qz := Quiz{
		Title:            nq.Title,
		Description:      nq.Description,
		ClassID:          nq.ClassID,
		TotalQuestions:   len(nq.Questions),
		TimeLimitMinutes: nq.TimeLimitMinutes,
		IsActive:         true,
		CreatedBy:        authorID,
		CreatedAt:        now,
	}
	if nq.IsActive != nil {
		qz.IsActive = *nq.IsActive
	}

	questions := make([]Question, 0, len(nq.Questions))
	for i, q := range nq.Questions {
		questions = append(questions, Question{
			Prompt:        q.Prompt,
			Options:       append([]string(nil), q.Options...),
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
			Points:        q.Points,
			Position:      i,
			CreatedAt:     now,
		})
	}
	return svc.repo.CreateQuiz(ctx, qz, questions)
}

func (svc *service) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	return svc.repo.GetQuiz(ctx, id)
}

func (svc *service) GetVisibleQuiz(ctx context.Context, id string, learner Learner) (Quiz, error) {
	qz, err := svc.repo.GetQuiz(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	if !qz.VisibleTo(learner) {
		return Quiz{}, ErrNotFound
	}
	return qz, nil
}

func (svc *service) QueryQuizzes(ctx context.Context, filter QuizFilter) ([]Quiz, error) {
	return svc.repo.QueryQuizzes(ctx, filter)
}

func (svc *service) LoadQuestions(ctx context.Context, quizID string) ([]Question, error) {
	return LoadQuestions(ctx, svc.repo, quizID)
}

func (svc *service) StartAttempt(ctx context.Context, learner Learner, quizID string) (*Session, error) {
	key := sessionKey{learnerID: learner.ID, quizID: quizID}
	if sess := svc.lookup(key); sess != nil {
		return sess, nil
	}

	qz, err := svc.GetVisibleQuiz(ctx, quizID, learner)
	if err != nil {
		return nil, err
	}

	switch _, err := svc.repo.GetAttempt(ctx, quizID, learner.ID); errors.Cause(err) {
	case nil:
		return nil, ErrAlreadyAttempted
	case ErrAttemptNotFound:
	default:
		return nil, errors.Wrap(err, "checking attempt history")
	}

	questions, err := svc.LoadQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	sess, err := Start(qz, learner, questions, nowFunc())
	if err != nil {
		return nil, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if current, ok := svc.sessions[key]; ok && !current.Status().IsTerminal() {
		return current, nil // started concurrently
	}

	timer := NewTimer(TimerOptions{
		Start:      sess.StartTime(),
		Limit:      qz.TimeLimit(),
		Interval:   svc.conf.TickInterval,
		Now:        nowFunc,
		OnTick:     sess.observe,
		OnDeadline: func() bool { return svc.autoSubmit(sess) },
	})
	sess.attachTimer(timer)
	svc.sessions[key] = sess
	timer.Start()

	svc.logger.Info(fmt.Sprintf("quiz %s started by %s", quizID, learner.ID))
	return sess, nil
}

func (svc *service) GetSession(learnerID, quizID string) (*Session, error) {
	if sess := svc.lookup(sessionKey{learnerID: learnerID, quizID: quizID}); sess != nil {
		return sess, nil
	}
	return nil, ErrSessionNotFound
}

func (svc *service) SubmitAttempt(ctx context.Context, learnerID, quizID string) (Attempt, error) {
	sess := svc.lookup(sessionKey{learnerID: learnerID, quizID: quizID})
	if sess == nil {
		switch _, err := svc.repo.GetAttempt(ctx, quizID, learnerID); errors.Cause(err) {
		case nil:
			return Attempt{}, ErrDuplicateAttempt
		case ErrAttemptNotFound:
			return Attempt{}, ErrSessionNotFound
		default:
			return Attempt{}, errors.Wrap(err, "checking attempt history")
		}
	}
	return svc.submit(ctx, sess)
}

func (svc *service) AbandonAttempt(learnerID, quizID string) error {
	sess := svc.lookup(sessionKey{learnerID: learnerID, quizID: quizID})
	if sess == nil {
		return ErrSessionNotFound
	}
	if err := sess.Abandon(); err != nil {
		return err
	}
	svc.forget(sess)
	return nil
}

func (svc *service) GetAttempt(ctx context.Context, quizID, studentID string) (Attempt, error) {
	return svc.repo.GetAttempt(ctx, quizID, studentID)
}

func (svc *service) QueryAttempts(ctx context.Context, filter AttemptFilter, ordering []core.DBOrdering) ([]Attempt, error) {
	return svc.repo.QueryAttempts(ctx, filter, ordering)
}

func (svc *service) Close() {
	svc.mu.Lock()
	sessions := make([]*Session, 0, len(svc.sessions))
	for key, sess := range svc.sessions {
		sessions = append(sessions, sess)
		delete(svc.sessions, key)
	}
	svc.mu.Unlock()

	for _, sess := range sessions {
		_ = sess.Abandon()
	}
}

func (svc *service) submit(ctx context.Context, sess *Session) (Attempt, error) {
	a, created, err := svc.submitter.submit(ctx, sess)
	if sess.Status().IsTerminal() {
		svc.forget(sess)
	}
	if created {
		svc.notify(sess, a)
	}
	return a, err
}

// autoSubmit is called by the session timer at the deadline.
// it reports false when the attempt could not be saved, so that the next tick tries again.
func (svc *service) autoSubmit(sess *Session) bool {
	ctx, cancel := context.WithTimeout(context.Background(), svc.conf.SubmitTimeout)
	defer cancel()

	qz, learner := sess.Quiz(), sess.Learner()
	switch _, err := svc.submit(ctx, sess); errors.Cause(err) {
	case nil:
		svc.logger.Info(fmt.Sprintf("quiz %s auto-submitted for %s", qz.ID, learner.ID), learner)
	case ErrDuplicateAttempt, ErrSessionClosed:
		svc.logger.Warn(fmt.Sprintf("quiz %s auto-submit for %s: %v", qz.ID, learner.ID, err), learner)
	default:
		svc.logger.Error(fmt.Sprintf("quiz %s auto-submit for %s failed: %v", qz.ID, learner.ID, err), err, learner)
		return false
	}
	return true
}

func (svc *service) lookup(key sessionKey) *Session {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	sess, ok := svc.sessions[key]
	if !ok {
		return nil
	}
	if sess.Status().IsTerminal() {
		delete(svc.sessions, key)
		return nil
	}
	return sess
}

func (svc *service) forget(sess *Session) {
	key := sessionKey{learnerID: sess.Learner().ID, quizID: sess.Quiz().ID}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.sessions[key] == sess {
		delete(svc.sessions, key)
	}
}

func (svc *service) notify(sess *Session, a Attempt) {
	learner, qz := sess.Learner(), sess.Quiz()
	if svc.mailSvc == nil || learner.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: learner.Name, Address: learner.Email}},
		Subject:      fmt.Sprintf("Your result for %q", qz.Title),
		TemplateName: resultEmailTemplate,
		TemplateData: resultMailData{
			StudentName: learner.Name,
			QuizID:      qz.ID,
			QuizTitle:   qz.Title,
			Score:       a.Score,
			TotalPoints: a.TotalPoints,
			Percentage:  a.Percentage(),
			TimeTaken:   a.TimeTaken(),
		},
	})
}
