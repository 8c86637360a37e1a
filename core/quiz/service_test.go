package quiz

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-quiz/core"
)

var student = Learner{ID: "student", Name: "Amani", Email: "amani@masomo.test", ClassID: "c1"}

func setup(t *testing.T) (*service, *mockRepo, *mockMailer, *fakeClock) {
	clock := useClock(t)
	repo := newMockRepo()
	mailer := new(mockMailer)
	// real ticks never happen during a test, the timers are driven by hand
	svc := NewService(repo, mailer, testLogger{t}, core.QuizConfig{TickInterval: time.Hour}).(*service)
	t.Cleanup(svc.Close)
	return svc, repo, mailer, clock
}

func createQuiz(t *testing.T, svc Service, timeLimit int, active bool, nQuestions int) Quiz {
	t.Helper()
	nq := NewQuiz{
		Title:            "Algebra",
		ClassID:          "c1",
		TimeLimitMinutes: timeLimit,
		IsActive:         &active,
	}
	for i := 0; i < nQuestions; i++ {
		nq.Questions = append(nq.Questions, NewQuestion{
			Prompt:        "2 + 2 = ?",
			Options:       []string{"3", "4", "5"},
			CorrectAnswer: "4",
			Points:        1,
		})
	}
	qz, err := svc.CreateQuiz(context.Background(), nq, "teacher")
	require.NoError(t, err)
	return qz
}

func TestService_CreateQuiz(t *testing.T) {
	svc, _, _, clock := setup(t)
	ctx := context.Background()

	qz := createQuiz(t, svc, 10, true, 3)
	assert.NotEmpty(t, qz.ID)
	assert.Equal(t, 3, qz.TotalQuestions)
	assert.Equal(t, "teacher", qz.CreatedBy)
	assert.Equal(t, clock.Now(), qz.CreatedAt)
	assert.True(t, qz.IsActive)

	questions, err := svc.LoadQuestions(ctx, qz.ID)
	require.NoError(t, err)
	require.Len(t, questions, 3)
	for i, q := range questions {
		assert.Equal(t, i, q.Position)
		assert.Equal(t, qz.ID, q.QuizID)
	}
}

func TestService_StartAttempt(t *testing.T) {
	svc, repo, _, _ := setup(t)
	ctx := context.Background()

	active := createQuiz(t, svc, 0, true, 3)
	inactive := createQuiz(t, svc, 0, false, 3)
	otherClass, err := repo.CreateQuiz(ctx, Quiz{Title: "Geo", ClassID: "c2", IsActive: true}, sixQuestions(""))
	require.NoError(t, err)
	empty, err := repo.CreateQuiz(ctx, Quiz{Title: "Empty", ClassID: "c1", IsActive: true}, nil)
	require.NoError(t, err)
	attempted, err := repo.CreateQuiz(ctx, Quiz{Title: "Done", ClassID: "c1", IsActive: true}, sixQuestions(""))
	require.NoError(t, err)
	_, err = repo.CreateAttempt(ctx, Attempt{ID: "a1", QuizID: attempted.ID, StudentID: student.ID})
	require.NoError(t, err)

	tests := []struct {
		name    string
		quizID  string
		wantErr error
	}{
		{"unknown quiz", "nope", ErrNotFound},
		{"inactive quiz", inactive.ID, ErrNotFound},
		{"quiz of another class", otherClass.ID, ErrNotFound},
		{"quiz without questions", empty.ID, ErrNotFound},
		{"already attempted", attempted.ID, ErrAlreadyAttempted},
		{"valid", active.ID, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := svc.StartAttempt(ctx, student, tt.quizID)
			if errors.Cause(err) != tt.wantErr {
				t.Errorf("StartAttempt() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr != nil {
				assert.Nil(t, sess)
				_, err := svc.GetSession(student.ID, tt.quizID)
				assert.Equal(t, ErrSessionNotFound, err)
				return
			}
			assert.Equal(t, StatusInProgress, sess.Status())
			assert.Equal(t, 3, sess.Len())
		})
	}
	assert.Equal(t, 1, repo.insertCount(), "starting never writes")
}

func TestService_ResumeAndRestart(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()
	qz := createQuiz(t, svc, 0, true, 3)

	sess, err := svc.StartAttempt(ctx, student, qz.ID)
	require.NoError(t, err)
	questions, err := svc.LoadQuestions(ctx, qz.ID)
	require.NoError(t, err)
	require.NoError(t, sess.RecordAnswer(questions[0].ID, "4"))

	resumed, err := svc.StartAttempt(ctx, student, qz.ID)
	require.NoError(t, err)
	assert.Same(t, sess, resumed)

	got, err := svc.GetSession(student.ID, qz.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)

	require.NoError(t, svc.AbandonAttempt(student.ID, qz.ID))
	assert.Equal(t, StatusAbandoned, sess.Status())
	assert.True(t, sess.timer.Stopped())
	assert.Equal(t, ErrSessionNotFound, svc.AbandonAttempt(student.ID, qz.ID))

	// nothing was saved: a new session starts from scratch
	fresh, err := svc.StartAttempt(ctx, student, qz.ID)
	require.NoError(t, err)
	assert.NotSame(t, sess, fresh)
	assert.Empty(t, fresh.Answers())
	assert.Equal(t, 0, fresh.CurrentIndex())
}

func TestService_SubmitAttempt(t *testing.T) {
	svc, repo, mailer, clock := setup(t)
	ctx := context.Background()
	qz := createQuiz(t, svc, 0, true, 3)

	_, err := svc.SubmitAttempt(ctx, student.ID, qz.ID)
	assert.Equal(t, ErrSessionNotFound, err)

	sess, err := svc.StartAttempt(ctx, student, qz.ID)
	require.NoError(t, err)
	questions, err := svc.LoadQuestions(ctx, qz.ID)
	require.NoError(t, err)
	require.NoError(t, sess.RecordAnswer(questions[0].ID, "4"))
	require.NoError(t, sess.RecordAnswer(questions[1].ID, "3"))
	clock.Advance(42 * time.Second)

	a, err := svc.SubmitAttempt(ctx, student.ID, qz.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Score)
	assert.Equal(t, 3, a.TotalPoints)
	assert.Equal(t, 33, a.Percentage())
	assert.Equal(t, 42, a.TimeTakenSeconds)
	assert.True(t, sess.timer.Stopped())

	_, err = svc.GetSession(student.ID, qz.ID)
	assert.Equal(t, ErrSessionNotFound, err)
	_, err = svc.SubmitAttempt(ctx, student.ID, qz.ID)
	assert.Equal(t, ErrDuplicateAttempt, err)
	_, err = svc.StartAttempt(ctx, student, qz.ID)
	assert.Equal(t, ErrAlreadyAttempted, err)

	saved, err := svc.GetAttempt(ctx, qz.ID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, saved.ID)
	assert.Equal(t, 1, repo.insertCount())

	sent := mailer.sent()
	if assert.Len(t, sent, 1) {
		assert.Equal(t, resultEmailTemplate, sent[0].TemplateName)
		assert.Equal(t, student.Email, sent[0].To[0].Address)
		data := sent[0].TemplateData.(resultMailData)
		assert.Equal(t, 33, data.Percentage)
		assert.Equal(t, "Algebra", data.QuizTitle)
	}
}

// the deadline passes while the learner is still answering.
func TestService_AutoSubmitAtDeadline(t *testing.T) {
	svc, repo, mailer, clock := setup(t)
	ctx := context.Background()
	qz := createQuiz(t, svc, 1, true, 3)

	sess, err := svc.StartAttempt(ctx, student, qz.ID)
	require.NoError(t, err)
	questions, err := svc.LoadQuestions(ctx, qz.ID)
	require.NoError(t, err)
	require.NoError(t, sess.RecordAnswer(questions[0].ID, "4"))
	require.NoError(t, sess.RecordAnswer(questions[1].ID, "4"))

	clock.Advance(30 * time.Second)
	sess.timer.Tick()
	assert.Equal(t, StatusInProgress, sess.Status())
	assert.Equal(t, 30*time.Second, sess.State().Remaining)

	clock.Advance(31 * time.Second)
	sess.timer.Tick()
	assert.Equal(t, StatusCompleted, sess.Status())

	a, err := svc.GetAttempt(ctx, qz.ID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Score)
	assert.Equal(t, 3, a.TotalPoints)
	assert.Equal(t, 61, a.TimeTakenSeconds)

	// late ticks & a late manual submit do not save anything else
	clock.Advance(time.Second)
	sess.timer.Tick()
	_, err = svc.SubmitAttempt(ctx, student.ID, qz.ID)
	assert.Equal(t, ErrDuplicateAttempt, err)
	assert.Equal(t, 1, repo.insertCount())
	assert.Len(t, mailer.sent(), 1)
}

// saving the attempt fails at the deadline: answers are frozen & the next tick saves it.
func TestService_AutoSubmitRetried(t *testing.T) {
	svc, repo, mailer, clock := setup(t)
	ctx := context.Background()
	qz := createQuiz(t, svc, 1, true, 3)
	repo.createErr = errors.New("connection reset")

	sess, err := svc.StartAttempt(ctx, student, qz.ID)
	require.NoError(t, err)
	questions, err := svc.LoadQuestions(ctx, qz.ID)
	require.NoError(t, err)
	require.NoError(t, sess.RecordAnswer(questions[0].ID, "4"))

	clock.Advance(61 * time.Second)
	sess.timer.Tick()
	assert.Equal(t, StatusInProgress, sess.Status())
	assert.True(t, sess.Expired())
	assert.Equal(t, 0, repo.insertCount())

	clock.Advance(10 * time.Minute)
	assert.Equal(t, ErrSessionClosed, sess.RecordAnswer(questions[1].ID, "4"))
	assert.Equal(t, ErrSessionClosed, sess.RecordAnswer(questions[0].ID, "3"))
	sess.Next()
	assert.Equal(t, 0, sess.CurrentIndex())
	assert.Equal(t, Answers{questions[0].ID: "4"}, sess.Answers())

	sess.timer.Tick()
	assert.Equal(t, StatusCompleted, sess.Status())
	assert.True(t, sess.timer.Stopped())

	a, err := svc.GetAttempt(ctx, qz.ID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Score)
	assert.Equal(t, 3, a.TotalPoints)
	assert.Equal(t, 1, repo.insertCount())
	assert.Len(t, mailer.sent(), 1)

	_, err = svc.SubmitAttempt(ctx, student.ID, qz.ID)
	assert.Equal(t, ErrDuplicateAttempt, err)
}

// the same learner submits the same quiz from two devices.
func TestService_TwoDevices(t *testing.T) {
	svc, repo, _, _ := setup(t)
	other := NewService(repo, nil, testLogger{t}, core.QuizConfig{TickInterval: time.Hour})
	t.Cleanup(other.Close)
	ctx := context.Background()
	qz := createQuiz(t, svc, 0, true, 3)

	_, err := svc.StartAttempt(ctx, student, qz.ID)
	require.NoError(t, err)
	sessB, err := other.StartAttempt(ctx, student, qz.ID)
	require.NoError(t, err)

	_, err = svc.SubmitAttempt(ctx, student.ID, qz.ID)
	require.NoError(t, err)

	_, err = other.SubmitAttempt(ctx, student.ID, qz.ID)
	assert.Equal(t, ErrDuplicateAttempt, err)
	assert.Equal(t, StatusCompleted, sessB.Status())

	attempts, err := svc.QueryAttempts(ctx, AttemptFilter{QuizID: qz.ID, StudentID: student.ID}, nil)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}

func TestService_Close(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()
	qz := createQuiz(t, svc, 5, true, 2)

	sess, err := svc.StartAttempt(ctx, student, qz.ID)
	require.NoError(t, err)

	svc.Close()
	assert.Equal(t, StatusAbandoned, sess.Status())
	assert.True(t, sess.timer.Stopped())
	_, err = svc.GetSession(student.ID, qz.ID)
	assert.Equal(t, ErrSessionNotFound, err)
}
