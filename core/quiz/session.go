package quiz

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-quiz/core"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusSubmitting Status = "submitting"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Session is the in-memory state of an attempt in progress.
// it is owned by a single learner; the mutex serialises the learner's requests & the timer.
type Session struct {
	mu       sync.Mutex
	submitMu sync.Mutex // held for the whole submission

	quiz      Quiz
	learner   Learner
	questions []Question     // snapshot taken at start
	positions map[string]int // question ID -> index
	startTime time.Time

	status  Status
	current int
	answers Answers
	elapsed time.Duration
	expired bool // the time limit is reached: answers & position are frozen
	result  *Attempt

	timer     *Timer
	observers map[chan Tick]struct{}
}

// State is a point-in-time copy of a Session.
type State struct {
	Quiz         Quiz
	Questions    []Question
	Status       Status
	CurrentIndex int
	Answers      Answers
	StartTime    time.Time
	Elapsed      time.Duration
	Remaining    time.Duration // 0 when the quiz has no time limit
	Result       *Attempt
}

// submission is what the Submitter needs from a Session to build its Attempt.
type submission struct {
	quiz      Quiz
	learner   Learner
	questions []Question
	answers   Answers
	startTime time.Time
}

// Start creates a new in-progress Session over a snapshot of the given questions.
// checking that the learner has not attempted the quiz yet is the caller's job.
func Start(qz Quiz, learner Learner, questions []Question, now time.Time) (*Session, error) {
	if len(questions) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "quiz %s has no questions", qz.ID)
	}

	snapshot := make([]Question, 0, len(questions))
	positions := make(map[string]int, len(questions))
	for i, q := range questions {
		snapshot = append(snapshot, q.clone())
		positions[q.ID] = i
	}
	return &Session{
		quiz:      qz,
		learner:   learner,
		questions: snapshot,
		positions: positions,
		startTime: now,
		status:    StatusInProgress,
		answers:   make(Answers),
		observers: make(map[chan Tick]struct{}),
	}, nil
}

func (s *Session) Quiz() Quiz           { return s.quiz }
func (s *Session) Learner() Learner     { return s.learner }
func (s *Session) StartTime() time.Time { return s.startTime }
func (s *Session) Len() int             { return len(s.questions) }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == "" {
		return StatusNotStarted
	}
	return s.status
}

// Expired reports whether the time limit was reached. an expired session can only be submitted or abandoned.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired
}

func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// CurrentQuestion returns a copy of the question at the current index.
func (s *Session) CurrentQuestion() Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questions[s.current].clone()
}

func (s *Session) Answers() Answers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.clone()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions := make([]Question, 0, len(s.questions))
	for _, q := range s.questions {
		questions = append(questions, q.clone())
	}
	st := State{
		Quiz:         s.quiz,
		Questions:    questions,
		Status:       s.status,
		CurrentIndex: s.current,
		Answers:      s.answers.clone(),
		StartTime:    s.startTime,
		Elapsed:      s.elapsed,
	}
	if limit := s.quiz.TimeLimit(); limit > 0 {
		st.Remaining = remaining(limit, s.elapsed)
	}
	if s.result != nil {
		res := *s.result
		res.Answers = s.result.Answers.clone()
		st.Result = &res
	}
	return st
}

// RecordAnswer selects option for the given question, replacing any previous answer.
// the option must be one of the question's options; on error the session is left untouched.
func (s *Session) RecordAnswer(questionID, option string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress || s.expired {
		return ErrSessionClosed
	}
	pos, ok := s.positions[questionID]
	if !ok {
		return core.NewValidationError(ErrUnknownQuestion, core.FieldError{Field: "question_id", Error: ErrUnknownQuestion.Error()})
	}
	if !s.questions[pos].HasOption(option) {
		return core.NewValidationError(ErrInvalidOption, core.FieldError{Field: "option", Error: ErrInvalidOption.Error()})
	}
	s.answers[questionID] = option
	return nil
}

// GoTo moves to the question at index. out-of-range indexes are ignored, as is any move once expired.
func (s *Session) GoTo(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goTo(index)
}

// Next moves to the next question, unless already on the last one.
func (s *Session) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goTo(s.current + 1)
}

// Previous moves to the previous question, unless already on the first one.
func (s *Session) Previous() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goTo(s.current - 1)
}

func (s *Session) goTo(index int) {
	if s.status != StatusInProgress || s.expired {
		return
	}
	if index < 0 || index >= len(s.questions) {
		return
	}
	s.current = index
}

// Abandon discards an in-progress session. no Attempt is produced.
func (s *Session) Abandon() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return ErrSessionClosed
	}
	s.status = StatusAbandoned
	s.teardown()
	return nil
}

// Subscribe returns a channel receiving the timer ticks until the session ends, and a func to unsubscribe.
// slow subscribers miss ticks instead of blocking the timer.
func (s *Session) Subscribe() (<-chan Tick, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Tick, 1)
	if s.status.IsTerminal() {
		close(ch)
		return ch, func() {}
	}
	s.observers[ch] = struct{}{}
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.observers[ch]; ok {
			delete(s.observers, ch)
			close(ch)
		}
	}
}

func (s *Session) attachTimer(t *Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timer = t
}

// observe records the elapsed time published by the timer & forwards it to subscribers.
func (s *Session) observe(t Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.IsTerminal() {
		return
	}
	s.elapsed = t.Elapsed
	if t.HasLimit && t.Remaining <= 0 {
		s.expired = true
	}
	for ch := range s.observers {
		select {
		case ch <- t:
		default:
		}
	}
}

// beginSubmit moves an in-progress session to StatusSubmitting and returns what must be scored.
// a completed session returns its cached result, or ErrDuplicateAttempt if it has none.
func (s *Session) beginSubmit() (submission, *Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusInProgress:
		s.status = StatusSubmitting
		questions := make([]Question, 0, len(s.questions))
		for _, q := range s.questions {
			questions = append(questions, q.clone())
		}
		return submission{
			quiz:      s.quiz,
			learner:   s.learner,
			questions: questions,
			answers:   s.answers.clone(),
			startTime: s.startTime,
		}, nil, nil
	case StatusCompleted:
		if s.result != nil {
			res := *s.result
			res.Answers = s.result.Answers.clone()
			return submission{}, &res, nil
		}
		return submission{}, nil, ErrDuplicateAttempt
	default:
		return submission{}, nil, ErrSessionClosed
	}
}

// finishSubmit ends a submission. a nil result with a nil err means someone else already holds the result.
// any other error rolls the session back to StatusInProgress.
func (s *Session) finishSubmit(result *Attempt, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil && errors.Cause(err) != ErrDuplicateAttempt {
		s.status = StatusInProgress
		return
	}
	s.status = StatusCompleted
	s.result = result
	s.teardown()
}

// teardown stops the timer & releases the subscribers. must be called with s.mu held.
func (s *Session) teardown() {
	if s.timer != nil {
		s.timer.Stop()
	}
	for ch := range s.observers {
		delete(s.observers, ch)
		close(ch)
	}
}

func remaining(limit, elapsed time.Duration) time.Duration {
	if rem := limit - elapsed; rem > 0 {
		return rem
	}
	return 0
}
