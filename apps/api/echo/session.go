package echoapi

import (
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-quiz/core"
	"github.com/trezcool/masomo-quiz/core/quiz"
)

const wsWriteWait = 5 * time.Second

type sessionApi struct {
	svc        quiz.Service
	logger     core.Logger
	validate   *validator.Validate
	translator ut.Translator
	upgrader   websocket.Upgrader
}

// registerSessionAPI registers the endpoints driving the quiz session of the logged in student.
func registerSessionAPI(g *echo.Group, jwt, wsJWT echo.MiddlewareFunc, deps ServerDeps) {
	api := sessionApi{
		svc:        deps.QuizSvc,
		logger:     deps.Logger,
		validate:   deps.Validate,
		translator: deps.Translator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	sg := g.Group("/quizzes/:id/session")
	sg.GET("/ticks", api.ticks, wsJWT, studentMiddleware())

	ag := sg.Group("", jwt, studentMiddleware())
	ag.POST("", api.start)
	ag.GET("", api.retrieve)
	ag.DELETE("", api.abandon)
	ag.PUT("/answers", api.answer)
	ag.POST("/goto", api.goTo)
	ag.POST("/next", api.next)
	ag.POST("/previous", api.previous)
	ag.POST("/submit", api.submit)
}

// Handlers

func (api *sessionApi) start(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	sess, err := api.svc.StartAttempt(ctx.Request().Context(), claims.Learner(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "starting attempt")
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess.State()))
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess.State()))
}

func (api *sessionApi) abandon(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err := api.svc.AbandonAttempt(claims.Subject, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "abandoning attempt")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) answer(ctx echo.Context) error {
	sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}

	var data quiz.AnswerInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AnswerInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := sess.RecordAnswer(data.QuestionID, data.Option); err != nil {
		return errors.Wrap(err, "recording answer")
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess.State()))
}

func (api *sessionApi) goTo(ctx echo.Context) error {
	sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}

	var data GoToRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GoToRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	sess.GoTo(*data.Index)
	return ctx.JSON(http.StatusOK, newSessionResponse(sess.State()))
}

func (api *sessionApi) next(ctx echo.Context) error {
	sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}
	sess.Next()
	return ctx.JSON(http.StatusOK, newSessionResponse(sess.State()))
}

func (api *sessionApi) previous(ctx echo.Context) error {
	sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}
	sess.Previous()
	return ctx.JSON(http.StatusOK, newSessionResponse(sess.State()))
}

func (api *sessionApi) submit(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	a, err := api.svc.SubmitAttempt(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "submitting attempt")
	}
	return ctx.JSON(http.StatusOK, newAttemptResponse(a))
}

// ticks streams the session timer over a websocket until the session ends or the client goes away.
func (api *sessionApi) ticks(ctx echo.Context) error {
	sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}

	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return nil // the upgrader already replied with an HTTP error
	}
	defer conn.Close()

	ticks, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	// the client never sends anything: reading only detects when it goes away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// first message right away, do not wait for the timer
	if err := api.writeTick(conn, newTickMessage(sess.State())); err != nil {
		return nil
	}

	for {
		select {
		case t, ok := <-ticks:
			if !ok {
				_ = api.writeTick(conn, TickMessage{Status: sess.Status()})
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(wsWriteWait),
				)
				return nil
			}
			msg := TickMessage{
				Status:         quiz.StatusInProgress,
				ElapsedSeconds: int(t.Elapsed / time.Second),
			}
			if t.HasLimit {
				rem := int(t.Remaining / time.Second)
				msg.RemainingSeconds = &rem
			}
			if err := api.writeTick(conn, msg); err != nil {
				return nil
			}
		case <-gone:
			return nil
		}
	}
}

func (api *sessionApi) writeTick(conn *websocket.Conn, msg TickMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(msg); err != nil {
		api.logger.Debug("echoapi.ticks: " + err.Error())
		return err
	}
	return nil
}

func (api *sessionApi) getSession(ctx echo.Context) (*quiz.Session, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting context claims")
	}
	sess, err := api.svc.GetSession(claims.Subject, ctx.Param("id"))
	if err != nil {
		return nil, errors.Wrap(err, "getting session")
	}
	return sess, nil
}

type (
	GoToRequest struct {
		Index *int `json:"index" validate:"required"`
	}

	// QuestionResponse is a Question as seen by the learner, without its answer.
	QuestionResponse struct {
		ID       string   `json:"id"`
		Prompt   string   `json:"question"`
		Options  []string `json:"options"`
		Points   int      `json:"points"`
		Position int      `json:"position"`
	}

	SessionResponse struct {
		Quiz             quiz.Quiz          `json:"quiz"`
		Status           quiz.Status        `json:"status"`
		CurrentIndex     int                `json:"current_index"`
		Questions        []QuestionResponse `json:"questions"`
		Answers          quiz.Answers       `json:"answers"`
		StartedAt        time.Time          `json:"started_at"`
		ElapsedSeconds   int                `json:"elapsed_seconds"`
		RemainingSeconds *int               `json:"remaining_seconds,omitempty"` // nil: no time limit
		Result           *AttemptResponse   `json:"result,omitempty"`
	}

	TickMessage struct {
		Status           quiz.Status `json:"status"`
		ElapsedSeconds   int         `json:"elapsed_seconds"`
		RemainingSeconds *int        `json:"remaining_seconds,omitempty"`
	}
)

func newSessionResponse(st quiz.State) SessionResponse {
	questions := make([]QuestionResponse, 0, len(st.Questions))
	for _, q := range st.Questions {
		questions = append(questions, QuestionResponse{
			ID:       q.ID,
			Prompt:   q.Prompt,
			Options:  q.Options,
			Points:   q.Points,
			Position: q.Position,
		})
	}

	resp := SessionResponse{
		Quiz:           st.Quiz,
		Status:         st.Status,
		CurrentIndex:   st.CurrentIndex,
		Questions:      questions,
		Answers:        st.Answers,
		StartedAt:      st.StartTime,
		ElapsedSeconds: int(st.Elapsed / time.Second),
	}
	if st.Quiz.TimeLimit() > 0 {
		rem := int(st.Remaining / time.Second)
		resp.RemainingSeconds = &rem
	}
	if st.Result != nil {
		res := newAttemptResponse(*st.Result)
		resp.Result = &res
	}
	return resp
}

func newTickMessage(st quiz.State) TickMessage {
	resp := newSessionResponse(st)
	return TickMessage{
		Status:           resp.Status,
		ElapsedSeconds:   resp.ElapsedSeconds,
		RemainingSeconds: resp.RemainingSeconds,
	}
}
