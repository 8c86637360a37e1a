package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-quiz/core/quiz"
)

type quizApi struct {
	svc        quiz.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerQuizAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := quizApi{
		svc:        deps.QuizSvc,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	qg := g.Group("/quizzes", jwt)
	qg.GET("", api.query)
	qg.POST("", api.create, staffMiddleware())
	qg.GET("/:id", api.retrieve)
	qg.GET("/:id/questions", api.queryQuestions, staffMiddleware())
	qg.GET("/:id/attempts", api.queryQuizAttempts, staffMiddleware())
	qg.GET("/:id/attempt", api.retrieveOwnAttempt, studentMiddleware())

	g.GET("/attempts", api.queryOwnAttempts, jwt, studentMiddleware())
}

// Handlers

func (api *quizApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data quiz.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	qz, err := api.svc.CreateQuiz(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, qz)
}

// query lists the quizzes. students only see the active quizzes of their class.
func (api *quizApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var filter quiz.QuizFilter
	if claims.IsStaff() {
		if err := ctx.Bind(&filter); err != nil {
			return ctx.JSON(http.StatusOK, []quiz.Quiz{})
		}
	} else {
		if claims.ClassID == "" {
			return ctx.JSON(http.StatusOK, []quiz.Quiz{})
		}
		filter = quiz.QuizFilter{ClassID: claims.ClassID, ActiveOnly: true}
	}

	quizzes, err := api.svc.QueryQuizzes(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}
	if quizzes == nil {
		quizzes = []quiz.Quiz{}
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var qz quiz.Quiz
	if claims.IsStaff() {
		qz, err = api.svc.GetQuiz(ctx.Request().Context(), ctx.Param("id"))
	} else {
		qz, err = api.svc.GetVisibleQuiz(ctx.Request().Context(), ctx.Param("id"), claims.Learner())
	}
	if err != nil {
		return errors.Wrap(err, "getting quiz")
	}
	return ctx.JSON(http.StatusOK, qz)
}

func (api *quizApi) queryQuestions(ctx echo.Context) error {
	questions, err := api.svc.LoadQuestions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "loading questions")
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *quizApi) queryQuizAttempts(ctx echo.Context) error {
	if _, err := api.svc.GetQuiz(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "getting quiz")
	}
	return api.queryAttempts(ctx, quiz.AttemptFilter{QuizID: ctx.Param("id")})
}

func (api *quizApi) queryOwnAttempts(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	return api.queryAttempts(ctx, quiz.AttemptFilter{StudentID: claims.Subject})
}

func (api *quizApi) retrieveOwnAttempt(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	a, err := api.svc.GetAttempt(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting attempt")
	}
	return ctx.JSON(http.StatusOK, newAttemptResponse(a))
}

func (api *quizApi) queryAttempts(ctx echo.Context, filter quiz.AttemptFilter) error {
	ordering := new(Ordering)
	ordering.Bind(ctx, quiz.AttemptOrderingFields)

	attempts, err := api.svc.QueryAttempts(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying attempts")
	}

	resp := make([]AttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		resp = append(resp, newAttemptResponse(a))
	}
	return ctx.JSON(http.StatusOK, resp)
}

// AttemptResponse is an Attempt with its score as a percentage.
type AttemptResponse struct {
	quiz.Attempt
	Percentage int `json:"percentage"`
}

func newAttemptResponse(a quiz.Attempt) AttemptResponse {
	return AttemptResponse{Attempt: a, Percentage: a.Percentage()}
}
