package echoapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/masomo-quiz/apps/api/echo"
	"github.com/trezcool/masomo-quiz/core"
	"github.com/trezcool/masomo-quiz/core/quiz"
	"github.com/trezcool/masomo-quiz/core/user"
	"github.com/trezcool/masomo-quiz/services/email"
	"github.com/trezcool/masomo-quiz/services/logger"
	"github.com/trezcool/masomo-quiz/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	app      echoapi.Server
	conf     *core.Config
	usrRepo  user.Repository
	quizRepo quiz.Repository
	mailSvc  *emailsvc.ConsoleServiceMock
}

func newTestConfig() *core.Config {
	return &core.Config{
		AppName:   "Masomo",
		Env:       "TEST",
		TestMode:  true,
		SecretKey: "test-secret-key",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 2 * time.Hour,
		},
		Quiz: core.QuizConfig{
			TickInterval:  time.Hour, // timers are not driven by these tests
			SubmitTimeout: time.Second,
		},
	}
}

func setup(t *testing.T) testEnv {
	t.Helper()
	conf := newTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "TEST : ", 0), conf)

	// set up DB & repos
	db, err := inmemdb.Open()
	require.NoError(t, err)
	usrRepo := inmemdb.NewUserRepository(db)
	quizRepo := inmemdb.NewQuizRepository(db)

	// set up services
	core.ParseEmailTemplates(conf, logger)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewService(usrRepo)
	quizSvc := quiz.NewService(quizRepo, mailSvc, logger, conf.Quiz)
	t.Cleanup(quizSvc.Close)

	validate, translator := newValidator()

	// set up server
	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		QuizSvc:        quizSvc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	return testEnv{app: app, conf: conf, usrRepo: usrRepo, quizRepo: quizRepo, mailSvc: mailSvc}
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)
	return validate, translator
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// do serves an authenticated request & returns the recorded response.
func (env testEnv) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	env.app.ServeHTTP(rec, req)
	return rec
}

func (env testEnv) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := echoapi.GenerateToken(env.conf, echoapi.GetUserClaims(env.conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func unmarshall(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("unmarshall() failed: %v; body %s", err, rec.Body.String())
	}
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func runHTTPTests(t *testing.T, env testEnv, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			checkCodeAndData(t, tt, env.do(method, tt.path, tt.token, tt.body))
		})
	}
}
