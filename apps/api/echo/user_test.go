package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/masomo-quiz/apps/api/echo"
	"github.com/trezcool/masomo-quiz/core/user"
	"github.com/trezcool/masomo-quiz/tests"
)

const testPwd = "9#Zq!7Vx%2"

func Test_userApi_login(t *testing.T) {
	env := setup(t)
	student := testutil.CreateUser(t, env.usrRepo, "Tom", "tom", "tom@test.cd", testPwd, []string{user.RoleStudent}, "class-1", true)
	testutil.CreateUser(t, env.usrRepo, "N Dog", "ndog", "ndog@test.cd", testPwd, []string{user.RoleStudent}, "class-1", false)

	tests := []httpTest{
		{
			name: "missing credentials", method: http.MethodPost, path: "/v1/users/login",
			body:     marshallObj(t, echoapi.LoginRequest{}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/users/login",
			body:     marshallObj(t, echoapi.LoginRequest{Username: "nobody", Password: testPwd}),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/users/login",
			body:     marshallObj(t, echoapi.LoginRequest{Username: "tom", Password: "wrong-password"}),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", method: http.MethodPost, path: "/v1/users/login",
			body:     marshallObj(t, echoapi.LoginRequest{Username: "ndog@test.cd", Password: testPwd}),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	runHTTPTests(t, env, tests)

	t.Run("success", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/users/login", "", marshallObj(t, echoapi.LoginRequest{Username: " TOM ", Password: testPwd}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp echoapi.LoginResponse
		unmarshall(t, rec, &resp)
		require.NotEmpty(t, resp.Token)

		rec = env.do(http.MethodGet, "/v1/users/me", resp.Token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var me user.User
		unmarshall(t, rec, &me)
		assert.Equal(t, student.ID, me.ID)
		assert.Equal(t, "class-1", me.ClassID)
		assert.False(t, me.LastLogin.IsZero())
	})
}

func Test_userApi_me(t *testing.T) {
	env := setup(t)
	ghost := user.User{ID: "ghost", Name: "Ghost", Username: "ghost", Roles: []string{user.RoleStudent}}

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users/me", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name: "invalid token", path: "/v1/users/me", token: "not-a-jwt",
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name: "deleted user", path: "/v1/users/me", token: env.getToken(t, ghost),
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, httpErr{Error: "user not authenticated"}),
		},
	}
	runHTTPTests(t, env, tests)
}

func Test_userApi_refreshToken(t *testing.T) {
	env := setup(t)
	student := testutil.CreateUser(t, env.usrRepo, "Tom", "tom", "tom@test.cd", testPwd, []string{user.RoleStudent}, "class-1", true)

	rec := env.do(http.MethodPost, "/v1/users/token-refresh", env.getToken(t, student))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp echoapi.LoginResponse
	unmarshall(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)

	rec = env.do(http.MethodPost, "/v1/users/token-refresh", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func Test_userApi_create(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin", "admin@test.cd", testPwd, []string{user.RoleAdmin}, "", true)
	teacher := testutil.CreateUser(t, env.usrRepo, "Teacher", "teacher", "teacher@test.cd", testPwd, []string{user.RoleTeacher}, "", true)
	adminToken := env.getToken(t, admin)

	newStudent := user.NewUser{
		Name:            "Tom",
		Username:        "tom",
		Email:           "tom@test.cd",
		Password:        testPwd,
		PasswordConfirm: testPwd,
		Roles:           []string{user.RoleStudent},
		ClassID:         "class-1",
	}
	noClass := newStudent
	noClass.Username, noClass.Email, noClass.ClassID = "jerry", "jerry@test.cd", ""
	owner := newStudent
	owner.Username, owner.Email, owner.Roles = "boss", "boss@test.cd", []string{user.RoleAdminOwner}

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/users", body: marshallObj(t, newStudent),
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "Admin required", method: http.MethodPost, path: "/v1/users", body: marshallObj(t, newStudent),
			token: env.getToken(t, teacher), wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "student without class", method: http.MethodPost, path: "/v1/users", body: marshallObj(t, noClass),
			token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"class_id": "students must be enrolled in a class"}),
		},
		{
			name: "role above own", method: http.MethodPost, path: "/v1/users", body: marshallObj(t, owner),
			token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"roles": "not enough rights to set these roles"}),
		},
	}
	runHTTPTests(t, env, tests)

	t.Run("success", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/users", adminToken, marshallObj(t, newStudent))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var usr user.User
		unmarshall(t, rec, &usr)
		assert.NotEmpty(t, usr.ID)
		assert.Equal(t, "class-1", usr.ClassID)
		assert.True(t, usr.IsStudent())

		// username taken
		rec = env.do(http.MethodPost, "/v1/users", adminToken, marshallObj(t, newStudent))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"username": "a user with this username already exists"}`, rec.Body.String())
	})
}

func Test_userApi_query(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin", "admin@test.cd", testPwd, []string{user.RoleAdmin}, "", true)
	zoe := testutil.CreateUser(t, env.usrRepo, "Zoe", "zoe", "zoe@test.cd", testPwd, []string{user.RoleStudent}, "class-1", true)
	bob := testutil.CreateUser(t, env.usrRepo, "Bob", "bob", "bob@test.cd", testPwd, []string{user.RoleStudent}, "class-2", true)
	adminToken := env.getToken(t, admin)

	names := func(rec []user.User) []string {
		out := make([]string, 0, len(rec))
		for _, u := range rec {
			out = append(out, u.Name)
		}
		return out
	}

	tests := []struct {
		name      string
		path      string
		wantNames []string
	}{
		{name: "order by name", path: "/v1/users?ordering=name", wantNames: []string{admin.Name, bob.Name, zoe.Name}},
		{name: "order by -name", path: "/v1/users?ordering=-name", wantNames: []string{zoe.Name, bob.Name, admin.Name}},
		{name: "unknown ordering is ignored", path: "/v1/users?ordering=password_hash&role=student:&search=o", wantNames: []string{bob.Name, zoe.Name}},
		{name: "class", path: "/v1/users?class_id=class-2", wantNames: []string{bob.Name}},
		{name: "search (unknown)", path: "/v1/users?search=lol", wantNames: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodGet, tt.path, adminToken)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var users []user.User
			unmarshall(t, rec, &users)
			if tt.name == "unknown ordering is ignored" {
				assert.ElementsMatch(t, tt.wantNames, names(users))
				return
			}
			assert.Equal(t, tt.wantNames, names(users))
		})
	}

	t.Run("roles", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/v1/users/roles", adminToken)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, string(marshallObj(t, user.Roles)), rec.Body.String())
	})
}
