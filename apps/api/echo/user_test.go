package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/learnspace/apps/api/echo"
	"github.com/trezcool/learnspace/core/user"
	"github.com/trezcool/learnspace/tests"
)

const testPwd = "Sup3r*Secret!"

func Test_userApi_login(t *testing.T) {
	stack.Reset()

	student := testutil.CreateStudent(t, stack.UsrRepo, "hero", testPwd)
	naughty := testutil.CreateUser(t, stack.UsrRepo, "N Dog", "ndog", "ndog@test.cd", testPwd, []string{user.RoleStudent}, false)
	_ = naughty

	authFailed := httpErr{Error: "authentication failed"}

	tests := []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/api/login", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username": "this field is required", "password": "this field is required"}`),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/api/login",
			body:     marchallObj(t, LoginRequest{Username: "nobody", Password: testPwd}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, authFailed),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/api/login",
			body:     marchallObj(t, LoginRequest{Username: "hero", Password: "nope"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, authFailed),
		},
		{
			name: "deactivated account", method: http.MethodPost, path: "/api/login",
			body:     marchallObj(t, LoginRequest{Username: "ndog", Password: testPwd}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	runHTTPTests(t, tests)

	for _, uname := range []string{"hero", "HERO ", "hero@test.cd"} {
		t.Run("success: "+uname, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/login/", marchallObj(t, LoginRequest{Username: uname, Password: testPwd}))
			app.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			var res LoginResponse
			unmarshal(t, rec, &res)
			assert.NotEmpty(t, res.Token)
			if assert.NotNil(t, res.User) {
				assert.Equal(t, student.ID, res.User.ID)
				assert.True(t, res.User.IsStudent())
				assert.False(t, res.User.LastLogin.IsZero())
			}
		})
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	stack.Reset()

	student := testutil.CreateStudent(t, stack.UsrRepo, "hero")

	runHTTPTests(t, []httpTest{
		{
			name: "auth required", method: http.MethodPost, path: "/api/token-refresh",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
	})

	req, rec := newAuthRequest(http.MethodPost, "/api/token-refresh", getToken(t, student))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	var res LoginResponse
	unmarshal(t, rec, &res)
	assert.NotEmpty(t, res.Token)
	assert.Nil(t, res.User)
}

func Test_userApi_register(t *testing.T) {
	stack.Reset()

	testutil.CreateStudent(t, stack.UsrRepo, "taken")

	newUser := func(uname, role string) []byte {
		return marchallObj(t, user.RegisterUser{
			Name:            "New " + uname,
			Username:        uname,
			Email:           uname + "@test.cd",
			Password:        testPwd,
			PasswordConfirm: testPwd,
			Role:            role,
		})
	}

	tests := []httpTest{
		{
			name: "admin role refused", method: http.MethodPost, path: "/api/users/register", body: newUser("boss", "admin"),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"role": "role must be one of: student, teacher"}`),
		},
		{
			name: "username taken", method: http.MethodPost, path: "/api/users/register", body: newUser("taken", "student"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"username": user.ErrUsernameExists.Error()}),
		},
		{
			name: "weak password", method: http.MethodPost, path: "/api/users/register",
			body: marchallObj(t, user.RegisterUser{
				Name: "Weak", Username: "weak", Password: "12345678", PasswordConfirm: "12345678", Role: "student",
			}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"password": "password cannot be entirely numeric"}`),
		},
	}
	runHTTPTests(t, tests)

	for _, role := range []string{"student", "teacher"} {
		t.Run("success: "+role, func(t *testing.T) {
			uname := "new_" + role
			req, rec := newRequest(http.MethodPost, "/api/users/register", newUser(uname, role))
			app.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusCreated, rec.Code)
			var usr user.User
			unmarshal(t, rec, &usr)
			assert.NotEmpty(t, usr.ID)
			assert.Equal(t, uname, usr.Username)
			assert.Equal(t, role == "student", usr.IsStudent())
			assert.Equal(t, role == "teacher", usr.IsTeacher())
			assert.False(t, usr.IsAdmin())

			stored, err := stack.UsrSvc.GetByUsernameOrEmail(uname)
			if assert.NoError(t, err) {
				assert.NoError(t, stored.CheckPassword(testPwd))
			}
		})
	}
}

func Test_userApi_queryStudents(t *testing.T) {
	stack.Reset()

	teacher := testutil.CreateTeacher(t, stack.UsrRepo, "teacher")
	zed := testutil.CreateStudent(t, stack.UsrRepo, "zed")
	amy := testutil.CreateStudent(t, stack.UsrRepo, "amy")
	testutil.CreateUser(t, stack.UsrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, false)

	runHTTPTests(t, []httpTest{
		{name: "auth required", path: "/api/users/students", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "teacher required", path: "/api/users/students", token: getToken(t, amy), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "active students", path: "/api/users/students", token: getToken(t, teacher), wantData: marchallList(t, amy, zed)},
		{name: "search", path: "/api/users/students?search=ZE", token: getToken(t, teacher), wantData: marchallList(t, zed)},
	})
}

func Test_userApi_me(t *testing.T) {
	stack.Reset()

	student := testutil.CreateStudent(t, stack.UsrRepo, "hero")
	naughty := testutil.CreateUser(t, stack.UsrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, false)
	ghost := user.User{ID: "1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed", Roles: []string{user.RoleStudent}}

	runHTTPTests(t, []httpTest{
		{name: "auth required", path: "/api/users/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "me", path: "/api/users/me", token: getToken(t, student), wantData: marchallObj(t, student)},
		{
			name: "deactivated", path: "/api/users/me", token: getToken(t, naughty),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "deleted user", path: "/api/users/me", token: getToken(t, ghost),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
		},
	})
}
