package client

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/learnspace/core/assignment"
	"github.com/trezcool/learnspace/core/user"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", WithSession(&Session{Token: "tok"}))
}

func TestClient_CreateSubmission(t *testing.T) {
	content := []assignment.ContentEntry{{Question: "q1", Answer: "a1"}, {Question: "q2"}}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/submissions", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		if assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			assert.Equal(t, "asg-1", r.FormValue("assignment"))
			assert.Equal(t, "draft", r.FormValue("status"))
			assert.JSONEq(t, `[{"question":"q1","answer":"a1"},{"question":"q2","answer":""}]`, r.FormValue("content"))

			f, hdr, err := r.FormFile("screenshot")
			if assert.NoError(t, err) {
				data, _ := ioutil.ReadAll(f)
				assert.Equal(t, "shot.png", hdr.Filename)
				assert.Equal(t, []byte("png"), data)
			}
		}

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"sub-1","assignment":"asg-1","status":"draft","content":[{"question":"q1","answer":"a1"}]}`))
	})

	sub, err := c.CreateSubmission(context.Background(), "asg-1", content, assignment.StatusDraft, &Attachment{Filename: "shot.png", Data: []byte("png")})
	if assert.NoError(t, err) {
		assert.Equal(t, "sub-1", sub.ID)
		assert.Equal(t, assignment.StatusDraft, sub.Status)
		assert.Equal(t, []string{"a1"}, sub.ParsedContent().Answers(1))
	}
}

func TestClient_UpdateSubmission_withoutAttachment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/submissions/sub-1", r.URL.Path)

		if assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			assert.Equal(t, "submitted", r.FormValue("status"))
			assert.Equal(t, "[]", r.FormValue("content"))
			_, hasAssignment := r.MultipartForm.Value["assignment"]
			assert.False(t, hasAssignment)
			assert.Empty(t, r.MultipartForm.File["screenshot"])
		}
		_, _ = w.Write([]byte(`{"id":"sub-1","status":"submitted"}`))
	})

	sub, err := c.UpdateSubmission(context.Background(), "sub-1", nil, assignment.StatusSubmitted, nil)
	if assert.NoError(t, err) {
		assert.Equal(t, assignment.StatusSubmitted, sub.Status)
	}
}

func TestClient_errors(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		body       string
		wantTarget error
		wantErr    string
	}{
		{
			name:       "conflict",
			code:       http.StatusConflict,
			body:       `{"error":"submission already exists"}`,
			wantTarget: ErrConflict,
			wantErr:    "api error 409: submission already exists",
		},
		{
			name:       "not found",
			code:       http.StatusNotFound,
			body:       `{"error":"assignment not found"}`,
			wantTarget: ErrNotFound,
			wantErr:    "api error 404: assignment not found",
		},
		{
			name:       "unauthorized",
			code:       http.StatusUnauthorized,
			body:       `{"error":"missing or malformed jwt"}`,
			wantTarget: ErrUnauthorized,
			wantErr:    "api error 401: missing or malformed jwt",
		},
		{
			name:       "read-only",
			code:       http.StatusForbidden,
			body:       `{"error":"permission denied"}`,
			wantTarget: ErrForbidden,
			wantErr:    "api error 403: permission denied",
		},
		{
			name:    "validation",
			code:    http.StatusBadRequest,
			body:    `{"status":"status must be one of: draft, submitted","assignment":"assignment is a required field"}`,
			wantErr: "api error 400: assignment: assignment is a required field; status: status must be one of: draft, submitted",
		},
		{
			name:    "no body",
			code:    http.StatusInternalServerError,
			wantErr: "api error 500: Internal Server Error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.GetAssignment(context.Background(), "asg-1")
			if assert.Error(t, err) {
				assert.Equal(t, tt.wantErr, err.Error())
				if tt.wantTarget != nil {
					assert.True(t, errors.Is(err, tt.wantTarget))
				}
				var apiErr *APIError
				if assert.True(t, errors.As(err, &apiErr)) {
					assert.Equal(t, tt.code, apiErr.StatusCode)
				}
			}
		})
	}
}

func TestClient_Login(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/login", r.URL.Path)
		var req loginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, loginRequest{Username: "amy", Password: "secret"}, req)
		_, _ = w.Write([]byte(`{"token":"new","user":{"id":"u1","username":"amy","roles":["student:"]}}`))
	})
	c.Logout()

	s, err := c.Login(context.Background(), "amy", "secret")
	if assert.NoError(t, err) {
		assert.Equal(t, "new", s.Token)
		assert.Equal(t, "student", s.Role())
		assert.True(t, s.IsStudent())
		assert.False(t, s.IsTeacher())
		assert.Same(t, s, c.Session())
	}

	c.Logout()
	assert.Nil(t, c.Session())
}

func TestClient_noSessionSendsNoToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	})
	c.Logout()

	assignments, err := c.ListAssignments(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestSession_persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "learnspace", "session.json")

	_, err := LoadSession(path)
	assert.Equal(t, ErrNoSession, err)

	s := &Session{Token: "tok", User: user.User{ID: "u1", Username: "amy", Roles: []string{user.RoleTeacher}}}
	if assert.NoError(t, s.Save(path)) {
		loaded, err := LoadSession(path)
		if assert.NoError(t, err) {
			assert.Equal(t, "tok", loaded.Token)
			assert.Equal(t, "teacher", loaded.Role())
		}
	}

	assert.NoError(t, DeleteSession(path))
	assert.NoError(t, DeleteSession(path))
	_, err = LoadSession(path)
	assert.Equal(t, ErrNoSession, err)
}
