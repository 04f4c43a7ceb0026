package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/learnspace/core/assignment"
	"github.com/trezcool/learnspace/core/user"
	"github.com/trezcool/learnspace/tests"
)

func Test_assignmentApi_create(t *testing.T) {
	stack.Reset()

	teacher := testutil.CreateTeacher(t, stack.UsrRepo, "teacher")
	student := testutil.CreateStudent(t, stack.UsrRepo, "hero")
	mdl := testutil.CreateModel(t, stack.MdlRepo, stack.Store, "Heart", teacher)

	tests := []httpTest{
		{
			name: "teacher required", method: http.MethodPost, path: "/api/assignments", token: getToken(t, student),
			body: []byte(`{"title": "A", "model": "` + mdl.ID + `", "tasks": ["t1"]}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "unknown model", method: http.MethodPost, path: "/api/assignments", token: getToken(t, teacher),
			body: []byte(`{"title": "A", "model": "nope", "tasks": ["t1"]}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"model": "model not found"}`),
		},
		{
			name: "unknown student", method: http.MethodPost, path: "/api/assignments", token: getToken(t, teacher),
			body:     []byte(`{"title": "A", "model": "` + mdl.ID + `", "tasks": ["t1"], "assigned_students": ["` + teacher.ID + `"]}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"assigned_students": "unknown students: ` + teacher.ID + `"}`),
		},
		{
			name: "tasks required", method: http.MethodPost, path: "/api/assignments", token: getToken(t, teacher),
			body: []byte(`{"title": "A", "model": "` + mdl.ID + `", "tasks": []}`), wantCode: http.StatusBadRequest,
		},
	}
	runHTTPTests(t, tests)

	t.Run("success", func(t *testing.T) {
		body := []byte(`{
			"title": " Anatomy ",
			"description": "Label the heart",
			"model": "` + mdl.ID + `",
			"assigned_students": ["` + student.ID + `"],
			"due_date": "2030-01-02T15:04:05Z",
			"tasks": {"1": "second", "0": "first"}
		}`)
		req, rec := newAuthRequest(http.MethodPost, "/api/assignments", getToken(t, teacher), body)
		app.ServeHTTP(rec, req)
		if !assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String()) {
			return
		}

		var asg assignment.Assignment
		unmarshal(t, rec, &asg)
		assert.NotEmpty(t, asg.ID)
		assert.Equal(t, "Anatomy", asg.Title)
		assert.Equal(t, assignment.TaskList{"first", "second"}, asg.Tasks)
		assert.Equal(t, []string{student.ID}, asg.AssignedStudents)
		if assert.NotNil(t, asg.DueDate) {
			assert.True(t, asg.DueDate.Equal(time.Date(2030, 1, 2, 15, 4, 5, 0, time.UTC)))
		}
		if assert.NotNil(t, asg.Teacher) {
			assert.Equal(t, teacher.ID, asg.Teacher.ID)
		}
		if assert.NotNil(t, asg.Model) {
			assert.Equal(t, mdl.ID, asg.Model.ID)
			assert.Equal(t, "http://example.com/api/models/"+mdl.ID+"/file", asg.Model.File)
		}
		assert.Nil(t, asg.MySubmission)
	})
}

func Test_assignmentApi_read(t *testing.T) {
	stack.Reset()

	teacher := testutil.CreateTeacher(t, stack.UsrRepo, "teacher")
	other := testutil.CreateTeacher(t, stack.UsrRepo, "other")
	amy := testutil.CreateStudent(t, stack.UsrRepo, "amy")
	bob := testutil.CreateStudent(t, stack.UsrRepo, "bob")
	mdl := testutil.CreateModel(t, stack.MdlRepo, stack.Store, "Heart", teacher)

	now := time.Now().UTC()
	forAll := testutil.CreateAssignment(t, stack.AsgRepo, "For all", teacher, mdl, []string{"q1", "q2"}, nil, now.Add(-time.Hour))
	forAmy := testutil.CreateAssignment(t, stack.AsgRepo, "For Amy", teacher, mdl, []string{"q1"}, []user.User{amy}, now)
	mine := testutil.CreateSubmission(t, stack.AsgRepo, forAll, amy, assignment.StatusDraft, "a1")

	ids := func(t *testing.T, path string, usr user.User) []string {
		req, rec := newAuthRequest(http.MethodGet, path, getToken(t, usr))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		var list []assignment.Assignment
		unmarshal(t, rec, &list)
		res := make([]string, 0, len(list))
		for _, asg := range list {
			res = append(res, asg.ID)
		}
		return res
	}

	t.Run("list", func(t *testing.T) {
		assert.Equal(t, []string{forAmy.ID, forAll.ID}, ids(t, "/api/assignments", teacher))
		assert.Equal(t, []string{}, ids(t, "/api/assignments", other))
		assert.Equal(t, []string{forAmy.ID, forAll.ID}, ids(t, "/api/assignments", amy))
		assert.Equal(t, []string{forAll.ID}, ids(t, "/api/assignments", bob))
	})

	t.Run("detail embeds my_submission", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/assignments/"+forAll.ID, getToken(t, amy))
		app.ServeHTTP(rec, req)
		if !assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String()) {
			return
		}
		var asg assignment.Assignment
		unmarshal(t, rec, &asg)
		assert.Equal(t, assignment.TaskList{"q1", "q2"}, asg.Tasks)
		if assert.NotNil(t, asg.MySubmission) {
			assert.Equal(t, mine.ID, asg.MySubmission.ID)
			assert.Equal(t, assignment.StatusDraft, asg.MySubmission.Status)
			assert.Equal(t, []assignment.ContentEntry{{Question: "q1", Answer: "a1"}, {Question: "q2"}}, asg.MySubmission.Content)
		}

		req, rec = newAuthRequest(http.MethodGet, "/api/assignments/"+forAll.ID, getToken(t, bob))
		app.ServeHTTP(rec, req)
		unmarshal(t, rec, &asg)
		assert.Nil(t, asg.MySubmission)
	})

	notFound := marchallObj(t, httpErr{Error: assignment.ErrNotFound.Error()})
	runHTTPTests(t, []httpTest{
		{name: "auth required", path: "/api/assignments", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "not assigned", path: "/api/assignments/" + forAmy.ID, token: getToken(t, bob), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "other teacher", path: "/api/assignments/" + forAll.ID, token: getToken(t, other), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "unknown", path: "/api/assignments/nope", token: getToken(t, teacher), wantCode: http.StatusNotFound, wantData: notFound},
	})
}

func Test_assignmentApi_submissionsStatus(t *testing.T) {
	stack.Reset()

	teacher := testutil.CreateTeacher(t, stack.UsrRepo, "teacher")
	other := testutil.CreateTeacher(t, stack.UsrRepo, "other")
	amy := testutil.CreateStudent(t, stack.UsrRepo, "amy")
	bob := testutil.CreateStudent(t, stack.UsrRepo, "bob")
	cid := testutil.CreateStudent(t, stack.UsrRepo, "cid")
	mdl := testutil.CreateModel(t, stack.MdlRepo, stack.Store, "Heart", teacher)

	forAll := testutil.CreateAssignment(t, stack.AsgRepo, "For all", teacher, mdl, []string{"q1"}, nil)
	forBob := testutil.CreateAssignment(t, stack.AsgRepo, "For Bob", teacher, mdl, []string{"q1"}, []user.User{bob})
	draft := testutil.CreateSubmission(t, stack.AsgRepo, forAll, amy, assignment.StatusDraft)
	done := testutil.CreateSubmission(t, stack.AsgRepo, forAll, cid, assignment.StatusSubmitted, "a1")

	ref := func(usr user.User) assignment.StudentRef {
		return assignment.StudentRef{ID: usr.ID, Username: usr.Username, Email: usr.Email}
	}
	strPtr := func(s string) *string { return &s }

	runHTTPTests(t, []httpTest{
		{
			name: "every student", path: "/api/assignments/" + forAll.ID + "/submissions_status", token: getToken(t, teacher),
			wantData: marchallList(t,
				assignment.StudentStatus{Student: ref(amy), Status: assignment.StatusDraft, SubmissionID: strPtr(draft.ID)},
				assignment.StudentStatus{Student: ref(bob), Status: assignment.StatusPending},
				assignment.StudentStatus{Student: ref(cid), Status: assignment.StatusSubmitted, SubmittedAt: done.SubmittedAt, SubmissionID: strPtr(done.ID)},
			),
		},
		{
			name: "assigned students only", path: "/api/assignments/" + forBob.ID + "/submissions_status/", token: getToken(t, teacher),
			wantData: marchallList(t, assignment.StudentStatus{Student: ref(bob), Status: assignment.StatusPending}),
		},
		{
			name: "other teacher", path: "/api/assignments/" + forAll.ID + "/submissions_status", token: getToken(t, other),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "student", path: "/api/assignments/" + forAll.ID + "/submissions_status", token: getToken(t, amy),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
	})
}
