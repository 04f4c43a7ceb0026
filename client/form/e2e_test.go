package form_test

import (
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/learnspace/apps/api/echo"
	"github.com/trezcool/learnspace/client"
	. "github.com/trezcool/learnspace/client/form"
	"github.com/trezcool/learnspace/core/assignment"
	"github.com/trezcool/learnspace/core/user"
	"github.com/trezcool/learnspace/services/email"
	"github.com/trezcool/learnspace/tests"
)

const e2ePwd = "Sup3r*Secret!"

func TestController_endToEnd(t *testing.T) {
	stack := testutil.NewStack()
	stack.Reset()
	server := echoapi.NewServer(stack.Conf, stack.Logger, stack.Validate, stack.Translator, echoapi.ServerDeps{
		UserSvc:       stack.UsrSvc,
		ModelSvc:      stack.MdlSvc,
		AssignmentSvc: stack.AsgSvc,
	})
	srv := httptest.NewServer(server)
	defer srv.Close()

	teacher := testutil.CreateTeacher(t, stack.UsrRepo, "teacher", e2ePwd)
	amy := testutil.CreateStudent(t, stack.UsrRepo, "amy", e2ePwd)
	bob := testutil.CreateStudent(t, stack.UsrRepo, "bob", e2ePwd)
	mdl := testutil.CreateModel(t, stack.MdlRepo, stack.Store, "Cube", teacher)
	asg := testutil.CreateAssignment(t, stack.AsgRepo, "Measure the cube", teacher, mdl,
		[]string{"Measure height", "Measure width"}, []user.User{amy, bob})

	amyClient := client.New(srv.URL)
	if _, err := amyClient.Login(ctx, "amy", e2ePwd); err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	ctrl := NewController(amyClient)
	if !assert.NoError(t, ctrl.Load(ctx, asg.ID)) {
		return
	}
	assert.Equal(t, []string{"Measure height", "Measure width"}, ctrl.Tasks())
	assert.Equal(t, []string{"", ""}, ctrl.Answers())

	// first save creates
	assert.NoError(t, ctrl.EditAnswer(0, "12cm"))
	assert.NoError(t, ctrl.EditAnswer(1, "8cm"))
	assert.NoError(t, ctrl.AttachFile(client.Attachment{Filename: "shot.png", Data: testutil.PNG(t, 20, 10)}))
	res, err := ctrl.Save(ctx, assignment.StatusDraft)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, ModeCreate, res.Mode)
	assert.NotEmpty(t, res.Submission.ID)
	assert.JSONEq(t,
		`[{"question":"Measure height","answer":"12cm"},{"question":"Measure width","answer":"8cm"}]`,
		string(res.Submission.Content))

	// second save updates in place and keeps the screenshot
	assert.NoError(t, ctrl.EditAnswer(1, "9cm"))
	res, err = ctrl.Save(ctx, assignment.StatusDraft)
	if assert.NoError(t, err) {
		assert.Equal(t, ModeUpdate, res.Mode)
		assert.NotEmpty(t, res.Submission.Screenshot)
	}
	subs, err := amyClient.ListSubmissions(ctx, asg.ID, "")
	if assert.NoError(t, err) {
		assert.Len(t, subs, 1)
	}

	// a fresh form picks up where we left
	reloaded := NewController(amyClient)
	if assert.NoError(t, reloaded.Load(ctx, asg.ID)) {
		assert.Equal(t, []string{"12cm", "9cm"}, reloaded.Answers())
		assert.Equal(t, ctrl.SubmissionID(), reloaded.SubmissionID())
		assert.NotEmpty(t, reloaded.ScreenshotURL())
	}

	shot, err := amyClient.Screenshot(ctx, ctrl.SubmissionID())
	assert.NoError(t, err)
	assert.NotEmpty(t, shot)

	// submitting locks the submission and notifies the teacher
	emailsvc.ClearSentMessages()
	res, err = ctrl.Save(ctx, assignment.StatusSubmitted)
	if assert.NoError(t, err) {
		assert.True(t, res.Navigate)
		assert.NotNil(t, res.Submission.SubmittedAt)
	}
	if msgs := emailsvc.LastSentMessages(); assert.Len(t, msgs, 1) {
		assert.Equal(t, teacher.Email, msgs[0].To[0].Address)
	}
	assert.True(t, ctrl.ReadOnly())

	_, err = amyClient.UpdateSubmission(ctx, ctrl.SubmissionID(), nil, assignment.StatusDraft, nil)
	assert.True(t, errors.Is(err, client.ErrForbidden))
	_, err = amyClient.CreateSubmission(ctx, asg.ID, nil, assignment.StatusDraft, nil)
	assert.True(t, errors.Is(err, client.ErrConflict))

	// the teacher sees the roster
	teacherClient := client.New(srv.URL)
	if _, err = teacherClient.Login(ctx, "teacher", e2ePwd); err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	roster, err := teacherClient.ListSubmissionStatus(ctx, asg.ID)
	if assert.NoError(t, err) && assert.Len(t, roster, 2) {
		byName := make(map[string]assignment.StudentStatus, len(roster))
		for _, row := range roster {
			byName[row.Student.Username] = row
		}
		assert.Equal(t, assignment.StatusSubmitted, byName["amy"].Status)
		if assert.NotNil(t, byName["amy"].SubmissionID) {
			assert.Equal(t, ctrl.SubmissionID(), *byName["amy"].SubmissionID)
		}
		assert.NotNil(t, byName["amy"].SubmittedAt)
		assert.Equal(t, assignment.StatusPending, byName["bob"].Status)
		assert.Nil(t, byName["bob"].SubmissionID)
	}

	// students cannot read the roster; nobody without a token can read anything
	_, err = amyClient.ListSubmissionStatus(ctx, asg.ID)
	assert.True(t, errors.Is(err, client.ErrForbidden))
	amyClient.Logout()
	err = NewController(amyClient).Load(ctx, asg.ID)
	assert.True(t, errors.Is(err, client.ErrUnauthorized))
}
