package form_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/learnspace/client"
	. "github.com/trezcool/learnspace/client/form"
	"github.com/trezcool/learnspace/core/assignment"
)

var ctx = context.Background()

func loadedController(t *testing.T, gw *fakeGateway, assignmentID string) *Controller {
	ctrl := NewController(gw)
	if err := ctrl.Load(ctx, assignmentID); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	return ctrl
}

func TestController_Load(t *testing.T) {
	tests := []struct {
		name        string
		tasks       string
		submission  *client.Submission
		wantTasks   []string
		wantAnswers []string
		wantDraft   Draft
		wantStatus  assignment.Status
	}{
		{
			name:        "no submission",
			tasks:       `["q1","q2","q3"]`,
			wantTasks:   []string{"q1", "q2", "q3"},
			wantAnswers: []string{"", "", ""},
			wantDraft:   Draft{State: Unsaved},
			wantStatus:  assignment.StatusDraft,
		},
		{
			name:        "single string task",
			tasks:       `"Measure height"`,
			wantTasks:   []string{"Measure height"},
			wantAnswers: []string{""},
			wantDraft:   Draft{State: Unsaved},
			wantStatus:  assignment.StatusDraft,
		},
		{
			name:        "keyed tasks",
			tasks:       `{"1":"second","0":"first","x":"third"}`,
			wantTasks:   []string{"first", "second", "third"},
			wantAnswers: []string{"", "", ""},
			wantDraft:   Draft{State: Unsaved},
			wantStatus:  assignment.StatusDraft,
		},
		{
			name:        "zero tasks",
			tasks:       `[]`,
			wantTasks:   []string{},
			wantAnswers: []string{},
			wantDraft:   Draft{State: Unsaved},
			wantStatus:  assignment.StatusDraft,
		},
		{
			name:        "null tasks",
			tasks:       `null`,
			wantTasks:   []string{},
			wantAnswers: []string{},
			wantDraft:   Draft{State: Unsaved},
			wantStatus:  assignment.StatusDraft,
		},
		{
			name:  "draft submission",
			tasks: `["q1","q2"]`,
			submission: &client.Submission{
				ID:      "sub-9",
				Status:  assignment.StatusDraft,
				Content: json.RawMessage(`[{"question":"q1","answer":"a1"},{"question":"q2","answer":"a2"}]`),
			},
			wantTasks:   []string{"q1", "q2"},
			wantAnswers: []string{"a1", "a2"},
			wantDraft:   Draft{State: Saved, ID: "sub-9"},
			wantStatus:  assignment.StatusDraft,
		},
		{
			name:  "content serialized twice",
			tasks: `["q1","q2"]`,
			submission: &client.Submission{
				ID:      "sub-9",
				Status:  assignment.StatusDraft,
				Content: json.RawMessage(`"[{\"question\":\"q1\",\"answer\":\"a1\"}]"`),
			},
			wantTasks:   []string{"q1", "q2"},
			wantAnswers: []string{"a1", ""},
			wantDraft:   Draft{State: Saved, ID: "sub-9"},
			wantStatus:  assignment.StatusDraft,
		},
		{
			name:  "content longer than tasks",
			tasks: `["q1"]`,
			submission: &client.Submission{
				ID:      "sub-9",
				Status:  assignment.StatusDraft,
				Content: json.RawMessage(`[{"answer":"a1"},{"answer":"a2"}]`),
			},
			wantTasks:   []string{"q1"},
			wantAnswers: []string{"a1"},
			wantDraft:   Draft{State: Saved, ID: "sub-9"},
			wantStatus:  assignment.StatusDraft,
		},
		{
			name:  "malformed content",
			tasks: `["q1","q2"]`,
			submission: &client.Submission{
				ID:      "sub-9",
				Status:  assignment.StatusDraft,
				Content: json.RawMessage(`{"oops":true}`),
			},
			wantTasks:   []string{"q1", "q2"},
			wantAnswers: []string{"", ""},
			wantDraft:   Draft{State: Saved, ID: "sub-9"},
			wantStatus:  assignment.StatusDraft,
		},
		{
			name:  "submitted",
			tasks: `["q1"]`,
			submission: &client.Submission{
				ID:      "sub-9",
				Status:  assignment.StatusSubmitted,
				Content: json.RawMessage(`[{"question":"q1","answer":"done"}]`),
			},
			wantTasks:   []string{"q1"},
			wantAnswers: []string{"done"},
			wantDraft:   Draft{State: Saved, ID: "sub-9"},
			wantStatus:  assignment.StatusSubmitted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asg := client.Assignment{ID: "asg-1", Tasks: json.RawMessage(tt.tasks)}
			gw := newFakeGateway(asg)
			if tt.submission != nil {
				gw.submissions[asg.ID] = *tt.submission
			}

			ctrl := loadedController(t, gw, asg.ID)
			assert.Equal(t, tt.wantTasks, ctrl.Tasks())
			assert.Equal(t, tt.wantAnswers, ctrl.Answers())
			assert.Equal(t, tt.wantDraft, ctrl.Draft())
			assert.Equal(t, tt.wantDraft.ID, ctrl.SubmissionID())
			assert.Equal(t, tt.wantStatus, ctrl.Status())
			assert.Equal(t, tt.wantStatus == assignment.StatusSubmitted, ctrl.ReadOnly())
			assert.False(t, ctrl.Dirty())
		})
	}
}

func TestController_Load_failureIsTerminal(t *testing.T) {
	gw := newFakeGateway()
	ctrl := NewController(gw)

	err := ctrl.Load(ctx, "missing")
	var loadErr *LoadError
	if assert.True(t, errors.As(err, &loadErr)) {
		assert.Equal(t, "missing", loadErr.AssignmentID)
		assert.True(t, loadErr.NotFound())
	}

	gw.assignments["missing"] = newAssignment("missing", "q1")
	assert.Equal(t, ErrNotLoaded, ctrl.Load(ctx, "missing"))
	assert.Equal(t, ErrNotLoaded, ctrl.EditAnswer(0, "a"))
	assert.Equal(t, ErrNotLoaded, ctrl.AttachFile(client.Attachment{Filename: "a.png"}))
	_, err = ctrl.Save(ctx, assignment.StatusDraft)
	assert.Equal(t, ErrNotLoaded, err)
	assert.False(t, ctrl.Loaded())
	assert.Empty(t, gw.saveCalls())
}

func TestController_Load_networkError(t *testing.T) {
	gw := newFakeGateway(newAssignment("asg-1", "q1"))
	gw.getErr = errors.New("connection refused")
	ctrl := NewController(gw)

	err := ctrl.Load(ctx, "asg-1")
	var loadErr *LoadError
	if assert.True(t, errors.As(err, &loadErr)) {
		assert.False(t, loadErr.NotFound())
		assert.EqualError(t, err, "loading assignment asg-1: connection refused")
	}
}

func TestController_EditAnswer(t *testing.T) {
	gw := newFakeGateway(newAssignment("asg-1", "q1", "q2", "q3"))
	ctrl := loadedController(t, gw, "asg-1")

	assert.NoError(t, ctrl.EditAnswer(1, "b"))
	assert.Equal(t, []string{"", "b", ""}, ctrl.Answers())
	assert.True(t, ctrl.Dirty())

	assert.NoError(t, ctrl.EditAnswer(1, "bb"))
	assert.NoError(t, ctrl.EditAnswer(0, "a"))
	assert.Equal(t, []string{"a", "bb", ""}, ctrl.Answers())

	for _, i := range []int{-1, 3, 100} {
		assert.Equal(t, ErrIndexOutOfRange, ctrl.EditAnswer(i, "x"))
	}
	assert.Equal(t, []string{"a", "bb", ""}, ctrl.Answers())

	answers := ctrl.Answers()
	answers[0] = "mutated"
	assert.Equal(t, "a", ctrl.Answers()[0])
}

func TestController_Save_scenario(t *testing.T) {
	gw := newFakeGateway(newAssignment("asg-1", "Measure height", "Measure width"))
	ctrl := loadedController(t, gw, "asg-1")

	assert.NoError(t, ctrl.EditAnswer(0, "12cm"))
	assert.NoError(t, ctrl.EditAnswer(1, "8cm"))

	res, err := ctrl.Save(ctx, assignment.StatusDraft)
	if assert.NoError(t, err) {
		assert.Equal(t, ModeCreate, res.Mode)
		assert.False(t, res.Navigate)
		assert.Equal(t, "sub-1", res.Submission.ID)
	}
	assert.False(t, ctrl.Dirty())
	assert.Equal(t, Draft{State: Saved, ID: "sub-1"}, ctrl.Draft())

	assert.NoError(t, ctrl.EditAnswer(1, "9cm"))
	res, err = ctrl.Save(ctx, assignment.StatusDraft)
	if assert.NoError(t, err) {
		assert.Equal(t, ModeUpdate, res.Mode)
	}

	calls := gw.saveCalls()
	if assert.Len(t, calls, 2) {
		assert.Equal(t, saveCall{
			op: "create",
			id: "asg-1",
			content: []assignment.ContentEntry{
				{Question: "Measure height", Answer: "12cm"},
				{Question: "Measure width", Answer: "8cm"},
			},
			status: assignment.StatusDraft,
		}, calls[0])
		assert.Equal(t, saveCall{
			op: "update",
			id: "sub-1",
			content: []assignment.ContentEntry{
				{Question: "Measure height", Answer: "12cm"},
				{Question: "Measure width", Answer: "9cm"},
			},
			status: assignment.StatusDraft,
		}, calls[1])
	}
	assert.Equal(t, 1, gw.submissionCount())
}

func TestController_Save_twiceCreatesOnce(t *testing.T) {
	gw := newFakeGateway(newAssignment("asg-1", "q1"))
	ctrl := loadedController(t, gw, "asg-1")

	_, err := ctrl.Save(ctx, assignment.StatusDraft)
	assert.NoError(t, err)
	_, err = ctrl.Save(ctx, assignment.StatusDraft)
	assert.NoError(t, err)

	calls := gw.saveCalls()
	if assert.Len(t, calls, 2) {
		assert.Equal(t, "create", calls[0].op)
		assert.Equal(t, "update", calls[1].op)
	}
	assert.Equal(t, 1, gw.submissionCount())
}

func TestController_Save_roundTrip(t *testing.T) {
	gw := newFakeGateway(newAssignment("asg-1", "q1", "q2"))
	ctrl := loadedController(t, gw, "asg-1")
	assert.NoError(t, ctrl.EditAnswer(0, "a1"))
	assert.NoError(t, ctrl.EditAnswer(1, "a2"))
	res, err := ctrl.Save(ctx, assignment.StatusDraft)
	assert.NoError(t, err)

	reloaded := loadedController(t, gw, "asg-1")
	assert.Equal(t, []string{"a1", "a2"}, reloaded.Answers())
	assert.Equal(t, res.Submission.ID, reloaded.SubmissionID())
	assert.Equal(t, ModeUpdate, reloaded.Draft().SaveMode())

	// reloading the same controller works too
	assert.NoError(t, ctrl.Load(ctx, "asg-1"))
	assert.Equal(t, []string{"a1", "a2"}, ctrl.Answers())
}

func TestController_Save_zeroTasks(t *testing.T) {
	gw := newFakeGateway(newAssignment("asg-1"))
	ctrl := loadedController(t, gw, "asg-1")
	assert.Equal(t, []string{}, ctrl.Answers())

	_, err := ctrl.Save(ctx, assignment.StatusSubmitted)
	assert.NoError(t, err)
	calls := gw.saveCalls()
	if assert.Len(t, calls, 1) {
		assert.Equal(t, []assignment.ContentEntry{}, calls[0].content)
	}
}

func TestController_Save_submit(t *testing.T) {
	gw := newFakeGateway(newAssignment("asg-1", "q1"))
	ctrl := loadedController(t, gw, "asg-1")
	assert.NoError(t, ctrl.EditAnswer(0, "final"))

	res, err := ctrl.Save(ctx, assignment.StatusSubmitted)
	if assert.NoError(t, err) {
		assert.True(t, res.Navigate)
	}
	assert.True(t, ctrl.ReadOnly())
	assert.False(t, ctrl.Dirty())

	// read-only: nothing changes, nothing is sent
	assert.Equal(t, ErrReadOnly, ctrl.EditAnswer(0, "changed"))
	assert.Equal(t, ErrReadOnly, ctrl.AttachFile(client.Attachment{Filename: "x.png", Data: []byte("x")}))
	_, err = ctrl.Save(ctx, assignment.StatusDraft)
	assert.Equal(t, ErrReadOnly, err)
	_, err = ctrl.Save(ctx, assignment.StatusSubmitted)
	assert.Equal(t, ErrReadOnly, err)

	assert.Equal(t, []string{"final"}, ctrl.Answers())
	assert.Nil(t, ctrl.Attachment())
	assert.False(t, ctrl.Dirty())
	assert.Len(t, gw.saveCalls(), 1)
}

func TestController_Save_invalidStatus(t *testing.T) {
	gw := newFakeGateway(newAssignment("asg-1", "q1"))
	ctrl := loadedController(t, gw, "asg-1")

	for _, status := range []assignment.Status{"", assignment.StatusPending, "graded"} {
		_, err := ctrl.Save(ctx, status)
		assert.Equal(t, ErrInvalidStatus, err)
	}
	assert.Empty(t, gw.saveCalls())
}

func TestController_Save_failureKeepsEdits(t *testing.T) {
	gw := newFakeGateway(newAssignment("asg-1", "q1", "q2"))
	ctrl := loadedController(t, gw, "asg-1")
	assert.NoError(t, ctrl.EditAnswer(0, "a1"))
	assert.NoError(t, ctrl.AttachFile(client.Attachment{Filename: "shot.png", Data: []byte("png")}))

	gw.saveErr = &client.APIError{StatusCode: 400, Fields: map[string]string{"status": "bad"}}
	_, err := ctrl.Save(ctx, assignment.StatusDraft)
	var saveErr *SaveError
	if assert.True(t, errors.As(err, &saveErr)) {
		assert.Equal(t, ModeCreate, saveErr.Mode)
		assert.False(t, saveErr.Conflict())
	}
	assert.True(t, ctrl.Dirty())
	assert.False(t, ctrl.Saving())
	assert.Equal(t, []string{"a1", ""}, ctrl.Answers())
	assert.Equal(t, &client.Attachment{Filename: "shot.png", Data: []byte("png")}, ctrl.Attachment())
	assert.Equal(t, Draft{State: Unsaved}, ctrl.Draft())

	// retry once the server recovers
	gw.saveErr = nil
	res, err := ctrl.Save(ctx, assignment.StatusDraft)
	if assert.NoError(t, err) {
		assert.Equal(t, ModeCreate, res.Mode)
	}
	assert.False(t, ctrl.Dirty())
	assert.Nil(t, ctrl.Attachment())
	assert.NotEmpty(t, ctrl.ScreenshotURL())
}

func TestController_Save_conflict(t *testing.T) {
	gw := newFakeGateway(newAssignment("asg-1", "q1"))
	ctrl := loadedController(t, gw, "asg-1")

	// created elsewhere after this form was loaded
	gw.submissions["asg-1"] = client.Submission{ID: "other", Status: assignment.StatusDraft}

	assert.NoError(t, ctrl.EditAnswer(0, "a"))
	_, err := ctrl.Save(ctx, assignment.StatusDraft)
	var saveErr *SaveError
	if assert.True(t, errors.As(err, &saveErr)) {
		assert.True(t, saveErr.Conflict())
		assert.True(t, errors.Is(err, client.ErrConflict))
	}
	assert.True(t, ctrl.Dirty())
	assert.Len(t, gw.saveCalls(), 1)
}

func TestController_AttachFile(t *testing.T) {
	gw := newFakeGateway(newAssignment("asg-1", "q1"))
	ctrl := loadedController(t, gw, "asg-1")

	data := []byte("first")
	assert.NoError(t, ctrl.AttachFile(client.Attachment{Filename: "a.png", Data: data}))
	data[0] = 'F'
	assert.NoError(t, ctrl.AttachFile(client.Attachment{Filename: "b.png", Data: []byte("second")}))
	assert.True(t, ctrl.Dirty())
	assert.Equal(t, &client.Attachment{Filename: "b.png", Data: []byte("second")}, ctrl.Attachment())

	_, err := ctrl.Save(ctx, assignment.StatusDraft)
	assert.NoError(t, err)

	// the attachment goes out once; later saves keep the stored one
	_, err = ctrl.Save(ctx, assignment.StatusDraft)
	assert.NoError(t, err)
	calls := gw.saveCalls()
	if assert.Len(t, calls, 2) {
		assert.Equal(t, &client.Attachment{Filename: "b.png", Data: []byte("second")}, calls[0].att)
		assert.Nil(t, calls[1].att)
	}
}

func TestController_Save_inFlight(t *testing.T) {
	gw := newFakeGateway(newAssignment("asg-1", "q1"))
	ctrl := loadedController(t, gw, "asg-1")
	assert.NoError(t, ctrl.EditAnswer(0, "sent"))
	gw.block = make(chan struct{})
	gw.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Save(ctx, assignment.StatusDraft)
		done <- err
	}()
	<-gw.entered

	assert.True(t, ctrl.Saving())
	_, err := ctrl.Save(ctx, assignment.StatusDraft)
	assert.Equal(t, ErrSaveInProgress, err)
	assert.Equal(t, ErrSaveInProgress, ctrl.Load(ctx, "asg-1"))

	// inputs are locked until the save resolves
	assert.Equal(t, ErrSaveInProgress, ctrl.EditAnswer(0, "late"))
	assert.Equal(t, ErrSaveInProgress, ctrl.AttachFile(client.Attachment{Filename: "late.png", Data: []byte("x")}))

	close(gw.block)
	assert.NoError(t, <-done)
	assert.False(t, ctrl.Saving())
	assert.False(t, ctrl.Dirty())
	assert.Equal(t, []string{"sent"}, ctrl.Answers())
	assert.Nil(t, ctrl.Attachment())
	assert.Equal(t, 1, gw.submissionCount())
	assert.Len(t, gw.saveCalls(), 1)

	// unlocked again once the draft is saved
	assert.NoError(t, ctrl.EditAnswer(0, "after"))
	assert.True(t, ctrl.Dirty())
}

func TestController_Save_submitInFlight(t *testing.T) {
	gw := newFakeGateway(newAssignment("asg-1", "q1"))
	ctrl := loadedController(t, gw, "asg-1")
	assert.NoError(t, ctrl.EditAnswer(0, "final"))
	gw.block = make(chan struct{})
	gw.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Save(ctx, assignment.StatusSubmitted)
		done <- err
	}()
	<-gw.entered

	assert.Equal(t, ErrSaveInProgress, ctrl.EditAnswer(0, "late"))

	close(gw.block)
	assert.NoError(t, <-done)
	assert.True(t, ctrl.ReadOnly())
	assert.False(t, ctrl.Dirty())
	assert.Equal(t, []string{"final"}, ctrl.Answers())

	guard := NewGuard(ctrl, &recordingPrompter{})
	assert.False(t, guard.BeforeUnload())
	var left bool
	ok, err := guard.Leave(ctx, func() { left = true })
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, left)
}

func TestController_Discard(t *testing.T) {
	gw := newFakeGateway(newAssignment("asg-1", "q1", "q2"))
	ctrl := loadedController(t, gw, "asg-1")
	assert.NoError(t, ctrl.EditAnswer(0, "kept"))
	_, err := ctrl.Save(ctx, assignment.StatusDraft)
	assert.NoError(t, err)

	assert.NoError(t, ctrl.EditAnswer(0, "dropped"))
	assert.NoError(t, ctrl.EditAnswer(1, "dropped"))
	ctrl.Discard()

	assert.False(t, ctrl.Dirty())
	assert.Equal(t, []string{"kept", ""}, ctrl.Answers())
}

func TestDraft_SaveMode(t *testing.T) {
	assert.Equal(t, ModeCreate, Draft{}.SaveMode())
	assert.Equal(t, ModeCreate, Draft{State: Saved}.SaveMode())
	assert.Equal(t, ModeUpdate, Draft{State: Saved, ID: "sub-1"}.SaveMode())
}
