package form_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/learnspace/client"
	"github.com/trezcool/learnspace/core/assignment"
)

type saveCall struct {
	op      string // create|update
	id      string // assignment id on create, submission id on update
	content []assignment.ContentEntry
	status  assignment.Status
	att     *client.Attachment
}

// fakeGateway stores one submission per assignment, like the server does.
type fakeGateway struct {
	mu          sync.Mutex
	assignments map[string]client.Assignment
	submissions map[string]client.Submission // by assignment id
	calls       []saveCall
	nextID      int

	getErr  error
	saveErr error
	// block, when set, makes saves wait on it; entered is signaled first
	block   chan struct{}
	entered chan struct{}
}

var _ client.Gateway = (*fakeGateway)(nil) // interface compliance check

func newFakeGateway(assignments ...client.Assignment) *fakeGateway {
	gw := &fakeGateway{
		assignments: make(map[string]client.Assignment),
		submissions: make(map[string]client.Submission),
	}
	for _, asg := range assignments {
		gw.assignments[asg.ID] = asg
	}
	return gw
}

func newAssignment(id string, tasks ...string) client.Assignment {
	if tasks == nil {
		tasks = []string{}
	}
	raw, _ := json.Marshal(tasks)
	return client.Assignment{ID: id, Title: "Assignment " + id, Tasks: raw}
}

func (gw *fakeGateway) GetAssignment(_ context.Context, id string) (client.Assignment, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.getErr != nil {
		return client.Assignment{}, gw.getErr
	}
	asg, ok := gw.assignments[id]
	if !ok {
		return client.Assignment{}, &client.APIError{StatusCode: 404, Message: "assignment not found"}
	}
	if sub, ok := gw.submissions[id]; ok {
		asg.MySubmission = &sub
	}
	return asg, nil
}

func (gw *fakeGateway) CreateSubmission(
	_ context.Context,
	assignmentID string,
	content []assignment.ContentEntry,
	status assignment.Status,
	att *client.Attachment,
) (client.Submission, error) {
	gw.wait()
	gw.mu.Lock()
	defer gw.mu.Unlock()

	gw.calls = append(gw.calls, saveCall{op: "create", id: assignmentID, content: content, status: status, att: att})
	if gw.saveErr != nil {
		return client.Submission{}, gw.saveErr
	}
	if _, ok := gw.submissions[assignmentID]; ok {
		return client.Submission{}, &client.APIError{StatusCode: 409, Message: "submission already exists"}
	}
	gw.nextID++
	sub := client.Submission{
		ID:           fmt.Sprintf("sub-%d", gw.nextID),
		AssignmentID: assignmentID,
		Status:       status,
	}
	sub.Content, _ = json.Marshal(content)
	if att != nil {
		sub.Screenshot = "http://example.com/api/submissions/" + sub.ID + "/screenshot"
	}
	gw.submissions[assignmentID] = sub
	return sub, nil
}

func (gw *fakeGateway) UpdateSubmission(
	_ context.Context,
	submissionID string,
	content []assignment.ContentEntry,
	status assignment.Status,
	att *client.Attachment,
) (client.Submission, error) {
	gw.wait()
	gw.mu.Lock()
	defer gw.mu.Unlock()

	gw.calls = append(gw.calls, saveCall{op: "update", id: submissionID, content: content, status: status, att: att})
	if gw.saveErr != nil {
		return client.Submission{}, gw.saveErr
	}
	for asgID, sub := range gw.submissions {
		if sub.ID != submissionID {
			continue
		}
		if sub.Status == assignment.StatusSubmitted {
			return client.Submission{}, &client.APIError{StatusCode: 403, Message: "submission already submitted and can no longer be changed"}
		}
		sub.Content, _ = json.Marshal(content)
		sub.Status = status
		if att != nil {
			sub.Screenshot = "http://example.com/api/submissions/" + sub.ID + "/screenshot"
		}
		gw.submissions[asgID] = sub
		return sub, nil
	}
	return client.Submission{}, &client.APIError{StatusCode: 404, Message: "submission not found"}
}

func (gw *fakeGateway) ListSubmissionStatus(context.Context, string) ([]assignment.StudentStatus, error) {
	return nil, errors.New("not implemented")
}

func (gw *fakeGateway) wait() {
	if gw.block == nil {
		return
	}
	if gw.entered != nil {
		gw.entered <- struct{}{}
	}
	<-gw.block
}

func (gw *fakeGateway) saveCalls() []saveCall {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return append([]saveCall(nil), gw.calls...)
}

func (gw *fakeGateway) submissionCount() int {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return len(gw.submissions)
}
