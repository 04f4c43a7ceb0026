// Package form holds the state of one assignment's answer form: the answers being
// edited, whether they are saved, and how they reach the server.
package form

import (
	"context"
	"sync"

	"github.com/trezcool/learnspace/client"
	"github.com/trezcool/learnspace/core/assignment"
)

// SaveResult is what a successful Save returns.
type SaveResult struct {
	Submission client.Submission
	Mode       Mode
	// Navigate is true once the work is submitted: the form is done and the caller
	// should go back to the assignment list.
	Navigate bool
}

// Controller is safe for concurrent use. Each instance serves a single assignment.
type Controller struct {
	gw client.Gateway

	mu         sync.Mutex
	loaded     bool
	failed     bool
	asg        client.Assignment
	tasks      assignment.TaskList
	answers    []string
	saved      []string // answers as last acknowledged by the server
	attachment *client.Attachment
	screenshot string // URL of the stored attachment, if any
	dirty      bool
	draft      Draft
	status     assignment.Status
	saving     bool
}

// NewController returns an empty form; call Load before anything else.
func NewController(gw client.Gateway) *Controller {
	return &Controller{gw: gw, status: assignment.StatusDraft}
}

// Load fetches the assignment and the student's submission, if any, and resets the form.
// On failure the controller stays unusable: every later call returns ErrNotLoaded.
func (c *Controller) Load(ctx context.Context, assignmentID string) error {
	c.mu.Lock()
	if c.failed {
		c.mu.Unlock()
		return ErrNotLoaded
	}
	if c.saving {
		c.mu.Unlock()
		return ErrSaveInProgress
	}
	c.mu.Unlock()

	asg, err := c.gw.GetAssignment(ctx, assignmentID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failed = true
		c.loaded = false
		return &LoadError{AssignmentID: assignmentID, Err: err}
	}

	c.asg = asg
	c.tasks = asg.TaskList()
	c.answers = make([]string, len(c.tasks))
	c.attachment = nil
	c.screenshot = ""
	c.dirty = false
	c.draft = Draft{}
	c.status = assignment.StatusDraft

	if sub := asg.MySubmission; sub != nil && sub.ID != "" {
		c.answers = sub.ParsedContent().Answers(len(c.tasks))
		c.draft = savedDraft(sub.ID)
		c.screenshot = sub.Screenshot
		if sub.Status.Valid() {
			c.status = sub.Status
		}
	}
	c.saved = copyStrings(c.answers)
	c.loaded = true
	return nil
}

// EditAnswer sets the answer to the task at index. Inputs are locked while a Save runs.
func (c *Controller) EditAnswer(index int, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkEditable(); err != nil {
		return err
	}
	if index < 0 || index >= len(c.answers) {
		return ErrIndexOutOfRange
	}
	c.answers[index] = value
	c.dirty = true
	return nil
}

// AttachFile replaces the attachment sent with the next Save.
func (c *Controller) AttachFile(att client.Attachment) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkEditable(); err != nil {
		return err
	}
	data := make([]byte, len(att.Data))
	copy(data, att.Data)
	c.attachment = &client.Attachment{Filename: att.Filename, Data: data}
	c.dirty = true
	return nil
}

// Save sends the answers with the given status: a create the first time, an update
// once the server returned the submission id. Only one Save runs at a time.
func (c *Controller) Save(ctx context.Context, status assignment.Status) (SaveResult, error) {
	if !status.Valid() {
		return SaveResult{}, ErrInvalidStatus
	}

	c.mu.Lock()
	if err := c.checkEditable(); err != nil {
		c.mu.Unlock()
		return SaveResult{}, err
	}
	c.saving = true
	mode := c.draft.SaveMode()
	draftID := c.draft.ID
	asgID := c.asg.ID
	content := assignment.BuildContent(c.tasks, c.answers)
	answers := copyStrings(c.answers)
	att := c.attachment
	c.mu.Unlock()

	var (
		sub client.Submission
		err error
	)
	if mode == ModeUpdate {
		sub, err = c.gw.UpdateSubmission(ctx, draftID, content, status, att)
	} else {
		sub, err = c.gw.CreateSubmission(ctx, asgID, content, status, att)
	}
	if err == nil && sub.ID == "" {
		err = errNoSubmissionID
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.saving = false
	if err != nil {
		return SaveResult{}, &SaveError{Mode: mode, Err: err}
	}

	c.draft = savedDraft(sub.ID)
	c.status = status
	c.saved = answers
	if sub.Screenshot != "" {
		c.screenshot = sub.Screenshot
	}
	c.attachment = nil
	c.dirty = false
	return SaveResult{Submission: sub, Mode: mode, Navigate: status == assignment.StatusSubmitted}, nil
}

// Discard drops unsaved edits, going back to the last saved answers.
func (c *Controller) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded || c.saving {
		return
	}
	c.answers = copyStrings(c.saved)
	c.attachment = nil
	c.dirty = false
}

func (c *Controller) checkEditable() error {
	if !c.loaded {
		return ErrNotLoaded
	}
	if c.status == assignment.StatusSubmitted {
		return ErrReadOnly
	}
	if c.saving {
		return ErrSaveInProgress
	}
	return nil
}

func (c *Controller) Assignment() client.Assignment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.asg
}

// Tasks returns the task prompts in order.
func (c *Controller) Tasks() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyStrings(c.tasks)
}

// Answers returns a copy of the answers, one per task.
func (c *Controller) Answers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyStrings(c.answers)
}

// Attachment returns the attachment pending for the next Save, or nil.
func (c *Controller) Attachment() *client.Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attachment == nil {
		return nil
	}
	att := *c.attachment
	return &att
}

// ScreenshotURL is the download URL of the attachment stored on the server.
func (c *Controller) ScreenshotURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screenshot
}

// Dirty reports whether there are edits the server has not acknowledged.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

func (c *Controller) Status() assignment.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// SubmissionID is empty until the server acknowledged the submission.
func (c *Controller) SubmissionID() string {
	return c.Draft().ID
}

func (c *Controller) ReadOnly() bool {
	return c.Status() == assignment.StatusSubmitted
}

// Saving is true while a Save request is in flight.
func (c *Controller) Saving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saving
}

func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

func copyStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
