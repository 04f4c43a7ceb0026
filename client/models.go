package client

import (
	"encoding/json"
	"time"

	"github.com/trezcool/learnspace/core/assignment"
	"github.com/trezcool/learnspace/core/model3d"
	"github.com/trezcool/learnspace/core/user"
)

// Assignment is an assignment as the API sends it. Tasks are kept raw and go through
// assignment.ParseTasks, so that any shape the server stores decodes.
type Assignment struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Teacher          *user.User      `json:"teacher"`
	ModelID          string          `json:"model"`
	Model            *model3d.Model  `json:"model_obj"`
	AssignedStudents []string        `json:"assigned_students"`
	DueDate          *time.Time      `json:"due_date"`
	Tasks            json.RawMessage `json:"tasks"`
	CreatedAt        time.Time       `json:"created_at"`
	MySubmission     *Submission     `json:"my_submission"`
}

func (a Assignment) TaskList() assignment.TaskList {
	return assignment.ParseTasks(a.Tasks)
}

type Submission struct {
	ID           string            `json:"id"`
	AssignmentID string            `json:"assignment"`
	Student      *user.User        `json:"student"`
	Content      json.RawMessage   `json:"content"`
	Screenshot   string            `json:"screenshot"`
	Status       assignment.Status `json:"status"`
	Grade        string            `json:"grade"`
	Feedback     string            `json:"feedback"`
	SubmittedAt  *time.Time        `json:"submitted_at"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (s Submission) ParsedContent() assignment.ContentParse {
	return assignment.ParseContent(s.Content)
}

// Attachment is a file sent along a submission (its screenshot).
type Attachment struct {
	Filename string
	Data     []byte
}

// NewAssignment is what a teacher sends to create an assignment.
type NewAssignment struct {
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	ModelID          string     `json:"model"`
	AssignedStudents []string   `json:"assigned_students,omitempty"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	Tasks            []string   `json:"tasks"`
}

type (
	loginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	loginResponse struct {
		Token string     `json:"token"`
		User  *user.User `json:"user"`
	}

	gradeRequest struct {
		Grade    string `json:"grade"`
		Feedback string `json:"feedback"`
	}
)
