package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/core/model3d"
	"github.com/trezcool/learnspace/core/user"
)

// Status is the lifecycle status of a Submission.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"

	// StatusPending is never stored: it marks a student without a submission in a roster.
	StatusPending Status = "pending"
)

func (s Status) Valid() bool { return s == StatusDraft || s == StatusSubmitted }

type Assignment struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	TeacherID        string         `json:"-"`
	Teacher          *user.User     `json:"teacher"`
	ModelID          string         `json:"model"`
	Model            *model3d.Model `json:"model_obj"`
	AssignedStudents []string       `json:"assigned_students"`
	DueDate          *time.Time     `json:"due_date"`
	Tasks            TaskList       `json:"tasks"`
	CreatedAt        time.Time      `json:"created_at"` // UTC
	MySubmission     *Submission    `json:"my_submission"`
}

// VisibleTo reports whether the student with the given ID may see the Assignment:
// either it is assigned to nobody in particular, or to them.
func (a Assignment) VisibleTo(studentID string) bool {
	return len(a.AssignedStudents) == 0 || core.StringInSlice(studentID, a.AssignedStudents)
}

type Submission struct {
	ID            string         `json:"id"`
	AssignmentID  string         `json:"assignment"`
	StudentID     string         `json:"-"`
	Student       *user.User     `json:"student"`
	Content       []ContentEntry `json:"content"`
	Screenshot    string         `json:"screenshot"` // download URL, set by the API layer
	ScreenshotKey string         `json:"-"`
	Status        Status         `json:"status"`
	Grade         string         `json:"grade"`
	Feedback      string         `json:"feedback"`
	SubmittedAt   *time.Time     `json:"submitted_at"`
	CreatedAt     time.Time      `json:"created_at"` // UTC
	UpdatedAt     time.Time      `json:"updated_at"` // UTC
}

func (s Submission) ReadOnly() bool { return s.Status == StatusSubmitted }

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	Title            string     `json:"title" validate:"required,notblank,max=255"`
	Description      string     `json:"description"`
	ModelID          string     `json:"model" validate:"required"`
	AssignedStudents []string   `json:"assigned_students" validate:"omitempty,dive,required"`
	DueDate          *time.Time `json:"due_date"`
	Tasks            TaskList   `json:"tasks" validate:"min=1,dive,notblank"` // any shape ParseTasks accepts
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.ModelID = core.CleanString(na.ModelID)
	for i, task := range na.Tasks {
		na.Tasks[i] = core.CleanString(task)
	}
	return validate.Struct(na)
}

// SubmissionData is what a student sends on create (POST) and update (PATCH).
// On update, nil fields are left untouched.
type SubmissionData struct {
	AssignmentID string
	Content      *ContentParse
	Status       *Status
	Screenshot   *core.UploadedFile
}

// GradeData is what a teacher sends to grade a Submission.
type GradeData struct {
	Grade    string `json:"grade" validate:"max=10"`
	Feedback string `json:"feedback"`
}

func (gd *GradeData) Validate(validate *validator.Validate) error {
	gd.Grade = core.CleanString(gd.Grade)
	gd.Feedback = core.CleanString(gd.Feedback)
	return validate.Struct(gd)
}

type QueryFilter struct {
	TeacherID string
	VisibleTo string // student ID
}

type SubmissionFilter struct {
	ID           string
	AssignmentID string
	StudentID    string
	// TeacherID selects the submissions to the assignments of that teacher.
	TeacherID string
	Status    Status
}

// StudentStatus is one row of an assignment's roster.
type StudentStatus struct {
	Student      StudentRef `json:"student"`
	Status       Status     `json:"status"`
	SubmittedAt  *time.Time `json:"submitted_at"`
	SubmissionID *string    `json:"submission_id"`
}

type StudentRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
