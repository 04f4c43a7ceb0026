package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/core/assignment"
)

const (
	assignmentColumns = `id, title, description, teacher_id, model_id, assigned_students, due_date, tasks, created_at`
	submissionColumns = `id, assignment_id, student_id, content, screenshot_key, status, grade, feedback, submitted_at, created_at, updated_at`

	submissionUniqueKey = "submission_assignment_student_key"
)

var (
	assignmentOrderable = []string{"title", "due_date", "created_at"}
	submissionOrderable = []string{"status", "submitted_at", "created_at", "updated_at"}
)

type assignmentRow struct {
	ID               string         `db:"id"`
	Title            string         `db:"title"`
	Description      string         `db:"description"`
	TeacherID        string         `db:"teacher_id"`
	ModelID          null.String    `db:"model_id"`
	AssignedStudents pq.StringArray `db:"assigned_students"`
	DueDate          null.Time      `db:"due_date"`
	Tasks            types.JSONText `db:"tasks"`
	CreatedAt        time.Time      `db:"created_at"`
}

func (row assignmentRow) assignment() assignment.Assignment {
	asg := assignment.Assignment{
		ID:               row.ID,
		Title:            row.Title,
		Description:      row.Description,
		TeacherID:        row.TeacherID,
		ModelID:          row.ModelID.String,
		AssignedStudents: []string(row.AssignedStudents),
		Tasks:            assignment.ParseTasks(row.Tasks),
		CreatedAt:        row.CreatedAt.UTC(),
	}
	if row.DueDate.Valid {
		d := row.DueDate.Time.UTC()
		asg.DueDate = &d
	}
	return asg
}

type submissionRow struct {
	ID            string         `db:"id"`
	AssignmentID  string         `db:"assignment_id"`
	StudentID     string         `db:"student_id"`
	Content       types.JSONText `db:"content"`
	ScreenshotKey null.String    `db:"screenshot_key"`
	Status        string         `db:"status"`
	Grade         null.String    `db:"grade"`
	Feedback      null.String    `db:"feedback"`
	SubmittedAt   null.Time      `db:"submitted_at"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func toSubmissionRow(sub assignment.Submission) (submissionRow, error) {
	content := sub.Content
	if content == nil {
		content = []assignment.ContentEntry{}
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return submissionRow{}, errors.Wrap(err, "encoding content")
	}
	row := submissionRow{
		ID:            sub.ID,
		AssignmentID:  sub.AssignmentID,
		StudentID:     sub.StudentID,
		Content:       types.JSONText(raw),
		ScreenshotKey: null.NewString(sub.ScreenshotKey, sub.ScreenshotKey != ""),
		Status:        string(sub.Status),
		Grade:         null.NewString(sub.Grade, sub.Grade != ""),
		Feedback:      null.NewString(sub.Feedback, sub.Feedback != ""),
		SubmittedAt:   null.TimeFromPtr(sub.SubmittedAt),
		CreatedAt:     sub.CreatedAt.UTC(),
		UpdatedAt:     sub.UpdatedAt.UTC(),
	}
	return row, nil
}

func (row submissionRow) submission() assignment.Submission {
	sub := assignment.Submission{
		ID:            row.ID,
		AssignmentID:  row.AssignmentID,
		StudentID:     row.StudentID,
		Content:       assignment.ParseContent(row.Content).Entries,
		ScreenshotKey: row.ScreenshotKey.String,
		Status:        assignment.Status(row.Status),
		Grade:         row.Grade.String,
		Feedback:      row.Feedback.String,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
	if row.SubmittedAt.Valid {
		t := row.SubmittedAt.Time.UTC()
		sub.SubmittedAt = &t
	}
	return sub
}

type assignmentRepository struct {
	exec core.DBExecutor
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(exec core.DBExecutor) *assignmentRepository {
	return &assignmentRepository{exec: exec}
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	tasks := asg.Tasks
	if tasks == nil {
		tasks = assignment.TaskList{}
	}
	rawTasks, err := json.Marshal([]string(tasks))
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "encoding tasks")
	}

	row := assignmentRow{
		ID:               uuid.New().String(),
		Title:            asg.Title,
		Description:      asg.Description,
		TeacherID:        asg.TeacherID,
		ModelID:          null.NewString(asg.ModelID, asg.ModelID != ""),
		AssignedStudents: pq.StringArray(append([]string{}, asg.AssignedStudents...)),
		DueDate:          null.TimeFromPtr(asg.DueDate),
		Tasks:            types.JSONText(rawTasks),
		CreatedAt:        asg.CreatedAt.UTC(),
	}
	query := repo.exec.Rebind(`INSERT INTO assignment (` + assignmentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = repo.exec.ExecContext(ctx, query,
		row.ID, row.Title, row.Description, row.TeacherID, row.ModelID,
		row.AssignedStudents, row.DueDate, row.Tasks, row.CreatedAt)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return row.assignment(), nil
}

func (repo *assignmentRepository) GetAssignment(ctx context.Context, id string) (assignment.Assignment, error) {
	if !validUUID(id) {
		return assignment.Assignment{}, assignment.ErrNotFound
	}

	var row assignmentRow
	query := repo.exec.Rebind(`SELECT ` + assignmentColumns + ` FROM assignment WHERE id = ?`)
	if err := repo.exec.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return assignment.Assignment{}, assignment.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "finding assignment")
	}
	return row.assignment(), nil
}

func (repo *assignmentRepository) QueryAssignments(ctx context.Context, filter *assignment.QueryFilter, ordering []core.DBOrdering) ([]assignment.Assignment, error) {
	var w where
	if filter != nil {
		if filter.TeacherID != "" {
			if !validUUID(filter.TeacherID) {
				return []assignment.Assignment{}, nil
			}
			w.add("teacher_id = ?", filter.TeacherID)
		}
		// assigned to nobody in particular, or to them
		if filter.VisibleTo != "" {
			if !validUUID(filter.VisibleTo) {
				return []assignment.Assignment{}, nil
			}
			w.add("cardinality(assigned_students) = 0 OR ?::uuid = ANY (assigned_students)", filter.VisibleTo)
		}
	}

	q := `SELECT ` + assignmentColumns + ` FROM assignment` + w.String() +
		orderBy(ordering, assignmentOrderable, core.DBOrdering{Field: "created_at"})
	var rows []assignmentRow
	if err := repo.exec.SelectContext(ctx, &rows, repo.exec.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	assignments := make([]assignment.Assignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, row.assignment())
	}
	return assignments, nil
}

func (repo *assignmentRepository) CreateSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	sub.ID = uuid.New().String()
	row, err := toSubmissionRow(sub)
	if err != nil {
		return assignment.Submission{}, err
	}

	query := repo.exec.Rebind(`INSERT INTO submission (` + submissionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = repo.exec.ExecContext(ctx, query,
		row.ID, row.AssignmentID, row.StudentID, row.Content, row.ScreenshotKey, row.Status,
		row.Grade, row.Feedback, row.SubmittedAt, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok && constraint == submissionUniqueKey {
			return assignment.Submission{}, assignment.ErrSubmissionExists
		}
		return assignment.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return row.submission(), nil
}

func (repo *assignmentRepository) GetSubmission(ctx context.Context, filter assignment.SubmissionFilter) (assignment.Submission, error) {
	w, ok := submissionWhere(&filter)
	if !ok {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}

	var row submissionRow
	query := repo.exec.Rebind(`SELECT ` + submissionColumns + ` FROM submission` + w.String() + ` LIMIT 1`)
	if err := repo.exec.GetContext(ctx, &row, query, w.args...); err != nil {
		if err == sql.ErrNoRows {
			return assignment.Submission{}, assignment.ErrSubmissionNotFound
		}
		return assignment.Submission{}, errors.Wrap(err, "finding submission")
	}
	return row.submission(), nil
}

func (repo *assignmentRepository) QuerySubmissions(ctx context.Context, filter *assignment.SubmissionFilter, ordering []core.DBOrdering) ([]assignment.Submission, error) {
	w, ok := submissionWhere(filter)
	if !ok {
		return []assignment.Submission{}, nil
	}

	q := `SELECT ` + submissionColumns + ` FROM submission` + w.String() +
		orderBy(ordering, submissionOrderable, core.DBOrdering{Field: "updated_at"})
	var rows []submissionRow
	if err := repo.exec.SelectContext(ctx, &rows, repo.exec.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]assignment.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.submission())
	}
	return subs, nil
}

func (repo *assignmentRepository) UpdateSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	if !validUUID(sub.ID) {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	row, err := toSubmissionRow(sub)
	if err != nil {
		return assignment.Submission{}, err
	}

	// ownership and creation time are immutable
	query := repo.exec.Rebind(`UPDATE submission SET content = ?, screenshot_key = ?, status = ?, grade = ?,
		feedback = ?, submitted_at = ?, updated_at = ? WHERE id = ?`)
	res, err := repo.exec.ExecContext(ctx, query,
		row.Content, row.ScreenshotKey, row.Status, row.Grade,
		row.Feedback, row.SubmittedAt, row.UpdatedAt, row.ID)
	if err != nil {
		return assignment.Submission{}, errors.Wrap(err, "updating submission")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	return repo.GetSubmission(ctx, assignment.SubmissionFilter{ID: sub.ID})
}

// submissionWhere returns false if the filter cannot match any row.
func submissionWhere(filter *assignment.SubmissionFilter) (where, bool) {
	var w where
	if filter == nil {
		return w, true
	}
	for _, c := range []struct{ cond, id string }{
		{"id = ?", filter.ID},
		{"assignment_id = ?", filter.AssignmentID},
		{"student_id = ?", filter.StudentID},
		{"assignment_id IN (SELECT id FROM assignment WHERE teacher_id = ?)", filter.TeacherID},
	} {
		if c.id == "" {
			continue
		}
		if !validUUID(c.id) {
			return w, false
		}
		w.add(c.cond, c.id)
	}
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}
	return w, true
}
