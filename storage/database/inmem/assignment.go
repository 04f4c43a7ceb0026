package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/core/assignment"
)

type assignmentRepository struct {
	db *assignmentTables
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) *assignmentRepository {
	return &assignmentRepository{db: db.assignment}
}

// stored rows never share slices with callers
func copyAssignment(asg assignment.Assignment) assignment.Assignment {
	asg.Teacher = nil
	asg.Model = nil
	asg.MySubmission = nil
	asg.AssignedStudents = append([]string(nil), asg.AssignedStudents...)
	asg.Tasks = append(assignment.TaskList{}, asg.Tasks...)
	if asg.DueDate != nil {
		d := *asg.DueDate
		asg.DueDate = &d
	}
	return asg
}

func copySubmission(sub assignment.Submission) assignment.Submission {
	sub.Student = nil
	sub.Screenshot = ""
	sub.Content = append([]assignment.ContentEntry{}, sub.Content...)
	if sub.SubmittedAt != nil {
		t := *sub.SubmittedAt
		sub.SubmittedAt = &t
	}
	return sub
}

func (repo *assignmentRepository) CreateAssignment(_ context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	asg = copyAssignment(asg)
	asg.ID = uuid.New().String()
	stored := asg
	repo.db.assignments[asg.ID] = &stored
	return copyAssignment(asg), nil
}

func (repo *assignmentRepository) GetAssignment(_ context.Context, id string) (assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if asg, ok := repo.db.assignments[id]; ok {
		return copyAssignment(*asg), nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) QueryAssignments(_ context.Context, filter *assignment.QueryFilter, ordering []core.DBOrdering) ([]assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	assignments := make([]assignment.Assignment, 0, len(repo.db.assignments))
	for _, asg := range repo.db.assignments {
		if filter != nil {
			if filter.TeacherID != "" && asg.TeacherID != filter.TeacherID {
				continue
			}
			if filter.VisibleTo != "" && !asg.VisibleTo(filter.VisibleTo) {
				continue
			}
		}
		assignments = append(assignments, copyAssignment(*asg))
	}

	sortBy(len(assignments), ordering, core.DBOrdering{Field: "created_at"},
		func(i int, field string) interface{} {
			switch field {
			case "title":
				return assignments[i].Title
			case "created_at":
				return assignments[i].CreatedAt
			case "due_date":
				if assignments[i].DueDate == nil {
					return nil
				}
				return *assignments[i].DueDate
			}
			return nil
		},
		func(i, j int) { assignments[i], assignments[j] = assignments[j], assignments[i] },
	)
	return assignments, nil
}

func (repo *assignmentRepository) CreateSubmission(_ context.Context, sub assignment.Submission) (assignment.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.assignments[sub.AssignmentID]; !ok {
		return assignment.Submission{}, assignment.ErrNotFound
	}
	// unique (assignment, student)
	for _, s := range repo.db.submissions {
		if s.AssignmentID == sub.AssignmentID && s.StudentID == sub.StudentID {
			return assignment.Submission{}, assignment.ErrSubmissionExists
		}
	}

	sub = copySubmission(sub)
	sub.ID = uuid.New().String()
	stored := sub
	repo.db.submissions[sub.ID] = &stored
	return copySubmission(sub), nil
}

func (repo *assignmentRepository) GetSubmission(_ context.Context, filter assignment.SubmissionFilter) (assignment.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if sub, ok := repo.db.submissions[filter.ID]; ok && repo.matchSubmission(sub, &filter) {
			return copySubmission(*sub), nil
		}
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	for _, sub := range repo.db.submissions {
		if repo.matchSubmission(sub, &filter) {
			return copySubmission(*sub), nil
		}
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) QuerySubmissions(_ context.Context, filter *assignment.SubmissionFilter, ordering []core.DBOrdering) ([]assignment.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subs := make([]assignment.Submission, 0, len(repo.db.submissions))
	for _, sub := range repo.db.submissions {
		if repo.matchSubmission(sub, filter) {
			subs = append(subs, copySubmission(*sub))
		}
	}

	sortBy(len(subs), ordering, core.DBOrdering{Field: "updated_at"},
		func(i int, field string) interface{} {
			switch field {
			case "status":
				return string(subs[i].Status)
			case "created_at":
				return subs[i].CreatedAt
			case "updated_at":
				return subs[i].UpdatedAt
			case "submitted_at":
				if subs[i].SubmittedAt == nil {
					return nil
				}
				return *subs[i].SubmittedAt
			}
			return nil
		},
		func(i, j int) { subs[i], subs[j] = subs[j], subs[i] },
	)
	return subs, nil
}

func (repo *assignmentRepository) UpdateSubmission(_ context.Context, sub assignment.Submission) (assignment.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	old, ok := repo.db.submissions[sub.ID]
	if !ok {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	sub = copySubmission(sub)
	// ownership and creation time are immutable
	sub.AssignmentID = old.AssignmentID
	sub.StudentID = old.StudentID
	sub.CreatedAt = old.CreatedAt
	stored := sub
	repo.db.submissions[sub.ID] = &stored
	return copySubmission(sub), nil
}

// matchSubmission must be called with the lock held.
func (repo *assignmentRepository) matchSubmission(sub *assignment.Submission, filter *assignment.SubmissionFilter) bool {
	if filter == nil {
		return true
	}
	if filter.ID != "" && sub.ID != filter.ID {
		return false
	}
	if filter.AssignmentID != "" && sub.AssignmentID != filter.AssignmentID {
		return false
	}
	if filter.StudentID != "" && sub.StudentID != filter.StudentID {
		return false
	}
	if filter.Status != "" && sub.Status != filter.Status {
		return false
	}
	if filter.TeacherID != "" {
		asg, ok := repo.db.assignments[sub.AssignmentID]
		if !ok || asg.TeacherID != filter.TeacherID {
			return false
		}
	}
	return true
}
