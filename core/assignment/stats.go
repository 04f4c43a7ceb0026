package assignment

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/learnspace/core/user"
)

const (
	statsDays        = 7
	statsTopStudents = 3
	statsRecent      = 5
)

type (
	Stats struct {
		Role              string             `json:"role"`
		TodayTasks        int                `json:"today_tasks"`
		PendingCount      int                `json:"pending_count"`
		SubmittedCount    int                `json:"submitted_count"`
		WeeklyData        []DayCount         `json:"weekly_data"`
		TopStudents       []TopStudent       `json:"top_students,omitempty"`
		RecentAssignments []RecentAssignment `json:"recent_assignments"`
	}

	DayCount struct {
		Date  string `json:"date"` // YYYY-MM-DD
		Day   string `json:"day"`  // Mon, Tue...
		Count int    `json:"count"`
	}

	TopStudent struct {
		Student   string `json:"student"`
		Submitted int    `json:"submitted"`
		Pending   int    `json:"pending"`
	}

	RecentAssignment struct {
		ID          string     `json:"id"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
		DueDate     *time.Time `json:"due_date"`
		CreatedAt   time.Time  `json:"created_at"`
	}
)

// DashboardStats computes the dashboard of the actor over the assignments they can see.
//
// For teachers (and admins), pending counts draft submissions to their assignments.
// For students, pending counts visible assignments they have not submitted yet.
// Days are UTC calendar days; the weekly series ends today.
func (svc *service) DashboardStats(ctx context.Context, actor user.User) (Stats, error) {
	assignments, err := svc.queryVisibleAssignments(ctx, actor)
	if err != nil {
		return Stats{}, err
	}

	today := truncateDay(nowFunc().UTC())
	stats := Stats{
		Role:              "student",
		WeeklyData:        weeklyData(assignments, today),
		RecentAssignments: recentAssignments(assignments),
	}
	for _, asg := range assignments {
		if truncateDay(asg.CreatedAt.UTC()).Equal(today) {
			stats.TodayTasks++
		}
	}

	if actor.IsTeacher() || actor.IsAdmin() {
		stats.Role = "teacher"
		if actor.IsAdmin() {
			stats.Role = "admin"
		}

		filter := &SubmissionFilter{TeacherID: actor.ID}
		if actor.IsAdmin() {
			filter = nil
		}
		subs, err := svc.repo.QuerySubmissions(ctx, filter, nil)
		if err != nil {
			return Stats{}, errors.Wrap(err, "querying submissions")
		}
		for _, sub := range subs {
			switch sub.Status {
			case StatusDraft:
				stats.PendingCount++
			case StatusSubmitted:
				stats.SubmittedCount++
			}
		}
		if stats.TopStudents, err = svc.topStudents(subs); err != nil {
			return Stats{}, err
		}
		return stats, nil
	}

	subs, err := svc.repo.QuerySubmissions(ctx, &SubmissionFilter{StudentID: actor.ID}, nil)
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying own submissions")
	}
	submitted := make(map[string]bool, len(subs))
	for _, sub := range subs {
		if sub.Status == StatusSubmitted {
			submitted[sub.AssignmentID] = true
			stats.SubmittedCount++
		}
	}
	for _, asg := range assignments {
		if !submitted[asg.ID] {
			stats.PendingCount++
		}
	}
	return stats, nil
}

// topStudents ranks students by submitted count (then username), keeping those with at least one.
func (svc *service) topStudents(subs []Submission) ([]TopStudent, error) {
	type counts struct{ submitted, pending int }
	byStudent := make(map[string]*counts)
	for _, sub := range subs {
		c, ok := byStudent[sub.StudentID]
		if !ok {
			c = new(counts)
			byStudent[sub.StudentID] = c
		}
		if sub.Status == StatusSubmitted {
			c.submitted++
		} else {
			c.pending++
		}
	}

	ids := make([]string, 0, len(byStudent))
	for id, c := range byStudent {
		if c.submitted > 0 {
			ids = append(ids, id)
		}
	}
	students, err := svc.usrSvc.QueryByIDs(ids)
	if err != nil {
		return nil, errors.Wrap(err, "finding top students")
	}

	top := make([]TopStudent, 0, len(ids))
	for _, id := range ids {
		name := students[id].Username
		if name == "" {
			name = students[id].DisplayName()
		}
		top = append(top, TopStudent{Student: name, Submitted: byStudent[id].submitted, Pending: byStudent[id].pending})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Submitted != top[j].Submitted {
			return top[i].Submitted > top[j].Submitted
		}
		return top[i].Student < top[j].Student
	})
	if len(top) > statsTopStudents {
		top = top[:statsTopStudents]
	}
	return top, nil
}

func weeklyData(assignments []Assignment, today time.Time) []DayCount {
	perDay := make(map[time.Time]int, statsDays)
	for _, asg := range assignments {
		perDay[truncateDay(asg.CreatedAt.UTC())]++
	}

	data := make([]DayCount, 0, statsDays)
	for i := statsDays - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		data = append(data, DayCount{
			Date:  day.Format("2006-01-02"),
			Day:   day.Format("Mon"),
			Count: perDay[day],
		})
	}
	return data
}

// recentAssignments expects assignments ordered by most recent first.
func recentAssignments(assignments []Assignment) []RecentAssignment {
	n := len(assignments)
	if n > statsRecent {
		n = statsRecent
	}
	recent := make([]RecentAssignment, 0, n)
	for _, asg := range assignments[:n] {
		recent = append(recent, RecentAssignment{
			ID:          asg.ID,
			Title:       asg.Title,
			Description: asg.Description,
			DueDate:     asg.DueDate,
			CreatedAt:   asg.CreatedAt,
		})
	}
	return recent
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
