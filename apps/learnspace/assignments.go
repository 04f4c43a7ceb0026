package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/trezcool/learnspace/client"
	"github.com/trezcool/learnspace/core/assignment"
)

const dateFormat = "2006-01-02 15:04"

func newAssignmentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "assignments",
		Aliases: []string{"ls"},
		Short:   "List the assignments you can see",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listAssignments(cmd.Context())
		},
	}
}

func (a *app) listAssignments(ctx context.Context) error {
	if _, err := a.session(); err != nil {
		return err
	}
	assignments, err := a.api.ListAssignments(ctx)
	if err != nil {
		return err
	}
	if len(assignments) == 0 {
		a.printf("No assignments.\n")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tTASKS\tDUE\tMY WORK")
	for _, asg := range assignments {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			asg.ID, asg.Title, len(asg.TaskList()), formatTime(asg.DueDate), myWork(asg.MySubmission))
	}
	return tw.Flush()
}

func myWork(sub *client.Submission) string {
	switch {
	case sub == nil:
		return "-"
	case sub.Grade != "":
		return string(sub.Status) + " (" + sub.Grade + ")"
	}
	return string(sub.Status)
}

func newSubmissionsCmd(a *app) *cobra.Command {
	var assignmentID, status string
	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "List submissions: your own, or those to your assignments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.session(); err != nil {
				return err
			}
			subs, err := a.api.ListSubmissions(cmd.Context(), assignmentID, assignment.Status(status))
			if err != nil {
				return err
			}
			if len(subs) == 0 {
				a.printf("No submissions.\n")
				return nil
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tASSIGNMENT\tSTUDENT\tSTATUS\tSUBMITTED\tGRADE")
			for _, sub := range subs {
				student := "-"
				if sub.Student != nil {
					student = sub.Student.Username
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					sub.ID, sub.AssignmentID, student, sub.Status, formatTime(sub.SubmittedAt), orDash(sub.Grade))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&assignmentID, "assignment", "", "only submissions to this assignment")
	cmd.Flags().StringVar(&status, "status", "", "draft or submitted")
	return cmd
}

func newRosterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "roster ASSIGNMENT_ID",
		Short: "Show where each student stands on an assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireTeacher(a); err != nil {
				return err
			}
			roster, err := a.api.ListSubmissionStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STUDENT\tEMAIL\tSTATUS\tSUBMITTED\tSUBMISSION")
			for _, row := range roster {
				subID := "-"
				if row.SubmissionID != nil {
					subID = *row.SubmissionID
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					row.Student.Username, orDash(row.Student.Email), row.Status, formatTime(row.SubmittedAt), subID)
			}
			return tw.Flush()
		},
	}
}

func newGradeCmd(a *app) *cobra.Command {
	var grade, feedback string
	cmd := &cobra.Command{
		Use:   "grade SUBMISSION_ID",
		Short: "Grade a submitted piece of work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireTeacher(a); err != nil {
				return err
			}
			sub, err := a.api.GradeSubmission(cmd.Context(), args[0], grade, feedback)
			if err != nil {
				return err
			}
			a.printf("Submission %s graded %s.\n", sub.ID, sub.Grade)
			return nil
		},
	}
	cmd.Flags().StringVarP(&grade, "grade", "g", "", "the grade, e.g. A or 17/20")
	cmd.Flags().StringVarP(&feedback, "feedback", "f", "", "comments for the student")
	_ = cmd.MarkFlagRequired("grade")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show your dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.session(); err != nil {
				return err
			}
			stats, err := a.api.DashboardStats(cmd.Context())
			if err != nil {
				return err
			}
			a.printStats(stats)
			return nil
		},
	}
}

func (a *app) printStats(stats assignment.Stats) {
	a.printf("New today:  %d\n", stats.TodayTasks)
	a.printf("Pending:    %d\n", stats.PendingCount)
	a.printf("Submitted:  %d\n", stats.SubmittedCount)

	days := make([]string, 0, len(stats.WeeklyData))
	for _, d := range stats.WeeklyData {
		days = append(days, fmt.Sprintf("%s %d", d.Day, d.Count))
	}
	a.printf("This week:  %s\n", strings.Join(days, " | "))

	if len(stats.TopStudents) > 0 {
		a.printf("Top students:\n")
		for i, s := range stats.TopStudents {
			a.printf("  %d. %s (%d submitted, %d pending)\n", i+1, s.Student, s.Submitted, s.Pending)
		}
	}
	if len(stats.RecentAssignments) > 0 {
		a.printf("Recent assignments:\n")
		for _, r := range stats.RecentAssignments {
			a.printf("  %s  %s (due %s)\n", r.ID, r.Title, formatTime(r.DueDate))
		}
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(dateFormat)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
