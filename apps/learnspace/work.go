package main

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/learnspace/client"
	"github.com/trezcool/learnspace/client/form"
	"github.com/trezcool/learnspace/core/assignment"
)

const workHelp = `Commands:
  show               print the tasks and your answers
  edit N [ANSWER]    answer task N (asks for the answer when omitted)
  attach PATH        attach a screenshot
  save               save as draft
  submit             submit for grading; no more changes afterwards
  back               go back to the assignment list
  quit               leave the program
`

func newWorkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "work ASSIGNMENT_ID",
		Short: "Answer an assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			if !s.IsStudent() {
				return errors.New("only students can answer assignments")
			}
			return a.work(cmd.Context(), args[0])
		},
	}
}

// work runs the answer form of one assignment until the user leaves it.
func (a *app) work(ctx context.Context, assignmentID string) error {
	ctrl := form.NewController(a.api)
	if err := ctrl.Load(ctx, assignmentID); err != nil {
		var loadErr *form.LoadError
		if errors.As(err, &loadErr) && loadErr.NotFound() {
			return errors.Errorf("assignment %s not found", assignmentID)
		}
		return err
	}
	guard := form.NewGuard(ctrl, form.PrompterFunc(func(ctx context.Context) (form.Choice, error) {
		answer, ok := a.ask(ctx, "You have unsaved changes: [s]ave draft, [d]iscard or [c]ancel? ")
		if !ok {
			return form.ChoiceDismiss, nil
		}
		switch strings.ToLower(answer) {
		case "s", "save":
			return form.ChoiceSaveDraft, nil
		case "d", "discard":
			return form.ChoiceDiscard, nil
		}
		return form.ChoiceDismiss, nil
	}))

	a.showForm(ctrl)
	if ctrl.ReadOnly() {
		a.printf("This work was submitted and can no longer be changed.\n")
	}
	a.printf("Type `help` for the commands.\n")

	for {
		var (
			line string
			ok   bool
		)
		select {
		case line, ok = <-a.lines:
			if !ok {
				if ctrl.Dirty() {
					a.printf("\nInput closed: unsaved changes are lost.\n")
				}
				return nil
			}
		case <-a.signals:
			a.printf("\n")
			if a.quit(ctx, guard) {
				return nil
			}
			continue
		case <-ctx.Done():
			return ctx.Err()
		}

		name, rest := splitCommand(line)
		switch name {
		case "":
		case "help", "?":
			a.printf("%s", workHelp)
		case "show":
			a.showForm(ctrl)
		case "edit":
			a.editAnswer(ctx, ctrl, rest)
		case "attach":
			a.attach(ctrl, rest)
		case "save":
			a.save(ctx, ctrl, assignment.StatusDraft)
		case "submit":
			if !a.confirm(ctx, "Submit for grading? You will not be able to change it afterwards.") {
				continue
			}
			if res, ok := a.save(ctx, ctrl, assignment.StatusSubmitted); ok && res.Navigate {
				return a.listAssignments(ctx)
			}
		case "back":
			var left bool
			if _, err := guard.Leave(ctx, func() { left = true }); err != nil {
				a.printf("Could not save: %s\n", describe(err))
			}
			if left {
				return a.listAssignments(ctx)
			}
		case "quit", "exit":
			if a.quit(ctx, guard) {
				return nil
			}
		default:
			a.printf("Unknown command %q. Type `help` for the commands.\n", name)
		}
	}
}

// quit asks for confirmation when leaving would lose edits.
func (a *app) quit(ctx context.Context, guard *form.Guard) bool {
	if !guard.BeforeUnload() {
		return true
	}
	return a.confirm(ctx, "Leave without saving?")
}

func (a *app) showForm(ctrl *form.Controller) {
	asg := ctrl.Assignment()
	a.printf("\n%s\n", asg.Title)
	if asg.Description != "" {
		a.printf("%s\n", asg.Description)
	}
	if asg.Model != nil {
		a.printf("Model: %s %s\n", asg.Model.Title, asg.Model.File)
	}

	tasks, answers := ctrl.Tasks(), ctrl.Answers()
	if len(tasks) == 0 {
		a.printf("\nThis assignment has no tasks.\n")
	}
	for i, task := range tasks {
		a.printf("\n%d. %s\n   > %s\n", i+1, task, orDash(answers[i]))
	}

	status := string(ctrl.Status())
	if ctrl.Draft().State == form.Unsaved {
		status = "not saved yet"
	}
	if ctrl.Dirty() {
		status += ", unsaved changes"
	}
	a.printf("\nStatus: %s\n", status)
	if att := ctrl.Attachment(); att != nil {
		a.printf("Screenshot: %s (not saved yet)\n", att.Filename)
	} else if url := ctrl.ScreenshotURL(); url != "" {
		a.printf("Screenshot: %s\n", url)
	}
}

func (a *app) editAnswer(ctx context.Context, ctrl *form.Controller, args string) {
	num, answer := splitCommand(args)
	n, err := strconv.Atoi(num)
	if err != nil {
		a.printf("Usage: edit N [ANSWER]\n")
		return
	}
	if ctrl.ReadOnly() {
		a.printf("This work was submitted and can no longer be changed.\n")
		return
	}
	if answer == "" {
		var ok bool
		if answer, ok = a.ask(ctx, "Answer: "); !ok {
			return
		}
	}

	switch err = ctrl.EditAnswer(n-1, answer); err {
	case nil:
	case form.ErrIndexOutOfRange:
		a.printf("There is no task %d.\n", n)
	default:
		a.printf("%s\n", err)
	}
}

func (a *app) attach(ctrl *form.Controller, path string) {
	if path == "" {
		a.printf("Usage: attach PATH\n")
		return
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		a.printf("Could not read %s: %s\n", path, err)
		return
	}
	if err = ctrl.AttachFile(client.Attachment{Filename: filepath.Base(path), Data: data}); err != nil {
		a.printf("%s\n", err)
		return
	}
	a.printf("Attached %s.\n", filepath.Base(path))
}

func (a *app) save(ctx context.Context, ctrl *form.Controller, status assignment.Status) (form.SaveResult, bool) {
	res, err := ctrl.Save(ctx, status)
	if err != nil {
		var saveErr *form.SaveError
		switch {
		case errors.As(err, &saveErr) && saveErr.Conflict():
			a.printf("This work was already saved from elsewhere. Leave and open it again.\n")
			a.logger.Error("create conflict", err)
		case errors.As(err, &saveErr):
			a.printf("Could not save: %s\nYour answers are kept; try again.\n", describe(saveErr.Err))
		default:
			a.printf("%s\n", err)
		}
		return res, false
	}

	if status == assignment.StatusSubmitted {
		a.printf("Submitted.\n")
	} else {
		a.printf("Draft saved.\n")
	}
	return res, true
}

// splitCommand splits "edit 2 some text" into "edit" and "2 some text".
func splitCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return strings.ToLower(line), ""
	}
	return strings.ToLower(line[:i]), strings.TrimSpace(line[i+1:])
}
