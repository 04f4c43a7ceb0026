package form

import (
	"context"

	"github.com/trezcool/learnspace/core/assignment"
)

// Choice is the answer to "you have unsaved changes".
type Choice int

const (
	ChoiceDismiss Choice = iota
	ChoiceSaveDraft
	ChoiceDiscard
)

func (c Choice) String() string {
	switch c {
	case ChoiceSaveDraft:
		return "save draft"
	case ChoiceDiscard:
		return "discard"
	}
	return "dismiss"
}

// Prompter asks the user what to do with unsaved changes before leaving the form.
type Prompter interface {
	ConfirmLeave(ctx context.Context) (Choice, error)
}

type PrompterFunc func(ctx context.Context) (Choice, error)

func (f PrompterFunc) ConfirmLeave(ctx context.Context) (Choice, error) { return f(ctx) }

// Guard keeps unsaved edits from being lost silently. It is Dirty exactly when its
// controller is.
type Guard struct {
	ctrl     *Controller
	prompter Prompter
}

func NewGuard(ctrl *Controller, prompter Prompter) *Guard {
	return &Guard{ctrl: ctrl, prompter: prompter}
}

// BeforeUnload reports whether closing the program must be confirmed.
func (g *Guard) BeforeUnload() bool {
	return g.ctrl.Dirty()
}

// Leave runs proceed unless there are unsaved edits the user wants to keep.
// It reports whether proceed ran. When saving the draft fails, it returns the error and
// stays.
func (g *Guard) Leave(ctx context.Context, proceed func()) (bool, error) {
	if !g.ctrl.Dirty() {
		proceed()
		return true, nil
	}

	choice, err := g.prompter.ConfirmLeave(ctx)
	if err != nil {
		return false, err
	}
	switch choice {
	case ChoiceSaveDraft:
		if _, err = g.ctrl.Save(ctx, assignment.StatusDraft); err != nil {
			return false, err
		}
	case ChoiceDiscard:
		g.ctrl.Discard()
	default:
		return false, nil
	}
	proceed()
	return true, nil
}
