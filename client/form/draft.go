package form

// DraftState tells whether a submission has been acknowledged by the server yet.
type DraftState int

const (
	Unsaved DraftState = iota
	Saved
)

func (s DraftState) String() string {
	if s == Saved {
		return "saved"
	}
	return "unsaved"
}

// Mode is the kind of gateway call a Save issues.
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

func (m Mode) String() string {
	if m == ModeUpdate {
		return "updating"
	}
	return "creating"
}

// Draft is the lifecycle of the student's submission: Unsaved, or Saved with the
// identifier the server returned.
type Draft struct {
	State DraftState
	ID    string
}

func savedDraft(id string) Draft { return Draft{State: Saved, ID: id} }

// SaveMode is ModeUpdate once the server acknowledged the submission.
func (d Draft) SaveMode() Mode {
	if d.State == Saved && d.ID != "" {
		return ModeUpdate
	}
	return ModeCreate
}
