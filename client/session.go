package client

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/learnspace/core/user"
)

var ErrNoSession = errors.New("not logged in")

// Session holds the bearer token and the user it was issued to.
// It is created by Client.Login and destroyed by Client.Logout.
type Session struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

// Role returns admin, teacher or student.
func (s *Session) Role() string {
	switch {
	case s == nil:
		return ""
	case s.User.IsAdmin():
		return "admin"
	case s.User.IsTeacher():
		return "teacher"
	case s.User.IsStudent():
		return "student"
	}
	return ""
}

func (s *Session) IsStudent() bool { return s != nil && s.User.IsStudent() }

func (s *Session) IsTeacher() bool { return s != nil && (s.User.IsTeacher() || s.User.IsAdmin()) }

// Save writes the session to path, readable by the current user only.
func (s *Session) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "creating session directory")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	return errors.Wrap(ioutil.WriteFile(path, data, 0o600), "writing session")
}

// LoadSession reads a session saved by Save. It returns ErrNoSession when there is none.
func LoadSession(path string) (*Session, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, errors.Wrap(err, "reading session")
	}
	var s Session
	if err = json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "decoding session")
	}
	if s.Token == "" {
		return nil, ErrNoSession
	}
	return &s, nil
}

// DeleteSession removes a saved session. A missing file is not an error.
func DeleteSession(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting session")
	}
	return nil
}
