// Package client talks to the LearnSpace REST API on behalf of a logged-in user.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/learnspace/core/assignment"
	"github.com/trezcool/learnspace/core/model3d"
	"github.com/trezcool/learnspace/core/user"
)

const DefaultTimeout = 30 * time.Second

// Gateway persists submissions and reads what the assignment form needs.
type Gateway interface {
	GetAssignment(ctx context.Context, assignmentID string) (Assignment, error)
	// CreateSubmission fails with ErrConflict when the student already has a submission
	// for the assignment.
	CreateSubmission(ctx context.Context, assignmentID string, content []assignment.ContentEntry, status assignment.Status, att *Attachment) (Submission, error)
	// UpdateSubmission is partial: a nil attachment keeps the stored one.
	UpdateSubmission(ctx context.Context, submissionID string, content []assignment.ContentEntry, status assignment.Status, att *Attachment) (Submission, error)
	ListSubmissionStatus(ctx context.Context, assignmentID string) ([]assignment.StudentStatus, error)
}

type Client struct {
	baseURL string
	http    *http.Client

	mu      sync.RWMutex
	session *Session
}

var _ Gateway = (*Client)(nil) // interface compliance check

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithSession(s *Session) Option {
	return func(c *Client) { c.session = s }
}

// New returns a Client for the server at baseURL (e.g. "http://localhost:8000").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) SetSession(s *Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// Login exchanges credentials for a Session, which the Client keeps using.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	var resp loginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/login", loginRequest{Username: username, Password: password}, &resp); err != nil {
		return nil, err
	}
	s := &Session{Token: resp.Token}
	if resp.User != nil {
		s.User = *resp.User
	}
	c.SetSession(s)
	return s, nil
}

// Logout forgets the session. Tokens are stateless, so the server is not involved.
func (c *Client) Logout() {
	c.SetSession(nil)
}

func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	var resp loginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/token-refresh", nil, &resp); err != nil {
		return "", err
	}
	c.mu.Lock()
	if c.session != nil {
		c.session.Token = resp.Token
	}
	c.mu.Unlock()
	return resp.Token, nil
}

func (c *Client) Register(ctx context.Context, data user.RegisterUser) (user.User, error) {
	var usr user.User
	err := c.doJSON(ctx, http.MethodPost, "/api/users/register", data, &usr)
	return usr, err
}

func (c *Client) Me(ctx context.Context) (user.User, error) {
	var usr user.User
	err := c.doJSON(ctx, http.MethodGet, "/api/users/me", nil, &usr)
	return usr, err
}

func (c *Client) ListStudents(ctx context.Context) ([]user.User, error) {
	var students []user.User
	err := c.doJSON(ctx, http.MethodGet, "/api/users/students", nil, &students)
	return students, err
}

func (c *Client) ListModels(ctx context.Context) ([]model3d.Model, error) {
	var models []model3d.Model
	err := c.doJSON(ctx, http.MethodGet, "/api/models", nil, &models)
	return models, err
}

func (c *Client) UploadModel(ctx context.Context, title, subject string, file Attachment) (model3d.Model, error) {
	fields := map[string]string{"title": title, "subject": subject}
	var mdl model3d.Model
	err := c.doMultipart(ctx, http.MethodPost, "/api/models", fields, "file", &file, &mdl)
	return mdl, err
}

func (c *Client) ListAssignments(ctx context.Context) ([]Assignment, error) {
	var assignments []Assignment
	err := c.doJSON(ctx, http.MethodGet, "/api/assignments", nil, &assignments)
	return assignments, err
}

func (c *Client) GetAssignment(ctx context.Context, assignmentID string) (Assignment, error) {
	var asg Assignment
	err := c.doJSON(ctx, http.MethodGet, "/api/assignments/"+url.PathEscape(assignmentID), nil, &asg)
	return asg, err
}

func (c *Client) CreateAssignment(ctx context.Context, data NewAssignment) (Assignment, error) {
	var asg Assignment
	err := c.doJSON(ctx, http.MethodPost, "/api/assignments", data, &asg)
	return asg, err
}

func (c *Client) ListSubmissionStatus(ctx context.Context, assignmentID string) ([]assignment.StudentStatus, error) {
	var roster []assignment.StudentStatus
	path := "/api/assignments/" + url.PathEscape(assignmentID) + "/submissions_status"
	err := c.doJSON(ctx, http.MethodGet, path, nil, &roster)
	return roster, err
}

// ListSubmissions lists the submissions visible to the session user. Empty filters are ignored.
func (c *Client) ListSubmissions(ctx context.Context, assignmentID string, status assignment.Status) ([]Submission, error) {
	q := url.Values{}
	if assignmentID != "" {
		q.Set("assignment", assignmentID)
	}
	if status != "" {
		q.Set("status", string(status))
	}
	path := "/api/submissions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var subs []Submission
	err := c.doJSON(ctx, http.MethodGet, path, nil, &subs)
	return subs, err
}

func (c *Client) GetSubmission(ctx context.Context, submissionID string) (Submission, error) {
	var sub Submission
	err := c.doJSON(ctx, http.MethodGet, "/api/submissions/"+url.PathEscape(submissionID), nil, &sub)
	return sub, err
}

func (c *Client) CreateSubmission(
	ctx context.Context,
	assignmentID string,
	content []assignment.ContentEntry,
	status assignment.Status,
	att *Attachment,
) (Submission, error) {
	fields, err := submissionFields(content, status)
	if err != nil {
		return Submission{}, err
	}
	fields["assignment"] = assignmentID

	var sub Submission
	err = c.doMultipart(ctx, http.MethodPost, "/api/submissions", fields, "screenshot", att, &sub)
	return sub, err
}

func (c *Client) UpdateSubmission(
	ctx context.Context,
	submissionID string,
	content []assignment.ContentEntry,
	status assignment.Status,
	att *Attachment,
) (Submission, error) {
	fields, err := submissionFields(content, status)
	if err != nil {
		return Submission{}, err
	}

	var sub Submission
	path := "/api/submissions/" + url.PathEscape(submissionID)
	err = c.doMultipart(ctx, http.MethodPatch, path, fields, "screenshot", att, &sub)
	return sub, err
}

func (c *Client) GradeSubmission(ctx context.Context, submissionID, grade, feedback string) (Submission, error) {
	var sub Submission
	path := "/api/submissions/" + url.PathEscape(submissionID) + "/grade"
	err := c.doJSON(ctx, http.MethodPatch, path, gradeRequest{Grade: grade, Feedback: feedback}, &sub)
	return sub, err
}

// Screenshot downloads the attachment of a submission.
func (c *Client) Screenshot(ctx context.Context, submissionID string) ([]byte, error) {
	path := "/api/submissions/" + url.PathEscape(submissionID) + "/screenshot"
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err = c.send(req, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Client) DashboardStats(ctx context.Context) (assignment.Stats, error) {
	var stats assignment.Stats
	err := c.doJSON(ctx, http.MethodGet, "/api/dashboard/stats", nil, &stats)
	return stats, err
}

func submissionFields(content []assignment.ContentEntry, status assignment.Status) (map[string]string, error) {
	if content == nil {
		content = []assignment.ContentEntry{}
	}
	data, err := json.Marshal(content)
	if err != nil {
		return nil, errors.Wrap(err, "encoding content")
	}
	return map[string]string{"content": string(data), "status": string(status)}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var r io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		r = bytes.NewReader(data)
		contentType = "application/json"
	}
	req, err := c.newRequest(ctx, method, path, r, contentType)
	if err != nil {
		return err
	}
	return c.send(req, out)
}

// doMultipart sends fields as a multipart form; the file part is skipped when file is nil.
func (c *Client) doMultipart(
	ctx context.Context,
	method, path string,
	fields map[string]string,
	fileField string,
	file *Attachment,
	out interface{},
) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return errors.Wrapf(err, "writing field %s", name)
		}
	}
	if file != nil {
		fw, err := w.CreateFormFile(fileField, file.Filename)
		if err != nil {
			return errors.Wrapf(err, "creating file part %s", fileField)
		}
		if _, err = fw.Write(file.Data); err != nil {
			return errors.Wrapf(err, "writing file part %s", fileField)
		}
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "closing multipart body")
	}

	req, err := c.newRequest(ctx, method, path, &buf, w.FormDataContentType())
	if err != nil {
		return err
	}
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s := c.Session(); s != nil && s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	return req, nil
}

// send performs req and decodes a 2xx body into out: a *bytes.Buffer receives the raw bytes,
// anything else is decoded as JSON. Other statuses become an *APIError.
func (c *Client) send(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, data)
	}

	switch v := out.(type) {
	case nil:
		return nil
	case *bytes.Buffer:
		_, err = v.Write(data)
		return err
	default:
		return errors.Wrap(json.Unmarshal(data, out), "decoding response")
	}
}
