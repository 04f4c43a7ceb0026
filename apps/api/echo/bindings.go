package echoapi

import (
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/core/assignment"
)

var (
	orderingParam = "ordering"

	errInvalidStatus = "status must be one of: draft, submitted"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindFormFile reads the multipart file under field. It returns nil when the field is absent.
func bindFormFile(ctx echo.Context, field string) (*core.UploadedFile, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil
		}
		return nil, core.NewValidationError(err, core.FieldError{Field: field, Error: "invalid file upload"})
	}

	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = f.Close() }()

	data, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, "reading uploaded file")
	}
	return &core.UploadedFile{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Data:        data,
	}, nil
}

// bindSubmissionData reads the multipart (or urlencoded) submission form.
// Absent fields are left nil so that updates are partial.
func bindSubmissionData(ctx echo.Context) (assignment.SubmissionData, error) {
	var data assignment.SubmissionData

	form, err := ctx.FormParams()
	if err != nil {
		return data, core.NewValidationError(err, core.FieldError{Field: "content", Error: "invalid form data"})
	}

	data.AssignmentID = core.CleanString(form.Get("assignment"))
	if _, ok := form["content"]; ok {
		parsed := assignment.ParseContent([]byte(form.Get("content")))
		data.Content = &parsed
	}
	if _, ok := form["status"]; ok {
		status := assignment.Status(core.CleanString(form.Get("status"), true /* lower */))
		if !status.Valid() {
			return data, core.NewValidationError(nil, core.FieldError{Field: "status", Error: errInvalidStatus})
		}
		data.Status = &status
	}

	if data.Screenshot, err = bindFormFile(ctx, "screenshot"); err != nil {
		return data, err
	}
	return data, nil
}
