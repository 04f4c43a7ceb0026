package echoapi

import (
	"bytes"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/core/assignment"
	"github.com/trezcool/learnspace/core/user"
)

type submissionApi struct {
	usrSvc   user.ServiceInterface
	svc      assignment.ServiceInterface
	validate *validator.Validate
}

func registerSubmissionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	_ *authenticator,
	usrSvc user.ServiceInterface,
	svc assignment.ServiceInterface,
	validate *validator.Validate,
) {
	api := submissionApi{
		usrSvc:   usrSvc,
		svc:      svc,
		validate: validate,
	}

	sg := g.Group("/submissions", jwt, activeUserMiddleware(usrSvc))
	sg.GET("", api.query)
	sg.POST("", api.create)
	sg.GET("/:id", api.retrieve)
	sg.PATCH("/:id", api.update)
	sg.PATCH("/:id/grade", api.grade, teacherMiddleware(usrSvc))
	sg.GET("/:id/screenshot", api.screenshot)
}

// Handlers

func (api *submissionApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	data, err := bindSubmissionData(ctx)
	if err != nil {
		return err
	}
	if data.AssignmentID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "assignment", Error: "assignment is a required field"})
	}

	sub, err := api.svc.CreateSubmission(ctx.Request().Context(), usr, data)
	submissionsSaved.WithLabelValues("create", saveOutcome(err)).Inc()
	if err != nil {
		return errors.Wrap(err, "creating submission")
	}
	return ctx.JSON(http.StatusCreated, withScreenshotURL(ctx, sub))
}

func (api *submissionApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	data, err := bindSubmissionData(ctx)
	if err != nil {
		return err
	}
	data.AssignmentID = "" // immutable

	sub, err := api.svc.UpdateSubmission(ctx.Request().Context(), usr, ctx.Param("id"), data)
	submissionsSaved.WithLabelValues("update", saveOutcome(err)).Inc()
	if err != nil {
		return errors.Wrap(err, "updating submission")
	}
	return ctx.JSON(http.StatusOK, withScreenshotURL(ctx, sub))
}

func (api *submissionApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := assignment.SubmissionFilter{
		AssignmentID: core.CleanString(ctx.QueryParam("assignment")),
		Status:       assignment.Status(core.CleanString(ctx.QueryParam("status"), true /* lower */)),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return ctx.JSON(http.StatusOK, []assignment.Submission{})
	}

	subs, err := api.svc.QuerySubmissions(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	res := make([]assignment.Submission, 0, len(subs))
	for _, sub := range subs {
		res = append(res, withScreenshotURL(ctx, sub))
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *submissionApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sub, err := api.svc.GetSubmission(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding submission")
	}
	return ctx.JSON(http.StatusOK, withScreenshotURL(ctx, sub))
}

func (api *submissionApi) grade(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data assignment.GradeData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeData")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.GradeSubmission(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, withScreenshotURL(ctx, sub))
}

func (api *submissionApi) screenshot(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	rc, err := api.svc.OpenScreenshot(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "opening screenshot")
	}
	defer func() { _ = rc.Close() }()

	// screenshots are sniffed on upload, not stored with their type
	head := make([]byte, 512)
	n, _ := io.ReadFull(rc, head)
	head = head[:n]
	contentType, err := core.DetectImage(head)
	if err != nil {
		contentType = echo.MIMEOctetStream
	}
	return streamFile(ctx, io.MultiReader(bytes.NewReader(head), rc), contentType)
}

// Helpers

func withScreenshotURL(ctx echo.Context, sub assignment.Submission) assignment.Submission {
	if sub.ScreenshotKey != "" {
		sub.Screenshot = absoluteURL(ctx, "/api/submissions/"+sub.ID+"/screenshot")
	}
	if sub.Content == nil {
		sub.Content = []assignment.ContentEntry{}
	}
	return sub
}

func saveOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	if c, ok := domainErrorCodes[errors.Cause(err)]; ok && c == http.StatusConflict {
		return "conflict"
	}
	return "error"
}
