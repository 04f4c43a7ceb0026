package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnspace/core/assignment"
	"github.com/trezcool/learnspace/core/user"
)

type assignmentApi struct {
	usrSvc   user.ServiceInterface
	svc      assignment.ServiceInterface
	validate *validator.Validate
}

func registerAssignmentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	_ *authenticator,
	usrSvc user.ServiceInterface,
	svc assignment.ServiceInterface,
	validate *validator.Validate,
) {
	api := assignmentApi{
		usrSvc:   usrSvc,
		svc:      svc,
		validate: validate,
	}

	ag := g.Group("/assignments", jwt, activeUserMiddleware(usrSvc))
	ag.GET("", api.query)
	ag.POST("", api.create, teacherMiddleware(usrSvc))
	ag.GET("/:id", api.retrieve)
	ag.GET("/:id/submissions_status", api.submissionsStatus)
}

// Handlers

func (api *assignmentApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data assignment.NewAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	asg, err := api.svc.CreateAssignment(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, withAssignmentURLs(ctx, asg))
}

func (api *assignmentApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	assignments, err := api.svc.QueryAssignments(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	res := make([]assignment.Assignment, 0, len(assignments))
	for _, asg := range assignments {
		res = append(res, withAssignmentURLs(ctx, asg))
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	asg, err := api.svc.GetAssignment(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding assignment")
	}
	return ctx.JSON(http.StatusOK, withAssignmentURLs(ctx, asg))
}

func (api *assignmentApi) submissionsStatus(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	roster, err := api.svc.SubmissionsStatus(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building submissions status")
	}
	if roster == nil {
		roster = []assignment.StudentStatus{}
	}
	return ctx.JSON(http.StatusOK, roster)
}

// Helpers

func withAssignmentURLs(ctx echo.Context, asg assignment.Assignment) assignment.Assignment {
	if asg.Model != nil {
		mdl := withModelURL(ctx, *asg.Model)
		asg.Model = &mdl
	}
	if asg.MySubmission != nil {
		sub := withScreenshotURL(ctx, *asg.MySubmission)
		asg.MySubmission = &sub
	}
	if asg.AssignedStudents == nil {
		asg.AssignedStudents = []string{}
	}
	return asg
}
