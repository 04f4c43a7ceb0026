package echoapi

import (
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnspace/core/model3d"
	"github.com/trezcool/learnspace/core/user"
)

type modelApi struct {
	usrSvc   user.ServiceInterface
	svc      model3d.ServiceInterface
	validate *validator.Validate
}

func registerModelAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	_ *authenticator,
	usrSvc user.ServiceInterface,
	svc model3d.ServiceInterface,
	validate *validator.Validate,
) {
	api := modelApi{
		usrSvc:   usrSvc,
		svc:      svc,
		validate: validate,
	}

	mg := g.Group("/models", jwt, activeUserMiddleware(usrSvc))
	mg.GET("", api.query)
	mg.POST("", api.upload, teacherMiddleware(usrSvc))
	mg.GET("/:id", api.retrieve)
	mg.GET("/:id/file", api.download)
}

// Handlers

func (api *modelApi) upload(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data model3d.NewModel
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModel")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	file, err := bindFormFile(ctx, "file")
	if err != nil {
		return err
	}

	mdl, err := api.svc.Upload(ctx.Request().Context(), usr.ID, data, file)
	if err != nil {
		return errors.Wrap(err, "uploading model")
	}
	return ctx.JSON(http.StatusCreated, withModelURL(ctx, mdl))
}

func (api *modelApi) query(ctx echo.Context) error {
	filter := new(model3d.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []model3d.Model{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	models, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying models")
	}
	res := make([]model3d.Model, 0, len(models))
	for _, mdl := range models {
		res = append(res, withModelURL(ctx, mdl))
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *modelApi) retrieve(ctx echo.Context) error {
	mdl, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding model")
	}
	return ctx.JSON(http.StatusOK, withModelURL(ctx, mdl))
}

func (api *modelApi) download(ctx echo.Context) error {
	mdl, rc, err := api.svc.Open(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "opening model file")
	}
	defer func() { _ = rc.Close() }()

	return streamFile(ctx, rc, mdl.ContentType)
}

// Helpers

func withModelURL(ctx echo.Context, mdl model3d.Model) model3d.Model {
	if mdl.FileKey != "" {
		mdl.File = absoluteURL(ctx, "/api/models/"+mdl.ID+"/file")
	}
	return mdl
}

func absoluteURL(ctx echo.Context, path string) string {
	return ctx.Scheme() + "://" + ctx.Request().Host + path
}

func streamFile(ctx echo.Context, r io.Reader, contentType string) error {
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return ctx.Stream(http.StatusOK, contentType, r)
}
