package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnspace/core/assignment"
	"github.com/trezcool/learnspace/core/user"
)

type dashboardApi struct {
	usrSvc user.ServiceInterface
	svc    assignment.ServiceInterface
}

func registerDashboardAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	_ *authenticator,
	usrSvc user.ServiceInterface,
	svc assignment.ServiceInterface,
) {
	api := dashboardApi{usrSvc: usrSvc, svc: svc}

	dg := g.Group("/dashboard", jwt, activeUserMiddleware(usrSvc))
	dg.GET("/stats", api.stats)
}

func (api *dashboardApi) stats(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	stats, err := api.svc.DashboardStats(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "computing dashboard stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}
