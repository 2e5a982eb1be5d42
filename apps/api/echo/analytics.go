package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/dashboard"
)

type analyticsApi struct {
	apiBase
	dashboards *dashboard.Service
}

func registerAnalyticsAPI(g *echo.Group, authed echo.MiddlewareFunc, api analyticsApi) {
	g.GET("/dashboard", api.summary, authed)

	ag := g.Group("/analytics", authed)
	ag.GET("/leads-by-status", api.leadsByStatus)
	ag.GET("/leads-by-territory", api.leadsByTerritory)
	ag.GET("/leads-by-source", api.leadsBySource)
	ag.GET("/conversions", api.conversions)
	ag.GET("/visits", api.visits)
	ag.GET("/reps", api.reps, teamMiddleware())
}

// viewer binds the date range query and returns who is looking at the figures.
func (api *analyticsApi) viewer(ctx echo.Context) (dashboard.Viewer, core.DateRangeQuery, error) {
	usr, scope, err := api.scope(ctx)
	if err != nil {
		return dashboard.Viewer{}, core.DateRangeQuery{}, err
	}
	var q core.DateRangeQuery
	if err := bindFilter(ctx, &q); err != nil {
		return dashboard.Viewer{}, core.DateRangeQuery{}, err
	}
	return dashboard.Viewer{Scope: scope, Team: usr.IsAdmin() || usr.IsManager()}, q, nil
}

func (api *analyticsApi) summary(ctx echo.Context) error {
	v, q, err := api.viewer(ctx)
	if err != nil {
		return err
	}
	s, err := api.dashboards.Summary(ctx.Request().Context(), v, q)
	if err != nil {
		return errors.Wrap(err, "computing dashboard summary")
	}
	return ctx.JSON(http.StatusOK, s)
}

type breakdownFunc func(*dashboard.Service, echo.Context, dashboard.Viewer, core.DateRangeQuery) (interface{}, error)

func (api *analyticsApi) serve(ctx echo.Context, name string, fn breakdownFunc) error {
	v, q, err := api.viewer(ctx)
	if err != nil {
		return err
	}
	res, err := fn(api.dashboards, ctx, v, q)
	if err != nil {
		return errors.Wrapf(err, "computing %s", name)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *analyticsApi) leadsByStatus(ctx echo.Context) error {
	return api.serve(ctx, "leads by status", func(svc *dashboard.Service, ctx echo.Context, v dashboard.Viewer, q core.DateRangeQuery) (interface{}, error) {
		return svc.LeadsByStatus(ctx.Request().Context(), v, q)
	})
}

func (api *analyticsApi) leadsByTerritory(ctx echo.Context) error {
	return api.serve(ctx, "leads by territory", func(svc *dashboard.Service, ctx echo.Context, v dashboard.Viewer, q core.DateRangeQuery) (interface{}, error) {
		return svc.LeadsByTerritory(ctx.Request().Context(), v, q)
	})
}

func (api *analyticsApi) leadsBySource(ctx echo.Context) error {
	return api.serve(ctx, "leads by source", func(svc *dashboard.Service, ctx echo.Context, v dashboard.Viewer, q core.DateRangeQuery) (interface{}, error) {
		return svc.LeadsBySource(ctx.Request().Context(), v, q)
	})
}

func (api *analyticsApi) conversions(ctx echo.Context) error {
	return api.serve(ctx, "conversions over time", func(svc *dashboard.Service, ctx echo.Context, v dashboard.Viewer, q core.DateRangeQuery) (interface{}, error) {
		return svc.ConversionsOverTime(ctx.Request().Context(), v, q)
	})
}

func (api *analyticsApi) visits(ctx echo.Context) error {
	return api.serve(ctx, "visits over time", func(svc *dashboard.Service, ctx echo.Context, v dashboard.Viewer, q core.DateRangeQuery) (interface{}, error) {
		return svc.VisitsOverTime(ctx.Request().Context(), v, q)
	})
}

func (api *analyticsApi) reps(ctx echo.Context) error {
	return api.serve(ctx, "rep performance", func(svc *dashboard.Service, ctx echo.Context, v dashboard.Viewer, q core.DateRangeQuery) (interface{}, error) {
		return svc.RepPerformance(ctx.Request().Context(), v, q)
	})
}
