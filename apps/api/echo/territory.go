package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core/territory"
)

type territoryApi struct {
	apiBase
}

func registerTerritoryAPI(g *echo.Group, authed echo.MiddlewareFunc, api territoryApi) {
	tg := g.Group("/territories", authed)
	tg.GET("", api.query)
	tg.POST("", api.create, adminMiddleware())

	dg := tg.Group("/:id", objectMiddleware(api.get))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
}

func (api *territoryApi) get(ctx echo.Context, id string) (interface{}, error) {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting context user")
	}
	t, err := api.territories.Get(ctx.Request().Context(), ctxUsr.TenantID, id)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (api *territoryApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	filter := new(territory.QueryFilter)
	if err := bindFilter(ctx, filter); err != nil {
		return err
	}
	filter.Clean()

	ts, err := api.territories.Query(ctx.Request().Context(), ctxUsr.TenantID, filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying territories")
	}
	if ts == nil {
		ts = []territory.Territory{}
	}
	return ctx.JSON(http.StatusOK, ts)
}

func (api *territoryApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data territory.NewTerritory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTerritory")
	}
	data.TenantID = ctxUsr.TenantID
	if err := data.Validate(api.validate, api.territories); err != nil {
		return err
	}

	t, err := api.territories.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating territory")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *territoryApi) retrieve(ctx echo.Context) error {
	t, err := contextObject[territory.Territory](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *territoryApi) update(ctx echo.Context) error {
	t, err := contextObject[territory.Territory](ctx)
	if err != nil {
		return err
	}
	var data territory.UpdateTerritory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTerritory")
	}
	if err := data.Validate(t, api.validate, api.territories); err != nil {
		return err
	}

	t, err = api.territories.Update(ctx.Request().Context(), t, data)
	if err != nil {
		return errors.Wrap(err, "updating territory")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *territoryApi) destroy(ctx echo.Context) error {
	t, err := contextObject[territory.Territory](ctx)
	if err != nil {
		return err
	}
	if err := api.territories.Delete(ctx.Request().Context(), t.TenantID, t.ID); err != nil {
		return errors.Wrap(err, "deleting territory")
	}
	return ctx.NoContent(http.StatusNoContent)
}
