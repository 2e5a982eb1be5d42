package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core/conversion"
)

type ruleApi struct {
	apiBase
	rules *conversion.Service
}

func registerRuleAPI(g *echo.Group, authed echo.MiddlewareFunc, api ruleApi) {
	rg := g.Group("/conversion-rules", authed, teamMiddleware())
	rg.GET("", api.query)
	rg.POST("", api.create, adminMiddleware())
	rg.POST("/sweep", api.sweep, adminMiddleware())

	dg := rg.Group("/:id", objectMiddleware(api.get))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
}

func (api *ruleApi) get(ctx echo.Context, id string) (interface{}, error) {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting context user")
	}
	r, err := api.rules.Get(ctx.Request().Context(), ctxUsr.TenantID, id)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (api *ruleApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	filter := new(conversion.QueryFilter)
	if err := bindFilter(ctx, filter); err != nil {
		return err
	}
	filter.Clean()

	rules, err := api.rules.Query(ctx.Request().Context(), ctxUsr.TenantID, filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying conversion rules")
	}
	if rules == nil {
		rules = []conversion.Rule{}
	}
	return ctx.JSON(http.StatusOK, rules)
}

func (api *ruleApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data conversion.NewRule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRule")
	}
	data.TenantID = ctxUsr.TenantID
	if err := data.Validate(api.validate, api.rules); err != nil {
		return err
	}

	r, err := api.rules.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating conversion rule")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *ruleApi) retrieve(ctx echo.Context) error {
	r, err := contextObject[conversion.Rule](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *ruleApi) update(ctx echo.Context) error {
	r, err := contextObject[conversion.Rule](ctx)
	if err != nil {
		return err
	}
	var data conversion.UpdateRule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRule")
	}
	if err := data.Validate(r, api.validate, api.rules); err != nil {
		return err
	}

	r, err = api.rules.Update(ctx.Request().Context(), r, data)
	if err != nil {
		return errors.Wrap(err, "updating conversion rule")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *ruleApi) destroy(ctx echo.Context) error {
	r, err := contextObject[conversion.Rule](ctx)
	if err != nil {
		return err
	}
	if err := api.rules.Delete(ctx.Request().Context(), r.TenantID, r.ID); err != nil {
		return errors.Wrap(err, "deleting conversion rule")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// sweep converts every open lead matching a rule, whatever the auto apply setting.
func (api *ruleApi) sweep(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.rules.Sweep(ctx.Request().Context(), ctxUsr.TenantID)
	if err != nil {
		return errors.Wrap(err, "sweeping leads")
	}
	return ctx.JSON(http.StatusOK, res)
}
