package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core/tenant"
)

type tenantApi struct {
	apiBase
	tenants *tenant.Service
}

func registerTenantAPI(g *echo.Group, authed echo.MiddlewareFunc, api tenantApi) {
	tg := g.Group("/tenant", authed)
	tg.GET("", api.retrieve)
	tg.PUT("", api.update, ownerMiddleware())
}

func (api *tenantApi) retrieve(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	tn, err := api.tenants.Get(ctx.Request().Context(), ctxUsr.TenantID)
	if err != nil {
		return errors.Wrap(err, "getting tenant")
	}
	return ctx.JSON(http.StatusOK, tn)
}

func (api *tenantApi) update(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data tenant.UpdateTenant
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTenant")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tn, err := api.tenants.Update(ctx.Request().Context(), ctxUsr.TenantID, data)
	if err != nil {
		return errors.Wrap(err, "updating tenant")
	}
	return ctx.JSON(http.StatusOK, tn)
}
