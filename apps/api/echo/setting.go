package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core/setting"
)

type settingApi struct {
	apiBase
	settings *setting.Service
}

func registerSettingAPI(g *echo.Group, authed echo.MiddlewareFunc, api settingApi) {
	sg := g.Group("/settings", authed)
	sg.GET("", api.query)
	sg.GET("/:key", api.retrieve)
	sg.PUT("/:key", api.update, adminMiddleware())
	sg.DELETE("/:key", api.reset, adminMiddleware())
}

func (api *settingApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	entries, err := api.settings.List(ctx.Request().Context(), ctxUsr.TenantID)
	if err != nil {
		return errors.Wrap(err, "listing settings")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *settingApi) retrieve(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	entry, err := api.settings.Get(ctx.Request().Context(), ctxUsr.TenantID, ctx.Param("key"))
	if err != nil {
		return errors.Wrap(err, "getting setting")
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *settingApi) update(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data setting.SetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetRequest")
	}

	entry, err := api.settings.Set(ctx.Request().Context(), ctxUsr.TenantID, ctx.Param("key"), data.Value, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "setting value")
	}
	return ctx.JSON(http.StatusOK, entry)
}

// reset brings the setting back to its default.
func (api *settingApi) reset(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	entry, err := api.settings.Reset(ctx.Request().Context(), ctxUsr.TenantID, ctx.Param("key"))
	if err != nil {
		return errors.Wrap(err, "resetting setting")
	}
	return ctx.JSON(http.StatusOK, entry)
}
