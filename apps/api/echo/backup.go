package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core/backup"
)

const backupContentType = "application/gzip"

type backupApi struct {
	apiBase
	backups *backup.Service
}

func registerBackupAPI(g *echo.Group, authed echo.MiddlewareFunc, api backupApi) {
	bg := g.Group("/backups", authed, adminMiddleware())
	bg.GET("", api.query)
	bg.POST("", api.create)

	dg := bg.Group("/:id", objectMiddleware(api.get))
	dg.GET("", api.retrieve)
	dg.GET("/download", api.download)
	dg.POST("/restore", api.restore, ownerMiddleware())
	dg.DELETE("", api.destroy)
}

func (api *backupApi) get(ctx echo.Context, id string) (interface{}, error) {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting context user")
	}
	b, err := api.backups.Get(ctx.Request().Context(), ctxUsr.TenantID, id)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (api *backupApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	backups, err := api.backups.List(ctx.Request().Context(), ctxUsr.TenantID)
	if err != nil {
		return errors.Wrap(err, "listing backups")
	}
	if backups == nil {
		backups = []backup.Backup{}
	}
	return ctx.JSON(http.StatusOK, backups)
}

func (api *backupApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	b, err := api.backups.Create(ctx.Request().Context(), ctxUsr.TenantID, ctxUsr.ID, backup.KindManual)
	if err != nil {
		return errors.Wrap(err, "creating backup")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *backupApi) retrieve(ctx echo.Context) error {
	b, err := contextObject[backup.Backup](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *backupApi) download(ctx echo.Context) error {
	b, err := contextObject[backup.Backup](ctx)
	if err != nil {
		return err
	}
	_, payload, err := api.backups.Download(ctx.Request().Context(), b.TenantID, b.ID)
	if err != nil {
		return errors.Wrap(err, "downloading backup")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", b.ID+".json.gz"))
	return ctx.Blob(http.StatusOK, backupContentType, payload)
}

func (api *backupApi) restore(ctx echo.Context) error {
	b, err := contextObject[backup.Backup](ctx)
	if err != nil {
		return err
	}
	counts, err := api.backups.Restore(ctx.Request().Context(), b.TenantID, b.ID)
	if err != nil {
		return errors.Wrap(err, "restoring backup")
	}
	return ctx.JSON(http.StatusOK, counts)
}

func (api *backupApi) destroy(ctx echo.Context) error {
	b, err := contextObject[backup.Backup](ctx)
	if err != nil {
		return err
	}
	if err := api.backups.Delete(ctx.Request().Context(), b.TenantID, b.ID); err != nil {
		return errors.Wrap(err, "deleting backup")
	}
	return ctx.NoContent(http.StatusNoContent)
}
