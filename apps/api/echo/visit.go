package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
)

type visitApi struct {
	apiBase
	visits *visit.Service
	leads  *lead.Service
}

func registerVisitAPI(g *echo.Group, authed echo.MiddlewareFunc, api visitApi) {
	vg := g.Group("/visits", authed)
	vg.GET("", api.query)
	vg.POST("", api.create)

	dg := vg.Group("/:id", objectMiddleware(api.get))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, teamMiddleware())
	dg.POST("/complete", api.complete)
	dg.POST("/cancel", api.cancel)
}

func (api *visitApi) get(ctx echo.Context, id string) (interface{}, error) {
	_, scope, err := api.scope(ctx)
	if err != nil {
		return nil, err
	}
	v, err := api.visits.GetScoped(ctx.Request().Context(), scope, id)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (api *visitApi) query(ctx echo.Context) error {
	_, scope, err := api.scope(ctx)
	if err != nil {
		return err
	}
	filter := new(visit.QueryFilter)
	if err := bindFilter(ctx, filter); err != nil {
		return err
	}
	filter.Clean()

	visits, err := api.visits.Query(ctx.Request().Context(), scope, filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying visits")
	}
	if visits == nil {
		visits = []visit.Visit{}
	}
	return ctx.JSON(http.StatusOK, visits)
}

func (api *visitApi) create(ctx echo.Context) error {
	ctxUsr, scope, err := api.scope(ctx)
	if err != nil {
		return err
	}
	var data visit.NewVisit
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewVisit")
	}
	data.TenantID = ctxUsr.TenantID

	// visits can only be booked on the leads the user can see
	reqCtx := ctx.Request().Context()
	if leadID := core.CleanString(data.LeadID, true /* lower */); leadID != "" {
		if _, err := api.leads.GetScoped(reqCtx, scope, leadID); err != nil {
			if core.IsNotFound(err) {
				return core.NewFieldError("lead_id", visit.ErrLeadNotFound)
			}
			return errors.Wrap(err, "getting lead")
		}
	}
	if err := data.Validate(ctxUsr, api.validate, api.visits); err != nil {
		return err
	}

	v, err := api.visits.Schedule(reqCtx, data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "scheduling visit")
	}
	return ctx.JSON(http.StatusCreated, v)
}

func (api *visitApi) retrieve(ctx echo.Context) error {
	v, err := contextObject[visit.Visit](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, v)
}

func (api *visitApi) update(ctx echo.Context) error {
	v, err := contextObject[visit.Visit](ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data visit.UpdateVisit
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateVisit")
	}
	if err := data.Validate(v, ctxUsr, api.validate, api.visits); err != nil {
		return err
	}

	v, err = api.visits.Update(ctx.Request().Context(), v, data)
	if err != nil {
		return errors.Wrap(err, "updating visit")
	}
	return ctx.JSON(http.StatusOK, v)
}

func (api *visitApi) complete(ctx echo.Context) error {
	v, err := contextObject[visit.Visit](ctx)
	if err != nil {
		return err
	}
	var data visit.CompleteVisit
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CompleteVisit")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	v, err = api.visits.Complete(ctx.Request().Context(), v, data)
	if err != nil {
		return errors.Wrap(err, "completing visit")
	}
	return ctx.JSON(http.StatusOK, v)
}

func (api *visitApi) cancel(ctx echo.Context) error {
	v, err := contextObject[visit.Visit](ctx)
	if err != nil {
		return err
	}
	var data visit.CancelVisit
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CancelVisit")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	v, err = api.visits.Cancel(ctx.Request().Context(), v, data)
	if err != nil {
		return errors.Wrap(err, "cancelling visit")
	}
	return ctx.JSON(http.StatusOK, v)
}

func (api *visitApi) destroy(ctx echo.Context) error {
	v, err := contextObject[visit.Visit](ctx)
	if err != nil {
		return err
	}
	if err := api.visits.Delete(ctx.Request().Context(), v.TenantID, v.ID); err != nil {
		return errors.Wrap(err, "deleting visit")
	}
	return ctx.NoContent(http.StatusNoContent)
}
