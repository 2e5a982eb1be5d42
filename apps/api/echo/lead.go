package echoapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/conversion"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
	"github.com/ud-systems/UD-Leads-sub001/services/spreadsheet"
)

const importFileField = "file"

type leadApi struct {
	apiBase
	leads     *lead.Service
	visits    *visit.Service
	rules     *conversion.Service
	maxUpload int64
}

func registerLeadAPI(g *echo.Group, authed echo.MiddlewareFunc, api leadApi) {
	lg := g.Group("/leads", authed)
	lg.GET("", api.query)
	lg.POST("", api.create)
	lg.DELETE("", api.destroyMultiple, teamMiddleware())
	lg.POST("/import", api.importFile, teamMiddleware(), middleware.BodyLimit(strconv.FormatInt(api.maxUpload, 10)))
	lg.GET("/export", api.export)

	// detail endpoints
	dg := lg.Group("/:id", objectMiddleware(api.get))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, teamMiddleware())
	dg.PATCH("/status", api.changeStatus)
	dg.POST("/assign", api.assign, teamMiddleware())
	dg.GET("/visits", api.queryVisits)
	dg.GET("/conversion", api.evaluateConversion)
	dg.POST("/conversion", api.applyConversion, teamMiddleware())
}

// get hides the leads out of the context user's scope.
func (api *leadApi) get(ctx echo.Context, id string) (interface{}, error) {
	_, scope, err := api.scope(ctx)
	if err != nil {
		return nil, err
	}
	l, err := api.leads.GetScoped(ctx.Request().Context(), scope, id)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (api *leadApi) bindFilter(ctx echo.Context) (*lead.QueryFilter, error) {
	filter := new(lead.QueryFilter)
	if err := bindFilter(ctx, filter); err != nil {
		return nil, err
	}
	filter.Clean()
	return filter, nil
}

func (api *leadApi) query(ctx echo.Context) error {
	_, scope, err := api.scope(ctx)
	if err != nil {
		return err
	}
	filter, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}

	leads, err := api.leads.Query(ctx.Request().Context(), scope, filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying leads")
	}
	if leads == nil {
		leads = []lead.Lead{}
	}
	return ctx.JSON(http.StatusOK, leads)
}

func (api *leadApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data lead.NewLead
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLead")
	}
	data.TenantID = ctxUsr.TenantID
	if err := data.Validate(api.validate, api.leads); err != nil {
		return err
	}

	l, err := api.leads.Create(ctx.Request().Context(), data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "creating lead")
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *leadApi) destroyMultiple(ctx echo.Context) error {
	_, scope, err := api.scope(ctx)
	if err != nil {
		return err
	}
	ids, err := bindIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}

	reqCtx := ctx.Request().Context()
	if scope.Restricted() {
		for _, id := range ids {
			if _, err := api.leads.GetScoped(reqCtx, scope, id); err != nil {
				return err
			}
		}
	}
	if err := api.leads.Delete(reqCtx, scope.TenantID, ids...); err != nil {
		return errors.Wrap(err, "deleting leads")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *leadApi) importFile(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	fh, err := ctx.FormFile(importFileField)
	if err != nil {
		return core.NewFieldError(importFileField, errors.New("upload an .xlsx or .csv file"))
	}
	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer file.Close()

	rows, err := spreadsheet.ReadLeads(file, fh.Filename)
	if err != nil {
		return core.NewFieldError(importFileField, err)
	}
	res, err := api.leads.Import(ctx.Request().Context(), ctxUsr.TenantID, rows, api.validate, api.translator, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "importing leads")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *leadApi) export(ctx echo.Context) error {
	_, scope, err := api.scope(ctx)
	if err != nil {
		return err
	}
	format := core.CleanString(ctx.QueryParam("format"), true /* lower */)
	if format == "" {
		format = spreadsheet.FormatXLSX
	}
	contentType, ok := spreadsheet.ContentTypes[format]
	if !ok {
		return core.NewFieldError("format", spreadsheet.ErrUnsupportedFormat)
	}
	filter, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	leads, err := api.leads.Export(reqCtx, scope, filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "exporting leads")
	}
	codes, err := api.territories.CodeMap(reqCtx, scope.TenantID)
	if err != nil {
		return errors.Wrap(err, "getting territory codes")
	}
	idCodes := make(map[string]string, len(codes))
	for code, id := range codes {
		idCodes[id] = code
	}

	filename := fmt.Sprintf("leads-%s.%s", time.Now().UTC().Format("20060102-150405"), format)
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	ctx.Response().Header().Set(echo.HeaderContentType, contentType)
	ctx.Response().WriteHeader(http.StatusOK)
	return errors.Wrap(spreadsheet.WriteLeads(ctx.Response(), format, leads, idCodes), "writing leads")
}

func (api *leadApi) retrieve(ctx echo.Context) error {
	l, err := contextObject[lead.Lead](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *leadApi) update(ctx echo.Context) error {
	l, err := contextObject[lead.Lead](ctx)
	if err != nil {
		return err
	}
	var data lead.UpdateLead
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLead")
	}
	if err := data.Validate(l, api.validate, api.leads); err != nil {
		return err
	}

	l, err = api.leads.Update(ctx.Request().Context(), l, data)
	if err != nil {
		return errors.Wrap(err, "updating lead")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *leadApi) destroy(ctx echo.Context) error {
	l, err := contextObject[lead.Lead](ctx)
	if err != nil {
		return err
	}
	if err := api.leads.Delete(ctx.Request().Context(), l.TenantID, l.ID); err != nil {
		return errors.Wrap(err, "deleting lead")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *leadApi) changeStatus(ctx echo.Context) error {
	l, err := contextObject[lead.Lead](ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data lead.StatusChange
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusChange")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	l, err = api.leads.ChangeStatus(ctx.Request().Context(), l, data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "changing lead status")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *leadApi) assign(ctx echo.Context) error {
	l, err := contextObject[lead.Lead](ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data lead.Assignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Assignment")
	}
	if err := data.Validate(l.TenantID, api.validate, api.leads); err != nil {
		return err
	}

	l, err = api.leads.Assign(ctx.Request().Context(), l, data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "assigning lead")
	}
	return ctx.JSON(http.StatusOK, l)
}

// queryVisits lists every visit of a lead the context user can see.
func (api *leadApi) queryVisits(ctx echo.Context) error {
	l, err := contextObject[lead.Lead](ctx)
	if err != nil {
		return err
	}
	filter := new(visit.QueryFilter)
	if err := bindFilter(ctx, filter); err != nil {
		return err
	}
	filter.Clean()
	filter.LeadID = l.ID

	visits, err := api.visits.Query(ctx.Request().Context(), core.TenantScope(l.TenantID), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying lead visits")
	}
	if visits == nil {
		visits = []visit.Visit{}
	}
	return ctx.JSON(http.StatusOK, visits)
}

func (api *leadApi) evaluateConversion(ctx echo.Context) error {
	l, err := contextObject[lead.Lead](ctx)
	if err != nil {
		return err
	}
	res, err := api.rules.Evaluate(ctx.Request().Context(), l)
	if err != nil {
		return errors.Wrap(err, "evaluating conversion rules")
	}
	return ctx.JSON(http.StatusOK, res)
}

type ConversionResponse struct {
	Lead   lead.Lead         `json:"lead"`
	Result conversion.Result `json:"result"`
}

func (api *leadApi) applyConversion(ctx echo.Context) error {
	l, err := contextObject[lead.Lead](ctx)
	if err != nil {
		return err
	}
	l, res, err := api.rules.Apply(ctx.Request().Context(), l)
	if err != nil {
		return errors.Wrap(err, "applying conversion rules")
	}
	return ctx.JSON(http.StatusOK, ConversionResponse{Lead: l, Result: res})
}
