package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	ord.Orderings = core.ParseOrdering(ctx.QueryParam(orderingParam))
}

func bindOrdering(ctx echo.Context) []core.DBOrdering {
	ordering := new(Ordering)
	ordering.Bind(ctx)
	return ordering.Orderings
}

// bindFilter binds the query params to filter. Malformed params are a client error.
func bindFilter(ctx echo.Context, filter interface{}) error {
	if err := ctx.Bind(filter); err != nil {
		return core.NewValidationError(errors.New("invalid query parameters"))
	}
	return nil
}

type DestroyMultipleRequest struct {
	IDs []string `query:"id"`
}

// bindIDs returns the ids listed in ?id=; ctxUserID, if given, may not be one of them.
func bindIDs(ctx echo.Context, ctxUserID ...string) ([]string, error) {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return nil, errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	query.IDs = core.CleanStrings(query.IDs, true /* lower */)
	if len(ctxUserID) > 0 && core.StringIn(ctxUserID[0], query.IDs) {
		return nil, errHttpForbidden
	}
	return query.IDs, nil
}
