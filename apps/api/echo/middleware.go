package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/territory"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
)

// roleMiddleware lets through the users allowed is true for.
func roleMiddleware(allowed func(usr user.User) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if allowed(usr) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(func(usr user.User) bool { return usr.IsAdmin() })
}

// teamMiddleware lets through admins and managers.
func teamMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(func(usr user.User) bool { return usr.IsAdmin() || usr.IsManager() })
}

func ownerMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(func(usr user.User) bool { return usr.IsOwner() })
}

// contextScope returns the context user and the records they may see.
func contextScope(ctx echo.Context, territories *territory.Service) (user.User, core.Scope, error) {
	usr, err := getContextUser(ctx)
	if err != nil {
		return user.User{}, core.Scope{}, errors.Wrap(err, "getting context user")
	}
	scope, err := territories.ScopeFor(ctx.Request().Context(), usr)
	if err != nil {
		return user.User{}, core.Scope{}, errors.Wrap(err, "getting user scope")
	}
	return usr, scope, nil
}

// objectMiddleware loads the object of the :id path param into the context; get returns a
// core.NotFoundError when the context user may not see it.
func objectMiddleware(get func(ctx echo.Context, id string) (interface{}, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			obj, err := get(ctx, core.CleanString(ctx.Param("id")))
			if err != nil {
				return err
			}
			ctx.Set(contextObjectKey, obj)
			return next(ctx)
		}
	}
}

const contextObjectKey = "object"

var errObjNotFoundInCtx = errors.New("object not found in echo.Context")

func contextObject[T any](ctx echo.Context) (T, error) {
	obj, ok := ctx.Get(contextObjectKey).(T)
	if !ok {
		var zero T
		return zero, errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	return obj, nil
}
