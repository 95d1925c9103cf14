package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/talenttune/talenttune/core"
	"github.com/talenttune/talenttune/core/institution"
	"github.com/talenttune/talenttune/core/tenancy"
	"github.com/talenttune/talenttune/core/user"
)

var contextRouteNameKey = "routeName"

// withRouteName tags requests with the dot-separated route identifier
// tenant decisions key off.
func withRouteName(name string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctx.Set(contextRouteNameKey, name)
			return next(ctx)
		}
	}
}

func getContextRouteName(ctx echo.Context) string {
	if name, ok := ctx.Get(contextRouteNameKey).(string); ok {
		return name
	}
	return ""
}

func getContextInstitution(ctx echo.Context) *institution.Institution {
	if inst, ok := ctx.Get(contextInstitutionKey).(*institution.Institution); ok {
		return inst
	}
	return nil
}

// requestContext assembles the tenancy facts for the current request:
// host (port stripped), scheme, path, route identifiers, plus whatever
// user and institution earlier middleware attached.
func (s *server) requestContext(ctx echo.Context) tenancy.RequestContext {
	rc := tenancy.RequestContext{
		Host:      core.SplitHostPort(ctx.Request().Host),
		Scheme:    ctx.Scheme(),
		Path:      ctx.Request().URL.Path,
		RouteName: getContextRouteName(ctx),
		RouteSlug: ctx.Param("slug"),
	}
	if inst := getContextInstitution(ctx); inst != nil {
		rc.Institution = inst
	}
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		rc.User = &usr
	}
	return rc
}

// institutionContext resolves the request's institution once and attaches
// it; downstream middleware and handlers read the attached value and
// never re-resolve.
func (s *server) institutionContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			inst, err := s.resolver.ResolveActive(ctx.Request().Context(), s.requestContext(ctx))
			if err != nil {
				return errors.Wrap(err, "resolving institution")
			}
			if inst != nil {
				ctx.Set(contextInstitutionKey, inst)
			}
			return next(ctx)
		}
	}
}

// loadContextUser hydrates the JWT principal into the context so the
// tenant guards can see it. Must run after the JWT middleware.
func (s *server) loadContextUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := s.jwt.getContextUser(ctx, s.opts.UserSvc); err != nil {
				return errUnauthorized
			}
			return next(ctx)
		}
	}
}

// ensureInstitutionAccess interprets the access guard's decision:
// allow passes through, redirect answers 302, deny answers 403.
func (s *server) ensureInstitutionAccess() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			decision, err := s.guard.Authorize(ctx.Request().Context(), s.requestContext(ctx))
			if err != nil {
				return errors.Wrap(err, "authorizing institution access")
			}
			switch decision.Action {
			case tenancy.ActionRedirect:
				return ctx.Redirect(http.StatusFound, decision.Location)
			case tenancy.ActionDeny:
				return echo.NewHTTPError(http.StatusForbidden, decision.Reason)
			}
			return next(ctx)
		}
	}
}

// ensureSubscriptionActive applies the billing gate after access checks.
func (s *server) ensureSubscriptionActive() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			decision := s.subGate.Check(s.requestContext(ctx))
			switch decision.Action {
			case tenancy.ActionRedirect:
				return ctx.Redirect(http.StatusFound, decision.Location)
			case tenancy.ActionDeny:
				return echo.NewHTTPError(http.StatusForbidden, decision.Reason)
			}
			return next(ctx)
		}
	}
}

// adminMiddleware restricts a route to platform admins.
func (s *server) adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.Role == user.RolePlatformAdmin {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// institutionAdminMiddleware restricts a route to institution admins (and
// platform admins).
func (s *server) institutionAdminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.Role == user.RoleInstitutionAdmin || claims.Role == user.RolePlatformAdmin {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
