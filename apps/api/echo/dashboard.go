package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/talenttune/talenttune/core/tenancy"
	"github.com/talenttune/talenttune/core/user"
)

type dashboardApi struct {
	s *server
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *server) {
	api := dashboardApi{s: s}

	// the full tenant pipeline: authenticate, hydrate the user, resolve
	// the tenant, check membership, then the billing gate
	g.GET("/dashboard", api.dashboard,
		jwt, s.loadContextUser(), s.institutionContext(),
		withRouteName("dashboard"),
		s.ensureInstitutionAccess(), s.ensureSubscriptionActive())

	g.GET("/admin/dashboard", api.adminDashboard,
		jwt, s.loadContextUser(),
		withRouteName("admin.dashboard"),
		s.adminMiddleware())
}

// dashboard returns the tenant-scoped landing data for whichever portal
// the user's role maps to.
func (api *dashboardApi) dashboard(ctx echo.Context) error {
	ctxUsr, err := api.s.jwt.getContextUser(ctx, api.s.opts.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res := echo.Map{"user": ctxUsr, "portal": portalFor(ctxUsr)}
	if inst := getContextInstitution(ctx); inst != nil {
		res["institution"] = InstitutionBranding{
			Name:         inst.Name,
			Slug:         inst.Slug,
			PrimaryColor: inst.PrimaryColor,
		}
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *dashboardApi) adminDashboard(ctx echo.Context) error {
	insts, err := api.s.opts.InstitutionSvc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying institutions")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"institutions": insts})
}

func portalFor(usr user.User) string {
	switch usr.Role {
	case user.RolePlatformAdmin:
		return tenancy.PlatformAdminLanding
	case user.RoleInstitutionAdmin:
		return "/institution/dashboard"
	case user.RoleLecturer:
		return "/lecturer/dashboard"
	default:
		return "/student/dashboard"
	}
}
