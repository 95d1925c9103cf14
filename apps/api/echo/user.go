package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/talenttune/talenttune/core/user"
)

type userApi struct {
	s *server
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *server) {
	api := userApi{s: s}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/password-reset", api.resetPassword)
	ug.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.POST("", api.create, s.institutionAdminMiddleware())
	ag.GET("", api.query, s.institutionAdminMiddleware())
	ag.DELETE("", api.destroyMultiple, s.adminMiddleware())
	ag.GET("/roles", api.queryRoles, s.institutionAdminMiddleware())

	// detail endpoints
	dg := ag.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, s.adminMiddleware())
}

// canManage reports whether ctxUsr may act on usr: platform admins may
// act on anyone, institution admins on members of their institution,
// everyone on themselves.
func canManage(ctxUsr, usr user.User) bool {
	if ctxUsr.ID == usr.ID || ctxUsr.IsPlatformAdmin() {
		return true
	}
	return ctxUsr.IsInstitutionAdmin() && ctxUsr.InstitutionID.Valid && usr.BelongsTo(ctxUsr.InstitutionID.Int)
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}

	ctxUsr, err := api.s.jwt.getContextUser(ctx, api.s.opts.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	// institution admins only create users inside their own institution,
	// and never other admins
	if !ctxUsr.IsPlatformAdmin() {
		if data.Role == user.RolePlatformAdmin || data.Role == user.RoleInstitutionAdmin {
			return errHttpForbidden
		}
		if ctxUsr.InstitutionID.Valid {
			instID := ctxUsr.InstitutionID.Int
			data.InstitutionID = &instID
		}
	}

	if err = data.Validate(ctx.Request().Context(), api.s.opts.UserSvc); err != nil {
		return err
	}

	usr, err := api.s.opts.UserSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

// query lists users: platform admins see everyone, institution admins
// only their own institution's members.
func (api *userApi) query(ctx echo.Context) error {
	ctxUsr, err := api.s.jwt.getContextUser(ctx, api.s.opts.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var users []user.User
	if ctxUsr.IsPlatformAdmin() {
		users, err = api.s.opts.UserSvc.QueryAll(ctx.Request().Context())
	} else if ctxUsr.InstitutionID.Valid {
		users, err = api.s.opts.UserSvc.QueryByInstitution(ctx.Request().Context(), ctxUsr.InstitutionID.Int)
	}
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.AllRoles)
}

func (api *userApi) getObject(ctx echo.Context) (user.User, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return user.User{}, errHttpNotFound
	}
	usr, err := api.s.opts.UserSvc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errHttpNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return usr, nil
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := api.getObject(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := api.s.jwt.getContextUser(ctx, api.s.opts.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !canManage(ctxUsr, usr) {
		return errHttpForbidden
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, err := api.getObject(ctx)
	if err != nil {
		return err
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	ctxUsr, err := api.s.jwt.getContextUser(ctx, api.s.opts.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !canManage(ctxUsr, usr) {
		return errHttpForbidden
	}
	if ctxUsr.ID == usr.ID && !ctxUsr.IsPlatformAdmin() {
		// `IsActive` and `Email` can only be changed by an admin
		if data.IsActive != nil || data.Email != "" {
			return errHttpForbidden
		}
	}

	if err = data.Validate(ctx.Request().Context(), usr, api.s.opts.UserSvc); err != nil {
		return err
	}

	usr, err = api.s.opts.UserSvc.Update(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, err := api.getObject(ctx)
	if err != nil {
		return err
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	ctxUsr, err := api.s.jwt.getContextUser(ctx, api.s.opts.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	if err = api.s.opts.UserSvc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	ctxUsr, err := api.s.jwt.getContextUser(ctx, api.s.opts.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	for _, id := range query.IDs {
		if id == ctxUsr.ID {
			return errHttpForbidden
		}
	}

	if err = api.s.opts.UserSvc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.s.opts.UserSvc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.s.opts.UserSvc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}
