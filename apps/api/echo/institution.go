package echoapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/talenttune/talenttune/core"
	"github.com/talenttune/talenttune/core/institution"
	"github.com/talenttune/talenttune/core/tenancy"
)

type institutionApi struct {
	s *server
}

func registerInstitutionAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *server) {
	api := institutionApi{s: s}

	ig := g.Group("/institutions")

	// public self-registration; the new tenant stays inactive until a
	// platform admin activates it
	ig.POST("/register", api.register)

	// platform admin management
	ag := ig.Group("", jwt, s.adminMiddleware())
	ag.GET("", api.query)
	ag.DELETE("", api.destroyMultiple)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.POST("/:id/activate", api.activate)

	// subscription completion, reachable pre-subscription by design
	sg := g.Group("/institution/complete-subscription",
		jwt, s.loadContextUser(), s.institutionAdminMiddleware(), s.institutionContext())
	sg.GET("", api.completeSubscription, withRouteName(tenancy.RouteCompleteSubscription))
	sg.POST("/checkout", api.checkout, withRouteName(tenancy.RouteCompleteSubscriptionCheckout))

	// billing callbacks
	g.GET("/subscription/success", api.subscriptionSuccess)
	g.POST("/webhooks/stripe", api.stripeWebhook)
}

func (api *institutionApi) register(ctx echo.Context) error {
	var data institution.NewInstitution
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInstitution")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	inst, err := api.s.opts.InstitutionSvc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering institution")
	}
	return ctx.JSON(http.StatusCreated, inst)
}

func (api *institutionApi) query(ctx echo.Context) error {
	insts, err := api.s.opts.InstitutionSvc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying institutions")
	}
	return ctx.JSON(http.StatusOK, insts)
}

func (api *institutionApi) retrieve(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	inst, err := api.s.opts.InstitutionSvc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == institution.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting institution")
	}
	return ctx.JSON(http.StatusOK, inst)
}

func (api *institutionApi) update(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	var data institution.UpdateInstitution
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateInstitution")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	inst, err := api.s.opts.InstitutionSvc.Update(ctx.Request().Context(), id, data, ctx.Request().Host)
	if err != nil {
		if errors.Cause(err) == institution.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating institution")
	}
	return ctx.JSON(http.StatusOK, inst)
}

func (api *institutionApi) activate(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	if err = api.s.opts.InstitutionSvc.Activate(ctx.Request().Context(), id, ctx.Request().Host); err != nil {
		if errors.Cause(err) == institution.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "activating institution")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Institution activated."})
}

func (api *institutionApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.s.opts.InstitutionSvc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting institutions")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// completeSubscription returns the completion page data; an already
// subscribed institution is bounced straight to its dashboard.
func (api *institutionApi) completeSubscription(ctx echo.Context) error {
	inst := getContextInstitution(ctx)
	if inst == nil {
		return errHttpForbidden
	}
	if inst.IsSubscribed() {
		return ctx.Redirect(http.StatusFound, "/dashboard")
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"institution": InstitutionBranding{Name: inst.Name, Slug: inst.Slug, PrimaryColor: inst.PrimaryColor},
	})
}

func (api *institutionApi) checkout(ctx echo.Context) error {
	inst := getContextInstitution(ctx)
	if inst == nil {
		return errHttpForbidden
	}
	if inst.IsSubscribed() {
		return ctx.Redirect(http.StatusFound, "/dashboard")
	}

	rc := api.s.requestContext(ctx)
	scheme := rc.Scheme
	if scheme == "" {
		scheme = "https"
	}
	origin := fmt.Sprintf("%s://%s", scheme, ctx.Request().Host)
	successURL := origin + "/v1/subscription/success?session_id={CHECKOUT_SESSION_ID}"
	cancelURL := origin + tenancy.CompleteSubscriptionPath

	url, err := api.s.opts.Billing.CreateCheckoutSession(ctx.Request().Context(), *inst, successURL, cancelURL)
	if err != nil {
		return errors.Wrap(err, "creating checkout session")
	}
	return ctx.JSON(http.StatusOK, CheckoutResponse{URL: url})
}

// subscriptionSuccess is the browser's return leg from checkout. The
// webhook is authoritative; this leg just confirms eagerly so the user
// does not stare at a pending page.
func (api *institutionApi) subscriptionSuccess(ctx echo.Context) error {
	sessionID := ctx.QueryParam("session_id")
	if sessionID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "session_id", Error: "this field is required"})
	}

	instID, err := api.s.opts.Billing.ConfirmCheckoutSession(ctx.Request().Context(), sessionID)
	if err != nil {
		return errors.Wrap(err, "confirming checkout session")
	}
	if err = api.s.opts.InstitutionSvc.ActivateSubscription(ctx.Request().Context(), instID); err != nil {
		return errors.Wrap(err, "activating subscription")
	}
	return ctx.Redirect(http.StatusFound, "/dashboard")
}

func (api *institutionApi) stripeWebhook(ctx echo.Context) error {
	payload, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading webhook payload")
	}

	event, err := api.s.opts.Billing.VerifyWebhook(payload, ctx.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid webhook signature")
	}

	if event.Type == "checkout.session.completed" {
		instID, err := api.s.opts.Billing.InstitutionFromEvent(event)
		if err != nil {
			api.s.opts.Logger.Warn(fmt.Sprintf("stripe webhook: %v", err))
			return ctx.NoContent(http.StatusOK)
		}
		if err = api.s.opts.InstitutionSvc.ActivateSubscription(ctx.Request().Context(), instID); err != nil {
			return errors.Wrap(err, "activating subscription")
		}
	}
	return ctx.NoContent(http.StatusOK)
}
