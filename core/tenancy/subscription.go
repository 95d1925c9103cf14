package tenancy

// Route names the pipeline keys decisions off.
const (
	RouteHome = "home"

	RouteCompleteSubscription         = "institution.complete-subscription"
	RouteCompleteSubscriptionCheckout = "institution.complete-subscription.checkout"

	// CompleteSubscriptionPath is the same-origin path of the
	// subscription-completion page.
	CompleteSubscriptionPath = "/institution/complete-subscription"

	// PlatformAdminLanding is where platform admins land after login,
	// independent of any institution.
	PlatformAdminLanding = "/admin/dashboard"
)

var subscriptionExemptRoutes = map[string]struct{}{
	// the completion page and its checkout action stay reachable,
	// otherwise an unsubscribed admin could never pay
	RouteCompleteSubscription:         {},
	RouteCompleteSubscriptionCheckout: {},
}

// SubscriptionGate blocks institution admins out of tenant pages until
// their institution's billing subscription is active.
type SubscriptionGate struct{}

func NewSubscriptionGate() *SubscriptionGate {
	return &SubscriptionGate{}
}

// Check only applies to institution-admin users: everyone else passes,
// as do the allow-listed billing routes. An inactive subscription
// redirects to the completion page.
func (g *SubscriptionGate) Check(rc RequestContext) Decision {
	usr := rc.User
	if usr == nil || !usr.IsInstitutionAdmin() {
		return Allow()
	}

	if _, ok := subscriptionExemptRoutes[rc.RouteName]; ok {
		return Allow()
	}

	inst := rc.Institution
	if inst == nil || inst.IsSubscribed() {
		return Allow()
	}

	return RedirectTo(CompleteSubscriptionPath)
}
