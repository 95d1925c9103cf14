package tenancy

import (
	"context"
	"fmt"
	"strings"

	"github.com/talenttune/talenttune/core"
	"github.com/talenttune/talenttune/core/institution"
)

// Action is the outcome class of an authorization check.
type Action int

const (
	ActionAllow Action = iota
	ActionRedirect
	ActionDeny
)

// Decision is a tagged authorization result the request pipeline
// interprets uniformly: pass through, redirect, or reject. Keeping
// authorization as a value instead of aborting mid-handler makes the
// rules testable without an HTTP stack.
type Decision struct {
	Action   Action
	Location string // redirect target, when Action == ActionRedirect
	Reason   string // user-facing message, when Action == ActionDeny
}

func Allow() Decision                { return Decision{Action: ActionAllow} }
func RedirectTo(url string) Decision { return Decision{Action: ActionRedirect, Location: url} }
func Deny(reason string) Decision    { return Decision{Action: ActionDeny, Reason: reason} }

// IsPlatformAdminRoute reports whether the route lives in the
// platform-admin area, which never requires institution context.
func IsPlatformAdminRoute(routeName string) bool {
	return strings.HasPrefix(routeName, "admin.")
}

// Guard enforces that the authenticated user's institution membership
// matches the resolved institution. Stateless; re-evaluated on every
// tenant-scoped request.
type Guard struct {
	conf *core.Config
	repo institution.Repository
}

func NewGuard(conf *core.Config, repo institution.Repository) *Guard {
	return &Guard{conf: conf, repo: repo}
}

// Authorize applies the access rules in order:
// unauthenticated -> deny; platform admin or platform-admin route ->
// allow; membership mismatch -> deny; member with no tenant context ->
// redirect home (their subdomain, preserving the path); otherwise allow.
func (g *Guard) Authorize(ctx context.Context, rc RequestContext) (Decision, error) {
	usr := rc.User
	if usr == nil {
		return Deny("authentication required"), nil
	}

	if usr.IsPlatformAdmin() {
		return Allow(), nil
	}

	if IsPlatformAdminRoute(rc.RouteName) {
		return Allow(), nil
	}

	if rc.Institution != nil && !usr.BelongsTo(rc.Institution.ID) {
		return Deny("you do not have access to this institution"), nil
	}

	if rc.Institution == nil && usr.InstitutionID.Valid {
		home, err := g.repo.GetInstitutionByID(ctx, usr.InstitutionID.Int)
		if err == institution.ErrNotFound {
			return RedirectTo("/"), nil
		}
		if err != nil {
			return Decision{}, err
		}

		baseDomain := g.conf.Domain.BaseDomainFor(rc.Host)
		scheme := rc.Scheme
		if scheme == "" {
			scheme = "https"
		}
		return RedirectTo(fmt.Sprintf("%s://%s.%s%s", scheme, home.Slug, baseDomain, rc.Path)), nil
	}

	return Allow(), nil
}
