package tenancy

import (
	"context"

	"github.com/talenttune/talenttune/core"
	"github.com/talenttune/talenttune/core/institution"
)

// Resolver determines the current institution for a request.
//
// Precedence (first match wins): tenant already attached to the request
// context, non-reserved subdomain, exact custom-domain match, route slug,
// then the authenticated user's home institution (active only). Subdomain
// deliberately outranks the user's home institution so that a user
// visiting another institution's subdomain is resolved into that
// institution's context, not their own.
type Resolver struct {
	conf *core.Config
	repo institution.Repository
}

func NewResolver(conf *core.Config, repo institution.Repository) *Resolver {
	return &Resolver{conf: conf, repo: repo}
}

// Resolve returns the request's institution, or nil when none matches.
// Storage failures propagate; missing rows do not.
func (r *Resolver) Resolve(ctx context.Context, rc RequestContext) (*institution.Institution, error) {
	return r.resolve(ctx, rc, false)
}

// ResolveActive is Resolve restricted to active institutions.
func (r *Resolver) ResolveActive(ctx context.Context, rc RequestContext) (*institution.Institution, error) {
	return r.resolve(ctx, rc, true)
}

func (r *Resolver) resolve(ctx context.Context, rc RequestContext, onlyActive bool) (*institution.Institution, error) {
	// 1. already attached earlier in the pipeline; returned as-is
	if rc.Institution != nil {
		return rc.Institution, nil
	}

	bySlug := r.repo.GetInstitutionBySlug
	byDomain := r.repo.GetInstitutionByDomain
	if onlyActive {
		bySlug = r.repo.GetActiveInstitutionBySlug
		byDomain = r.repo.GetActiveInstitutionByDomain
	}

	// 2. subdomain, unless reserved
	sub := core.ExtractSubdomain(rc.Host, r.conf.Domain.LocalTLD)
	if sub != "" && !r.conf.Domain.IsReservedSubdomain(sub) {
		inst, err := bySlug(ctx, sub)
		if err == nil {
			return &inst, nil
		}
		if err != institution.ErrNotFound {
			return nil, err
		}
	}

	// 3. custom domain, exact host match
	if rc.Host != "" {
		inst, err := byDomain(ctx, rc.Host)
		if err == nil {
			return &inst, nil
		}
		if err != institution.ErrNotFound {
			return nil, err
		}
	}

	// 4. slug carried in the route path
	if rc.RouteSlug != "" {
		inst, err := bySlug(ctx, rc.RouteSlug)
		if err == nil {
			return &inst, nil
		}
		if err != institution.ErrNotFound {
			return nil, err
		}
	}

	// 5. the user's home institution, active only
	if rc.User != nil && rc.User.InstitutionID.Valid {
		inst, err := r.repo.GetActiveInstitutionByID(ctx, rc.User.InstitutionID.Int)
		if err == nil {
			return &inst, nil
		}
		if err != institution.ErrNotFound {
			return nil, err
		}
	}

	return nil, nil
}
