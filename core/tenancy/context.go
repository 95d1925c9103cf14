// Package tenancy resolves which institution a request addresses and
// decides whether the requesting user may act inside it.
package tenancy

import (
	"github.com/talenttune/talenttune/core/institution"
	"github.com/talenttune/talenttune/core/user"
)

// RequestContext carries the request facts tenant resolution reads. It is
// built once per request and passed by value; the resolved Institution is
// attached once and never re-resolved mid-request, so every downstream
// authorization decision sees the same tenant.
type RequestContext struct {
	Host      string // request host, without port
	Scheme    string // "http" or "https"
	Path      string // request path, used when redirecting across subdomains
	RouteName string // dot-separated route identifier (e.g. "admin.institutions")
	RouteSlug string // institution slug carried in the path, when the route has one

	Institution *institution.Institution // tenant attached earlier in the pipeline, if any
	User        *user.User               // authenticated principal, if any
}

// WithInstitution returns a copy with the resolved tenant attached.
func (rc RequestContext) WithInstitution(inst *institution.Institution) RequestContext {
	rc.Institution = inst
	return rc
}

// WithUser returns a copy with the authenticated principal attached.
func (rc RequestContext) WithUser(usr *user.User) RequestContext {
	rc.User = usr
	return rc
}
