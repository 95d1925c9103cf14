package core

import (
	"net"
	"strings"
)

// Host parsing for tenant subdomain routing. Pure string logic; hosts
// are treated as dot-separated labels (IP addresses are not special-cased).

// SplitHostPort drops the port from a host header value, if any.
func SplitHostPort(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return hostport
}

// ExtractSubdomain returns the leading label of host when host is a
// subdomain host, else "".
//
// A host with three or more labels always has a subdomain
// ("acme.talenttune.com" -> "acme"). A two-label host only counts when it
// ends with the local development TLD ("acme.test" -> "acme"). Bare apex
// domains and single-label hosts ("localhost") have none.
func ExtractSubdomain(host, localTLD string) string {
	parts := strings.Split(host, ".")
	if len(parts) >= 3 {
		return parts[0]
	}
	if len(parts) == 2 && localTLD != "" && strings.HasSuffix(host, localTLD) {
		return parts[0]
	}
	return ""
}

// DeriveBaseDomain returns the apex domain of host: the last two labels,
// except that a two-label local-TLD host is its own base domain
// ("acme.test" -> "acme.test", "app.acme.test" -> "acme.test").
// Single-label hosts are returned unchanged.
func DeriveBaseDomain(host, localTLD string) string {
	parts := strings.Split(host, ".")
	if localTLD != "" && strings.HasSuffix(host, localTLD) && len(parts) == 2 {
		return host
	}
	if len(parts) >= 2 {
		return strings.Join(parts[len(parts)-2:], ".")
	}
	return host
}

// BaseDomainFor returns the configured base domain when set, otherwise
// the one derived from host.
func (c DomainConfig) BaseDomainFor(host string) string {
	if c.BaseDomain != "" {
		return c.BaseDomain
	}
	return DeriveBaseDomain(host, c.LocalTLD)
}
