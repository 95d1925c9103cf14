package tenancy_test

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/talenttune/talenttune/core"
	"github.com/talenttune/talenttune/core/institution"
	"github.com/talenttune/talenttune/core/tenancy"
	"github.com/talenttune/talenttune/core/user"
	dummydb "github.com/talenttune/talenttune/storage/database/dummy"
)

func testConfig() *core.Config {
	return &core.Config{
		Domain: core.DomainConfig{
			ReservedSubdomains: []string{"www", "app", "talenttune"},
			LocalTLD:           ".test",
		},
	}
}

func newInstitutionRepo(t *testing.T) institution.Repository {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatal(err)
	}
	return dummydb.NewInstitutionRepository(db)
}

func seedInstitution(t *testing.T, repo institution.Repository, slug, domain string, active bool, subStatus string) institution.Institution {
	t.Helper()
	now := time.Now().UTC()
	inst := institution.Institution{
		Name:               slug,
		Slug:               slug,
		SubscriptionStatus: subStatus,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if domain != "" {
		inst.Domain = null.StringFrom(domain)
	}
	inst, err := repo.CreateInstitution(context.Background(), inst)
	if err != nil {
		t.Fatal(err)
	}
	if active {
		if _, err = repo.ActivateInstitution(context.Background(), inst.ID); err != nil {
			t.Fatal(err)
		}
		inst.IsActive = true
	}
	return inst
}

func memberOf(inst institution.Institution, role string) *user.User {
	return &user.User{
		ID:            1,
		Role:          role,
		InstitutionID: null.IntFrom(inst.ID),
		IsActive:      true,
	}
}

func TestResolver(t *testing.T) {
	ctx := context.Background()
	repo := newInstitutionRepo(t)
	resolver := tenancy.NewResolver(testConfig(), repo)

	acme := seedInstitution(t, repo, "acme", "", true, institution.SubscriptionActive)
	custom := seedInstitution(t, repo, "northfield", "portal.northfield.edu", true, institution.SubscriptionActive)
	dormant := seedInstitution(t, repo, "dormant", "", false, institution.SubscriptionNone)

	t.Run("attached institution wins", func(t *testing.T) {
		rc := tenancy.RequestContext{Host: "northfield.talenttune.com", Institution: &acme}
		got, err := resolver.Resolve(ctx, rc)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.ID != acme.ID {
			t.Errorf("got %+v; want attached institution %d", got, acme.ID)
		}
	})

	t.Run("subdomain resolves to slug", func(t *testing.T) {
		got, err := resolver.Resolve(ctx, tenancy.RequestContext{Host: "acme.talenttune.com"})
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.ID != acme.ID {
			t.Errorf("got %+v; want %d", got, acme.ID)
		}
	})

	t.Run("local development host resolves", func(t *testing.T) {
		got, err := resolver.Resolve(ctx, tenancy.RequestContext{Host: "acme.test"})
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.ID != acme.ID {
			t.Errorf("got %+v; want %d", got, acme.ID)
		}
	})

	t.Run("reserved subdomain does not resolve", func(t *testing.T) {
		got, err := resolver.Resolve(ctx, tenancy.RequestContext{Host: "www.talenttune.com"})
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Errorf("got %+v; want nil", got)
		}
	})

	t.Run("custom domain resolves by exact host", func(t *testing.T) {
		got, err := resolver.Resolve(ctx, tenancy.RequestContext{Host: "portal.northfield.edu"})
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.ID != custom.ID {
			t.Errorf("got %+v; want %d", got, custom.ID)
		}
	})

	t.Run("route slug resolves", func(t *testing.T) {
		got, err := resolver.Resolve(ctx, tenancy.RequestContext{Host: "talenttune.com", RouteSlug: "acme"})
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.ID != acme.ID {
			t.Errorf("got %+v; want %d", got, acme.ID)
		}
	})

	t.Run("subdomain outranks user's home institution", func(t *testing.T) {
		rc := tenancy.RequestContext{Host: "acme.talenttune.com", User: memberOf(custom, user.RoleLecturer)}
		got, err := resolver.Resolve(ctx, rc)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.ID != acme.ID {
			t.Errorf("got %+v; want visited institution %d", got, acme.ID)
		}
	})

	t.Run("user's home institution is the last resort", func(t *testing.T) {
		rc := tenancy.RequestContext{Host: "talenttune.com", User: memberOf(custom, user.RoleLecturer)}
		got, err := resolver.Resolve(ctx, rc)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.ID != custom.ID {
			t.Errorf("got %+v; want home institution %d", got, custom.ID)
		}
	})

	t.Run("inactive home institution does not resolve", func(t *testing.T) {
		rc := tenancy.RequestContext{Host: "talenttune.com", User: memberOf(dormant, user.RoleLecturer)}
		got, err := resolver.Resolve(ctx, rc)
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Errorf("got %+v; want nil", got)
		}
	})

	t.Run("ResolveActive skips inactive subdomain", func(t *testing.T) {
		got, err := resolver.ResolveActive(ctx, tenancy.RequestContext{Host: "dormant.talenttune.com"})
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Errorf("got %+v; want nil", got)
		}
	})

	t.Run("Resolve still sees inactive subdomain", func(t *testing.T) {
		got, err := resolver.Resolve(ctx, tenancy.RequestContext{Host: "dormant.talenttune.com"})
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.ID != dormant.ID {
			t.Errorf("got %+v; want %d", got, dormant.ID)
		}
	})

	t.Run("nothing matches", func(t *testing.T) {
		got, err := resolver.Resolve(ctx, tenancy.RequestContext{Host: "talenttune.com"})
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Errorf("got %+v; want nil", got)
		}
	})
}
