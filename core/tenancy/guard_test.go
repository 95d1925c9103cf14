package tenancy_test

import (
	"context"
	"testing"

	"github.com/talenttune/talenttune/core/institution"
	"github.com/talenttune/talenttune/core/tenancy"
	"github.com/talenttune/talenttune/core/user"
)

func TestGuardAuthorize(t *testing.T) {
	ctx := context.Background()
	repo := newInstitutionRepo(t)
	guard := tenancy.NewGuard(testConfig(), repo)

	acme := seedInstitution(t, repo, "acme", "", true, institution.SubscriptionActive)
	beta := seedInstitution(t, repo, "beta", "", true, institution.SubscriptionActive)

	admin := &user.User{ID: 99, Role: user.RolePlatformAdmin, IsActive: true}

	t.Run("unauthenticated is denied", func(t *testing.T) {
		d, err := guard.Authorize(ctx, tenancy.RequestContext{Host: "acme.talenttune.com", Institution: &acme})
		if err != nil {
			t.Fatal(err)
		}
		if d.Action != tenancy.ActionDeny {
			t.Errorf("got %+v; want deny", d)
		}
	})

	t.Run("platform admin passes everywhere", func(t *testing.T) {
		for _, rc := range []tenancy.RequestContext{
			{Host: "acme.talenttune.com", Institution: &acme, User: admin},
			{Host: "beta.talenttune.com", Institution: &beta, User: admin},
			{Host: "talenttune.com", User: admin},
		} {
			d, err := guard.Authorize(ctx, rc)
			if err != nil {
				t.Fatal(err)
			}
			if d.Action != tenancy.ActionAllow {
				t.Errorf("host %s: got %+v; want allow", rc.Host, d)
			}
		}
	})

	t.Run("platform-admin routes need no tenant", func(t *testing.T) {
		rc := tenancy.RequestContext{
			Host:      "talenttune.com",
			RouteName: "admin.institutions",
			User:      memberOf(acme, user.RoleLecturer),
		}
		d, err := guard.Authorize(ctx, rc)
		if err != nil {
			t.Fatal(err)
		}
		if d.Action != tenancy.ActionAllow {
			t.Errorf("got %+v; want allow", d)
		}
	})

	t.Run("cross-tenant access is denied", func(t *testing.T) {
		rc := tenancy.RequestContext{
			Host:        "acme.talenttune.com",
			Institution: &acme,
			User:        memberOf(beta, user.RoleStudent),
		}
		d, err := guard.Authorize(ctx, rc)
		if err != nil {
			t.Fatal(err)
		}
		if d.Action != tenancy.ActionDeny {
			t.Errorf("got %+v; want deny", d)
		}
		if d.Reason == "" {
			t.Error("deny should carry a reason")
		}
	})

	t.Run("member without tenant context is sent home, path preserved", func(t *testing.T) {
		rc := tenancy.RequestContext{
			Host:   "www.talenttune.com",
			Scheme: "https",
			Path:   "/courses/42",
			User:   memberOf(acme, user.RoleLecturer),
		}
		d, err := guard.Authorize(ctx, rc)
		if err != nil {
			t.Fatal(err)
		}
		if d.Action != tenancy.ActionRedirect {
			t.Fatalf("got %+v; want redirect", d)
		}
		want := "https://acme.talenttune.com/courses/42"
		if d.Location != want {
			t.Errorf("location = %q; want %q", d.Location, want)
		}
	})

	t.Run("member with deleted home lands on public page", func(t *testing.T) {
		ghost := &user.User{ID: 7, Role: user.RoleStudent, IsActive: true}
		ghost.InstitutionID = memberOf(acme, user.RoleStudent).InstitutionID
		if err := repo.DeleteInstitutionsByID(ctx, acme.ID); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { acme = seedInstitution(t, repo, "acme", "", true, institution.SubscriptionActive) })

		d, err := guard.Authorize(ctx, tenancy.RequestContext{Host: "www.talenttune.com", User: ghost})
		if err != nil {
			t.Fatal(err)
		}
		if d.Action != tenancy.ActionRedirect || d.Location != "/" {
			t.Errorf("got %+v; want redirect to /", d)
		}
	})

	t.Run("member inside their tenant is allowed", func(t *testing.T) {
		rc := tenancy.RequestContext{
			Host:        "beta.talenttune.com",
			Institution: &beta,
			User:        memberOf(beta, user.RoleStudent),
		}
		d, err := guard.Authorize(ctx, rc)
		if err != nil {
			t.Fatal(err)
		}
		if d.Action != tenancy.ActionAllow {
			t.Errorf("got %+v; want allow", d)
		}
	})
}
