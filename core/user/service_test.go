package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/talenttune/talenttune/core"
	"github.com/talenttune/talenttune/core/user"
	emailsvc "github.com/talenttune/talenttune/services/email"
	dummydb "github.com/talenttune/talenttune/storage/database/dummy"
)

func testConfig() *core.Config {
	return &core.Config{
		AppName:                   "TalentTune",
		SecretKey:                 []byte("test-secret"),
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
	}
}

func setupService(t *testing.T) (user.Service, user.Repository) {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatal(err)
	}
	conf := testConfig()
	repo := dummydb.NewUserRepository(db)
	return user.NewService(conf, repo, emailsvc.NewConsoleServiceMock(conf)), repo
}

func TestEnsureInstitutionAdmin(t *testing.T) {
	ctx := context.Background()
	const instID = 1

	t.Run("creates a fresh admin", func(t *testing.T) {
		svc, repo := setupService(t)
		if err := svc.EnsureInstitutionAdmin(ctx, instID, "Jane Doe", "jane@acme.edu", "secret-pw"); err != nil {
			t.Fatal(err)
		}
		admin, err := repo.GetInstitutionAdmin(ctx, instID)
		if err != nil {
			t.Fatal(err)
		}
		if admin.Role != user.RoleInstitutionAdmin || !admin.IsActive {
			t.Errorf("unexpected admin %+v", admin)
		}
		if err = admin.CheckPassword("secret-pw"); err != nil {
			t.Error("password should match")
		}
	})

	t.Run("re-keys an existing admin instead of duplicating", func(t *testing.T) {
		svc, repo := setupService(t)
		if err := svc.EnsureInstitutionAdmin(ctx, instID, "Jane", "jane@acme.edu", "first-pw"); err != nil {
			t.Fatal(err)
		}
		if err := svc.EnsureInstitutionAdmin(ctx, instID, "Jane", "other@acme.edu", "second-pw"); err != nil {
			t.Fatal(err)
		}
		users, err := repo.QueryUsersByInstitution(ctx, instID)
		if err != nil {
			t.Fatal(err)
		}
		if len(users) != 1 {
			t.Fatalf("got %d users; want 1", len(users))
		}
		if err = users[0].CheckPassword("second-pw"); err != nil {
			t.Error("existing admin should carry the new password")
		}
	})

	t.Run("promotes an existing user with the activation email", func(t *testing.T) {
		svc, repo := setupService(t)
		existing := user.User{Name: "Jane", Email: "jane@acme.edu", Role: user.RoleLecturer, IsActive: true}
		if err := existing.SetPassword("old-pw"); err != nil {
			t.Fatal(err)
		}
		if _, err := repo.CreateUser(ctx, existing); err != nil {
			t.Fatal(err)
		}

		if err := svc.EnsureInstitutionAdmin(ctx, instID, "Jane", "jane@acme.edu", "new-pw"); err != nil {
			t.Fatal(err)
		}
		promoted, err := repo.GetUserByEmail(ctx, "jane@acme.edu")
		if err != nil {
			t.Fatal(err)
		}
		if promoted.Role != user.RoleInstitutionAdmin {
			t.Errorf("role = %q; want institution admin", promoted.Role)
		}
		if !promoted.BelongsTo(instID) {
			t.Error("promoted user should belong to the institution")
		}
	})
}

func TestCheckEmailUniqueness(t *testing.T) {
	ctx := context.Background()
	svc, repo := setupService(t)

	existing := user.User{Name: "Jane", Email: "jane@acme.edu", Role: user.RoleLecturer, IsActive: true}
	existing, err := repo.CreateUser(ctx, existing)
	if err != nil {
		t.Fatal(err)
	}

	if err = svc.CheckEmailUniqueness(ctx, "jane@acme.edu"); err == nil {
		t.Error("expected a duplicate email error")
	}
	if err = svc.CheckEmailUniqueness(ctx, "jane@acme.edu", existing); err != nil {
		t.Errorf("self-exclusion should pass, got %v", err)
	}
	if err = svc.CheckEmailUniqueness(ctx, "new@acme.edu"); err != nil {
		t.Errorf("fresh email should pass, got %v", err)
	}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	instID := 3
	usr, err := svc.Create(ctx, user.NewUser{
		Name:            "Sam Student",
		Email:           "sam@acme.edu",
		Role:            user.RoleStudent,
		InstitutionID:   &instID,
		Password:        "pw123456",
		PasswordConfirm: "pw123456",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !usr.IsActive {
		t.Error("new users start active")
	}
	if !usr.BelongsTo(instID) {
		t.Error("institution should be attached")
	}
	if err = usr.CheckPassword("pw123456"); err != nil {
		t.Error("password should match")
	}
	if usr.InstitutionID != null.IntFrom(instID) {
		t.Errorf("institution id = %+v", usr.InstitutionID)
	}
}
