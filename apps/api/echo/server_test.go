package echoapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	echoapi "github.com/talenttune/talenttune/apps/api/echo"
	"github.com/talenttune/talenttune/core"
	"github.com/talenttune/talenttune/core/institution"
	"github.com/talenttune/talenttune/core/user"
	billingsvc "github.com/talenttune/talenttune/services/billing"
	domainsvc "github.com/talenttune/talenttune/services/domains"
	emailsvc "github.com/talenttune/talenttune/services/email"
	dummydb "github.com/talenttune/talenttune/storage/database/dummy"
)

func testConfig() *core.Config {
	return &core.Config{
		TestMode:                  true,
		Env:                       "TEST",
		AppName:                   "TalentTune",
		AppSlug:                   "talenttune",
		SecretKey:                 []byte("test-secret"),
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: time.Hour,
		},
		Domain: core.DomainConfig{
			ReservedSubdomains: []string{"www", "app", "talenttune"},
			LocalTLD:           ".test",
		},
	}
}

type testEnv struct {
	server   echoapi.Server
	usrRepo  user.Repository
	instRepo institution.Repository
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatal(err)
	}
	conf := testConfig()
	logger := core.NewStdLogger(log.New(io.Discard, "", 0))
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	usrRepo := dummydb.NewUserRepository(db)
	instRepo := dummydb.NewInstitutionRepository(db)
	usrSvc := user.NewService(conf, usrRepo, mailSvc)
	instSvc := institution.NewService(
		conf, logger, instRepo, mailSvc, domainsvc.NewDockployService(conf, logger), usrSvc)

	srv := echoapi.NewServer(&echoapi.Options{
		DisableReqLogs:  true,
		Conf:            conf,
		Logger:          logger,
		UserSvc:         usrSvc,
		InstitutionSvc:  instSvc,
		InstitutionRepo: instRepo,
		Billing:         billingsvc.NewStripeService(conf, logger),
	})
	return &testEnv{server: srv, usrRepo: usrRepo, instRepo: instRepo}
}

func (e *testEnv) seedInstitution(t *testing.T, slug, subStatus string) institution.Institution {
	t.Helper()
	inst, err := e.instRepo.CreateInstitution(context.Background(), institution.Institution{
		Name: slug, Slug: slug, PrimaryColor: "#112233", SubscriptionStatus: subStatus,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err = e.instRepo.ActivateInstitution(context.Background(), inst.ID); err != nil {
		t.Fatal(err)
	}
	inst.IsActive = true
	return inst
}

func (e *testEnv) seedUser(t *testing.T, email, password, role string, inst *institution.Institution) user.User {
	t.Helper()
	usr := user.User{Name: email, Email: email, Role: role, IsActive: true}
	if inst != nil {
		usr.InstitutionID = null.IntFrom(inst.ID)
	}
	if err := usr.SetPassword(password); err != nil {
		t.Fatal(err)
	}
	usr, err := e.usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatal(err)
	}
	return usr
}

func (e *testEnv) request(method, host, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Host = host
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, host, email, password, role string) (int, map[string]interface{}) {
	t.Helper()
	rec := e.request(http.MethodPost, host, "/v1/auth/login", "", map[string]interface{}{
		"email": email, "password": password, "role": role,
	})
	var res map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return rec.Code, res
}

func TestLoginEndpoint(t *testing.T) {
	env := setup(t)
	acme := env.seedInstitution(t, "acme", institution.SubscriptionActive)
	env.seedUser(t, "jane@acme.edu", "pw123456", user.RoleLecturer, &acme)

	t.Run("success on the tenant host", func(t *testing.T) {
		code, res := env.login(t, "acme.talenttune.com", "jane@acme.edu", "pw123456", "lecturer")
		if code != http.StatusOK {
			t.Fatalf("status = %d, body %v", code, res)
		}
		if res["token"] == "" || res["token"] == nil {
			t.Error("expected a token")
		}
		if res["redirect_url"] != "/" {
			t.Errorf("redirect_url = %v; want /", res["redirect_url"])
		}
		if v, ok := res["two_factor"]; !ok || v != false {
			t.Errorf("two_factor = %v; want false", v)
		}
	})

	t.Run("wrong password is a 400 with the generic message", func(t *testing.T) {
		code, res := env.login(t, "acme.talenttune.com", "jane@acme.edu", "nope", "lecturer")
		if code != http.StatusBadRequest {
			t.Fatalf("status = %d, body %v", code, res)
		}
		if msg := fmt.Sprint(res["email"]); !strings.Contains(msg, "credentials do not match") {
			t.Errorf("message = %q", msg)
		}
	})

	t.Run("role mismatch names both roles", func(t *testing.T) {
		code, res := env.login(t, "acme.talenttune.com", "jane@acme.edu", "pw123456", "student")
		if code != http.StatusBadRequest {
			t.Fatalf("status = %d, body %v", code, res)
		}
		msg := fmt.Sprint(res["email"])
		if !strings.Contains(msg, "registered as a lecturer") || !strings.Contains(msg, "student") {
			t.Errorf("message = %q", msg)
		}
	})

	t.Run("login page carries tenant branding", func(t *testing.T) {
		rec := env.request(http.MethodGet, "acme.talenttune.com", "/v1/auth/login", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var res echoapi.LoginPageResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatal(err)
		}
		if res.Institution == nil || res.Institution.Slug != "acme" || res.Institution.PrimaryColor != "#112233" {
			t.Errorf("institution = %+v", res.Institution)
		}
		assert.ElementsMatch(t, []string{"student", "lecturer", "institution"}, res.Roles)
	})

	t.Run("login page on a marketing host has no branding", func(t *testing.T) {
		rec := env.request(http.MethodGet, "www.talenttune.com", "/v1/auth/login", "", nil)
		var res echoapi.LoginPageResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatal(err)
		}
		if res.Institution != nil {
			t.Errorf("institution = %+v; want none", res.Institution)
		}
	})
}

func TestDashboardPipeline(t *testing.T) {
	env := setup(t)
	acme := env.seedInstitution(t, "acme", institution.SubscriptionActive)
	beta := env.seedInstitution(t, "beta", institution.SubscriptionNone)
	env.seedUser(t, "jane@acme.edu", "pw123456", user.RoleLecturer, &acme)
	env.seedUser(t, "admin@beta.edu", "pw123456", user.RoleInstitutionAdmin, &beta)

	_, res := env.login(t, "acme.talenttune.com", "jane@acme.edu", "pw123456", "")
	token := fmt.Sprint(res["token"])

	t.Run("issued token can be refreshed", func(t *testing.T) {
		rec := env.request(http.MethodPost, "acme.talenttune.com", "/v1/auth/token-refresh", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var res echoapi.TokenResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatal(err)
		}
		if res.Token == "" {
			t.Error("expected a fresh token")
		}
	})

	t.Run("member reaches their dashboard", func(t *testing.T) {
		rec := env.request(http.MethodGet, "acme.talenttune.com", "/v1/dashboard", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("cross-tenant access is forbidden", func(t *testing.T) {
		rec := env.request(http.MethodGet, "beta.talenttune.com", "/v1/dashboard", token, nil)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("no token is unauthorized", func(t *testing.T) {
		rec := env.request(http.MethodGet, "acme.talenttune.com", "/v1/dashboard", "", nil)
		if rec.Code != http.StatusUnauthorized && rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("unsubscribed institution admin is redirected to completion", func(t *testing.T) {
		_, res := env.login(t, "beta.talenttune.com", "admin@beta.edu", "pw123456", "")
		betaToken := fmt.Sprint(res["token"])
		rec := env.request(http.MethodGet, "beta.talenttune.com", "/v1/dashboard", betaToken, nil)
		if rec.Code != http.StatusFound {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		if loc := rec.Header().Get("Location"); loc != "/institution/complete-subscription" {
			t.Errorf("location = %q", loc)
		}
	})
}

func TestInstitutionRegistration(t *testing.T) {
	env := setup(t)

	rec := env.request(http.MethodPost, "www.talenttune.com", "/v1/institutions/register", "", map[string]interface{}{
		"name": "Acme University", "email": "contact@acme.edu", "contact_person": "Jane Doe",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var inst institution.Institution
	if err := json.Unmarshal(rec.Body.Bytes(), &inst); err != nil {
		t.Fatal(err)
	}
	if inst.Slug != "acme-university" || inst.IsActive {
		t.Errorf("institution = %+v", inst)
	}

	t.Run("missing fields are rejected", func(t *testing.T) {
		rec := env.request(http.MethodPost, "www.talenttune.com", "/v1/institutions/register", "", map[string]interface{}{
			"name": "No Contact",
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
	})
}
