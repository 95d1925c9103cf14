// Package auth drives the login-attempt state machine and computes
// tenant-aware post-login redirect targets.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/talenttune/talenttune/core"
	"github.com/talenttune/talenttune/core/institution"
	"github.com/talenttune/talenttune/core/tenancy"
	"github.com/talenttune/talenttune/core/user"
)

// Login attempt states.
const (
	StateAwaitingCredentials = "awaiting_credentials"
	StateCredentialsChecked  = "credentials_checked"
	StateRoleVerified        = "role_verified"
	StateSessionEstablished  = "session_established"
	StateRejected            = "rejected"
)

// Login attempt transitions.
const (
	transitionCheckCredentials = "check_credentials"
	transitionVerifyRole       = "verify_role"
	transitionEstablish        = "establish"
	transitionReject           = "reject"
)

// ErrInvalidCredentials is deliberately generic: it must not reveal
// whether the email exists.
var ErrInvalidCredentials = errors.New("these credentials do not match our records")

// RoleMismatchError is returned when the login form's role tab does not
// match the account's actual role. The message names both so the user
// can correct the tab.
type RoleMismatchError struct {
	Actual   string
	Selected string
}

func (e RoleMismatchError) Error() string {
	return fmt.Sprintf(
		"This account is registered as a %s, but you selected %s. Please select the correct role or contact support.",
		e.Actual, e.Selected,
	)
}

type (
	// Session is the security-sensitive surface of the caller's session
	// store. The flow sequences these calls explicitly so session
	// handling and redirect computation stay independently testable.
	Session interface {
		// Regenerate rotates the session identifier (fixation defense).
		Regenerate() error
		// Invalidate destroys the session entirely.
		Invalidate() error
		// RegenerateToken issues a fresh CSRF token.
		RegenerateToken() error
		// ForgetIntended drops any remembered intended URL; a stale one
		// from a different tenant context must not leak across tenants.
		ForgetIntended()
	}

	// Credentials is the login form payload.
	Credentials struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
		Role     string `json:"role" validate:"omitempty,oneof=student lecturer institution admin"`
		Remember bool   `json:"remember"`
	}

	// Result is a successful login outcome.
	Result struct {
		User        user.User
		RedirectURL string
		// TwoFactor is reserved for future MFA; always false here.
		TwoFactor bool
	}

	Flow struct {
		conf         *core.Config
		users        user.Service
		institutions institution.Repository
	}
)

func (c *Credentials) Validate() error {
	c.Email = core.CleanString(c.Email, true /* lower */)
	c.Role = core.CleanString(c.Role, true /* lower */)
	return core.Validate.Struct(c)
}

func NewFlow(conf *core.Config, users user.Service, institutions institution.Repository) *Flow {
	return &Flow{conf: conf, users: users, institutions: institutions}
}

// attempt is the per-login state machine; one is created for each call
// to Login and discarded with it.
type attempt struct {
	machine *fsm.FSM
}

func newAttempt() *attempt {
	return &attempt{machine: fsm.NewFSM(
		StateAwaitingCredentials,
		fsm.Events{
			{Name: transitionCheckCredentials, Src: []string{StateAwaitingCredentials}, Dst: StateCredentialsChecked},
			{Name: transitionVerifyRole, Src: []string{StateCredentialsChecked}, Dst: StateRoleVerified},
			{Name: transitionEstablish, Src: []string{StateRoleVerified}, Dst: StateSessionEstablished},
			{Name: transitionReject, Src: []string{
				StateAwaitingCredentials, StateCredentialsChecked, StateRoleVerified,
			}, Dst: StateRejected},
		},
		fsm.Callbacks{},
	)}
}

func (a *attempt) transition(ctx context.Context, name string) error {
	return a.machine.Event(ctx, name)
}

func (a *attempt) state() string { return a.machine.Current() }

// Login runs one login attempt to a terminal state.
//
// Credential failure rejects with a generic error. A role-tab mismatch
// (explicit role selection + tenant in context + differing actual role)
// tears the just-established session down before rejecting. On success
// the session identifier is rotated, the stale intended URL dropped, and
// the redirect target computed last.
func (f *Flow) Login(ctx context.Context, creds Credentials, rc tenancy.RequestContext, sess Session) (Result, error) {
	a := newAttempt()

	usr, err := f.checkCredentials(ctx, creds)
	if err != nil {
		_ = a.transition(ctx, transitionReject)
		return Result{}, err
	}
	if err = a.transition(ctx, transitionCheckCredentials); err != nil {
		return Result{}, err
	}

	// the session is established (and its id rotated) as soon as the
	// credentials check out; a later mismatch must undo it
	if err = sess.Regenerate(); err != nil {
		return Result{}, err
	}

	if creds.Role != "" && rc.Institution != nil && usr.Role != creds.Role {
		_ = sess.Invalidate()
		_ = sess.RegenerateToken()
		_ = a.transition(ctx, transitionReject)
		mismatch := RoleMismatchError{Actual: usr.Role, Selected: creds.Role}
		return Result{}, core.NewValidationError(mismatch, core.FieldError{Field: "email", Error: mismatch.Error()})
	}
	if err = a.transition(ctx, transitionVerifyRole); err != nil {
		return Result{}, err
	}

	sess.ForgetIntended()

	if updated, lerr := f.users.SetLastLogin(ctx, usr); lerr == nil {
		usr = updated
	}

	redirectURL, err := f.RedirectURL(ctx, usr, rc)
	if err != nil {
		return Result{}, err
	}
	if err = a.transition(ctx, transitionEstablish); err != nil {
		return Result{}, err
	}

	return Result{User: usr, RedirectURL: redirectURL}, nil
}

// Logout invalidates the session and sends the user to the public landing.
func (f *Flow) Logout(sess Session) (string, error) {
	if err := sess.Invalidate(); err != nil {
		return "", err
	}
	if err := sess.RegenerateToken(); err != nil {
		return "", err
	}
	return "/", nil
}

func (f *Flow) checkCredentials(ctx context.Context, creds Credentials) (user.User, error) {
	usr, err := f.users.GetByEmail(ctx, creds.Email)
	if err != nil {
		if err == user.ErrNotFound {
			return user.User{}, core.NewValidationError(ErrInvalidCredentials,
				core.FieldError{Field: "email", Error: ErrInvalidCredentials.Error()})
		}
		return user.User{}, err
	}
	if err = usr.CheckPassword(creds.Password); err != nil {
		return user.User{}, core.NewValidationError(ErrInvalidCredentials,
			core.FieldError{Field: "email", Error: ErrInvalidCredentials.Error()})
	}
	if !usr.IsActive {
		return user.User{}, core.NewValidationError(ErrInvalidCredentials,
			core.FieldError{Field: "email", Error: ErrInvalidCredentials.Error()})
	}
	return usr, nil
}

// RedirectURL computes where a user lands after login.
//
// Platform admins get the fixed admin landing. Users without an active
// institution land on the public page. An unsubscribed institution sends
// its admin to the subscription-completion page. A user already on
// their institution's subdomain stays same-origin; anyone else gets the
// absolute URL of their institution's subdomain.
func (f *Flow) RedirectURL(ctx context.Context, usr user.User, rc tenancy.RequestContext) (string, error) {
	if usr.IsPlatformAdmin() {
		return tenancy.PlatformAdminLanding, nil
	}

	if !usr.InstitutionID.Valid {
		return "/", nil
	}
	inst, err := f.institutions.GetInstitutionByID(ctx, usr.InstitutionID.Int)
	if err == institution.ErrNotFound {
		return "/", nil
	}
	if err != nil {
		return "", err
	}
	if !inst.IsActive {
		return "/", nil
	}

	scheme := rc.Scheme
	if scheme == "" {
		scheme = "https"
	}
	baseDomain := f.conf.Domain.BaseDomainFor(rc.Host)
	baseURL := fmt.Sprintf("%s://%s.%s", scheme, inst.Slug, baseDomain)

	if !inst.IsSubscribed() {
		return baseURL + tenancy.CompleteSubscriptionPath, nil
	}

	if core.ExtractSubdomain(rc.Host, f.conf.Domain.LocalTLD) == inst.Slug {
		return "/", nil
	}
	return baseURL + "/", nil
}
