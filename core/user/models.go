package user

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/talenttune/talenttune/core"
)

// Roles. A user's role is fixed at creation; there is no self-escalation.
const (
	RoleStudent          = "student"
	RoleLecturer         = "lecturer"
	RoleInstitutionAdmin = "institution"
	RolePlatformAdmin    = "admin"
)

var AllRoles = []string{RoleStudent, RoleLecturer, RoleInstitutionAdmin, RolePlatformAdmin}

// User belongs to exactly one Institution through InstitutionID, which is
// null only for platform admins.
type User struct {
	ID            int       `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Email         string    `json:"email" db:"email"`
	Role          string    `json:"role" db:"role"`
	InstitutionID null.Int  `json:"institution_id" db:"institution_id"`
	Department    string    `json:"department,omitempty" db:"department"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	PasswordHash  []byte    `json:"-" db:"password_hash"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"` // UTC
	LastLogin     time.Time `json:"last_login" db:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsPlatformAdmin() bool    { return u.Role == RolePlatformAdmin }
func (u *User) IsInstitutionAdmin() bool { return u.Role == RoleInstitutionAdmin }
func (u *User) IsLecturer() bool         { return u.Role == RoleLecturer }
func (u *User) IsStudent() bool          { return u.Role == RoleStudent }

// BelongsTo reports whether the user is a member of the institution.
func (u *User) BelongsTo(instID int) bool {
	return u.InstitutionID.Valid && u.InstitutionID.Int == instID
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Role            string `json:"role" validate:"required,oneof=student lecturer institution admin"`
	InstitutionID   *int   `json:"institution_id"`
	Department      string `json:"department"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(ctx context.Context, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := core.Validate.Struct(nu); err != nil {
		return err
	}
	if nu.Role != RolePlatformAdmin && nu.InstitutionID == nil {
		return core.NewValidationError(nil, core.FieldError{
			Field: "institution_id", Error: "this field is required for non-admin users",
		})
	}
	return svc.CheckEmailUniqueness(ctx, nu.Email)
}

// UpdateUser defines what information may be provided to modify an
// existing User. Role and institution are fixed at creation.
type UpdateUser struct {
	Name            string `json:"name"`
	Email           string `json:"email" validate:"omitempty,email"`
	Department      string `json:"department"`
	IsActive        *bool  `json:"is_active"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, svc Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := core.Validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(ctx, uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate() error { return core.Validate.Struct(rp) }
