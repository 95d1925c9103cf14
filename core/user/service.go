package user

import (
	"context"
	"errors"
	"net/mail"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/talenttune/talenttune/core"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		QueryUsersByInstitution(ctx context.Context, instID int) ([]User, error)
		GetUserByID(ctx context.Context, id int) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// GetInstitutionAdmin returns the institution-admin user of the
		// given institution, if one exists.
		GetInstitutionAdmin(ctx context.Context, instID int) (User, error)
		UpdateUser(ctx context.Context, usr User, isActive *bool) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...int) error
	}

	Service interface {
		CheckEmailUniqueness(ctx context.Context, email string, excl ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		QueryAll(ctx context.Context) ([]User, error)
		QueryByInstitution(ctx context.Context, instID int) ([]User, error)
		GetByID(ctx context.Context, id int) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Update(ctx context.Context, id int, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...int) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
		EnsureInstitutionAdmin(ctx context.Context, instID int, name, email, password string) error
	}

	service struct {
		conf    *core.Config
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService) Service {
	initTokenGenerator(conf)
	return &service{conf: conf, repo: repo, mailSvc: mailSvc}
}

func (svc *service) CheckEmailUniqueness(ctx context.Context, email string, excl ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, excl...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:       nu.Name,
		Email:      nu.Email,
		Role:       nu.Role,
		Department: nu.Department,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if nu.InstitutionID != nil {
		usr.InstitutionID = null.IntFrom(*nu.InstitutionID)
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *service) QueryByInstitution(ctx context.Context, instID int) ([]User, error) {
	return svc.repo.QueryUsersByInstitution(ctx, instID)
}

func (svc *service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) Update(ctx context.Context, id int, uu UpdateUser) (User, error) {
	usr := User{
		ID:         id,
		Name:       uu.Name,
		Email:      uu.Email,
		Department: uu.Department,
		UpdatedAt:  time.Now().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	return svc.repo.UpdateUser(ctx, usr, uu.IsActive)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	return svc.repo.SetLastLogin(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...int) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

// EnsureInstitutionAdmin provisions (or re-keys) the institution-admin
// credential during institution activation:
// an existing institution admin gets a new password; otherwise an
// existing user with the activation email is promoted; otherwise a fresh
// user is created.
func (svc *service) EnsureInstitutionAdmin(ctx context.Context, instID int, name, email, password string) error {
	setPassword := func(usr User) error {
		if err := usr.SetPassword(password); err != nil {
			return err
		}
		usr.UpdatedAt = time.Now().UTC()
		_, err := svc.repo.UpdateUser(ctx, usr, nil)
		return err
	}

	if admin, err := svc.repo.GetInstitutionAdmin(ctx, instID); err == nil {
		return setPassword(admin)
	} else if err != ErrNotFound {
		return err
	}

	if usr, err := svc.repo.GetUserByEmail(ctx, email); err == nil {
		usr.InstitutionID = null.IntFrom(instID)
		usr.Role = RoleInstitutionAdmin
		return setPassword(usr)
	} else if err != ErrNotFound {
		return err
	}

	now := time.Now().UTC()
	usr := User{
		Name:          name,
		Email:         email,
		Role:          RoleInstitutionAdmin,
		InstitutionID: null.IntFrom(instID),
		Department:    "Administration",
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := usr.SetPassword(password); err != nil {
		return err
	}
	_, err := svc.repo.CreateUser(ctx, usr)
	return err
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	uid, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.repo.GetUserByID(ctx, uid)
	if err != nil {
		if err == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return err
	}
	if err = verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr, nil)
	return pkgerrors.Wrap(err, "updating password")
}

func (svc *service) sendPasswordResetMail(usr User) {
	token := makeToken(usr)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password reset",
		TemplateName: "password_reset",
		TemplateData: struct {
			Name  string
			UID   string
			Token string
		}{
			Name:  usr.Name,
			UID:   EncodeUID(usr),
			Token: token,
		},
	})
}
