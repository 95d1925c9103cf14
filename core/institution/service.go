package institution

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/talenttune/talenttune/core"
)

var (
	// errors
	ErrNotFound   = errors.New("institution not found")
	ErrSlugExists = errors.New("an institution with this slug already exists")
)

type (
	Repository interface {
		CreateInstitution(ctx context.Context, inst Institution) (Institution, error)
		QueryAllInstitutions(ctx context.Context) ([]Institution, error)
		GetInstitutionByID(ctx context.Context, id int) (Institution, error)
		GetInstitutionBySlug(ctx context.Context, slug string) (Institution, error)
		GetInstitutionByDomain(ctx context.Context, domain string) (Institution, error)
		GetActiveInstitutionByID(ctx context.Context, id int) (Institution, error)
		GetActiveInstitutionBySlug(ctx context.Context, slug string) (Institution, error)
		GetActiveInstitutionByDomain(ctx context.Context, domain string) (Institution, error)
		SlugExists(ctx context.Context, slug string) (bool, error)
		UpdateInstitution(ctx context.Context, inst Institution) (Institution, error)
		// ActivateInstitution flips is_active from false to true and
		// reports whether this call won the flip. Concurrent activations
		// must observe at most one true result.
		ActivateInstitution(ctx context.Context, id int) (bool, error)
		// SetSubscriptionStatus moves subscription_status to `to` only
		// when the current value is one of `from`.
		SetSubscriptionStatus(ctx context.Context, id int, to string, from ...string) (bool, error)
		DeleteInstitutionsByID(ctx context.Context, ids ...int) error
	}

	// DomainProvisioner creates routing records for institution
	// subdomains ({slug}.{base domain}) in production.
	DomainProvisioner interface {
		IsConfigured() bool
		CreateSubdomain(ctx context.Context, host string) error
	}

	// AdminAccounts provisions the institution-admin credential on
	// activation. Implemented by the user service.
	AdminAccounts interface {
		EnsureInstitutionAdmin(ctx context.Context, instID int, name, email, password string) error
	}

	Service interface {
		Register(ctx context.Context, ni NewInstitution) (Institution, error)
		QueryAll(ctx context.Context) ([]Institution, error)
		GetByID(ctx context.Context, id int) (Institution, error)
		GetBySlug(ctx context.Context, slug string) (Institution, error)
		Update(ctx context.Context, id int, ui UpdateInstitution, host string) (Institution, error)
		Activate(ctx context.Context, id int, host string) error
		ActivateSubscription(ctx context.Context, id int) error
		Delete(ctx context.Context, ids ...int) error
	}

	service struct {
		conf     *core.Config
		logger   core.Logger
		repo     Repository
		mailSvc  core.EmailService
		domains  DomainProvisioner
		accounts AdminAccounts
	}
)

var _ Service = (*service)(nil)

func NewService(
	conf *core.Config,
	logger core.Logger,
	repo Repository,
	mailSvc core.EmailService,
	domains DomainProvisioner,
	accounts AdminAccounts,
) Service {
	return &service{
		conf:     conf,
		logger:   logger,
		repo:     repo,
		mailSvc:  mailSvc,
		domains:  domains,
		accounts: accounts,
	}
}

// Register creates a new Institution in an inactive, unsubscribed state.
// It stays invisible to tenant resolution until a platform admin
// activates it.
func (svc *service) Register(ctx context.Context, ni NewInstitution) (Institution, error) {
	base := Slugify(ni.Slug)
	if base == "" || svc.conf.Domain.IsReservedSubdomain(base) {
		base = Slugify(ni.Name)
	}
	slug, err := svc.generateUniqueSlug(ctx, base)
	if err != nil {
		return Institution{}, err
	}

	now := time.Now().UTC()
	inst := Institution{
		Name:               ni.Name,
		Slug:               slug,
		Email:              ni.Email,
		ContactPerson:      ni.ContactPerson,
		Phone:              ni.Phone,
		Address:            ni.Address,
		PrimaryColor:       ni.PrimaryColor,
		IsActive:           false,
		SubscriptionStatus: SubscriptionNone,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if inst.PrimaryColor == "" {
		inst.PrimaryColor = "#3b82f6"
	}

	inst, err = svc.repo.CreateInstitution(ctx, inst)
	if err != nil {
		return Institution{}, err
	}

	svc.createSubdomainIfConfigured(ctx, inst)
	return inst, nil
}

func (svc *service) QueryAll(ctx context.Context) ([]Institution, error) {
	return svc.repo.QueryAllInstitutions(ctx)
}

func (svc *service) GetByID(ctx context.Context, id int) (Institution, error) {
	return svc.repo.GetInstitutionByID(ctx, id)
}

func (svc *service) GetBySlug(ctx context.Context, slug string) (Institution, error) {
	return svc.repo.GetInstitutionBySlug(ctx, core.CleanString(slug, true /* lower */))
}

func (svc *service) Update(ctx context.Context, id int, ui UpdateInstitution, host string) (Institution, error) {
	inst, err := svc.repo.GetInstitutionByID(ctx, id)
	if err != nil {
		return Institution{}, err
	}

	wasInactive := !inst.IsActive

	inst.Name = ui.Name
	inst.Email = ui.Email
	inst.ContactPerson = ui.ContactPerson
	inst.Phone = ui.Phone
	inst.Address = ui.Address
	if ui.PrimaryColor != "" {
		inst.PrimaryColor = ui.PrimaryColor
	}
	inst.UpdatedAt = time.Now().UTC()

	inst, err = svc.repo.UpdateInstitution(ctx, inst)
	if err != nil {
		return Institution{}, err
	}

	if ui.IsActive != nil && *ui.IsActive && wasInactive {
		if err = svc.Activate(ctx, inst.ID, host); err != nil {
			return Institution{}, err
		}
		inst, err = svc.repo.GetInstitutionByID(ctx, inst.ID)
	}
	return inst, err
}

// Activate flips the institution active (compare-and-set: only the call
// that wins the flip provisions credentials, so two racing activations
// cannot double-provision) and emails the admin their credentials and a
// subscription link.
func (svc *service) Activate(ctx context.Context, id int, host string) error {
	inst, err := svc.repo.GetInstitutionByID(ctx, id)
	if err != nil {
		return err
	}

	won, err := svc.repo.ActivateInstitution(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(err, "activating institution")
	}
	if !won {
		return nil // already active, or a concurrent activation won
	}

	svc.createSubdomainIfConfigured(ctx, inst)

	if inst.Email == "" {
		svc.logger.Warn(fmt.Sprintf("cannot provision admin for institution %d: no email address", inst.ID))
		return nil
	}

	password, err := core.RandomString(12)
	if err != nil {
		return pkgerrors.Wrap(err, "generating admin password")
	}

	adminName := inst.ContactPerson
	if adminName == "" {
		adminName = inst.Name
	}
	if err = svc.accounts.EnsureInstitutionAdmin(ctx, inst.ID, adminName, inst.Email, password); err != nil {
		return pkgerrors.Wrap(err, "provisioning institution admin")
	}

	svc.sendActivationEmail(inst, password, host)
	return nil
}

// ActivateSubscription is called by the billing callback once checkout
// completes. Conditional update keeps replayed webhooks idempotent.
func (svc *service) ActivateSubscription(ctx context.Context, id int) error {
	_, err := svc.repo.SetSubscriptionStatus(
		ctx, id, SubscriptionActive,
		SubscriptionNone, SubscriptionPending, SubscriptionCanceled,
	)
	return err
}

func (svc *service) Delete(ctx context.Context, ids ...int) error {
	return svc.repo.DeleteInstitutionsByID(ctx, ids...)
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowers the name and collapses anything url-unsafe into hyphens.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = nonSlugChars.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

func (svc *service) generateUniqueSlug(ctx context.Context, base string) (string, error) {
	if base == "" || svc.conf.Domain.IsReservedSubdomain(base) {
		base = "institution"
	}

	slug := base
	for counter := 1; ; counter++ {
		exists, err := svc.repo.SlugExists(ctx, slug)
		if err != nil {
			return "", pkgerrors.Wrap(err, "checking slug uniqueness")
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, counter)
	}
}

func (svc *service) createSubdomainIfConfigured(ctx context.Context, inst Institution) {
	if !svc.domains.IsConfigured() {
		return
	}
	if svc.conf.Domain.BaseDomain == "" {
		svc.logger.Debug("domains: base domain not set, skipping subdomain create")
		return
	}

	host := inst.Slug + "." + svc.conf.Domain.BaseDomain
	if err := svc.domains.CreateSubdomain(ctx, host); err != nil {
		svc.logger.Warn(fmt.Sprintf("subdomain create failed for institution %d (%s): %v", inst.ID, host, err))
	}
}

func (svc *service) sendActivationEmail(inst Institution, password, host string) {
	baseDomain := svc.conf.Domain.BaseDomainFor(core.SplitHostPort(host))
	baseURL := fmt.Sprintf("https://%s.%s", inst.Slug, baseDomain)

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: inst.ContactPerson, Address: inst.Email}},
		Subject:      "Your institution has been activated",
		TemplateName: "institution_activated",
		TemplateData: struct {
			InstitutionName string
			Email           string
			Password        string
			LoginURL        string
			SubscriptionURL string
		}{
			InstitutionName: inst.Name,
			Email:           inst.Email,
			Password:        password,
			LoginURL:        baseURL + "/login",
			SubscriptionURL: baseURL + "/institution/complete-subscription",
		},
	})
}
