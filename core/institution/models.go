package institution

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/talenttune/talenttune/core"
)

// Subscription statuses. Transitions happen in the billing callback and
// are only ever read by the request pipeline.
const (
	SubscriptionNone     = "none"
	SubscriptionPending  = "pending"
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
)

// Institution is the tenant aggregate root. Slug is immutable after
// creation and uniquely addresses the tenant's subdomain; Domain, when
// set, is a custom apex that also uniquely addresses it.
type Institution struct {
	ID                 int         `json:"id" db:"id"`
	Name               string      `json:"name" db:"name"`
	Slug               string      `json:"slug" db:"slug"`
	Domain             null.String `json:"domain" db:"domain"`
	Email              string      `json:"email" db:"email"`
	ContactPerson      string      `json:"contact_person" db:"contact_person"`
	Phone              string      `json:"phone" db:"phone"`
	Address            string      `json:"address" db:"address"`
	PrimaryColor       string      `json:"primary_color" db:"primary_color"`
	IsActive           bool        `json:"is_active" db:"is_active"`
	SubscriptionStatus string      `json:"subscription_status" db:"subscription_status"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt          time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

func (i *Institution) IsSubscribed() bool {
	return i.SubscriptionStatus == SubscriptionActive
}

// NewInstitution contains information needed to self-register an Institution.
// Slug is the registrant's preferred subdomain; when empty (or taken, or
// reserved) one is derived from the name instead.
type NewInstitution struct {
	Name          string `json:"name" validate:"required"`
	Slug          string `json:"slug" validate:"omitempty,slug"`
	Email         string `json:"email" validate:"required,email"`
	ContactPerson string `json:"contact_person" validate:"required"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	PrimaryColor  string `json:"primary_color" validate:"omitempty,hexcolor"`
}

func (ni *NewInstitution) Validate() error {
	ni.Name = core.CleanString(ni.Name)
	ni.Slug = core.CleanString(ni.Slug, true /* lower */)
	ni.Email = core.CleanString(ni.Email, true /* lower */)
	ni.ContactPerson = core.CleanString(ni.ContactPerson)
	return core.Validate.Struct(ni)
}

// UpdateInstitution defines what a platform admin may modify. Slug is
// immutable; subscription status moves only through billing.
type UpdateInstitution struct {
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	ContactPerson string `json:"contact_person" validate:"required"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	PrimaryColor  string `json:"primary_color" validate:"omitempty,hexcolor"`
	IsActive      *bool  `json:"is_active"`
}

func (ui *UpdateInstitution) Validate() error {
	ui.Name = core.CleanString(ui.Name)
	ui.Email = core.CleanString(ui.Email, true /* lower */)
	ui.ContactPerson = core.CleanString(ui.ContactPerson)
	return core.Validate.Struct(ui)
}
