package echoapi

import (
	"github.com/talenttune/talenttune/core"
	"github.com/talenttune/talenttune/core/user"
)

type (
	LoginResponse struct {
		Token       string    `json:"token"`
		RedirectURL string    `json:"redirect_url"`
		TwoFactor   bool      `json:"two_factor"`
		User        user.User `json:"user"`
	}

	LogoutResponse struct {
		RedirectURL string `json:"redirect_url"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	InstitutionBranding struct {
		Name         string `json:"name"`
		Slug         string `json:"slug"`
		PrimaryColor string `json:"primary_color"`
	}

	LoginPageResponse struct {
		Institution *InstitutionBranding `json:"institution,omitempty"`
		Roles       []string             `json:"roles"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	DestroyMultipleRequest struct {
		IDs []int `query:"id"`
	}

	CheckoutResponse struct {
		URL string `json:"url"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (pr *PasswordResetRequest) Validate() error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return core.Validate.Struct(pr)
}
