package billingsvc

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/talenttune/talenttune/core"
	"github.com/talenttune/talenttune/core/institution"
)

var (
	// errors
	ErrNotConfigured = errors.New("billing not configured")
	ErrNotPaid       = errors.New("checkout session not paid")
)

// StripeService drives the subscription checkout. The checkout session
// carries the institution ID in its metadata so the success callback and
// the webhook can both map a payment back to a tenant.
type StripeService struct {
	conf   core.StripeConfig
	logger core.Logger
	sc     *client.API
}

func NewStripeService(conf *core.Config, logger core.Logger) *StripeService {
	svc := &StripeService{conf: conf.Stripe, logger: logger}
	if conf.Stripe.SecretKey != "" {
		svc.sc = &client.API{}
		svc.sc.Init(conf.Stripe.SecretKey, nil)
	}
	return svc
}

func (svc *StripeService) IsConfigured() bool {
	return svc.sc != nil && svc.conf.PriceID != ""
}

// CreateCheckoutSession returns the hosted checkout URL for the
// institution's subscription.
func (svc *StripeService) CreateCheckoutSession(ctx context.Context, inst institution.Institution, successURL, cancelURL string) (string, error) {
	if !svc.IsConfigured() {
		return "", ErrNotConfigured
	}

	instID := strconv.Itoa(inst.ID)
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(svc.conf.PriceID), Quantity: stripe.Int64(1)},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"institution_id": instID},
		},
	}
	if inst.Email != "" {
		params.CustomerEmail = stripe.String(inst.Email)
	}
	params.Context = ctx
	params.AddMetadata("institution_id", instID)
	// retried requests must not open a second session
	params.SetIdempotencyKey(uuid.NewString())

	sess, err := svc.sc.CheckoutSessions.New(params)
	if err != nil {
		return "", errors.Wrap(err, "creating checkout session")
	}
	return sess.URL, nil
}

// ConfirmCheckoutSession retrieves a session by ID and returns the paying
// institution's ID once the session is paid.
func (svc *StripeService) ConfirmCheckoutSession(ctx context.Context, sessionID string) (int, error) {
	if svc.sc == nil {
		return 0, ErrNotConfigured
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := svc.sc.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return 0, errors.Wrap(err, "retrieving checkout session")
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return 0, ErrNotPaid
	}

	instID, err := strconv.Atoi(sess.Metadata["institution_id"])
	if err != nil {
		return 0, errors.Wrap(err, "reading institution from session metadata")
	}
	return instID, nil
}

// VerifyWebhook checks the Stripe signature and decodes the event.
func (svc *StripeService) VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error) {
	if svc.conf.WebhookSecret == "" {
		return stripe.Event{}, ErrNotConfigured
	}
	event, err := webhook.ConstructEvent(payload, sigHeader, svc.conf.WebhookSecret)
	return event, errors.Wrap(err, "verifying webhook signature")
}

// InstitutionFromEvent extracts the institution ID out of a
// checkout.session.completed event's metadata.
func (svc *StripeService) InstitutionFromEvent(event stripe.Event) (int, error) {
	meta, ok := event.Data.Object["metadata"].(map[string]interface{})
	if !ok {
		return 0, errors.New("event has no metadata")
	}
	raw, ok := meta["institution_id"].(string)
	if !ok {
		return 0, errors.New("event metadata has no institution_id")
	}
	instID, err := strconv.Atoi(raw)
	return instID, errors.Wrap(err, fmt.Sprintf("parsing institution_id %q", raw))
}
