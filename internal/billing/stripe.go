package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/checkout/session"
	"github.com/stripe/stripe-go/v72/webhook"

	"genstudio/internal/domain"
	"genstudio/internal/ledger"
)

// ErrNotConfigured is returned when no Stripe key was configured.
var ErrNotConfigured = errors.New("billing: stripe not configured")

// ErrInvalidSignature marks webhook payloads that fail verification.
var ErrInvalidSignature = errors.New("billing: invalid webhook signature")

const EventCheckoutCompleted = "checkout.session.completed"

// CheckoutRequest describes a pack purchase by an authenticated user.
type CheckoutRequest struct {
	UserID    string
	UserEmail string
	Pack      domain.CreditPack
}

// Checkout creates hosted checkout pages.
type Checkout interface {
	CreateSession(ctx context.Context, req CheckoutRequest) (url string, err error)
}

// StripeCheckout creates Stripe Checkout sessions.
type StripeCheckout struct {
	client        session.Client
	publicBaseURL string
	currency      string
}

func NewStripeCheckout(secretKey, publicBaseURL string) *StripeCheckout {
	return &StripeCheckout{
		client:        session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		currency:      string(stripe.CurrencyUSD),
	}
}

func (s *StripeCheckout) CreateSession(ctx context.Context, req CheckoutRequest) (string, error) {
	if s.client.Key == "" {
		return "", ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(req.Pack.Name),
						Description: stripe.String(req.Pack.Description),
					},
					UnitAmount: stripe.Int64(req.Pack.PriceCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(s.publicBaseURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     stripe.String(s.publicBaseURL + "/pricing"),
		CustomerEmail: stripe.String(req.UserEmail),
	}
	params.Context = ctx
	for k, v := range checkoutMetadata(req) {
		params.AddMetadata(k, v)
	}

	sess, err := s.client.New(params)
	if err != nil {
		return "", fmt.Errorf("billing: create checkout session: %w", err)
	}
	return sess.URL, nil
}

func checkoutMetadata(req CheckoutRequest) map[string]string {
	return map[string]string{
		"userId":       req.UserID,
		"userEmail":    req.UserEmail,
		"productId":    req.Pack.ID,
		"credits":      strconv.Itoa(req.Pack.Credits),
		"validityDays": strconv.Itoa(req.Pack.ValidityDays),
	}
}

// WebhookEvent is a verified provider notification. Payment is set only for
// completed checkouts.
type WebhookEvent struct {
	ID      string
	Type    string
	Payment *ledger.CompletedPayment
}

// ParseWebhook verifies the Stripe-Signature header against secret and
// decodes the event.
func ParseWebhook(payload []byte, sigHeader, secret string) (*WebhookEvent, error) {
	if secret == "" {
		return nil, ErrNotConfigured
	}
	if err := webhook.ValidatePayload(payload, sigHeader, secret); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.NewValidationError("payload", "malformed event: %v", err)
	}
	out := &WebhookEvent{ID: event.ID, Type: event.Type}
	if event.Type != EventCheckoutCompleted || event.Data == nil {
		return out, nil
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, domain.NewValidationError("payload", "malformed checkout session: %v", err)
	}
	payment, err := paymentFromSession(&sess)
	if err != nil {
		return nil, err
	}
	out.Payment = payment
	return out, nil
}

func paymentFromSession(sess *stripe.CheckoutSession) (*ledger.CompletedPayment, error) {
	md := sess.Metadata
	userID := md["userId"]
	if userID == "" {
		return nil, domain.NewValidationError("metadata.userId", "is required")
	}
	credits, err := strconv.Atoi(md["credits"])
	if err != nil || credits <= 0 {
		return nil, domain.NewValidationError("metadata.credits", "must be a positive integer")
	}
	validity, _ := strconv.Atoi(md["validityDays"])
	amount := sess.AmountTotal
	if pack, ok := Pack(md["productId"]); ok && amount == 0 {
		amount = pack.PriceCents
	}
	return &ledger.CompletedPayment{
		ProviderRef:  sess.ID,
		UserID:       userID,
		PackID:       md["productId"],
		Credits:      credits,
		AmountCents:  amount,
		ValidityDays: validity,
	}, nil
}
