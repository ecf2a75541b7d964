package handlers

import (
	"errors"
	"io"
	"net/http"

	"genstudio/internal/billing"
	"genstudio/internal/domain"
)

const maxWebhookBytes = 64 << 10

type pricingResponse struct {
	TestName       string  `json:"testName"`
	Price          float64 `json:"price"`
	Credits        int     `json:"credits"`
	PricePerCredit string  `json:"pricePerCredit"`
}

func (a *App) Pricing(w http.ResponseWriter, r *http.Request) {
	test := billing.PricingTest(r.URL.Query().Get("test"))
	a.json(w, http.StatusOK, pricingResponse{
		TestName:       test.Name,
		Price:          billing.Dollars(test.PriceCents).InexactFloat64(),
		Credits:        test.Credits,
		PricePerCredit: billing.PricePerCredit(test.PriceCents, test.Credits),
	})
}

type checkoutRequest struct {
	ProductID string `json:"productId"`
}

func (a *App) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decode(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.ProductID == "" {
		req.ProductID = "credits_100"
	}
	pack, ok := billing.Pack(req.ProductID)
	if !ok {
		a.error(w, http.StatusBadRequest, "invalid_request", "unknown product")
		return
	}
	user, err := a.Ledger.User(r.Context(), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	url, err := a.Checkout.CreateSession(r.Context(), billing.CheckoutRequest{
		UserID:    user.ID,
		UserEmail: user.Email,
		Pack:      pack,
	})
	if err != nil {
		if errors.Is(err, billing.ErrNotConfigured) {
			a.error(w, http.StatusServiceUnavailable, "unavailable", "payments are not configured")
			return
		}
		a.Logger.Error().Err(err).Str("user_id", user.ID).Msg("create checkout session failed")
		a.error(w, http.StatusBadGateway, "provider_failure", "failed to create checkout session")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"url": url})
}

func (a *App) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable payload")
		return
	}
	event, err := billing.ParseWebhook(payload, r.Header.Get("Stripe-Signature"), a.WebhookSecret)
	switch {
	case errors.Is(err, billing.ErrNotConfigured):
		a.error(w, http.StatusServiceUnavailable, "unavailable", "webhook secret not configured")
		return
	case errors.Is(err, billing.ErrInvalidSignature):
		a.Logger.Warn().Err(err).Msg("stripe webhook rejected")
		a.error(w, http.StatusBadRequest, "invalid_signature", "invalid signature")
		return
	case err != nil:
		a.fail(w, r, err)
		return
	}

	if event.Payment == nil {
		a.json(w, http.StatusOK, map[string]bool{"received": true})
		return
	}
	_, err = a.Ledger.CreditPayment(r.Context(), *event.Payment)
	if errors.Is(err, domain.ErrDuplicateOperation) {
		a.json(w, http.StatusOK, map[string]bool{"received": true, "duplicate": true})
		return
	}
	if err != nil {
		a.Logger.Error().Err(err).Str("event", event.ID).Str("session", event.Payment.ProviderRef).Msg("credit payment failed")
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"received": true})
}
