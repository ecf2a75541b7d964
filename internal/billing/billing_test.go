package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"genstudio/internal/domain"
)

func TestPricingTest(t *testing.T) {
	tests := []struct {
		name  string
		price int64
		per   string
	}{
		{"test_a", 799, "0.080"},
		{"test_b", 999, "0.100"},
		{"test_c", 1299, "0.130"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := PricingTest(tc.name)
			if got.Name != tc.name || got.PriceCents != tc.price || got.Credits != 100 {
				t.Fatalf("unexpected test: %+v", got)
			}
			if per := PricePerCredit(got.PriceCents, got.Credits); per != tc.per {
				t.Fatalf("PricePerCredit = %s, want %s", per, tc.per)
			}
		})
	}
	for i := 0; i < 20; i++ {
		if got := PricingTest("unknown"); got.Name == "" || !got.Active {
			t.Fatalf("random pick returned %+v", got)
		}
	}
}

func TestDollars(t *testing.T) {
	if got := Dollars(999).StringFixed(2); got != "9.99" {
		t.Fatalf("Dollars(999) = %s", got)
	}
	if got := PricePerCredit(100, 0); got != "0.000" {
		t.Fatalf("zero credits: %s", got)
	}
}

func TestPack(t *testing.T) {
	p, ok := Pack("credits_100")
	if !ok || p.PriceCents != 999 || p.Credits != 100 || p.ValidityDays != 30 {
		t.Fatalf("unexpected pack: %+v ok=%v", p, ok)
	}
	if _, ok := Pack("credits_9000"); ok {
		t.Fatalf("unknown pack must not resolve")
	}
	if len(Packs()) != 1 {
		t.Fatalf("expected one pack")
	}
}

func sign(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

const completedEvent = `{
  "id": "evt_1",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {"object": {
    "id": "cs_test_1",
    "object": "checkout.session",
    "amount_total": 999,
    "metadata": {"userId": "u1", "userEmail": "a@b.c", "productId": "credits_100", "credits": "100", "validityDays": "30"}
  }}
}`

func TestParseWebhook(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(completedEvent)

	t.Run("completed checkout", func(t *testing.T) {
		event, err := ParseWebhook(payload, sign(payload, secret, time.Now().Unix()), secret)
		if err != nil {
			t.Fatalf("ParseWebhook error: %v", err)
		}
		if event.Type != EventCheckoutCompleted || event.Payment == nil {
			t.Fatalf("unexpected event: %+v", event)
		}
		p := event.Payment
		if p.ProviderRef != "cs_test_1" || p.UserID != "u1" || p.Credits != 100 || p.AmountCents != 999 || p.ValidityDays != 30 || p.PackID != "credits_100" {
			t.Fatalf("unexpected payment: %+v", p)
		}
	})

	t.Run("bad signature", func(t *testing.T) {
		_, err := ParseWebhook(payload, sign(payload, "whsec_other", time.Now().Unix()), secret)
		if !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("stale timestamp", func(t *testing.T) {
		_, err := ParseWebhook(payload, sign(payload, secret, time.Now().Add(-time.Hour).Unix()), secret)
		if !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("other event", func(t *testing.T) {
		other := []byte(`{"id":"evt_2","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`)
		event, err := ParseWebhook(other, sign(other, secret, time.Now().Unix()), secret)
		if err != nil {
			t.Fatalf("ParseWebhook error: %v", err)
		}
		if event.Payment != nil {
			t.Fatalf("only completed checkouts carry a payment")
		}
	})

	t.Run("missing metadata", func(t *testing.T) {
		bare := []byte(`{"id":"evt_3","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_2","object":"checkout.session"}}}`)
		_, err := ParseWebhook(bare, sign(bare, secret, time.Now().Unix()), secret)
		if !domain.IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		if _, err := ParseWebhook(payload, "", ""); !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("expected ErrNotConfigured, got %v", err)
		}
	})
}

func TestCheckoutMetadata(t *testing.T) {
	pack, _ := Pack("credits_100")
	md := checkoutMetadata(CheckoutRequest{UserID: "u1", UserEmail: "a@b.c", Pack: pack})
	want := map[string]string{"userId": "u1", "userEmail": "a@b.c", "productId": "credits_100", "credits": "100", "validityDays": "30"}
	for k, v := range want {
		if md[k] != v {
			t.Fatalf("metadata[%s] = %q, want %q", k, md[k], v)
		}
	}
	if _, err := NewStripeCheckout("", "http://localhost").CreateSession(context.Background(), CheckoutRequest{Pack: pack}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
