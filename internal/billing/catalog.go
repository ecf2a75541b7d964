// Package billing prices credit packs and talks to the checkout provider.
package billing

import (
	"math/rand/v2"
	"sort"

	"github.com/shopspring/decimal"

	"genstudio/internal/domain"
)

var packs = map[string]domain.CreditPack{
	"credits_100": {
		ID:           "credits_100",
		Name:         "100 Credits",
		Description:  "100 image generation credits, valid for 30 days",
		PriceCents:   999,
		Credits:      100,
		ValidityDays: 30,
	},
}

var pricingTests = []domain.PricingTest{
	{Name: "test_a", PriceCents: 799, Credits: 100, Active: true},
	{Name: "test_b", PriceCents: 999, Credits: 100, Active: true},
	{Name: "test_c", PriceCents: 1299, Credits: 100, Active: true},
}

// Pack looks up a purchasable credit pack.
func Pack(id string) (domain.CreditPack, bool) {
	p, ok := packs[id]
	return p, ok
}

// Packs lists all packs ordered by price.
func Packs() []domain.CreditPack {
	out := make([]domain.CreditPack, 0, len(packs))
	for _, p := range packs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceCents < out[j].PriceCents })
	return out
}

// PricingTest returns the named price point. An empty or unknown name picks
// a random active one.
func PricingTest(name string) domain.PricingTest {
	var active []domain.PricingTest
	for _, t := range pricingTests {
		if !t.Active {
			continue
		}
		if t.Name == name {
			return t
		}
		active = append(active, t)
	}
	return active[rand.IntN(len(active))]
}

// Dollars renders cents as a decimal dollar amount.
func Dollars(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// PricePerCredit is the dollar price of one credit, rounded to 3 places.
func PricePerCredit(priceCents int64, credits int) string {
	if credits <= 0 {
		return "0.000"
	}
	return Dollars(priceCents).Div(decimal.NewFromInt(int64(credits))).StringFixed(3)
}
