package quote

import (
	"time"

	"github.com/google/uuid"

	"github.com/okna-market/pricing-api/internal/money"
	"github.com/okna-market/pricing-api/internal/pricebook"
	"github.com/okna-market/pricing-api/internal/promo"
)

// Quote is the immutable result of one price calculation. It expires when the
// clock passes ValidUntil; the cache enforces that on read.
type Quote struct {
	QuoteID           uuid.UUID                 `json:"quoteId"`
	ProductTemplateID string                    `json:"productTemplateId"`
	PriceBookID       uuid.UUID                 `json:"priceBookId"`
	PriceBookVersion  int32                     `json:"priceBookVersion"`
	Fingerprint       string                    `json:"fingerprint"`
	Region            string                    `json:"region"`
	PromoCode         string                    `json:"promoCode,omitempty"`
	BasePrice         money.Money               `json:"basePrice"`
	OptionPremiums    []pricebook.OptionPremium `json:"optionPremiums"`
	AppliedDiscounts  []promo.AppliedDiscount   `json:"appliedDiscounts,omitempty"`
	Discount          money.Money               `json:"discount"`
	Subtotal          money.Money               `json:"subtotal"`
	Tax               money.Money               `json:"tax"`
	Total             money.Money               `json:"total"`
	CalculatedAt      time.Time                 `json:"calculatedAt"`
	ValidUntil        time.Time                 `json:"validUntil"`
	DecisionTrace     []TraceEntry              `json:"decisionTrace"`
}

// Expired reports whether the quote is stale at the given instant.
func (q Quote) Expired(now time.Time) bool {
	return now.After(q.ValidUntil)
}

// Response is the inbound-port result: the quote plus where it came from.
type Response struct {
	Quote     Quote `json:"quote"`
	FromCache bool  `json:"fromCache"`
}
