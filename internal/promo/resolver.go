package promo

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okna-market/pricing-api/internal/common"
	"github.com/okna-market/pricing-api/internal/money"
)

// CampaignRepository loads campaigns applicable to a product template
// (template-scoped plus wildcard rows).
type CampaignRepository interface {
	FindActiveForProduct(ctx context.Context, productTemplateID string) ([]Campaign, error)
	Save(ctx context.Context, campaign Campaign) error
}

// CodeRepository looks up promo codes by normalised code and performs atomic
// redemption at the storage boundary.
type CodeRepository interface {
	FindByCode(ctx context.Context, code string) (Code, bool, error)
	Save(ctx context.Context, code Code) error
	// Redeem increments usage_count only while it is below usage_limit and
	// reports whether the increment happened. The check-and-increment must be
	// a single atomic statement so the limit holds under concurrent callers.
	Redeem(ctx context.Context, code string) (bool, error)
}

// AppliedDiscount records one discount source for the decision trace.
type AppliedDiscount struct {
	Source       string          `json:"source"` // "campaign" or "promo_code"
	Name         string          `json:"name"`
	DiscountType DiscountType    `json:"discountType"`
	Value        decimal.Decimal `json:"value"`
	Amount       money.Money     `json:"amount"`
}

// Resolution is the outcome of discount resolution for one quote.
type Resolution struct {
	Discount money.Money
	Applied  []AppliedDiscount
}

// Resolver combines campaign and promo-code discounts for a quote.
type Resolver struct {
	Campaigns CampaignRepository
	Codes     CodeRepository
	Now       func() time.Time
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Resolve gathers every eligible discount source and combines them:
// percentage sources apply against the pre-discount subtotal first, fixed
// amounts subtract after, and the combined discount is clamped so the
// discounted subtotal never goes negative. A supplied promo code that is
// unknown, expired or exhausted aborts resolution with its precise code.
func (r *Resolver) Resolve(ctx context.Context, productTemplateID, promoCode string, subtotal money.Money) (Resolution, error) {
	now := r.now()

	type source struct {
		name  string
		from  string
		kind  DiscountType
		value decimal.Decimal
	}
	var sources []source

	campaigns, err := r.Campaigns.FindActiveForProduct(ctx, productTemplateID)
	if err != nil {
		return Resolution{}, fmt.Errorf("promo: load campaigns for %s: %w", productTemplateID, err)
	}
	for _, c := range campaigns {
		if !c.AppliesTo(productTemplateID) || !c.EligibleAt(now) {
			continue
		}
		sources = append(sources, source{name: c.Name, from: "campaign", kind: c.DiscountType, value: c.DiscountValue})
	}

	if normalized := NormalizeCode(promoCode); normalized != "" {
		code, found, err := r.Codes.FindByCode(ctx, normalized)
		if err != nil {
			return Resolution{}, fmt.Errorf("promo: look up code %s: %w", normalized, err)
		}
		if !found {
			return Resolution{}, common.NotFoundError(common.CodePromoCodeNotFound,
				fmt.Sprintf("promo code %s is not recognised", normalized))
		}
		if err := code.CheckEligibleAt(now); err != nil {
			return Resolution{}, err
		}
		sources = append(sources, source{name: code.Code, from: "promo_code", kind: code.DiscountType, value: code.DiscountValue})
	}

	resolution := Resolution{Discount: money.Zero(subtotal.Currency)}
	if len(sources) == 0 {
		return resolution, nil
	}

	hundred := decimal.NewFromInt(100)
	total := decimal.Zero
	appendApplied := func(s source, amount decimal.Decimal) {
		resolution.Applied = append(resolution.Applied, AppliedDiscount{
			Source:       s.from,
			Name:         s.name,
			DiscountType: s.kind,
			Value:        s.value,
			Amount:       money.New(amount, subtotal.Currency),
		})
	}

	// Percentage sources first, each against the pre-discount subtotal.
	for _, s := range sources {
		if s.kind != Percentage {
			continue
		}
		amount := subtotal.Amount.Mul(s.value.Div(hundred))
		total = total.Add(amount)
		appendApplied(s, amount)
	}
	for _, s := range sources {
		if s.kind != FixedAmount {
			continue
		}
		total = total.Add(s.value)
		appendApplied(s, s.value)
	}

	// Clamp: the discounted subtotal floors at zero.
	if total.GreaterThan(subtotal.Amount) {
		total = subtotal.Amount
	}
	if total.IsNegative() {
		total = decimal.Zero
	}
	resolution.Discount = money.New(total, subtotal.Currency)
	return resolution, nil
}

// Redeem consumes one use of a promo code. The repository performs the
// increment-with-limit-check atomically; this never oversells a limited code
// under concurrent redemption.
func (r *Resolver) Redeem(ctx context.Context, promoCode string) error {
	normalized := NormalizeCode(promoCode)
	if normalized == "" {
		return common.NotFoundError(common.CodePromoCodeNotFound, "promo code is required")
	}
	code, found, err := r.Codes.FindByCode(ctx, normalized)
	if err != nil {
		return fmt.Errorf("promo: look up code %s: %w", normalized, err)
	}
	if !found {
		return common.NotFoundError(common.CodePromoCodeNotFound,
			fmt.Sprintf("promo code %s is not recognised", normalized))
	}
	if err := code.CheckEligibleAt(r.now()); err != nil {
		return err
	}
	ok, err := r.Codes.Redeem(ctx, normalized)
	if err != nil {
		return fmt.Errorf("promo: redeem code %s: %w", normalized, err)
	}
	if !ok {
		return common.ExhaustionError(common.CodePromoCodeUsageLimitReached,
			fmt.Sprintf("promo code %s usage limit reached", normalized))
	}
	return nil
}
