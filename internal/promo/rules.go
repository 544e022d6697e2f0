package promo

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/okna-market/pricing-api/internal/common"
)

// DiscountType distinguishes percentage rules from fixed-amount rules.
type DiscountType string

const (
	Percentage  DiscountType = "PERCENTAGE"
	FixedAmount DiscountType = "FIXED_AMOUNT"
)

// WildcardTemplate marks a campaign as applicable to every product template.
const WildcardTemplate = "*"

// Campaign is an admin-defined discount rule scoped to one product template or
// to all of them.
type Campaign struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	ProductTemplateID string          `json:"productTemplateId"`
	DiscountType      DiscountType    `json:"discountType"`
	DiscountValue     decimal.Decimal `json:"discountValue"`
	ValidFrom         time.Time       `json:"validFrom"`
	ValidTo           time.Time       `json:"validTo"`
	UsageLimit        *int32          `json:"usageLimit,omitempty"`
	UsageCount        int32           `json:"usageCount"`
}

// Code is a customer-facing promo code. Lookup is case-insensitive; the stored
// code is always the normalised form.
type Code struct {
	ID            uuid.UUID       `json:"id"`
	Code          string          `json:"code"`
	DiscountType  DiscountType    `json:"discountType"`
	DiscountValue decimal.Decimal `json:"discountValue"`
	ValidFrom     time.Time       `json:"validFrom"`
	ValidTo       time.Time       `json:"validTo"`
	UsageLimit    *int32          `json:"usageLimit,omitempty"`
	UsageCount    int32           `json:"usageCount"`
	CreatedBy     string          `json:"createdBy"`
}

// NormalizeCode trims and upper-cases a promo code for lookup and storage.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// validateRule checks the fields shared by campaigns and codes at creation
// time, before anything is persisted.
func validateRule(kind DiscountType, value decimal.Decimal, from, to time.Time) error {
	switch kind {
	case Percentage:
		if value.IsNegative() {
			return common.ValidationError(common.CodeInvalidDiscountValue,
				fmt.Sprintf("promo: negative percentage %s", value))
		}
		if value.GreaterThan(decimal.NewFromInt(100)) {
			return common.ValidationError(common.CodeDiscountExceeds100,
				fmt.Sprintf("promo: percentage %s exceeds 100", value))
		}
	case FixedAmount:
		if value.IsNegative() {
			return common.ValidationError(common.CodeInvalidDiscountValue,
				fmt.Sprintf("promo: negative fixed discount %s", value))
		}
	default:
		return common.ValidationError(common.CodeInvalidDiscountValue,
			fmt.Sprintf("promo: unknown discount type %q", kind))
	}
	if !from.Before(to) {
		return common.ValidationError(common.CodeInvalidDateRange,
			"promo: validFrom must precede validTo")
	}
	return nil
}

// Validate enforces creation-time invariants for a campaign.
func (c Campaign) Validate() error {
	return validateRule(c.DiscountType, c.DiscountValue, c.ValidFrom, c.ValidTo)
}

// EligibleAt reports whether the campaign can be applied at the given instant.
// Ineligible campaigns are skipped, never an error.
func (c Campaign) EligibleAt(now time.Time) bool {
	if now.Before(c.ValidFrom) || now.After(c.ValidTo) {
		return false
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return false
	}
	return true
}

// AppliesTo reports whether the campaign covers the product template.
func (c Campaign) AppliesTo(productTemplateID string) bool {
	return c.ProductTemplateID == WildcardTemplate || c.ProductTemplateID == productTemplateID
}

// Validate enforces creation-time invariants for a promo code.
func (p Code) Validate() error {
	if NormalizeCode(p.Code) == "" {
		return common.ValidationError(common.CodeInvalidDiscountValue, "promo: code is required")
	}
	return validateRule(p.DiscountType, p.DiscountValue, p.ValidFrom, p.ValidTo)
}

// CheckEligibleAt returns the precise rejection for a supplied promo code. A
// rejected code is a hard error for the caller, never a silently dropped
// discount.
func (p Code) CheckEligibleAt(now time.Time) error {
	if now.Before(p.ValidFrom) {
		return common.ExhaustionError(common.CodePromoCodeExpired,
			fmt.Sprintf("promo code %s is not active yet", p.Code))
	}
	if now.After(p.ValidTo) {
		return common.ExhaustionError(common.CodePromoCodeExpired,
			fmt.Sprintf("promo code %s has expired", p.Code))
	}
	if p.UsageLimit != nil && p.UsageCount >= *p.UsageLimit {
		return common.ExhaustionError(common.CodePromoCodeUsageLimitReached,
			fmt.Sprintf("promo code %s usage limit reached", p.Code))
	}
	return nil
}
