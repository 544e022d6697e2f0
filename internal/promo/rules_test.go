package promo_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okna-market/pricing-api/internal/common"
	"github.com/okna-market/pricing-api/internal/promo"
)

func window(t *testing.T) (time.Time, time.Time) {
	t.Helper()
	now := time.Now()
	return now.Add(-time.Hour), now.Add(time.Hour)
}

func TestCampaignValidate(t *testing.T) {
	from, to := window(t)

	over := promo.Campaign{DiscountType: promo.Percentage, DiscountValue: decimal.NewFromInt(150), ValidFrom: from, ValidTo: to}
	if common.ErrorCode(over.Validate()) != common.CodeDiscountExceeds100 {
		t.Fatalf("expected DISCOUNT_EXCEEDS_100, got %v", over.Validate())
	}

	negative := promo.Campaign{DiscountType: promo.FixedAmount, DiscountValue: decimal.NewFromInt(-5), ValidFrom: from, ValidTo: to}
	if common.ErrorCode(negative.Validate()) != common.CodeInvalidDiscountValue {
		t.Fatalf("expected INVALID_DISCOUNT_VALUE, got %v", negative.Validate())
	}

	inverted := promo.Campaign{DiscountType: promo.Percentage, DiscountValue: decimal.NewFromInt(10), ValidFrom: to, ValidTo: from}
	if common.ErrorCode(inverted.Validate()) != common.CodeInvalidDateRange {
		t.Fatalf("expected INVALID_DATE_RANGE, got %v", inverted.Validate())
	}

	ok := promo.Campaign{DiscountType: promo.Percentage, DiscountValue: decimal.NewFromInt(10), ValidFrom: from, ValidTo: to}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid campaign rejected: %v", err)
	}
}

func TestCampaignEligibility(t *testing.T) {
	from, to := window(t)
	limit := int32(5)
	c := promo.Campaign{DiscountType: promo.Percentage, DiscountValue: decimal.NewFromInt(10),
		ValidFrom: from, ValidTo: to, UsageLimit: &limit, UsageCount: 5}
	if c.EligibleAt(time.Now()) {
		t.Fatal("exhausted campaign should not be eligible")
	}
	c.UsageCount = 4
	if !c.EligibleAt(time.Now()) {
		t.Fatal("campaign under its limit should be eligible")
	}
	if c.EligibleAt(to.Add(time.Minute)) {
		t.Fatal("campaign after validTo should not be eligible")
	}
}

func TestCampaignWildcardScope(t *testing.T) {
	c := promo.Campaign{ProductTemplateID: promo.WildcardTemplate}
	if !c.AppliesTo("WINDOW-STD") || !c.AppliesTo("DOOR-PREMIUM") {
		t.Fatal("wildcard campaign should apply to every template")
	}
	scoped := promo.Campaign{ProductTemplateID: "WINDOW-STD"}
	if scoped.AppliesTo("DOOR-PREMIUM") {
		t.Fatal("scoped campaign should not apply to other templates")
	}
}

func TestCodeEligibilityClasses(t *testing.T) {
	from, to := window(t)
	limit := int32(1)
	code := promo.Code{Code: "SALE10", DiscountType: promo.Percentage, DiscountValue: decimal.NewFromInt(10),
		ValidFrom: from, ValidTo: to, UsageLimit: &limit}

	if err := code.CheckEligibleAt(time.Now()); err != nil {
		t.Fatalf("eligible code rejected: %v", err)
	}
	if got := common.ErrorCode(code.CheckEligibleAt(to.Add(time.Minute))); got != common.CodePromoCodeExpired {
		t.Fatalf("expected PROMO_CODE_EXPIRED, got %s", got)
	}
	code.UsageCount = 1
	if got := common.ErrorCode(code.CheckEligibleAt(time.Now())); got != common.CodePromoCodeUsageLimitReached {
		t.Fatalf("expected PROMO_CODE_USAGE_LIMIT_REACHED, got %s", got)
	}
}

func TestNormalizeCode(t *testing.T) {
	if promo.NormalizeCode("  sale10 ") != "SALE10" {
		t.Fatalf("unexpected normalisation %q", promo.NormalizeCode("  sale10 "))
	}
}
