package tax_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/okna-market/pricing-api/internal/common"
	"github.com/okna-market/pricing-api/internal/money"
	"github.com/okna-market/pricing-api/internal/tax"
)

type stubRepo struct {
	rules map[string]tax.Rule
}

func (s stubRepo) FindByRegion(_ context.Context, region string) (tax.Rule, bool, error) {
	rule, ok := s.rules[region]
	return rule, ok, nil
}

func (s stubRepo) Save(_ context.Context, rule tax.Rule) error {
	s.rules[rule.Region] = rule
	return nil
}

func TestApplyRoundsPerCurrencyPolicy(t *testing.T) {
	repo := stubRepo{rules: map[string]tax.Rule{
		"RU": {Region: "RU", Rate: decimal.RequireFromString("0.20")},
	}}
	svc := &tax.Service{Repo: repo, Policy: money.DefaultPolicy()}

	subtotal, err := money.FromString("115.00", "RUB")
	if err != nil {
		t.Fatalf("parse subtotal: %v", err)
	}
	taxAmount, rule, err := svc.Apply(context.Background(), subtotal, "ru")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !taxAmount.Amount.Equal(decimal.RequireFromString("23.00")) {
		t.Fatalf("expected 23.00 tax, got %s", taxAmount)
	}
	if rule.Region != "RU" {
		t.Fatalf("unexpected rule %+v", rule)
	}
}

func TestApplyMissingRegionIsHardError(t *testing.T) {
	svc := &tax.Service{Repo: stubRepo{rules: map[string]tax.Rule{}}, Policy: money.DefaultPolicy()}
	subtotal, _ := money.FromString("10.00", "RUB")
	_, _, err := svc.Apply(context.Background(), subtotal, "XX")
	if common.ErrorCode(err) != common.CodeTaxRuleNotFound {
		t.Fatalf("expected TAX_RULE_NOT_FOUND, got %v", err)
	}
}

func TestRuleValidate(t *testing.T) {
	bad := tax.Rule{Region: "RU", Rate: decimal.RequireFromString("1.5")}
	if common.ErrorCode(bad.Validate()) != common.CodeInvalidTaxRate {
		t.Fatalf("expected INVALID_TAX_RATE for rate > 1")
	}
	neg := tax.Rule{Region: "RU", Rate: decimal.RequireFromString("-0.1")}
	if common.ErrorCode(neg.Validate()) != common.CodeInvalidTaxRate {
		t.Fatalf("expected INVALID_TAX_RATE for negative rate")
	}
	ok := tax.Rule{Region: "RU", Rate: decimal.RequireFromString("0.20")}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}
}

func TestApplyFractionalRateRounding(t *testing.T) {
	repo := stubRepo{rules: map[string]tax.Rule{
		"RU": {Region: "RU", Rate: decimal.RequireFromString("0.0775")},
	}}
	svc := &tax.Service{Repo: repo, Policy: money.DefaultPolicy()}
	subtotal, _ := money.FromString("99.99", "RUB")
	taxAmount, _, err := svc.Apply(context.Background(), subtotal, "RU")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	// 99.99 * 0.0775 = 7.749225 -> 7.75 HALF_UP at scale 2
	if !taxAmount.Amount.Equal(decimal.RequireFromString("7.75")) {
		t.Fatalf("expected 7.75, got %s", taxAmount)
	}
}
