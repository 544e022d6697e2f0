package tax

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okna-market/pricing-api/internal/common"
	"github.com/okna-market/pricing-api/internal/money"
)

// Rule maps a region to a tax rate expressed as a decimal fraction
// (0.20 == 20%). One rule exists per region.
type Rule struct {
	Region    string          `json:"region"`
	Rate      decimal.Decimal `json:"rate"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Validate rejects rates outside [0, 1] at creation time.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Region) == "" {
		return common.ValidationError(common.CodeInvalidTaxRate, "tax: region is required")
	}
	if r.Rate.IsNegative() || r.Rate.GreaterThan(decimal.NewFromInt(1)) {
		return common.ValidationError(common.CodeInvalidTaxRate,
			fmt.Sprintf("tax: rate %s outside [0, 1]", r.Rate))
	}
	return nil
}

// Repository resolves tax rules by region.
type Repository interface {
	FindByRegion(ctx context.Context, region string) (Rule, bool, error)
	Save(ctx context.Context, rule Rule) error
}

// Service computes the tax component of a quote.
type Service struct {
	Repo   Repository
	Policy money.RoundingPolicy
}

// Apply resolves the region's rule and returns the rounded tax on the
// discounted subtotal. A missing region is a hard error, never an implicit
// zero-tax default. The result is rounded per currency policy before it joins
// the running total so fractional kopeks cannot leak downstream.
func (s *Service) Apply(ctx context.Context, subtotal money.Money, region string) (money.Money, Rule, error) {
	region = strings.ToUpper(strings.TrimSpace(region))
	rule, found, err := s.Repo.FindByRegion(ctx, region)
	if err != nil {
		return money.Money{}, Rule{}, fmt.Errorf("tax: find rule for %s: %w", region, err)
	}
	if !found {
		return money.Money{}, Rule{}, common.NotFoundError(common.CodeTaxRuleNotFound,
			fmt.Sprintf("no tax rule configured for region %s", region))
	}
	taxAmount := s.Policy.Round(subtotal.MulScalar(rule.Rate))
	return taxAmount, rule, nil
}
