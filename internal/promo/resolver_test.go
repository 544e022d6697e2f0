package promo_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okna-market/pricing-api/internal/common"
	"github.com/okna-market/pricing-api/internal/money"
	"github.com/okna-market/pricing-api/internal/promo"
)

type stubCampaigns struct {
	campaigns []promo.Campaign
}

func (s stubCampaigns) FindActiveForProduct(_ context.Context, _ string) ([]promo.Campaign, error) {
	return s.campaigns, nil
}

func (s stubCampaigns) Save(_ context.Context, _ promo.Campaign) error { return nil }

type stubCodes struct {
	mu    sync.Mutex
	codes map[string]*promo.Code
}

func (s *stubCodes) FindByCode(_ context.Context, code string) (promo.Code, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok {
		return promo.Code{}, false, nil
	}
	return *c, true, nil
}

func (s *stubCodes) Save(_ context.Context, c promo.Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[promo.NormalizeCode(c.Code)] = &c
	return nil
}

// Redeem mirrors the SQL contract: check and increment under one lock.
func (s *stubCodes) Redeem(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok {
		return false, nil
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return false, nil
	}
	c.UsageCount++
	return true, nil
}

func fixedNow() time.Time {
	return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
}

func activeWindow() (time.Time, time.Time) {
	return fixedNow().Add(-time.Hour), fixedNow().Add(time.Hour)
}

func newResolver(campaigns []promo.Campaign, codes map[string]*promo.Code) *promo.Resolver {
	if codes == nil {
		codes = map[string]*promo.Code{}
	}
	return &promo.Resolver{
		Campaigns: stubCampaigns{campaigns: campaigns},
		Codes:     &stubCodes{codes: codes},
		Now:       fixedNow,
	}
}

func rubSubtotal(t *testing.T, amount string) money.Money {
	t.Helper()
	m, err := money.FromString(amount, "RUB")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return m
}

func TestResolveNoSources(t *testing.T) {
	resolver := newResolver(nil, nil)
	res, err := resolver.Resolve(context.Background(), "WINDOW-STD", "", rubSubtotal(t, "115.00"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Discount.IsZero() || len(res.Applied) != 0 {
		t.Fatalf("expected zero discount, got %+v", res)
	}
}

func TestResolvePromoCodePercent(t *testing.T) {
	from, to := activeWindow()
	codes := map[string]*promo.Code{
		"SALE10": {Code: "SALE10", DiscountType: promo.Percentage, DiscountValue: decimal.NewFromInt(10), ValidFrom: from, ValidTo: to},
	}
	resolver := newResolver(nil, codes)

	// Case-insensitive lookup is part of the contract.
	res, err := resolver.Resolve(context.Background(), "WINDOW-STD", "sale10", rubSubtotal(t, "115.00"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Discount.Amount.Equal(decimal.RequireFromString("11.50")) {
		t.Fatalf("expected 11.50 discount, got %s", res.Discount)
	}
	if len(res.Applied) != 1 || res.Applied[0].Source != "promo_code" {
		t.Fatalf("unexpected applied set %+v", res.Applied)
	}
}

func TestResolveUnknownCodeIsHardError(t *testing.T) {
	resolver := newResolver(nil, nil)
	_, err := resolver.Resolve(context.Background(), "WINDOW-STD", "NOPE", rubSubtotal(t, "100.00"))
	if common.ErrorCode(err) != common.CodePromoCodeNotFound {
		t.Fatalf("expected PROMO_CODE_NOT_FOUND, got %v", err)
	}
}

func TestResolveExpiredCodeIsHardError(t *testing.T) {
	from, to := activeWindow()
	codes := map[string]*promo.Code{
		"OLD": {Code: "OLD", DiscountType: promo.Percentage, DiscountValue: decimal.NewFromInt(5),
			ValidFrom: from.Add(-48 * time.Hour), ValidTo: to.Add(-47 * time.Hour)},
	}
	resolver := newResolver(nil, codes)
	_, err := resolver.Resolve(context.Background(), "WINDOW-STD", "OLD", rubSubtotal(t, "100.00"))
	if common.ErrorCode(err) != common.CodePromoCodeExpired {
		t.Fatalf("expected PROMO_CODE_EXPIRED, got %v", err)
	}
}

func TestResolvePercentageBeforeFixedAgainstPreDiscountSubtotal(t *testing.T) {
	from, to := activeWindow()
	campaigns := []promo.Campaign{
		{Name: "autumn-fixed", ProductTemplateID: "*", DiscountType: promo.FixedAmount,
			DiscountValue: decimal.NewFromInt(20), ValidFrom: from, ValidTo: to},
		{Name: "autumn-percent", ProductTemplateID: "WINDOW-STD", DiscountType: promo.Percentage,
			DiscountValue: decimal.NewFromInt(10), ValidFrom: from, ValidTo: to},
	}
	resolver := newResolver(campaigns, nil)
	res, err := resolver.Resolve(context.Background(), "WINDOW-STD", "", rubSubtotal(t, "200.00"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// 10% of 200.00 = 20.00, plus fixed 20 -> 40.00 total.
	if !res.Discount.Amount.Equal(decimal.RequireFromString("40.00")) {
		t.Fatalf("expected 40.00 discount, got %s", res.Discount)
	}
	if res.Applied[0].DiscountType != promo.Percentage {
		t.Fatalf("percentage source must be applied first, got %+v", res.Applied)
	}
}

func TestResolveClampNeverNegative(t *testing.T) {
	from, to := activeWindow()
	campaigns := []promo.Campaign{
		{Name: "everything-off", ProductTemplateID: "*", DiscountType: promo.Percentage,
			DiscountValue: decimal.NewFromInt(90), ValidFrom: from, ValidTo: to},
		{Name: "big-fixed", ProductTemplateID: "*", DiscountType: promo.FixedAmount,
			DiscountValue: decimal.NewFromInt(500), ValidFrom: from, ValidTo: to},
	}
	resolver := newResolver(campaigns, nil)
	subtotal := rubSubtotal(t, "115.00")
	res, err := resolver.Resolve(context.Background(), "WINDOW-STD", "", subtotal)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Discount.Amount.Equal(subtotal.Amount) {
		t.Fatalf("discount must clamp at subtotal, got %s", res.Discount)
	}
	remaining, err := subtotal.Sub(res.Discount)
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	if remaining.IsNegative() {
		t.Fatalf("discounted subtotal went negative: %s", remaining)
	}
}

func TestResolveSkipsIneligibleCampaignsSilently(t *testing.T) {
	from, to := activeWindow()
	limit := int32(3)
	campaigns := []promo.Campaign{
		{Name: "spent", ProductTemplateID: "*", DiscountType: promo.Percentage,
			DiscountValue: decimal.NewFromInt(50), ValidFrom: from, ValidTo: to,
			UsageLimit: &limit, UsageCount: 3},
	}
	resolver := newResolver(campaigns, nil)
	res, err := resolver.Resolve(context.Background(), "WINDOW-STD", "", rubSubtotal(t, "100.00"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Discount.IsZero() {
		t.Fatalf("exhausted campaign must be skipped, got %s", res.Discount)
	}
}

func TestRedeemConcurrentSingleUse(t *testing.T) {
	from, to := activeWindow()
	limit := int32(1)
	store := &stubCodes{codes: map[string]*promo.Code{
		"ONCE": {Code: "ONCE", DiscountType: promo.FixedAmount, DiscountValue: decimal.NewFromInt(10),
			ValidFrom: from, ValidTo: to, UsageLimit: &limit},
	}}
	resolver := &promo.Resolver{Campaigns: stubCampaigns{}, Codes: store, Now: fixedNow}

	const callers = 16
	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot] = resolver.Redeem(context.Background(), "once")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful redemption, got %d", succeeded)
	}
	if got := store.codes["ONCE"].UsageCount; got != 1 {
		t.Fatalf("usage count must stop at the limit, got %d", got)
	}
}
