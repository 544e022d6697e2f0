package quote

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/okna-market/pricing-api/internal/common"
	"github.com/okna-market/pricing-api/internal/events"
	"github.com/okna-market/pricing-api/internal/money"
	"github.com/okna-market/pricing-api/internal/obs"
	"github.com/okna-market/pricing-api/internal/pricebook"
	"github.com/okna-market/pricing-api/internal/promo"
	"github.com/okna-market/pricing-api/internal/tax"
)

// BookSource resolves the single active price book for a product template.
type BookSource interface {
	FindActive(ctx context.Context, productTemplateID string) (pricebook.PriceBook, error)
}

// DiscountResolver combines campaign and promo-code discounts for a subtotal.
type DiscountResolver interface {
	Resolve(ctx context.Context, productTemplateID, promoCode string, subtotal money.Money) (promo.Resolution, error)
}

// TaxApplier computes the tax amount for a region.
type TaxApplier interface {
	Apply(ctx context.Context, subtotal money.Money, region string) (money.Money, tax.Rule, error)
}

// EventPublisher receives the quote-calculated event after the response is
// final. Failures here never fail the calculation.
type EventPublisher interface {
	PublishQuoteCalculated(ctx context.Context, ev events.QuoteCalculatedEvent) error
}

// Service orchestrates the fixed pricing pipeline: resolve price book, check
// cache, compute base and option premiums, apply discounts, apply tax, round,
// store, publish. Every step appends to the quote's decision trace.
type Service struct {
	Books     BookSource
	Discounts DiscountResolver
	Taxes     TaxApplier
	Cache     *Cache
	Publisher EventPublisher
	Policy    money.RoundingPolicy
	Validate  *validator.Validate
	Logger    *zerolog.Logger
	Now       func() time.Time
	// ValidFor bounds how long a quote may be served from cache.
	ValidFor time.Duration
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) validFor() time.Duration {
	if s.ValidFor > 0 {
		return s.ValidFor
	}
	return 15 * time.Minute
}

func (s *Service) log() *zerolog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

// Calculate runs the full pricing pipeline for one command.
func (s *Service) Calculate(ctx context.Context, cmd CalculateQuoteCommand) (Response, error) {
	resp, err := s.calculate(ctx, cmd)
	if err != nil {
		obs.IncQuoteCalculation(resultLabel(err))
		return Response{}, err
	}
	obs.IncQuoteCalculation("ok")
	return resp, nil
}

func (s *Service) calculate(ctx context.Context, cmd CalculateQuoteCommand) (Response, error) {
	start := time.Now()
	defer func() {
		obs.ObserveQuoteLatency(obs.DurationMillis(time.Since(start)))
	}()

	if err := s.validateCommand(cmd); err != nil {
		return Response{}, err
	}
	cmd = cmd.Normalize()

	trace := &traceBuilder{}

	book, err := s.Books.FindActive(ctx, cmd.ProductTemplateID)
	if err != nil {
		return Response{}, err
	}
	trace.add(StepResolvePriceBook, CategoryPricing,
		fmt.Sprintf("resolved price book %s version %d for template %s", book.ID, book.Version, cmd.ProductTemplateID))

	if book.Currency() != cmd.Currency {
		return Response{}, common.ValidationError(common.CodeCurrencyMismatch,
			fmt.Sprintf("price book for %s is priced in %s, not %s", cmd.ProductTemplateID, book.Currency(), cmd.Currency))
	}

	fingerprint := Fingerprint(book, cmd)
	cached, hit, err := s.Cache.Get(ctx, fingerprint)
	if err != nil {
		// A broken cache degrades to recomputation, never to failure.
		obs.IncQuoteCacheLookup("error")
		s.log().Warn().Err(err).Str("fingerprint", fingerprint).Msg("quote cache read failed")
	} else if hit {
		obs.IncQuoteCacheLookup("hit")
		s.publish(ctx, cached, true)
		return Response{Quote: cached, FromCache: true}, nil
	} else {
		obs.IncQuoteCacheLookup("miss")
	}
	trace.add(StepCheckCache, CategoryCache, "cache miss for fingerprint "+fingerprint)

	premiums, err := book.ResolveOptions(cmd.OptionIDs)
	if err != nil {
		return Response{}, err
	}

	subtotal := book.BasePrice
	trace.add(StepComputeBase, CategoryPricing, "base price "+book.BasePrice.String())
	for _, p := range premiums {
		subtotal, err = subtotal.Add(p.Premium)
		if err != nil {
			return Response{}, err
		}
		trace.add(StepApplyOption, CategoryPricing,
			fmt.Sprintf("option %s adds %s", p.OptionID, p.Premium.String()))
	}

	resolution, err := s.Discounts.Resolve(ctx, cmd.ProductTemplateID, cmd.PromoCode, subtotal)
	if err != nil {
		return Response{}, err
	}
	discount := s.Policy.Round(resolution.Discount)
	for _, applied := range resolution.Applied {
		trace.add(StepApplyDiscount, CategoryDiscount,
			fmt.Sprintf("%s %q (%s %s) subtracts %s", applied.Source, applied.Name, applied.DiscountType, applied.Value.String(), applied.Amount.String()))
	}
	discounted, err := subtotal.Sub(discount)
	if err != nil {
		return Response{}, err
	}

	taxAmount, rule, err := s.Taxes.Apply(ctx, discounted, cmd.Region)
	if err != nil {
		return Response{}, err
	}
	trace.add(StepApplyTax, CategoryTax,
		fmt.Sprintf("region %s rate %s yields %s", rule.Region, rule.Rate.String(), taxAmount.String()))

	total, err := discounted.Add(taxAmount)
	if err != nil {
		return Response{}, err
	}
	ruleUsed, explicit := s.Policy.RuleFor(cmd.Currency)
	total = total.Round(ruleUsed)
	if explicit {
		trace.add(StepRound, CategoryRounding,
			fmt.Sprintf("rounded total to %d decimals (%s)", ruleUsed.Scale, ruleUsed.Mode))
	} else {
		trace.add(StepRound, CategoryRounding,
			fmt.Sprintf("no rounding rule for %s, fallback to %d decimals (%s)", cmd.Currency, ruleUsed.Scale, ruleUsed.Mode))
	}

	now := s.now()
	trace.add(StepCacheStore, CategoryCache, "stored under fingerprint "+fingerprint)
	trace.add(StepPublishEvent, CategoryEvent, "published "+events.TopicQuoteCalculated)

	q := Quote{
		QuoteID:           uuid.New(),
		ProductTemplateID: cmd.ProductTemplateID,
		PriceBookID:       book.ID,
		PriceBookVersion:  book.Version,
		Fingerprint:       fingerprint,
		Region:            cmd.Region,
		PromoCode:         cmd.PromoCode,
		BasePrice:         book.BasePrice,
		OptionPremiums:    premiums,
		AppliedDiscounts:  resolution.Applied,
		Discount:          discount,
		Subtotal:          s.Policy.Round(discounted),
		Tax:               taxAmount,
		Total:             total,
		CalculatedAt:      now,
		ValidUntil:        now.Add(s.validFor()),
		DecisionTrace:     trace.build(),
	}

	if err := s.Cache.Put(ctx, q); err != nil {
		s.log().Warn().Err(err).Str("fingerprint", fingerprint).Msg("quote cache write failed")
	}
	s.publish(ctx, q, false)

	return Response{Quote: q, FromCache: false}, nil
}

// publish emits the quote-calculated event. Publish failures are logged and
// counted but never surface to the caller.
func (s *Service) publish(ctx context.Context, q Quote, fromCache bool) {
	if s.Publisher == nil {
		return
	}
	ev := events.QuoteCalculatedEvent{
		QuoteID:           q.QuoteID.String(),
		ProductTemplateID: q.ProductTemplateID,
		Fingerprint:       q.Fingerprint,
		Total:             q.Total.Amount.StringFixed(2),
		Currency:          q.Total.Currency,
		Region:            q.Region,
		PromoCode:         q.PromoCode,
		FromCache:         fromCache,
		CalculatedAt:      q.CalculatedAt,
	}
	if err := s.Publisher.PublishQuoteCalculated(ctx, ev); err != nil {
		if obs.QuoteEventsPublishFailures != nil {
			obs.QuoteEventsPublishFailures.Inc()
		}
		s.log().Error().Err(err).Str("quote_id", ev.QuoteID).Msg("quote event publish failed")
	}
}

func (s *Service) validateCommand(cmd CalculateQuoteCommand) error {
	if s.Validate != nil {
		if err := s.Validate.StructPartial(cmd, "ProductTemplateID", "Currency", "Region"); err != nil {
			return common.NewAppError("BAD_REQUEST", "invalid quote request: "+err.Error(), http.StatusBadRequest, err)
		}
	} else if strings.TrimSpace(cmd.ProductTemplateID) == "" || strings.TrimSpace(cmd.Currency) == "" || strings.TrimSpace(cmd.Region) == "" {
		return common.NewAppError("BAD_REQUEST", "productTemplateId, currency and region are required", http.StatusBadRequest, nil)
	}
	if !cmd.WidthMM.IsPositive() || !cmd.HeightMM.IsPositive() {
		return common.NewAppError("BAD_REQUEST", "widthMm and heightMm must be positive", http.StatusBadRequest, nil)
	}
	return nil
}

func resultLabel(err error) string {
	if code := common.ErrorCode(err); code != "" {
		return strings.ToLower(code)
	}
	return "error"
}
