package pricebook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/okna-market/pricing-api/internal/common"
	"github.com/okna-market/pricing-api/internal/events"
	"github.com/okna-market/pricing-api/internal/money"
	"github.com/okna-market/pricing-api/internal/obs"
)

// QuoteEvictor drops cached quotes for a product template. Publishing calls
// it so stale price book versions never serve from cache; the fingerprint
// already embeds the version, so this is immediate-consistency hygiene rather
// than a correctness requirement.
type QuoteEvictor interface {
	EvictByProductTemplateID(ctx context.Context, productTemplateID string) error
}

// EventPublisher announces newly activated price book versions.
type EventPublisher interface {
	PublishPriceBookPublished(ctx context.Context, ev events.PriceBookPublishedEvent) error
}

// Service owns the price book lifecycle.
type Service struct {
	Repo      Repository
	Evictor   QuoteEvictor
	Publisher EventPublisher
	Logger    *zerolog.Logger
}

// FindActive resolves the single active book for a template. Absence is a
// hard stop with PRICE_BOOK_NOT_FOUND, never a zero-price fallback.
func (s *Service) FindActive(ctx context.Context, productTemplateID string) (PriceBook, error) {
	productTemplateID = strings.TrimSpace(productTemplateID)
	book, found, err := s.Repo.FindActiveByProductTemplateID(ctx, productTemplateID)
	if err != nil {
		return PriceBook{}, fmt.Errorf("pricebook: find active for %s: %w", productTemplateID, err)
	}
	if !found {
		return PriceBook{}, common.NotFoundError(common.CodePriceBookNotFound,
			fmt.Sprintf("no active price book for product template %s", productTemplateID))
	}
	return book, nil
}

// DraftInput describes a new draft book.
type DraftInput struct {
	ProductTemplateID string            `json:"productTemplateId" validate:"required"`
	BasePrice         string            `json:"basePrice" validate:"required"`
	Currency          string            `json:"currency" validate:"required,len=3"`
	OptionPremiums    map[string]string `json:"optionPremiums"`
}

// CreateDraft validates and stores a draft book. Drafts are mutable only in
// the sense that they can be replaced; published content is immutable.
func (s *Service) CreateDraft(ctx context.Context, in DraftInput) (PriceBook, error) {
	base, err := money.FromString(in.BasePrice, in.Currency)
	if err != nil {
		return PriceBook{}, common.NewAppError("BAD_REQUEST",
			fmt.Sprintf("invalid base price %q", in.BasePrice), http.StatusBadRequest, err)
	}
	if base.IsNegative() {
		return PriceBook{}, common.NewAppError("BAD_REQUEST", "base price must not be negative", http.StatusBadRequest, nil)
	}
	premiums := make(map[string]money.Money, len(in.OptionPremiums))
	for id, value := range in.OptionPremiums {
		premium, err := money.FromString(value, in.Currency)
		if err != nil || premium.IsNegative() {
			return PriceBook{}, common.NewAppError("BAD_REQUEST",
				fmt.Sprintf("invalid premium for option %q", id), http.StatusBadRequest, err)
		}
		premiums[strings.TrimSpace(id)] = premium
	}

	book := PriceBook{
		ID:                uuid.New(),
		ProductTemplateID: strings.TrimSpace(in.ProductTemplateID),
		BasePrice:         base,
		OptionPremiums:    premiums,
		Status:            StatusDraft,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.Repo.SaveDraft(ctx, book); err != nil {
		return PriceBook{}, fmt.Errorf("pricebook: save draft: %w", err)
	}
	return book, nil
}

// Publish activates a draft, archives the prior active version and evicts
// cached quotes for the template. Eviction failures are logged, not
// propagated: the version-bearing fingerprint already guarantees correctness.
func (s *Service) Publish(ctx context.Context, id uuid.UUID) (PriceBook, error) {
	book, err := s.Repo.Publish(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotDraft) {
			return PriceBook{}, common.NewAppError("CONFLICT", "only draft price books can be published", http.StatusConflict, err)
		}
		return PriceBook{}, err
	}
	if s.Evictor != nil {
		if err := s.Evictor.EvictByProductTemplateID(ctx, book.ProductTemplateID); err != nil && s.Logger != nil {
			s.Logger.Error().Err(err).
				Str("product_template_id", book.ProductTemplateID).
				Msg("evict cached quotes after publish")
		}
	}
	if s.Publisher != nil {
		publishedAt := time.Now().UTC()
		if book.PublishedAt != nil {
			publishedAt = *book.PublishedAt
		}
		ev := events.PriceBookPublishedEvent{
			PriceBookID:       book.ID.String(),
			ProductTemplateID: book.ProductTemplateID,
			Version:           book.Version,
			PublishedAt:       publishedAt,
		}
		if err := s.Publisher.PublishPriceBookPublished(ctx, ev); err != nil && s.Logger != nil {
			s.Logger.Error().Err(err).Str("price_book_id", book.ID.String()).Msg("publish price book event")
		}
	}
	if obs.PriceBookPublishesTotal != nil {
		obs.PriceBookPublishesTotal.Inc()
	}
	return book, nil
}
