package pricebook

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/okna-market/pricing-api/internal/common"
	"github.com/okna-market/pricing-api/internal/money"
)

// Status is the lifecycle state of a price book version.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusActive   Status = "ACTIVE"
	StatusArchived Status = "ARCHIVED"
)

// PriceBook is the versioned source of truth for a product template's base
// price and option premiums. Content never mutates once the book is published;
// changes happen by publishing a new version, which archives the prior active
// one.
type PriceBook struct {
	ID                uuid.UUID              `json:"id"`
	ProductTemplateID string                 `json:"productTemplateId"`
	Version           int32                  `json:"version"`
	BasePrice         money.Money            `json:"basePrice"`
	OptionPremiums    map[string]money.Money `json:"optionPremiums"`
	Status            Status                 `json:"status"`
	CreatedAt         time.Time              `json:"createdAt"`
	PublishedAt       *time.Time             `json:"publishedAt,omitempty"`
}

// Currency returns the book's pricing currency (taken from the base price).
func (b PriceBook) Currency() string {
	return b.BasePrice.Currency
}

// OptionIDs lists the configured option ids in sorted order.
func (b PriceBook) OptionIDs() []string {
	ids := make([]string, 0, len(b.OptionPremiums))
	for id := range b.OptionPremiums {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolveOptions maps the requested option ids to their premiums. An unknown
// option id fails fast with a validation error before any pricing step, and a
// premium in a different currency than the base price is rejected the same
// way. No partial resolution is returned.
func (b PriceBook) ResolveOptions(optionIDs []string) ([]OptionPremium, error) {
	premiums := make([]OptionPremium, 0, len(optionIDs))
	seen := make(map[string]bool, len(optionIDs))
	for _, id := range optionIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		premium, ok := b.OptionPremiums[id]
		if !ok {
			return nil, common.ValidationError(common.CodeUnknownOptionID,
				fmt.Sprintf("option %q is not configured in price book %s v%d", id, b.ProductTemplateID, b.Version))
		}
		if premium.Currency != b.Currency() {
			return nil, common.ValidationError(common.CodeCurrencyMismatch,
				fmt.Sprintf("option %q premium currency %s differs from book currency %s", id, premium.Currency, b.Currency()))
		}
		premiums = append(premiums, OptionPremium{OptionID: id, Premium: premium})
	}
	sort.Slice(premiums, func(i, j int) bool { return premiums[i].OptionID < premiums[j].OptionID })
	return premiums, nil
}

// OptionPremium pairs an option id with its price premium.
type OptionPremium struct {
	OptionID string      `json:"optionId"`
	Premium  money.Money `json:"premium"`
}
