package quote

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/okna-market/pricing-api/internal/money"
	"github.com/okna-market/pricing-api/internal/promo"
)

// CalculateQuoteCommand carries every semantic input to one price
// calculation. Two commands that normalise identically always produce the
// same fingerprint.
type CalculateQuoteCommand struct {
	ProductTemplateID string          `json:"productTemplateId" validate:"required"`
	WidthMM           decimal.Decimal `json:"widthMm" validate:"required"`
	HeightMM          decimal.Decimal `json:"heightMm" validate:"required"`
	OptionIDs         []string        `json:"optionIds"`
	Currency          string          `json:"currency" validate:"required,len=3"`
	Region            string          `json:"region" validate:"required"`
	PromoCode         string          `json:"promoCode"`
}

// Normalize canonicalises the free-form inputs: trimmed template id, sorted
// deduplicated option ids, upper-cased currency/region/promo code.
func (c CalculateQuoteCommand) Normalize() CalculateQuoteCommand {
	out := c
	out.ProductTemplateID = strings.TrimSpace(c.ProductTemplateID)
	out.Currency = money.NormalizeCurrency(c.Currency)
	out.Region = strings.ToUpper(strings.TrimSpace(c.Region))
	out.PromoCode = promo.NormalizeCode(c.PromoCode)

	seen := make(map[string]bool, len(c.OptionIDs))
	options := make([]string, 0, len(c.OptionIDs))
	for _, id := range c.OptionIDs {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		options = append(options, trimmed)
	}
	sort.Strings(options)
	out.OptionIDs = options
	return out
}
