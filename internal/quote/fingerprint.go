package quote

import (
	"strconv"
	"strings"

	"github.com/okna-market/pricing-api/internal/common"
	"github.com/okna-market/pricing-api/internal/pricebook"
)

// Fingerprint derives the deterministic cache key for a calculation: a
// canonical string over every semantic input hashed with SHA-256 and prefixed
// with the product template id so cache contents stay inspectable by hand.
// The price book version is part of the canonical string, so publishing a new
// version changes every key for the template.
func Fingerprint(book pricebook.PriceBook, cmd CalculateQuoteCommand) string {
	normalized := cmd.Normalize()
	parts := []string{
		book.ID.String(),
		strconv.FormatInt(int64(book.Version), 10),
		normalized.ProductTemplateID,
		normalized.WidthMM.StringFixed(2),
		normalized.HeightMM.StringFixed(2),
		strings.Join(normalized.OptionIDs, ","),
		normalized.Currency,
		normalized.PromoCode,
		normalized.Region,
	}
	digest := common.Sha256Hex(strings.Join(parts, "|"))
	return normalized.ProductTemplateID + ":" + digest
}
