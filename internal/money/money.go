package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/okna-market/pricing-api/internal/common"
)

// Money is an immutable fixed-point amount tagged with an ISO 4217 currency
// code. All arithmetic returns new values; operands must share a currency.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// New builds a Money value from a decimal amount and currency code. The code
// is normalised to upper case.
func New(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: NormalizeCurrency(currency)}
}

// FromString parses a decimal string such as "100.00" into a Money value.
func FromString(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("money: parse amount %q: %w", amount, err)
	}
	return New(d, currency), nil
}

// Zero returns the zero amount in the given currency.
func Zero(currency string) Money {
	return New(decimal.Zero, currency)
}

// NormalizeCurrency trims and upper-cases a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func mismatch(op string, a, b Money) error {
	return common.ValidationError(common.CodeCurrencyMismatch,
		fmt.Sprintf("money: %s on mixed currencies %s and %s", op, a.Currency, b.Currency))
}

// Add returns a+b, failing when the currencies differ. Amounts are never
// coerced across currencies.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, mismatch("add", m, other)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Sub returns a-b under the same currency guard as Add.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, mismatch("subtract", m, other)
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

// MulScalar multiplies the amount by a dimensionless decimal factor.
func (m Money) MulScalar(factor decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(factor), Currency: m.Currency}
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

// IsZero reports whether the amount equals zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// Cmp compares amounts, failing on mixed currencies. The result follows
// decimal.Cmp semantics (-1, 0, +1).
func (m Money) Cmp(other Money) (int, error) {
	if m.Currency != other.Currency {
		return 0, mismatch("compare", m, other)
	}
	return m.Amount.Cmp(other.Amount), nil
}

// Equal reports whether two values share currency and exact amount.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

// String renders the amount followed by the currency code, e.g. "138.00 RUB".
func (m Money) String() string {
	return m.Amount.String() + " " + m.Currency
}
