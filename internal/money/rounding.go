package money

import "github.com/shopspring/decimal"

// RoundingMode selects how a half-way digit is resolved.
type RoundingMode string

const (
	// HalfUp rounds 0.005 away from zero to 0.01.
	HalfUp RoundingMode = "HALF_UP"
	// HalfEven rounds 0.005 to the nearest even digit (bankers rounding).
	HalfEven RoundingMode = "HALF_EVEN"
)

// RoundingRule pairs a decimal scale with a rounding mode.
type RoundingRule struct {
	Scale int32
	Mode  RoundingMode
}

// RoundingPolicy maps currency codes to their rounding rules. Currencies
// without an explicit entry fall back to the generic rule; that fallback is a
// documented default, not silent data loss, and tests exercise it by name.
type RoundingPolicy struct {
	rules    map[string]RoundingRule
	fallback RoundingRule
}

// DefaultPolicy returns the policy currently in force: every supported
// currency rounds HALF_UP to two decimals. RUB is listed explicitly even
// though its rule matches the fallback, so a future divergence has a slot.
func DefaultPolicy() RoundingPolicy {
	generic := RoundingRule{Scale: 2, Mode: HalfUp}
	return RoundingPolicy{
		rules: map[string]RoundingRule{
			"RUB": generic,
			"EUR": generic,
			"USD": generic,
		},
		fallback: generic,
	}
}

// RuleFor returns the rule for the currency and whether it came from an
// explicit entry rather than the fallback.
func (p RoundingPolicy) RuleFor(currency string) (RoundingRule, bool) {
	if rule, ok := p.rules[NormalizeCurrency(currency)]; ok {
		return rule, true
	}
	return p.fallback, false
}

// Round applies the currency's rounding rule to the value.
func (p RoundingPolicy) Round(m Money) Money {
	rule, _ := p.RuleFor(m.Currency)
	return m.Round(rule)
}

// Round applies an explicit rule to the value.
func (m Money) Round(rule RoundingRule) Money {
	var amount decimal.Decimal
	switch rule.Mode {
	case HalfEven:
		amount = m.Amount.RoundBank(rule.Scale)
	default:
		amount = m.Amount.Round(rule.Scale)
	}
	return Money{Amount: amount, Currency: m.Currency}
}
