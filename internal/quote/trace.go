package quote

// Stable step identifiers for the decision trace. A rendered trace explains
// the final number without recomputation, so the ids never change meaning.
const (
	StepResolvePriceBook = "RESOLVE_PRICEBOOK"
	StepCheckCache       = "CHECK_CACHE"
	StepComputeBase      = "COMPUTE_BASE"
	StepApplyOption      = "APPLY_OPTION"
	StepApplyDiscount    = "APPLY_DISCOUNT"
	StepApplyTax         = "APPLY_TAX"
	StepRound            = "ROUND"
	StepCacheStore       = "CACHE_STORE"
	StepPublishEvent     = "PUBLISH_EVENT"
)

// Trace entry categories.
const (
	CategoryPricing  = "pricing"
	CategoryCache    = "cache"
	CategoryDiscount = "discount"
	CategoryTax      = "tax"
	CategoryRounding = "rounding"
	CategoryEvent    = "event"
)

// TraceEntry is one audited pricing step. Entries are ordered and append-only
// during a calculation; the finished Quote carries an immutable snapshot.
type TraceEntry struct {
	StepID      string `json:"stepId"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// traceBuilder accumulates entries for a single calculation. It lives only
// inside the orchestrator; callers only ever see the built slice.
type traceBuilder struct {
	entries []TraceEntry
}

func (t *traceBuilder) add(stepID, category, description string) {
	t.entries = append(t.entries, TraceEntry{StepID: stepID, Category: category, Description: description})
}

// build copies the accumulated entries so the returned trace cannot change.
func (t *traceBuilder) build() []TraceEntry {
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}
