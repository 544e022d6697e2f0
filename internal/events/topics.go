package events

// Topic constants for domain events emitted by the pricing service.
const (
	TopicQuoteCalculated    = "quote.calculated"
	TopicPriceBookPublished = "pricebook.published"
)

// DefaultTopics returns the canonical list of topics downstream consumers may
// subscribe to.
func DefaultTopics() []string {
	return []string{
		TopicQuoteCalculated,
		TopicPriceBookPublished,
	}
}
