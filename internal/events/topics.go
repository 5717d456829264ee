package events

// Topic constants for domain events emitted by the platform.
const (
	TopicQuoteCalculated       = "quote.calculated"
	TopicQuoteRejected         = "quote.rejected"
	TopicClassificationMissing = "classification.missing"
	TopicRatesRefreshed        = "rates.refreshed"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicQuoteCalculated,
		TopicQuoteRejected,
		TopicClassificationMissing,
		TopicRatesRefreshed,
	}
}
