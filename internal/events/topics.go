package events

// Topic constants for domain events emitted by the engine.
const (
	TopicOrderSubmitted    = "order.submitted"
	TopicOrderMaterialized = "order.materialized"
	TopicCampaignSettled   = "campaign.settled"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicOrderSubmitted,
		TopicOrderMaterialized,
		TopicCampaignSettled,
	}
}
