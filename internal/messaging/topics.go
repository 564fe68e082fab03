package messaging

const (
	TopicOrderCreated  = "order.created"
	TopicOrderOrphaned = "order.orphaned"
)

const eventTypeHeader = "event-type"
