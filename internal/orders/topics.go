package orders

const (
	TopicOrderCreated   = "lunch.order.created"
	TopicOrderModified  = "lunch.order.modified"
	TopicOrderCancelled = "lunch.order.cancelled"
)

// Partition key = order number, so every event for one order keeps its order.
func PartitionKey(orderNumber string) []byte { return []byte(orderNumber) }
