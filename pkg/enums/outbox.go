package enums

// OutboxEventType names the domain events the core publishes after commit.
type OutboxEventType string

const (
	EventPaymentCompleted   OutboxEventType = "payment.completed"
	EventPaymentReverted    OutboxEventType = "payment.reverted"
	EventTableStatusChanged OutboxEventType = "table.status.changed"
	EventOrderUpdated       OutboxEventType = "order.updated"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder       OutboxAggregateType = "order"
	AggregatePayment     OutboxAggregateType = "payment"
	AggregateTable       OutboxAggregateType = "table"
	AggregateCashSession OutboxAggregateType = "cash_session"
)
