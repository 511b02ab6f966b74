package rabbitmq

// ActivationExchange exchange событий активации.
const ActivationExchange = "activation"

// Очередь невыданных реферальных бонусов.
const (
	OwedCreditQueue      = "referral.credit.owed"
	OwedCreditRoutingKey = "credit_owed"
)

type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

func GetActivationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: OwedCreditQueue, RoutingKey: OwedCreditRoutingKey},
	}
}
