package rabbitmq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// PublishMessage публикует message в exchange как persistent JSON.
// Каждому сообщению присваивается MessageId, по которому его видно в логах потребителя.
func PublishMessage(ch *amqp.Channel, exchange, routingKey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := amqp.Publishing{
		MessageId:    uuid.NewString(),
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
	}
	if err := ch.Publish(exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("%s: %s: %w", op, routingKey, err)
	}
	return nil
}
