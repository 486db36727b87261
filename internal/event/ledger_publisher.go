package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// LedgerEventQueue receives every ledger state transition for off-chain
// indexers: policy creation and activation, claim approval and payment,
// observation recording.
const LedgerEventQueue = "ledger_events"

// LedgerEvent is the envelope published for each state transition.
type LedgerEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Payload   any    `json:"payload"`
}

// LedgerPublisher publishes ledger events to RabbitMQ. Publishing is best
// effort: a broker outage must never fail the ledger command that triggered
// the event, so errors are logged and dropped.
type LedgerPublisher struct {
	conn *RabbitMQConnection
}

func NewLedgerPublisher(conn *RabbitMQConnection) *LedgerPublisher {
	return &LedgerPublisher{conn: conn}
}

func (p *LedgerPublisher) Publish(ctx context.Context, eventType string, payload any) {
	_, err := p.conn.Channel.QueueDeclare(
		LedgerEventQueue, // queue name
		true,             // durable
		false,            // delete when unused
		false,            // exclusive
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		slog.Error("failed to declare ledger event queue", "error", err)
		return
	}

	body, err := json.Marshal(LedgerEvent{
		Type:      eventType,
		Timestamp: time.Now().Unix(),
		Payload:   payload,
	})
	if err != nil {
		slog.Error("failed to marshal ledger event", "type", eventType, "error", err)
		return
	}

	err = p.conn.Channel.PublishWithContext(
		ctx,
		"",               // exchange
		LedgerEventQueue, // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
		},
	)
	if err != nil {
		slog.Error("failed to publish ledger event", "type", eventType, "error", err)
		return
	}
}
