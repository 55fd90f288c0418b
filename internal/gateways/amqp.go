package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/dealerflow/dealerflow/pkg/dealerflow/models"
)

// AmqpGateway publishes outbound messages to a topic exchange, one routing
// key per channel (email, whatsapp, sms, notify, custom). Downstream
// delivery services bind their own queues.
type AmqpGateway struct {
	url      string
	exchange string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewAmqpGateway(url string, exchange string) (*AmqpGateway, error) {
	g := &AmqpGateway{url: url, exchange: exchange}
	if err := g.connect(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *AmqpGateway) connect() error {
	conn, err := amqp.Dial(g.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}
	if err := channel.ExchangeDeclare(g.exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("amqp exchange declare: %w", err)
	}
	g.conn = conn
	g.channel = channel
	return nil
}

func (g *AmqpGateway) Publish(ctx context.Context, channel string, message *models.OutboundMessage) error {
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	publish := func() error {
		return g.channel.Publish(g.exchange, channel, false, false, amqp.Publishing{
			ContentType:     "application/json",
			ContentEncoding: "utf-8",
			Body:            body,
		})
	}

	err = publish()
	if err != nil {
		// One reconnect attempt; a broker restart otherwise poisons the
		// long-lived channel.
		slog.Warn("amqp publish failed, reconnecting", "error", err)
		if err := g.connect(); err != nil {
			return err
		}
		err = publish()
	}
	return err
}

func (g *AmqpGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.channel != nil {
		g.channel.Close()
	}
	if g.conn != nil {
		return g.conn.Close()
	}
	return nil
}
