// Package notify publishes the fixture completion event to an AMQP fanout
// exchange so downstream services can reload.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var errNotConfirmed = errors.New("server did not confirm the message")

// Publisher sends events over one confirmed channel
type Publisher struct {
	connection    *amqp.Connection
	channel       *amqp.Channel
	exchange      string
	notifyConfirm chan amqp.Confirmation
}

// Dial connects to the broker, puts the channel in confirm mode and declares
// the durable fanout exchange
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	p := &Publisher{
		connection:    conn,
		channel:       ch,
		exchange:      exchange,
		notifyConfirm: make(chan amqp.Confirmation, 1),
	}
	p.channel.NotifyPublish(p.notifyConfirm)
	return p, nil
}

// Publish sends one persistent event and waits for the broker to confirm it
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	body, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,       // exchange
		RoutingKeySeeded, // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	select {
	case confirm, ok := <-p.notifyConfirm:
		if !ok || !confirm.Ack {
			return errNotConfirmed
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for confirmation: %w", ctx.Err())
	}
}

// Close shuts down the channel and the connection
func (p *Publisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.connection.Close()
		return err
	}
	return p.connection.Close()
}
