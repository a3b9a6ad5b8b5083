package worker

import (
	"fmt"

	"github.com/sefazor/ourphotos-resizer/internal/config"
	"github.com/streadway/amqp"
)

// RMQReceiver owns the broker connection the origin events arrive on.
type RMQReceiver struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue *amqp.Queue
}

func NewRMQReceiver(cfg config.QueueConfig) (*RMQReceiver, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("could not dial rabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not create rabbitMQ channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		cfg.QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not declare rabbitMQ queue: %w", err)
	}

	if cfg.Exchange != "" {
		if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("could not bind queue %s to exchange %s: %w", q.Name, cfg.Exchange, err)
		}
	}

	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not set rabbitMQ Qos: %w", err)
	}

	return &RMQReceiver{
		conn:  conn,
		ch:    ch,
		queue: &q,
	}, nil
}

func (rs *RMQReceiver) Closer() error {
	if err := rs.ch.Close(); err != nil {
		return fmt.Errorf("could not close rabbitMQ channel: %w", err)
	}

	if err := rs.conn.Close(); err != nil {
		return fmt.Errorf("could not close rabbitMQ connection: %w", err)
	}
	return nil
}

func (rs *RMQReceiver) GetMessageChan() (<-chan amqp.Delivery, error) {
	msgs, err := rs.ch.Consume(
		rs.queue.Name,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("could not get rabbitMQ msg chan: %w", err)
	}
	return msgs, nil
}
