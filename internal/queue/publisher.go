package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher publishes messages to durable queues. Each publish dials the
// broker; messages are persistent.
type Publisher struct {
	url    string
	logger *logrus.Logger
}

func NewPublisher(url string, logger *logrus.Logger) *Publisher {
	return &Publisher{url: url, logger: logger}
}

func (p *Publisher) PublishEmailMessage(ctx context.Context, msg EmailMessage) error {
	return p.publish(ctx, EmailMessageQueue, msg)
}

func (p *Publisher) PublishTaskAborted(ctx context.Context, ev TaskAbortedEvent) error {
	return p.publish(ctx, TaskAbortedQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queue string, v any) error {
	log := p.logger.WithContext(ctx).WithField("queue", queue)

	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.WithError(err).Error("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.WithError(err).Error("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		log.WithError(err).Error("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		pub,
	); err != nil {
		log.WithError(err).Error("rabbitmq: publish failed")
		return err
	}
	return nil
}
