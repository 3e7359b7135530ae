package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// EmailConsumer consumes the order email queue and appends every message to
// logs/email.log. It stands in for a mail sender.
type EmailConsumer struct {
	URL    string
	Dir    string
	Logger *logrus.Logger
}

// Run connects to the broker and consumes until ctx is done, reconnecting
// with backoff when the connection drops.
func (c *EmailConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Logger.WithError(err).Warnf("email-consumer: failed to dial broker; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Logger.WithError(err).Warn("email-consumer: consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *EmailConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Logger.WithError(err).Warn("email-consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(EmailMessageQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(EmailMessageQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(d.Body); err != nil {
				c.Logger.WithError(err).Error("email-consumer: handle message failed")
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *EmailConsumer) handle(body []byte) error {
	var msg EmailMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	dir := c.Dir
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "email.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	return WriteEmail(f, msg)
}

// WriteEmail renders msg as one log entry.
func WriteEmail(w io.Writer, msg EmailMessage) error {
	if msg.RecipientEmail == "" {
		return errors.New("email message has no recipient")
	}
	text := strings.ReplaceAll(strings.TrimSpace(msg.Text), "\n", "\n    ")
	_, err := fmt.Fprintf(w, "[%s] Email sent | id=%s | order=%s | from=\"%s <%s>\" | to=\"%s <%s>\" | subject=\"%s\"\n    %s\n",
		msg.RequestedAt, msg.ID, msg.OrderNumber, msg.SenderName, msg.SenderEmail, msg.RecipientName, msg.RecipientEmail, msg.Subject, text)
	if err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
