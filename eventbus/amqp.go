// SPDX-License-Identifier: GPL-3.0-or-later
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/CrawX/go-imap-sentinel/domain"
	"github.com/CrawX/go-imap-sentinel/log"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	DefaultExchange       = "email_events"
	DefaultPublishTimeout = 5 * time.Second
)

// amqpChannel is the part of *amqp.Channel the sink uses.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSink forwards events to a topic exchange with the routing key email_events.user.<id>, for
// consumers in other processes.
type AMQPSink struct {
	connection *amqp.Connection
	channel    amqpChannel
	exchange   string
	timeout    time.Duration
	l          *logrus.Logger
}

func DialAMQP(url, exchange string) (*AMQPSink, error) {
	connection, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("could not connect to amqp broker: %w", err)
	}

	channel, err := connection.Channel()
	if err != nil {
		connection.Close()
		return nil, fmt.Errorf("could not open amqp channel: %w", err)
	}

	sink, err := newAMQPSink(channel, exchange)
	if err != nil {
		connection.Close()
		return nil, err
	}
	sink.connection = connection

	return sink, nil
}

func newAMQPSink(channel amqpChannel, exchange string) (*AMQPSink, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	err := channel.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-delete
		false,    // internal
		false,    // no-wait
		nil,      // args
	)
	if err != nil {
		return nil, fmt.Errorf("could not declare exchange %s: %w", exchange, err)
	}

	l := log.Logger(log.LOG_EVENTS)
	l.WithField("exchange", exchange).Info("Forwarding events to amqp")

	return &AMQPSink{
		channel:  channel,
		exchange: exchange,
		timeout:  DefaultPublishTimeout,
		l:        l,
	}, nil
}

func RoutingKey(userId string) string {
	return "email_events.user." + userId
}

func (s *AMQPSink) Forward(event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("could not serialize event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err = s.channel.PublishWithContext(
		ctx,
		s.exchange,
		RoutingKey(event.UserId),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    fmt.Sprintf("%s-%d", event.UserId, event.Sequence),
			Timestamp:    event.EmittedAt,
			Type:         string(event.Type),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("could not publish event: %w", err)
	}

	s.l.WithFields(logrus.Fields{"user": event.UserId, "sequence": event.Sequence}).Trace("Forwarded event")
	return nil
}

func (s *AMQPSink) Close() error {
	err := s.channel.Close()
	if err != nil {
		return fmt.Errorf("could not close amqp channel: %w", err)
	}
	if s.connection != nil {
		err = s.connection.Close()
		if err != nil {
			return fmt.Errorf("could not close amqp connection: %w", err)
		}
	}
	return nil
}
