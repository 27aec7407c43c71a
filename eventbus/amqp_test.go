// SPDX-License-Identifier: GPL-3.0-or-later
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/CrawX/go-imap-sentinel/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	published  []published
	publishErr error
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.declared = append(f.declared, name+"/"+kind)
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.published = append(f.published, published{exchange, key, msg})
	return f.publishErr
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPSink_Forward(t *testing.T) {
	channel := &fakeChannel{}
	sink, err := newAMQPSink(channel, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"email_events/topic"}, channel.declared)

	bus := NewBus(WithSink(sink), WithClock(fixedClock))
	event := bus.Publish("42", domain.SpamDetected, domain.EventPayload{Uid: 7, Subject: "Win", Confidence: 0.93, Moved: true})

	require.Len(t, channel.published, 1)
	p := channel.published[0]
	assert.Equal(t, "email_events", p.exchange)
	assert.Equal(t, "email_events.user.42", p.key)
	assert.Equal(t, "42-1", p.msg.MessageId)
	assert.Equal(t, "spam_detected", p.msg.Type)

	decoded := domain.Event{}
	require.NoError(t, json.Unmarshal(p.msg.Body, &decoded))
	assert.Equal(t, event, decoded)

	require.NoError(t, sink.Close())
	assert.True(t, channel.closed)
}

func TestAMQPSink_ForwardError(t *testing.T) {
	channel := &fakeChannel{publishErr: errors.New("channel closed")}
	sink, err := newAMQPSink(channel, "events")
	require.NoError(t, err)

	err = sink.Forward(domain.Event{UserId: "1", Sequence: 1})
	assert.EqualError(t, err, "could not publish event: channel closed")
}

func TestEvent_JSON(t *testing.T) {
	event := domain.Event{
		UserId:    "42",
		Type:      domain.NewMessage,
		Payload:   domain.EventPayload{Uid: 102, Folder: "INBOX", Subject: "Lunch", From: "bob@example.com", Confidence: 0.8},
		Sequence:  2,
		EmittedAt: fixedNow,
	}

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"user_id": "42",
		"type": "new_message",
		"payload": {"uid": 102, "folder": "INBOX", "subject": "Lunch", "from": "bob@example.com", "confidence": 0.8},
		"sequence": 2,
		"emitted_at": "2024-03-01T12:00:00Z"
	}`, string(raw))
}
