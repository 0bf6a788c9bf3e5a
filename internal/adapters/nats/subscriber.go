package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Subscriber consumes service events from NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber connects to NATS.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeRealtimeRefreshed calls handler whenever the realtime poller has
// stored a new poll. durable names the consumer; every API replica needs
// its own.
func (s *Subscriber) SubscribeRealtimeRefreshed(ctx context.Context, durable string, handler func(ctx context.Context, ev RealtimeRefreshed) error) error {
	return subscribe(ctx, s, SubjectRealtimeRefreshed, durable, handler)
}

// SubscribeStaticExported calls handler after every static export.
func (s *Subscriber) SubscribeStaticExported(ctx context.Context, durable string, handler func(ctx context.Context, ev StaticExported) error) error {
	return subscribe(ctx, s, SubjectStaticExported, durable, handler)
}

func subscribe[T any](ctx context.Context, s *Subscriber, subject, durable string, handler func(context.Context, T) error) error {
	sub, err := s.js.Subscribe(subject, func(msg *nats.Msg) {
		var ev T
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			// Malformed payloads are not redelivered.
			_ = msg.Term()
			return
		}
		if err := handler(ctx, ev); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
		nats.DeliverNew(),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
