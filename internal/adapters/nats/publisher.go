package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/livemap/internal/core/domain"
)

// Subjects used by the service.
const (
	SubjectRealtimeRefreshed = "livemap.realtime.refreshed"
	SubjectStaticExported    = "livemap.static.exported"
	subjectPrefix            = "livemap."
)

// MarkerSubject returns the subject of one marker event kind, e.g.
// livemap.vehicles.added.
func MarkerSubject(layer domain.LayerKind, kind domain.MarkerEventKind) string {
	return subjectPrefix + string(layer) + "." + string(kind)
}

func markerSubjects() []string {
	subjects := make([]string, 0, len(domain.Layers))
	for _, l := range domain.Layers {
		subjects = append(subjects, subjectPrefix+string(l)+".>")
	}
	return subjects
}

// RealtimeRefreshed is the payload announcing a stored GTFS-RT poll.
type RealtimeRefreshed struct {
	Counts map[string]int `json:"counts"`
	At     time.Time      `json:"at"`
}

// StaticExported is the payload announcing rewritten static collections.
type StaticExported struct {
	RouteType string         `json:"route_type"`
	Features  map[string]int `json:"features"` // by layer
	At        time.Time      `json:"at"`
}

// Publisher implements ports.EventPublisher and ports.MarkerDispatcher
// using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "LIVEMAP_MARKERS",
			Subjects:  markerSubjects(),
			Retention: nats.LimitsPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "LIVEMAP_REALTIME",
			Subjects:  []string{"livemap.realtime.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "LIVEMAP_STATIC",
			Subjects:  []string{"livemap.static.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishMarkerEvent publishes one marker event.
func (p *Publisher) PublishMarkerEvent(ctx context.Context, event *domain.MarkerEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(MarkerSubject(event.Layer, event.Kind), data,
		nats.Context(ctx), nats.MsgId(uuid.NewString()))
	return err
}

// PublishRealtimeRefreshed announces that the realtime tables were replaced.
func (p *Publisher) PublishRealtimeRefreshed(ctx context.Context, counts map[string]int) error {
	data, err := json.Marshal(RealtimeRefreshed{Counts: counts, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectRealtimeRefreshed, data, nats.Context(ctx), nats.MsgId(uuid.NewString()))
	return err
}

// PublishStaticExported announces a finished static export.
func (p *Publisher) PublishStaticExported(ctx context.Context, ev StaticExported) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectStaticExported, data, nats.Context(ctx), nats.MsgId(uuid.NewString()))
	return err
}

// Dispatch implements ports.MarkerDispatcher. It stops at the first
// failed publish.
func (p *Publisher) Dispatch(ctx context.Context, layer domain.LayerKind, events []domain.MarkerEvent) error {
	for i := range events {
		if err := p.PublishMarkerEvent(ctx, &events[i]); err != nil {
			return fmt.Errorf("publish %s event %d/%d: %w", layer, i+1, len(events), err)
		}
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("livemap"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
