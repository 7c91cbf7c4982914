package chat

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Relay mirrors room broadcasts across gateway instances through Kafka.
// Every instance publishes its broadcasts and consumes every peer's;
// events are keyed by room so one room's events stay ordered within a
// partition. Delivery is best effort — a relay failure never fails the
// local operation.
type Relay struct {
	writer *kafka.Writer
	reader *kafka.Reader
	origin string
	events chan kafka.Message
	log    zerolog.Logger
}

type relayEnvelope struct {
	Origin string          `json:"origin"`
	Room   string          `json:"room"`
	Type   EventType       `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func NewRelay(brokers []string, topic string, log zerolog.Logger) *Relay {
	origin := uuid.NewString()
	return &Relay{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			// Unique group per instance: every gateway sees every event.
			GroupID:     "gateway-" + origin,
			StartOffset: kafka.LastOffset,
			MinBytes:    10e3,
			MaxBytes:    10e6,
		}),
		origin: origin,
		events: make(chan kafka.Message, 256),
		log:    log.With().Str("component", "relay").Logger(),
	}
}

// Publish queues the event for delivery to peer gateways. Drops the event
// when the queue is full rather than stalling the room's critical section.
func (r *Relay) Publish(room string, ev *Event) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		r.log.Error().Err(err).Str("room", room).Msg("marshal relay event")
		return
	}
	payload, err := json.Marshal(relayEnvelope{Origin: r.origin, Room: room, Type: ev.Type, Data: data})
	if err != nil {
		r.log.Error().Err(err).Str("room", room).Msg("marshal relay envelope")
		return
	}

	select {
	case r.events <- kafka.Message{Key: []byte(room), Value: payload}:
	default:
		r.log.Warn().Str("room", room).Msg("relay queue full, event dropped")
	}
}

// Run drives the publish and consume loops until ctx is cancelled. Events
// consumed from peers are re-broadcast into the local registry; this
// instance's own events are skipped, the local broadcast already happened.
func (r *Relay) Run(ctx context.Context, registry *Registry) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-r.events:
				if err := r.writer.WriteMessages(ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
					r.log.Error().Err(err).Msg("relay publish failed")
				}
			}
		}
	}()

	for {
		m, err := r.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.log.Error().Err(err).Msg("relay consume failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		var env relayEnvelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			r.log.Warn().Err(err).Msg("malformed relay event")
			continue
		}
		if env.Origin == r.origin {
			continue
		}
		registry.Broadcast(env.Room, &Event{Type: env.Type, Data: env.Data})
	}
}

func (r *Relay) Close() error {
	werr := r.writer.Close()
	rerr := r.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
