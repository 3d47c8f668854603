package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// SubjectPrefix is prepended to the event type to form the NATS subject
const SubjectPrefix = "arcade.ledger."

// Publisher is the slice of *nats.Conn the forwarder needs
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Envelope wraps every forwarded event
type Envelope struct {
	EventID   string          `json:"event_id"`
	EventType EventType       `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload"`
}

// NATSForwarder republishes committed bus events on NATS subjects
type NATSForwarder struct {
	publisher Publisher
	source    string
}

// ConnectNATS dials the given comma-separated NATS servers
func ConnectNATS(servers string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("arcade-ledger"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Error("NATS disconnected with error")
			} else {
				log.Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(servers, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.WithField("servers", servers).Info("Connected to NATS")
	return nc, nil
}

// NewNATSForwarder creates a forwarder publishing through publisher
func NewNATSForwarder(publisher Publisher) *NATSForwarder {
	return &NATSForwarder{
		publisher: publisher,
		source:    "arcade-ledger",
	}
}

// Attach subscribes the forwarder to every ledger event type on bus
func (f *NATSForwarder) Attach(bus *Bus) {
	for _, eventType := range []EventType{
		EventTypeLedgerEntry,
		EventTypeTransferCompleted,
		EventTypeUserRegistered,
	} {
		bus.Subscribe(eventType, f.handle)
	}
}

func (f *NATSForwarder) handle(ctx context.Context, event Event) {
	if err := f.Forward(event); err != nil {
		log.WithError(err).WithField("eventType", event.Type()).Error("Failed to forward event to NATS")
	}
}

// Forward publishes a single event
func (f *NATSForwarder) Forward(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	data, err := json.Marshal(Envelope{
		EventID:   uuid.NewString(),
		EventType: event.Type(),
		Timestamp: time.Now().UTC(),
		Source:    f.source,
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	subject := SubjectPrefix + string(event.Type())
	if err := f.publisher.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	log.WithFields(log.Fields{
		"subject":   subject,
		"eventType": event.Type(),
	}).Debug("Forwarded event to NATS")
	return nil
}
