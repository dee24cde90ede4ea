package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectPointsAwarded     = "campusride.points.awarded"
	SubjectPointsDeducted    = "campusride.points.deducted"
	SubjectPointsTransferred = "campusride.points.transferred"
	SubjectRideBooked        = "campusride.rides.booked"
	SubjectRideCompleted     = "campusride.rides.completed"
	subjectNotificationBase  = "campusride.notifications."
)

// EventPublisher emits domain events for consumers outside this process.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload interface{}) error
}

type Event struct {
	Subject   string      `json:"subject"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("campusride-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload interface{}) error {
	if p == nil || p.conn == nil || !p.conn.IsConnected() {
		return nats.ErrConnectionClosed
	}
	data, err := json.Marshal(Event{Subject: subject, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.conn.Publish(subject, data)
}

// Close flushes pending messages before closing the connection.
func (p *NATSPublisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, interface{}) error { return nil }

func publishBestEffort(ctx context.Context, log *slog.Logger, pub EventPublisher, subject string, payload interface{}) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, subject, payload); err != nil {
		log.Warn("event publish failed", "subject", subject, "error", err)
	}
}
