// Package sink forwards prepared events to a message broker so other
// services can consume them without speaking the Villa protocol.
package sink

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/keepmind9/villabot/internal/bot"
	"github.com/keepmind9/villabot/internal/event"
	"github.com/keepmind9/villabot/internal/logger"
	"github.com/sirupsen/logrus"
)

// Meta describes the event carried by an Envelope.
type Meta struct {
	ID         string         `json:"id"`
	BotID      string         `json:"bot_id"`
	EventID    string         `json:"event_id"`
	Event      string         `json:"event"`
	Category   event.Category `json:"category"`
	SessionID  string         `json:"session_id"`
	UserID     string         `json:"user_id,omitempty"`
	ToMe       bool           `json:"to_me"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Envelope is the JSON document published for each event.
type Envelope struct {
	Meta Meta        `json:"meta"`
	Data event.Event `json:"data"`
}

// NewEnvelope wraps ev. The message id is the event id when the platform
// supplied one.
func NewEnvelope(botID string, ev event.Event) Envelope {
	h := ev.Header()

	id := h.EventID
	if id == "" {
		id = uuid.NewString()
	}
	occurred := time.Now().UTC()
	if h.CreatedAt > 0 {
		occurred = time.Unix(h.CreatedAt, 0).UTC()
	}

	return Envelope{
		Meta: Meta{
			ID:         id,
			BotID:      botID,
			EventID:    h.EventID,
			Event:      ev.Name(),
			Category:   ev.Category(),
			SessionID:  ev.SessionID(),
			UserID:     ev.UserID(),
			ToMe:       ev.IsToMe(),
			OccurredAt: occurred,
		},
		Data: ev,
	}
}

// RoutingKey returns "<prefix>.<event name>", or the event name alone when
// prefix is empty.
func RoutingKey(prefix string, ev event.Event) string {
	if prefix == "" {
		return ev.Name()
	}
	return prefix + "." + ev.Name()
}

// Publisher delivers envelopes to a broker.
type Publisher interface {
	Publish(ctx context.Context, key string, env Envelope) error
	Close() error
}

// Sink publishes every event it handles.
type Sink struct {
	pub    Publisher
	prefix string
}

// New returns a sink publishing through pub with routing keys under prefix.
func New(pub Publisher, prefix string) *Sink {
	return &Sink{pub: pub, prefix: prefix}
}

// Handle has the signature of an event handler. Publish failures are
// logged and dropped.
func (s *Sink) Handle(ctx context.Context, b *bot.Bot, ev event.Event) {
	key := RoutingKey(s.prefix, ev)
	if err := s.pub.Publish(ctx, key, NewEnvelope(b.SelfID(), ev)); err != nil {
		logger.WithFields(logrus.Fields{
			"bot_id":      b.SelfID(),
			"event":       ev.Name(),
			"event_id":    ev.Header().EventID,
			"routing_key": key,
			"error":       err,
		}).Error("failed-to-publish-event")
	}
}

// Close releases the publisher.
func (s *Sink) Close() error {
	return s.pub.Close()
}
