package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Notification events emitted by the marking workflow.
const (
	EventDeadlineChanged  = "deadline_changed"
	EventFeedbackReleased = "feedback_released"
)

// Notifier delivers fire-and-forget notifications. Delivery failures are
// logged, never surfaced to the caller.
type Notifier interface {
	Send(ctx context.Context, event string, payload map[string]interface{})
}

type natsNotifier struct {
	conn        *nats.Conn
	subjectBase string
	logger      zerolog.Logger
	nodeID      string
}

type notificationEnvelope struct {
	Event   string                 `json:"event"`
	Payload map[string]interface{} `json:"payload"`
	NodeID  string                 `json:"node_id"`
	SentAt  time.Time              `json:"sent_at"`
}

// NewNATSNotifier builds a notifier that publishes events on
// "<subjectBase>.<event>". A nil connection degrades to log-only delivery.
func NewNATSNotifier(conn *nats.Conn, subjectBase string, logger zerolog.Logger) Notifier {
	return &natsNotifier{
		conn:        conn,
		subjectBase: subjectBase,
		logger:      logger.With().Str("component", "notifier").Logger(),
		nodeID:      uuid.NewString(),
	}
}

func (n *natsNotifier) Send(_ context.Context, event string, payload map[string]interface{}) {
	envelope := notificationEnvelope{
		Event:   event,
		Payload: payload,
		NodeID:  n.nodeID,
		SentAt:  time.Now().UTC(),
	}

	if n.conn == nil {
		n.logger.Info().Str("event", event).Interface("payload", payload).Msg("notification (nats disabled)")
		return
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		n.logger.Warn().Err(err).Str("event", event).Msg("failed to encode notification")
		return
	}

	subject := n.subjectBase + "." + event
	if err := n.conn.Publish(subject, data); err != nil {
		n.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish notification")
		return
	}

	n.logger.Debug().Str("subject", subject).Msg("notification published")
}
