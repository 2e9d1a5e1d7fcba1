package tracking

import (
	"context"
	"encoding/json"

	"github.com/turtacn/TechIntel/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/logging"
)

const eventSource = "techintel.tracker"

// EventPublisher sends readiness events.  The kafka Producer implements it.
type EventPublisher interface {
	Publish(ctx context.Context, msg *kafka.ProducerMessage) error
}

func publishTransition(ctx context.Context, pub EventPublisher, tr Transition) error {
	env, err := kafka.NewEnvelope(kafka.EventReadinessChanged, eventSource, "", kafka.ReadinessChangedPayload{
		Technology: tr.Technology,
		From:       tr.From.String(),
		To:         tr.To.String(),
		ChangedAt:  tr.At,
	})
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return pub.Publish(ctx, &kafka.ProducerMessage{
		Topic:   kafka.TopicTechnologyReadiness,
		Key:     []byte(tr.Technology),
		Value:   value,
		Headers: map[string]string{"event_type": kafka.EventReadinessChanged},
	})
}

// HandleStatusEvent is the kafka handler for backend status events.  An
// event for a tracked, still polling technology triggers an immediate
// poll; events for anything else are ignored.  Undecodable events are
// returned as errors so the consumer dead-letters them.
func (t *Tracker) HandleStatusEvent(_ context.Context, msg *kafka.Message) error {
	ev, err := kafka.DecodeStatusChanged(msg.Value)
	if err != nil {
		t.logger.Warn("Undecodable status event", logging.Int64("offset", msg.Offset), logging.Err(err))
		return err
	}

	if !t.Poll(ev.Technology) {
		t.metrics.StatusEventsTotal.WithLabelValues("ignored").Inc()
		t.logger.Debug("Status event ignored",
			logging.String("technology", ev.Technology),
			logging.String("status", ev.Status))
		return nil
	}

	t.metrics.StatusEventsTotal.WithLabelValues("polled").Inc()
	t.logger.Debug("Status event triggered poll",
		logging.String("technology", ev.Technology),
		logging.String("status", ev.Status))
	return nil
}
