package kafka

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/TechIntel/pkg/errors"
)

// Topic Constants
const (
	TopicTechnologyStatus    = "technology.status"
	TopicTechnologyReadiness = "technology.readiness"
	TopicDeadLetter          = "dead_letter.technology"
)

// Event types carried in EventEnvelope.EventType.
const (
	EventStatusChanged    = "technology.status_changed"
	EventReadinessChanged = "technology.readiness_changed"
)

const schemaVersion = "1"

// EventEnvelope standardizes event messages.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	TraceID       string            `json:"trace_id,omitempty"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// StatusChangedPayload is published by the analytics backend when a
// technology's processing status changes.
type StatusChangedPayload struct {
	Technology string    `json:"technology"`
	Status     string    `json:"status"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ReadinessChangedPayload is published when a tracked technology moves
// between readiness states.
type ReadinessChangedPayload struct {
	Technology string    `json:"technology"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	ChangedAt  time.Time `json:"changed_at"`
}

// NewEnvelope wraps payload in an envelope with a fresh event id.
func NewEnvelope(eventType, source, traceID string, payload interface{}) (*EventEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event payload")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schemaVersion,
		TraceID:       traceID,
		Payload:       raw,
	}, nil
}

// DecodeEnvelope parses an envelope and checks its event type.
func DecodeEnvelope(data []byte, wantType string) (*EventEnvelope, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode event envelope")
	}
	if wantType != "" && env.EventType != wantType {
		return nil, errors.Newf(errors.ErrCodeValidation, "unexpected event type %q, want %q", env.EventType, wantType)
	}
	return &env, nil
}

// DecodeStatusChanged extracts a StatusChangedPayload from a message
// value.  The backend may send either a full envelope or the bare payload.
func DecodeStatusChanged(data []byte) (StatusChangedPayload, error) {
	var p StatusChangedPayload
	body := data
	if env, err := DecodeEnvelope(data, ""); err == nil && len(env.Payload) > 0 {
		if env.EventType != "" && env.EventType != EventStatusChanged {
			return p, errors.Newf(errors.ErrCodeValidation, "unexpected event type %q", env.EventType)
		}
		body = env.Payload
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return p, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode status payload")
	}
	p.Technology = strings.TrimSpace(p.Technology)
	p.Status = strings.ToLower(strings.TrimSpace(p.Status))
	if p.Technology == "" {
		return p, errors.New(errors.ErrCodeValidation, "status event has no technology")
	}
	if p.Status == "" {
		return p, errors.New(errors.ErrCodeValidation, "status event has no status")
	}
	return p, nil
}
