package probe

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is the chat payload sent by a probe.
type Message struct {
	Message   string `json:"message" yaml:"message"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
}

// NewMessage builds a message stamped with at in RFC 3339, UTC.
func NewMessage(text string, at time.Time) Message {
	return Message{
		Message:   text,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}

// localDateTime is an ISO 8601 date-time without a zone designator.
const localDateTime = "2006-01-02T15:04:05.999999999"

// Validate reports whether the timestamp is an ISO 8601 date-time, either
// RFC 3339 or the zone-less local form.
func (m Message) Validate() error {
	_, err := time.Parse(time.RFC3339, m.Timestamp)
	if err == nil {
		return nil
	}
	if _, lerr := time.Parse(localDateTime, m.Timestamp); lerr == nil {
		return nil
	}
	return fmt.Errorf("invalid timestamp %q: %w", m.Timestamp, err)
}

// value returns the message in the generic form produced by decoding its JSON encoding.
func (m Message) value() any {
	return map[string]any{
		"message":   m.Message,
		"timestamp": m.Timestamp,
	}
}

func (m Message) encode() ([]byte, error) {
	return json.Marshal(m)
}
