package amqp

import (
	"encoding/json"
	"time"

	"finpulse/internal/core"
)

// TriggerEventMessage carries one fired trigger event from the evaluation
// service to the dispatch worker. It holds the event's measured values, not
// the snapshot, so the worker only needs the trigger configuration to
// render and dispatch.
type TriggerEventMessage struct {
	OrgID            string    `json:"org_id"`
	TriggerID        string    `json:"trigger_id"`
	EvaluatedAt      time.Time `json:"evaluated_at"`
	MeasuredValue    float64   `json:"measured_value"`
	PreviousValue    *float64  `json:"previous_value,omitempty"`
	ThresholdCrossed float64   `json:"threshold_crossed"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewTriggerEventMessage wraps a trigger event for publishing.
func NewTriggerEventMessage(event core.TriggerEvent) *TriggerEventMessage {
	return &TriggerEventMessage{
		OrgID:            event.OrgID,
		TriggerID:        event.TriggerID,
		EvaluatedAt:      event.EvaluatedAt,
		MeasuredValue:    event.MeasuredValue,
		PreviousValue:    event.PreviousValue,
		ThresholdCrossed: event.ThresholdCrossed,
		Timestamp:        time.Now(),
	}
}

// Event converts the message back into a trigger event.
func (m *TriggerEventMessage) Event() core.TriggerEvent {
	return core.TriggerEvent{
		TriggerID:        m.TriggerID,
		OrgID:            m.OrgID,
		EvaluatedAt:      m.EvaluatedAt,
		MeasuredValue:    m.MeasuredValue,
		PreviousValue:    m.PreviousValue,
		ThresholdCrossed: m.ThresholdCrossed,
	}
}

// ToJSON converts the message to JSON bytes.
func (m *TriggerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TriggerEventMessageFromJSON creates a message from JSON bytes.
func TriggerEventMessageFromJSON(data []byte) (*TriggerEventMessage, error) {
	var msg TriggerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
