package events

import (
	"encoding/json"
	"errors"
	"time"

	"pocketpilot/internal/budget"
)

// AssessmentCompleted is the anonymous record of one workflow run. It never
// carries income, expenses, goal or advice text.
type AssessmentCompleted struct {
	RunID             string    `json:"run_id"`
	RequestID         string    `json:"request_id,omitempty"`
	Condition         string    `json:"condition"`
	GeneratorOutcome  string    `json:"generator_outcome"`
	GeneratorProvider string    `json:"generator_provider"`
	Nodes             []string  `json:"nodes"`
	DurationMs        int64     `json:"duration_ms"`
	Timestamp         time.Time `json:"timestamp"`
}

// NewAssessmentCompleted builds the event for a finished assessment.
func NewAssessmentCompleted(a budget.Assessment, requestID string) *AssessmentCompleted {
	return &AssessmentCompleted{
		RunID:             a.RunID,
		RequestID:         requestID,
		Condition:         a.Condition.String(),
		GeneratorOutcome:  a.Outcome.String(),
		GeneratorProvider: a.Provider,
		Nodes:             append([]string(nil), a.Path...),
		DurationMs:        a.Duration.Milliseconds(),
		Timestamp:         time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *AssessmentCompleted) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AssessmentCompletedFromJSON decodes and checks a message body.
func AssessmentCompletedFromJSON(data []byte) (*AssessmentCompleted, error) {
	var msg AssessmentCompleted
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.RunID == "" {
		return nil, errors.New("message has no run_id")
	}
	if msg.Condition == "" {
		return nil, errors.New("message has no condition")
	}
	return &msg, nil
}
