package events

// EventType names a lifecycle event.
type EventType string

const (
	EventEvaluationCreated   EventType = "evaluation.created"
	EventEvaluationEvaluated EventType = "evaluation.evaluated"
	EventEvaluationExpired   EventType = "evaluation.expired"
)

// Event carries a lifecycle notification.
type Event struct {
	Type         EventType
	EvaluationID string
	Payload      map[string]any
}
