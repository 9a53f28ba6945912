package domain

import "time"

// EvaluationStatus enumerates lifecycle states for evaluations.
type EvaluationStatus string

const (
	EvaluationStatusPending   EvaluationStatus = "pending"
	EvaluationStatusEvaluated EvaluationStatus = "evaluated"
	EvaluationStatusExpired   EvaluationStatus = "expired"
)

// Terminal reports whether no further transition is allowed out of the status.
func (s EvaluationStatus) Terminal() bool {
	return s == EvaluationStatusEvaluated || s == EvaluationStatusExpired
}

// Evaluation is the aggregate for one survey invitation. Token is present only
// while the record is pending; score and respondent fields only after it has
// been evaluated.
type Evaluation struct {
	ID            string
	AttendantName string
	CompanyName   string
	TicketRef     string
	OriginIP      string
	Token         *string
	Status        EvaluationStatus
	ScoreService  *int
	ScoreCompany  *int
	RespondentIP  *string
	Notes         *string
	IssueResolved *bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
