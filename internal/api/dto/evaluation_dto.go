package dto

import (
	"time"

	"github.com/spec-kit/evaluation-service/internal/domain"
)

// CreateEvaluationRequest payload.
type CreateEvaluationRequest struct {
	AttendantName string `json:"attendant_name"`
	CompanyName   string `json:"company_name"`
	TicketRef     string `json:"ticket_ref"`
}

// CreateEvaluationResponse returns the id and bearer token for the survey.
type CreateEvaluationResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// ValidateEvaluationResponse echoes the decoded token claims.
type ValidateEvaluationResponse struct {
	ID            string `json:"id"`
	AttendantName string `json:"attendant_name"`
	CompanyName   string `json:"company_name"`
	TicketRef     string `json:"ticket_ref"`
}

// UpdateEvaluationRequest is the survey submission payload.
type UpdateEvaluationRequest struct {
	ScoreService  int    `json:"score_service"`
	ScoreCompany  int    `json:"score_company"`
	Notes         string `json:"notes"`
	IssueResolved bool   `json:"issue_resolved"`
}

// EvaluationSummary response for listings.
type EvaluationSummary struct {
	ID            string                  `json:"id"`
	AttendantName string                  `json:"attendant_name"`
	CompanyName   string                  `json:"company_name"`
	TicketRef     string                  `json:"ticket_ref"`
	Status        domain.EvaluationStatus `json:"status"`
	ScoreService  *int                    `json:"score_service"`
	ScoreCompany  *int                    `json:"score_company"`
	Notes         *string                 `json:"notes"`
	IssueResolved *bool                   `json:"issue_resolved"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}
