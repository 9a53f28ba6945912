package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/evaluation-service/internal/auth"
	"github.com/spec-kit/evaluation-service/internal/domain"
	"github.com/spec-kit/evaluation-service/internal/events"
	"github.com/spec-kit/evaluation-service/internal/observability"
	"github.com/spec-kit/evaluation-service/internal/repository"
	apperrors "github.com/spec-kit/evaluation-service/pkg/util"
)

// EvaluationService owns the evaluation lifecycle: which transitions are
// legal, when a token is consumed, and when expiry is detected. Expiry is
// computed lazily on access; there is no background sweep. Correctness under
// concurrent access rests on tokens being single-use (cleared on every
// terminal write) and terminal transitions being idempotent, not on locks.
type EvaluationService struct {
	evaluations repository.EvaluationRepository
	tokens      *auth.TokenManager
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	maxNoteLen  int
}

// EvaluationDependencies bundles collaborators for the service.
type EvaluationDependencies struct {
	EvaluationRepo repository.EvaluationRepository
	TokenManager   *auth.TokenManager
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	MaxNoteLength  int
}

// CreateEvaluationInput describes the creation payload.
type CreateEvaluationInput struct {
	AttendantName string
	CompanyName   string
	TicketRef     string
	OriginIP      string
}

// UpdateEvaluationInput describes the survey submission payload.
type UpdateEvaluationInput struct {
	RespondentIP  string
	ScoreService  int
	ScoreCompany  int
	Notes         string
	IssueResolved bool
}

// NewEvaluationService constructs the service.
func NewEvaluationService(deps EvaluationDependencies) *EvaluationService {
	maxNoteLen := deps.MaxNoteLength
	if maxNoteLen <= 0 {
		maxNoteLen = 1000
	}
	return &EvaluationService{
		evaluations: deps.EvaluationRepo,
		tokens:      deps.TokenManager,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		maxNoteLen:  maxNoteLen,
	}
}

// Create generates a new evaluation with an embedded signed token. The token
// is the sole bearer credential for the later validate/update calls.
func (s *EvaluationService) Create(ctx context.Context, input CreateEvaluationInput) (*domain.Evaluation, error) {
	if strings.TrimSpace(input.AttendantName) == "" ||
		strings.TrimSpace(input.CompanyName) == "" ||
		strings.TrimSpace(input.TicketRef) == "" {
		return nil, apperrors.NewValidationError("attendant_name, company_name, ticket_ref required", nil)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	token, _, err := s.tokens.Issue(id.String(), input.AttendantName, input.CompanyName, input.TicketRef)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	evaluation := &domain.Evaluation{
		ID:            id.String(),
		AttendantName: input.AttendantName,
		CompanyName:   input.CompanyName,
		TicketRef:     input.TicketRef,
		OriginIP:      input.OriginIP,
		Token:         &token,
		Status:        domain.EvaluationStatusPending,
	}

	if err := s.evaluations.Create(ctx, evaluation); err != nil {
		return nil, s.storeError(err)
	}

	s.publish(ctx, events.EventEvaluationCreated, evaluation.ID, map[string]any{
		"attendant_name": evaluation.AttendantName,
		"company_name":   evaluation.CompanyName,
		"ticket_ref":     evaluation.TicketRef,
	})

	return evaluation, nil
}

// Validate fetches the record and verifies its stored token. A fresh token
// yields the decoded claims without mutating anything. An expired token on a
// still-pending record triggers the lazy transition to expired before the
// failure is surfaced.
func (s *EvaluationService) Validate(ctx context.Context, id string) (*auth.SurveyClaims, error) {
	evaluation, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, evaluation)
}

// List returns evaluations matching the filter, newest first.
func (s *EvaluationService) List(ctx context.Context, filter repository.EvaluationFilter) ([]domain.Evaluation, error) {
	evaluations, err := s.evaluations.List(ctx, filter)
	if err != nil {
		return nil, s.storeError(err)
	}
	return evaluations, nil
}

// Update consumes the token: it records the submitted scores and transitions
// the record to evaluated in a single store write. The creating address may
// not evaluate its own session, regardless of token validity.
func (s *EvaluationService) Update(ctx context.Context, id string, input UpdateEvaluationInput) error {
	if details := s.validateSubmission(input); details != nil {
		return apperrors.NewValidationError("invalid survey submission", details)
	}

	evaluation, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}

	if evaluation.OriginIP != "" && evaluation.OriginIP == input.RespondentIP {
		return apperrors.NewSameOriginForbidden("evaluation cannot be submitted from the originating address")
	}

	if _, err := s.verify(ctx, evaluation); err != nil {
		return err
	}

	update := repository.EvaluationUpdate{
		Status:        domain.EvaluationStatusEvaluated,
		ScoreService:  &input.ScoreService,
		ScoreCompany:  &input.ScoreCompany,
		RespondentIP:  &input.RespondentIP,
		Notes:         &input.Notes,
		IssueResolved: &input.IssueResolved,
	}
	if err := s.evaluations.Update(ctx, id, update); err != nil {
		return s.storeError(err)
	}

	s.metrics.RecordTransition(string(domain.EvaluationStatusEvaluated))
	s.publish(ctx, events.EventEvaluationEvaluated, id, map[string]any{
		"score_service": input.ScoreService,
		"score_company": input.ScoreCompany,
	})

	return nil
}

// verify applies the status checks and token verification shared by Validate
// and Update. The record stays untouched on success.
func (s *EvaluationService) verify(ctx context.Context, evaluation *domain.Evaluation) (*auth.SurveyClaims, error) {
	switch evaluation.Status {
	case domain.EvaluationStatusEvaluated:
		return nil, apperrors.NewAlreadyEvaluated("evaluation already submitted")
	case domain.EvaluationStatusExpired:
		return nil, apperrors.NewTokenExpired("evaluation token expired")
	}

	if evaluation.Token == nil {
		return nil, apperrors.NewTokenInvalid("evaluation has no token")
	}

	claims, err := s.tokens.Parse(*evaluation.Token)
	if err == nil {
		return claims, nil
	}

	if errors.Is(err, auth.ErrTokenExpired) && evaluation.Status == domain.EvaluationStatusPending {
		if updErr := s.evaluations.Update(ctx, evaluation.ID, repository.EvaluationUpdate{
			Status: domain.EvaluationStatusExpired,
		}); updErr != nil {
			// The authoritative status could not be persisted; do not report
			// expiry that the store never recorded.
			s.logger.Error("lazy expiry write failed",
				zap.String("evaluation_id", evaluation.ID), zap.Error(updErr))
			return nil, s.storeError(updErr)
		}

		s.metrics.RecordTransition(string(domain.EvaluationStatusExpired))
		s.publish(ctx, events.EventEvaluationExpired, evaluation.ID, nil)
		return nil, apperrors.NewTokenExpired("evaluation token expired")
	}

	return nil, apperrors.NewTokenInvalid("evaluation token invalid")
}

func (s *EvaluationService) validateSubmission(input UpdateEvaluationInput) map[string]any {
	details := map[string]any{}
	if input.ScoreService < 1 || input.ScoreService > 5 {
		details["score_service"] = "must be between 1 and 5"
	}
	if input.ScoreCompany < 1 || input.ScoreCompany > 5 {
		details["score_company"] = "must be between 1 and 5"
	}
	if len(input.Notes) > s.maxNoteLen {
		details["notes"] = "exceeds maximum length"
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

func (s *EvaluationService) fetch(ctx context.Context, id string) (*domain.Evaluation, error) {
	evaluation, err := s.evaluations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("evaluation", map[string]any{"id": id})
		}
		return nil, s.storeError(err)
	}
	return evaluation, nil
}

func (s *EvaluationService) storeError(err error) error {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("evaluation", nil)
	}
	return apperrors.NewStoreUnavailable(err)
}

func (s *EvaluationService) publish(ctx context.Context, eventType events.EventType, id string, payload map[string]any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{Type: eventType, EvaluationID: id, Payload: payload})
}
