package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/evaluation-service/internal/api/dto"
	"github.com/spec-kit/evaluation-service/internal/domain"
	"github.com/spec-kit/evaluation-service/internal/repository"
	"github.com/spec-kit/evaluation-service/internal/service"
	apperrors "github.com/spec-kit/evaluation-service/pkg/util"
)

// EvaluationsHandler maps HTTP verbs to lifecycle operations. The true client
// address is resolved here (Fiber's ProxyHeader handles intermediaries); the
// service treats the supplied IP as ground truth.
type EvaluationsHandler struct {
	service *service.EvaluationService
}

// NewEvaluationsHandler constructs the handler.
func NewEvaluationsHandler(evaluationService *service.EvaluationService) *EvaluationsHandler {
	return &EvaluationsHandler{service: evaluationService}
}

// Create POST /api/evaluations.
func (h *EvaluationsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateEvaluationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.CreateEvaluationInput{
		AttendantName: req.AttendantName,
		CompanyName:   req.CompanyName,
		TicketRef:     req.TicketRef,
		OriginIP:      c.IP(),
	}
	evaluation, err := h.service.Create(c.UserContext(), input)
	if err != nil {
		return err
	}

	resp := dto.CreateEvaluationResponse{ID: evaluation.ID}
	if evaluation.Token != nil {
		resp.Token = *evaluation.Token
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": resp})
}

// Validate GET /api/evaluations/:id/validate.
func (h *EvaluationsHandler) Validate(c *fiber.Ctx) error {
	claims, err := h.service.Validate(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ValidateEvaluationResponse{
		ID:            claims.EvaluationID,
		AttendantName: claims.AttendantName,
		CompanyName:   claims.CompanyName,
		TicketRef:     claims.TicketRef,
	}})
}

// List GET /api/evaluations.
func (h *EvaluationsHandler) List(c *fiber.Ctx) error {
	filter := parseEvaluationQuery(c)
	evaluations, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.EvaluationSummary, 0, len(evaluations))
	for i := range evaluations {
		items = append(items, evaluationSummary(&evaluations[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Update PUT /api/evaluations/:id.
func (h *EvaluationsHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateEvaluationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.UpdateEvaluationInput{
		RespondentIP:  c.IP(),
		ScoreService:  req.ScoreService,
		ScoreCompany:  req.ScoreCompany,
		Notes:         req.Notes,
		IssueResolved: req.IssueResolved,
	}
	if err := h.service.Update(c.UserContext(), c.Params("id"), input); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "evaluation recorded"})
}

func parseEvaluationQuery(c *fiber.Ctx) repository.EvaluationFilter {
	filter := repository.EvaluationFilter{}

	if from := parseTime(c.Query("data_inicial")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("data_final")); to != nil {
		filter.CreatedTo = to
	}
	if statusStr := strings.TrimSpace(c.Query("status")); statusStr != "" {
		status := domain.EvaluationStatus(statusStr)
		filter.Status = &status
	}
	if name := strings.TrimSpace(c.Query("attendant_name")); name != "" {
		filter.AttendantName = &name
	}
	if name := strings.TrimSpace(c.Query("company_name")); name != "" {
		filter.CompanyName = &name
	}
	if score := parseInt(c.Query("score_service")); score != nil {
		filter.ScoreService = score
	}
	if score := parseInt(c.Query("score_company")); score != nil {
		filter.ScoreCompany = score
	}
	if resolvedStr := c.Query("issue_resolved"); resolvedStr != "" {
		if resolved, err := strconv.ParseBool(resolvedStr); err == nil {
			filter.IssueResolved = &resolved
		}
	}
	if limit := parseInt(c.Query("limit")); limit != nil {
		filter.Limit = *limit
	}
	if offset := parseInt(c.Query("offset")); offset != nil {
		filter.Offset = *offset
	}

	return filter
}

func parseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

func parseInt(value string) *int {
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	return &parsed
}

func evaluationSummary(evaluation *domain.Evaluation) dto.EvaluationSummary {
	return dto.EvaluationSummary{
		ID:            evaluation.ID,
		AttendantName: evaluation.AttendantName,
		CompanyName:   evaluation.CompanyName,
		TicketRef:     evaluation.TicketRef,
		Status:        evaluation.Status,
		ScoreService:  evaluation.ScoreService,
		ScoreCompany:  evaluation.ScoreCompany,
		Notes:         evaluation.Notes,
		IssueResolved: evaluation.IssueResolved,
		CreatedAt:     evaluation.CreatedAt,
		UpdatedAt:     evaluation.UpdatedAt,
	}
}
