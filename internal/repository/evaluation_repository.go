package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/evaluation-service/internal/domain"
	apperrors "github.com/spec-kit/evaluation-service/pkg/util"
)

// EvaluationFilter captures listing parameters. Nil fields are simply omitted
// from the predicate.
type EvaluationFilter struct {
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	Status        *domain.EvaluationStatus
	AttendantName *string
	CompanyName   *string
	ScoreService  *int
	ScoreCompany  *int
	IssueResolved *bool
	Limit         int
	Offset        int
}

// EvaluationUpdate is the full attribute patch applied by Update. Status is
// always stamped with the value supplied by the caller and the token is always
// cleared; the lifecycle layer decides which status to write.
type EvaluationUpdate struct {
	Status        domain.EvaluationStatus
	ScoreService  *int
	ScoreCompany  *int
	RespondentIP  *string
	Notes         *string
	IssueResolved *bool
}

// EvaluationRepository encapsulates evaluation persistence.
type EvaluationRepository interface {
	Create(ctx context.Context, evaluation *domain.Evaluation) error
	GetByID(ctx context.Context, id string) (*domain.Evaluation, error)
	List(ctx context.Context, filter EvaluationFilter) ([]domain.Evaluation, error)
	Update(ctx context.Context, id string, update EvaluationUpdate) error
}

type evaluationRepository struct {
	pool *pgxpool.Pool
}

// NewEvaluationRepository instantiates the repository.
func NewEvaluationRepository(pool *pgxpool.Pool) EvaluationRepository {
	return &evaluationRepository{pool: pool}
}

const uniqueViolationCode = "23505"

func (r *evaluationRepository) Create(ctx context.Context, evaluation *domain.Evaluation) error {
	const query = `
        INSERT INTO evaluations (id, attendant_name, company_name, ticket_ref, origin_ip, token, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		evaluation.ID,
		evaluation.AttendantName,
		evaluation.CompanyName,
		evaluation.TicketRef,
		evaluation.OriginIP,
		evaluation.Token,
		evaluation.Status,
	).Scan(&evaluation.CreatedAt, &evaluation.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return apperrors.NewConflict("evaluation id already exists", map[string]any{"id": evaluation.ID})
		}
		return err
	}
	return nil
}

func (r *evaluationRepository) GetByID(ctx context.Context, id string) (*domain.Evaluation, error) {
	const query = `
        SELECT id, attendant_name, company_name, ticket_ref, origin_ip, token, status,
               score_service, score_company, respondent_ip, notes, issue_resolved,
               created_at, updated_at
        FROM evaluations WHERE id=$1`
	var evaluation domain.Evaluation
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&evaluation.ID,
		&evaluation.AttendantName,
		&evaluation.CompanyName,
		&evaluation.TicketRef,
		&evaluation.OriginIP,
		&evaluation.Token,
		&evaluation.Status,
		&evaluation.ScoreService,
		&evaluation.ScoreCompany,
		&evaluation.RespondentIP,
		&evaluation.Notes,
		&evaluation.IssueResolved,
		&evaluation.CreatedAt,
		&evaluation.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &evaluation, nil
}

func (r *evaluationRepository) List(ctx context.Context, filter EvaluationFilter) ([]domain.Evaluation, error) {
	query, args := buildListQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvaluations(rows)
}

func (r *evaluationRepository) Update(ctx context.Context, id string, update EvaluationUpdate) error {
	const query = `
        UPDATE evaluations
        SET status=$1, score_service=$2, score_company=$3, respondent_ip=$4,
            notes=$5, issue_resolved=$6, token=NULL, updated_at=NOW()
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		update.Status,
		update.ScoreService,
		update.ScoreCompany,
		update.RespondentIP,
		update.Notes,
		update.IssueResolved,
		id,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// buildListQuery assembles the filtered SELECT. Kept separate from pool access
// so the predicate construction is unit-testable.
func buildListQuery(filter EvaluationFilter) (string, []any) {
	base := `SELECT id, attendant_name, company_name, ticket_ref, origin_ip, token, status,
                    score_service, score_company, respondent_ip, notes, issue_resolved,
                    created_at, updated_at
             FROM evaluations`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.AttendantName != nil && strings.TrimSpace(*filter.AttendantName) != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(*filter.AttendantName))+"%")
		clauses = append(clauses, fmt.Sprintf("LOWER(attendant_name) LIKE $%d", len(args)))
	}
	if filter.CompanyName != nil && strings.TrimSpace(*filter.CompanyName) != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(*filter.CompanyName))+"%")
		clauses = append(clauses, fmt.Sprintf("LOWER(company_name) LIKE $%d", len(args)))
	}
	if filter.ScoreService != nil {
		args = append(args, *filter.ScoreService)
		clauses = append(clauses, fmt.Sprintf("score_service = $%d", len(args)))
	}
	if filter.ScoreCompany != nil {
		args = append(args, *filter.ScoreCompany)
		clauses = append(clauses, fmt.Sprintf("score_company = $%d", len(args)))
	}
	if filter.IssueResolved != nil {
		args = append(args, *filter.IssueResolved)
		clauses = append(clauses, fmt.Sprintf("issue_resolved = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)
	return query, args
}

func scanEvaluations(rows pgx.Rows) ([]domain.Evaluation, error) {
	var result []domain.Evaluation
	for rows.Next() {
		var evaluation domain.Evaluation
		if err := rows.Scan(
			&evaluation.ID,
			&evaluation.AttendantName,
			&evaluation.CompanyName,
			&evaluation.TicketRef,
			&evaluation.OriginIP,
			&evaluation.Token,
			&evaluation.Status,
			&evaluation.ScoreService,
			&evaluation.ScoreCompany,
			&evaluation.RespondentIP,
			&evaluation.Notes,
			&evaluation.IssueResolved,
			&evaluation.CreatedAt,
			&evaluation.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, evaluation)
	}
	return result, rows.Err()
}
