package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-clearance-api/internal/models"
)

// ClearanceRequestRepository persists clearance requests and their fan-out.
type ClearanceRequestRepository struct {
	db *sqlx.DB
}

// NewClearanceRequestRepository constructs the repository.
func NewClearanceRequestRepository(db *sqlx.DB) *ClearanceRequestRepository {
	return &ClearanceRequestRepository{db: db}
}

// FindActiveByStudent returns the student's non-terminal request, if any.
func (r *ClearanceRequestRepository) FindActiveByStudent(ctx context.Context, studentID string) (*models.ClearanceRequest, error) {
	const query = `SELECT id, student_id, type, period, status, created_at, updated_at
	FROM clearance_requests
	WHERE student_id = $1 AND status NOT IN ($2, $3, $4)
	ORDER BY created_at DESC LIMIT 1`
	var request models.ClearanceRequest
	err := r.db.GetContext(ctx, &request, query, studentID,
		models.RequestStatusCompleted, models.RequestStatusRejected, models.RequestStatusApproved)
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// CreateWithCases inserts the request and every review case in a single
// transaction so a request is never observable with a partial case set.
// The request creation itself is logged to status history.
func (r *ClearanceRequestRepository) CreateWithCases(ctx context.Context, request *models.ClearanceRequest, cases []models.ReviewCase) error {
	now := time.Now().UTC()
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clearance fan-out: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertRequest = `INSERT INTO clearance_requests (id, student_id, type, period, status, created_at, updated_at)
	VALUES (:id, :student_id, :type, :period, :status, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertRequest, request); err != nil {
		return fmt.Errorf("insert clearance request: %w", err)
	}

	const insertCase = `INSERT INTO review_cases (id, request_id, unit_type, unit_id, status, created_at)
	VALUES (:id, :request_id, :unit_type, :unit_id, :status, :created_at)`
	for i := range cases {
		if cases[i].ID == "" {
			cases[i].ID = uuid.NewString()
		}
		cases[i].RequestID = request.ID
		if cases[i].Status == "" {
			cases[i].Status = models.CaseStatusPending
		}
		if cases[i].CreatedAt.IsZero() {
			cases[i].CreatedAt = now
		}
		if _, err = tx.NamedExecContext(ctx, insertCase, cases[i]); err != nil {
			return fmt.Errorf("insert review case for unit %s/%s: %w", cases[i].UnitType, cases[i].UnitID, err)
		}
	}

	const insertHistory = `INSERT INTO status_history (id, request_id, case_id, prior_status, new_status, actor_id, remarks, created_at)
	VALUES ($1, $2, NULL, $3, $4, $5, NULL, $6)`
	if _, err = tx.ExecContext(ctx, insertHistory, uuid.NewString(), request.ID, "", string(request.Status), request.StudentID, now); err != nil {
		return fmt.Errorf("insert request creation history: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit clearance fan-out: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *ClearanceRequestRepository) GetByID(ctx context.Context, id string) (*models.ClearanceRequest, error) {
	const query = `SELECT id, student_id, type, period, status, created_at, updated_at
	FROM clearance_requests WHERE id = $1`
	var request models.ClearanceRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests matching the filter (latest first).
func (r *ClearanceRequestRepository) List(ctx context.Context, filter models.ClearanceRequestFilter) ([]models.ClearanceRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(`SELECT id, student_id, type, period, status, created_at, updated_at FROM clearance_requests`)

	conditions := make([]string, 0, 4)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Period != "" {
		args = append(args, filter.Period)
		conditions = append(conditions, fmt.Sprintf("period = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.ClearanceRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list clearance requests: %w", err)
	}
	return requests, nil
}

// CountCases returns the number of review cases fanned out for a request.
func (r *ClearanceRequestRepository) CountCases(ctx context.Context, requestID string) (int, error) {
	const query = `SELECT COUNT(*) FROM review_cases WHERE request_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, requestID); err != nil {
		return 0, fmt.Errorf("count review cases: %w", err)
	}
	return count, nil
}

// Withdraw closes a non-terminal request permanently. The status guard makes
// concurrent withdrawals race safely; the loser gets sql.ErrNoRows.
func (r *ClearanceRequestRepository) Withdraw(ctx context.Context, requestID, actorID, remarks string) (*models.ClearanceRequest, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin withdraw: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var prior string
	err = tx.GetContext(ctx, &prior, `SELECT status FROM clearance_requests WHERE id = $1 FOR UPDATE`, requestID)
	if err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE clearance_requests SET status = $1, updated_at = $2 WHERE id = $3 AND status NOT IN ($4, $5, $6)`,
		models.RequestStatusRejected, now, requestID,
		models.RequestStatusCompleted, models.RequestStatusRejected, models.RequestStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("withdraw clearance request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check withdraw rows: %w", err)
	}
	if rows == 0 {
		err = sql.ErrNoRows
		return nil, err
	}

	const insertHistory = `INSERT INTO status_history (id, request_id, case_id, prior_status, new_status, actor_id, remarks, created_at)
	VALUES ($1, $2, NULL, $3, $4, $5, $6, $7)`
	if _, err = tx.ExecContext(ctx, insertHistory, uuid.NewString(), requestID, prior, string(models.RequestStatusRejected), actorID, remarks, now); err != nil {
		return nil, fmt.Errorf("insert withdraw history: %w", err)
	}

	var request models.ClearanceRequest
	err = tx.GetContext(ctx, &request,
		`SELECT id, student_id, type, period, status, created_at, updated_at FROM clearance_requests WHERE id = $1`, requestID)
	if err != nil {
		return nil, fmt.Errorf("reload withdrawn request: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit withdraw: %w", err)
	}
	return &request, nil
}
