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

// ReviewCaseRepository persists per-unit review cases and their transitions.
type ReviewCaseRepository struct {
	db *sqlx.DB
}

// NewReviewCaseRepository constructs the repository.
func NewReviewCaseRepository(db *sqlx.DB) *ReviewCaseRepository {
	return &ReviewCaseRepository{db: db}
}

// TransitionParams describes a single guarded case transition.
type TransitionParams struct {
	CaseID     string
	RequestID  string
	Expected   models.CaseStatus
	Next       models.CaseStatus
	ActorID    string
	ReviewerID *string
	Remarks    *string
}

const caseColumns = `id, request_id, unit_type, unit_id, status, reviewer_id, remarks, created_at, submitted_at, reviewed_at`

// GetByID fetches a case by identifier.
func (r *ReviewCaseRepository) GetByID(ctx context.Context, id string) (*models.ReviewCase, error) {
	query := fmt.Sprintf(`SELECT %s FROM review_cases WHERE id = $1`, caseColumns)
	var reviewCase models.ReviewCase
	if err := r.db.GetContext(ctx, &reviewCase, query, id); err != nil {
		return nil, err
	}
	return &reviewCase, nil
}

// GetDetailByID fetches a case joined with its unit name and owning student.
func (r *ReviewCaseRepository) GetDetailByID(ctx context.Context, id string) (*models.ReviewCaseDetail, error) {
	const query = `SELECT c.id, c.request_id, c.unit_type, c.unit_id, c.status, c.reviewer_id, c.remarks,
		c.created_at, c.submitted_at, c.reviewed_at, u.name AS unit_name, r.student_id
	FROM review_cases c
	JOIN approving_units u ON u.id = c.unit_id
	JOIN clearance_requests r ON r.id = c.request_id
	WHERE c.id = $1`
	var detail models.ReviewCaseDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListByRequest returns all cases fanned out for a request, stable order.
func (r *ReviewCaseRepository) ListByRequest(ctx context.Context, requestID string) ([]models.ReviewCase, error) {
	query := fmt.Sprintf(`SELECT %s FROM review_cases WHERE request_id = $1 ORDER BY unit_type, created_at`, caseColumns)
	var cases []models.ReviewCase
	if err := r.db.SelectContext(ctx, &cases, query, requestID); err != nil {
		return nil, fmt.Errorf("list review cases: %w", err)
	}
	return cases, nil
}

// ListQueue returns the review queue for a unit, optionally narrowed by status.
func (r *ReviewCaseRepository) ListQueue(ctx context.Context, filter models.ReviewCaseFilter) ([]models.ReviewCaseDetail, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT c.id, c.request_id, c.unit_type, c.unit_id, c.status, c.reviewer_id, c.remarks,
		c.created_at, c.submitted_at, c.reviewed_at, u.name AS unit_name, r.student_id
	FROM review_cases c
	JOIN approving_units u ON u.id = c.unit_id
	JOIN clearance_requests r ON r.id = c.request_id`)

	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 3)
	if filter.UnitType != "" {
		args = append(args, filter.UnitType)
		conditions = append(conditions, fmt.Sprintf("c.unit_type = $%d", len(args)))
	}
	if filter.UnitID != "" {
		args = append(args, filter.UnitID)
		conditions = append(conditions, fmt.Sprintf("c.unit_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("c.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY c.submitted_at NULLS LAST, c.created_at")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var cases []models.ReviewCaseDetail
	if err := r.db.SelectContext(ctx, &cases, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list review queue: %w", err)
	}
	return cases, nil
}

// Transition applies a guarded status change, logs it, and folds the sibling
// statuses back into the parent request, all inside one transaction. A guard
// miss (the case no longer holds the expected status) surfaces as
// sql.ErrNoRows so the caller can report a stale read.
func (r *ReviewCaseRepository) Transition(ctx context.Context, params TransitionParams) (*models.ReviewCase, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin case transition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Lock the parent row first so concurrent transitions on sibling cases
	// serialize their recompute instead of clobbering each other.
	var requestStatus string
	err = tx.GetContext(ctx, &requestStatus, `SELECT status FROM clearance_requests WHERE id = $1 FOR UPDATE`, params.RequestID)
	if err != nil {
		return nil, err
	}

	var result sql.Result
	if params.Next == models.CaseStatusSubmitted {
		result, err = tx.ExecContext(ctx,
			`UPDATE review_cases SET status = $1, submitted_at = $2 WHERE id = $3 AND status = $4`,
			params.Next, now, params.CaseID, params.Expected)
	} else {
		result, err = tx.ExecContext(ctx,
			`UPDATE review_cases SET status = $1, reviewer_id = $2, remarks = $3, reviewed_at = $4 WHERE id = $5 AND status = $6`,
			params.Next, params.ReviewerID, params.Remarks, now, params.CaseID, params.Expected)
	}
	if err != nil {
		return nil, fmt.Errorf("transition review case: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check transition rows: %w", err)
	}
	if rows == 0 {
		err = sql.ErrNoRows
		return nil, err
	}

	const insertHistory = `INSERT INTO status_history (id, request_id, case_id, prior_status, new_status, actor_id, remarks, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err = tx.ExecContext(ctx, insertHistory, uuid.NewString(), params.RequestID, params.CaseID,
		string(params.Expected), string(params.Next), params.ActorID, params.Remarks, now); err != nil {
		return nil, fmt.Errorf("insert case history: %w", err)
	}

	if err = recomputeRequestTx(ctx, tx, params.RequestID, models.RequestStatus(requestStatus), params.ActorID, now); err != nil {
		return nil, err
	}

	var reviewCase models.ReviewCase
	query := fmt.Sprintf(`SELECT %s FROM review_cases WHERE id = $1`, caseColumns)
	if err = tx.GetContext(ctx, &reviewCase, query, params.CaseID); err != nil {
		return nil, fmt.Errorf("reload review case: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit case transition: %w", err)
	}
	return &reviewCase, nil
}

// RecomputeRequestStatus re-derives the parent status from its cases. Safe to
// call repeatedly; a no-op when the derived status already holds.
func (r *ReviewCaseRepository) RecomputeRequestStatus(ctx context.Context, requestID, actorID string) (models.RequestStatus, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin recompute: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current string
	err = tx.GetContext(ctx, &current, `SELECT status FROM clearance_requests WHERE id = $1 FOR UPDATE`, requestID)
	if err != nil {
		return "", err
	}

	if err = recomputeRequestTx(ctx, tx, requestID, models.RequestStatus(current), actorID, now); err != nil {
		return "", err
	}

	var derived string
	if err = tx.GetContext(ctx, &derived, `SELECT status FROM clearance_requests WHERE id = $1`, requestID); err != nil {
		return "", fmt.Errorf("reload request status: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit recompute: %w", err)
	}
	return models.RequestStatus(derived), nil
}

func recomputeRequestTx(ctx context.Context, tx *sqlx.Tx, requestID string, current models.RequestStatus, actorID string, now time.Time) error {
	if current.Terminal() && current != models.RequestStatusCompleted {
		// A rejected or withdrawn request stays closed regardless of its cases.
		return nil
	}

	var statuses []models.CaseStatus
	if err := tx.SelectContext(ctx, &statuses, `SELECT status FROM review_cases WHERE request_id = $1`, requestID); err != nil {
		return fmt.Errorf("load sibling case statuses: %w", err)
	}

	derived := models.DeriveRequestStatus(statuses)
	if derived == current {
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE clearance_requests SET status = $1, updated_at = $2 WHERE id = $3`,
		derived, now, requestID); err != nil {
		return fmt.Errorf("update request status: %w", err)
	}

	const insertHistory = `INSERT INTO status_history (id, request_id, case_id, prior_status, new_status, actor_id, remarks, created_at)
	VALUES ($1, $2, NULL, $3, $4, $5, NULL, $6)`
	if _, err := tx.ExecContext(ctx, insertHistory, uuid.NewString(), requestID,
		string(current), string(derived), actorID, now); err != nil {
		return fmt.Errorf("insert request history: %w", err)
	}
	return nil
}
