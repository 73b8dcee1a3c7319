package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-clearance-api/internal/models"
)

// SubmissionRepository persists per-requirement submissions within a case.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

const submissionColumns = `id, case_id, requirement_id, student_id, evidence_ref, status, remarks, submitted_at, reviewed_at, updated_at`

// GetByCase returns all submissions recorded against a case.
func (r *SubmissionRepository) GetByCase(ctx context.Context, caseID string) ([]models.RequirementSubmission, error) {
	query := fmt.Sprintf(`SELECT %s FROM requirement_submissions WHERE case_id = $1 ORDER BY updated_at`, submissionColumns)
	var submissions []models.RequirementSubmission
	if err := r.db.SelectContext(ctx, &submissions, query, caseID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// Get fetches the submission for one requirement in one case.
func (r *SubmissionRepository) Get(ctx context.Context, caseID, requirementID string) (*models.RequirementSubmission, error) {
	query := fmt.Sprintf(`SELECT %s FROM requirement_submissions WHERE case_id = $1 AND requirement_id = $2`, submissionColumns)
	var submission models.RequirementSubmission
	if err := r.db.GetContext(ctx, &submission, query, caseID, requirementID); err != nil {
		return nil, err
	}
	return &submission, nil
}

// Upsert writes the submission, replacing any earlier one for the same
// requirement in the same case. The unique (case_id, requirement_id) pair
// makes re-submission an overwrite rather than a duplicate row.
func (r *SubmissionRepository) Upsert(ctx context.Context, submission *models.RequirementSubmission) error {
	now := time.Now().UTC()
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	submission.UpdatedAt = now

	query := fmt.Sprintf(`INSERT INTO requirement_submissions (id, case_id, requirement_id, student_id, evidence_ref, status, remarks, submitted_at, reviewed_at, updated_at)
	VALUES (:id, :case_id, :requirement_id, :student_id, :evidence_ref, :status, :remarks, :submitted_at, :reviewed_at, :updated_at)
	ON CONFLICT (case_id, requirement_id) DO UPDATE SET
		evidence_ref = EXCLUDED.evidence_ref,
		status = EXCLUDED.status,
		remarks = EXCLUDED.remarks,
		submitted_at = EXCLUDED.submitted_at,
		reviewed_at = EXCLUDED.reviewed_at,
		updated_at = EXCLUDED.updated_at
	RETURNING %s`, submissionColumns)

	rows, err := r.db.NamedQueryContext(ctx, query, submission)
	if err != nil {
		return fmt.Errorf("upsert submission: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.StructScan(submission); err != nil {
			return fmt.Errorf("scan upserted submission: %w", err)
		}
	}
	return rows.Err()
}
