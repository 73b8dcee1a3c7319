package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-clearance-api/internal/models"
)

// CertificateRepository persists certificate job metadata.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// Create inserts a new certificate job row with generated defaults.
func (r *CertificateRepository) Create(ctx context.Context, job *models.CertificateJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.CertificateStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO certificate_jobs (id, request_id, format, status, result_url, created_by, created_at, finished_at, error_message)
VALUES (:id, :request_id, :format, :status, :result_url, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create certificate job: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier.
func (r *CertificateRepository) GetByID(ctx context.Context, id string) (*models.CertificateJob, error) {
	const query = `SELECT id, request_id, format, status, result_url, created_by, created_at, finished_at, error_message
FROM certificate_jobs WHERE id = $1`
	var job models.CertificateJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateCertificateJobParams defines the mutable fields.
type UpdateCertificateJobParams struct {
	Status       *models.CertificateStatus
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Update persists the provided changes for a job row.
func (r *CertificateRepository) Update(ctx context.Context, id string, params UpdateCertificateJobParams) error {
	set := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)
	argPos := 1

	if params.Status != nil {
		set = append(set, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *params.Status)
		argPos++
	}
	if params.ResultURL != nil {
		set = append(set, fmt.Sprintf("result_url = $%d", argPos))
		args = append(args, *params.ResultURL)
		argPos++
	}
	if params.ErrorMessage != nil {
		set = append(set, fmt.Sprintf("error_message = $%d", argPos))
		args = append(args, *params.ErrorMessage)
		argPos++
	}
	if params.FinishedAt != nil {
		set = append(set, fmt.Sprintf("finished_at = $%d", argPos))
		args = append(args, *params.FinishedAt)
		argPos++
	}

	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE certificate_jobs SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update certificate job: %w", err)
	}
	return nil
}

// ListQueued fetches queued jobs (used for cold start recovery).
func (r *CertificateRepository) ListQueued(ctx context.Context, limit int) ([]models.CertificateJob, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, request_id, format, status, result_url, created_by, created_at, finished_at, error_message
FROM certificate_jobs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1`
	var jobs []models.CertificateJob
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("list queued certificate jobs: %w", err)
	}
	return jobs, nil
}
