package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-clearance-api/internal/models"
)

// HistoryRepository reads and appends the immutable status trail.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository constructs the repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

const historyColumns = `id, request_id, case_id, prior_status, new_status, actor_id, remarks, created_at`

// Append records one transition. Entries are never updated or deleted.
func (r *HistoryRepository) Append(ctx context.Context, entry *models.StatusHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO status_history (id, request_id, case_id, prior_status, new_status, actor_id, remarks, created_at)
	VALUES (:id, :request_id, :case_id, :prior_status, :new_status, :actor_id, :remarks, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append status history: %w", err)
	}
	return nil
}

// ListByCase returns a case's trail oldest first.
func (r *HistoryRepository) ListByCase(ctx context.Context, caseID string) ([]models.StatusHistoryEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM status_history WHERE case_id = $1 ORDER BY created_at, id`, historyColumns)
	var entries []models.StatusHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, caseID); err != nil {
		return nil, fmt.Errorf("list case history: %w", err)
	}
	return entries, nil
}

// ListByRequest returns every entry touching a request, case-level and
// request-level alike, oldest first.
func (r *HistoryRepository) ListByRequest(ctx context.Context, requestID string) ([]models.StatusHistoryEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM status_history WHERE request_id = $1 ORDER BY created_at, id`, historyColumns)
	var entries []models.StatusHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, requestID); err != nil {
		return nil, fmt.Errorf("list request history: %w", err)
	}
	return entries, nil
}
