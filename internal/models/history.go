package models

import "time"

// StatusHistoryEntry is the append-only record of one status transition of a
// review case or, when CaseID is null, of the parent request itself. Entries
// are never mutated or deleted once written.
type StatusHistoryEntry struct {
	ID          string    `db:"id" json:"id"`
	RequestID   string    `db:"request_id" json:"request_id"`
	CaseID      *string   `db:"case_id" json:"case_id,omitempty"`
	PriorStatus string    `db:"prior_status" json:"prior_status"`
	NewStatus   string    `db:"new_status" json:"new_status"`
	ActorID     string    `db:"actor_id" json:"actor_id"`
	Remarks     *string   `db:"remarks" json:"remarks,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
