package models

import "time"

// Requirement is one checklist entry an approving unit demands before it
// signs off. Upload-backed requirements need an evidence file; the rest are
// acknowledgment-only.
type Requirement struct {
	ID             string    `db:"id" json:"id"`
	UnitType       UnitType  `db:"unit_type" json:"unit_type"`
	UnitID         string    `db:"unit_id" json:"unit_id"`
	Name           string    `db:"name" json:"name"`
	Description    *string   `db:"description" json:"description,omitempty"`
	IsRequired     bool      `db:"is_required" json:"is_required"`
	RequiresUpload bool      `db:"requires_upload" json:"requires_upload"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// SubmissionStatus tracks a student's standing against one requirement.
type SubmissionStatus string

const (
	SubmissionStatusPending   SubmissionStatus = "PENDING"
	SubmissionStatusSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionStatusRejected  SubmissionStatus = "REJECTED"
	SubmissionStatusVerified  SubmissionStatus = "VERIFIED"
)

// Satisfied reports whether the status counts toward readiness for
// acknowledgment-only requirements.
func (s SubmissionStatus) Satisfied() bool {
	return s == SubmissionStatusSubmitted || s == SubmissionStatusVerified
}

// RequirementSubmission records a student's evidence (or acknowledgment)
// against one requirement of one review case. Unique per (case, requirement);
// the student may overwrite it while the case is unlocked. Evidence removal
// nulls the reference rather than deleting the row, so the audit trail survives.
type RequirementSubmission struct {
	ID            string           `db:"id" json:"id"`
	CaseID        string           `db:"case_id" json:"case_id"`
	RequirementID string           `db:"requirement_id" json:"requirement_id"`
	StudentID     string           `db:"student_id" json:"student_id"`
	EvidenceRef   *string          `db:"evidence_ref" json:"evidence_ref,omitempty"`
	Status        SubmissionStatus `db:"status" json:"status"`
	Remarks       *string          `db:"remarks" json:"remarks,omitempty"`
	SubmittedAt   *time.Time       `db:"submitted_at" json:"submitted_at,omitempty"`
	ReviewedAt    *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}
