package dto

import (
	"time"

	"github.com/noah-isme/campus-clearance-api/internal/models"
)

// CreateClearanceRequest opens a new clearance cycle for the caller.
type CreateClearanceRequest struct {
	Type   models.RequestType `json:"type" validate:"required"`
	Period string             `json:"period"`
}

// SubmitCaseRequest moves a ready case into the review queue. ExpectedStatus
// is the caller's last-known case status and acts as the optimistic
// concurrency token.
type SubmitCaseRequest struct {
	ExpectedStatus models.CaseStatus `json:"expected_status" validate:"required"`
}

// DecideCaseRequest records a reviewer decision on a submitted case.
type DecideCaseRequest struct {
	Outcome        models.CaseStatus `json:"outcome" validate:"required"`
	Remarks        string            `json:"remarks"`
	ExpectedStatus models.CaseStatus `json:"expected_status" validate:"required"`
}

// AcknowledgeRequirementRequest toggles an acknowledgment-only requirement.
type AcknowledgeRequirementRequest struct {
	Acknowledged bool `json:"acknowledged"`
}

// WithdrawRequest permanently closes a clearance request.
type WithdrawRequest struct {
	Remarks string `json:"remarks" validate:"required"`
}

// ChecklistItem pairs a requirement with the student's current submission
// for the case detail view.
type ChecklistItem struct {
	Requirement models.Requirement            `json:"requirement"`
	Submission  *models.RequirementSubmission `json:"submission,omitempty"`
	Satisfied   bool                          `json:"satisfied"`
}

// CaseDetailResponse is the full per-case view: the case row, its checklist
// joined with submissions, and the computed readiness.
type CaseDetailResponse struct {
	Case      models.ReviewCase `json:"case"`
	UnitName  string            `json:"unit_name"`
	StudentID string            `json:"student_id"`
	Checklist []ChecklistItem   `json:"checklist"`
	Ready     bool              `json:"ready"`
	Unmet     []string          `json:"unmet,omitempty"`
}

// EvidenceUploadResponse returns the authoritative submission row plus a
// signed download link for the stored evidence.
type EvidenceUploadResponse struct {
	Submission  models.RequirementSubmission `json:"submission"`
	DownloadURL string                       `json:"download_url,omitempty"`
	ExpiresAt   *time.Time                   `json:"expires_at,omitempty"`
}

// ClearanceQuery filters request listings.
type ClearanceQuery struct {
	StudentID string
	Status    []models.RequestStatus
	Type      models.RequestType
	Period    string
	Limit     int
	Offset    int
}

// CaseQueue filters the reviewer work queue.
type CaseQueue struct {
	Status []models.CaseStatus
	Limit  int
	Offset int
}
