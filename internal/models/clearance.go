package models

import "time"

// RequestType enumerates the clearance milestones a student may request.
type RequestType string

const (
	RequestTypePeriodEnd  RequestType = "PERIOD_END"
	RequestTypeTransfer   RequestType = "TRANSFER"
	RequestTypeGraduation RequestType = "GRADUATION"
)

// ValidRequestType reports whether the value is a known request type.
func ValidRequestType(t RequestType) bool {
	switch t {
	case RequestTypePeriodEnd, RequestTypeTransfer, RequestTypeGraduation:
		return true
	}
	return false
}

// RequestStatus captures the derived overall state of a clearance request.
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "PENDING"
	RequestStatusInProgress RequestStatus = "IN_PROGRESS"
	RequestStatusApproved   RequestStatus = "APPROVED"
	RequestStatusRejected   RequestStatus = "REJECTED"
	RequestStatusCompleted  RequestStatus = "COMPLETED"
)

// Terminal reports whether the request can no longer change. A student may
// only hold one non-terminal request at a time.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusRejected || s == RequestStatusApproved
}

// ClearanceRequest is one student's clearance cycle. Its status is never
// written directly; it is recomputed from the child cases.
type ClearanceRequest struct {
	ID        string        `db:"id" json:"id"`
	StudentID string        `db:"student_id" json:"student_id"`
	Type      RequestType   `db:"type" json:"type"`
	Period    string        `db:"period" json:"period"`
	Status    RequestStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// ClearanceRequestDetail enriches a request with its review cases.
type ClearanceRequestDetail struct {
	ClearanceRequest
	Cases []ReviewCase `json:"cases"`
}

// ClearanceRequestFilter constrains listing queries.
type ClearanceRequestFilter struct {
	StudentID string
	Status    []RequestStatus
	Type      RequestType
	Period    string
	Limit     int
	Offset    int
}

// CaseStatus is the per-unit review lifecycle state.
type CaseStatus string

const (
	CaseStatusPending   CaseStatus = "PENDING"
	CaseStatusSubmitted CaseStatus = "SUBMITTED"
	CaseStatusApproved  CaseStatus = "APPROVED"
	CaseStatusRejected  CaseStatus = "REJECTED"
	CaseStatusOnHold    CaseStatus = "ON_HOLD"
)

// ValidCaseStatus reports whether the value is a known case status.
func ValidCaseStatus(s CaseStatus) bool {
	switch s {
	case CaseStatusPending, CaseStatusSubmitted, CaseStatusApproved, CaseStatusRejected, CaseStatusOnHold:
		return true
	}
	return false
}

// Locked reports whether a case refuses further evidence writes. A case
// queued for review or already cleared must not change underneath its reviewer.
func (s CaseStatus) Locked() bool {
	return s == CaseStatusSubmitted || s == CaseStatusApproved
}

// Submittable reports whether a student may move the case into review from
// this state. Rejected and on-hold cases re-enter via resubmission.
func (s CaseStatus) Submittable() bool {
	return s == CaseStatusPending || s == CaseStatusRejected || s == CaseStatusOnHold
}

// DecisionOutcome reports whether the status is a legal reviewer decision.
func DecisionOutcome(s CaseStatus) bool {
	return s == CaseStatusApproved || s == CaseStatusRejected || s == CaseStatusOnHold
}

// RemarksRequired reports whether the outcome must carry reviewer remarks.
func RemarksRequired(s CaseStatus) bool {
	return s == CaseStatusRejected || s == CaseStatusOnHold
}

// ReviewCase is the independent review instance one approving unit holds
// against a clearance request. Exactly one exists per (request, unit).
type ReviewCase struct {
	ID          string     `db:"id" json:"id"`
	RequestID   string     `db:"request_id" json:"request_id"`
	UnitType    UnitType   `db:"unit_type" json:"unit_type"`
	UnitID      string     `db:"unit_id" json:"unit_id"`
	Status      CaseStatus `db:"status" json:"status"`
	ReviewerID  *string    `db:"reviewer_id" json:"reviewer_id,omitempty"`
	Remarks     *string    `db:"remarks" json:"remarks,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	SubmittedAt *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	ReviewedAt  *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

// ReviewCaseDetail enriches a case with its unit name and owning student.
type ReviewCaseDetail struct {
	ReviewCase
	UnitName  string `db:"unit_name" json:"unit_name"`
	StudentID string `db:"student_id" json:"student_id"`
}

// ReviewCaseFilter constrains case listing for reviewer queues.
type ReviewCaseFilter struct {
	RequestID string
	UnitType  UnitType
	UnitID    string
	Status    []CaseStatus
	Limit     int
	Offset    int
}

// DeriveRequestStatus recomputes the overall request status from its cases.
// It is a pure function and safe to run redundantly: zero cases or all
// approved means completed; any case past pending means in progress. A case
// rejection never fails the whole request.
func DeriveRequestStatus(statuses []CaseStatus) RequestStatus {
	if len(statuses) == 0 {
		return RequestStatusCompleted
	}
	allApproved := true
	anyMoved := false
	for _, s := range statuses {
		if s != CaseStatusApproved {
			allApproved = false
		}
		if s != CaseStatusPending {
			anyMoved = true
		}
	}
	if allApproved {
		return RequestStatusCompleted
	}
	if anyMoved {
		return RequestStatusInProgress
	}
	return RequestStatusPending
}
