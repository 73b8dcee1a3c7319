package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-clearance-api/internal/dto"
	"github.com/noah-isme/campus-clearance-api/internal/models"
	appErrors "github.com/noah-isme/campus-clearance-api/pkg/errors"
)

func newReviewService(w *workflowStub) *ReviewService {
	return NewReviewService(w, w, w, w, &auditStub{}, nil)
}

// seedFlow opens a request for student-1 against a department and an office,
// each with one upload requirement, and returns the two case ids.
func seedFlow(t *testing.T, w *workflowStub) (requestID, deptCase, officeCase string) {
	t.Helper()
	w.addUnit(models.UnitTypeDepartment, "dept-1", "Computer Science")
	w.addUnit(models.UnitTypeOffice, "office-1", "Library")
	w.addRequirement(models.UnitTypeDepartment, "dept-1", "r-thesis", "Thesis archived", true, true)
	w.addRequirement(models.UnitTypeOffice, "office-1", "r-books", "Return borrowed books", true, true)

	clearance, _ := newClearanceService(w)
	detail, err := clearance.CreateRequest(context.Background(), dto.CreateClearanceRequest{Type: models.RequestTypeGraduation}, studentClaims("student-1"))
	require.NoError(t, err)
	require.Len(t, detail.Cases, 2)

	for _, c := range detail.Cases {
		switch c.UnitType {
		case models.UnitTypeDepartment:
			deptCase = c.ID
		case models.UnitTypeOffice:
			officeCase = c.ID
		}
	}
	return detail.ID, deptCase, officeCase
}

func satisfyUpload(t *testing.T, w *workflowStub, caseID, requirementID string) {
	t.Helper()
	ref := "evidence/" + caseID + "/" + requirementID + "/file.pdf"
	require.NoError(t, w.Upsert(context.Background(), &models.RequirementSubmission{
		CaseID:        caseID,
		RequirementID: requirementID,
		StudentID:     "student-1",
		EvidenceRef:   &ref,
		Status:        models.SubmissionStatusSubmitted,
	}))
}

func TestReviewServiceSubmitRefusedUntilReady(t *testing.T) {
	w := newWorkflowStub()
	_, deptCase, _ := seedFlow(t, w)
	svc := newReviewService(w)

	_, err := svc.Submit(context.Background(), deptCase, dto.SubmitCaseRequest{ExpectedStatus: models.CaseStatusPending}, studentClaims("student-1"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrNotReady.Code, appErr.Code)
	require.Equal(t, []string{"Thesis archived"}, appErr.Details)
}

func TestReviewServiceFullFlow(t *testing.T) {
	w := newWorkflowStub()
	requestID, deptCase, officeCase := seedFlow(t, w)
	svc := newReviewService(w)
	student := studentClaims("student-1")
	deptReviewer := reviewerClaims("rev-dept", models.UnitTypeDepartment, "dept-1")
	officeReviewer := reviewerClaims("rev-office", models.UnitTypeOffice, "office-1")

	satisfyUpload(t, w, deptCase, "r-thesis")
	satisfyUpload(t, w, officeCase, "r-books")

	// submitting the first case moves the request out of pending
	submitted, err := svc.Submit(context.Background(), deptCase, dto.SubmitCaseRequest{ExpectedStatus: models.CaseStatusPending}, student)
	require.NoError(t, err)
	require.Equal(t, models.CaseStatusSubmitted, submitted.Status)
	require.Equal(t, models.RequestStatusInProgress, w.requests[requestID].Status)

	_, err = svc.Submit(context.Background(), officeCase, dto.SubmitCaseRequest{ExpectedStatus: models.CaseStatusPending}, student)
	require.NoError(t, err)

	// the department approves
	decided, err := svc.Decide(context.Background(), deptCase, dto.DecideCaseRequest{
		Outcome:        models.CaseStatusApproved,
		ExpectedStatus: models.CaseStatusSubmitted,
	}, deptReviewer)
	require.NoError(t, err)
	require.Equal(t, models.CaseStatusApproved, decided.Status)
	require.Equal(t, models.RequestStatusInProgress, w.requests[requestID].Status)

	// the office rejects, which never fails the whole request
	decided, err = svc.Decide(context.Background(), officeCase, dto.DecideCaseRequest{
		Outcome:        models.CaseStatusRejected,
		Remarks:        "missing a receipt",
		ExpectedStatus: models.CaseStatusSubmitted,
	}, officeReviewer)
	require.NoError(t, err)
	require.Equal(t, models.CaseStatusRejected, decided.Status)
	require.Equal(t, models.RequestStatusInProgress, w.requests[requestID].Status)

	// the student fixes the evidence and resubmits from the rejected state
	satisfyUpload(t, w, officeCase, "r-books")
	_, err = svc.Submit(context.Background(), officeCase, dto.SubmitCaseRequest{ExpectedStatus: models.CaseStatusRejected}, student)
	require.NoError(t, err)

	// the final approval completes the request
	_, err = svc.Decide(context.Background(), officeCase, dto.DecideCaseRequest{
		Outcome:        models.CaseStatusApproved,
		ExpectedStatus: models.CaseStatusSubmitted,
	}, officeReviewer)
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusCompleted, w.requests[requestID].Status)

	// the office case trail reads submit, reject, resubmit, approve
	entries, err := svc.CaseHistory(context.Background(), officeCase, student)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	require.Equal(t, "SUBMITTED", entries[0].NewStatus)
	require.Equal(t, "REJECTED", entries[1].NewStatus)
	require.Equal(t, "SUBMITTED", entries[2].NewStatus)
	require.Equal(t, "APPROVED", entries[3].NewStatus)
}

func TestReviewServiceDecideStaleGuard(t *testing.T) {
	w := newWorkflowStub()
	_, deptCase, _ := seedFlow(t, w)
	svc := newReviewService(w)
	reviewer := reviewerClaims("rev-1", models.UnitTypeDepartment, "dept-1")

	satisfyUpload(t, w, deptCase, "r-thesis")
	_, err := svc.Submit(context.Background(), deptCase, dto.SubmitCaseRequest{ExpectedStatus: models.CaseStatusPending}, studentClaims("student-1"))
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), deptCase, dto.DecideCaseRequest{
		Outcome:        models.CaseStatusApproved,
		ExpectedStatus: models.CaseStatusSubmitted,
	}, reviewer)
	require.NoError(t, err)

	// a second decision on the same snapshot loses the race
	_, err = svc.Decide(context.Background(), deptCase, dto.DecideCaseRequest{
		Outcome:        models.CaseStatusRejected,
		Remarks:        "too late",
		ExpectedStatus: models.CaseStatusSubmitted,
	}, reviewer)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrStaleState.Code, appErrors.FromError(err).Code)
}

func TestReviewServiceDecideRequiresRemarks(t *testing.T) {
	w := newWorkflowStub()
	_, deptCase, _ := seedFlow(t, w)
	svc := newReviewService(w)
	reviewer := reviewerClaims("rev-1", models.UnitTypeDepartment, "dept-1")

	satisfyUpload(t, w, deptCase, "r-thesis")
	_, err := svc.Submit(context.Background(), deptCase, dto.SubmitCaseRequest{ExpectedStatus: models.CaseStatusPending}, studentClaims("student-1"))
	require.NoError(t, err)

	for _, outcome := range []models.CaseStatus{models.CaseStatusRejected, models.CaseStatusOnHold} {
		_, err = svc.Decide(context.Background(), deptCase, dto.DecideCaseRequest{
			Outcome:        outcome,
			ExpectedStatus: models.CaseStatusSubmitted,
		}, reviewer)
		require.Error(t, err)
		require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}

	// approval is fine without remarks
	_, err = svc.Decide(context.Background(), deptCase, dto.DecideCaseRequest{
		Outcome:        models.CaseStatusApproved,
		ExpectedStatus: models.CaseStatusSubmitted,
	}, reviewer)
	require.NoError(t, err)
}

func TestReviewServiceDecideWrongUnitForbidden(t *testing.T) {
	w := newWorkflowStub()
	_, deptCase, _ := seedFlow(t, w)
	svc := newReviewService(w)

	satisfyUpload(t, w, deptCase, "r-thesis")
	_, err := svc.Submit(context.Background(), deptCase, dto.SubmitCaseRequest{ExpectedStatus: models.CaseStatusPending}, studentClaims("student-1"))
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), deptCase, dto.DecideCaseRequest{
		Outcome:        models.CaseStatusApproved,
		ExpectedStatus: models.CaseStatusSubmitted,
	}, reviewerClaims("rev-office", models.UnitTypeOffice, "office-1"))
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Decide(context.Background(), deptCase, dto.DecideCaseRequest{
		Outcome:        models.CaseStatusApproved,
		ExpectedStatus: models.CaseStatusSubmitted,
	}, studentClaims("student-1"))
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReviewServiceSubmitLockedCase(t *testing.T) {
	w := newWorkflowStub()
	_, deptCase, _ := seedFlow(t, w)
	svc := newReviewService(w)
	student := studentClaims("student-1")

	satisfyUpload(t, w, deptCase, "r-thesis")
	_, err := svc.Submit(context.Background(), deptCase, dto.SubmitCaseRequest{ExpectedStatus: models.CaseStatusPending}, student)
	require.NoError(t, err)

	// submitting again with the fresh status hits the lock
	_, err = svc.Submit(context.Background(), deptCase, dto.SubmitCaseRequest{ExpectedStatus: models.CaseStatusSubmitted}, student)
	require.Equal(t, appErrors.ErrCaseLocked.Code, appErrors.FromError(err).Code)

	// submitting with the old status is reported as stale
	_, err = svc.Submit(context.Background(), deptCase, dto.SubmitCaseRequest{ExpectedStatus: models.CaseStatusPending}, student)
	require.Equal(t, appErrors.ErrStaleState.Code, appErrors.FromError(err).Code)
}

func TestReviewServiceQueuePinnedToUnit(t *testing.T) {
	w := newWorkflowStub()
	_, deptCase, officeCase := seedFlow(t, w)
	svc := newReviewService(w)
	student := studentClaims("student-1")

	satisfyUpload(t, w, deptCase, "r-thesis")
	satisfyUpload(t, w, officeCase, "r-books")
	_, err := svc.Submit(context.Background(), deptCase, dto.SubmitCaseRequest{ExpectedStatus: models.CaseStatusPending}, student)
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), officeCase, dto.SubmitCaseRequest{ExpectedStatus: models.CaseStatusPending}, student)
	require.NoError(t, err)

	queue, err := svc.Queue(context.Background(), dto.CaseQueue{}, reviewerClaims("rev-dept", models.UnitTypeDepartment, "dept-1"))
	require.NoError(t, err)
	require.Len(t, queue, 1)
	require.Equal(t, deptCase, queue[0].ID)

	queue, err = svc.Queue(context.Background(), dto.CaseQueue{}, adminClaims("admin-1"))
	require.NoError(t, err)
	require.Len(t, queue, 2)

	_, err = svc.Queue(context.Background(), dto.CaseQueue{}, student)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReviewServiceGetCaseChecklist(t *testing.T) {
	w := newWorkflowStub()
	_, deptCase, _ := seedFlow(t, w)
	svc := newReviewService(w)

	detail, err := svc.GetCase(context.Background(), deptCase, studentClaims("student-1"))
	require.NoError(t, err)
	require.False(t, detail.Ready)
	require.Len(t, detail.Checklist, 1)
	require.False(t, detail.Checklist[0].Satisfied)
	require.Equal(t, []string{"Thesis archived"}, detail.Unmet)

	satisfyUpload(t, w, deptCase, "r-thesis")
	detail, err = svc.GetCase(context.Background(), deptCase, studentClaims("student-1"))
	require.NoError(t, err)
	require.True(t, detail.Ready)
	require.True(t, detail.Checklist[0].Satisfied)
	require.Equal(t, "Computer Science", detail.UnitName)
}
