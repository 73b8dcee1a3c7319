package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-clearance-api/internal/dto"
	"github.com/noah-isme/campus-clearance-api/internal/models"
	"github.com/noah-isme/campus-clearance-api/internal/repository"
	appErrors "github.com/noah-isme/campus-clearance-api/pkg/errors"
	"github.com/noah-isme/campus-clearance-api/pkg/jobs"
)

type certStoreStub struct {
	jobs   map[string]*models.CertificateJob
	nextID int
}

func newCertStoreStub() *certStoreStub {
	return &certStoreStub{jobs: make(map[string]*models.CertificateJob)}
}

func (s *certStoreStub) Create(_ context.Context, job *models.CertificateJob) error {
	s.nextID++
	job.ID = "job-" + string(rune('0'+s.nextID))
	job.CreatedAt = time.Now().UTC()
	stored := *job
	s.jobs[job.ID] = &stored
	return nil
}

func (s *certStoreStub) GetByID(_ context.Context, id string) (*models.CertificateJob, error) {
	if job, ok := s.jobs[id]; ok {
		copied := *job
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *certStoreStub) Update(_ context.Context, id string, params repository.UpdateCertificateJobParams) error {
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (s *certStoreStub) ListQueued(_ context.Context, limit int) ([]models.CertificateJob, error) {
	var result []models.CertificateJob
	for _, job := range s.jobs {
		if job.Status == models.CertificateStatusQueued {
			result = append(result, *job)
		}
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

type certUserStub struct{}

func (certUserStub) FindByID(_ context.Context, id string) (*models.User, error) {
	number := "2021-00042"
	return &models.User{ID: id, FullName: "Ada Lovelace", StudentNumber: &number, Role: models.RoleStudent}, nil
}

type enqueueRecorder struct {
	enqueued []jobs.Job
}

func (e *enqueueRecorder) Enqueue(job jobs.Job) error {
	e.enqueued = append(e.enqueued, job)
	return nil
}

// completeFlow drives a one-unit clearance all the way to COMPLETED.
func completeFlow(t *testing.T, w *workflowStub) string {
	t.Helper()
	w.addUnit(models.UnitTypeDepartment, "dept-1", "Computer Science")
	w.addRequirement(models.UnitTypeDepartment, "dept-1", "r-thesis", "Thesis archived", true, true)

	clearance, _ := newClearanceService(w)
	detail, err := clearance.CreateRequest(context.Background(), dto.CreateClearanceRequest{Type: models.RequestTypeGraduation}, studentClaims("student-1"))
	require.NoError(t, err)
	caseID := detail.Cases[0].ID

	satisfyUpload(t, w, caseID, "r-thesis")
	review := newReviewService(w)
	_, err = review.Submit(context.Background(), caseID, dto.SubmitCaseRequest{ExpectedStatus: models.CaseStatusPending}, studentClaims("student-1"))
	require.NoError(t, err)
	_, err = review.Decide(context.Background(), caseID, dto.DecideCaseRequest{
		Outcome:        models.CaseStatusApproved,
		ExpectedStatus: models.CaseStatusSubmitted,
	}, reviewerClaims("rev-1", models.UnitTypeDepartment, "dept-1"))
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusCompleted, w.requests[detail.ID].Status)
	return detail.ID
}

func newCertificateService(w *workflowStub, certs *certStoreStub, blobs *blobStub) *CertificateService {
	return NewCertificateService(certs, w, w, w, certUserStub{}, blobs, signerStub{}, nil)
}

func TestCertificateJobLifecycle(t *testing.T) {
	w := newWorkflowStub()
	requestID := completeFlow(t, w)
	certs := newCertStoreStub()
	blobs := newBlobStub()
	svc := newCertificateService(w, certs, blobs)
	queue := &enqueueRecorder{}
	svc.SetQueue(queue)
	student := studentClaims("student-1")

	created, err := svc.CreateJob(context.Background(), dto.CreateCertificateRequest{RequestID: requestID, Format: "PDF"}, student)
	require.NoError(t, err)
	require.Equal(t, models.CertificateStatusQueued, created.Status)
	require.Len(t, queue.enqueued, 1)

	require.NoError(t, svc.Process(context.Background(), queue.enqueued[0]))

	status, err := svc.JobStatus(context.Background(), created.ID, student)
	require.NoError(t, err)
	require.Equal(t, models.CertificateStatusFinished, status.Status)
	require.NotNil(t, status.ResultURL)
	require.Contains(t, *status.ResultURL, "certificates/"+requestID+"/"+created.ID+".pdf")

	payload := blobs.saved["certificates/"+requestID+"/"+created.ID+".pdf"]
	require.NotEmpty(t, payload)
	require.True(t, strings.HasPrefix(string(payload), "%PDF"))

	// reprocessing a finished job is a no-op
	require.NoError(t, svc.Process(context.Background(), queue.enqueued[0]))
}

func TestCertificateCSVRender(t *testing.T) {
	w := newWorkflowStub()
	requestID := completeFlow(t, w)
	certs := newCertStoreStub()
	blobs := newBlobStub()
	svc := newCertificateService(w, certs, blobs)
	queue := &enqueueRecorder{}
	svc.SetQueue(queue)

	created, err := svc.CreateJob(context.Background(), dto.CreateCertificateRequest{RequestID: requestID, Format: "csv"}, adminClaims("admin-1"))
	require.NoError(t, err)
	require.NoError(t, svc.Process(context.Background(), queue.enqueued[0]))

	payload := string(blobs.saved["certificates/"+requestID+"/"+created.ID+".csv"])
	require.Contains(t, payload, "Unit,Type,Decision,Reviewed At")
	require.Contains(t, payload, "Computer Science,DEPARTMENT,APPROVED")
}

func TestCertificateCreateJobGuards(t *testing.T) {
	w := newWorkflowStub()
	w.addUnit(models.UnitTypeDepartment, "dept-1", "Computer Science")

	clearance, _ := newClearanceService(w)
	detail, err := clearance.CreateRequest(context.Background(), dto.CreateClearanceRequest{Type: models.RequestTypeTransfer}, studentClaims("student-1"))
	require.NoError(t, err)

	svc := newCertificateService(w, newCertStoreStub(), newBlobStub())

	// the request is still pending
	_, err = svc.CreateJob(context.Background(), dto.CreateCertificateRequest{RequestID: detail.ID, Format: "pdf"}, studentClaims("student-1"))
	require.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	// unknown format
	_, err = svc.CreateJob(context.Background(), dto.CreateCertificateRequest{RequestID: detail.ID, Format: "docx"}, studentClaims("student-1"))
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// another student's request
	_, err = svc.CreateJob(context.Background(), dto.CreateCertificateRequest{RequestID: detail.ID, Format: "pdf"}, studentClaims("student-2"))
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// reviewers have no business with certificates
	_, err = svc.CreateJob(context.Background(), dto.CreateCertificateRequest{RequestID: detail.ID, Format: "pdf"}, reviewerClaims("rev-1", models.UnitTypeDepartment, "dept-1"))
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCertificateRecoverQueued(t *testing.T) {
	w := newWorkflowStub()
	requestID := completeFlow(t, w)
	certs := newCertStoreStub()
	svc := newCertificateService(w, certs, newBlobStub())

	// a job created while the queue was down stays QUEUED
	created, err := svc.CreateJob(context.Background(), dto.CreateCertificateRequest{RequestID: requestID, Format: "pdf"}, studentClaims("student-1"))
	require.NoError(t, err)

	queue := &enqueueRecorder{}
	svc.SetQueue(queue)
	require.NoError(t, svc.RecoverQueued(context.Background(), 10))
	require.Len(t, queue.enqueued, 1)
	require.Equal(t, created.ID, queue.enqueued[0].Payload)
}
