package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-clearance-api/internal/dto"
	"github.com/noah-isme/campus-clearance-api/internal/models"
	"github.com/noah-isme/campus-clearance-api/internal/repository"
	appErrors "github.com/noah-isme/campus-clearance-api/pkg/errors"
	"github.com/noah-isme/campus-clearance-api/pkg/export"
	"github.com/noah-isme/campus-clearance-api/pkg/jobs"
)

type certificateStore interface {
	Create(ctx context.Context, job *models.CertificateJob) error
	GetByID(ctx context.Context, id string) (*models.CertificateJob, error)
	Update(ctx context.Context, id string, params repository.UpdateCertificateJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.CertificateJob, error)
}

type certificateRequestReader interface {
	GetByID(ctx context.Context, id string) (*models.ClearanceRequest, error)
}

type certificateCaseLister interface {
	ListByRequest(ctx context.Context, requestID string) ([]models.ReviewCase, error)
}

type certificateUnitLister interface {
	ListActive(ctx context.Context) ([]models.ApprovingUnit, error)
}

type certificateUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type certificateEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// CertificateService renders clearance certificates for completed requests
// as background jobs: the request handler only queues, a worker pool renders
// and stores the document, and the client polls the job for a signed link.
type CertificateService struct {
	certs  certificateStore
	reqs   certificateRequestReader
	cases  certificateCaseLister
	units  certificateUnitLister
	users  certificateUserReader
	queue  certificateEnqueuer
	blobs   evidenceStore
	signer  evidenceSigner
	pdf     *export.PDFExporter
	csv     *export.CSVExporter
	metrics *MetricsService
	logger  *zap.Logger
}

// NewCertificateService constructs the service.
func NewCertificateService(certs certificateStore, reqs certificateRequestReader, cases certificateCaseLister, units certificateUnitLister, users certificateUserReader, blobs evidenceStore, signer evidenceSigner, logger *zap.Logger) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{
		certs:  certs,
		reqs:   reqs,
		cases:  cases,
		units:  units,
		users:  users,
		blobs:  blobs,
		signer: signer,
		pdf:    export.NewPDFExporter(),
		csv:    export.NewCSVExporter(),
		logger: logger,
	}
}

// SetQueue wires the worker queue. Called once during startup, after the
// queue is built around this service's Process handler.
func (s *CertificateService) SetQueue(queue certificateEnqueuer) {
	s.queue = queue
}

// SetMetrics attaches the metrics service.
func (s *CertificateService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// CreateJob queues a certificate render for a completed request.
func (s *CertificateService) CreateJob(ctx context.Context, req dto.CreateCertificateRequest, actor *models.JWTClaims) (*dto.CertificateJobResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	format := models.CertificateFormat(strings.ToLower(string(req.Format)))
	if format != models.CertificateFormatPDF && format != models.CertificateFormatCSV {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be pdf or csv")
	}

	request, err := s.reqs.GetByID(ctx, req.RequestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clearance request")
	}
	if actor.Role == models.RoleStudent && request.StudentID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	if actor.Role == models.RoleReviewer {
		return nil, appErrors.ErrForbidden
	}
	if request.Status != models.RequestStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "certificates are only issued for completed requests")
	}

	job := &models.CertificateJob{
		RequestID: request.ID,
		Format:    format,
		Status:    models.CertificateStatusQueued,
		CreatedBy: actor.UserID,
	}
	if err := s.certs.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create certificate job")
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "certificate", Payload: job.ID}); err != nil {
			s.logger.Warn("certificate queue is saturated, job stays queued for recovery", zap.String("job_id", job.ID), zap.Error(err))
		}
	}

	return &dto.CertificateJobResponse{ID: job.ID, Status: job.Status}, nil
}

// JobStatus reports job progress including the signed result link.
func (s *CertificateService) JobStatus(ctx context.Context, id string, actor *models.JWTClaims) (*dto.CertificateStatusResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	job, err := s.certs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate job")
	}
	if actor.Role == models.RoleStudent && job.CreatedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	if actor.Role == models.RoleReviewer {
		return nil, appErrors.ErrForbidden
	}
	return &dto.CertificateStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		ResultURL: job.ResultURL,
		Error:     job.ErrorMessage,
	}, nil
}

// Process is the queue handler: it renders, stores, and finalizes one job.
// Returning an error lets the queue retry before the job is marked failed.
func (s *CertificateService) Process(ctx context.Context, queued jobs.Job) error {
	jobID, ok := queued.Payload.(string)
	if !ok || jobID == "" {
		return fmt.Errorf("certificate job %s carries no job id", queued.ID)
	}

	job, err := s.certs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load certificate job %s: %w", jobID, err)
	}
	if job.Status == models.CertificateStatusFinished {
		return nil
	}

	processing := models.CertificateStatusProcessing
	if err := s.certs.Update(ctx, job.ID, repository.UpdateCertificateJobParams{Status: &processing}); err != nil {
		return fmt.Errorf("mark certificate job processing: %w", err)
	}

	ref, renderErr := s.render(ctx, job)
	now := time.Now().UTC()
	if renderErr != nil {
		failed := models.CertificateStatusFailed
		message := renderErr.Error()
		if err := s.certs.Update(ctx, job.ID, repository.UpdateCertificateJobParams{
			Status:       &failed,
			ErrorMessage: &message,
			FinishedAt:   &now,
		}); err != nil {
			s.logger.Error("failed to mark certificate job failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		return renderErr
	}

	url, _, err := s.signer.Generate(job.ID, ref)
	if err != nil {
		return fmt.Errorf("sign certificate url: %w", err)
	}
	finished := models.CertificateStatusFinished
	if err := s.certs.Update(ctx, job.ID, repository.UpdateCertificateJobParams{
		Status:     &finished,
		ResultURL:  &url,
		FinishedAt: &now,
	}); err != nil {
		return fmt.Errorf("finalize certificate job: %w", err)
	}
	s.metrics.RecordCertificateRendered(string(job.Format))
	s.logger.Info("certificate rendered", zap.String("job_id", job.ID), zap.String("request_id", job.RequestID))
	return nil
}

// RecoverQueued re-enqueues jobs left queued by an earlier shutdown.
func (s *CertificateService) RecoverQueued(ctx context.Context, limit int) error {
	if s.queue == nil {
		return nil
	}
	queued, err := s.certs.ListQueued(ctx, limit)
	if err != nil {
		return err
	}
	for _, job := range queued {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "certificate", Payload: job.ID}); err != nil {
			return err
		}
	}
	return nil
}

func (s *CertificateService) render(ctx context.Context, job *models.CertificateJob) (string, error) {
	request, err := s.reqs.GetByID(ctx, job.RequestID)
	if err != nil {
		return "", fmt.Errorf("load request: %w", err)
	}
	if request.Status != models.RequestStatusCompleted {
		return "", fmt.Errorf("request %s is no longer completed", request.ID)
	}
	student, err := s.users.FindByID(ctx, request.StudentID)
	if err != nil {
		return "", fmt.Errorf("load student: %w", err)
	}
	cases, err := s.cases.ListByRequest(ctx, request.ID)
	if err != nil {
		return "", fmt.Errorf("load cases: %w", err)
	}
	units, err := s.units.ListActive(ctx)
	if err != nil {
		return "", fmt.Errorf("load units: %w", err)
	}
	unitNames := make(map[string]string, len(units))
	for _, unit := range units {
		unitNames[unit.ID] = unit.Name
	}

	dataset := export.Dataset{
		Headers: []string{"Unit", "Type", "Decision", "Reviewed At"},
	}
	for _, c := range cases {
		reviewedAt := ""
		if c.ReviewedAt != nil {
			reviewedAt = c.ReviewedAt.UTC().Format("2006-01-02 15:04")
		}
		name := unitNames[c.UnitID]
		if name == "" {
			name = c.UnitID
		}
		dataset.Rows = append(dataset.Rows, []string{name, string(c.UnitType), string(c.Status), reviewedAt})
	}

	studentNumber := ""
	if student.StudentNumber != nil {
		studentNumber = *student.StudentNumber
	}

	var payload []byte
	var ext string
	switch job.Format {
	case models.CertificateFormatCSV:
		payload, err = s.csv.Render(dataset)
		ext = "csv"
	default:
		payload, err = s.pdf.RenderCertificate(export.CertificateData{
			StudentName:   student.FullName,
			StudentNumber: studentNumber,
			RequestType:   string(request.Type),
			Period:        request.Period,
			CompletedAt:   request.UpdatedAt.UTC().Format("2 January 2006"),
			Units:         dataset,
		})
		ext = "pdf"
	}
	if err != nil {
		return "", fmt.Errorf("render certificate: %w", err)
	}

	ref := fmt.Sprintf("certificates/%s/%s.%s", request.ID, job.ID, ext)
	if _, err := s.blobs.SaveStream(ref, bytes.NewReader(payload)); err != nil {
		return "", fmt.Errorf("store certificate: %w", err)
	}
	return ref, nil
}
