package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-clearance-api/internal/dto"
	"github.com/noah-isme/campus-clearance-api/internal/models"
	"github.com/noah-isme/campus-clearance-api/pkg/config"
	appErrors "github.com/noah-isme/campus-clearance-api/pkg/errors"
)

type submissionStore interface {
	Get(ctx context.Context, caseID, requirementID string) (*models.RequirementSubmission, error)
	GetByCase(ctx context.Context, caseID string) ([]models.RequirementSubmission, error)
	Upsert(ctx context.Context, submission *models.RequirementSubmission) error
}

type caseReader interface {
	GetDetailByID(ctx context.Context, id string) (*models.ReviewCaseDetail, error)
}

type requirementReader interface {
	GetRequirement(ctx context.Context, id string) (*models.Requirement, error)
}

type evidenceStore interface {
	SaveStream(ref string, r io.Reader) (string, error)
}

type evidenceSigner interface {
	Generate(resourceID, ref string) (string, time.Time, error)
}

// SubmissionService tracks a student's standing against each requirement of
// a case: evidence uploads, acknowledgments, and clears. All writes are
// refused once the case is locked under review.
type SubmissionService struct {
	submissions submissionStore
	cases       caseReader
	reqs        requirementReader
	blobs       evidenceStore
	signer      evidenceSigner
	cfg         config.EvidenceConfig
	audit       auditLogger
	logger      *zap.Logger
}

// NewSubmissionService constructs the service.
func NewSubmissionService(submissions submissionStore, cases caseReader, reqs requirementReader, blobs evidenceStore, signer evidenceSigner, cfg config.EvidenceConfig, audit auditLogger, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		submissions: submissions,
		cases:       cases,
		reqs:        reqs,
		blobs:       blobs,
		signer:      signer,
		cfg:         cfg,
		audit:       audit,
		logger:      logger,
	}
}

// UpsertEvidence stores an uploaded file and records it against the
// requirement. Re-uploading replaces the earlier submission for the same
// requirement rather than stacking a duplicate.
func (s *SubmissionService) UpsertEvidence(ctx context.Context, caseID, requirementID string, filename, contentType string, size int64, r io.Reader, actor *models.JWTClaims) (*dto.EvidenceUploadResponse, error) {
	detail, requirement, err := s.loadWritableTarget(ctx, caseID, requirementID, actor)
	if err != nil {
		return nil, err
	}
	if !requirement.RequiresUpload {
		return nil, appErrors.Clone(appErrors.ErrValidation, "this requirement is acknowledged, not uploaded")
	}
	if s.cfg.MaxFileSizeBytes > 0 && size > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSizeBytes))
	}
	if !s.mimeAllowed(contentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("content type %s is not accepted", contentType))
	}

	safeName := path.Base(strings.TrimSpace(filename))
	if safeName == "" || safeName == "." || safeName == "/" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a file name is required")
	}
	ref := fmt.Sprintf("evidence/%s/%s/%s", detail.ID, requirement.ID, safeName)
	if _, err := s.blobs.SaveStream(ref, r); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store evidence")
	}

	now := time.Now().UTC()
	submission := &models.RequirementSubmission{
		CaseID:        detail.ID,
		RequirementID: requirement.ID,
		StudentID:     detail.StudentID,
		EvidenceRef:   &ref,
		Status:        models.SubmissionStatusSubmitted,
		SubmittedAt:   &now,
	}
	if err := s.submissions.Upsert(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record submission")
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionEvidenceUpsert, submission.ID)

	response := &dto.EvidenceUploadResponse{Submission: *submission}
	if s.signer != nil {
		if url, expires, err := s.signer.Generate(submission.ID, ref); err == nil {
			response.DownloadURL = url
			response.ExpiresAt = &expires
		} else {
			s.logger.Warn("failed to sign evidence url", zap.Error(err))
		}
	}
	return response, nil
}

// ClearEvidence removes the recorded evidence and drops the submission back
// to pending. The stored blob is kept; only the reference is cleared.
func (s *SubmissionService) ClearEvidence(ctx context.Context, caseID, requirementID string, actor *models.JWTClaims) (*models.RequirementSubmission, error) {
	detail, requirement, err := s.loadWritableTarget(ctx, caseID, requirementID, actor)
	if err != nil {
		return nil, err
	}
	submission := &models.RequirementSubmission{
		CaseID:        detail.ID,
		RequirementID: requirement.ID,
		StudentID:     detail.StudentID,
		EvidenceRef:   nil,
		Status:        models.SubmissionStatusPending,
	}
	if err := s.submissions.Upsert(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear submission")
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionEvidenceClear, submission.ID)
	return submission, nil
}

// Acknowledge toggles an acknowledgment-only requirement.
func (s *SubmissionService) Acknowledge(ctx context.Context, caseID, requirementID string, req dto.AcknowledgeRequirementRequest, actor *models.JWTClaims) (*models.RequirementSubmission, error) {
	detail, requirement, err := s.loadWritableTarget(ctx, caseID, requirementID, actor)
	if err != nil {
		return nil, err
	}
	if requirement.RequiresUpload {
		return nil, appErrors.Clone(appErrors.ErrValidation, "this requirement needs an uploaded file")
	}

	now := time.Now().UTC()
	submission := &models.RequirementSubmission{
		CaseID:        detail.ID,
		RequirementID: requirement.ID,
		StudentID:     detail.StudentID,
		Status:        models.SubmissionStatusPending,
	}
	if req.Acknowledged {
		submission.Status = models.SubmissionStatusSubmitted
		submission.SubmittedAt = &now
	}
	if err := s.submissions.Upsert(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record acknowledgment")
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionEvidenceUpsert, submission.ID)
	return submission, nil
}

// EvidenceURL issues a fresh signed download link for stored evidence.
func (s *SubmissionService) EvidenceURL(ctx context.Context, caseID, requirementID string, actor *models.JWTClaims) (*dto.EvidenceUploadResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	detail, err := s.cases.GetDetailByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review case")
	}
	if !canViewCase(actor, detail) {
		return nil, appErrors.ErrForbidden
	}
	submission, err := s.submissions.Get(ctx, caseID, requirementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if submission.EvidenceRef == nil || *submission.EvidenceRef == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no evidence is recorded for this requirement")
	}
	url, expires, err := s.signer.Generate(submission.ID, *submission.EvidenceRef)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign evidence url")
	}
	return &dto.EvidenceUploadResponse{Submission: *submission, DownloadURL: url, ExpiresAt: &expires}, nil
}

// loadWritableTarget resolves the case and requirement for a student write,
// enforcing ownership, the case lock, and the requirement-unit pairing.
func (s *SubmissionService) loadWritableTarget(ctx context.Context, caseID, requirementID string, actor *models.JWTClaims) (*models.ReviewCaseDetail, *models.Requirement, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	detail, err := s.cases.GetDetailByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrNotFound
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review case")
	}
	if actor.Role != models.RoleStudent || detail.StudentID != actor.UserID {
		return nil, nil, appErrors.ErrForbidden
	}
	if detail.Status.Locked() {
		return nil, nil, appErrors.ErrCaseLocked
	}
	requirement, err := s.reqs.GetRequirement(ctx, requirementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrNotFound
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requirement")
	}
	if requirement.UnitType != detail.UnitType || requirement.UnitID != detail.UnitID {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "the requirement does not belong to this case")
	}
	if !requirement.Active {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "the requirement is no longer active")
	}
	return detail, requirement, nil
}

func (s *SubmissionService) mimeAllowed(contentType string) bool {
	if len(s.cfg.AllowedMIMEs) == 0 {
		return true
	}
	normalized := strings.ToLower(strings.TrimSpace(contentType))
	for _, allowed := range s.cfg.AllowedMIMEs {
		if normalized == strings.ToLower(strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}

func (s *SubmissionService) emitAudit(ctx context.Context, userID, action, submissionID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "requirement_submission",
		ResourceID: &submissionID,
		IPAddress:  "system",
		UserAgent:  "submission-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
