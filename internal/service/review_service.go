package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-clearance-api/internal/dto"
	"github.com/noah-isme/campus-clearance-api/internal/models"
	"github.com/noah-isme/campus-clearance-api/internal/repository"
	appErrors "github.com/noah-isme/campus-clearance-api/pkg/errors"
)

type reviewCaseStore interface {
	GetDetailByID(ctx context.Context, id string) (*models.ReviewCaseDetail, error)
	ListQueue(ctx context.Context, filter models.ReviewCaseFilter) ([]models.ReviewCaseDetail, error)
	Transition(ctx context.Context, params repository.TransitionParams) (*models.ReviewCase, error)
}

type submissionReader interface {
	GetByCase(ctx context.Context, caseID string) ([]models.RequirementSubmission, error)
}

type requirementLister interface {
	ListRequirements(ctx context.Context, unitType models.UnitType, unitID string) ([]models.Requirement, error)
}

type caseHistoryReader interface {
	ListByCase(ctx context.Context, caseID string) ([]models.StatusHistoryEntry, error)
}

// ReviewService runs the per-case state machine: students submit ready
// cases, reviewers decide them. Every transition is guarded by the caller's
// last-known status so concurrent writers cannot silently overwrite each
// other.
type ReviewService struct {
	cases        reviewCaseStore
	submissions  submissionReader
	requirements requirementLister
	history      caseHistoryReader
	audit        auditLogger
	logger       *zap.Logger
}

// NewReviewService constructs the service.
func NewReviewService(cases reviewCaseStore, submissions submissionReader, requirements requirementLister, history caseHistoryReader, audit auditLogger, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{
		cases:        cases,
		submissions:  submissions,
		requirements: requirements,
		history:      history,
		audit:        audit,
		logger:       logger,
	}
}

// GetCase returns a case with its checklist and readiness verdict.
func (s *ReviewService) GetCase(ctx context.Context, id string, actor *models.JWTClaims) (*dto.CaseDetailResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	detail, err := s.loadCase(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canViewCase(actor, detail) {
		return nil, appErrors.ErrForbidden
	}
	requirements, submissions, err := s.loadChecklist(ctx, detail)
	if err != nil {
		return nil, err
	}

	byRequirement := make(map[string]*models.RequirementSubmission, len(submissions))
	for i := range submissions {
		byRequirement[submissions[i].RequirementID] = &submissions[i]
	}
	checklist := make([]dto.ChecklistItem, 0, len(requirements))
	for _, req := range requirements {
		sub := byRequirement[req.ID]
		checklist = append(checklist, dto.ChecklistItem{
			Requirement: req,
			Submission:  sub,
			Satisfied:   satisfies(req, sub),
		})
	}
	readiness := EvaluateReadiness(requirements, submissions)

	return &dto.CaseDetailResponse{
		Case:      detail.ReviewCase,
		UnitName:  detail.UnitName,
		StudentID: detail.StudentID,
		Checklist: checklist,
		Ready:     readiness.Ready,
		Unmet:     readiness.Unmet,
	}, nil
}

// Queue returns the work queue for the actor's unit. Reviewers are pinned to
// their bound unit; admins see everything.
func (s *ReviewService) Queue(ctx context.Context, query dto.CaseQueue, actor *models.JWTClaims) ([]models.ReviewCaseDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.ReviewCaseFilter{
		Status: query.Status,
		Limit:  query.Limit,
		Offset: query.Offset,
	}
	switch actor.Role {
	case models.RoleReviewer:
		if actor.UnitType == nil || actor.UnitID == nil {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "reviewer account is not bound to a unit")
		}
		filter.UnitType = *actor.UnitType
		filter.UnitID = *actor.UnitID
	case models.RoleAdmin, models.RoleSuperAdmin:
		// unrestricted
	default:
		return nil, appErrors.ErrForbidden
	}
	if len(filter.Status) == 0 {
		filter.Status = []models.CaseStatus{models.CaseStatusSubmitted}
	}
	queue, err := s.cases.ListQueue(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review queue")
	}
	return queue, nil
}

// Submit moves the case into the review queue. The case must be in a
// submittable state, every required requirement must be satisfied, and the
// caller's expected status must still hold when the update lands.
func (s *ReviewService) Submit(ctx context.Context, id string, req dto.SubmitCaseRequest, actor *models.JWTClaims) (*models.ReviewCase, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	detail, err := s.loadCase(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleStudent || detail.StudentID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}

	expected := req.ExpectedStatus
	if expected == "" {
		expected = detail.Status
	}
	if !models.ValidCaseStatus(expected) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown expected status")
	}
	if !expected.Submittable() {
		if expected.Locked() {
			return nil, appErrors.ErrCaseLocked
		}
		return nil, appErrors.Clone(appErrors.ErrValidation, "the case cannot be submitted from this state")
	}
	if expected != detail.Status {
		return nil, appErrors.ErrStaleState
	}

	requirements, submissions, err := s.loadChecklist(ctx, detail)
	if err != nil {
		return nil, err
	}
	readiness := EvaluateReadiness(requirements, submissions)
	if !readiness.Ready {
		return nil, appErrors.WithDetails(appErrors.ErrNotReady, "required requirements are not satisfied", readiness.Unmet)
	}

	reviewCase, err := s.cases.Transition(ctx, repository.TransitionParams{
		CaseID:    detail.ID,
		RequestID: detail.RequestID,
		Expected:  expected,
		Next:      models.CaseStatusSubmitted,
		ActorID:   actor.UserID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrStaleState
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit case")
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionCaseSubmit, detail.ID)
	return reviewCase, nil
}

// Decide records the reviewer's outcome on a submitted case. Rejections and
// holds must carry remarks so the student knows what to fix.
func (s *ReviewService) Decide(ctx context.Context, id string, req dto.DecideCaseRequest, actor *models.JWTClaims) (*models.ReviewCase, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	detail, err := s.loadCase(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanActOn(actor, detail) {
		return nil, appErrors.ErrForbidden
	}

	outcome := models.CaseStatus(strings.ToUpper(string(req.Outcome)))
	if !models.DecisionOutcome(outcome) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "outcome must be APPROVED, REJECTED, or ON_HOLD")
	}
	remarks := strings.TrimSpace(req.Remarks)
	if models.RemarksRequired(outcome) && remarks == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "remarks are required when rejecting or holding a case")
	}

	expected := req.ExpectedStatus
	if expected == "" {
		expected = models.CaseStatusSubmitted
	}
	if expected != models.CaseStatusSubmitted {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decisions apply to submitted cases only")
	}
	if detail.Status != models.CaseStatusSubmitted {
		return nil, appErrors.ErrStaleState
	}

	params := repository.TransitionParams{
		CaseID:     detail.ID,
		RequestID:  detail.RequestID,
		Expected:   expected,
		Next:       outcome,
		ActorID:    actor.UserID,
		ReviewerID: &actor.UserID,
	}
	if remarks != "" {
		params.Remarks = &remarks
	}
	reviewCase, err := s.cases.Transition(ctx, params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrStaleState
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionCaseDecision, detail.ID)
	return reviewCase, nil
}

// CaseHistory returns the case's transition trail oldest first.
func (s *ReviewService) CaseHistory(ctx context.Context, id string, actor *models.JWTClaims) ([]models.StatusHistoryEntry, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	detail, err := s.loadCase(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canViewCase(actor, detail) {
		return nil, appErrors.ErrForbidden
	}
	entries, err := s.history.ListByCase(ctx, detail.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case history")
	}
	return entries, nil
}

func (s *ReviewService) loadCase(ctx context.Context, id string) (*models.ReviewCaseDetail, error) {
	detail, err := s.cases.GetDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review case")
	}
	return detail, nil
}

func (s *ReviewService) loadChecklist(ctx context.Context, detail *models.ReviewCaseDetail) ([]models.Requirement, []models.RequirementSubmission, error) {
	requirements, err := s.requirements.ListRequirements(ctx, detail.UnitType, detail.UnitID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requirements")
	}
	submissions, err := s.submissions.GetByCase(ctx, detail.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
	}
	return requirements, submissions, nil
}

func (s *ReviewService) emitAudit(ctx context.Context, userID, action, caseID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "review_case",
		ResourceID: &caseID,
		IPAddress:  "system",
		UserAgent:  "review-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
