package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-clearance-api/internal/dto"
	"github.com/noah-isme/campus-clearance-api/internal/models"
	appErrors "github.com/noah-isme/campus-clearance-api/pkg/errors"
)

type clearanceStore interface {
	FindActiveByStudent(ctx context.Context, studentID string) (*models.ClearanceRequest, error)
	CreateWithCases(ctx context.Context, request *models.ClearanceRequest, cases []models.ReviewCase) error
	GetByID(ctx context.Context, id string) (*models.ClearanceRequest, error)
	List(ctx context.Context, filter models.ClearanceRequestFilter) ([]models.ClearanceRequest, error)
	CountCases(ctx context.Context, requestID string) (int, error)
	Withdraw(ctx context.Context, requestID, actorID, remarks string) (*models.ClearanceRequest, error)
}

type requestCaseStore interface {
	ListByRequest(ctx context.Context, requestID string) ([]models.ReviewCase, error)
	RecomputeRequestStatus(ctx context.Context, requestID, actorID string) (models.RequestStatus, error)
}

type unitDirectory interface {
	ListApplicableUnits(ctx context.Context, studentID string) ([]models.ApprovingUnit, error)
}

type settingsProvider interface {
	PeriodSettings(ctx context.Context) (*models.PeriodSettings, error)
}

type requestHistoryReader interface {
	ListByRequest(ctx context.Context, requestID string) ([]models.StatusHistoryEntry, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ClearanceService orchestrates the clearance request lifecycle: opening a
// cycle with its per-unit fan-out, reading it back, withdrawing it, and
// re-deriving its aggregate status.
type ClearanceService struct {
	requests clearanceStore
	cases    requestCaseStore
	units    unitDirectory
	settings settingsProvider
	history  requestHistoryReader
	audit    auditLogger
	logger   *zap.Logger
}

// NewClearanceService constructs the service.
func NewClearanceService(requests clearanceStore, cases requestCaseStore, units unitDirectory, settings settingsProvider, history requestHistoryReader, audit auditLogger, logger *zap.Logger) *ClearanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClearanceService{
		requests: requests,
		cases:    cases,
		units:    units,
		settings: settings,
		history:  history,
		audit:    audit,
		logger:   logger,
	}
}

// CreateRequest opens a clearance cycle for the calling student. One review
// case is fanned out per approving unit that applies to the student, all in
// a single transaction, so the request is never visible half-created.
func (s *ClearanceService) CreateRequest(ctx context.Context, req dto.CreateClearanceRequest, actor *models.JWTClaims) (*models.ClearanceRequestDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may open clearance requests")
	}
	requestType := models.RequestType(strings.ToUpper(string(req.Type)))
	if !models.ValidRequestType(requestType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported request type")
	}

	settings, err := s.settings.PeriodSettings(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no clearance period is configured")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period settings")
	}
	if !settings.ClearanceEnabled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "the clearance window is currently closed")
	}
	if !settings.TypeEnabled(requestType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("request type %s is not open this period", requestType))
	}
	period := strings.TrimSpace(req.Period)
	if period == "" {
		period = settings.AcademicPeriod
	}

	if existing, err := s.requests.FindActiveByStudent(ctx, actor.UserID); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an active clearance request already exists")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active requests")
	}

	units, err := s.units.ListApplicableUnits(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve approving units")
	}

	request := &models.ClearanceRequest{
		StudentID: actor.UserID,
		Type:      requestType,
		Period:    period,
		Status:    models.RequestStatusPending,
	}
	if len(units) == 0 {
		// Nothing to approve means nothing blocks the student.
		request.Status = models.RequestStatusCompleted
	}
	cases := make([]models.ReviewCase, len(units))
	for i, unit := range units {
		cases[i] = models.ReviewCase{
			UnitType: unit.Type,
			UnitID:   unit.ID,
			Status:   models.CaseStatusPending,
		}
	}

	if err := s.requests.CreateWithCases(ctx, request, cases); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create clearance request")
	}

	count, err := s.requests.CountCases(ctx, request.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify fan-out")
	}
	if count != len(units) {
		s.logger.Error("fan-out integrity check failed",
			zap.String("request_id", request.ID),
			zap.Int("expected", len(units)),
			zap.Int("actual", count))
		return nil, appErrors.Clone(appErrors.ErrInternal, "clearance request fan-out is inconsistent")
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionRequestCreate,
		Resource:   "clearance_request",
		ResourceID: &request.ID,
	})

	return &models.ClearanceRequestDetail{ClearanceRequest: *request, Cases: cases}, nil
}

// GetRequest returns a request with its cases, enforcing visibility: the
// owning student, any admin, or a reviewer whose unit holds one of the cases.
func (s *ClearanceService) GetRequest(ctx context.Context, id string, actor *models.JWTClaims) (*models.ClearanceRequestDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clearance request")
	}
	cases, err := s.cases.ListByRequest(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review cases")
	}
	if !s.canViewRequest(actor, request, cases) {
		return nil, appErrors.ErrForbidden
	}
	return &models.ClearanceRequestDetail{ClearanceRequest: *request, Cases: cases}, nil
}

// ListRequests returns requests visible to the actor. Students always see
// only their own; admins may filter freely.
func (s *ClearanceService) ListRequests(ctx context.Context, query dto.ClearanceQuery, actor *models.JWTClaims) ([]models.ClearanceRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.ClearanceRequestFilter{
		StudentID: query.StudentID,
		Status:    query.Status,
		Type:      query.Type,
		Period:    query.Period,
		Limit:     query.Limit,
		Offset:    query.Offset,
	}
	switch actor.Role {
	case models.RoleStudent:
		filter.StudentID = actor.UserID
	case models.RoleAdmin, models.RoleSuperAdmin:
		// unrestricted
	default:
		return nil, appErrors.ErrForbidden
	}
	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clearance requests")
	}
	return requests, nil
}

// Withdraw closes a request permanently. Only the owning student or an
// admin may withdraw, and only while the request is still open.
func (s *ClearanceService) Withdraw(ctx context.Context, id string, req dto.WithdrawRequest, actor *models.JWTClaims) (*models.ClearanceRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if strings.TrimSpace(req.Remarks) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "remarks are required to withdraw")
	}
	request, err := s.requests.GetByID(ctx, id)
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
	if request.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "the clearance request is already closed")
	}

	withdrawn, err := s.requests.Withdraw(ctx, id, actor.UserID, strings.TrimSpace(req.Remarks))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "the clearance request closed before the withdrawal applied")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw clearance request")
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionRequestWithdraw,
		Resource:   "clearance_request",
		ResourceID: &withdrawn.ID,
	})
	return withdrawn, nil
}

// RequestHistory returns the full status trail of a request.
func (s *ClearanceService) RequestHistory(ctx context.Context, id string, actor *models.JWTClaims) ([]models.StatusHistoryEntry, error) {
	detail, err := s.GetRequest(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	entries, err := s.history.ListByRequest(ctx, detail.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status history")
	}
	return entries, nil
}

// Recompute re-derives the aggregate status from the cases. It exists as a
// repair hatch for admins; normal traffic keeps the status current through
// case transitions.
func (s *ClearanceService) Recompute(ctx context.Context, id string, actor *models.JWTClaims) (models.RequestStatus, error) {
	if actor == nil {
		return "", appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleSuperAdmin {
		return "", appErrors.ErrForbidden
	}
	status, err := s.cases.RecomputeRequestStatus(ctx, id, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.ErrNotFound
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to recompute request status")
	}
	return status, nil
}

func (s *ClearanceService) canViewRequest(actor *models.JWTClaims, request *models.ClearanceRequest, cases []models.ReviewCase) bool {
	switch actor.Role {
	case models.RoleSuperAdmin, models.RoleAdmin:
		return true
	case models.RoleStudent:
		return request.StudentID == actor.UserID
	case models.RoleReviewer:
		if actor.UnitType == nil || actor.UnitID == nil {
			return false
		}
		for _, c := range cases {
			if c.UnitType == *actor.UnitType && c.UnitID == *actor.UnitID {
				return true
			}
		}
	}
	return false
}

func (s *ClearanceService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "clearance-service"
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
