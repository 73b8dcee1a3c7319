package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/noah-isme/campus-clearance-api/internal/models"
	"github.com/noah-isme/campus-clearance-api/internal/repository"
)

// workflowStub is an in-memory world backing the service tests: requests,
// cases, submissions, requirements, units, settings, and the history trail.
type workflowStub struct {
	requests    map[string]*models.ClearanceRequest
	cases       map[string]*models.ReviewCaseDetail
	submissions map[string]map[string]*models.RequirementSubmission
	reqsByUnit  map[string][]models.Requirement
	units       []models.ApprovingUnit
	memberships map[string][]string
	settings    *models.PeriodSettings
	history     []models.StatusHistoryEntry
	nextID      int
}

func newWorkflowStub() *workflowStub {
	return &workflowStub{
		requests:    make(map[string]*models.ClearanceRequest),
		cases:       make(map[string]*models.ReviewCaseDetail),
		submissions: make(map[string]map[string]*models.RequirementSubmission),
		reqsByUnit:  make(map[string][]models.Requirement),
		memberships: make(map[string][]string),
		settings: &models.PeriodSettings{
			ID:               "settings-1",
			AcademicPeriod:   "2026-S1",
			ClearanceEnabled: true,
			EnabledTypes:     "PERIOD_END,TRANSFER,GRADUATION",
			UpdatedAt:        time.Now().UTC(),
		},
	}
}

func (w *workflowStub) id(prefix string) string {
	w.nextID++
	return fmt.Sprintf("%s-%d", prefix, w.nextID)
}

func unitKey(t models.UnitType, id string) string {
	return string(t) + ":" + id
}

func (w *workflowStub) addUnit(unitType models.UnitType, id, name string) {
	w.units = append(w.units, models.ApprovingUnit{ID: id, Type: unitType, Name: name, Active: true, CreatedAt: time.Now().UTC()})
}

func (w *workflowStub) addRequirement(unitType models.UnitType, unitID, id, name string, required, upload bool) {
	key := unitKey(unitType, unitID)
	w.reqsByUnit[key] = append(w.reqsByUnit[key], models.Requirement{
		ID:             id,
		UnitType:       unitType,
		UnitID:         unitID,
		Name:           name,
		IsRequired:     required,
		RequiresUpload: upload,
		Active:         true,
	})
}

func (w *workflowStub) FindActiveByStudent(_ context.Context, studentID string) (*models.ClearanceRequest, error) {
	for _, req := range w.requests {
		if req.StudentID == studentID && !req.Status.Terminal() {
			copied := *req
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (w *workflowStub) CreateWithCases(_ context.Context, request *models.ClearanceRequest, cases []models.ReviewCase) error {
	if request.ID == "" {
		request.ID = w.id("req")
	}
	now := time.Now().UTC()
	request.CreatedAt = now
	request.UpdatedAt = now
	stored := *request
	w.requests[request.ID] = &stored
	for i := range cases {
		if cases[i].ID == "" {
			cases[i].ID = w.id("case")
		}
		cases[i].RequestID = request.ID
		cases[i].CreatedAt = now
		unitName := ""
		for _, unit := range w.units {
			if unit.ID == cases[i].UnitID && unit.Type == cases[i].UnitType {
				unitName = unit.Name
			}
		}
		w.cases[cases[i].ID] = &models.ReviewCaseDetail{
			ReviewCase: cases[i],
			UnitName:   unitName,
			StudentID:  request.StudentID,
		}
	}
	w.history = append(w.history, models.StatusHistoryEntry{
		ID:        w.id("h"),
		RequestID: request.ID,
		NewStatus: string(request.Status),
		ActorID:   request.StudentID,
		CreatedAt: now,
	})
	return nil
}

func (w *workflowStub) GetByID(_ context.Context, id string) (*models.ClearanceRequest, error) {
	if req, ok := w.requests[id]; ok {
		copied := *req
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (w *workflowStub) List(_ context.Context, filter models.ClearanceRequestFilter) ([]models.ClearanceRequest, error) {
	var result []models.ClearanceRequest
	for _, req := range w.requests {
		if filter.StudentID != "" && req.StudentID != filter.StudentID {
			continue
		}
		result = append(result, *req)
	}
	return result, nil
}

func (w *workflowStub) CountCases(_ context.Context, requestID string) (int, error) {
	count := 0
	for _, c := range w.cases {
		if c.RequestID == requestID {
			count++
		}
	}
	return count, nil
}

func (w *workflowStub) Withdraw(_ context.Context, requestID, actorID, remarks string) (*models.ClearanceRequest, error) {
	req, ok := w.requests[requestID]
	if !ok || req.Status.Terminal() {
		return nil, sql.ErrNoRows
	}
	prior := req.Status
	req.Status = models.RequestStatusRejected
	req.UpdatedAt = time.Now().UTC()
	w.history = append(w.history, models.StatusHistoryEntry{
		ID:          w.id("h"),
		RequestID:   requestID,
		PriorStatus: string(prior),
		NewStatus:   string(req.Status),
		ActorID:     actorID,
		Remarks:     &remarks,
		CreatedAt:   time.Now().UTC(),
	})
	copied := *req
	return &copied, nil
}

func (w *workflowStub) ListByRequest(_ context.Context, requestID string) ([]models.ReviewCase, error) {
	var result []models.ReviewCase
	for _, c := range w.cases {
		if c.RequestID == requestID {
			result = append(result, c.ReviewCase)
		}
	}
	return result, nil
}

func (w *workflowStub) GetDetailByID(_ context.Context, id string) (*models.ReviewCaseDetail, error) {
	if c, ok := w.cases[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (w *workflowStub) ListQueue(_ context.Context, filter models.ReviewCaseFilter) ([]models.ReviewCaseDetail, error) {
	var result []models.ReviewCaseDetail
	for _, c := range w.cases {
		if filter.UnitType != "" && c.UnitType != filter.UnitType {
			continue
		}
		if filter.UnitID != "" && c.UnitID != filter.UnitID {
			continue
		}
		if len(filter.Status) > 0 {
			match := false
			for _, status := range filter.Status {
				if c.Status == status {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		result = append(result, *c)
	}
	return result, nil
}

func (w *workflowStub) Transition(_ context.Context, params repository.TransitionParams) (*models.ReviewCase, error) {
	detail, ok := w.cases[params.CaseID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if detail.Status != params.Expected {
		return nil, sql.ErrNoRows
	}
	now := time.Now().UTC()
	prior := detail.Status
	detail.Status = params.Next
	if params.Next == models.CaseStatusSubmitted {
		detail.SubmittedAt = &now
	} else {
		detail.ReviewerID = params.ReviewerID
		detail.Remarks = params.Remarks
		detail.ReviewedAt = &now
	}
	caseID := params.CaseID
	w.history = append(w.history, models.StatusHistoryEntry{
		ID:          w.id("h"),
		RequestID:   params.RequestID,
		CaseID:      &caseID,
		PriorStatus: string(prior),
		NewStatus:   string(params.Next),
		ActorID:     params.ActorID,
		Remarks:     params.Remarks,
		CreatedAt:   now,
	})
	w.recompute(params.RequestID, params.ActorID)
	copied := detail.ReviewCase
	return &copied, nil
}

func (w *workflowStub) RecomputeRequestStatus(_ context.Context, requestID, actorID string) (models.RequestStatus, error) {
	if _, ok := w.requests[requestID]; !ok {
		return "", sql.ErrNoRows
	}
	w.recompute(requestID, actorID)
	return w.requests[requestID].Status, nil
}

func (w *workflowStub) recompute(requestID, actorID string) {
	request, ok := w.requests[requestID]
	if !ok {
		return
	}
	if request.Status.Terminal() && request.Status != models.RequestStatusCompleted {
		return
	}
	var statuses []models.CaseStatus
	for _, c := range w.cases {
		if c.RequestID == requestID {
			statuses = append(statuses, c.Status)
		}
	}
	derived := models.DeriveRequestStatus(statuses)
	if derived == request.Status {
		return
	}
	prior := request.Status
	request.Status = derived
	request.UpdatedAt = time.Now().UTC()
	w.history = append(w.history, models.StatusHistoryEntry{
		ID:          w.id("h"),
		RequestID:   requestID,
		PriorStatus: string(prior),
		NewStatus:   string(derived),
		ActorID:     actorID,
		CreatedAt:   time.Now().UTC(),
	})
}

func (w *workflowStub) ListActive(_ context.Context) ([]models.ApprovingUnit, error) {
	return append([]models.ApprovingUnit(nil), w.units...), nil
}

func (w *workflowStub) ListApplicableUnits(_ context.Context, studentID string) ([]models.ApprovingUnit, error) {
	var result []models.ApprovingUnit
	clubs := w.memberships[studentID]
	for _, unit := range w.units {
		if !unit.Active {
			continue
		}
		if unit.Type == models.UnitTypeClub {
			for _, clubID := range clubs {
				if unit.ID == clubID {
					result = append(result, unit)
				}
			}
			continue
		}
		result = append(result, unit)
	}
	return result, nil
}

func (w *workflowStub) ListRequirements(_ context.Context, unitType models.UnitType, unitID string) ([]models.Requirement, error) {
	return append([]models.Requirement(nil), w.reqsByUnit[unitKey(unitType, unitID)]...), nil
}

func (w *workflowStub) GetRequirement(_ context.Context, id string) (*models.Requirement, error) {
	for _, reqs := range w.reqsByUnit {
		for _, req := range reqs {
			if req.ID == id {
				copied := req
				return &copied, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (w *workflowStub) GetPeriodSettings(_ context.Context) (*models.PeriodSettings, error) {
	if w.settings == nil {
		return nil, sql.ErrNoRows
	}
	copied := *w.settings
	return &copied, nil
}

func (w *workflowStub) PeriodSettings(ctx context.Context) (*models.PeriodSettings, error) {
	return w.GetPeriodSettings(ctx)
}

func (w *workflowStub) GetByCase(_ context.Context, caseID string) ([]models.RequirementSubmission, error) {
	var result []models.RequirementSubmission
	for _, sub := range w.submissions[caseID] {
		result = append(result, *sub)
	}
	return result, nil
}

func (w *workflowStub) Get(_ context.Context, caseID, requirementID string) (*models.RequirementSubmission, error) {
	if sub, ok := w.submissions[caseID][requirementID]; ok {
		copied := *sub
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (w *workflowStub) Upsert(_ context.Context, submission *models.RequirementSubmission) error {
	if submission.ID == "" {
		if existing, ok := w.submissions[submission.CaseID][submission.RequirementID]; ok {
			submission.ID = existing.ID
		} else {
			submission.ID = w.id("sub")
		}
	}
	submission.UpdatedAt = time.Now().UTC()
	if w.submissions[submission.CaseID] == nil {
		w.submissions[submission.CaseID] = make(map[string]*models.RequirementSubmission)
	}
	stored := *submission
	w.submissions[submission.CaseID][submission.RequirementID] = &stored
	return nil
}

func (w *workflowStub) ListByCase(_ context.Context, caseID string) ([]models.StatusHistoryEntry, error) {
	var result []models.StatusHistoryEntry
	for _, entry := range w.history {
		if entry.CaseID != nil && *entry.CaseID == caseID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (w *workflowStub) ListHistoryByRequest(_ context.Context, requestID string) ([]models.StatusHistoryEntry, error) {
	var result []models.StatusHistoryEntry
	for _, entry := range w.history {
		if entry.RequestID == requestID {
			result = append(result, entry)
		}
	}
	return result, nil
}

// requestHistoryStub adapts the stub's history trail to the request-level
// reader, since ListByRequest is already taken by the case lister.
type requestHistoryStub struct {
	w *workflowStub
}

func (h requestHistoryStub) ListByRequest(ctx context.Context, requestID string) ([]models.StatusHistoryEntry, error) {
	return h.w.ListHistoryByRequest(ctx, requestID)
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type blobStub struct {
	saved map[string][]byte
}

func newBlobStub() *blobStub {
	return &blobStub{saved: make(map[string][]byte)}
}

func (b *blobStub) SaveStream(ref string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return "", err
	}
	b.saved[ref] = buf.Bytes()
	return ref, nil
}

type signerStub struct{}

func (signerStub) Generate(resourceID, ref string) (string, time.Time, error) {
	return "signed://" + resourceID + "/" + ref, time.Now().Add(time.Hour), nil
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent}
}

func reviewerClaims(id string, unitType models.UnitType, unitID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleReviewer, UnitType: &unitType, UnitID: &unitID}
}

func adminClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleAdmin}
}
