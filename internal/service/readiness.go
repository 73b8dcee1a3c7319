package service

import (
	"github.com/noah-isme/campus-clearance-api/internal/models"
)

// ReadinessResult is the outcome of evaluating a case checklist.
type ReadinessResult struct {
	Ready bool
	Unmet []string
}

// EvaluateReadiness decides whether a case may enter review. Every required
// active requirement must hold a satisfying submission; upload-backed
// requirements additionally need a stored evidence reference. Optional
// requirements never block. The function is pure so the same inputs always
// yield the same verdict.
func EvaluateReadiness(requirements []models.Requirement, submissions []models.RequirementSubmission) ReadinessResult {
	byRequirement := make(map[string]*models.RequirementSubmission, len(submissions))
	for i := range submissions {
		byRequirement[submissions[i].RequirementID] = &submissions[i]
	}

	result := ReadinessResult{Ready: true}
	for _, req := range requirements {
		if !req.IsRequired || !req.Active {
			continue
		}
		if satisfies(req, byRequirement[req.ID]) {
			continue
		}
		result.Ready = false
		result.Unmet = append(result.Unmet, req.Name)
	}
	return result
}

func satisfies(req models.Requirement, sub *models.RequirementSubmission) bool {
	if sub == nil || !sub.Status.Satisfied() {
		return false
	}
	if req.RequiresUpload && (sub.EvidenceRef == nil || *sub.EvidenceRef == "") {
		return false
	}
	return true
}
