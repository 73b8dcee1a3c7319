package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-clearance-api/internal/models"
)

func uploadRequirement(id, name string, required bool) models.Requirement {
	return models.Requirement{ID: id, Name: name, IsRequired: required, RequiresUpload: true, Active: true}
}

func ackRequirement(id, name string, required bool) models.Requirement {
	return models.Requirement{ID: id, Name: name, IsRequired: required, RequiresUpload: false, Active: true}
}

func evidenceSubmission(reqID, ref string, status models.SubmissionStatus) models.RequirementSubmission {
	return models.RequirementSubmission{RequirementID: reqID, EvidenceRef: &ref, Status: status}
}

func TestEvaluateReadinessAllSatisfied(t *testing.T) {
	requirements := []models.Requirement{
		uploadRequirement("r1", "Return borrowed books", true),
		ackRequirement("r2", "No outstanding fees", true),
	}
	submissions := []models.RequirementSubmission{
		evidenceSubmission("r1", "evidence/a.pdf", models.SubmissionStatusSubmitted),
		{RequirementID: "r2", Status: models.SubmissionStatusSubmitted},
	}
	result := EvaluateReadiness(requirements, submissions)
	require.True(t, result.Ready)
	require.Empty(t, result.Unmet)
}

func TestEvaluateReadinessMissingSubmission(t *testing.T) {
	requirements := []models.Requirement{
		uploadRequirement("r1", "Return borrowed books", true),
		ackRequirement("r2", "No outstanding fees", true),
	}
	result := EvaluateReadiness(requirements, []models.RequirementSubmission{
		{RequirementID: "r2", Status: models.SubmissionStatusSubmitted},
	})
	require.False(t, result.Ready)
	require.Equal(t, []string{"Return borrowed books"}, result.Unmet)
}

func TestEvaluateReadinessUploadWithoutEvidence(t *testing.T) {
	requirements := []models.Requirement{uploadRequirement("r1", "Lab key returned", true)}
	// Status says submitted but the evidence reference is gone.
	result := EvaluateReadiness(requirements, []models.RequirementSubmission{
		{RequirementID: "r1", Status: models.SubmissionStatusSubmitted},
	})
	require.False(t, result.Ready)
	require.Equal(t, []string{"Lab key returned"}, result.Unmet)
}

func TestEvaluateReadinessOptionalNeverBlocks(t *testing.T) {
	requirements := []models.Requirement{
		ackRequirement("r1", "Exit survey", false),
		uploadRequirement("r2", "Donation receipt", false),
	}
	result := EvaluateReadiness(requirements, nil)
	require.True(t, result.Ready)
}

func TestEvaluateReadinessInactiveIgnored(t *testing.T) {
	retired := uploadRequirement("r1", "Old form", true)
	retired.Active = false
	result := EvaluateReadiness([]models.Requirement{retired}, nil)
	require.True(t, result.Ready)
}

func TestEvaluateReadinessRejectedNotSatisfied(t *testing.T) {
	requirements := []models.Requirement{uploadRequirement("r1", "Transcript copy", true)}
	result := EvaluateReadiness(requirements, []models.RequirementSubmission{
		evidenceSubmission("r1", "evidence/t.pdf", models.SubmissionStatusRejected),
	})
	require.False(t, result.Ready)

	result = EvaluateReadiness(requirements, []models.RequirementSubmission{
		evidenceSubmission("r1", "evidence/t.pdf", models.SubmissionStatusVerified),
	})
	require.True(t, result.Ready)
}

func TestDeriveRequestStatusProperties(t *testing.T) {
	require.Equal(t, models.RequestStatusCompleted, models.DeriveRequestStatus(nil))
	require.Equal(t, models.RequestStatusPending, models.DeriveRequestStatus([]models.CaseStatus{
		models.CaseStatusPending, models.CaseStatusPending,
	}))
	require.Equal(t, models.RequestStatusInProgress, models.DeriveRequestStatus([]models.CaseStatus{
		models.CaseStatusSubmitted, models.CaseStatusPending,
	}))
	// A rejected case keeps the request in progress, it never fails it.
	require.Equal(t, models.RequestStatusInProgress, models.DeriveRequestStatus([]models.CaseStatus{
		models.CaseStatusRejected, models.CaseStatusApproved,
	}))
	require.Equal(t, models.RequestStatusCompleted, models.DeriveRequestStatus([]models.CaseStatus{
		models.CaseStatusApproved, models.CaseStatusApproved,
	}))
}
