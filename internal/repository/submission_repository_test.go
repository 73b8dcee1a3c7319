package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-clearance-api/internal/models"
)

func submissionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "case_id", "requirement_id", "student_id", "evidence_ref", "status", "remarks", "submitted_at", "reviewed_at", "updated_at"})
}

func TestSubmissionRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	now := time.Now()
	ref := "evidence/case-1/library-receipt.pdf"

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO requirement_submissions")).
		WillReturnRows(submissionRows().
			AddRow("sub-1", "case-1", "req-lib", "student-1", ref, "SUBMITTED", nil, now, nil, now))

	submission := &models.RequirementSubmission{
		CaseID:        "case-1",
		RequirementID: "req-lib",
		StudentID:     "student-1",
		EvidenceRef:   &ref,
		Status:        models.SubmissionStatusSubmitted,
		SubmittedAt:   &now,
	}
	require.NoError(t, repo.Upsert(context.Background(), submission))
	require.Equal(t, "sub-1", submission.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM requirement_submissions WHERE case_id = $1 AND requirement_id = $2")).
		WithArgs("case-1", "req-lib").
		WillReturnRows(submissionRows().
			AddRow("sub-1", "case-1", "req-lib", "student-1", nil, "PENDING", nil, nil, nil, now))

	submission, err := repo.Get(context.Background(), "case-1", "req-lib")
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusPending, submission.Status)
	require.Nil(t, submission.EvidenceRef)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryGetByCase(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM requirement_submissions WHERE case_id = $1 ORDER BY updated_at")).
		WithArgs("case-1").
		WillReturnRows(submissionRows().
			AddRow("sub-1", "case-1", "req-lib", "student-1", "evidence/a.pdf", "SUBMITTED", nil, now, nil, now).
			AddRow("sub-2", "case-1", "req-fee", "student-1", nil, "VERIFIED", nil, now, now, now))

	submissions, err := repo.GetByCase(context.Background(), "case-1")
	require.NoError(t, err)
	require.Len(t, submissions, 2)
	require.Equal(t, models.SubmissionStatusVerified, submissions[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
