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

func TestUnitRepositoryListApplicableUnits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUnitRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "type", "name", "active", "created_at"}).
		AddRow("dept-1", "DEPARTMENT", "Computer Science", true, now).
		AddRow("office-1", "OFFICE", "Library", true, now).
		AddRow("club-1", "CLUB", "Chess Club", true, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM approving_units")).
		WithArgs(models.UnitTypeDepartment, models.UnitTypeOffice, models.UnitTypeClub, "student-1").
		WillReturnRows(rows)

	units, err := repo.ListApplicableUnits(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, units, 3)
	require.Equal(t, models.UnitTypeClub, units[2].Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitRepositoryListRequirements(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUnitRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "unit_type", "unit_id", "name", "description", "is_required", "requires_upload", "active", "created_at"}).
		AddRow("req-lib", "OFFICE", "office-1", "Return borrowed books", "All loans settled", true, true, true, now).
		AddRow("req-fee", "OFFICE", "office-1", "Settle late fees", "", true, false, true, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM requirements")).
		WithArgs(models.UnitTypeOffice, "office-1").
		WillReturnRows(rows)

	requirements, err := repo.ListRequirements(context.Background(), models.UnitTypeOffice, "office-1")
	require.NoError(t, err)
	require.Len(t, requirements, 2)
	require.True(t, requirements[0].RequiresUpload)
	require.False(t, requirements[1].RequiresUpload)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitRepositoryGetPeriodSettings(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUnitRepository(db)
	rows := sqlmock.NewRows([]string{"id", "academic_period", "clearance_enabled", "enabled_types", "updated_at"}).
		AddRow("settings-1", "2026-S1", true, "PERIOD_END, GRADUATION", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM period_settings")).
		WillReturnRows(rows)

	settings, err := repo.GetPeriodSettings(context.Background())
	require.NoError(t, err)
	require.True(t, settings.ClearanceEnabled)
	require.True(t, settings.TypeEnabled(models.RequestTypeGraduation))
	require.False(t, settings.TypeEnabled(models.RequestTypeTransfer))
	require.NoError(t, mock.ExpectationsWereMet())
}
