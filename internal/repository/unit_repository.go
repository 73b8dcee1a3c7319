package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-clearance-api/internal/models"
)

// UnitRepository reads approving units, their requirements, and the active
// clearance period configuration.
type UnitRepository struct {
	db *sqlx.DB
}

// NewUnitRepository constructs the repository.
func NewUnitRepository(db *sqlx.DB) *UnitRepository {
	return &UnitRepository{db: db}
}

// ListActive returns every active approving unit.
func (r *UnitRepository) ListActive(ctx context.Context) ([]models.ApprovingUnit, error) {
	const query = `SELECT id, type, name, active, created_at FROM approving_units
	WHERE active = TRUE ORDER BY type, name`
	var units []models.ApprovingUnit
	if err := r.db.SelectContext(ctx, &units, query); err != nil {
		return nil, fmt.Errorf("list approving units: %w", err)
	}
	return units, nil
}

// ListApplicableUnits resolves which units must approve a given student:
// every active department and office, plus the clubs the student belongs to.
func (r *UnitRepository) ListApplicableUnits(ctx context.Context, studentID string) ([]models.ApprovingUnit, error) {
	const query = `SELECT id, type, name, active, created_at FROM approving_units
	WHERE active = TRUE AND type IN ($1, $2)
	UNION
	SELECT u.id, u.type, u.name, u.active, u.created_at FROM approving_units u
	JOIN club_memberships m ON m.club_id = u.id
	WHERE u.active = TRUE AND u.type = $3 AND m.student_id = $4
	ORDER BY type, name`
	var units []models.ApprovingUnit
	if err := r.db.SelectContext(ctx, &units, query,
		models.UnitTypeDepartment, models.UnitTypeOffice, models.UnitTypeClub, studentID); err != nil {
		return nil, fmt.Errorf("list applicable units: %w", err)
	}
	return units, nil
}

// ListRequirements returns the active requirements a unit asks of students.
func (r *UnitRepository) ListRequirements(ctx context.Context, unitType models.UnitType, unitID string) ([]models.Requirement, error) {
	const query = `SELECT id, unit_type, unit_id, name, description, is_required, requires_upload, active, created_at
	FROM requirements
	WHERE unit_type = $1 AND unit_id = $2 AND active = TRUE
	ORDER BY name`
	var requirements []models.Requirement
	if err := r.db.SelectContext(ctx, &requirements, query, unitType, unitID); err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	return requirements, nil
}

// GetRequirement fetches one requirement by identifier.
func (r *UnitRepository) GetRequirement(ctx context.Context, id string) (*models.Requirement, error) {
	const query = `SELECT id, unit_type, unit_id, name, description, is_required, requires_upload, active, created_at
	FROM requirements WHERE id = $1`
	var requirement models.Requirement
	if err := r.db.GetContext(ctx, &requirement, query, id); err != nil {
		return nil, err
	}
	return &requirement, nil
}

// GetPeriodSettings returns the most recently updated period configuration.
func (r *UnitRepository) GetPeriodSettings(ctx context.Context) (*models.PeriodSettings, error) {
	const query = `SELECT id, academic_period, clearance_enabled, enabled_types, updated_at
	FROM period_settings ORDER BY updated_at DESC LIMIT 1`
	var settings models.PeriodSettings
	if err := r.db.GetContext(ctx, &settings, query); err != nil {
		return nil, err
	}
	return &settings, nil
}
