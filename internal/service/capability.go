package service

import (
	"github.com/noah-isme/campus-clearance-api/internal/models"
)

// CanActOn reports whether the actor may decide the given case. Admins act
// on any case; reviewers only on cases belonging to their bound unit. The
// check is computed from the token claims alone so a reviewer moved to
// another unit loses access as soon as their token rotates.
func CanActOn(actor *models.JWTClaims, reviewCase *models.ReviewCaseDetail) bool {
	if actor == nil || reviewCase == nil {
		return false
	}
	switch actor.Role {
	case models.RoleSuperAdmin, models.RoleAdmin:
		return true
	case models.RoleReviewer:
		if actor.UnitType == nil || actor.UnitID == nil {
			return false
		}
		return *actor.UnitType == reviewCase.UnitType && *actor.UnitID == reviewCase.UnitID
	}
	return false
}

// canViewCase reports whether the actor may read the case at all: the owning
// student, the unit's reviewer, or an admin.
func canViewCase(actor *models.JWTClaims, reviewCase *models.ReviewCaseDetail) bool {
	if actor == nil || reviewCase == nil {
		return false
	}
	if actor.Role == models.RoleStudent {
		return actor.UserID == reviewCase.StudentID
	}
	return CanActOn(actor, reviewCase)
}
