package models

import (
	"strings"
	"time"
)

// UnitType categorises an approving unit.
type UnitType string

const (
	UnitTypeDepartment UnitType = "DEPARTMENT"
	UnitTypeOffice     UnitType = "OFFICE"
	UnitTypeClub       UnitType = "CLUB"
)

// ValidUnitType reports whether t is a known unit type.
func ValidUnitType(t UnitType) bool {
	switch t {
	case UnitTypeDepartment, UnitTypeOffice, UnitTypeClub:
		return true
	}
	return false
}

// ApprovingUnit is an organizational unit capable of independently clearing
// a student: departments and offices apply to everyone, clubs only to members.
type ApprovingUnit struct {
	ID        string    `db:"id" json:"id"`
	Type      UnitType  `db:"type" json:"type"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UnitRef identifies one approving unit within a clearance request.
type UnitRef struct {
	Type UnitType `json:"type"`
	ID   string   `json:"id"`
}

// PeriodSettings holds the per-period administrative toggles: the active
// academic period label, whether the clearance window is open at all, and
// which request types students may open.
type PeriodSettings struct {
	ID               string    `db:"id" json:"id"`
	AcademicPeriod   string    `db:"academic_period" json:"academic_period"`
	ClearanceEnabled bool      `db:"clearance_enabled" json:"clearance_enabled"`
	EnabledTypes     string    `db:"enabled_types" json:"enabled_types"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// EnabledRequestTypes parses the stored comma separated type list.
func (p PeriodSettings) EnabledRequestTypes() []RequestType {
	parts := strings.Split(p.EnabledTypes, ",")
	types := make([]RequestType, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.ToUpper(strings.TrimSpace(part))
		if trimmed != "" {
			types = append(types, RequestType(trimmed))
		}
	}
	return types
}

// TypeEnabled reports whether the request type is open for the period.
func (p PeriodSettings) TypeEnabled(t RequestType) bool {
	for _, enabled := range p.EnabledRequestTypes() {
		if enabled == t {
			return true
		}
	}
	return false
}
