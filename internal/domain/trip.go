// Package domain contains the core data types and transition rules for the
// trip log service. Everything here is pure: no I/O, no database, no clock.
// It is imported by every other internal package (repo, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TripStatus is the overall progress of a trip.
type TripStatus string

const (
	TripInactive   TripStatus = "inactive"
	TripInProgress TripStatus = "in_progress"
	TripCompleted  TripStatus = "completed"
	TripCancelled  TripStatus = "cancelled"
)

// Terminal reports whether no further lifecycle transitions are possible.
func (s TripStatus) Terminal() bool {
	return s == TripCompleted || s == TripCancelled
}

// Valid reports whether s is one of the known statuses.
func (s TripStatus) Valid() bool {
	switch s {
	case TripInactive, TripInProgress, TripCompleted, TripCancelled:
		return true
	}
	return false
}

// ApprovalStatus is shared by trips and ad-hoc destinations.
// It moves Pending→Approved or Pending→Rejected, exactly once.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Decided reports whether the one-shot decision has already been made.
func (s ApprovalStatus) Decided() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

// Valid reports whether s is one of the known approval statuses.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// SafetyForm is the optional risk assessment a driver attaches to a trip.
// ApproverNotes is filled in by the approving officer on approval.
type SafetyForm struct {
	RiskScore     int    `json:"risk_score"`
	Hazards       string `json:"hazards,omitempty"`
	Controls      string `json:"controls,omitempty"`
	Supervision   string `json:"supervision,omitempty"`
	ApproverNotes string `json:"approver_notes,omitempty"`
}

// Trip is a driver's requested vehicle movement. It is the top-level
// aggregate; destinations belong to a trip and log entries to a destination.
//
// CurrentOdometer starts equal to StartOdometer and follows the closing
// reading of each destination that ends.
type Trip struct {
	ID              uuid.UUID
	DriverID        uuid.UUID
	VehicleID       uuid.UUID
	ApproverID      *uuid.UUID // nil for pre-approved trips
	TripDate        time.Time
	StartOdometer   int
	CurrentOdometer int
	Status          TripStatus
	ApprovalStatus  ApprovalStatus
	PreApproved     bool
	Safety          *SafetyForm
	EndedAt         *time.Time
	DeletedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Tombstoned reports whether the trip has been soft-deleted.
func (t Trip) Tombstoned() bool { return t.DeletedAt != nil }

// OwnedBy reports whether driverID is the trip's driver.
func (t Trip) OwnedBy(driverID uuid.UUID) bool { return t.DriverID == driverID }

// DesignatedTo reports whether officerID is the trip's approving officer.
func (t Trip) DesignatedTo(officerID uuid.UUID) bool {
	return t.ApproverID != nil && *t.ApproverID == officerID
}

// TripFilter narrows a trip listing. Nil fields do not filter.
type TripFilter struct {
	// ParticipantID matches trips where the member is either the driver or
	// the approving officer.
	ParticipantID  *uuid.UUID
	DriverID       *uuid.UUID
	ApproverID     *uuid.UUID
	VehicleID      *uuid.UUID
	Status         *TripStatus
	ApprovalStatus *ApprovalStatus
}

// TripDetail is a trip with its destinations in sequence order and the log
// entry of every destination that has been started.
type TripDetail struct {
	Trip         Trip
	Destinations []Destination
	Logs         map[uuid.UUID]LogEntry // keyed by DestinationID
}
