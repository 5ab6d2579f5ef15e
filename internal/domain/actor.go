package domain

import (
	"slices"

	"github.com/google/uuid"
)

// Capability is a single permission an actor holds.
type Capability string

const (
	CapDriver            Capability = "driver"
	CapPreApprovedDriver Capability = "pre_approved_driver"
	CapBaseVehicleAccess Capability = "base_vehicle_access"
	CapApprovingOfficer  Capability = "approving_officer"
	CapFleetAdmin        Capability = "fleet_admin"
)

// Actor is the caller identity, resolved once at the API boundary and passed
// by value into the service layer.
type Actor struct {
	ID           uuid.UUID
	SubUnitID    uuid.UUID
	BaseID       uuid.UUID
	Capabilities []Capability
}

// Has reports whether the actor holds c.
func (a Actor) Has(c Capability) bool {
	return slices.Contains(a.Capabilities, c)
}

// Role returns the most privileged capability, used as the role string in
// audit records.
func (a Actor) Role() string {
	for _, c := range []Capability{CapFleetAdmin, CapApprovingOfficer, CapPreApprovedDriver, CapDriver} {
		if a.Has(c) {
			return string(c)
		}
	}
	return "unknown"
}

// Member is a person as seen by the organization directory.
type Member struct {
	ID           uuid.UUID
	SubUnitID    uuid.UUID
	BaseID       uuid.UUID
	Capabilities []Capability
}

// Has reports whether the member holds c.
func (m Member) Has(c Capability) bool {
	return slices.Contains(m.Capabilities, c)
}

// VehicleHome places a vehicle in the organization.
type VehicleHome struct {
	VehicleID uuid.UUID
	SubUnitID uuid.UUID
	BaseID    uuid.UUID
}
