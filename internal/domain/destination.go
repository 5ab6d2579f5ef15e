package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DestinationStatus is the lifecycle state of a single stop.
type DestinationStatus string

const (
	DestinationInactive   DestinationStatus = "inactive"
	DestinationInProgress DestinationStatus = "in_progress"
	DestinationCompleted  DestinationStatus = "completed"
	DestinationCancelled  DestinationStatus = "cancelled"
)

// Terminal reports whether the stop is finished one way or the other.
func (s DestinationStatus) Terminal() bool {
	return s == DestinationCompleted || s == DestinationCancelled
}

// Destination is one ordered stop within a trip.
// ApprovalStatus only gates Start for ad-hoc stops; planned stops follow the
// trip's decision.
type Destination struct {
	ID             uuid.UUID
	TripID         uuid.UUID
	Sequence       int
	To             string
	Purpose        string
	Status         DestinationStatus
	ApprovalStatus ApprovalStatus
	AdHoc          bool
	ApproverID     *uuid.UUID
	Detail         string
	DeletedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Tombstoned reports whether the destination has been soft-deleted.
func (d Destination) Tombstoned() bool { return d.DeletedAt != nil }

// DestinationInput is a stop as submitted with a new trip.
type DestinationInput struct {
	To      string
	Purpose string
}

func (in DestinationInput) validate(i int) error {
	if strings.TrimSpace(in.To) == "" {
		return fmt.Errorf("%w: destinations[%d].to is required", ErrValidation, i)
	}
	return nil
}

// ValidateDestinations checks the stops submitted with a new trip.
func ValidateDestinations(in []DestinationInput) error {
	if len(in) == 0 {
		return fmt.Errorf("%w: at least one destination is required", ErrValidation)
	}
	for i, d := range in {
		if err := d.validate(i); err != nil {
			return err
		}
	}
	return nil
}

// destinationEdges lists the allowed status edges. InProgress→Cancelled is
// deliberately absent: an open stop can only be closed by ending it, or by
// force-completing the trip.
var destinationEdges = map[DestinationStatus][]DestinationStatus{
	DestinationInactive:   {DestinationInProgress, DestinationCancelled},
	DestinationInProgress: {DestinationCompleted},
}

// CanTransition reports whether from→to is an allowed edge.
func CanTransition(from, to DestinationStatus) bool {
	for _, next := range destinationEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckStart validates that dest may be started on trip. siblings are all
// destinations of the trip (dest may be among them).
// Vehicle availability and ownership are checked by the caller.
func CheckStart(trip Trip, dest Destination, siblings []Destination) error {
	switch dest.Status {
	case DestinationInProgress, DestinationCompleted:
		return stateErr(ErrConflict, "destination", dest.ID, string(dest.Status), "already started")
	case DestinationCancelled:
		return stateErr(ErrPrecondition, "destination", dest.ID, string(dest.Status), "cancelled stops cannot be started")
	}
	if trip.Status.Terminal() {
		return stateErr(ErrPrecondition, "trip", trip.ID, string(trip.Status), "trip is closed")
	}
	if trip.ApprovalStatus != ApprovalApproved {
		return stateErr(ErrPrecondition, "trip", trip.ID, string(trip.ApprovalStatus), "trip is not approved")
	}
	if dest.AdHoc && dest.ApprovalStatus != ApprovalApproved {
		return stateErr(ErrPrecondition, "destination", dest.ID, string(dest.ApprovalStatus), "ad-hoc stop is not approved")
	}
	for _, s := range siblings {
		if s.ID != dest.ID && s.Status == DestinationInProgress {
			return stateErr(ErrPrecondition, "trip", trip.ID, string(trip.Status),
				fmt.Sprintf("destination %s is already in progress", s.ID))
		}
	}
	if !CanTransition(dest.Status, DestinationInProgress) {
		return stateErr(ErrPrecondition, "destination", dest.ID, string(dest.Status), "cannot start")
	}
	return nil
}

// CheckEnd validates that dest may be ended on trip.
func CheckEnd(trip Trip, dest Destination) error {
	switch dest.Status {
	case DestinationCompleted, DestinationCancelled:
		return stateErr(ErrConflict, "destination", dest.ID, string(dest.Status), "already ended")
	case DestinationInactive:
		return stateErr(ErrPrecondition, "destination", dest.ID, string(dest.Status), "destination has not been started")
	}
	if trip.ApprovalStatus != ApprovalApproved {
		return stateErr(ErrPrecondition, "trip", trip.ID, string(trip.ApprovalStatus), "trip is not approved")
	}
	return nil
}

// Outstanding returns the destinations that are neither completed nor cancelled.
func Outstanding(dests []Destination) []Destination {
	var out []Destination
	for _, d := range dests {
		if !d.Status.Terminal() {
			out = append(out, d)
		}
	}
	return out
}

// Active returns the destination currently in progress, if any.
func Active(dests []Destination) (Destination, bool) {
	for _, d := range dests {
		if d.Status == DestinationInProgress {
			return d, true
		}
	}
	return Destination{}, false
}
